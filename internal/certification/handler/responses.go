package handler

import (
	"time"

	"carledger/internal/certification/models"
)

// InspectionReportResponse is the HTTP shape of an inspection report.
type InspectionReportResponse struct {
	Address          string    `json:"address"`
	ReportID         uint64    `json:"report_id"`
	Car              string    `json:"car"`
	Inspector        string    `json:"inspector"`
	CarOwner         string    `json:"car_owner"`
	ReportDate       time.Time `json:"report_date"`
	OverallCondition uint8     `json:"overall_condition"`
	EngineCondition  uint8     `json:"engine_condition"`
	BodyCondition    uint8     `json:"body_condition"`
	FullReportURI    string    `json:"full_report_uri,omitempty"`
	ReportSummary    string    `json:"report_summary,omitempty"`
	ApprovedByOwner  bool      `json:"approved_by_owner"`
	Notes            string    `json:"notes,omitempty"`
	Bump             uint8     `json:"bump"`
}

// FromInspectionReport converts an inspection report to its HTTP shape.
func FromInspectionReport(report models.InspectionReport) InspectionReportResponse {
	return InspectionReportResponse{
		Address:          report.Address.String(),
		ReportID:         report.ReportID,
		Car:              report.Car.String(),
		Inspector:        report.Inspector.String(),
		CarOwner:         report.CarOwner.String(),
		ReportDate:       report.ReportDate,
		OverallCondition: report.OverallCondition,
		EngineCondition:  report.EngineCondition,
		BodyCondition:    report.BodyCondition,
		FullReportURI:    report.FullReportURI,
		ReportSummary:    report.ReportSummary,
		ApprovedByOwner:  report.ApprovedByOwner,
		Notes:            report.Notes,
		Bump:             report.Bump,
	}
}

// FromInspectionReports converts a list of inspection reports.
func FromInspectionReports(reports []models.InspectionReport) []InspectionReportResponse {
	out := make([]InspectionReportResponse, 0, len(reports))
	for _, report := range reports {
		out = append(out, FromInspectionReport(report))
	}
	return out
}

// ConformityReportResponse is the HTTP shape of a conformity report.
type ConformityReportResponse struct {
	Address          string    `json:"address"`
	ReportID         uint64    `json:"report_id"`
	Car              string    `json:"car"`
	ConformityExpert string    `json:"conformity_expert"`
	CarOwner         string    `json:"car_owner"`
	ReportDate       time.Time `json:"report_date"`
	ConformityStatus bool      `json:"conformity_status"`
	Modifications    string    `json:"modifications,omitempty"`
	MinesStamp       string    `json:"mines_stamp,omitempty"`
	FullReportURI    string    `json:"full_report_uri,omitempty"`
	AcceptedByOwner  bool      `json:"accepted_by_owner"`
	Notes            string    `json:"notes,omitempty"`
	Bump             uint8     `json:"bump"`
}

// FromConformityReport converts a conformity report to its HTTP shape.
func FromConformityReport(report models.ConformityReport) ConformityReportResponse {
	return ConformityReportResponse{
		Address:          report.Address.String(),
		ReportID:         report.ReportID,
		Car:              report.Car.String(),
		ConformityExpert: report.ConformityExpert.String(),
		CarOwner:         report.CarOwner.String(),
		ReportDate:       report.ReportDate,
		ConformityStatus: report.ConformityStatus,
		Modifications:    report.Modifications,
		MinesStamp:       report.MinesStamp,
		FullReportURI:    report.FullReportURI,
		AcceptedByOwner:  report.AcceptedByOwner,
		Notes:            report.Notes,
		Bump:             report.Bump,
	}
}

// FromConformityReports converts a list of conformity reports.
func FromConformityReports(reports []models.ConformityReport) []ConformityReportResponse {
	out := make([]ConformityReportResponse, 0, len(reports))
	for _, report := range reports {
		out = append(out, FromConformityReport(report))
	}
	return out
}
