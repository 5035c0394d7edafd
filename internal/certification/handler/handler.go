// Package handler wires the certification endpoints to the certification
// service.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carledger/internal/certification/models"
	"carledger/internal/certification/service"
	"carledger/pkg/domain"
	"carledger/pkg/platform/httputil"
	"carledger/pkg/requestcontext"
)

// Service defines the interface for certification operations.
type Service interface {
	IssueInspectionReport(ctx context.Context, signer domain.Authority, params service.IssueInspectionParams) (models.InspectionReport, error)
	IssueConformityReport(ctx context.Context, signer domain.Authority, params service.IssueConformityParams) (models.ConformityReport, error)
	AcceptInspectionReport(ctx context.Context, signer domain.Authority, vin string, issuer domain.Authority, reportID uint64) (models.InspectionReport, error)
	AcceptConformityReport(ctx context.Context, signer domain.Authority, vin string, issuer domain.Authority, reportID uint64) (models.ConformityReport, error)
	ListInspectionReports(ctx context.Context, filter service.InspectionFilter) ([]models.InspectionReport, error)
	ListConformityReports(ctx context.Context, filter service.ConformityFilter) ([]models.ConformityReport, error)
}

// Handler is the thin HTTP layer over the certification service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a certification handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts certification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/reports/inspection", h.HandleIssueInspection)
	r.Post("/reports/inspection/accept", h.HandleAcceptInspection)
	r.Get("/reports/inspection", h.HandleListInspection)
	r.Post("/reports/conformity", h.HandleIssueConformity)
	r.Post("/reports/conformity/accept", h.HandleAcceptConformity)
	r.Get("/reports/conformity", h.HandleListConformity)
}

// HandleIssueInspection handles POST /reports/inspection.
func (h *Handler) HandleIssueInspection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IssueInspectionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	report, err := h.service.IssueInspectionReport(ctx, req.ParsedSigner(), req.ToParams())
	if err != nil {
		h.logger.ErrorContext(ctx, "inspection report issuance failed",
			"request_id", requestID, "vin", req.Vin, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromInspectionReport(report))
}

// HandleAcceptInspection handles POST /reports/inspection/accept.
func (h *Handler) HandleAcceptInspection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AcceptReportRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	report, err := h.service.AcceptInspectionReport(ctx, req.ParsedSigner(), req.Vin, req.ParsedIssuer(), req.ReportID)
	if err != nil {
		h.logger.ErrorContext(ctx, "inspection report approval failed",
			"request_id", requestID, "vin", req.Vin, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromInspectionReport(report))
}

// HandleListInspection handles GET /reports/inspection with optional car,
// owner and issuer query filters.
func (h *Handler) HandleListInspection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseInspectionFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	reports, err := h.service.ListInspectionReports(ctx, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromInspectionReports(reports))
}

// HandleIssueConformity handles POST /reports/conformity.
func (h *Handler) HandleIssueConformity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[IssueConformityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	report, err := h.service.IssueConformityReport(ctx, req.ParsedSigner(), req.ToParams())
	if err != nil {
		h.logger.ErrorContext(ctx, "conformity report issuance failed",
			"request_id", requestID, "vin", req.Vin, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromConformityReport(report))
}

// HandleAcceptConformity handles POST /reports/conformity/accept.
func (h *Handler) HandleAcceptConformity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AcceptReportRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	report, err := h.service.AcceptConformityReport(ctx, req.ParsedSigner(), req.Vin, req.ParsedIssuer(), req.ReportID)
	if err != nil {
		h.logger.ErrorContext(ctx, "conformity report approval failed",
			"request_id", requestID, "vin", req.Vin, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromConformityReport(report))
}

// HandleListConformity handles GET /reports/conformity with optional car,
// owner and issuer query filters.
func (h *Handler) HandleListConformity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseConformityFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	reports, err := h.service.ListConformityReports(ctx, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromConformityReports(reports))
}
