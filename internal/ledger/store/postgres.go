package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	certmodels "carledger/internal/certification/models"
	identitymodels "carledger/internal/identity/models"
	"carledger/internal/ledger/address"
	marketmodels "carledger/internal/marketplace/models"
	registrymodels "carledger/internal/registry/models"
	"carledger/pkg/domain"
	"carledger/pkg/platform/sentinel"
	"carledger/pkg/platform/tx"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys. A primary
// key hit on the address column is how an occupied derived address surfaces.
const uniqueViolation = "23505"

// dbtx is the common surface of *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresLedger persists the typed record space in PostgreSQL. Every table
// keys on the 32-byte derived address, so address collisions map directly to
// unique violations.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger.
func NewPostgres(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// conn joins the transaction stashed in ctx by tx.SQLRunner, falling back to
// the pool for plain reads.
func (l *PostgresLedger) conn(ctx context.Context) dbtx {
	if stashed, ok := tx.From(ctx); ok {
		return stashed
	}
	return l.db
}

func translateWriteErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requireUpdated(op string, res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	}
	return nil
}

func nullAuthority(a *domain.Authority) []byte {
	if a == nil {
		return nil
	}
	return a.Bytes()
}

func scanAuthority(raw []byte) *domain.Authority {
	if raw == nil {
		return nil
	}
	var a domain.Authority
	copy(a[:], raw)
	return &a
}

func nullPrice(p *uint64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func scanPrice(raw sql.NullInt64) *uint64 {
	if !raw.Valid {
		return nil
	}
	price := uint64(raw.Int64)
	return &price
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func scanTime(raw sql.NullTime) *time.Time {
	if !raw.Valid {
		return nil
	}
	t := raw.Time
	return &t
}

// --- users ---

const userColumns = `address, authority, user_name, public_data_uri, private_data_uri,
	encrypted_key_for_gov, encrypted_key_for_user, role, verification_status,
	verified_at, verified_by, created_at, updated_at, bump`

func (l *PostgresLedger) CreateUser(ctx context.Context, user identitymodels.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := l.conn(ctx).ExecContext(ctx, query,
		user.Address.Bytes(), user.Authority.Bytes(), user.UserName,
		user.PublicDataURI, user.PrivateDataURI,
		user.EncryptedKeyForGov, user.EncryptedKeyForUser,
		string(user.Role), string(user.VerificationStatus),
		nullTime(user.VerifiedAt), nullAuthority(user.VerifiedBy),
		user.CreatedAt, user.UpdatedAt, int16(user.Bump),
	)
	if err != nil {
		return translateWriteErr("create user", err)
	}
	return nil
}

func (l *PostgresLedger) GetUser(ctx context.Context, addr address.Address) (identitymodels.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE address = $1`
	row := l.conn(ctx).QueryRowContext(ctx, query, addr.Bytes())
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identitymodels.User{}, fmt.Errorf("get user: %w", sentinel.ErrNotFound)
		}
		return identitymodels.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (l *PostgresLedger) UpdateUser(ctx context.Context, user identitymodels.User) error {
	query := `
		UPDATE users SET
			public_data_uri = $2, private_data_uri = $3,
			encrypted_key_for_gov = $4, encrypted_key_for_user = $5,
			role = $6, verification_status = $7,
			verified_at = $8, verified_by = $9, updated_at = $10
		WHERE address = $1
	`
	res, err := l.conn(ctx).ExecContext(ctx, query,
		user.Address.Bytes(),
		user.PublicDataURI, user.PrivateDataURI,
		user.EncryptedKeyForGov, user.EncryptedKeyForUser,
		string(user.Role), string(user.VerificationStatus),
		nullTime(user.VerifiedAt), nullAuthority(user.VerifiedBy),
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireUpdated("update user", res)
}

func (l *PostgresLedger) ListUsers(ctx context.Context) ([]identitymodels.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at`
	rows, err := l.conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []identitymodels.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (identitymodels.User, error) {
	var (
		user           identitymodels.User
		addrRaw        []byte
		authorityRaw   []byte
		role, status   string
		verifiedAt     sql.NullTime
		verifiedByRaw  []byte
		bump           int16
	)
	err := row.Scan(&addrRaw, &authorityRaw, &user.UserName,
		&user.PublicDataURI, &user.PrivateDataURI,
		&user.EncryptedKeyForGov, &user.EncryptedKeyForUser,
		&role, &status, &verifiedAt, &verifiedByRaw,
		&user.CreatedAt, &user.UpdatedAt, &bump)
	if err != nil {
		return identitymodels.User{}, err
	}
	copy(user.Address[:], addrRaw)
	copy(user.Authority[:], authorityRaw)
	user.Role = domain.Role(role)
	user.VerificationStatus = domain.VerificationStatus(status)
	user.VerifiedAt = scanTime(verifiedAt)
	user.VerifiedBy = scanAuthority(verifiedByRaw)
	user.Bump = uint8(bump)
	return user, nil
}

// --- cars ---

const carColumns = `address, car_id, vin, brand, model, year, color, engine_number,
	owner, registered_by, registration_date, is_active, is_for_sale, sale_price,
	transfer_count, inspection_status, last_inspection_date,
	latest_inspection_report_uri, mileage, bump`

func (l *PostgresLedger) CreateCar(ctx context.Context, car registrymodels.Car) error {
	query := `
		INSERT INTO cars (` + carColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := l.conn(ctx).ExecContext(ctx, query,
		car.Address.Bytes(), car.CarID, car.Vin, car.Brand, car.Model,
		int32(car.Year), car.Color, car.EngineNumber,
		car.Owner.Bytes(), car.RegisteredBy.Bytes(), car.RegistrationDate,
		car.IsActive, car.IsForSale, nullPrice(car.SalePrice),
		int64(car.TransferCount), string(car.InspectionStatus),
		nullTime(car.LastInspectionDate), car.LatestInspectionReportURI,
		int64(car.Mileage), int16(car.Bump),
	)
	if err != nil {
		return translateWriteErr("create car", err)
	}
	return nil
}

func (l *PostgresLedger) GetCar(ctx context.Context, addr address.Address) (registrymodels.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars WHERE address = $1`
	row := l.conn(ctx).QueryRowContext(ctx, query, addr.Bytes())
	car, err := scanCar(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return registrymodels.Car{}, fmt.Errorf("get car: %w", sentinel.ErrNotFound)
		}
		return registrymodels.Car{}, fmt.Errorf("get car: %w", err)
	}
	return car, nil
}

func (l *PostgresLedger) UpdateCar(ctx context.Context, car registrymodels.Car) error {
	query := `
		UPDATE cars SET
			owner = $2, is_active = $3, is_for_sale = $4, sale_price = $5,
			transfer_count = $6, inspection_status = $7,
			last_inspection_date = $8, latest_inspection_report_uri = $9,
			mileage = $10
		WHERE address = $1
	`
	res, err := l.conn(ctx).ExecContext(ctx, query,
		car.Address.Bytes(),
		car.Owner.Bytes(), car.IsActive, car.IsForSale, nullPrice(car.SalePrice),
		int64(car.TransferCount), string(car.InspectionStatus),
		nullTime(car.LastInspectionDate), car.LatestInspectionReportURI,
		int64(car.Mileage),
	)
	if err != nil {
		return fmt.Errorf("update car: %w", err)
	}
	return requireUpdated("update car", res)
}

func (l *PostgresLedger) ListCars(ctx context.Context) ([]registrymodels.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars ORDER BY registration_date`
	rows, err := l.conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}
	defer rows.Close()

	var cars []registrymodels.Car
	for rows.Next() {
		car, err := scanCar(rows)
		if err != nil {
			return nil, fmt.Errorf("list cars: %w", err)
		}
		cars = append(cars, car)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cars: %w", err)
	}
	return cars, nil
}

func scanCar(row rowScanner) (registrymodels.Car, error) {
	var (
		car              registrymodels.Car
		addrRaw          []byte
		ownerRaw         []byte
		registeredByRaw  []byte
		year             int32
		salePrice        sql.NullInt64
		transferCount    int64
		inspectionStatus string
		lastInspection   sql.NullTime
		mileage          int64
		bump             int16
	)
	err := row.Scan(&addrRaw, &car.CarID, &car.Vin, &car.Brand, &car.Model,
		&year, &car.Color, &car.EngineNumber,
		&ownerRaw, &registeredByRaw, &car.RegistrationDate,
		&car.IsActive, &car.IsForSale, &salePrice,
		&transferCount, &inspectionStatus, &lastInspection,
		&car.LatestInspectionReportURI, &mileage, &bump)
	if err != nil {
		return registrymodels.Car{}, err
	}
	copy(car.Address[:], addrRaw)
	copy(car.Owner[:], ownerRaw)
	copy(car.RegisteredBy[:], registeredByRaw)
	car.Year = uint16(year)
	car.SalePrice = scanPrice(salePrice)
	car.TransferCount = uint32(transferCount)
	car.InspectionStatus = domain.InspectionStatus(inspectionStatus)
	car.LastInspectionDate = scanTime(lastInspection)
	car.Mileage = uint32(mileage)
	car.Bump = uint8(bump)
	return car, nil
}

// --- buy requests ---

const buyRequestColumns = `address, vin, buyer, seller, amount, message, status, created_at, bump`

func (l *PostgresLedger) CreateBuyRequest(ctx context.Context, request marketmodels.BuyRequest) error {
	query := `
		INSERT INTO buy_requests (` + buyRequestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := l.conn(ctx).ExecContext(ctx, query,
		request.Address.Bytes(), request.Vin,
		request.Buyer.Bytes(), request.Seller.Bytes(),
		int64(request.Amount), request.Message, string(request.Status),
		request.CreatedAt, int16(request.Bump),
	)
	if err != nil {
		return translateWriteErr("create buy request", err)
	}
	return nil
}

func (l *PostgresLedger) GetBuyRequest(ctx context.Context, addr address.Address) (marketmodels.BuyRequest, error) {
	query := `SELECT ` + buyRequestColumns + ` FROM buy_requests WHERE address = $1`
	row := l.conn(ctx).QueryRowContext(ctx, query, addr.Bytes())
	request, err := scanBuyRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return marketmodels.BuyRequest{}, fmt.Errorf("get buy request: %w", sentinel.ErrNotFound)
		}
		return marketmodels.BuyRequest{}, fmt.Errorf("get buy request: %w", err)
	}
	return request, nil
}

func (l *PostgresLedger) UpdateBuyRequest(ctx context.Context, request marketmodels.BuyRequest) error {
	query := `UPDATE buy_requests SET status = $2 WHERE address = $1`
	res, err := l.conn(ctx).ExecContext(ctx, query,
		request.Address.Bytes(), string(request.Status))
	if err != nil {
		return fmt.Errorf("update buy request: %w", err)
	}
	return requireUpdated("update buy request", res)
}

func (l *PostgresLedger) ListBuyRequests(ctx context.Context) ([]marketmodels.BuyRequest, error) {
	query := `SELECT ` + buyRequestColumns + ` FROM buy_requests ORDER BY created_at`
	rows, err := l.conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list buy requests: %w", err)
	}
	defer rows.Close()

	var requests []marketmodels.BuyRequest
	for rows.Next() {
		request, err := scanBuyRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("list buy requests: %w", err)
		}
		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list buy requests: %w", err)
	}
	return requests, nil
}

func scanBuyRequest(row rowScanner) (marketmodels.BuyRequest, error) {
	var (
		request   marketmodels.BuyRequest
		addrRaw   []byte
		buyerRaw  []byte
		sellerRaw []byte
		amount    int64
		status    string
		bump      int16
	)
	err := row.Scan(&addrRaw, &request.Vin, &buyerRaw, &sellerRaw,
		&amount, &request.Message, &status, &request.CreatedAt, &bump)
	if err != nil {
		return marketmodels.BuyRequest{}, err
	}
	copy(request.Address[:], addrRaw)
	copy(request.Buyer[:], buyerRaw)
	copy(request.Seller[:], sellerRaw)
	request.Amount = uint64(amount)
	request.Status = domain.BuyRequestStatus(status)
	request.Bump = uint8(bump)
	return request, nil
}

// --- inspection reports ---

const inspectionColumns = `address, report_id, car, inspector, car_owner, report_date,
	overall_condition, engine_condition, body_condition,
	full_report_uri, report_summary, approved_by_owner, notes, bump`

func (l *PostgresLedger) CreateInspectionReport(ctx context.Context, report certmodels.InspectionReport) error {
	query := `
		INSERT INTO inspection_reports (` + inspectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := l.conn(ctx).ExecContext(ctx, query,
		report.Address.Bytes(), int64(report.ReportID),
		report.Car.Bytes(), report.Inspector.Bytes(), report.CarOwner.Bytes(),
		report.ReportDate,
		int16(report.OverallCondition), int16(report.EngineCondition), int16(report.BodyCondition),
		report.FullReportURI, report.ReportSummary, report.ApprovedByOwner,
		report.Notes, int16(report.Bump),
	)
	if err != nil {
		return translateWriteErr("create inspection report", err)
	}
	return nil
}

func (l *PostgresLedger) GetInspectionReport(ctx context.Context, addr address.Address) (certmodels.InspectionReport, error) {
	query := `SELECT ` + inspectionColumns + ` FROM inspection_reports WHERE address = $1`
	row := l.conn(ctx).QueryRowContext(ctx, query, addr.Bytes())
	report, err := scanInspectionReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return certmodels.InspectionReport{}, fmt.Errorf("get inspection report: %w", sentinel.ErrNotFound)
		}
		return certmodels.InspectionReport{}, fmt.Errorf("get inspection report: %w", err)
	}
	return report, nil
}

func (l *PostgresLedger) UpdateInspectionReport(ctx context.Context, report certmodels.InspectionReport) error {
	query := `UPDATE inspection_reports SET approved_by_owner = $2 WHERE address = $1`
	res, err := l.conn(ctx).ExecContext(ctx, query,
		report.Address.Bytes(), report.ApprovedByOwner)
	if err != nil {
		return fmt.Errorf("update inspection report: %w", err)
	}
	return requireUpdated("update inspection report", res)
}

func (l *PostgresLedger) ListInspectionReports(ctx context.Context) ([]certmodels.InspectionReport, error) {
	query := `SELECT ` + inspectionColumns + ` FROM inspection_reports ORDER BY report_date`
	rows, err := l.conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list inspection reports: %w", err)
	}
	defer rows.Close()

	var reports []certmodels.InspectionReport
	for rows.Next() {
		report, err := scanInspectionReport(rows)
		if err != nil {
			return nil, fmt.Errorf("list inspection reports: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list inspection reports: %w", err)
	}
	return reports, nil
}

func scanInspectionReport(row rowScanner) (certmodels.InspectionReport, error) {
	var (
		report       certmodels.InspectionReport
		addrRaw      []byte
		carRaw       []byte
		inspectorRaw []byte
		ownerRaw     []byte
		reportID     int64
		overall      int16
		engine       int16
		body         int16
		bump         int16
	)
	err := row.Scan(&addrRaw, &reportID, &carRaw, &inspectorRaw, &ownerRaw,
		&report.ReportDate, &overall, &engine, &body,
		&report.FullReportURI, &report.ReportSummary, &report.ApprovedByOwner,
		&report.Notes, &bump)
	if err != nil {
		return certmodels.InspectionReport{}, err
	}
	copy(report.Address[:], addrRaw)
	copy(report.Car[:], carRaw)
	copy(report.Inspector[:], inspectorRaw)
	copy(report.CarOwner[:], ownerRaw)
	report.ReportID = uint64(reportID)
	report.OverallCondition = uint8(overall)
	report.EngineCondition = uint8(engine)
	report.BodyCondition = uint8(body)
	report.Bump = uint8(bump)
	return report, nil
}

// --- conformity reports ---

const conformityColumns = `address, report_id, car, conformity_expert, car_owner, report_date,
	conformity_status, modifications, mines_stamp,
	full_report_uri, accepted_by_owner, notes, bump`

func (l *PostgresLedger) CreateConformityReport(ctx context.Context, report certmodels.ConformityReport) error {
	query := `
		INSERT INTO conformity_reports (` + conformityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := l.conn(ctx).ExecContext(ctx, query,
		report.Address.Bytes(), int64(report.ReportID),
		report.Car.Bytes(), report.ConformityExpert.Bytes(), report.CarOwner.Bytes(),
		report.ReportDate,
		report.ConformityStatus, report.Modifications, report.MinesStamp,
		report.FullReportURI, report.AcceptedByOwner, report.Notes, int16(report.Bump),
	)
	if err != nil {
		return translateWriteErr("create conformity report", err)
	}
	return nil
}

func (l *PostgresLedger) GetConformityReport(ctx context.Context, addr address.Address) (certmodels.ConformityReport, error) {
	query := `SELECT ` + conformityColumns + ` FROM conformity_reports WHERE address = $1`
	row := l.conn(ctx).QueryRowContext(ctx, query, addr.Bytes())
	report, err := scanConformityReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return certmodels.ConformityReport{}, fmt.Errorf("get conformity report: %w", sentinel.ErrNotFound)
		}
		return certmodels.ConformityReport{}, fmt.Errorf("get conformity report: %w", err)
	}
	return report, nil
}

func (l *PostgresLedger) UpdateConformityReport(ctx context.Context, report certmodels.ConformityReport) error {
	query := `UPDATE conformity_reports SET accepted_by_owner = $2 WHERE address = $1`
	res, err := l.conn(ctx).ExecContext(ctx, query,
		report.Address.Bytes(), report.AcceptedByOwner)
	if err != nil {
		return fmt.Errorf("update conformity report: %w", err)
	}
	return requireUpdated("update conformity report", res)
}

func (l *PostgresLedger) ListConformityReports(ctx context.Context) ([]certmodels.ConformityReport, error) {
	query := `SELECT ` + conformityColumns + ` FROM conformity_reports ORDER BY report_date`
	rows, err := l.conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list conformity reports: %w", err)
	}
	defer rows.Close()

	var reports []certmodels.ConformityReport
	for rows.Next() {
		report, err := scanConformityReport(rows)
		if err != nil {
			return nil, fmt.Errorf("list conformity reports: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conformity reports: %w", err)
	}
	return reports, nil
}

func scanConformityReport(row rowScanner) (certmodels.ConformityReport, error) {
	var (
		report    certmodels.ConformityReport
		addrRaw   []byte
		carRaw    []byte
		expertRaw []byte
		ownerRaw  []byte
		reportID  int64
		bump      int16
	)
	err := row.Scan(&addrRaw, &reportID, &carRaw, &expertRaw, &ownerRaw,
		&report.ReportDate, &report.ConformityStatus,
		&report.Modifications, &report.MinesStamp,
		&report.FullReportURI, &report.AcceptedByOwner, &report.Notes, &bump)
	if err != nil {
		return certmodels.ConformityReport{}, err
	}
	copy(report.Address[:], addrRaw)
	copy(report.Car[:], carRaw)
	copy(report.ConformityExpert[:], expertRaw)
	copy(report.CarOwner[:], ownerRaw)
	report.ReportID = uint64(reportID)
	report.Bump = uint8(bump)
	return report, nil
}
