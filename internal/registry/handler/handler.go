// Package handler wires the vehicle registry endpoints to the registry
// service.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carledger/internal/registry/models"
	"carledger/internal/registry/service"
	"carledger/pkg/domain"
	"carledger/pkg/platform/httputil"
	"carledger/pkg/requestcontext"
)

// Service defines the interface for registry operations.
type Service interface {
	RegisterCar(ctx context.Context, signer domain.Authority, params service.RegisterCarParams) (models.Car, error)
	SetForSale(ctx context.Context, signer domain.Authority, vin string, price uint64) (models.Car, error)
	CancelForSale(ctx context.Context, signer domain.Authority, vin string) (models.Car, error)
	GetByVin(ctx context.Context, vin string) (models.Car, error)
	List(ctx context.Context, filter service.CarFilter) ([]models.Car, error)
	ListForSale(ctx context.Context) ([]models.Car, error)
}

// Handler is the thin HTTP layer over the registry service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a registry handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts registry endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/cars/register", h.HandleRegister)
	r.Post("/cars/{vin}/for-sale", h.HandleSetForSale)
	r.Delete("/cars/{vin}/for-sale", h.HandleCancelForSale)
	r.Get("/cars", h.HandleList)
	r.Get("/cars/for-sale", h.HandleListForSale)
	r.Get("/cars/{vin}", h.HandleGet)
}

// HandleRegister handles POST /cars/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	car, err := h.service.RegisterCar(ctx, req.ParsedSigner(), req.ToParams())
	if err != nil {
		h.logger.ErrorContext(ctx, "car registration failed",
			"request_id", requestID, "vin", req.Vin, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromCar(car))
}

// HandleSetForSale handles POST /cars/{vin}/for-sale.
func (h *Handler) HandleSetForSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	vin := chi.URLParam(r, "vin")

	req, ok := httputil.DecodeAndPrepare[SetForSaleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	car, err := h.service.SetForSale(ctx, req.ParsedSigner(), vin, req.Price)
	if err != nil {
		h.logger.ErrorContext(ctx, "set for sale failed",
			"request_id", requestID, "vin", vin, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromCar(car))
}

// HandleCancelForSale handles DELETE /cars/{vin}/for-sale.
func (h *Handler) HandleCancelForSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	vin := chi.URLParam(r, "vin")

	req, ok := httputil.DecodeAndPrepare[SignedRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	car, err := h.service.CancelForSale(ctx, req.ParsedSigner(), vin)
	if err != nil {
		h.logger.ErrorContext(ctx, "cancel for sale failed",
			"request_id", requestID, "vin", vin, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromCar(car))
}

// HandleGet handles GET /cars/{vin}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	car, err := h.service.GetByVin(ctx, chi.URLParam(r, "vin"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCar(car))
}

// HandleList handles GET /cars with optional owner and for_sale query
// filters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseCarFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	cars, err := h.service.List(ctx, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCars(cars))
}

// HandleListForSale handles GET /cars/for-sale.
func (h *Handler) HandleListForSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cars, err := h.service.ListForSale(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCars(cars))
}
