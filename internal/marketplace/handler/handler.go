// Package handler wires the marketplace endpoints to the marketplace
// service.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carledger/internal/marketplace/models"
	"carledger/internal/marketplace/service"
	registrymodels "carledger/internal/registry/models"
	"carledger/pkg/domain"
	"carledger/pkg/platform/httputil"
	"carledger/pkg/requestcontext"
)

// Service defines the interface for marketplace operations.
type Service interface {
	RequestBuy(ctx context.Context, signer domain.Authority, params service.RequestBuyParams) (models.BuyRequest, error)
	AcceptBuyRequest(ctx context.Context, signer domain.Authority, params service.AcceptBuyParams) (models.BuyRequest, error)
	RejectBuyRequest(ctx context.Context, signer domain.Authority, vin string, buyer domain.Authority) (models.BuyRequest, error)
	TransferCar(ctx context.Context, currentOwner domain.Authority, params service.TransferCarParams) (registrymodels.Car, error)
	GetByKey(ctx context.Context, vin string, buyer domain.Authority) (models.BuyRequest, error)
	List(ctx context.Context, filter service.Filter) ([]models.BuyRequest, error)
}

// Handler is the thin HTTP layer over the marketplace service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a marketplace handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts marketplace endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/buy-requests", h.HandleRequestBuy)
	r.Post("/buy-requests/accept", h.HandleAccept)
	r.Post("/buy-requests/reject", h.HandleReject)
	r.Get("/buy-requests", h.HandleList)
	r.Post("/cars/{vin}/transfer", h.HandleTransfer)
}

// HandleRequestBuy handles POST /buy-requests.
func (h *Handler) HandleRequestBuy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RequestBuyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	request, err := h.service.RequestBuy(ctx, req.ParsedSigner(), service.RequestBuyParams{
		Vin:           req.Vin,
		BuyerUserName: req.BuyerUserName,
		Message:       req.Message,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "buy request failed",
			"request_id", requestID, "vin", req.Vin, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromBuyRequest(request))
}

// HandleAccept handles POST /buy-requests/accept.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AcceptRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	request, err := h.service.AcceptBuyRequest(ctx, req.ParsedSigner(), service.AcceptBuyParams{
		Vin:            req.Vin,
		Buyer:          req.ParsedBuyer(),
		SellerUserName: req.SellerUserName,
		BuyerUserName:  req.BuyerUserName,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "accept buy request failed",
			"request_id", requestID, "vin", req.Vin, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromBuyRequest(request))
}

// HandleReject handles POST /buy-requests/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[DecideRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	request, err := h.service.RejectBuyRequest(ctx, req.ParsedSigner(), req.Vin, req.ParsedBuyer())
	if err != nil {
		h.logger.ErrorContext(ctx, "reject buy request failed",
			"request_id", requestID, "vin", req.Vin, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromBuyRequest(request))
}

// HandleTransfer handles POST /cars/{vin}/transfer.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	vin := chi.URLParam(r, "vin")

	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	car, err := h.service.TransferCar(ctx, req.ParsedSigner(), service.TransferCarParams{
		Vin:              vin,
		NewOwner:         req.ParsedNewOwner(),
		NewOwnerUserName: req.NewOwnerUserName,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "car transfer failed",
			"request_id", requestID, "vin", vin, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromTransferredCar(car))
}

// HandleList handles GET /buy-requests with optional vin, buyer, seller and
// status query filters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	requests, err := h.service.List(ctx, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromBuyRequests(requests))
}
