// Package handler wires the identity endpoints to the identity service.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carledger/internal/identity/models"
	"carledger/internal/identity/service"
	"carledger/internal/ledger/address"
	"carledger/pkg/domain"
	"carledger/pkg/ledgererrors"
	"carledger/pkg/platform/httputil"
	"carledger/pkg/requestcontext"
)

// Service defines the interface for identity operations.
type Service interface {
	RegisterUser(ctx context.Context, signer domain.Authority, params service.RegisterUserParams) (models.User, error)
	VerifyUser(ctx context.Context, signer domain.Authority, userAuthority domain.Authority, userName string, approve bool) (models.User, error)
	Get(ctx context.Context, addr address.Address) (models.User, error)
	List(ctx context.Context, filter service.UserFilter) ([]models.User, error)
}

// Handler is the thin HTTP layer over the identity service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an identity handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts identity endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/users/register", h.HandleRegister)
	r.Post("/users/verify", h.HandleVerify)
	r.Get("/users", h.HandleList)
	r.Get("/users/{address}", h.HandleGet)
}

// HandleRegister handles POST /users/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	user, err := h.service.RegisterUser(ctx, req.ParsedSigner(), service.RegisterUserParams{
		UserName:            req.UserName,
		PublicDataURI:       req.PublicDataURI,
		PrivateDataURI:      req.PrivateDataURI,
		EncryptedKeyForGov:  req.EncryptedKeyForGov,
		EncryptedKeyForUser: req.EncryptedKeyForUser,
		Role:                req.ParsedRole(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "user registration failed",
			"request_id", requestID, "user_name", req.UserName, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromUser(user))
}

// HandleVerify handles POST /users/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	user, err := h.service.VerifyUser(ctx, req.ParsedSigner(), req.ParsedUserAuthority(), req.UserName, req.Approve)
	if err != nil {
		h.logger.ErrorContext(ctx, "user verification failed",
			"request_id", requestID, "user_name", req.UserName, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromUser(user))
}

// HandleGet handles GET /users/{address}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	addr, err := address.Parse(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, ledgererrors.Wrap(ledgererrors.CodeInvalidInput, "invalid address", err))
		return
	}

	user, err := h.service.Get(ctx, addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromUser(user))
}

// HandleList handles GET /users with optional role, status and authority
// query filters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseUserFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	users, err := h.service.List(ctx, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromUsers(users))
}
