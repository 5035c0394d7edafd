// Package httputil centralizes JSON encoding and domain error translation
// for HTTP handlers so every endpoint speaks the same envelope.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"carledger/pkg/ledgererrors"
)

// maxBodyBytes bounds request bodies; record payloads are small.
const maxBodyBytes = 1 << 20

// Validatable is implemented by request DTOs that validate and parse
// themselves after decoding.
type Validatable interface {
	Validate() error
}

type validatablePtr[T any] interface {
	Validatable
	*T
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope. The
// description is omitted for internal errors so storage details stay out of
// responses.
func WriteError(w http.ResponseWriter, err error) {
	code := ledgererrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	var lerr *ledgererrors.LedgerError
	if code != ledgererrors.CodeInternal && errors.As(err, &lerr) && lerr.Message != "" {
		body["error_description"] = lerr.Message
	}
	WriteJSON(w, ledgererrors.ToHTTPStatus(code), body)
}

// DecodeAndPrepare decodes the request body into T and runs its Validate.
// On failure it writes the error response and returns ok=false.
func DecodeAndPrepare[T any, PT validatablePtr[T]](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (PT, bool) {
	var value T
	ptr := PT(&value)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(ptr); err != nil {
		logger.WarnContext(ctx, "malformed request body", "request_id", requestID, "error", err)
		WriteError(w, ledgererrors.New(ledgererrors.CodeInvalidInput, "malformed request body"))
		return nil, false
	}
	if err := ptr.Validate(); err != nil {
		logger.WarnContext(ctx, "invalid request", "request_id", requestID, "error", err)
		WriteError(w, err)
		return nil, false
	}
	return ptr, true
}
