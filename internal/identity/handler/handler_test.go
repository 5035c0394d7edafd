package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"carledger/internal/identity/handler/mocks"
	"carledger/internal/identity/models"
	"carledger/internal/identity/service"
	"carledger/pkg/domain"
	"carledger/pkg/ledgererrors"
)

//go:generate mockgen -source=handler.go -destination=mocks/identity-mocks.go -package=mocks Service
type IdentityHandlerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *IdentityHandlerSuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestIdentityHandlerSuite(t *testing.T) {
	suite.Run(t, new(IdentityHandlerSuite))
}

func newTestHandler(t *testing.T) (*chi.Mux, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(mockService, logger).Register(r)
	return r, mockService
}

const (
	signerHex = "0000000000000000000000000000000000000000000000000000000000000001"
	govHex    = "00000000000000000000000000000000000000000000000000000000000000ff"
)

func sampleUser(t *testing.T, name string) models.User {
	t.Helper()
	authority := domain.MustAuthority(signerHex)
	addr, bump, err := models.UserAddress(authority, name)
	require.NoError(t, err)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return models.User{
		Address:            addr,
		Authority:          authority,
		UserName:           name,
		Role:               domain.RoleRegularUser,
		VerificationStatus: domain.VerificationPending,
		CreatedAt:          now,
		UpdatedAt:          now,
		Bump:               bump,
	}
}

func (s *IdentityHandlerSuite) TestHandleRegister() {
	router, mockService := newTestHandler(s.T())
	user := sampleUser(s.T(), "alice")

	mockService.EXPECT().RegisterUser(
		gomock.Any(),
		domain.MustAuthority(signerHex),
		service.RegisterUserParams{UserName: "alice", Role: domain.RoleRegularUser},
	).Return(user, nil)

	body, err := json.Marshal(map[string]string{
		"signer":    signerHex,
		"user_name": "alice",
		"role":      "regular_user",
	})
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/users/register", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusCreated, w.Code)
	var resp UserResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), user.Address.String(), resp.Address)
	assert.Equal(s.T(), "pending", resp.VerificationStatus)
	assert.Empty(s.T(), resp.VerifiedBy)
}

func (s *IdentityHandlerSuite) TestHandleRegisterRejectsBadBody() {
	router, _ := newTestHandler(s.T())

	for name, body := range map[string]string{
		"malformed json": `{`,
		"missing signer": `{"user_name":"alice","role":"regular_user"}`,
		"bad role":       `{"signer":"` + signerHex + `","user_name":"alice","role":"royalty"}`,
	} {
		s.Run(name, func() {
			req := httptest.NewRequest(http.MethodPost, "/users/register", bytes.NewReader([]byte(body)))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(s.T(), http.StatusBadRequest, w.Code)
			var resp map[string]string
			require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(s.T(), "invalid_input", resp["error"])
		})
	}
}

func (s *IdentityHandlerSuite) TestHandleVerify() {
	router, mockService := newTestHandler(s.T())
	user := sampleUser(s.T(), "alice")
	user.VerificationStatus = domain.VerificationVerified

	mockService.EXPECT().VerifyUser(
		gomock.Any(),
		domain.MustAuthority(govHex),
		domain.MustAuthority(signerHex),
		"alice",
		true,
	).Return(user, nil)

	body := `{"signer":"` + govHex + `","user_authority":"` + signerHex + `","user_name":"alice","approve":true}`
	req := httptest.NewRequest(http.MethodPost, "/users/verify", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp UserResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "verified", resp.VerificationStatus)
}

func (s *IdentityHandlerSuite) TestHandleVerifyMapsTaxonomyErrors() {
	router, mockService := newTestHandler(s.T())

	mockService.EXPECT().VerifyUser(gomock.Any(), gomock.Any(), gomock.Any(), "alice", false).
		Return(models.User{}, ledgererrors.New(ledgererrors.CodeUnauthorized, "only the government authority may verify users"))

	body := `{"signer":"` + signerHex + `","user_authority":"` + signerHex + `","user_name":"alice","approve":false}`
	req := httptest.NewRequest(http.MethodPost, "/users/verify", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusForbidden, w.Code)
	var resp map[string]string
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "unauthorized", resp["error"])
}

func (s *IdentityHandlerSuite) TestHandleGet() {
	router, mockService := newTestHandler(s.T())
	user := sampleUser(s.T(), "alice")

	mockService.EXPECT().Get(gomock.Any(), user.Address).Return(user, nil)

	req := httptest.NewRequest(http.MethodGet, "/users/"+user.Address.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)

	s.Run("invalid address is a bad request", func() {
		req := httptest.NewRequest(http.MethodGet, "/users/not-an-address", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	})
}

func (s *IdentityHandlerSuite) TestHandleList() {
	router, mockService := newTestHandler(s.T())
	user := sampleUser(s.T(), "alice")
	role := domain.RoleRegularUser

	mockService.EXPECT().List(gomock.Any(), service.UserFilter{Role: &role}).
		Return([]models.User{user}, nil)

	req := httptest.NewRequest(http.MethodGet, "/users?role=regular_user", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	var resp []UserResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(s.T(), resp, 1)
	assert.Equal(s.T(), "alice", resp[0].UserName)

	s.Run("unknown role filter is rejected", func() {
		req := httptest.NewRequest(http.MethodGet, "/users?role=royalty", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	})
}
