package middleware

import (
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/poofware/homeservices/backend/shared/go-testhelpers"
	"github.com/poofware/homeservices/backend/shared/go-utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	utils.DiscardLogs()
}

func echoUser(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		utils.RespondWithJSON(w, http.StatusOK, map[string]int64{"user_id": id})
	})
}

func serve(h http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/bk1", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body utils.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Code
}

func signClaims(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	key := testhelpers.NewRSAKey(t)
	h := AuthMiddleware(&key.PublicKey)(echoUser(t))

	rr := serve(h, "Bearer "+testhelpers.CreateUserJWT(t, key, 42, time.Minute))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"user_id":42}`, rr.Body.String())
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	key := testhelpers.NewRSAKey(t)
	other := testhelpers.NewRSAKey(t)
	h := AuthMiddleware(&key.PublicKey)(echoUser(t))
	exp := time.Now().Add(time.Minute).Unix()

	tests := []struct {
		name  string
		authz string
		code  string
	}{
		{"missing header", "", utils.ErrCodeUnauthorized},
		{"not bearer", "Basic abc", utils.ErrCodeUnauthorized},
		{"garbage token", "Bearer not-a-jwt", utils.ErrCodeUnauthorized},
		{"wrong key", "Bearer " + testhelpers.CreateUserJWT(t, other, 42, time.Minute), utils.ErrCodeUnauthorized},
		{"expired", "Bearer " + testhelpers.CreateUserJWT(t, key, 42, -time.Minute), utils.ErrCodeTokenExpired},
		{"wrong issuer", "Bearer " + signClaims(t, key, jwt.MapClaims{"iss": "Other", "sub": "42", "exp": exp}), utils.ErrCodeUnauthorized},
		{"no expiry", "Bearer " + signClaims(t, key, jwt.MapClaims{"iss": TokenIssuer, "sub": "42"}), utils.ErrCodeUnauthorized},
		{"missing subject", "Bearer " + signClaims(t, key, jwt.MapClaims{"iss": TokenIssuer, "exp": exp}), utils.ErrCodeUnauthorized},
		{"non numeric subject", "Bearer " + signClaims(t, key, jwt.MapClaims{"iss": TokenIssuer, "sub": "abc", "exp": exp}), utils.ErrCodeUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(h, tt.authz)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, tt.code, errorCode(t, rr))
		})
	}
}

func TestValidateToken_NoKey(t *testing.T) {
	_, err := ValidateToken("x.y.z", nil)
	assert.Error(t, err)
}
