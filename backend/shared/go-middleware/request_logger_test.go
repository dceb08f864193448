package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/poofware/homeservices/backend/shared/go-utils"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLogger_LogsRouteTemplate(t *testing.T) {
	hook := test.NewLocal(utils.Logger)
	prev := utils.Logger.GetLevel()
	utils.Logger.SetLevel(logrus.DebugLevel)
	t.Cleanup(func() {
		utils.Logger.SetLevel(prev)
		hook.Reset()
	})

	r := mux.NewRouter()
	r.Use(RequestLogger)
	r.HandleFunc("/api/v1/bookings/{booking_id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/bk1700000000", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "/api/v1/bookings/{booking_id}", entry.Data["path"])
	assert.Equal(t, http.StatusBadGateway, entry.Data["status"])
	assert.Equal(t, "203.0.113.7", entry.Data["client_ip"])
	assert.Equal(t, "web", entry.Data["platform"])
}
