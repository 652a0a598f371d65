package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRouter(t *testing.T) (*ServiceRouter, *Manager) {
	m := testManager(t)
	router, err := NewServiceRouter(ServiceOptions{
		CatalogManager: m,
		Logger:         zap.NewNop(),
	})
	require.NoError(t, err)
	return router, m
}

type listEnvelope struct {
	Success bool      `json:"success"`
	Result  []Service `json:"result"`
}

func TestListServicesShowsActiveOnly(t *testing.T) {
	router, m := testRouter(t)

	seedService(t, m, "Bulk SMS", TypeSMS, true)
	seedService(t, m, "Legacy USSD", TypeUSSD, false)

	rec := httptest.NewRecorder()
	router.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body listEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.True(t, body.Success)
	require.Len(t, body.Result, 1)
	require.Equal(t, "Bulk SMS", body.Result[0].Name)

	rec = httptest.NewRecorder()
	router.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/?all=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Result, 2)
}

type serviceEnvelope struct {
	Success bool    `json:"success"`
	Result  Service `json:"result"`
}

func TestNewServiceEndpoint(t *testing.T) {
	router, m := testRouter(t)

	payload := `{"name":"Surveys","type":"survey","setupFee":{"amountInCents":250000,"currency":"kes"}}`
	rec := httptest.NewRecorder()
	router.AdminRouter().ServeHTTP(rec, httptest.NewRequest("POST", "/", strings.NewReader(payload)))
	require.Equal(t, http.StatusOK, rec.Code)

	var body serviceEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.True(t, body.Success)
	require.NotEmpty(t, body.Result.ID)
	require.True(t, body.Result.IsActive)

	stored, err := m.GetByID(context.Background(), body.Result.ID)
	require.NoError(t, err)
	require.Equal(t, TypeSurvey, stored.Type)
}

func TestNewServiceEndpointRejectsUnknownType(t *testing.T) {
	router, _ := testRouter(t)

	payload := `{"name":"Carrier Pigeon","type":"pigeon"}`
	rec := httptest.NewRecorder()
	router.AdminRouter().ServeHTTP(rec, httptest.NewRequest("POST", "/", strings.NewReader(payload)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
