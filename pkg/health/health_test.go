package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveEndpoint(t *testing.T) {
	p := New()
	p.AddLiveness("always-ok", time.Second, func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	p.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLiveEndpoint_FailingCheck(t *testing.T) {
	p := New()
	p.AddLiveness("broken", time.Second, func(context.Context) error {
		return errors.New("component down")
	})

	rec := httptest.NewRecorder()
	p.LiveEndpoint(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "component down", body.Checks["broken"])
}

func TestReadyEndpoint_Gate(t *testing.T) {
	p := New()

	rec := httptest.NewRecorder()
	p.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	p.SetReady(true)
	rec = httptest.NewRecorder()
	p.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	p.SetReady(false)
	rec = httptest.NewRecorder()
	p.ReadyEndpoint(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
