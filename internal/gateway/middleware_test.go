package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soyeahso/agentclick/internal/logging"
)

func serveInstrumented(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	instrument(h, logging.New(nil, "silent")).ServeHTTP(rr, req)
	return rr
}

func TestInstrumentPassesThrough(t *testing.T) {
	rr := serveInstrumented(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("ok"))
	}, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))
}

func TestInstrumentKeepsCallerRequestID(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/state", nil)
	req.Header.Set(requestIDHeader, "hotkey-42")
	rr := serveInstrumented(func(http.ResponseWriter, *http.Request) {}, req)
	assert.Equal(t, "hotkey-42", rr.Header().Get(requestIDHeader))
}

func TestInstrumentRecoversPanic(t *testing.T) {
	rr := serveInstrumented(func(http.ResponseWriter, *http.Request) { panic("boom") },
		httptest.NewRequest("POST", "/v1/hotkeys/run", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), `"code":"internal"`)
}

func TestInstrumentPanicAfterWriteKeepsStatus(t *testing.T) {
	rr := serveInstrumented(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late")
	}, httptest.NewRequest("POST", "/v1/hotkeys/run", nil))
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Empty(t, rr.Body.String())
}
