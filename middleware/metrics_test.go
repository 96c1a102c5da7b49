package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observation struct {
	method string
	route  string
	status int
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recordingObserver) ObserveHTTPRequest(method, route string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{method, route, status})
}

func TestInstrument(t *testing.T) {
	observer := &recordingObserver{}

	r := chi.NewRouter()
	r.Use(Instrument(observer))
	r.Delete("/api/chat/history/{logId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodDelete, "/api/chat/history/abc", nil),
		httptest.NewRequest(http.MethodGet, "/healthz", nil),
		httptest.NewRequest(http.MethodGet, "/nowhere", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.Len(t, observer.obs, 3)
	assert.Equal(t, observation{http.MethodDelete, "/api/chat/history/{logId}", http.StatusNotFound}, observer.obs[0])
	assert.Equal(t, observation{http.MethodGet, "/healthz", http.StatusOK}, observer.obs[1])
	assert.Equal(t, unmatchedRoute, observer.obs[2].route)
	assert.Equal(t, http.StatusNotFound, observer.obs[2].status)
}
