package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newStubStore() *stubStore {
	return &stubStore{data: map[string][]byte{}}
}

func (s *stubStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.data[key]; ok {
		return true, existing, nil
	}
	if response != nil {
		s.data[key] = response
	} else {
		s.data[key] = []byte("processing")
	}
	return false, nil, nil
}

func (s *stubStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = response
	return nil
}

func countingHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":42}`))
	})
}

func TestIdempotencyReplaysCachedResponse(t *testing.T) {
	store := newStubStore()
	var calls int
	h := NewIdempotencyMiddleware(store, time.Minute).Wrap(countingHandler(&calls))

	req := httptest.NewRequest(http.MethodPost, "/api/trading/transactions", strings.NewReader("{}"))
	req.Header.Set(IdempotencyKeyHeader, "key-1")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, calls)

	req2 := httptest.NewRequest(http.MethodPost, "/api/trading/transactions", strings.NewReader("{}"))
	req2.Header.Set(IdempotencyKeyHeader, "key-1")

	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req2)
	assert.Equal(t, 1, calls, "handler must not run twice for the same key")
	assert.JSONEq(t, `{"id":42}`, rec2.Body.String())
	assert.Equal(t, "true", rec2.Header().Get("X-Idempotency-Replay"))
}

func TestIdempotencySkipsReadsAndMissingKey(t *testing.T) {
	store := newStubStore()
	var calls int
	h := NewIdempotencyMiddleware(store, time.Minute).Wrap(countingHandler(&calls))

	get := httptest.NewRequest(http.MethodGet, "/api/trading/transactions/1", nil)
	get.Header.Set(IdempotencyKeyHeader, "key-1")
	h.ServeHTTP(httptest.NewRecorder(), get)

	post := httptest.NewRequest(http.MethodPost, "/api/trading/transactions", strings.NewReader("{}"))
	h.ServeHTTP(httptest.NewRecorder(), post)

	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data["key-1"], "GET must not claim the key")
}

func TestIdempotencyDoesNotCacheFailures(t *testing.T) {
	store := newStubStore()
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad"}`))
	})
	h := NewIdempotencyMiddleware(store, time.Minute).Wrap(failing)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	req.Header.Set(IdempotencyKeyHeader, "key-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	// The claim stays in the processing state, never the error body.
	assert.Equal(t, []byte("processing"), store.data["key-1"])
}
