package sportsfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSONRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"games":[]}`))
	}))
	defer srv.Close()

	origDelays := retryDelays
	retryDelays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	defer func() { retryDelays = origDelays }()

	c := NewClient(srv.URL, "")
	games, err := c.GamesForDate(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, games)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetJSONExhaustsRetriesAndFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	origDelays := retryDelays
	retryDelays = []time.Duration{time.Millisecond, time.Millisecond}
	defer func() { retryDelays = origDelays }()

	c := NewClient(srv.URL, "")
	_, err := c.GamesForDate(context.Background(), time.Now())
	assert.Error(t, err)
}

func TestGetJSONHonorsRetryAfter(t *testing.T) {
	var calls int32
	var firstCallAt, secondCallAt time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			firstCallAt = time.Now()
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		secondCallAt = time.Now()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"games":[]}`))
	}))
	defer srv.Close()

	origDelays := retryDelays
	retryDelays = []time.Duration{time.Millisecond}
	defer func() { retryDelays = origDelays }()

	c := NewClient(srv.URL, "")
	_, err := c.GamesForDate(context.Background(), time.Now())
	require.NoError(t, err)
	assert.False(t, firstCallAt.IsZero())
	assert.False(t, secondCallAt.IsZero())
}
