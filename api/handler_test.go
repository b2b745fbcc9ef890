package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tatkal-search/admission"
	"tatkal-search/cache"
	"tatkal-search/cacheaside"
	"tatkal-search/store"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	rows    []store.Row
	err     error
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (f *fakeStore) Query(ctx context.Context, q store.Query) ([]store.Row, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

// failingSetCache reads like a normal memory cache but refuses every write.
type failingSetCache struct{ *cache.Memory }

func (failingSetCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("redis: OOM command not allowed")
}

var threeRows = []store.Row{
	{TrainNumber: "12951", TrainName: "Rajdhani Express", Class: "3A", Availability: "WL/23", Departure: "16:55", Fare: 2890},
	{TrainNumber: "12953", TrainName: "August Kranti Rajdhani", Class: "2A", Availability: "RAC/4", Departure: "17:40", Fare: 4120},
	{TrainNumber: "22209", TrainName: "Duronto Express", Class: "SL", Availability: "AVAILABLE-012", Departure: "23:00", Fare: 980},
}

type fixture struct {
	router    *mux.Router
	admission *admission.Controller
	reader    *cacheaside.Reader
	cache     cache.Client
	store     *fakeStore
}

func newFixture(max int64, c cache.Client, s *fakeStore) *fixture {
	a := admission.NewController(max)
	r := cacheaside.NewReader(c, cacheaside.Options{TTL: 30 * time.Second, StoreTimeout: time.Second})
	h := NewHandler(a, r, s)
	h.now = func() time.Time { return time.Date(2024, 12, 25, 8, 0, 0, 0, time.UTC) }
	router := NewRouter()
	h.Register(router)
	return &fixture{router: router, admission: a, reader: r, cache: c, store: s}
}

func (f *fixture) get(t *testing.T, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %#v", rec.Body.String(), err)
	}
	return rec, body
}

func TestSearch_StoreThenCache(t *testing.T) {
	mem := cache.NewMemory(time.Minute, time.Minute)
	f := newFixture(10, mem, &fakeStore{rows: threeRows})

	rec, body := f.get(t, "/search?from=DEL&to=MUM&date=2024-12-25")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "store", body["source"])
	assert.Len(t, body["data"], 3)
	assert.Contains(t, body, "latency")

	l, err := mem.Get(context.Background(), "search:DEL-MUM:2024-12-25")
	require.NoError(t, err)
	assert.True(t, l.IsHit(), "store result must be cached under the route/date key")

	rec2, body2 := f.get(t, "/search?from=DEL&to=MUM&date=2024-12-25")
	require.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, "cache", body2["source"])
	assert.Equal(t, body["data"], body2["data"])
	assert.EqualValues(t, 1, f.store.calls.Load())
	assert.EqualValues(t, 0, f.admission.Inflight())
}

func TestSearch_ImmediateRepeatServedFromCache(t *testing.T) {
	f := newFixture(10, cache.NewMemory(time.Minute, time.Minute), &fakeStore{rows: threeRows})
	routes := []string{"DEL", "MUM", "BLR", "MAS", "HWH", "SBC", "NDLS", "CSMT"}

	repeats := 0
	for _, from := range routes {
		for _, to := range routes {
			if from == to {
				continue
			}
			for day := 1; day <= 5; day++ {
				target := fmt.Sprintf("/search?from=%s&to=%s&date=2024-12-%02d", from, to, day)
				_, first := f.get(t, target)
				require.Equal(t, "store", first["source"], target)
				_, second := f.get(t, target)
				assert.Equal(t, "cache", second["source"], target)
				repeats++
			}
		}
	}
	assert.EqualValues(t, repeats, f.store.calls.Load(), "each route/date reaches the store once")
}

func TestSearch_Validation(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		wantMsg string
	}{
		{name: "missing to", target: "/search?from=DEL&date=2024-12-25", wantMsg: "Missing from/to parameters"},
		{name: "missing from", target: "/search?to=MUM", wantMsg: "Missing from/to parameters"},
		{name: "missing both", target: "/search", wantMsg: "Missing from/to parameters"},
		{name: "bad date", target: "/search?from=DEL&to=MUM&date=25-12-2024", wantMsg: "Invalid date parameter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(1, cache.NewMemory(time.Minute, time.Minute), &fakeStore{rows: threeRows})
			// Hold the only permit: a validation failure must answer 400, not 503.
			p, err := f.admission.TryEnter()
			require.NoError(t, err)
			defer p.Leave()

			rec, body := f.get(t, tt.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, map[string]any{"error": tt.wantMsg}, body)
			assert.EqualValues(t, 1, f.admission.Inflight(), "validation must not touch the counter")
			assert.EqualValues(t, 0, f.store.calls.Load())
		})
	}
}

func TestSearch_DefaultDate(t *testing.T) {
	mem := cache.NewMemory(time.Minute, time.Minute)
	f := newFixture(10, mem, &fakeStore{rows: threeRows})

	rec, _ := f.get(t, "/search?from=DEL&to=MUM")
	require.Equal(t, http.StatusOK, rec.Code)

	l, _ := mem.Get(context.Background(), "search:DEL-MUM:2024-12-25")
	assert.True(t, l.IsHit())
}

func TestSearch_CacheWriteFailureStillServes(t *testing.T) {
	c := failingSetCache{cache.NewMemory(time.Minute, time.Minute)}
	f := newFixture(10, c, &fakeStore{rows: threeRows})

	rec, body := f.get(t, "/search?from=DEL&to=MUM&date=2024-12-25")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "store", body["source"])
	assert.Len(t, body["data"], 3)
}

func TestSearch_StoreFailureReleasesPermit(t *testing.T) {
	f := newFixture(5, cache.NewMemory(time.Minute, time.Minute), &fakeStore{err: errors.New("store unavailable")})
	before := f.admission.Inflight()

	rec, body := f.get(t, "/search?from=DEL&to=MUM&date=2024-12-25")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]any{"error": "Internal server error"}, body)
	assert.Equal(t, before, f.admission.Inflight())
}

func TestSearch_Backpressure(t *testing.T) {
	s := &fakeStore{rows: threeRows, entered: make(chan struct{}, 3), release: make(chan struct{})}
	f := newFixture(2, cache.Disabled{}, s)

	type outcome struct {
		code int
		body map[string]any
	}
	results := make(chan outcome, 3)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, body := f.get(t, "/search?from=DEL&to=MUM&date=2024-12-25")
			results <- outcome{rec.Code, body}
		}()
	}
	<-s.entered
	<-s.entered
	require.EqualValues(t, 2, f.admission.Inflight())

	rec, body := f.get(t, "/search?from=DEL&to=MUM&date=2024-12-25")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "System busy", body["error"])
	assert.Equal(t, "backpressure", body["reason"])
	assert.Equal(t, float64(2), body["inflight"])

	close(s.release)
	wg.Wait()
	close(results)
	for res := range results {
		assert.Equal(t, http.StatusOK, res.code)
	}
	assert.EqualValues(t, 0, f.admission.Inflight())
	assert.EqualValues(t, 2, s.calls.Load())
}

func TestSearch_StoreTimeoutReleasesPermit(t *testing.T) {
	s := &fakeStore{rows: threeRows, release: make(chan struct{})}
	a := admission.NewController(1)
	r := cacheaside.NewReader(cache.Disabled{}, cacheaside.Options{TTL: time.Minute, StoreTimeout: 20 * time.Millisecond})
	router := NewRouter()
	NewHandler(a, r, s).Register(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?from=DEL&to=MUM&date=2024-12-25", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.EqualValues(t, 0, a.Inflight())
}

func TestSearch_MethodNotAllowed(t *testing.T) {
	f := newFixture(1, cache.Disabled{}, &fakeStore{})
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/search?from=DEL&to=MUM", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
