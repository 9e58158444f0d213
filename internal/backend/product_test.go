package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"janpos/terminal/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, nil, time.Minute), srv
}

func TestLookupPrimaryPopulatesBothKeySets(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/products/4901234567894", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"PRD_ID":42,"CODE":"4901234567894","NAME":"Green Tea","PRICE":150,"tax_rate":0.1,"is_local":1}`))
	}))

	product, err := client.Lookup(context.Background(), "4901234567894")
	require.NoError(t, err)

	assert.Equal(t, int64(42), product.PRDID)
	assert.Equal(t, int64(42), product.ID)
	assert.Equal(t, "4901234567894", product.Code)
	assert.Equal(t, "4901234567894", product.ProductCode)
	assert.Equal(t, "Green Tea", product.Name)
	assert.Equal(t, "Green Tea", product.ProductName)
	assert.Equal(t, int64(150), product.Price)
	assert.Equal(t, int64(150), product.LegacyPrice)
	require.NotNil(t, product.TaxRate)
	assert.InDelta(t, 0.1, *product.TaxRate, 1e-9)
	assert.True(t, product.IsLocal, "numeric is_local must coerce to true")
}

func TestLookupFallsBackToLegacyOnce(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls[r.URL.Path]++
		mu.Unlock()

		switch r.URL.Path {
		case "/api/v1/products/4901234567001":
			http.NotFound(w, r)
		case "/products/4901234567001":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":7,"product_code":"4901234567001","product_name":"Rice Ball","price":120,"is_local":true}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))

	product, err := client.Lookup(context.Background(), "4901234567001")
	require.NoError(t, err)

	// Lv1 keys synthesized from the legacy record.
	assert.Equal(t, int64(7), product.PRDID)
	assert.Equal(t, "Rice Ball", product.Name)
	assert.Equal(t, int64(120), product.Price)
	assert.True(t, product.IsLocal)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls["/api/v1/products/4901234567001"])
	assert.Equal(t, 1, calls["/products/4901234567001"])
}

func TestLookupBothEndpointsMissingIsNotFound(t *testing.T) {
	var mu sync.Mutex
	legacyCalls := 0

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/products/4901234567001" {
			mu.Lock()
			legacyCalls++
			mu.Unlock()
		}
		http.NotFound(w, r)
	}))

	_, err := client.Lookup(context.Background(), "4901234567001")
	require.ErrorIs(t, err, ErrNotFound)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, legacyCalls, "exactly one legacy follow-up before declaring not found")
}

func TestLookupLegacyCodeDefaultsToLookupCode(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/products/4901234567001" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":3,"product_name":"No Code","price":80}`))
			return
		}
		http.NotFound(w, r)
	}))

	product, err := client.Lookup(context.Background(), "4901234567001")
	require.NoError(t, err)
	assert.Equal(t, "4901234567001", product.Code)
	assert.Equal(t, "4901234567001", product.ProductCode)
	assert.False(t, product.IsLocal)
}

func TestLookupServerErrorCarriesDetail(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"master database offline"}`))
	}))

	_, err := client.Lookup(context.Background(), "4901234567894")
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusInternalServerError, serverErr.Status)
	assert.Equal(t, "master database offline", serverErr.Detail)
}

func TestLookupDeadlineExpiryIsTimeout(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Hold the request open until the client gives up.
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := client.Lookup(ctx, "4901234567894")

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout, "deadline expiry must be reported as a timeout, not a plain network failure")
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestLookupTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	client := NewClient(srv.URL, nil, time.Minute)
	_, err := client.Lookup(context.Background(), "4901234567894")

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.False(t, netErr.Timeout)
}

// memoryCache is a test double for the redis-backed product cache.
type memoryCache struct {
	mu    sync.Mutex
	store map[string]domain.Product
}

func (m *memoryCache) Get(_ context.Context, code string) (*domain.Product, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[code]
	if !ok {
		return nil, false, nil
	}
	return &p, true, nil
}

func (m *memoryCache) Set(_ context.Context, code string, p *domain.Product, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		m.store = map[string]domain.Product{}
	}
	m.store[code] = *p
	return nil
}

func TestLookupReadsThroughCache(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"PRD_ID":1,"CODE":"4901234567894","NAME":"Tea","PRICE":150}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, &memoryCache{}, time.Minute)

	first, err := client.Lookup(context.Background(), "4901234567894")
	require.NoError(t, err)
	second, err := client.Lookup(context.Background(), "4901234567894")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits, "second lookup must be served from cache")
}

func TestCoerceBool(t *testing.T) {
	cases := map[string]bool{
		`true`:    true,
		`false`:   false,
		`1`:       true,
		`0`:       false,
		`"yes"`:   true,
		`"0"`:     false,
		`"false"`: false,
		`""`:      false,
		`null`:    false,
	}
	for raw, want := range cases {
		assert.Equal(t, want, coerceBool([]byte(raw)), "coerceBool(%s)", raw)
	}
	assert.False(t, coerceBool(nil))
}
