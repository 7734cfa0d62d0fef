package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pricedesk-api/internal/cache"
	"pricedesk-api/internal/model"
	"pricedesk-api/internal/repository"
	"pricedesk-api/internal/upstream"
)

// pricingStub serves the offer listing, global product details, offer
// updates and the identity endpoints behind one test server.
type pricingStub struct {
	mu sync.Mutex

	offers  []model.ProductOffer
	details map[int64]model.GlobalProduct

	// detailFails[gid] = number of detail requests to fail before succeeding.
	detailFails map[int64]int

	// updateStatuses[id] = queued non-200 statuses returned before updates
	// start succeeding.
	updateStatuses map[string][]int

	updateCalls   map[string]int
	updatedPrices map[string][]float64

	signIns     int
	refreshes   int
	refreshFail bool
}

func newPricingStub() *pricingStub {
	return &pricingStub{
		details:        make(map[int64]model.GlobalProduct),
		detailFails:    make(map[int64]int),
		updateStatuses: make(map[string][]int),
		updateCalls:    make(map[string]int),
		updatedPrices:  make(map[string][]float64),
	}
}

func (s *pricingStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/product_offers":
			json.NewEncoder(w).Encode(model.OfferPage{
				Data: s.offers,
				Meta: model.PageMeta{Page: 1, TotalPages: 1, TotalEntries: len(s.offers)},
			})

		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/products/"):
			gid, _ := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/products/"), 10, 64)
			if s.detailFails[gid] > 0 {
				s.detailFails[gid]--
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			detail, ok := s.details[gid]
			if !ok {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(detail)

		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/product_offers/"):
			id := strings.TrimPrefix(r.URL.Path, "/product_offers/")
			s.updateCalls[id]++

			if queue := s.updateStatuses[id]; len(queue) > 0 {
				status := queue[0]
				s.updateStatuses[id] = queue[1:]
				w.WriteHeader(status)
				return
			}

			var update model.OfferUpdate
			json.NewDecoder(r.Body).Decode(&update)
			offer := testOffer(id, 0, "updated", 0)
			if update.RetailPrice != nil {
				offer.Attributes.RetailPrice = *update.RetailPrice
				s.updatedPrices[id] = append(s.updatedPrices[id], *update.RetailPrice)
			}
			json.NewEncoder(w).Encode(map[string]model.ProductOffer{"data": offer})

		case r.Method == http.MethodPost && r.URL.Path == "/auth/sign-in":
			s.signIns++
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "signed-in-token",
				"refresh_token": "signed-in-refresh",
				"expires_in":    3600,
			})

		case r.Method == http.MethodPost && r.URL.Path == "/auth/refresh":
			s.refreshes++
			if s.refreshFail {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "refreshed-token",
				"refresh_token": "refreshed-refresh",
				"expires_in":    3600,
			})

		default:
			http.NotFound(w, r)
		}
	})
}

func (s *pricingStub) calls(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateCalls[id]
}

func (s *pricingStub) prices(id string) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.updatedPrices[id]...)
}

func globalDetail(price float64, sellerID int64) model.GlobalProduct {
	return model.GlobalProduct{
		DefaultOffer: &model.GlobalDefaultOffer{
			RetailPrice: price,
			Seller:      &model.Seller{ID: sellerID, Name: "seller"},
		},
	}
}

// fakeRunLog records inserted runs.
type fakeRunLog struct {
	mu   sync.Mutex
	runs []model.PriceRun
}

func (f *fakeRunLog) Insert(ctx context.Context, run *model.PriceRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *run)
	return nil
}

func (f *fakeRunLog) List(ctx context.Context, limit, offset int) ([]model.PriceRun, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.PriceRun(nil), f.runs...), int64(len(f.runs)), nil
}

func (f *fakeRunLog) Close() error { return nil }

func newPricingHarness(t *testing.T, stub *pricingStub, floors *fakeFloorRepo, runs *fakeRunLog) *PriceService {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	tokens := NewTokenStore("svc", "secret")
	expires := time.Now().Add(time.Hour)
	tokens.Update(model.TokenUpdate{
		AccessToken:  strPtr("initial-token"),
		RefreshToken: strPtr("initial-refresh"),
		ExpiresAt:    &expires,
	})

	sessions := cache.NewMemoryCache()
	t.Cleanup(func() { sessions.Close() })

	client := upstream.New(srv.URL, 5*time.Second, tokens)
	auth := NewAuthManager(srv.URL, 5*time.Second, tokens, sessions, map[string]string{"admin": "admin"})

	catalog := NewCatalogService(CatalogConfig{CatalogURL: srv.URL, PerPage: 100}, client, floors)
	_, err := catalog.LoadAll(context.Background())
	require.NoError(t, err)

	var runRepo repository.RunLogRepository
	if runs != nil {
		runRepo = runs
	}

	pricing := NewPriceService(PricingConfig{
		GlobalURL:        srv.URL,
		ExcludedSellerID: 1044,
		MaxRetries:       2,
		BaseDelay:        time.Millisecond,
		BatchSize:        20,
		BatchPause:       time.Millisecond,
		RecoveryPause:    time.Millisecond,
	}, catalog, client, auth, tokens, floors, runRepo)

	return pricing
}

func TestBulkUpdateVerdicts(t *testing.T) {
	stub := newPricingStub()
	stub.offers = []model.ProductOffer{
		testOffer("plain", 11, "Plain", 100),
		testOffer("excluded", 12, "Excluded", 100),
		testOffer("no-global", 0, "NoGlobal", 100),
		testOffer("floored", 14, "Floored", 100),
		testOffer("flaky", 15, "Flaky", 100),
	}
	stub.details[11] = globalDetail(100, 7)
	stub.details[12] = globalDetail(100, 1044)
	stub.details[14] = globalDetail(100, 7)
	stub.details[15] = globalDetail(100, 7)
	// First detail lookup for the flaky product fails; the run must still
	// attempt the update.
	stub.detailFails[15] = 1

	floors := newFakeFloorRepo()
	pricing := newPricingHarness(t, stub, floors, nil)

	// Raise the floor for one offer above its adjusted price.
	floors.set(model.FloorEntry{ID: "floored", MinimumPriceLimit: 200})

	ids := []string{"plain", "excluded", "no-global", "floored", "flaky", "ghost"}
	result, err := pricing.BulkUpdate(context.Background(), 10, ids, "manual")
	require.NoError(t, err)

	require.Equal(t, 6, result.Total)
	require.Equal(t, 2, result.Success)
	require.Equal(t, 2, result.Skipped)
	require.Equal(t, 1, result.BelowLimit)
	require.Equal(t, 1, result.Failed)
	require.Equal(t, result.Total, result.Success+result.Failed+result.Skipped+result.BelowLimit)

	require.Equal(t, []string{"ghost"}, result.FailedIDs)
	require.Equal(t, []string{"floored"}, result.BelowLimitIDs)

	// New price derives from the global detail price, not the cached offer.
	require.Equal(t, []float64{110}, stub.prices("plain"))
	require.Equal(t, []float64{110}, stub.prices("flaky"))

	// Skipped and floored offers never reach the update endpoint.
	require.Zero(t, stub.calls("excluded"))
	require.Zero(t, stub.calls("no-global"))
	require.Zero(t, stub.calls("floored"))
}

func TestBulkUpdateFloorNeverViolated(t *testing.T) {
	stub := newPricingStub()
	stub.offers = []model.ProductOffer{testOffer("a", 11, "Alpha", 100)}
	stub.details[11] = globalDetail(100, 7)

	floors := newFakeFloorRepo()
	pricing := newPricingHarness(t, stub, floors, nil)
	floors.set(model.FloorEntry{ID: "a", MinimumPriceLimit: 95})

	result, err := pricing.BulkUpdate(context.Background(), -10, []string{"a"}, "manual")
	require.NoError(t, err)

	require.Equal(t, 1, result.BelowLimit)
	require.Zero(t, result.Success)
	require.Zero(t, stub.calls("a"))
}

func TestBulkUpdateRateLimitRecoveryIsFree(t *testing.T) {
	stub := newPricingStub()
	stub.offers = []model.ProductOffer{testOffer("a", 11, "Alpha", 100)}
	stub.details[11] = globalDetail(100, 7)
	// More consecutive 429s than MaxRetries allows: they must not count
	// as retry attempts.
	stub.updateStatuses["a"] = []int{429, 429, 429, 429}

	pricing := newPricingHarness(t, stub, newFakeFloorRepo(), nil)

	result, err := pricing.BulkUpdate(context.Background(), 10, []string{"a"}, "manual")
	require.NoError(t, err)

	require.Equal(t, 1, result.Success)
	require.Zero(t, result.Failed)
	require.Equal(t, 5, stub.calls("a"))

	stub.mu.Lock()
	refreshes := stub.refreshes
	stub.mu.Unlock()
	require.Equal(t, 4, refreshes)
}

func TestBulkUpdateRateLimitFallsBackToSignIn(t *testing.T) {
	stub := newPricingStub()
	stub.offers = []model.ProductOffer{testOffer("a", 11, "Alpha", 100)}
	stub.details[11] = globalDetail(100, 7)
	stub.updateStatuses["a"] = []int{429}
	stub.refreshFail = true

	pricing := newPricingHarness(t, stub, newFakeFloorRepo(), nil)

	result, err := pricing.BulkUpdate(context.Background(), 10, []string{"a"}, "manual")
	require.NoError(t, err)

	require.Equal(t, 1, result.Success)

	stub.mu.Lock()
	signIns := stub.signIns
	stub.mu.Unlock()
	require.Equal(t, 1, signIns)
}

func TestBulkUpdateRetriesThenFails(t *testing.T) {
	stub := newPricingStub()
	stub.offers = []model.ProductOffer{testOffer("a", 11, "Alpha", 100)}
	stub.details[11] = globalDetail(100, 7)
	stub.updateStatuses["a"] = []int{500, 500, 500}

	pricing := newPricingHarness(t, stub, newFakeFloorRepo(), nil)

	result, err := pricing.BulkUpdate(context.Background(), 10, []string{"a"}, "manual")
	require.NoError(t, err)

	require.Equal(t, 1, result.Failed)
	require.Equal(t, []string{"a"}, result.FailedIDs)
	// Initial attempt plus MaxRetries.
	require.Equal(t, 3, stub.calls("a"))
}

func TestBulkUpdateRetriesThenSucceeds(t *testing.T) {
	stub := newPricingStub()
	stub.offers = []model.ProductOffer{testOffer("a", 11, "Alpha", 100)}
	stub.details[11] = globalDetail(100, 7)
	stub.updateStatuses["a"] = []int{500}

	pricing := newPricingHarness(t, stub, newFakeFloorRepo(), nil)

	result, err := pricing.BulkUpdate(context.Background(), 10, []string{"a"}, "manual")
	require.NoError(t, err)

	require.Equal(t, 1, result.Success)
	require.Equal(t, 2, stub.calls("a"))
}

func TestBulkUpdateAllOffersWhenNoIDsGiven(t *testing.T) {
	stub := newPricingStub()
	stub.offers = []model.ProductOffer{
		testOffer("a", 11, "Alpha", 100),
		testOffer("b", 12, "Beta", 100),
	}
	stub.details[11] = globalDetail(100, 7)
	stub.details[12] = globalDetail(100, 7)

	pricing := newPricingHarness(t, stub, newFakeFloorRepo(), nil)

	result, err := pricing.BulkUpdate(context.Background(), 10, nil, "manual")
	require.NoError(t, err)

	require.Equal(t, 2, result.Total)
	require.Equal(t, 2, result.Success)
}

func TestBulkUpdateRejectsInvalidAdjustment(t *testing.T) {
	stub := newPricingStub()
	pricing := newPricingHarness(t, stub, newFakeFloorRepo(), nil)

	_, err := pricing.BulkUpdate(context.Background(), 0, nil, "manual")
	require.Error(t, err)
}

func TestBulkUpdateRecordsRun(t *testing.T) {
	stub := newPricingStub()
	stub.offers = []model.ProductOffer{testOffer("a", 11, "Alpha", 100)}
	stub.details[11] = globalDetail(100, 7)

	runs := &fakeRunLog{}
	pricing := newPricingHarness(t, stub, newFakeFloorRepo(), runs)

	_, err := pricing.BulkUpdate(context.Background(), 10, []string{"a"}, "schedule")
	require.NoError(t, err)

	runs.mu.Lock()
	defer runs.mu.Unlock()
	require.Len(t, runs.runs, 1)
	require.Equal(t, "schedule", runs.runs[0].Trigger)
	require.Equal(t, 10.0, runs.runs[0].Adjustment)
	require.Equal(t, 1, runs.runs[0].Success)
	require.Equal(t, 1, runs.runs[0].Total)
}

func TestBulkUpdateFloorLoadFailureIsFailOpen(t *testing.T) {
	stub := newPricingStub()
	stub.offers = []model.ProductOffer{testOffer("a", 11, "Alpha", 100)}
	stub.details[11] = globalDetail(100, 7)

	floors := newFakeFloorRepo()
	pricing := newPricingHarness(t, stub, floors, nil)

	// Break the floor table only after the harness has loaded the catalog.
	floors.mu.Lock()
	floors.loadErr = context.DeadlineExceeded
	floors.mu.Unlock()

	result, err := pricing.BulkUpdate(context.Background(), 10, []string{"a"}, "manual")
	require.NoError(t, err)
	require.Equal(t, 1, result.Success)
}
