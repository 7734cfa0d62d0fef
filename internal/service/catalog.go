package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/url"
	"strconv"
	"sync"
	"time"

	"pricedesk-api/internal/model"
	"pricedesk-api/internal/repository"
	"pricedesk-api/internal/upstream"
)

// CatalogConfig holds the upstream listing endpoint settings.
type CatalogConfig struct {
	CatalogURL   string
	PerPage      int
	MerchantUUID string
}

// CatalogService mirrors the merchant's product offers in memory. The offer
// set is replaced wholesale on every load; the floor table is persisted
// separately and survives reloads.
type CatalogService struct {
	cfg    CatalogConfig
	client *upstream.Client
	floors repository.FloorRepository

	mu     sync.RWMutex
	offers []model.ProductOffer
	meta   model.CatalogMeta
}

// NewCatalogService creates a catalog service.
func NewCatalogService(cfg CatalogConfig, client *upstream.Client, floors repository.FloorRepository) *CatalogService {
	if cfg.PerPage <= 0 {
		cfg.PerPage = 100
	}
	return &CatalogService{cfg: cfg, client: client, floors: floors}
}

// listURL builds the offer listing URL for one page.
func (s *CatalogService) listURL(page int) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(s.cfg.PerPage))
	q.Set("q[s]", "updated_at desc")
	q.Set("q[active_eq]", "true")
	if s.cfg.MerchantUUID != "" {
		q.Set("q[merchant_uuid_eq]", s.cfg.MerchantUUID)
	}
	return s.cfg.CatalogURL + "/product_offers?" + q.Encode()
}

// fetchPage fetches a single page of offers.
func (s *CatalogService) fetchPage(ctx context.Context, page int) (*model.OfferPage, error) {
	var out model.OfferPage
	if err := s.client.Get(ctx, s.listURL(page), &out); err != nil {
		return nil, fmt.Errorf("failed to fetch page %d: %w", page, err)
	}
	return &out, nil
}

// LoadAll paginates the upstream listing sequentially, replacing the entire
// offer set. If a page fetch fails mid-run, already-merged pages remain and
// the error propagates; there is no rollback. After a successful load the
// floor table is re-merged, seeding a default floor of 90% of the current
// price for offers that have none yet.
func (s *CatalogService) LoadAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	s.meta.IsLoading = true
	s.offers = nil
	s.mu.Unlock()

	fail := func(err error) (int, error) {
		s.mu.Lock()
		s.meta.IsLoading = false
		s.mu.Unlock()
		return 0, err
	}

	first, err := s.fetchPage(ctx, 1)
	if err != nil {
		return fail(fmt.Errorf("failed to load products: %w", err))
	}

	totalPages := first.Meta.TotalPages

	s.mu.Lock()
	s.meta.TotalProducts = first.Meta.TotalEntries
	s.offers = append(s.offers, first.Data...)
	s.mu.Unlock()

	// Remaining pages are fetched in sequence, not in parallel, to respect
	// upstream ordering and rate limits.
	for page := 2; page <= totalPages; page++ {
		log.Printf("[CatalogService] Fetching page %d of %d", page, totalPages)
		p, err := s.fetchPage(ctx, page)
		if err != nil {
			return fail(fmt.Errorf("failed to load products: %w", err))
		}
		s.mu.Lock()
		s.offers = append(s.offers, p.Data...)
		s.mu.Unlock()
	}

	now := time.Now()
	s.mu.Lock()
	s.meta.LastUpdated = &now
	s.meta.IsLoading = false
	loaded := len(s.offers)
	s.mu.Unlock()

	if err := s.mergeFloors(ctx); err != nil {
		return 0, fmt.Errorf("failed to persist price floors: %w", err)
	}

	log.Printf("[CatalogService] Loaded %d offers across %d pages", loaded, totalPages)
	return loaded, nil
}

// mergeFloors writes a floor entry for every cached offer, defaulting the
// floor to 90% of the current price. Existing floors always win.
func (s *CatalogService) mergeFloors(ctx context.Context) error {
	offers := s.Offers()

	entries := make([]model.FloorEntry, 0, len(offers))
	for _, o := range offers {
		entries = append(entries, model.FloorEntry{
			ID:                o.ID,
			Name:              o.Attributes.Product.Name,
			Price:             o.Attributes.RetailPrice,
			MinimumPriceLimit: math.Round(o.Attributes.RetailPrice * 0.9),
		})
	}

	if err := s.floors.Merge(ctx, entries); err != nil {
		return err
	}
	log.Printf("[CatalogService] Merged %d floor entries", len(entries))
	return nil
}

// Offers returns a defensive copy of the cached offer set.
func (s *CatalogService) Offers() []model.ProductOffer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ProductOffer, len(s.offers))
	copy(out, s.offers)
	return out
}

// Offer returns the cached offer with the given id.
func (s *CatalogService) Offer(id string) (model.ProductOffer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.offers {
		if o.ID == id {
			return o, true
		}
	}
	return model.ProductOffer{}, false
}

// Meta returns a copy of the catalog metadata.
func (s *CatalogService) Meta() model.CatalogMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// UpdateOffer proxies a price/quantity update upstream and patches the cached
// entry in place on success.
func (s *CatalogService) UpdateOffer(ctx context.Context, id string, update model.OfferUpdate) (*model.ProductOffer, error) {
	var out struct {
		Data model.ProductOffer `json:"data"`
	}
	path := s.cfg.CatalogURL + "/product_offers/" + url.PathEscape(id)
	if err := s.client.Put(ctx, path, update, &out); err != nil {
		return nil, fmt.Errorf("failed to update offer %s: %w", id, err)
	}

	s.mu.Lock()
	for i := range s.offers {
		if s.offers[i].ID == id {
			s.offers[i] = out.Data
			break
		}
	}
	s.mu.Unlock()

	return &out.Data, nil
}

// Floors returns the persisted floor table.
func (s *CatalogService) Floors(ctx context.Context) (map[string]model.FloorEntry, error) {
	return s.floors.Load(ctx)
}

// Floor returns the floor entry for one offer.
func (s *CatalogService) Floor(ctx context.Context, id string) (*model.FloorEntry, error) {
	table, err := s.floors.Load(ctx)
	if err != nil {
		return nil, err
	}
	entry, ok := table[id]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// SetFloor upserts one floor entry. For offers not yet in the table, the
// current cached price fills the descriptive fields.
func (s *CatalogService) SetFloor(ctx context.Context, id, name string, limit float64) error {
	entry := model.FloorEntry{ID: id, Name: name, MinimumPriceLimit: limit}
	if offer, ok := s.Offer(id); ok {
		entry.Price = offer.Attributes.RetailPrice
		if entry.Name == "" {
			entry.Name = offer.Attributes.Product.Name
		}
	}

	if err := s.floors.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("failed to set floor for %s: %w", id, err)
	}
	log.Printf("[CatalogService] Floor for %s set to %.2f", id, limit)
	return nil
}
