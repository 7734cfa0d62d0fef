package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"pricedesk-api/internal/model"
	"pricedesk-api/internal/repository"
	"pricedesk-api/internal/upstream"
)

// PricingConfig holds bulk update retry/batch tuning.
type PricingConfig struct {
	GlobalURL        string
	ExcludedSellerID int64
	MaxRetries       int
	BaseDelay        time.Duration
	BatchSize        int
	BatchPause       time.Duration
	RecoveryPause    time.Duration
}

// PriceService applies bulk price adjustments to the cached offers. The run
// is split in two phases: a sequential pre-filter that resolves each
// candidate's authoritative price, seller exclusion and floor verdict once,
// and a batched apply phase that does nothing but write-and-retry.
type PriceService struct {
	cfg     PricingConfig
	catalog *CatalogService
	client  *upstream.Client
	auth    *AuthManager
	tokens  *TokenStore
	floors  repository.FloorRepository
	runs    repository.RunLogRepository // optional, nil disables the audit log
}

// NewPriceService creates a price service.
func NewPriceService(
	cfg PricingConfig,
	catalog *CatalogService,
	client *upstream.Client,
	auth *AuthManager,
	tokens *TokenStore,
	floors repository.FloorRepository,
	runs repository.RunLogRepository,
) *PriceService {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = 3 * time.Second
	}
	if cfg.RecoveryPause <= 0 {
		cfg.RecoveryPause = time.Second
	}
	return &PriceService{
		cfg:     cfg,
		catalog: catalog,
		client:  client,
		auth:    auth,
		tokens:  tokens,
		floors:  floors,
		runs:    runs,
	}
}

// fetchGlobal fetches the catalog-wide product detail record.
func (s *PriceService) fetchGlobal(ctx context.Context, globalID int64) (*model.GlobalProduct, error) {
	var out model.GlobalProduct
	path := s.cfg.GlobalURL + "/products/" + strconv.FormatInt(globalID, 10)
	if err := s.client.Get(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch global product %d: %w", globalID, err)
	}
	return &out, nil
}

// loadFloorLimits reads the floor table as an id->limit map. Errors degrade to
// an empty map: a missing or unreadable table never blocks a run.
func (s *PriceService) loadFloorLimits(ctx context.Context) map[string]float64 {
	table, err := s.floors.Load(ctx)
	if err != nil {
		log.Printf("[PriceService] Failed to load price floors, continuing without: %v", err)
		return map[string]float64{}
	}

	limits := make(map[string]float64, len(table))
	for id, e := range table {
		if e.MinimumPriceLimit > 0 {
			limits[id] = e.MinimumPriceLimit
		}
	}
	return limits
}

// BulkUpdate applies the signed adjustment to every candidate offer,
// enforcing price floors and recovering from upstream rate limits via
// re-authentication. Per-item failures accumulate in the result; only a
// malformed adjustment is a hard error.
func (s *PriceService) BulkUpdate(ctx context.Context, adjustment float64, productIDs []string, trigger string) (*model.BulkResult, error) {
	if adjustment == 0 || math.IsNaN(adjustment) || math.IsInf(adjustment, 0) {
		return nil, fmt.Errorf("invalid adjustment %v", adjustment)
	}

	start := time.Now()

	limits := s.loadFloorLimits(ctx)

	offers := s.catalog.Offers()
	byID := make(map[string]model.ProductOffer, len(offers))
	for _, o := range offers {
		byID[o.ID] = o
	}

	candidates := productIDs
	if len(candidates) == 0 {
		candidates = make([]string, 0, len(offers))
		for _, o := range offers {
			candidates = append(candidates, o.ID)
		}
	}

	result := &model.BulkResult{
		Total:         len(candidates),
		FailedIDs:     []string{},
		BelowLimitIDs: []string{},
	}

	// Global detail lookups are memoized for this run only, so phase 2 does
	// not repeat the call phase 1 already paid for.
	details := make(map[string]*model.GlobalProduct, len(candidates))

	worklist := s.preFilter(ctx, candidates, byID, limits, adjustment, details, result)

	log.Printf("[PriceService] After filtering: %d to update, %d skipped, %d below limit, %d failed pre-checks",
		len(worklist), result.Skipped, result.BelowLimit, result.Failed)

	s.applyBatched(ctx, worklist, byID, limits, adjustment, details, result)

	duration := time.Since(start)
	log.Printf("[PriceService] Bulk update complete in %s. Success: %d, Failed: %d, Skipped: %d, Below limit: %d, Total: %d",
		duration.Round(time.Millisecond), result.Success, result.Failed, result.Skipped, result.BelowLimit, result.Total)

	s.recordRun(trigger, adjustment, duration, result)

	return result, nil
}

// preFilter resolves each candidate sequentially: one detail lookup per
// offer, excluded-seller and floor verdicts made once with fresh data.
// Candidates whose lookup fails are still included in the worklist: the run
// favors attempting the update over silently dropping it.
func (s *PriceService) preFilter(
	ctx context.Context,
	candidates []string,
	byID map[string]model.ProductOffer,
	limits map[string]float64,
	adjustment float64,
	details map[string]*model.GlobalProduct,
	result *model.BulkResult,
) []string {
	worklist := make([]string, 0, len(candidates))

	for _, id := range candidates {
		offer, ok := byID[id]
		if !ok {
			log.Printf("[PriceService] Offer %s not found in local cache", id)
			result.Failed++
			result.FailedIDs = append(result.FailedIDs, id)
			continue
		}

		globalID := offer.Attributes.Product.ID
		if globalID == 0 {
			log.Printf("[PriceService] Offer %s has no global product reference, skipping", id)
			result.Skipped++
			continue
		}

		detail, err := s.fetchGlobal(ctx, globalID)
		if err != nil {
			// Fail-open: unable to verify the seller or price, attempt the
			// update anyway.
			log.Printf("[PriceService] Detail lookup failed for offer %s (global %d), will include in update: %v", id, globalID, err)
			worklist = append(worklist, id)
			continue
		}
		details[id] = detail

		if detail.DefaultOffer == nil || detail.DefaultOffer.RetailPrice == 0 {
			log.Printf("[PriceService] No retail price on global record for offer %s, skipping", id)
			result.Skipped++
			continue
		}

		if seller := detail.DefaultOffer.Seller; seller != nil && seller.ID == s.cfg.ExcludedSellerID {
			log.Printf("[PriceService] Offer %s belongs to excluded seller %d (%s), skipping", id, seller.ID, seller.Name)
			result.Skipped++
			continue
		}

		newPrice := detail.DefaultOffer.RetailPrice + adjustment
		if limit, ok := limits[id]; ok && newPrice < limit {
			log.Printf("[PriceService] New price %.2f below floor %.2f for offer %s", newPrice, limit, id)
			result.BelowLimit++
			result.BelowLimitIDs = append(result.BelowLimitIDs, id)
			continue
		}

		worklist = append(worklist, id)
	}

	return worklist
}

// applyBatched processes the worklist in fixed-size batches with a mandatory
// pause between batches. Each offer gets its own retry loop: HTTP 429
// triggers a token refresh (falling back to a full sign-in) and a free
// retry; any other failure burns a retry attempt with exponential backoff.
func (s *PriceService) applyBatched(
	ctx context.Context,
	worklist []string,
	byID map[string]model.ProductOffer,
	limits map[string]float64,
	adjustment float64,
	details map[string]*model.GlobalProduct,
	result *model.BulkResult,
) {
	batchSize := s.cfg.BatchSize
	totalBatches := (len(worklist) + batchSize - 1) / batchSize

	for batchStart := 0; batchStart < len(worklist); batchStart += batchSize {
		end := batchStart + batchSize
		if end > len(worklist) {
			end = len(worklist)
		}
		batch := worklist[batchStart:end]

		log.Printf("[PriceService] Processing batch %d of %d", batchStart/batchSize+1, totalBatches)

		for _, id := range batch {
			s.applyOne(ctx, id, byID, limits, adjustment, details, result)
		}

		if end < len(worklist) {
			log.Printf("[PriceService] Batch complete, pausing %s before next batch", s.cfg.BatchPause)
			wait(ctx, s.cfg.BatchPause)
		}
	}
}

// applyOne runs the retry loop for a single offer.
func (s *PriceService) applyOne(
	ctx context.Context,
	id string,
	byID map[string]model.ProductOffer,
	limits map[string]float64,
	adjustment float64,
	details map[string]*model.GlobalProduct,
	result *model.BulkResult,
) {
	fail := func() {
		result.Failed++
		result.FailedIDs = append(result.FailedIDs, id)
	}

	retries := 0
	for {
		offer, ok := byID[id]
		if !ok {
			log.Printf("[PriceService] Offer %s not found in local cache", id)
			fail()
			return
		}

		detail := details[id]
		var err error
		if detail == nil {
			globalID := offer.Attributes.Product.ID
			if globalID == 0 {
				fail()
				return
			}
			log.Printf("[PriceService] No cached global detail for offer %s, fetching", id)
			detail, err = s.fetchGlobal(ctx, globalID)
			if err == nil {
				details[id] = detail
			}
		}

		if err == nil {
			if detail.DefaultOffer == nil || detail.DefaultOffer.RetailPrice == 0 {
				log.Printf("[PriceService] No retail price on global record for offer %s", id)
				fail()
				return
			}

			newPrice := detail.DefaultOffer.RetailPrice + adjustment

			// Re-check the floor; an edit could have raced in since phase 1.
			if limit, ok := limits[id]; ok && newPrice < limit {
				log.Printf("[PriceService] New price %.2f below floor %.2f for offer %s", newPrice, limit, id)
				result.BelowLimit++
				result.BelowLimitIDs = append(result.BelowLimitIDs, id)
				return
			}

			_, err = s.catalog.UpdateOffer(ctx, id, model.OfferUpdate{RetailPrice: &newPrice})
			if err == nil {
				result.Success++
				log.Printf("[PriceService] Offer %s updated to %.2f (was %.2f)", id, newPrice, detail.DefaultOffer.RetailPrice)
				return
			}
		}

		if upstream.IsRateLimited(err) && s.recoverFromRateLimit(ctx) {
			// 429 recovery is free: retry without consuming an attempt.
			wait(ctx, s.cfg.RecoveryPause)
			continue
		}

		retries++
		log.Printf("[PriceService] Attempt %d/%d failed for offer %s: %v", retries, s.cfg.MaxRetries, id, err)

		if retries <= s.cfg.MaxRetries {
			backoff := s.cfg.BaseDelay * time.Duration(1<<(retries-1))
			wait(ctx, backoff)
			continue
		}

		fail()
		return
	}
}

// recoverFromRateLimit re-authenticates after an upstream 429: refresh first,
// full sign-in as fallback, then force the fresh token into the shared
// client so in-flight header state cannot lag behind.
func (s *PriceService) recoverFromRateLimit(ctx context.Context) bool {
	log.Printf("[PriceService] Rate limit hit, attempting token refresh")

	if !s.auth.RefreshToken(ctx) {
		log.Printf("[PriceService] Refresh unavailable, attempting full sign-in")
		if err := s.auth.SignIn(ctx); err != nil {
			log.Printf("[PriceService] Re-authentication failed: %v", err)
			return false
		}
	}

	token := s.tokens.Snapshot().AccessToken
	if token == "" {
		log.Printf("[PriceService] Re-authentication succeeded but no token was stored")
		return false
	}

	s.client.ForceTokenUpdate(token)
	return true
}

// recordRun persists the run summary when the audit log is configured.
func (s *PriceService) recordRun(trigger string, adjustment float64, duration time.Duration, result *model.BulkResult) {
	if s.runs == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	run := &model.PriceRun{
		Trigger:    trigger,
		Adjustment: adjustment,
		Success:    result.Success,
		Failed:     result.Failed,
		Skipped:    result.Skipped,
		BelowLimit: result.BelowLimit,
		Total:      result.Total,
		DurationMs: duration.Milliseconds(),
	}
	if err := s.runs.Insert(ctx, run); err != nil {
		log.Printf("[PriceService] Failed to record run: %v", err)
	}
}

// wait sleeps for d or until the context is cancelled.
func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
