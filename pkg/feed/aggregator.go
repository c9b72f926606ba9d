package feed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/italyre/casafeed/pkg/domain"
)

// FeedStore provides feed source rows and their fetch bookkeeping
type FeedStore interface {
	GetEnabledFeeds(ctx context.Context, category string) ([]domain.FeedSource, error)
	UpdateFeedSuccess(ctx context.Context, feedID int64, ts time.Time) error
	UpdateFeedError(ctx context.Context, feedID int64, errMsg string) error
}

// ItemStore persists normalized items and serves the stored read path
type ItemStore interface {
	CreateItem(ctx context.Context, item *domain.Item) (bool, error)
	GetActiveItems(ctx context.Context, limit int, category string) ([]domain.Item, error)
}

// Params holds aggregation policy knobs
type Params struct {
	ResultLimit   int // cap on items in a result
	MinFreshItems int // below this the curated fallback supplements the result
	FallbackFill  int // total items the fallback tops the result up to
}

// Aggregator runs aggregation passes across all configured sources.
// Each source goes through fetch, parse and enrichment independently;
// one source failing never prevents the others from contributing.
type Aggregator struct {
	fetcher *Fetcher
	parser  *Parser
	feeds   FeedStore
	items   ItemStore
	cache   *Cache
	params  Params
	now     func() time.Time
}

// NewAggregator creates an aggregator with explicit dependencies
func NewAggregator(fetcher *Fetcher, parser *Parser, feeds FeedStore, items ItemStore, cache *Cache, params Params) *Aggregator {
	if params.ResultLimit == 0 {
		params.ResultLimit = 8
	}
	if params.MinFreshItems == 0 {
		params.MinFreshItems = 3
	}
	if params.FallbackFill == 0 {
		params.FallbackFill = 6
	}
	return &Aggregator{
		fetcher: fetcher,
		parser:  parser,
		feeds:   feeds,
		items:   items,
		cache:   cache,
		params:  params,
		now:     time.Now,
	}
}

// sourceResult is the outcome of one source within one pass
type sourceResult struct {
	feed  domain.FeedSource
	items []domain.Item
	err   error
}

// runPass fetches, parses and enriches all given sources concurrently.
// Results come back in source order; fetch completion order is not observable.
func (a *Aggregator) runPass(ctx context.Context, feeds []domain.FeedSource) []sourceResult {
	results := make([]sourceResult, len(feeds))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		g.Go(func() error {
			results[i] = a.processSource(gctx, f)
			return nil // failures are captured per source, never propagated
		})
	}
	_ = g.Wait()

	return results
}

// processSource runs the fetch-parse-enrich pipeline for one source
func (a *Aggregator) processSource(ctx context.Context, src domain.FeedSource) sourceResult {
	res := sourceResult{feed: src}

	body, err := a.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		res.err = err
		return res
	}

	now := a.now()
	raws := a.parser.Parse(body)
	seen := make(map[string]bool, len(raws))

	for _, raw := range raws {
		item := Normalize(raw, src.ID, now)
		if seen[item.ExternalID] {
			continue // same link repeated within one document
		}
		seen[item.ExternalID] = true
		item.FeedName = src.Name
		item.FeedCategory = src.Category
		res.items = append(res.items, item)
	}
	return res
}

// Refresh runs the batch ingestion pass: aggregate all enabled sources,
// persist new items and update per-source bookkeeping
func (a *Aggregator) Refresh(ctx context.Context) (*domain.RefreshReport, error) {
	feeds, err := a.feeds.GetEnabledFeeds(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("load feed sources: %w", err)
	}

	report := &domain.RefreshReport{Results: make([]domain.FeedOutcome, 0, len(feeds))}

	for _, res := range a.runPass(ctx, feeds) {
		outcome := domain.FeedOutcome{FeedID: res.feed.ID, FeedName: res.feed.Name}

		if res.err != nil {
			lgr.Printf("[WARN] feed %q failed: %v", res.feed.Name, res.err)
			outcome.Status = "error"
			outcome.Error = res.err.Error()
			if dbErr := a.feeds.UpdateFeedError(ctx, res.feed.ID, res.err.Error()); dbErr != nil {
				lgr.Printf("[WARN] can't record error for feed %q: %v", res.feed.Name, dbErr)
			}
			report.Results = append(report.Results, outcome)
			continue
		}

		inserted := 0
		var storeErr error
		for i := range res.items {
			created, err := a.items.CreateItem(ctx, &res.items[i])
			if err != nil {
				storeErr = err
				break
			}
			if created {
				inserted++
			}
			// duplicates are silently skipped
		}

		if storeErr != nil {
			lgr.Printf("[WARN] store items for feed %q: %v", res.feed.Name, storeErr)
			outcome.Status = "error"
			outcome.Error = storeErr.Error()
			outcome.ProcessedItems = inserted
			if dbErr := a.feeds.UpdateFeedError(ctx, res.feed.ID, storeErr.Error()); dbErr != nil {
				lgr.Printf("[WARN] can't record error for feed %q: %v", res.feed.Name, dbErr)
			}
			report.Results = append(report.Results, outcome)
			continue
		}

		outcome.Status = "success"
		outcome.ProcessedItems = inserted
		if dbErr := a.feeds.UpdateFeedSuccess(ctx, res.feed.ID, a.now()); dbErr != nil {
			lgr.Printf("[WARN] can't record success for feed %q: %v", res.feed.Name, dbErr)
		}
		report.Results = append(report.Results, outcome)

		lgr.Printf("[INFO] feed %q processed, %d new items", res.feed.Name, inserted)
	}

	report.ProcessedFeeds = len(report.Results)
	a.cache.Clear() // fresh data invalidates read-path cache
	return report, nil
}

// Collect serves the read path: cached result when fresh enough, otherwise a
// live aggregation merged with stored active items, topped up from the
// curated fallback set when live sources yield too little
func (a *Aggregator) Collect(ctx context.Context, limit int, category string) *domain.AggregationResult {
	if limit <= 0 || limit > a.params.ResultLimit {
		limit = a.params.ResultLimit
	}
	if category == "" {
		category = "all"
	}
	key := fmt.Sprintf("news:%s:%d", category, limit)

	if cached, ok := a.cache.Get(key); ok {
		return cached
	}

	result, err := a.collectLive(ctx, limit, category)
	if err != nil {
		lgr.Printf("[WARN] live aggregation failed: %v", err)
		// degraded mode: a stale cached result beats an error, the curated
		// set beats an empty response
		if stale, ok := a.cache.GetStale(key); ok {
			return stale
		}
		fallback := FallbackItems(a.now())
		if len(fallback) > limit {
			fallback = fallback[:limit]
		}
		return &domain.AggregationResult{
			Items:       fallback,
			LastUpdated: a.now(),
			Sources:     []string{FallbackSource},
			TotalItems:  len(fallback),
		}
	}

	a.cache.Set(key, result)
	return result
}

// collectLive aggregates fresh items from all sources and merges them with
// stored active items
func (a *Aggregator) collectLive(ctx context.Context, limit int, category string) (*domain.AggregationResult, error) {
	filter := category
	if filter == "all" {
		filter = ""
	}

	feeds, err := a.feeds.GetEnabledFeeds(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load feed sources: %w", err)
	}

	var fresh []domain.Item
	var sources []string
	for _, res := range a.runPass(ctx, feeds) {
		if res.err != nil {
			lgr.Printf("[WARN] feed %q failed on read path: %v", res.feed.Name, res.err)
			continue
		}
		if len(res.items) == 0 {
			continue
		}
		fresh = append(fresh, res.items...)
		sources = append(sources, res.feed.Name)
	}

	merged := fresh
	stored, err := a.items.GetActiveItems(ctx, limit, filter)
	if err != nil {
		if len(fresh) == 0 {
			return nil, fmt.Errorf("stored items unavailable and no live sources: %w", err)
		}
		lgr.Printf("[WARN] can't load stored items, serving live only: %v", err)
	} else {
		merged = append(merged, stored...)
	}

	if len(fresh) < a.params.MinFreshItems {
		short := a.params.FallbackFill - len(fresh)
		fallback := FallbackItems(a.now())
		if short > len(fallback) {
			short = len(fallback)
		}
		if short > 0 {
			merged = append(merged, fallback[:short]...)
			sources = append(sources, FallbackSource)
		}
	}

	merged = dedupeByHash(merged)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].PublishedAt.After(merged[j].PublishedAt) })
	if len(merged) > limit {
		merged = merged[:limit]
	}

	return &domain.AggregationResult{
		Items:       merged,
		LastUpdated: a.now(),
		Sources:     sources,
		TotalItems:  len(merged),
	}, nil
}

// dedupeByHash drops repeated items, first occurrence wins
func dedupeByHash(items []domain.Item) []domain.Item {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, it := range items {
		if seen[it.ExternalID] {
			continue
		}
		seen[it.ExternalID] = true
		out = append(out, it)
	}
	return out
}
