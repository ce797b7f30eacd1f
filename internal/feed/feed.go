// ABOUTME: Cached read endpoints shared by the TUI screens and the CLI commands
// ABOUTME: Keys are derived from request path and query so every caller shares entries

package feed

import (
	"context"
	"errors"

	"github.com/markalston/review-insight/internal/cache"
	"github.com/markalston/review-insight/internal/client"
	"github.com/markalston/review-insight/internal/models"
)

// API is the subset of the client the feed reads through
type API interface {
	ListStores(ctx context.Context) ([]models.Store, error)
	ListReviews(ctx context.Context, q models.ReviewQuery) (*models.ReviewList, error)
	Insight(ctx context.Context) (*models.Insight, error)
	ListReports(ctx context.Context) ([]models.Report, error)
}

// Cache keys
func StoresKey() string  { return cache.Key("/store", nil) }
func InsightKey() string { return cache.Key("/insight", nil) }
func ReportsKey() string { return cache.Key("/reports", nil) }

// ReviewsKey is empty when q names no store, which disables fetching
func ReviewsKey(q models.ReviewQuery) string {
	if q.StoreID == "" {
		return ""
	}
	return cache.Key("/reviews", client.ReviewsQuery(q))
}

// StoreSelector remembers the store commands and screens default to
type StoreSelector interface {
	SetLastStore(ctx context.Context, id string) error
}

// Feed reads through the cache
type Feed struct {
	api   API
	cache *cache.Cache
}

// New creates a Feed
func New(api API, c *cache.Cache) *Feed {
	return &Feed{api: api, cache: c}
}

// Cache returns the underlying cache
func (f *Feed) Cache() *cache.Cache {
	return f.cache
}

// Stores returns the user's stores
func (f *Feed) Stores(ctx context.Context) ([]models.Store, error) {
	return cache.Fetch(ctx, f.cache, StoresKey(), f.api.ListStores)
}

// Reviews returns a page of reviews for q
func (f *Feed) Reviews(ctx context.Context, q models.ReviewQuery) (models.ReviewList, error) {
	return cache.Fetch(ctx, f.cache, ReviewsKey(q), f.reviewsFetcher(q))
}

// Insight returns the aggregated insight for the current user
func (f *Feed) Insight(ctx context.Context) (models.Insight, error) {
	return cache.Fetch(ctx, f.cache, InsightKey(), f.fetchInsight)
}

// Reports returns generated reports
func (f *Feed) Reports(ctx context.Context) ([]models.Report, error) {
	return cache.Fetch(ctx, f.cache, ReportsKey(), f.api.ListReports)
}

// MountInsight mounts the insight key for a screen
func (f *Feed) MountInsight(ctx context.Context, opts cache.MountOptions) *cache.Resource[models.Insight] {
	return cache.Mount(ctx, f.cache, InsightKey(), f.fetchInsight, opts)
}

// MountReviews mounts one review page for a screen
func (f *Feed) MountReviews(ctx context.Context, q models.ReviewQuery, opts cache.MountOptions) *cache.Resource[models.ReviewList] {
	return cache.Mount(ctx, f.cache, ReviewsKey(q), f.reviewsFetcher(q), opts)
}

// MountStores mounts the store list for a screen
func (f *Feed) MountStores(ctx context.Context, opts cache.MountOptions) *cache.Resource[[]models.Store] {
	return cache.Mount(ctx, f.cache, StoresKey(), f.api.ListStores, opts)
}

// StoresChanged drops the store list after a create, update or delete
func (f *Feed) StoresChanged(ctx context.Context) error {
	return f.cache.Invalidate(ctx, StoresKey())
}

// ReviewsChanged drops every cached review page and the insight derived from them
func (f *Feed) ReviewsChanged(ctx context.Context) error {
	if err := f.cache.InvalidatePrefix(ctx, "/reviews"); err != nil {
		return err
	}
	return f.cache.Invalidate(ctx, InsightKey())
}

// ReportsChanged drops the report list
func (f *Feed) ReportsChanged(ctx context.Context) error {
	return f.cache.Invalidate(ctx, ReportsKey())
}

// ForgetUser drops everything cached for the previous identity and the store
// it had selected. Keys are not scoped per user, so this runs on every login,
// logout and session invalidation.
func (f *Feed) ForgetUser(ctx context.Context, sel StoreSelector) error {
	err := f.cache.Clear(ctx)
	if sel != nil {
		err = errors.Join(err, sel.SetLastStore(ctx, ""))
	}
	return err
}

func (f *Feed) fetchInsight(ctx context.Context) (models.Insight, error) {
	in, err := f.api.Insight(ctx)
	if err != nil || in == nil {
		return models.Insight{}, err
	}
	return *in, nil
}

func (f *Feed) reviewsFetcher(q models.ReviewQuery) func(ctx context.Context) (models.ReviewList, error) {
	return func(ctx context.Context) (models.ReviewList, error) {
		list, err := f.api.ListReviews(ctx, q)
		if err != nil || list == nil {
			return models.ReviewList{}, err
		}
		return *list, nil
	}
}
