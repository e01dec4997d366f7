// Package catalog owns the local product cache and keeps it consistent with
// the remote store. The cache changes only after a remote acknowledgement;
// there is no optimistic mutation.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/safar/go-retail-sync/internal/api"
	"github.com/safar/go-retail-sync/internal/config"
	"github.com/safar/go-retail-sync/internal/models"
	"github.com/safar/go-retail-sync/internal/retry"
)

type Repository struct {
	client     *api.Client
	logger     *zap.Logger
	retryStep  time.Duration
	retryCount int

	mu         sync.Mutex
	products   []models.Product
	categories []string

	group  singleflight.Group
	done   context.Context
	closed context.CancelFunc
}

func NewRepository(client *api.Client, cfg *config.SyncConfig, logger *zap.Logger) *Repository {
	done, closed := context.WithCancel(context.Background())
	return &Repository{
		client:     client,
		logger:     logger,
		retryStep:  cfg.RetryStep,
		retryCount: cfg.RetryCount,
		done:       done,
		closed:     closed,
	}
}

// Close cancels any pending retry timers. In-flight requests finish on their
// own deadlines; their results are discarded.
func (r *Repository) Close() {
	r.closed()
}

type listRequest struct {
	AuthToken string `json:"auth_token"`
}

type listResponse struct {
	Products []models.Product `json:"products"`
}

// LoadAll refreshes the cache from the remote store and returns a snapshot.
// Concurrent callers join the in-flight load instead of issuing a duplicate
// request. NetworkUnavailable and ServerError responses are retried with
// delays of n*retryStep before retry n; Unauthorized is never retried; a
// Timeout with a non-empty cache serves the stale snapshot and only logs.
func (r *Repository) LoadAll(ctx context.Context) ([]models.Product, error) {
	v, err, _ := r.group.Do("load-all", func() (any, error) {
		return r.loadRemote(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Product), nil
}

func (r *Repository) loadRemote(ctx context.Context) ([]models.Product, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.done.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	var resp listResponse
	op := func() error {
		err := r.client.List(ctx, api.EndpointViewProducts, listRequest{AuthToken: r.client.AuthToken()}, &resp)
		if err != nil && !api.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(retry.NewStep(r.retryStep, r.retryCount), ctx))
	if err != nil {
		if api.IsTimeout(err) {
			if stale := r.Snapshot(); len(stale) > 0 {
				r.logger.Warn("product load timed out, serving stale cache",
					zap.Int("cached", len(stale)), zap.Error(err))
				return stale, nil
			}
		}
		return nil, fmt.Errorf("load products: %w", err)
	}

	r.mu.Lock()
	r.products = resp.Products
	r.recomputeCategories()
	r.mu.Unlock()

	r.logger.Info("products loaded", zap.Int("count", len(resp.Products)))
	return r.Snapshot(), nil
}

// recomputeCategories rebuilds the derived set of distinct non-empty
// categories. Caller holds r.mu.
func (r *Repository) recomputeCategories() {
	seen := make(map[string]struct{}, len(r.products))
	categories := make([]string, 0, len(seen))
	for _, p := range r.products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	sort.Strings(categories)
	r.categories = categories
}

// Snapshot returns a copy of the cached product list. Nested image slices
// are cloned too, so callers may mutate the result freely.
func (r *Repository) Snapshot() []models.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Product, len(r.products))
	for i, p := range r.products {
		out[i] = p.Clone()
	}
	return out
}

// Categories returns the derived category set from the last load, sorted.
func (r *Repository) Categories() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.categories))
	copy(out, r.categories)
	return out
}

type productPayload struct {
	AuthToken       string                `json:"auth_token"`
	ProductID       int64                 `json:"product_id,omitempty"`
	Category        string                `json:"category"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Price           decimal.Decimal       `json:"price"`
	DiscountedPrice *decimal.Decimal      `json:"discounted_price,omitempty"`
	Stock           int                   `json:"stock"`
	Images          []models.ProductImage `json:"images"`
}

type createResponse struct {
	ProductID int64 `json:"product_id"`
}

// Create persists a new product and merges it into the cache only after the
// store acknowledged it with an assigned id.
func (r *Repository) Create(ctx context.Context, draft models.Product) (models.Product, error) {
	var resp createResponse
	if err := r.client.Post(ctx, api.EndpointAddProduct, r.payload(0, draft), &resp); err != nil {
		return models.Product{}, fmt.Errorf("create product: %w", err)
	}
	if resp.ProductID == 0 {
		return models.Product{}, &api.Error{
			Class:   api.ClassClientError,
			Message: "malformed server response",
			Detail:  "create response missing product_id",
		}
	}

	draft.ID = resp.ProductID
	draft.Images = models.NormalizeImages(draft.Images)

	r.mu.Lock()
	r.products = append(r.products, draft)
	r.recomputeCategories()
	r.mu.Unlock()

	r.logger.Info("product created", zap.Int64("product_id", draft.ID))
	return draft, nil
}

// Update replaces the cached entry only after the store acknowledged the
// edit. On failure the cache is untouched.
func (r *Repository) Update(ctx context.Context, id int64, draft models.Product) (models.Product, error) {
	if err := r.client.Post(ctx, api.EndpointEditProduct, r.payload(id, draft), nil); err != nil {
		return models.Product{}, fmt.Errorf("update product %d: %w", id, err)
	}

	draft.ID = id
	draft.Images = models.NormalizeImages(draft.Images)

	r.mu.Lock()
	for i := range r.products {
		if r.products[i].ID == id {
			r.products[i] = draft
			break
		}
	}
	r.recomputeCategories()
	r.mu.Unlock()

	r.logger.Info("product updated", zap.Int64("product_id", id))
	return draft, nil
}

type deleteRequest struct {
	AuthToken string `json:"auth_token"`
	ProductID int64  `json:"product_id"`
}

// Delete removes the cached entry only after an acknowledged delete.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	req := deleteRequest{AuthToken: r.client.AuthToken(), ProductID: id}
	if err := r.client.Post(ctx, api.EndpointDeleteProduct, req, nil); err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}

	r.mu.Lock()
	for i := range r.products {
		if r.products[i].ID == id {
			r.products = append(r.products[:i], r.products[i+1:]...)
			break
		}
	}
	r.recomputeCategories()
	r.mu.Unlock()

	r.logger.Info("product deleted", zap.Int64("product_id", id))
	return nil
}

func (r *Repository) payload(id int64, draft models.Product) productPayload {
	p := productPayload{
		AuthToken:   r.client.AuthToken(),
		ProductID:   id,
		Category:    draft.Category,
		Title:       draft.Title,
		Description: draft.Description,
		Price:       draft.Price,
		Stock:       draft.Stock,
		Images:      draft.Images,
	}
	if draft.DiscountedPrice != nil {
		dp := *draft.DiscountedPrice
		p.DiscountedPrice = &dp
	}
	return p
}
