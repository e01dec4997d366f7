// Package orders owns the local order cache and the retailer-initiated
// lifecycle transitions. Orders are read-only except for the status field,
// which changes only after the store acknowledged a transition.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/safar/go-retail-sync/internal/api"
	"github.com/safar/go-retail-sync/internal/config"
	"github.com/safar/go-retail-sync/internal/models"
	"github.com/safar/go-retail-sync/internal/retry"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrNotPending         = errors.New("order is not pending")
	ErrEmptyReason        = errors.New("rejection reason is required")
	ErrTransitionInFlight = errors.New("transition already in flight for this order")
)

type transitionKey struct {
	orderID int64
	op      string
}

type Repository struct {
	client     *api.Client
	logger     *zap.Logger
	retryStep  time.Duration
	retryCount int

	mu       sync.Mutex
	orders   []models.Order
	inflight map[transitionKey]struct{}

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
		inflight:   make(map[transitionKey]struct{}),
		done:       done,
		closed:     closed,
	}
}

func (r *Repository) Close() {
	r.closed()
}

type listRequest struct {
	AuthToken string `json:"auth_token"`
}

type listResponse struct {
	Orders []models.Order `json:"orders"`
}

// LoadAll refreshes the order cache with the same load policy as the
// catalog: join-on-inflight, bounded linear retry for retryable classes,
// stale snapshot on timeout when the cache is non-empty.
func (r *Repository) LoadAll(ctx context.Context) ([]models.Order, error) {
	v, err, _ := r.group.Do("load-all", func() (any, error) {
		return r.loadRemote(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Order), nil
}

func (r *Repository) loadRemote(ctx context.Context) ([]models.Order, error) {
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
		err := r.client.List(ctx, api.EndpointViewOrders, listRequest{AuthToken: r.client.AuthToken()}, &resp)
		if err != nil && !api.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(retry.NewStep(r.retryStep, r.retryCount), ctx))
	if err != nil {
		if api.IsTimeout(err) {
			if stale := r.Snapshot(); len(stale) > 0 {
				r.logger.Warn("order load timed out, serving stale cache",
					zap.Int("cached", len(stale)), zap.Error(err))
				return stale, nil
			}
		}
		return nil, fmt.Errorf("load orders: %w", err)
	}

	r.mu.Lock()
	r.orders = resp.Orders
	r.mu.Unlock()

	r.logger.Info("orders loaded", zap.Int("count", len(resp.Orders)))
	return r.Snapshot(), nil
}

// Snapshot returns a copy of the cached order list. Nested item slices are
// cloned too, so callers may mutate the result freely.
func (r *Repository) Snapshot() []models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Order, len(r.orders))
	for i, o := range r.orders {
		out[i] = o.Clone()
	}
	return out
}

type confirmRequest struct {
	AuthToken string `json:"auth_token"`
	OrderID   int64  `json:"order_id"`
}

type rejectRequest struct {
	AuthToken       string `json:"auth_token"`
	OrderID         int64  `json:"order_id"`
	RejectionReason string `json:"rejection_reason"`
}

// Confirm transitions a pending order to confirmed. The precondition and the
// duplicate-transition guard are checked locally before any network call;
// the cached status changes only after the store acknowledged.
func (r *Repository) Confirm(ctx context.Context, orderID int64) error {
	release, err := r.begin(orderID, "confirm")
	if err != nil {
		return err
	}
	defer release()

	req := confirmRequest{AuthToken: r.client.AuthToken(), OrderID: orderID}
	if err := r.client.Post(ctx, api.EndpointConfirmOrder, req, nil); err != nil {
		return fmt.Errorf("confirm order %d: %w", orderID, err)
	}

	r.setStatus(orderID, models.OrderStatusConfirmed, "")
	r.logger.Info("order confirmed", zap.Int64("order_id", orderID))
	return nil
}

// Reject transitions a pending order to rejected. An empty reason (after
// trimming) is rejected locally without a network call.
func (r *Repository) Reject(ctx context.Context, orderID int64, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrEmptyReason
	}

	release, err := r.begin(orderID, "reject")
	if err != nil {
		return err
	}
	defer release()

	req := rejectRequest{AuthToken: r.client.AuthToken(), OrderID: orderID, RejectionReason: reason}
	if err := r.client.Post(ctx, api.EndpointRejectOrder, req, nil); err != nil {
		return fmt.Errorf("reject order %d: %w", orderID, err)
	}

	r.setStatus(orderID, models.OrderStatusRejected, reason)
	r.logger.Info("order rejected", zap.Int64("order_id", orderID), zap.String("reason", reason))
	return nil
}

// begin checks the transition preconditions and registers the in-flight
// marker. The returned release must run once the transition settles.
func (r *Repository) begin(orderID int64, op string) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var current *models.Order
	for i := range r.orders {
		if r.orders[i].ID == orderID {
			current = &r.orders[i]
			break
		}
	}
	if current == nil {
		return nil, ErrOrderNotFound
	}
	if !current.DeliveryStatus.IsPending() {
		return nil, fmt.Errorf("%w: order %d is %s", ErrNotPending, orderID, current.DeliveryStatus)
	}

	key := transitionKey{orderID: orderID, op: op}
	if _, ok := r.inflight[key]; ok {
		return nil, ErrTransitionInFlight
	}
	r.inflight[key] = struct{}{}

	return func() {
		r.mu.Lock()
		delete(r.inflight, key)
		r.mu.Unlock()
	}, nil
}

func (r *Repository) setStatus(orderID int64, status models.OrderStatus, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.orders {
		if r.orders[i].ID == orderID {
			r.orders[i].DeliveryStatus = status
			if reason != "" {
				r.orders[i].RejectReason = reason
			}
			return
		}
	}
}
