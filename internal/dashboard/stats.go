// Package dashboard loads the aggregated retailer statistics view.
package dashboard

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/safar/go-retail-sync/internal/api"
	"github.com/safar/go-retail-sync/internal/models"
)

type Loader struct {
	client *api.Client
	logger *zap.Logger
}

func NewLoader(client *api.Client, logger *zap.Logger) *Loader {
	return &Loader{client: client, logger: logger}
}

type statsRequest struct {
	AuthToken string `json:"auth_token"`
}

// Load fetches the dashboard stats. The stats view is a convenience read:
// failures are not retried here, the caller simply re-invokes.
func (l *Loader) Load(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	req := statsRequest{AuthToken: l.client.AuthToken()}
	if err := l.client.List(ctx, api.EndpointStats, req, &stats); err != nil {
		return nil, fmt.Errorf("load dashboard stats: %w", err)
	}

	l.logger.Info("dashboard stats loaded",
		zap.Int("total_orders", stats.TotalOrders),
		zap.Int("total_products", stats.TotalProducts))
	return &stats, nil
}
