package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/safar/go-retail-sync/internal/api"
	"github.com/safar/go-retail-sync/internal/catalog"
	"github.com/safar/go-retail-sync/internal/config"
	"github.com/safar/go-retail-sync/internal/dashboard"
	"github.com/safar/go-retail-sync/internal/models"
	"github.com/safar/go-retail-sync/internal/orders"
	"github.com/safar/go-retail-sync/internal/views"
)

func main() {
	var (
		search   = flag.String("search", "", "free-text filter applied to products and orders")
		category = flag.String("category", "", "exact category filter for products")
		status   = flag.String("status", "", "exact delivery status filter for orders")
		sortKey  = flag.String("sort", views.SortCreated, "sort key")
		desc     = flag.Bool("desc", true, "sort descending")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Init logger: %v", err)
	}
	defer logger.Sync()

	client := api.NewClient(&cfg.API, logger)
	products := catalog.NewRepository(client, &cfg.Sync, logger)
	defer products.Close()
	orderRepo := orders.NewRepository(client, &cfg.Sync, logger)
	defer orderRepo.Close()
	stats := dashboard.NewLoader(client, logger)

	ctx := context.Background()

	if err := syncOnce(ctx, products, orderRepo, stats, projection{
		search:   *search,
		category: *category,
		status:   *status,
		spec:     views.SortSpec{Key: *sortKey, Descending: *desc},
	}); err != nil {
		if errors.Is(err, api.ErrSessionExpired) {
			fmt.Fprintln(os.Stderr, "session expired: re-authenticate and set API_AUTH_TOKEN")
		} else {
			fmt.Fprintln(os.Stderr, "sync failed:", err)
		}
		os.Exit(1)
	}
}

type projection struct {
	search   string
	category string
	status   string
	spec     views.SortSpec
}

func syncOnce(ctx context.Context, products *catalog.Repository, orderRepo *orders.Repository, stats *dashboard.Loader, p projection) error {
	loaded, err := products.LoadAll(ctx)
	if err != nil {
		return err
	}

	shown := views.Products(loaded, views.ProductFilter{Search: p.search, Category: p.category}, p.spec)
	fmt.Printf("products: %d loaded, %d shown, categories: %v\n",
		len(loaded), len(shown), products.Categories())
	for _, prod := range shown {
		fmt.Printf("  #%d %-30q %-16s price=%s stock=%d image=%s\n",
			prod.ID, prod.Title, prod.Category, prod.Price, prod.Stock, prod.PrimaryImageURL())
	}

	orderList, err := orderRepo.LoadAll(ctx)
	if err != nil {
		return err
	}

	shownOrders := views.Orders(orderList, views.OrderFilter{
		Search: p.search,
		Status: models.OrderStatus(p.status),
	}, p.spec)
	fmt.Printf("orders: %d loaded, %d shown\n", len(orderList), len(shownOrders))
	for _, o := range shownOrders {
		fmt.Printf("  #%d %-30s %-10s total=%s items=%d\n",
			o.ID, o.UserEmail, o.DeliveryStatus, o.TotalAmount, len(o.Items))
	}

	s, err := stats.Load(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("stats: %d orders (%d pending), revenue %s, %d products (%d low stock)\n",
		s.TotalOrders, s.PendingOrders, s.TotalRevenue, s.TotalProducts, s.LowStockProducts)

	return nil
}
