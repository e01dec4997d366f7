package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the delivery status assigned by the authoritative store.
// Only pending orders accept retailer-initiated transitions; every other
// state is terminal from the retailer's side.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusRejected   OrderStatus = "rejected"
	OrderStatusReturned   OrderStatus = "returned"
)

func (s OrderStatus) IsPending() bool {
	return s == OrderStatusPending
}

type ProductImage struct {
	ImageURL  string `json:"image_url"`
	IsPrimary bool   `json:"is_primary"`
}

type Product struct {
	ID              int64            `json:"id,omitempty"`
	Category        string           `json:"category"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Price           decimal.Decimal  `json:"price"`
	DiscountedPrice *decimal.Decimal `json:"discounted_price,omitempty"`
	Stock           int              `json:"stock"`
	Images          []ProductImage   `json:"images"`
}

// Clone returns a copy whose Images slice shares no backing array with the
// receiver.
func (p Product) Clone() Product {
	out := p
	out.Images = append([]ProductImage(nil), p.Images...)
	return out
}

// PrimaryImageURL returns the URL of the image marked primary, falling back
// to the first image. Empty string when the product has no images.
func (p *Product) PrimaryImageURL() string {
	for _, img := range p.Images {
		if img.IsPrimary {
			return img.ImageURL
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0].ImageURL
	}
	return ""
}

// NormalizeImages enforces the exactly-one-primary invariant on a non-empty
// image set: the first flagged image wins, all others are cleared, and a set
// with no flagged image promotes its first entry.
func NormalizeImages(images []ProductImage) []ProductImage {
	if len(images) == 0 {
		return images
	}

	primary := -1
	for i, img := range images {
		if img.IsPrimary {
			primary = i
			break
		}
	}
	if primary == -1 {
		primary = 0
	}

	for i := range images {
		images[i].IsPrimary = i == primary
	}
	return images
}

type Order struct {
	ID             int64           `json:"id"`
	UserEmail      string          `json:"user_email"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DeliveryStatus OrderStatus     `json:"delivery_status"`
	CreatedAt      time.Time       `json:"created_at"`
	RejectReason   string          `json:"rejection_reason,omitempty"`
	Items          []OrderItem     `json:"items"`
}

// Clone returns a copy whose Items slice shares no backing array with the
// receiver.
func (o Order) Clone() Order {
	out := o
	out.Items = append([]OrderItem(nil), o.Items...)
	return out
}

type OrderItem struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	Quantity     int             `json:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ProductTitle string          `json:"product_title"`
	ProductImage string          `json:"product_image,omitempty"`
}

type MonthlyRevenue struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
}

type TopSellingProduct struct {
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	Category     string          `json:"category"`
	QuantitySold int             `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
	Stock        int             `json:"stock"`
}

type RecentOrder struct {
	ID             int64           `json:"id"`
	UserEmail      string          `json:"user_email"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DeliveryStatus OrderStatus     `json:"delivery_status"`
	CreatedAt      time.Time       `json:"created_at"`
	ItemsCount     int             `json:"items_count"`
}

// DashboardStats is the advanced-stats response, a server-trusted view.
// TotalRevenue is not cross-checked against item subtotals.
type DashboardStats struct {
	TotalOrders        int                 `json:"total_orders"`
	PendingOrders      int                 `json:"pending_orders"`
	ConfirmedOrders    int                 `json:"confirmed_orders"`
	RejectedOrders     int                 `json:"rejected_orders"`
	DeliveredOrders    int                 `json:"delivered_orders"`
	TotalRevenue       decimal.Decimal     `json:"total_revenue"`
	TotalProducts      int                 `json:"total_products"`
	LowStockProducts   int                 `json:"low_stock_products"`
	MonthlyRevenue     []MonthlyRevenue    `json:"monthly_revenue"`
	TopSellingProducts []TopSellingProduct `json:"top_selling_products"`
	RecentOrders       []RecentOrder       `json:"recent_orders"`
}
