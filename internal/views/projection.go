// Package views derives the displayed product and order lists from a cache
// snapshot plus transient filter/sort state. Projections are pure: they copy,
// filter, and sort, and never touch the snapshot they were given.
package views

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/safar/go-retail-sync/internal/models"
)

// Sort keys. Products sort by id when asked for creation order, matching the
// store's insertion-ordered ids.
const (
	SortTitle   = "title"
	SortPrice   = "price"
	SortStock   = "stock"
	SortCreated = "created_at"

	SortID     = "id"
	SortBuyer  = "user_email"
	SortTotal  = "total_amount"
	SortStatus = "delivery_status"
)

// SortSpec selects a key and direction. Comparison is strict; the relative
// order of equal keys is unspecified.
type SortSpec struct {
	Key        string
	Descending bool
}

type ProductFilter struct {
	Search   string
	Category string
}

// Products filters by case-insensitive substring match over title,
// description and category, then by exact category, then sorts.
func Products(snapshot []models.Product, filter ProductFilter, spec SortSpec) []models.Product {
	out := make([]models.Product, 0, len(snapshot))
	search := strings.ToLower(filter.Search)

	for _, p := range snapshot {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Title), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) &&
			!strings.Contains(strings.ToLower(p.Category), search) {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		var less bool
		switch spec.Key {
		case SortTitle:
			less = a.Title < b.Title
		case SortPrice:
			less = a.Price.LessThan(b.Price)
		case SortStock:
			less = a.Stock < b.Stock
		default:
			less = a.ID < b.ID
		}
		if spec.Descending {
			return !less && !productKeyEqual(a, b, spec.Key)
		}
		return less
	})
	return out
}

func productKeyEqual(a, b *models.Product, key string) bool {
	switch key {
	case SortTitle:
		return a.Title == b.Title
	case SortPrice:
		return a.Price.Equal(b.Price)
	case SortStock:
		return a.Stock == b.Stock
	default:
		return a.ID == b.ID
	}
}

type OrderFilter struct {
	Search string
	Status models.OrderStatus
	// Date filters on calendar date equality; the zero value disables it.
	Date time.Time
}

// Orders filters by substring match over id, buyer email and status, then by
// exact status, then by calendar date, then sorts.
func Orders(snapshot []models.Order, filter OrderFilter, spec SortSpec) []models.Order {
	out := make([]models.Order, 0, len(snapshot))
	search := strings.ToLower(filter.Search)

	for _, o := range snapshot {
		if search != "" &&
			!strings.Contains(strconv.FormatInt(o.ID, 10), search) &&
			!strings.Contains(strings.ToLower(o.UserEmail), search) &&
			!strings.Contains(strings.ToLower(string(o.DeliveryStatus)), search) {
			continue
		}
		if filter.Status != "" && o.DeliveryStatus != filter.Status {
			continue
		}
		if !filter.Date.IsZero() && !sameDay(o.CreatedAt, filter.Date) {
			continue
		}
		out = append(out, o)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		var less bool
		switch spec.Key {
		case SortID:
			less = a.ID < b.ID
		case SortBuyer:
			less = a.UserEmail < b.UserEmail
		case SortTotal:
			less = a.TotalAmount.LessThan(b.TotalAmount)
		case SortStatus:
			less = a.DeliveryStatus < b.DeliveryStatus
		default:
			less = a.CreatedAt.Before(b.CreatedAt)
		}
		if spec.Descending {
			return !less && !orderKeyEqual(a, b, spec.Key)
		}
		return less
	})
	return out
}

func orderKeyEqual(a, b *models.Order, key string) bool {
	switch key {
	case SortID:
		return a.ID == b.ID
	case SortBuyer:
		return a.UserEmail == b.UserEmail
	case SortTotal:
		return a.TotalAmount.Equal(b.TotalAmount)
	case SortStatus:
		return a.DeliveryStatus == b.DeliveryStatus
	default:
		return a.CreatedAt.Equal(b.CreatedAt)
	}
}

// sameDay compares calendar dates only, in the timestamps' own locations.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
