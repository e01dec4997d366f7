// Package workflow composes validation, the upload pipeline and the catalog
// repository into the product submission flow. The draft is transient client
// state: it reaches the cache only through an acknowledged create or update.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/safar/go-retail-sync/internal/catalog"
	"github.com/safar/go-retail-sync/internal/models"
	"github.com/safar/go-retail-sync/internal/uploads"
)

// ValidationError names the field that failed the local pre-network check.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var ErrNoDraft = errors.New("no draft open")

// ProductForm is the draft for a create (ProductID zero) or update flow.
type ProductForm struct {
	ProductID       int64
	Category        string
	Title           string
	Description     string
	Price           decimal.Decimal
	DiscountedPrice *decimal.Decimal
	Stock           int
	Images          []uploads.Entry
	PrimaryIndex    int
}

// Outcome is a successful submission: the persisted product plus any
// per-image failures the batch tolerated.
type Outcome struct {
	Product        models.Product
	UploadFailures []uploads.Failure
}

type Controller struct {
	catalog  *catalog.Repository
	pipeline *uploads.Pipeline
	logger   *zap.Logger

	draft *ProductForm
}

func NewController(cat *catalog.Repository, pipeline *uploads.Pipeline, logger *zap.Logger) *Controller {
	return &Controller{catalog: cat, pipeline: pipeline, logger: logger}
}

// SetDraft opens a draft for submission.
func (c *Controller) SetDraft(form *ProductForm) {
	c.draft = form
}

// Draft returns the open draft, nil when none is open.
func (c *Controller) Draft() *ProductForm {
	return c.draft
}

// Submit runs the full flow for the open draft: validate, upload images,
// create or update the product. Each step is a precondition for the next; a
// failing step leaves the draft open and the cache unchanged. On success the
// draft is cleared.
func (c *Controller) Submit(ctx context.Context) (*Outcome, error) {
	form := c.draft
	if form == nil {
		return nil, ErrNoDraft
	}

	if err := validate(form); err != nil {
		return nil, err
	}

	result, err := c.pipeline.Run(ctx, form.Images, form.PrimaryIndex)
	if err != nil {
		return nil, fmt.Errorf("upload images: %w", err)
	}
	if perr := result.PartialErr(); perr != nil {
		c.logger.Warn("submission continuing with partial upload failure",
			zap.Int("succeeded", len(result.Images)),
			zap.Int("failed", len(result.Failed)))
	}

	draft := models.Product{
		Category:        strings.TrimSpace(form.Category),
		Title:           strings.TrimSpace(form.Title),
		Description:     strings.TrimSpace(form.Description),
		Price:           form.Price,
		DiscountedPrice: form.DiscountedPrice,
		Stock:           form.Stock,
		Images:          result.Images,
	}

	var persisted models.Product
	if form.ProductID == 0 {
		persisted, err = c.catalog.Create(ctx, draft)
	} else {
		persisted, err = c.catalog.Update(ctx, form.ProductID, draft)
	}
	if err != nil {
		return nil, err
	}

	c.draft = nil
	return &Outcome{Product: persisted, UploadFailures: result.Failed}, nil
}

// Delete is a direct acknowledgement-gated repository delete.
func (c *Controller) Delete(ctx context.Context, productID int64) error {
	return c.catalog.Delete(ctx, productID)
}

func validate(form *ProductForm) error {
	if strings.TrimSpace(form.Category) == "" {
		return &ValidationError{Field: "category", Reason: "must not be empty"}
	}
	if strings.TrimSpace(form.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if strings.TrimSpace(form.Description) == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if !form.Price.IsPositive() {
		return &ValidationError{Field: "price", Reason: "must be greater than zero"}
	}
	if form.DiscountedPrice != nil && form.DiscountedPrice.IsNegative() {
		return &ValidationError{Field: "discounted_price", Reason: "must not be negative"}
	}
	if form.Stock < 0 {
		return &ValidationError{Field: "stock", Reason: "must not be negative"}
	}
	if len(form.Images) == 0 {
		return &ValidationError{Field: "images", Reason: "at least one image is required"}
	}
	return nil
}
