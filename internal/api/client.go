package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/safar/go-retail-sync/internal/config"
)

// Retailer endpoints of the authoritative store. Every call is a POST with
// the session credential in the body (or form, for uploads).
const (
	EndpointViewProducts  = "retailer/view-products"
	EndpointAddProduct    = "retailer/add-product"
	EndpointEditProduct   = "retailer/edit-product"
	EndpointDeleteProduct = "retailer/delete-product"
	EndpointUploadImage   = "retailer/upload-image"
	EndpointViewOrders    = "retailer/view-orders"
	EndpointConfirmOrder  = "retailer/confirm-order"
	EndpointRejectOrder   = "retailer/reject-order"
	EndpointStats         = "retailer/dashboard/advanced-stats"
)

// Client issues requests against the remote store with fixed timeouts and a
// uniform error taxonomy. It holds the opaque session credential explicitly;
// nothing in this module reads ambient session state.
type Client struct {
	baseURL        string
	authToken      string
	http           *http.Client
	requestTimeout time.Duration
	listTimeout    time.Duration
	logger         *zap.Logger
}

func NewClient(cfg *config.APIConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/") + "/",
		authToken:      cfg.AuthToken,
		http:           &http.Client{},
		requestTimeout: cfg.RequestTimeout,
		listTimeout:    cfg.ListTimeout,
		logger:         logger,
	}
}

// AuthToken exposes the session credential for request payloads that carry
// it in the body, per the store's contract.
func (c *Client) AuthToken() string {
	return c.authToken
}

// Post sends payload as JSON and decodes the success body into out (out may
// be nil). The generic request timeout applies.
func (c *Client) Post(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Class: ClassClientError, Message: "invalid request payload", Detail: err.Error()}
	}
	return c.do(ctx, endpoint, bytes.NewReader(body), "application/json", c.requestTimeout, out)
}

// List is Post with the shorter list-load timeout.
func (c *Client) List(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Class: ClassClientError, Message: "invalid request payload", Detail: err.Error()}
	}
	return c.do(ctx, endpoint, bytes.NewReader(body), "application/json", c.listTimeout, out)
}

// Upload sends a single file as a multipart body with the session credential
// as a form field. The two body modes never mix.
func (c *Client) Upload(ctx context.Context, endpoint, filename string, data []byte, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return &Error{Class: ClassClientError, Message: "invalid upload payload", Detail: err.Error()}
	}
	if _, err := part.Write(data); err != nil {
		return &Error{Class: ClassClientError, Message: "invalid upload payload", Detail: err.Error()}
	}
	if err := writer.WriteField("auth_token", c.authToken); err != nil {
		return &Error{Class: ClassClientError, Message: "invalid upload payload", Detail: err.Error()}
	}
	if err := writer.Close(); err != nil {
		return &Error{Class: ClassClientError, Message: "invalid upload payload", Detail: err.Error()}
	}

	return c.do(ctx, endpoint, &buf, writer.FormDataContentType(), c.requestTimeout, out)
}

func (c *Client) do(ctx context.Context, endpoint string, body io.Reader, contentType string, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	requestID := uuid.New().String()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return &Error{Class: ClassClientError, Message: "invalid request", Detail: err.Error()}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		apiErr := classifyTransport(err)
		c.logger.Warn("request failed",
			zap.String("endpoint", endpoint),
			zap.String("request_id", requestID),
			zap.String("class", apiErr.Class.String()),
			zap.Duration("elapsed", time.Since(start)))
		return apiErr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var serverErr struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &serverErr)

		apiErr := newStatusError(resp.StatusCode, serverErr.Error)
		c.logger.Warn("request rejected",
			zap.String("endpoint", endpoint),
			zap.String("request_id", requestID),
			zap.Int("status", resp.StatusCode),
			zap.String("class", apiErr.Class.String()))
		return apiErr
	}

	c.logger.Debug("request ok",
		zap.String("endpoint", endpoint),
		zap.String("request_id", requestID),
		zap.Duration("elapsed", time.Since(start)))

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{
			Class:   ClassClientError,
			Status:  resp.StatusCode,
			Message: "malformed server response",
			Detail:  err.Error(),
		}
	}
	return nil
}
