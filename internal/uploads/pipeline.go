// Package uploads runs the per-file image upload batch for a product
// submission. Files go up sequentially, one request each; a single failure
// skips that entry and the batch proceeds.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/safar/go-retail-sync/internal/api"
	"github.com/safar/go-retail-sync/internal/config"
	"github.com/safar/go-retail-sync/internal/models"
)

var (
	ErrFileTooLarge    = errors.New("file exceeds the upload size limit")
	ErrUnsupportedType = errors.New("unsupported image type")
)

// Entry is one pending image: either a new blob to upload or a reference to
// an already-remote URL retained from an edit flow. The two forms are
// mutually exclusive; RemoteURL wins when set.
type Entry struct {
	Data      []byte
	Filename  string
	MIME      string
	RemoteURL string
}

func (e Entry) remote() bool {
	return e.RemoteURL != ""
}

// Failure records why one entry produced no URL.
type Failure struct {
	Index int
	Err   error
}

// Result holds the surviving images in their original relative order, with
// exactly one marked primary, plus the per-entry failure detail.
type Result struct {
	Images []models.ProductImage
	Failed []Failure
}

// PartialErr returns a PartialFailureError when some entries failed, nil
// otherwise.
func (r *Result) PartialErr() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return &PartialFailureError{Failures: r.Failed}
}

// PartialFailureError reports a batch in which some but not all entries
// failed. The batch still produced output.
type PartialFailureError struct {
	Failures []Failure
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%d image(s) failed to upload", len(e.Failures))
}

// TotalFailureError reports a batch in which zero entries succeeded. The
// submission must abort; there is no output.
type TotalFailureError struct {
	Failures []Failure
}

func (e *TotalFailureError) Error() string {
	return "all image uploads failed"
}

type Pipeline struct {
	client  *api.Client
	logger  *zap.Logger
	maxSize int64
}

func NewPipeline(client *api.Client, cfg *config.SyncConfig, logger *zap.Logger) *Pipeline {
	return &Pipeline{client: client, logger: logger, maxSize: cfg.MaxUploadSize}
}

type uploadResponse struct {
	ImageURL string `json:"image_url"`
}

// Run processes entries in order. primaryIndex designates the entry the
// caller marked primary. Remote entries pass through without a network call;
// blobs are validated locally and then uploaded one at a time. If the
// primary entry failed, the flag moves to the first surviving entry.
func (p *Pipeline) Run(ctx context.Context, entries []Entry, primaryIndex int) (*Result, error) {
	result := &Result{}
	primary := -1

	for i, entry := range entries {
		url, err := p.resolve(ctx, entry)
		if err != nil {
			p.logger.Warn("image skipped",
				zap.Int("index", i),
				zap.String("filename", entry.Filename),
				zap.Error(err))
			result.Failed = append(result.Failed, Failure{Index: i, Err: err})
			continue
		}
		result.Images = append(result.Images, models.ProductImage{ImageURL: url})
		if i == primaryIndex {
			primary = len(result.Images) - 1
		}
	}

	if len(result.Images) == 0 {
		return nil, &TotalFailureError{Failures: result.Failed}
	}

	assignPrimary(result.Images, primary)
	return result, nil
}

func (p *Pipeline) resolve(ctx context.Context, entry Entry) (string, error) {
	if entry.remote() {
		return entry.RemoteURL, nil
	}
	if err := p.validate(entry); err != nil {
		return "", err
	}

	var resp uploadResponse
	if err := p.client.Upload(ctx, api.EndpointUploadImage, entry.Filename, entry.Data, &resp); err != nil {
		return "", err
	}
	if resp.ImageURL == "" {
		return "", &api.Error{
			Class:   api.ClassClientError,
			Message: "malformed server response",
			Detail:  "upload response missing image_url",
		}
	}
	return resp.ImageURL, nil
}

// validate gates a blob before any request is issued. Invalid entries never
// reach the network.
func (p *Pipeline) validate(entry Entry) error {
	if int64(len(entry.Data)) > p.maxSize {
		return fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, entry.Filename, len(entry.Data))
	}
	switch strings.TrimPrefix(strings.ToLower(entry.MIME), "image/") {
	case "jpeg", "jpg", "png":
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedType, entry.MIME)
}

// assignPrimary marks the survivor at primary, or the first survivor when
// the original primary did not make it. Tracking the position rather than
// the URL keeps duplicate URLs from stealing the flag.
func assignPrimary(images []models.ProductImage, primary int) {
	if primary < 0 {
		primary = 0
	}
	for i := range images {
		images[i].IsPrimary = i == primary
	}
}
