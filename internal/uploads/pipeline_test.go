package uploads

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/safar/go-retail-sync/internal/api"
	"github.com/safar/go-retail-sync/internal/config"
)

// uploadServer returns image_url derived from the filename, or fails the
// filenames listed in failNames with the given status.
func uploadServer(t *testing.T, requests *atomic.Int32, failStatus int, failNames ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.NoError(t, r.ParseMultipartForm(8<<20))
		require.Equal(t, "token-123", r.FormValue("auth_token"))

		_, header, err := r.FormFile("image")
		require.NoError(t, err)
		for _, name := range failNames {
			if header.Filename == name {
				w.WriteHeader(failStatus)
				return
			}
		}
		w.Write([]byte(`{"image_url":"/static/uploads/products/` + header.Filename + `"}`))
	}))
}

func newTestPipeline(t *testing.T, url string) *Pipeline {
	t.Helper()
	client := api.NewClient(&config.APIConfig{
		BaseURL:        url,
		AuthToken:      "token-123",
		RequestTimeout: time.Second,
		ListTimeout:    time.Second,
	}, zap.NewNop())
	return NewPipeline(client, &config.SyncConfig{MaxUploadSize: 64}, zap.NewNop())
}

func blob(name string) Entry {
	return Entry{Data: []byte("bytes"), Filename: name, MIME: "image/png"}
}

func TestAllUploadsSucceed(t *testing.T) {
	var requests atomic.Int32
	srv := uploadServer(t, &requests, 0)
	defer srv.Close()

	p := newTestPipeline(t, srv.URL)
	result, err := p.Run(context.Background(), []Entry{blob("a.png"), blob("b.png")}, 1)
	require.NoError(t, err)
	require.Nil(t, result.PartialErr())
	require.Equal(t, int32(2), requests.Load())

	require.Len(t, result.Images, 2)
	require.Equal(t, "/static/uploads/products/a.png", result.Images[0].ImageURL)
	require.False(t, result.Images[0].IsPrimary)
	require.True(t, result.Images[1].IsPrimary)
}

func TestPrimaryReassignedWhenPrimaryFails(t *testing.T) {
	// A was primary and fails; B succeeds, so the flag moves to B.
	var requests atomic.Int32
	srv := uploadServer(t, &requests, http.StatusInternalServerError, "a.png")
	defer srv.Close()

	p := newTestPipeline(t, srv.URL)
	result, err := p.Run(context.Background(), []Entry{blob("a.png"), blob("b.png")}, 0)
	require.NoError(t, err)

	require.Len(t, result.Images, 1)
	require.Equal(t, "/static/uploads/products/b.png", result.Images[0].ImageURL)
	require.True(t, result.Images[0].IsPrimary)

	require.Len(t, result.Failed, 1)
	require.Equal(t, 0, result.Failed[0].Index)
	require.Error(t, result.PartialErr())
}

func TestPartialFailurePreservesRelativeOrder(t *testing.T) {
	var requests atomic.Int32
	srv := uploadServer(t, &requests, http.StatusRequestEntityTooLarge, "b.png")
	defer srv.Close()

	p := newTestPipeline(t, srv.URL)
	entries := []Entry{blob("a.png"), blob("b.png"), blob("c.png")}
	result, err := p.Run(context.Background(), entries, 2)
	require.NoError(t, err)

	require.Equal(t, "/static/uploads/products/a.png", result.Images[0].ImageURL)
	require.Equal(t, "/static/uploads/products/c.png", result.Images[1].ImageURL)
	require.True(t, result.Images[1].IsPrimary, "original primary survived and keeps the flag")
	require.False(t, result.Images[0].IsPrimary)
}

func TestTotalFailure(t *testing.T) {
	var requests atomic.Int32
	srv := uploadServer(t, &requests, http.StatusInternalServerError, "a.png", "b.png")
	defer srv.Close()

	p := newTestPipeline(t, srv.URL)
	result, err := p.Run(context.Background(), []Entry{blob("a.png"), blob("b.png")}, 0)
	require.Nil(t, result)

	var total *TotalFailureError
	require.ErrorAs(t, err, &total)
	require.Len(t, total.Failures, 2)
}

func TestValidationRejectsWithoutNetworkCall(t *testing.T) {
	var requests atomic.Int32
	srv := uploadServer(t, &requests, 0)
	defer srv.Close()

	p := newTestPipeline(t, srv.URL)

	oversize := Entry{Data: bytes.Repeat([]byte("x"), 65), Filename: "big.png", MIME: "image/png"}
	badType := Entry{Data: []byte("x"), Filename: "anim.gif", MIME: "image/gif"}
	good := blob("ok.jpg")
	good.MIME = "image/jpeg"

	result, err := p.Run(context.Background(), []Entry{oversize, badType, good}, 0)
	require.NoError(t, err)
	require.Equal(t, int32(1), requests.Load(), "invalid entries must not issue requests")

	require.Len(t, result.Images, 1)
	require.True(t, result.Images[0].IsPrimary)
	require.ErrorIs(t, result.Failed[0].Err, ErrFileTooLarge)
	require.ErrorIs(t, result.Failed[1].Err, ErrUnsupportedType)
}

func TestRemoteEntriesPassThrough(t *testing.T) {
	var requests atomic.Int32
	srv := uploadServer(t, &requests, 0)
	defer srv.Close()

	p := newTestPipeline(t, srv.URL)
	entries := []Entry{
		{RemoteURL: "/static/uploads/products/kept.png"},
		blob("new.png"),
	}
	result, err := p.Run(context.Background(), entries, 0)
	require.NoError(t, err)
	require.Equal(t, int32(1), requests.Load(), "remote entries make no network call")

	require.Equal(t, "/static/uploads/products/kept.png", result.Images[0].ImageURL)
	require.True(t, result.Images[0].IsPrimary)
}

func TestDuplicateURLsKeepDesignatedPrimary(t *testing.T) {
	var requests atomic.Int32
	srv := uploadServer(t, &requests, 0)
	defer srv.Close()

	p := newTestPipeline(t, srv.URL)
	// An edit flow can keep the same remote URL twice; the flag must land on
	// the designated entry, not the first entry sharing its URL.
	entries := []Entry{
		{RemoteURL: "/static/uploads/products/kept.png"},
		{RemoteURL: "/static/uploads/products/kept.png"},
		blob("new.png"),
	}
	result, err := p.Run(context.Background(), entries, 1)
	require.NoError(t, err)

	require.Len(t, result.Images, 3)
	require.False(t, result.Images[0].IsPrimary)
	require.True(t, result.Images[1].IsPrimary)
	require.False(t, result.Images[2].IsPrimary)
}

func TestMissingImageURLFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"Image uploaded successfully"}`))
	}))
	defer srv.Close()

	p := newTestPipeline(t, srv.URL)
	result, err := p.Run(context.Background(), []Entry{blob("a.png")}, 0)
	require.Nil(t, result)

	var total *TotalFailureError
	require.ErrorAs(t, err, &total)
	var apiErr *api.Error
	require.ErrorAs(t, total.Failures[0].Err, &apiErr)
	require.Equal(t, api.ClassClientError, apiErr.Class)
}

func TestUploadsAreSequentialInInputOrder(t *testing.T) {
	var order []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(8<<20))
		_, header, err := r.FormFile("image")
		require.NoError(t, err)
		order = append(order, header.Filename)
		w.Write([]byte(`{"image_url":"/u/` + header.Filename + `"}`))
	}))
	defer srv.Close()

	p := newTestPipeline(t, srv.URL)
	_, err := p.Run(context.Background(), []Entry{blob("1.png"), blob("2.png"), blob("3.png")}, 0)
	require.NoError(t, err)
	// no mutex needed: sequential uploads mean the handler never runs twice
	// at once
	require.Equal(t, []string{"1.png", "2.png", "3.png"}, order)
}
