// Package youtube wraps the Data API v3 calls the reconciler makes.
package youtube

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

// MaxBatchSize is the most ids a videos.list call accepts.
const MaxBatchSize = 50

// probeVideoID is the first video ever uploaded. It exists as long as
// YouTube does, which makes it a stable probe for key checks.
const probeVideoID = "jNQXAC9IVRw"

var listParts = []string{"snippet", "contentDetails", "statistics"}

// Client fetches video metadata authenticated by API key.
type Client struct {
	service *yt.Service
}

// NewClient builds a Data API client.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}

	service, err := yt.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating youtube service: %w", err)
	}

	return &Client{service: service}, nil
}

// VerifyKey makes the cheapest possible call so a rejected key or an
// exhausted quota surfaces before any batch work starts.
func (c *Client) VerifyKey(ctx context.Context) error {
	call := c.service.Videos.List([]string{"id"}).
		Id(probeVideoID).
		MaxResults(1).
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return classify("verify key", err)
	}

	return nil
}

// FetchBatch looks up metadata for up to MaxBatchSize ids in one call,
// keyed by id. Ids missing from the result are no longer visible to
// the API: deleted, private or never real.
func (c *Client) FetchBatch(ctx context.Context, ids []string) (map[string]*VideoMetadata, error) {
	if len(ids) > MaxBatchSize {
		return nil, fmt.Errorf("batch of %d ids exceeds API maximum of %d", len(ids), MaxBatchSize)
	}

	call := c.service.Videos.List(listParts).
		Id(ids...).
		MaxResults(int64(len(ids))).
		Context(ctx)

	resp, err := call.Do()
	if err != nil {
		return nil, classify("fetch batch", err)
	}

	found := make(map[string]*VideoMetadata, len(resp.Items))
	for _, item := range resp.Items {
		meta, err := fromItem(item)
		if err != nil {
			return nil, fmt.Errorf("decoding item %s: %w", item.Id, err)
		}
		found[item.Id] = meta
	}

	return found, nil
}
