// Package youtube fetches video snippets from the YouTube Data API.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://www.googleapis.com"

// ErrNoMetadata reports that the API returned no items for a video ID.
// Absent metadata is a failure for ingestion, not an empty result.
var ErrNoMetadata = errors.New("youtube: no metadata for video")

// Snippet is the metadata slice of one video.
type Snippet struct {
	PublishedAt string `json:"publishedAt"`
	ChannelID   string `json:"channelId"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Client queries the videos endpoint with an API key.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	APIKey     string
	BaseURL    string       // defaults to the public Data API endpoint
	HTTPClient *http.Client // defaults to a client with a bounded timeout
}

// NewClient creates a Client.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("youtube: api key is required")
	}
	base := opts.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{apiKey: opts.APIKey, baseURL: base, http: httpClient}, nil
}

// VideoInfo looks up the snippet for one video ID.
func (c *Client) VideoInfo(ctx context.Context, videoID string) (*Snippet, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("id", videoID)
	q.Set("key", c.apiKey)
	reqURL := c.baseURL + "/youtube/v3/videos?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("youtube: video info %s: %w", videoID, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube: video info %s: %w", videoID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube: video info %s: unexpected status %s", videoID, resp.Status)
	}

	var body struct {
		Items []struct {
			ID      string  `json:"id"`
			Snippet Snippet `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("youtube: video info %s: decode response: %w", videoID, err)
	}
	if len(body.Items) == 0 {
		return nil, fmt.Errorf("youtube: video info %s: %w", videoID, ErrNoMetadata)
	}
	snippet := body.Items[0].Snippet
	return &snippet, nil
}
