// Package transmission is a minimal client for the Transmission daemon's
// JSON-RPC endpoint, covering only torrent submission.
package transmission

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// sessionHeader carries the ephemeral session token the daemon demands
// after a conflict response. It is never persisted across restarts; each
// request attempt starts without one.
const sessionHeader = "X-Transmission-Session-Id"

// Status distinguishes a newly accepted torrent from one the daemon
// already had.
type Status int

const (
	Added Status = iota
	Duplicate
)

// AddResult is the decoded outcome of a torrent-add call.
type AddResult struct {
	Status Status
	ID     int64
	Name   string
}

// Client posts RPC requests to a single Transmission daemon.
type Client struct {
	addr string
	http *http.Client
}

// NewClient creates a Client for the daemon at addr.
func NewClient(addr string, httpClient *http.Client) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("transmission: address is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{addr: addr, http: httpClient}, nil
}

type rpcRequest struct {
	Method    string       `json:"method"`
	Arguments rpcArguments `json:"arguments"`
}

type rpcArguments struct {
	Filename string `json:"filename,omitempty"`
	Metainfo string `json:"metainfo,omitempty"`
}

type rpcResponse struct {
	Result    string `json:"result"`
	Arguments struct {
		Tag  string `json:"tag"`
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"arguments"`
}

// AddTorrent submits raw torrent metainfo to the daemon. On a 409 conflict
// the identical request is resent exactly once with the session token from
// the conflict response; any other status uses the first response as final.
func (c *Client) AddTorrent(ctx context.Context, metainfo []byte) (*AddResult, error) {
	body, err := json.Marshal(rpcRequest{
		Method:    "torrent-add",
		Arguments: rpcArguments{Metainfo: base64.StdEncoding.EncodeToString(metainfo)},
	})
	if err != nil {
		return nil, fmt.Errorf("transmission: marshal torrent-add request: %w", err)
	}

	resp, err := c.post(ctx, body, "")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusConflict {
		token := resp.Header.Get(sessionHeader)
		resp.Body.Close()
		if token != "" {
			resp, err = c.post(ctx, body, token)
			if err != nil {
				return nil, err
			}
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("transmission: torrent-add: unexpected status %s", resp.Status)
	}
	return decodeAddResult(resp.Body)
}

// post sends one RPC request attempt, attaching the session token if given.
func (c *Client) post(ctx context.Context, body []byte, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transmission: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(sessionHeader, token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transmission: post to %s: %w", c.addr, err)
	}
	return resp, nil
}

// decodeAddResult maps the daemon's tagged response onto an AddResult.
func decodeAddResult(r io.Reader) (*AddResult, error) {
	var body rpcResponse
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("transmission: decode torrent-add response: %w", err)
	}
	if body.Result != "success" {
		return nil, fmt.Errorf("transmission: torrent-add failed: %s", body.Result)
	}
	res := &AddResult{ID: body.Arguments.ID, Name: body.Arguments.Name}
	switch body.Arguments.Tag {
	case "torrent-added":
		res.Status = Added
	case "torrent-duplicate":
		res.Status = Duplicate
	default:
		return nil, fmt.Errorf("transmission: unexpected response tag %q", body.Arguments.Tag)
	}
	return res, nil
}
