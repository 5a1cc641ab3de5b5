package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.telegram.org"

// defaultSendRate keeps outbound calls under the platform's global limit
// of roughly 30 messages per second.
const defaultSendRate = rate.Limit(25)

// Client talks to the Telegram Bot API. Delivery failures are surfaced as
// errors but never retried here; retry policy belongs to the caller.
type Client struct {
	token       string
	baseURL     string
	pollTimeout int // long-poll timeout in seconds, passed to getUpdates
	http        *http.Client
	limiter     *rate.Limiter
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	Token          string
	BaseURL        string        // defaults to the public Bot API endpoint
	PollTimeoutSec int           // defaults to 30
	HTTPClient     *http.Client  // defaults to a client with a bounded timeout
	SendRate       rate.Limit    // outbound rate limit, defaults to 25/s
}

// NewClient creates a Client.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("telegram: token is required")
	}
	base := opts.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	pollTimeout := opts.PollTimeoutSec
	if pollTimeout <= 0 {
		pollTimeout = 30
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// The long poll holds the connection open for pollTimeout seconds,
		// so the client timeout must comfortably exceed it.
		httpClient = &http.Client{Timeout: time.Duration(pollTimeout+30) * time.Second}
	}
	sendRate := opts.SendRate
	if sendRate == 0 {
		sendRate = defaultSendRate
	}
	return &Client{
		token:       opts.Token,
		baseURL:     base,
		pollTimeout: pollTimeout,
		http:        httpClient,
		limiter:     rate.NewLimiter(sendRate, 1),
	}, nil
}

// apiURL builds the URL for a Bot API method call.
func (c *Client) apiURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

// fileURL builds the file-serving URL for a resolved file path.
func (c *Client) fileURL(filePath string) string {
	return fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, filePath)
}

// GetUpdates long-polls for updates with IDs >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	q := url.Values{}
	q.Set("offset", strconv.FormatInt(offset, 10))
	q.Set("timeout", strconv.Itoa(c.pollTimeout))
	var updates []Update
	if err := c.get(ctx, "getUpdates", c.apiURL("getUpdates")+"?"+q.Encode(), &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// GetFile resolves a file ID into a downloadable file descriptor.
func (c *Client) GetFile(ctx context.Context, fileID string) (File, error) {
	q := url.Values{}
	q.Set("file_id", fileID)
	var file File
	if err := c.get(ctx, "getFile", c.apiURL("getFile")+"?"+q.Encode(), &file); err != nil {
		return File{}, err
	}
	return file, nil
}

// DownloadFile fetches the raw content of a file previously resolved with GetFile.
func (c *Client) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.fileURL(filePath), nil)
	if err != nil {
		return nil, &TransportError{Op: "download " + filePath, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "download " + filePath, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: "download " + filePath, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "download " + filePath, Err: err}
	}
	return data, nil
}

// SendMessage sends a text reply. Fire-and-forget from the caller's
// perspective: an error means delivery failed, and the client does not retry.
func (c *Client) SendMessage(ctx context.Context, msg SendMessage) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Op: "send message", Err: err}
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("telegram: send message: marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return &TransportError{Op: "send message", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: "send message", Err: err}
	}
	defer resp.Body.Close()
	return c.checkStatus("send message", resp)
}

// SendVideo uploads a local file to the chat as a video attachment
// (multipart sendVideo call).
func (c *Client) SendVideo(ctx context.Context, chatID int64, path string, replyTo int64) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Op: "send video", Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("telegram: send video: open %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("telegram: send video: %w", err)
	}
	if replyTo != 0 {
		if err := w.WriteField("reply_to_message_id", strconv.FormatInt(replyTo, 10)); err != nil {
			return fmt.Errorf("telegram: send video: %w", err)
		}
	}
	part, err := w.CreateFormFile("video", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("telegram: send video: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("telegram: send video: read %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("telegram: send video: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("sendVideo"), &buf)
	if err != nil {
		return &TransportError{Op: "send video", Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: "send video", Err: err}
	}
	defer resp.Body.Close()
	return c.checkStatus("send video", resp)
}

// get performs a GET API call and decodes the result envelope into out.
func (c *Client) get(ctx context.Context, op, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if err := c.checkStatus(op, resp); err != nil {
		return err
	}

	var envelope apiResponse[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	if !envelope.OK {
		return &TransportError{Op: op, Err: fmt.Errorf("api error: %s", envelope.Description)}
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

// checkStatus validates the HTTP status of a send call.
func (c *Client) checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Op: op, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return nil
}
