package jamapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/five82/jamdeck/internal/media"
	"github.com/five82/jamdeck/internal/protocol"
)

// Client talks to the jam authority's HTTP side: audio files and catalog
// ingestion. It also derives the websocket endpoint.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	download  *http.Client
	userAgent string
}

const (
	defaultServer          = "127.0.0.1:8000"
	defaultUserAgent       = "jamdeck/0.1"
	requestTimeout         = 5 * time.Second
	defaultDownloadTimeout = 10 * time.Minute
	probeWindow            = 16 * 1024
)

var _ media.Prober = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithDownloadTimeout bounds catalog ingestion requests, which block until the
// authority has fetched and transcoded the audio.
func WithDownloadTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.download.Timeout = d
		}
	}
}

// NewClient builds a Client for server, given as host:port or a URL.
func NewClient(server string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(server)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: requestTimeout},
		download:  &http.Client{Timeout: defaultDownloadTimeout},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalised http(s) base.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// WebSocketURL returns the session endpoint, ws://host/ws or wss://host/ws.
func (c *Client) WebSocketURL() string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	return u.String()
}

// AudioURL returns where the authority serves track.
func (c *Client) AudioURL(track protocol.TrackID) string {
	rel := &url.URL{Path: "/audio/" + string(track)}
	return c.baseURL.ResolveReference(rel).String()
}

// Download asks the authority to ingest videoURL into the catalog.
func (c *Client) Download(ctx context.Context, videoURL string) (DownloadResult, error) {
	if c == nil {
		return DownloadResult{}, fmt.Errorf("client is nil")
	}
	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		return DownloadResult{}, fmt.Errorf("url is required")
	}
	var result DownloadResult
	body := downloadRequest{URL: videoURL}
	if err := c.doJSON(ctx, c.download, http.MethodPost, &url.URL{Path: "/download-youtube"}, body, &result); err != nil {
		return DownloadResult{}, err
	}
	if !result.Success {
		return result, fmt.Errorf("download %s: %w", videoURL, ErrDownloadFailed)
	}
	return result, nil
}

// ProbeDuration estimates the length of the MP3 at src from a ranged fetch of
// its first bytes.
func (c *Client) ProbeDuration(ctx context.Context, src string) (float64, error) {
	head, size, err := c.fetchRange(ctx, src, 0, probeWindow-1)
	if err != nil {
		return 0, err
	}
	if size <= 0 {
		return 0, fmt.Errorf("probe %s: unknown content length", src)
	}

	tag := media.TagSize(head)
	if tag > 0 && tag+4 > int64(len(head)) {
		// The tag (usually cover art) outgrew the first window; fetch the
		// frames that follow it.
		frames, _, err := c.fetchRange(ctx, src, tag, tag+probeWindow-1)
		if err != nil {
			return 0, err
		}
		info, err := media.ScanFrames(frames, size-tag)
		if err != nil {
			return 0, fmt.Errorf("probe %s: %w", src, err)
		}
		return info.Duration, nil
	}

	info, err := media.ProbeMP3(bytes.NewReader(head), size)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", src, err)
	}
	return info.Duration, nil
}

// fetchRange returns up to last-first+1 bytes starting at first and the total
// resource size when the server reports it.
func (c *Client) fetchRange(ctx context.Context, src string, first, last int64) ([]byte, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", first, last))
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var size int64
	switch resp.StatusCode {
	case http.StatusPartialContent:
		size = parseContentRangeSize(resp.Header.Get("Content-Range"))
	case http.StatusOK:
		size = resp.ContentLength
		if first > 0 {
			// Range ignored; skip to the requested offset.
			if _, err := io.CopyN(io.Discard, resp.Body, first); err != nil {
				return nil, 0, fmt.Errorf("skip to offset %d: %w", first, err)
			}
		}
	default:
		return nil, 0, &APIError{Path: src, Status: resp.StatusCode}
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, last-first+1))
	if err != nil {
		return nil, 0, fmt.Errorf("read body: %w", err)
	}
	return buf, size, nil
}

// parseContentRangeSize extracts the total from "bytes 0-99/1234". It returns
// -1 when the total is absent or unknown.
func parseContentRangeSize(header string) int64 {
	i := strings.LastIndexByte(header, '/')
	if i < 0 {
		return -1
	}
	size, err := strconv.ParseInt(strings.TrimSpace(header[i+1:]), 10, 64)
	if err != nil {
		return -1
	}
	return size
}

func (c *Client) doJSON(ctx context.Context, hc *http.Client, method string, rel *url.URL, body, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Path: rel.String(), Status: resp.StatusCode}
		var detail errorDetail
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&detail); err == nil {
			apiErr.Detail = detail.Detail
		}
		return apiErr
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(server string) (*url.URL, error) {
	trimmed := strings.TrimSpace(server)
	if trimmed == "" {
		trimmed = defaultServer
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server %q: %w", server, err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return nil, fmt.Errorf("parse server %q: unsupported scheme %q", server, u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("parse server: missing host")
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
