// Package device talks to the agent running on the monitored device. The
// agent exposes the OS usage statistics, installed-app metadata and the
// block screen over a small JSON API.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goodtune/screenguard/internal/appmeta"
	"github.com/goodtune/screenguard/internal/usage"
)

// UserAgent identifies screenguard to the device agent.
const UserAgent = "screenguard"

// maxBodyBytes bounds agent responses.
const maxBodyBytes = 4 << 20

// Config holds device client configuration
type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// Client is the device agent HTTP client. It implements usage.Source,
// appmeta.Lookup and the monitor's block-screen port.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
}

// NewClient creates a device agent client
func NewClient(config Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(config.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid device url %q: %w", config.URL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid device url %q: scheme must be http or https", config.URL)
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	return &Client{
		baseURL: base,
		token:   config.Token,
		http:    &http.Client{Timeout: config.Timeout},
	}, nil
}

// HTTPClient exposes the underlying client so transports can be swapped in tests.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Query implements usage.Source.
func (c *Client) Query(ctx context.Context, interval usage.Interval, start, end time.Time) ([]usage.UsageSample, error) {
	q := url.Values{}
	q.Set("interval", string(interval))
	q.Set("start", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("end", strconv.FormatInt(end.UnixMilli(), 10))

	var samples []usage.UsageSample
	status, err := c.do(ctx, http.MethodGet, "/v1/usage", q, nil, &samples)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	if status == http.StatusNoContent || samples == nil {
		return []usage.UsageSample{}, nil
	}
	return samples, nil
}

// LookupApp implements appmeta.Lookup.
func (c *Client) LookupApp(ctx context.Context, packageID string) (appmeta.AppInfo, error) {
	var info appmeta.AppInfo
	status, err := c.do(ctx, http.MethodGet, "/v1/apps/"+url.PathEscape(packageID), nil, nil, &info)
	if status == http.StatusNotFound {
		return appmeta.AppInfo{}, fmt.Errorf("%s: %w", packageID, appmeta.ErrUnknownApp)
	}
	if err != nil {
		return appmeta.AppInfo{}, fmt.Errorf("lookup app %s: %w", packageID, err)
	}
	if info.PackageID == "" {
		info.PackageID = packageID
	}
	return info, nil
}

// InstalledApps lists the apps installed on the device.
func (c *Client) InstalledApps(ctx context.Context) ([]appmeta.AppInfo, error) {
	var apps []appmeta.AppInfo
	if _, err := c.do(ctx, http.MethodGet, "/v1/apps", nil, nil, &apps); err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	if apps == nil {
		apps = []appmeta.AppInfo{}
	}
	return apps, nil
}

// PresentBlockScreen raises the full-screen interstitial naming the blocked app.
func (c *Client) PresentBlockScreen(ctx context.Context, appName string) error {
	body := struct {
		AppName string `json:"app_name"`
	}{AppName: appName}

	if _, err := c.do(ctx, http.MethodPost, "/v1/block", nil, body, nil); err != nil {
		return fmt.Errorf("present block screen: %w", err)
	}
	return nil
}

// do performs one request and decodes a JSON response into out when non-nil.
// The status code is returned even when err is set.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) (int, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return resp.StatusCode, usage.ErrPermissionDenied
	case resp.StatusCode == http.StatusNoContent:
		return resp.StatusCode, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("device agent returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
