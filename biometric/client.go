// Package biometric fetches raw punch data from the biometric vendor's
// HTTP API.
package biometric

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/generic"
)

const serviceName = "biometric"

// DefaultTimeout bounds one vendor call.
const DefaultTimeout = 30 * time.Second

// maxBody caps how much of a response is read.
const maxBody = 64 << 20

type Config struct {
	BaseURL    string
	Token      string
	AuthScheme string // "Basic" unless set
	Timeout    time.Duration
}

// Client implements attendance.PunchSource.
type Client struct {
	baseURL    string
	token      string
	authScheme string
	http       *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Basic"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		authScheme: cfg.AuthScheme,
		http:       &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// FetchPunches requests every employee's punches for month. Transport
// failures, non-200 responses and payloads without InOutPunchData are all
// *generic.UpstreamError. An empty list is a valid answer.
func (c *Client) FetchPunches(ctx context.Context, month generic.Month) ([]attendance.VendorRow, error) {
	endpoint, err := c.monthURL(month)
	if err != nil {
		return nil, &generic.UpstreamError{Service: serviceName, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &generic.UpstreamError{Service: serviceName, Err: err}
	}
	req.Header.Set("Authorization", c.authScheme+" "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &generic.UpstreamError{Service: serviceName, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &generic.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Info("biometric fetch",
		"month", month.String(),
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", time.Since(started).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, &generic.UpstreamError{
			Service:    serviceName,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", snippet(body)),
		}
	}

	var payload attendance.PunchPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &generic.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode payload: %w", err)}
	}
	if payload.InOutPunchData == nil {
		return nil, &generic.UpstreamError{Service: serviceName, StatusCode: resp.StatusCode, Err: errors.New("payload has no InOutPunchData")}
	}
	return payload.InOutPunchData, nil
}

// monthURL builds ?Empcode=ALL&FromDate=DD/MM/YYYY&ToDate=DD/MM/YYYY.
func (c *Client) monthURL(month generic.Month) (string, error) {
	if strings.TrimSpace(c.baseURL) == "" {
		return "", errors.New("biometric API URL is not configured")
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("bad biometric API URL: %w", err)
	}
	// The vendor expects the dates with literal slashes.
	query := fmt.Sprintf("Empcode=ALL&FromDate=%s&ToDate=%s",
		month.First().VendorString(), month.Last().VendorString())
	if u.RawQuery != "" {
		query = u.RawQuery + "&" + query
	}
	u.RawQuery = query
	return u.String(), nil
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

var _ attendance.PunchSource = (*Client)(nil)
