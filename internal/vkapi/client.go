// Package vkapi implements the remote operation client for the VK API. It
// speaks the form-encoded method call convention and splits application
// rejections from transport failures.
package vkapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vkgate/vkgate/internal/message"
)

const (
	defaultBaseURL = "https://api.vk.com/method"
	defaultVersion = "5.199"
	defaultTimeout = 30 * time.Second
)

// Config holds the client settings. Zero values fall back to defaults,
// except Token which callers must provide.
type Config struct {
	Token   string
	Version string
	BaseURL string
	Timeout time.Duration
}

// Client calls VK API methods over HTTP. It implements message.Caller.
type Client struct {
	logger  *slog.Logger
	http    *http.Client
	baseURL string
	token   string
	version string
}

var _ message.Caller = (*Client)(nil)

// NewClient creates an API client from cfg.
func NewClient(log *slog.Logger, cfg Config) *Client {
	if log == nil {
		log = slog.Default()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	version := cfg.Version
	if version == "" {
		version = defaultVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		logger:  log.With(slog.String("service", "vkapi")),
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   cfg.Token,
		version: version,
	}
}

// Call performs one API method call. Application rejections come back as
// *Error; transport and decode failures are wrapped.
func (c *Client) Call(ctx context.Context, method string, params message.Params) (json.RawMessage, error) {
	form, err := encodeParams(params)
	if err != nil {
		return nil, err
	}
	form.Set("access_token", c.token)
	form.Set("v", c.version)

	endpoint := c.baseURL + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("call %s status: %d", method, resp.StatusCode)
	}

	var envelope struct {
		Response json.RawMessage `json:"response"`
		Error    *Error          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if envelope.Error != nil {
		c.logger.Warn("api method rejected",
			slog.String("method", method),
			slog.Int("code", envelope.Error.Code),
			slog.String("message", envelope.Error.Message))
		return nil, envelope.Error
	}
	c.logger.Debug("api method called",
		slog.String("method", method),
		slog.Duration("latency", time.Since(started)))
	return envelope.Response, nil
}

func encodeParams(params message.Params) (url.Values, error) {
	form := url.Values{}
	for key, value := range params {
		encoded, err := encodeValue(value)
		if err != nil {
			return nil, fmt.Errorf("encode param %s: %w", key, err)
		}
		form.Set(key, encoded)
	}
	return form, nil
}

// encodeValue renders one parameter the way the API expects: booleans as
// 0/1, scalars verbatim, everything structured as JSON.
func encodeValue(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}
}
