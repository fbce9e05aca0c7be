// Package rest реализует HTTP-слой клиента Blacket: JSON GET/POST с авторизацией
// cookie-токеном и единым конвертом ошибок {error, reason}.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://blacket.org"
	Version        = "0.1.0"
)

type Config struct {
	BaseURL    string
	Token      string
	UserAgent  string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Client struct {
	http      *http.Client
	base      string
	token     string
	userAgent string
	log       *zap.Logger
}

func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = fmt.Sprintf("blacket.go (%s)", Version)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{http: hc, base: base, token: cfg.Token, userAgent: ua, log: log}
}

func (c *Client) BaseURL() string { return c.base }

// URL: абсолютный адрес для пути на сервере (картинки, аватары).
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.base + path
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	_, err := c.Call(ctx, http.MethodGet, path, nil, out)
	return err
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	_, err := c.Call(ctx, http.MethodPost, path, body, out)
	return err
}

// Call выполняет запрос и декодирует успешный ответ в out (если out != nil).
// Возвращает заголовки ответа: нужны логину, который достаёт токен из cookie.
func (c *Client) Call(ctx context.Context, method, path string, body, out any) (http.Header, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("rest: encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Cookie", "token="+c.token+";")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rest: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.Header, fmt.Errorf("rest: read %s %s: %w", method, path, err)
	}
	c.log.Debug("rest call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if err := checkEnvelope(resp.StatusCode, raw); err != nil {
		return resp.Header, err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return resp.Header, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.Header, fmt.Errorf("rest: decode %s %s: %w", method, path, err)
	}
	return resp.Header, nil
}
