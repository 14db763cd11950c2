// Package guide talks to the last-mile carrier that receives hand-off
// shipments: it validates guide codes and resolves their cross-reference id.
package guide

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

	logx "shipwatch/pkg/logx"
)

const (
	DefaultTimeout = 20 * time.Second

	codePlaceholder = "{code}"
	maxBodyBytes    = 4 << 20
)

// DefaultReferenceFields are looked up, in order, in the detail response
// (top level first, then inside "data").
var DefaultReferenceFields = []string{"referencia", "reference", "trackingId", "id"}

var (
	// ErrRejected means the carrier does not recognize the code (non-2xx
	// status or an error flag in the body).
	ErrRejected = errors.New("guide code rejected")
	// ErrNoReference means the detail response has no cross-reference id.
	ErrNoReference = errors.New("guide detail has no reference")
)

type Config struct {
	// ValidateURL and DetailURL contain a "{code}" placeholder, e.g.
	// "https://carrier.example/api/guias/{code}/validar".
	ValidateURL     string
	DetailURL       string
	AuthHeader      string
	AuthValue       string
	ReferenceFields []string
	Timeout         time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if len(cfg.ReferenceFields) == 0 {
		cfg.ReferenceFields = DefaultReferenceFields
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: log}
}

// Validate asks the carrier whether code is a known guide.
func (c *Client) Validate(ctx context.Context, code string) error {
	body, status, err := c.get(ctx, c.cfg.ValidateURL, code)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: %s: http status %d", ErrRejected, code, status)
	}
	var m map[string]any
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &m); err != nil {
			return fmt.Errorf("%w: %s: decode body: %v", ErrRejected, code, err)
		}
	}
	if errorFlag(m) {
		return fmt.Errorf("%w: %s: error flag set", ErrRejected, code)
	}
	return nil
}

// Resolve fetches the guide detail and returns its cross-reference id.
func (c *Client) Resolve(ctx context.Context, code string) (string, error) {
	body, status, err := c.get(ctx, c.cfg.DetailURL, code)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("guide detail %s: http status %d", code, status)
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return "", fmt.Errorf("guide detail %s: decode body: %w", code, err)
	}
	if ref := c.reference(m); ref != "" {
		return ref, nil
	}
	if data, ok := m["data"].(map[string]any); ok {
		if ref := c.reference(data); ref != "" {
			return ref, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoReference, code)
}

func (c *Client) reference(m map[string]any) string {
	for _, k := range c.cfg.ReferenceFields {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func (c *Client) get(ctx context.Context, tmpl, code string) ([]byte, int, error) {
	if strings.TrimSpace(tmpl) == "" {
		return nil, 0, errors.New("guide endpoint not configured")
	}
	u := strings.ReplaceAll(tmpl, codePlaceholder, url.PathEscape(code))

	cctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.AuthHeader != "" {
		req.Header.Set(c.cfg.AuthHeader, c.cfg.AuthValue)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = res.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, res.StatusCode, err
	}
	return b, res.StatusCode, nil
}

// errorFlag reports a truthy "error" field or an explicit "success": false.
func errorFlag(m map[string]any) bool {
	if m == nil {
		return false
	}
	switch v := m["error"].(type) {
	case bool:
		if v {
			return true
		}
	case string:
		if strings.TrimSpace(v) != "" {
			return true
		}
	case float64:
		if v != 0 {
			return true
		}
	case map[string]any:
		return len(v) > 0
	}
	if ok, present := m["success"].(bool); present && !ok {
		return true
	}
	return false
}
