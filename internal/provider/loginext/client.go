package loginext

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shipwatch/internal/tracking"
	logx "shipwatch/pkg/logx"
)

const (
	// Name namespaces LogiNext shipments in the state store.
	Name = "loginext"

	DefaultURL      = "https://products.loginextsolutions.com/ShipmentApp/middlemile/shipment/order/iframe/details"
	DefaultAuth     = "BASIC c586fa65-473e-454d-826b-448cea88b320"
	DefaultUserType = "DELIVERCUSTOMER"
	DefaultTimeout  = 25 * time.Second

	maxBodyBytes = 8 << 20
)

// DefaultIDFields are the request body keys tried, in order, until the
// provider answers with a non-empty data container.
var DefaultIDFields = []string{"orderNo", "orderRefId", "orderId"}

// ErrFetch wraps every transport, status and decode failure.
var ErrFetch = errors.New("loginext fetch failed")

type Config struct {
	URL      string
	Auth     string
	UserType string
	IDFields []string
	Timeout  time.Duration
}

// Client posts order lookups to the LogiNext shipment details endpoint.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = DefaultURL
	}
	if strings.TrimSpace(cfg.Auth) == "" {
		cfg.Auth = DefaultAuth
	}
	if strings.TrimSpace(cfg.UserType) == "" {
		cfg.UserType = DefaultUserType
	}
	if len(cfg.IDFields) == 0 {
		cfg.IDFields = DefaultIDFields
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: log}
}

func (c *Client) Name() string { return Name }

// Fetch looks up one shipment. Each configured id field is tried in order
// until a response carries a non-empty data container.
//
// When every attempt fails, the last failure is returned wrapped in ErrFetch.
// When at least one attempt succeeded but none had data, the last successful
// response is returned without error (an empty timeline is not a fetch failure).
func (c *Client) Fetch(ctx context.Context, shipmentID string) (*tracking.Response, error) {
	var (
		lastOK  *tracking.Response
		lastErr error
	)
	for _, field := range c.cfg.IDFields {
		resp, err := c.post(ctx, field, shipmentID)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			c.log.Debug("lookup attempt failed", logx.String("shipment", shipmentID), logx.String("field", field), logx.Err(err))
			continue
		}
		if resp.HasData() {
			return resp, nil
		}
		lastOK = resp
	}
	if lastOK != nil {
		return lastOK, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no id fields configured")
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrFetch, shipmentID, lastErr)
}

func (c *Client) post(ctx context.Context, field, shipmentID string) (*tracking.Response, error) {
	payload := map[string]string{
		"userType": c.cfg.UserType,
		field:      shipmentID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("www-authenticate", c.cfg.Auth)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d", res.StatusCode)
	}

	var out tracking.Response
	if err := json.NewDecoder(io.LimitReader(res.Body, maxBodyBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return &out, nil
}
