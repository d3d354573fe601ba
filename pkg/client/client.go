// Package client is a Go client for the certificate service HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second
	adminKeyHeader = "X-Admin-Key"
	maxBodyBytes   = 4 << 20
)

type Certificate struct {
	Name     string   `json:"name"`
	UniqueID string   `json:"unique_id"`
	Serial   string   `json:"serial"`
	Date     uint64   `json:"date"`
	Owner    string   `json:"owner"`
	Metadata []string `json:"metadata"`
}

type Signed struct {
	Signature string          `json:"signature"`
	Signer    string          `json:"signer"`
	Digest    string          `json:"digest"`
	ChainID   string          `json:"chain_id,omitempty"`
	Policy    json.RawMessage `json:"policy,omitempty"`
}

// Created is a signed certificate with its QR code. DisplayTypedData is for
// rendering only; wallet signatures over it do not verify.
type Created struct {
	Signed
	Certificate      Certificate     `json:"certificate"`
	DisplayTypedData json.RawMessage `json:"display_typed_data"`
	QRPayload        json.RawMessage `json:"qr_payload"`
	QRCodePNG        string          `json:"qr_code_png_base64,omitempty"`
}

type VerifyRequest struct {
	Certificate
	Signature string `json:"signature,omitempty"`
	Signer    string `json:"signer,omitempty"`
	Variant   string `json:"variant,omitempty"`
}

type Verdict struct {
	Outcome           string `json:"outcome"`
	Valid             bool   `json:"valid"`
	Variant           string `json:"variant"`
	Reason            string `json:"reason,omitempty"`
	RejectReason      string `json:"reject_reason,omitempty"`
	Digest            string `json:"digest,omitempty"`
	ClaimedOwner      string `json:"claimed_owner,omitempty"`
	RecoveredSigner   string `json:"recovered_signer,omitempty"`
	RegisteredAddress string `json:"registered_address,omitempty"`
}

type Manufacturer struct {
	Address             string `json:"address"`
	ManufacturerAddress string `json:"manufacturer_address"`
	Registered          bool   `json:"registered"`
}

type Registration struct {
	Name                 string `json:"name"`
	ManufacturerAddress  string `json:"manufacturer_address"`
	ManufacturerContract string `json:"manufacturer_contract"`
	TxHash               string `json:"tx_hash"`
	BlockNumber          uint64 `json:"block_number"`
}

type AuditChain struct {
	Status string `json:"status"`
	Events int    `json:"events"`
}

type Health struct {
	Status  string `json:"status"`
	Mode    string `json:"mode"`
	ChainID string `json:"chain_id,omitempty"`
	Signer  string `json:"signer,omitempty"`
}

// APIError is a non-2xx response carrying the service error body.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("certificate service: http %d", e.Status)
	}
	return fmt.Sprintf("certificate service: http %d %s: %s", e.Status, e.Code, e.Message)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithAdminKey(key string) Option {
	return func(c *Client) {
		c.adminKey = key
	}
}

type Client struct {
	baseURL  *url.URL
	http     *http.Client
	adminKey string
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("base url must be http or https")
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, http.MethodGet, "/healthz", nil, false, &out)
	return out, err
}

func (c *Client) Sign(ctx context.Context, cert Certificate) (Signed, error) {
	var out Signed
	err := c.do(ctx, http.MethodPost, "/v1/certificates:sign", cert, false, &out)
	return out, err
}

func (c *Client) Create(ctx context.Context, cert Certificate) (Created, error) {
	var out Created
	err := c.do(ctx, http.MethodPost, "/v1/certificates:create", cert, false, &out)
	return out, err
}

// Verify returns the verdict for completed and rejected checks alike. An
// error means no verdict was produced.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (Verdict, error) {
	status, body, err := c.roundTrip(ctx, http.MethodPost, "/v1/certificates:verify", req, false)
	if err != nil {
		return Verdict{}, err
	}
	var out Verdict
	if err := json.Unmarshal(body, &out); err == nil && out.Outcome != "" {
		return out, nil
	}
	if status/100 != 2 {
		return Verdict{}, decodeAPIError(status, body)
	}
	return Verdict{}, errors.New("certificate service: verify response has no outcome")
}

func (c *Client) LookupManufacturer(ctx context.Context, address string) (Manufacturer, error) {
	var out Manufacturer
	err := c.do(ctx, http.MethodGet, "/v1/manufacturers/"+url.PathEscape(address), nil, false, &out)
	return out, err
}

func (c *Client) RegisterManufacturer(ctx context.Context, name string) (Registration, error) {
	var out Registration
	err := c.do(ctx, http.MethodPost, "/v1/manufacturers", map[string]string{"name": name}, true, &out)
	return out, err
}

// VerifyAuditChain asks the service to re-walk its audit log. A broken chain
// comes back as an *APIError with code AUDIT_CHAIN_INVALID.
func (c *Client) VerifyAuditChain(ctx context.Context) (AuditChain, error) {
	var out AuditChain
	err := c.do(ctx, http.MethodGet, "/v1/audit/verify", nil, true, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in any, admin bool, out any) error {
	status, body, err := c.roundTrip(ctx, method, path, in, admin)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return decodeAPIError(status, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in any, admin bool) (int, []byte, error) {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if admin {
		if c.adminKey == "" {
			return 0, nil, errors.New("admin key is required for this call")
		}
		req.Header.Set(adminKeyHeader, c.adminKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func decodeAPIError(status int, body []byte) error {
	apiErr := &APIError{Status: status}
	_ = json.Unmarshal(body, apiErr)
	return apiErr
}
