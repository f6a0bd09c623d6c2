// Package resolverclient is a Go client for the resolverd REST API.
package resolverclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"Attest-Resolver/internal/auth"
	"Attest-Resolver/internal/resolver"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with resolverd.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// AdminCall carries the arguments of an administrative operation.
type AdminCall struct {
	Caller    common.Address
	Amount    *big.Int
	Recipient common.Address
	Proofs    auth.Proofs
}

// APIError represents a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("resolver api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("resolver api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the resolver API. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// List returns every registered resolver.
func (c *Client) List(ctx context.Context) ([]resolver.Entry, error) {
	var entries []resolver.Entry
	if err := c.get(ctx, "/api/v1/resolvers", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Metadata returns the metadata of the named resolver.
func (c *Client) Metadata(ctx context.Context, name string) (resolver.Metadata, error) {
	var meta resolver.Metadata
	err := c.get(ctx, resolverPath(name, "metadata"), &meta)
	return meta, err
}

// OnAttest calls the attestation creation hook.
func (c *Client) OnAttest(ctx context.Context, name string, att resolver.Attestation, proofs auth.Proofs) (bool, error) {
	return c.hook(ctx, resolverPath(name, "onattest"), att, proofs)
}

// OnRevoke calls the revocation hook.
func (c *Client) OnRevoke(ctx context.Context, name string, att resolver.Attestation, proofs auth.Proofs) (bool, error) {
	return c.hook(ctx, resolverPath(name, "onrevoke"), att, proofs)
}

// OnResolve calls the settlement hook.
func (c *Client) OnResolve(ctx context.Context, name string, uid common.Hash, attester common.Address, proofs auth.Proofs) error {
	payload := struct {
		UID      common.Hash    `json:"uid"`
		Attester common.Address `json:"attester"`
		Proofs   auth.Proofs    `json:"proofs"`
	}{uid, attester, proofs}
	return c.post(ctx, resolverPath(name, "onresolve"), payload, nil)
}

// Admin runs the administrative operation op on the named resolver.
func (c *Client) Admin(ctx context.Context, name, op string, call AdminCall) error {
	payload := struct {
		Caller    common.Address `json:"caller"`
		Amount    string         `json:"amount,omitempty"`
		Recipient common.Address `json:"recipient"`
		Proofs    auth.Proofs    `json:"proofs"`
	}{Caller: call.Caller, Recipient: call.Recipient, Proofs: call.Proofs}
	if call.Amount != nil {
		payload.Amount = call.Amount.String()
	}
	return c.post(ctx, resolverPath(name, "admin", op), payload, nil)
}

// State decodes the named resolver's state view into out.
func (c *Client) State(ctx context.Context, name string, out any) error {
	return c.get(ctx, resolverPath(name, "state"), out)
}

// Account decodes the ledger entry of addr into out.
func (c *Client) Account(ctx context.Context, name string, addr common.Address, out any) error {
	return c.get(ctx, resolverPath(name, "accounts", addr.Hex()), out)
}

func (c *Client) hook(ctx context.Context, endpoint string, att resolver.Attestation, proofs auth.Proofs) (bool, error) {
	payload := struct {
		Attestation resolver.Attestation `json:"attestation"`
		Proofs      auth.Proofs          `json:"proofs"`
	}{att, proofs}
	var resp struct {
		Allowed bool `json:"allowed"`
	}
	if err := c.post(ctx, endpoint, payload, &resp); err != nil {
		return false, err
	}
	return resp.Allowed, nil
}

func resolverPath(name string, parts ...string) string {
	return path.Join(append([]string{"/api/v1/resolvers", url.PathEscape(name)}, parts...)...)
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		_ = json.Unmarshal(data, apiErr)
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
