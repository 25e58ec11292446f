// Package backoffice implements every collaborator contract against the
// back-office JSON/HTTP gateway.
package backoffice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rescuedesk/internal/collab"
	"github.com/kiranshivaraju/rescuedesk/pkg/models"
	"github.com/shopspring/decimal"
)

// HTTPClient talks to the back-office gateway.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a new back-office HTTP client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// --- lookups ---

func (c *HTTPClient) Customer(ctx context.Context, customerID string) (models.CustomerProfile, error) {
	var p models.CustomerProfile
	err := c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerID), nil, &p, collab.ErrUnavailable)
	if err != nil {
		return models.CustomerProfile{}, fmt.Errorf("customer %q: %w", customerID, err)
	}
	return p, nil
}

func (c *HTTPClient) Transcript(ctx context.Context, transcriptID string) (string, error) {
	var resp transcriptResponse
	err := c.do(ctx, http.MethodGet, "/transcripts/"+url.PathEscape(transcriptID), nil, &resp, collab.ErrUnavailable)
	if err != nil {
		return "", fmt.Errorf("transcript %q: %w", transcriptID, err)
	}
	return resp.Text, nil
}

func (c *HTTPClient) Policy(ctx context.Context, query string) (string, error) {
	var resp policyResponse
	path := "/policies?" + url.Values{"q": {query}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, collab.ErrUnavailable); err != nil {
		return "", fmt.Errorf("policy: %w", err)
	}
	return resp.Text, nil
}

func (c *HTTPClient) OrderStatus(ctx context.Context, orderID string) (models.OrderStatus, error) {
	var s models.OrderStatus
	err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, &s, collab.ErrUnavailable)
	if err != nil {
		return models.OrderStatus{}, fmt.Errorf("order %q: %w", orderID, err)
	}
	return s, nil
}

// --- executors ---

func (c *HTTPClient) Refund(ctx context.Context, orderID string, amount decimal.Decimal) (collab.Receipt, error) {
	var r collab.Receipt
	err := c.do(ctx, http.MethodPost, "/refunds", refundRequest{OrderID: orderID, Amount: amount}, &r, collab.ErrExecutionFailure)
	if err != nil {
		return collab.Receipt{}, fmt.Errorf("refund %q: %w", orderID, err)
	}
	return r, nil
}

func (c *HTTPClient) Reship(ctx context.Context, orderID string, express bool) (collab.Receipt, error) {
	var r collab.Receipt
	err := c.do(ctx, http.MethodPost, "/reshipments", reshipRequest{OrderID: orderID, Express: express}, &r, collab.ErrExecutionFailure)
	if err != nil {
		return collab.Receipt{}, fmt.Errorf("reship %q: %w", orderID, err)
	}
	return r, nil
}

func (c *HTTPClient) IssueCoupon(ctx context.Context, value int, unit string) (collab.Coupon, error) {
	var cp collab.Coupon
	err := c.do(ctx, http.MethodPost, "/coupons", couponRequest{Value: value, Unit: unit}, &cp, collab.ErrExecutionFailure)
	if err != nil {
		return collab.Coupon{}, fmt.Errorf("coupon: %w", err)
	}
	return cp, nil
}

func (c *HTTPClient) Send(ctx context.Context, msg collab.Message) (collab.Receipt, error) {
	var r collab.Receipt
	if err := c.do(ctx, http.MethodPost, "/messages", msg, &r, collab.ErrDeliveryFailure); err != nil {
		return collab.Receipt{}, fmt.Errorf("send message: %w", err)
	}
	return r, nil
}

func (c *HTTPClient) AppendRecord(ctx context.Context, record models.ResolutionRecord) error {
	req := recordRequest{Entry: record.Entry()}
	if record.RunID != uuid.Nil {
		req.RunID = record.RunID.String()
	}
	path := "/customers/" + url.PathEscape(record.CustomerID) + "/records"
	if err := c.do(ctx, http.MethodPost, path, req, nil, collab.ErrWriteFailure); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// Lookups returns the client as a read-side bundle.
func (c *HTTPClient) Lookups() collab.Lookups {
	return collab.Lookups{Customers: c, Transcripts: c, Policies: c, Orders: c}
}

// Executors returns the client as an executor bundle.
func (c *HTTPClient) Executors() collab.Executors {
	return collab.Executors{Refunds: c, Reships: c, Coupons: c}
}

// Ready checks that the gateway is reachable.
func (c *HTTPClient) Ready(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ready", nil, nil, collab.ErrUnavailable)
}

// do sends one JSON request. 404 maps to collab.ErrNotFound; any other non-2xx
// status maps to failure.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any, failure error) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(req, in != nil)

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err, failure)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: status %d", collab.ErrNotFound, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d%s", failure, resp.StatusCode, errorDetail(resp.Body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", failure, err)
	}
	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// classifyError maps transport-level errors to sentinel errors. Executors keep
// their own failure sentinel alongside the transport classification.
func classifyError(err, failure error) error {
	transport := collab.ErrUnavailable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		transport = collab.ErrTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		transport = collab.ErrTimeout
	}

	if failure == collab.ErrUnavailable {
		return fmt.Errorf("%w: %v", transport, err)
	}
	return fmt.Errorf("%w: %w: %v", failure, transport, err)
}

// errorDetail extracts a short message from an error response body.
func errorDetail(r io.Reader) string {
	var e errorResponse
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&e); err != nil || e.Error == "" {
		return ""
	}
	return ": " + e.Error
}

// --- wire types ---

type transcriptResponse struct {
	Text string `json:"transcript"`
}

type policyResponse struct {
	Text string `json:"policy"`
}

type refundRequest struct {
	OrderID string          `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
}

type reshipRequest struct {
	OrderID string `json:"order_id"`
	Express bool   `json:"express"`
}

type couponRequest struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

type recordRequest struct {
	Entry string `json:"entry"`
	RunID string `json:"run_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Compile-time checks that HTTPClient implements every collaborator.
var (
	_ collab.CustomerLookup    = (*HTTPClient)(nil)
	_ collab.TranscriptLookup  = (*HTTPClient)(nil)
	_ collab.PolicyLookup      = (*HTTPClient)(nil)
	_ collab.OrderStatusLookup = (*HTTPClient)(nil)
	_ collab.RefundExecutor    = (*HTTPClient)(nil)
	_ collab.ReshipExecutor    = (*HTTPClient)(nil)
	_ collab.CouponExecutor    = (*HTTPClient)(nil)
	_ collab.Messenger         = (*HTTPClient)(nil)
	_ collab.RecordKeeper      = (*HTTPClient)(nil)
)
