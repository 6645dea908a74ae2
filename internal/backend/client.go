// Package backend is the REST client for the mining investment API.
package backend

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

	"github.com/hashvest/minerdash/internal/accrual"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultRequestTimeout = 20 * time.Second
	defaultRateLimit      = 5
	defaultRateBurst      = 10
	maxResponseBytes      = 4 << 20
	userAgent             = "minerdash/1.0"
)

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Options configures a Client.
type Options struct {
	BaseURL        string
	RequestTimeout time.Duration
	// RatePerSecond limits outgoing requests; zero uses the default, negative disables limiting.
	RatePerSecond float64
	Burst         int
	HTTPClient    *http.Client
	Now           func() time.Time
}

// Client talks to the backend REST API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	limiter *rate.Limiter
	timeout time.Duration
	now     func() time.Time
}

// NewClient validates the base URL and builds a client. tokens may be nil for unauthenticated use.
func NewClient(opts Options, tokens TokenSource) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("backend: base url is required")
	}
	base, errParse := url.Parse(strings.TrimRight(raw, "/"))
	if errParse != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", errParse)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend: unsupported base url scheme %q", base.Scheme)
	}

	c := &Client{
		baseURL: base,
		http:    opts.HTTPClient,
		tokens:  tokens,
		timeout: opts.RequestTimeout,
		now:     opts.Now,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = defaultRequestTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	switch {
	case opts.RatePerSecond < 0:
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	case opts.RatePerSecond == 0:
		c.limiter = rate.NewLimiter(rate.Limit(defaultRateLimit), defaultRateBurst)
	default:
		burst := opts.Burst
		if burst <= 0 {
			burst = defaultRateBurst
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return c, nil
}

// ListPurchases fetches the user's purchases with timing fields included.
func (c *Client) ListPurchases(ctx context.Context) ([]accrual.RawPurchase, error) {
	payload, errReq := c.do(ctx, http.MethodGet, "/purchases", url.Values{"include_timing": {"true"}}, nil, true)
	if errReq != nil {
		return nil, errReq
	}
	purchases, errDecode := accrual.DecodePurchases(payload)
	if errDecode != nil {
		return nil, fmt.Errorf("backend: decode purchases: %w", errDecode)
	}
	return purchases, nil
}

// EarningsSummary fetches aggregate earnings and upcoming maturities.
func (c *Client) EarningsSummary(ctx context.Context) (accrual.Summary, error) {
	payload, errReq := c.do(ctx, http.MethodGet, "/earnings/summary", nil, nil, true)
	if errReq != nil {
		return accrual.Summary{}, errReq
	}
	summary, errDecode := accrual.DecodeSummary(payload, c.now())
	if errDecode != nil {
		return accrual.Summary{}, fmt.Errorf("backend: decode summary: %w", errDecode)
	}
	return summary, nil
}

type createPurchaseRequest struct {
	EngineID string          `json:"engine_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// CreatePurchase buys into a mining engine and returns the created purchase.
func (c *Client) CreatePurchase(ctx context.Context, engineID string, amount decimal.Decimal) (accrual.RawPurchase, error) {
	engineID = strings.TrimSpace(engineID)
	if engineID == "" {
		return accrual.RawPurchase{}, errors.New("backend: engine id is required")
	}
	if !amount.IsPositive() {
		return accrual.RawPurchase{}, errors.New("backend: amount must be positive")
	}
	body, errMarshal := json.Marshal(createPurchaseRequest{EngineID: engineID, Amount: amount})
	if errMarshal != nil {
		return accrual.RawPurchase{}, fmt.Errorf("backend: encode purchase: %w", errMarshal)
	}
	payload, errReq := c.do(ctx, http.MethodPost, "/purchases", nil, body, true)
	if errReq != nil {
		return accrual.RawPurchase{}, errReq
	}
	purchase, errDecode := accrual.DecodePurchase(payload)
	if errDecode != nil {
		return accrual.RawPurchase{}, fmt.Errorf("backend: decode purchase: %w", errDecode)
	}
	return purchase, nil
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	Data        *struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	} `json:"data"`
}

func (r loginResponse) token() string {
	for _, candidate := range []string{r.Token, r.AccessToken} {
		if t := strings.TrimSpace(candidate); t != "" {
			return t
		}
	}
	if r.Data != nil {
		for _, candidate := range []string{r.Data.Token, r.Data.AccessToken} {
			if t := strings.TrimSpace(candidate); t != "" {
				return t
			}
		}
	}
	return ""
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, phone, password string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || password == "" {
		return "", errors.New("backend: phone and password are required")
	}
	body, errMarshal := json.Marshal(loginRequest{Phone: phone, Password: password})
	if errMarshal != nil {
		return "", fmt.Errorf("backend: encode login: %w", errMarshal)
	}
	payload, errReq := c.do(ctx, http.MethodPost, "/auth/login", nil, body, false)
	if errReq != nil {
		return "", errReq
	}
	var resp loginResponse
	if errUnmarshal := json.Unmarshal(payload, &resp); errUnmarshal != nil {
		return "", fmt.Errorf("backend: decode login: %w", errUnmarshal)
	}
	token := resp.token()
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, authenticated bool) ([]byte, error) {
	if c == nil {
		return nil, errors.New("backend: client not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	headers := http.Header{}
	headers.Set("Accept", "application/json")
	headers.Set("User-Agent", userAgent)
	if body != nil {
		headers.Set("Content-Type", "application/json")
	}
	if authenticated {
		if c.tokens == nil {
			return nil, ErrNoToken
		}
		token, errToken := c.tokens.Token(ctx)
		if errToken != nil {
			return nil, errToken
		}
		if token == "" {
			return nil, ErrNoToken
		}
		headers.Set("Authorization", "Bearer "+token)
	}

	if errWait := c.limiter.Wait(ctx); errWait != nil {
		return nil, fmt.Errorf("backend: rate limit wait: %w", errWait)
	}

	status, payload, errReq := c.doRequest(ctx, method, c.resolve(path, query), body, headers)
	if errReq != nil {
		return nil, fmt.Errorf("backend: %s %s: %w", method, path, errReq)
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		log.Debugf("backend: %s %s status=%d body=%s", method, path, status, summarizePayload(payload))
		return nil, NewRequestError(method, path, status, payload)
	}
	return payload, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	target := *c.baseURL
	target.Path = strings.TrimRight(target.Path, "/") + path
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	return target.String()
}

func (c *Client) doRequest(ctx context.Context, method, targetURL string, body []byte, headers http.Header) (int, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, errReq := http.NewRequestWithContext(reqCtx, method, targetURL, reader)
	if errReq != nil {
		return 0, nil, errReq
	}
	req.Header = headers

	resp, errResp := c.http.Do(req)
	if errResp != nil {
		return 0, nil, errResp
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("backend: close response body error: %v", errClose)
		}
	}()

	payload, errRead := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if errRead != nil {
		return resp.StatusCode, nil, errRead
	}
	return resp.StatusCode, payload, nil
}
