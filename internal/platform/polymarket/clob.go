package polymarket

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
	"time"

	"github.com/cryptogyan1/polyarb/internal/crypto"
	"github.com/cryptogyan1/polyarb/internal/domain"
	"github.com/shopspring/decimal"
)

// ClobClient is the REST client for the Polymarket CLOB (Central Limit
// Order Book) API. It handles price queries, order placement, and API key
// derivation.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
	hmacAuth   *crypto.HMACAuth
	now        func() time.Time
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
// signer is the EIP-712 signer used for L1 auth and the POLY_ADDRESS header.
// hmac is the HMAC authenticator for L2 requests; it may be nil until
// DeriveAPIKey has run. A zero timeout defaults to 10s.
func NewClobClient(baseURL string, signer *crypto.Signer, hmac *crypto.HMACAuth, timeout time.Duration) *ClobClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		signer:   signer,
		hmacAuth: hmac,
		now:      time.Now,
	}
}

// HasCredentials reports whether L2 API credentials are available.
func (c *ClobClient) HasCredentials() bool {
	return !c.hmacAuth.Empty()
}

// PostOrder submits a signed order as a GTC limit order. A non-2xx answer is
// reported as domain.ErrOrderRejected (or a more specific sentinel for auth
// and rate limiting); a transport failure as domain.ErrNetwork.
func (c *ClobClient) PostOrder(ctx context.Context, order domain.SignedOrder) (domain.OrderResult, error) {
	if c.hmacAuth.Empty() {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w: no API credentials", domain.ErrUnauthorized)
	}
	apiOrder, err := NewAPIOrder(order)
	if err != nil {
		return domain.OrderResult{}, err
	}

	body := PostOrderRequest{
		Order:     apiOrder,
		Owner:     c.hmacAuth.Key,
		OrderType: string(domain.OrderTypeGTC),
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var apiResult APIOrderResult
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &apiResult); err != nil {
			return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
		}
	} else {
		apiResult.Success = true
	}

	result := apiResult.ToDomainOrderResult()
	if !result.Success {
		return result, fmt.Errorf("polymarket/clob: %w: %s", domain.ErrOrderRejected, result.Message)
	}

	return result, nil
}

// GetPrice returns the best price on one side of a token's book. side=BUY
// yields the best bid, side=SELL the best ask. A missing book or empty side
// is reported as an invalid NullDecimal with a nil error.
func (c *ClobClient) GetPrice(ctx context.Context, tokenID string, side domain.OrderSide) (decimal.NullDecimal, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)
	params.Set("side", side.Wire())

	body, err := c.doGet(ctx, "/price?"+params.Encode())
	if errors.Is(err, domain.ErrNotFound) {
		return decimal.NullDecimal{}, nil
	}
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("polymarket/clob: get price %s: %w", tokenID, err)
	}

	var pr PriceResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("polymarket/clob: decode price: %w", err)
	}
	if pr.Price == "" {
		return decimal.NullDecimal{}, nil
	}
	p, err := decimal.NewFromString(pr.Price)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("polymarket/clob: parse price %q: %w", pr.Price, err)
	}
	if !p.IsPositive() {
		return decimal.NullDecimal{}, nil
	}
	return decimal.NewNullDecimal(p), nil
}

// GetQuote returns the best bid and ask of one outcome token using two
// /price queries.
func (c *ClobClient) GetQuote(ctx context.Context, tokenID string) (domain.OutcomeQuote, error) {
	bid, err := c.GetPrice(ctx, tokenID, domain.OrderSideBuy)
	if err != nil {
		return domain.OutcomeQuote{}, err
	}
	ask, err := c.GetPrice(ctx, tokenID, domain.OrderSideSell)
	if err != nil {
		return domain.OutcomeQuote{}, err
	}
	return domain.OutcomeQuote{TokenID: tokenID, BestBid: bid, BestAsk: ask}, nil
}

// GetBook returns the full book of one token.
func (c *ClobClient) GetBook(ctx context.Context, tokenID string) (BookUpdate, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := c.doGet(ctx, "/book?"+params.Encode())
	if errors.Is(err, domain.ErrNotFound) {
		return BookUpdate{AssetID: tokenID}, nil
	}
	if err != nil {
		return BookUpdate{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}

	var br BookResponse
	if err := json.Unmarshal(body, &br); err != nil {
		return BookUpdate{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}
	msg := BookMessage{AssetID: tokenID, Bids: br.Bids, Asks: br.Asks}
	return msg.ToBookUpdate(), nil
}

// DeriveAPIKey performs the CLOB auth flow to obtain an HMAC API key. It
// signs a ClobAuth EIP-712 message and sends it with L1 headers to the
// derive-api-key endpoint. On success it populates the client's hmacAuth
// field and returns the credentials.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) (crypto.HMACAuth, error) {
	address := c.signer.Address().Hex()
	timestamp := c.now().Unix()
	nonce := int64(0)

	sig, err := c.signer.SignAuthMessage(timestamp, nonce)
	if err != nil {
		return crypto.HMACAuth{}, fmt.Errorf("polymarket/clob: sign auth message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return crypto.HMACAuth{}, fmt.Errorf("polymarket/clob: create auth request: %w", err)
	}
	req.Header.Set(crypto.HeaderAddress, address)
	req.Header.Set(crypto.HeaderSignature, sig)
	req.Header.Set(crypto.HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	req.Header.Set(crypto.HeaderNonce, strconv.FormatInt(nonce, 10))

	respBody, err := c.do(req)
	if err != nil {
		return crypto.HMACAuth{}, fmt.Errorf("polymarket/clob: derive api key: %w", err)
	}

	var authResp struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return crypto.HMACAuth{}, fmt.Errorf("polymarket/clob: decode auth response: %w", err)
	}

	auth := crypto.HMACAuth{
		Key:        authResp.APIKey,
		Secret:     authResp.Secret,
		Passphrase: authResp.Passphrase,
	}
	if auth.Empty() {
		return crypto.HMACAuth{}, fmt.Errorf("polymarket/clob: derive api key: %w: empty credentials", domain.ErrUnauthorized)
	}
	c.hmacAuth = &auth

	return auth, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doAuthenticatedRequest builds, signs (HMAC), sends, and reads an HTTP
// request against the CLOB API. It returns the raw response body.
func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if !c.hmacAuth.Empty() {
		address := c.signer.Address().Hex()
		headers := c.hmacAuth.L2HeadersAt(address, method, path, bodyStr, c.now().Unix())
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	return c.do(req)
}

func (c *ClobClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *ClobClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrNetwork, err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch {
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	case statusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrNetwork, statusCode, bodyStr)
	default:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrOrderRejected, statusCode, bodyStr)
	}
}
