package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultTimeout bounds a single validation call. A timeout counts as a
// network error.
const DefaultTimeout = 10 * time.Second

// Credentials is what the guard presents to the validator.
type Credentials struct {
	Token     string
	TS        string
	Identity  string
	Validity  string
	AccessKey string
}

// Empty reports whether there is nothing to validate with.
func (c Credentials) Empty() bool {
	return (c.Token == "" || c.TS == "") && c.AccessKey == ""
}

// Result is the validator's verdict.
type Result struct {
	OK     bool
	Reason string

	// Token and TS are set when the validator rotated the token.
	Token string
	TS    string
}

// Checker asks the validator about a set of credentials. A returned error
// means the verdict could not be obtained at all.
type Checker interface {
	Check(ctx context.Context, creds Credentials) (*Result, error)
}

// HTTPChecker calls a validator endpoint over HTTP.
type HTTPChecker struct {
	// Endpoint is the validator URL, e.g. https://portal.local/api/validate.
	Endpoint string

	Client *http.Client
}

// NewHTTPChecker creates a checker with a client bounded by DefaultTimeout.
func NewHTTPChecker(endpoint string) *HTTPChecker {
	return &HTTPChecker{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: DefaultTimeout},
	}
}

// validateResponse mirrors the validator's JSON body.
type validateResponse struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
	Token  string `json:"token"`
	TS     int64  `json:"ts"`
}

// Check performs one validation round trip. Non-2xx answers with a JSON
// body are verdicts, not errors; anything unparseable is an error.
func (c *HTTPChecker) Check(ctx context.Context, creds Credentials) (*Result, error) {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("guard: invalid endpoint: %w", err)
	}

	q := u.Query()
	if creds.AccessKey != "" && creds.Token == "" {
		q.Set("key", creds.AccessKey)
	} else {
		q.Set("token", creds.Token)
		q.Set("ts", creds.TS)
		q.Set("u", creds.Identity)
		q.Set("exp", creds.Validity)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("guard: failed to build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Accept", "application/json")

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("guard: validate request failed: %w", err)
	}
	defer resp.Body.Close()

	var body validateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil {
		return nil, fmt.Errorf("guard: failed to decode validate response (status %d): %w", resp.StatusCode, err)
	}

	res := &Result{
		OK:     body.OK && resp.StatusCode == http.StatusOK,
		Reason: body.Reason,
	}
	if res.OK && body.Token != "" && body.TS > 0 {
		res.Token = body.Token
		res.TS = strconv.FormatInt(body.TS, 10)
	}
	return res, nil
}
