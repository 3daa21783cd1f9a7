package bifrost

import (
	"strconv"
	"time"
)

// Claim is the plaintext payload a token vouches for. It is never stored
// server-side: the client carries Identity, IssuedAt and ValidityMS next
// to the token, and the validator recomputes the digest with the
// ClientIP it observes on the current request.
type Claim struct {
	Identity   string `json:"u"`
	ClientIP   string `json:"-"`
	IssuedAt   int64  `json:"ts"`
	ValidityMS int64  `json:"exp"`
}

// Message is the HMAC input: identity|client_ip|issued_at.
func (c Claim) Message() string {
	return c.Identity + "|" + c.ClientIP + "|" + strconv.FormatInt(c.IssuedAt, 10)
}

// Expired reports whether more than ValidityMS milliseconds separate
// IssuedAt from now.
func (c Claim) Expired(now int64) bool {
	return now-c.IssuedAt > c.ValidityMS
}

// ExpiresAt returns the last instant at which the claim is still valid.
func (c Claim) ExpiresAt() time.Time {
	return time.UnixMilli(c.IssuedAt + c.ValidityMS)
}

// RequestInfo is what the server observes about the caller.
type RequestInfo struct {
	ClientIP  string
	UserAgent string
}

// IssueRequest is an issuance attempt after transport decoding.
type IssueRequest struct {
	RequestInfo

	// IssueKey is the shared credential presented in the X-Issue-Key header.
	IssueKey string

	// AccessKey is the static key presented in key-only mode.
	AccessKey string

	// Identity is the caller-supplied user or session name.
	Identity string

	// ValidityMS is the requested validity. Zero means not supplied.
	ValidityMS int64
}

// IssueResult is returned from Issue.
type IssueResult struct {
	Claim

	// Token is the hex digest. Empty in key-only mode.
	Token string

	// AccessKey is the echoed key in key-only mode.
	AccessKey string

	// RedirectURL is the target application URL carrying the token
	// parameters. Empty when no target is configured.
	RedirectURL string
}

// ValidateRequest is a validation attempt after transport decoding.
type ValidateRequest struct {
	RequestInfo

	Token      string
	Identity   string
	IssuedAt   int64
	ValidityMS int64

	// AccessKey is used instead of the token fields in key-only mode.
	AccessKey string
}

// ValidateResult is returned from a successful Validate.
type ValidateResult struct {
	// Token and IssuedAt carry a rotated token when rotation is enabled.
	Token    string
	IssuedAt int64
}

// DeviceInfo contains device information extracted from the HTTP request.
type DeviceInfo struct {
	IP         string `json:"ip"`
	UserAgent  string `json:"user_agent"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	DeviceType string `json:"device_type"` // mobile, desktop, tablet, bot
}

// LocationInfo contains geographic location extracted from IP address.
type LocationInfo struct {
	IP      string `json:"ip"`
	City    string `json:"city"`
	Country string `json:"country"`
}
