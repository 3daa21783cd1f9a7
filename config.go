package bifrost

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aadithya-v/bifrost/store"
)

// BindingMode selects what an access credential is bound to.
type BindingMode int

const (
	// BindingIPAndIdentity issues HMAC tokens over identity, client IP
	// and issue time.
	BindingIPAndIdentity BindingMode = iota

	// BindingKeyOnly passes a static access key through to the target
	// application and validates it by equality.
	BindingKeyOnly
)

func (m BindingMode) String() string {
	switch m {
	case BindingIPAndIdentity:
		return "ip-identity"
	case BindingKeyOnly:
		return "key-only"
	default:
		return fmt.Sprintf("BindingMode(%d)", int(m))
	}
}

// ParseBindingMode parses "ip-identity" or "key-only". Empty selects
// BindingIPAndIdentity.
func ParseBindingMode(s string) (BindingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ip-identity":
		return BindingIPAndIdentity, nil
	case "key-only":
		return BindingKeyOnly, nil
	default:
		return 0, fmt.Errorf("bifrost: unknown binding mode %q", s)
	}
}

// Config contains configuration options for Bifrost.
type Config struct {
	// Secret is the HMAC key shared by issuer and validator.
	// Leaving it empty is allowed at construction time, but every
	// token operation then fails with ErrSecretNotConfigured.
	Secret string

	// Mode selects the issuance and validation policy.
	// Default: BindingIPAndIdentity.
	Mode BindingMode

	// IssueKey, when set, must be presented in the X-Issue-Key header
	// on issuance.
	IssueKey string

	// AccessKey is the static key for BindingKeyOnly.
	AccessKey string

	// TargetURL is the application the issuer redirects to.
	// When empty the issuer answers with JSON instead.
	TargetURL string

	// InferIdentity uses the client IP as identity when none is supplied.
	InferIdentity bool

	// DefaultValidity is used when the caller supplies no validity.
	// Zero makes validity_ms mandatory.
	DefaultValidity time.Duration

	// MaxValidity caps both requested and claimed validity. The validity
	// travels in plaintext and is not covered by the digest, so the
	// validator clamps whatever the client claims.
	// Default: 10 hours.
	MaxValidity time.Duration

	// RotateTokens returns a fresh token on each successful validation.
	RotateTokens bool

	// AllowedIPs restricts issuance to exact client IPs. Empty allows all.
	AllowedIPs []string

	// AllowRange restricts issuance to an inclusive IPv4 range.
	AllowRange *IPRange

	// RateLimit is the maximum number of issuance requests per client IP
	// inside RateWindow. Negative disables rate limiting.
	// Default: 20.
	RateLimit int

	// RateWindow is the sliding rate-limit window.
	// Default: 1 minute.
	RateWindow time.Duration

	// RateCapacity bounds the number of client IPs the default in-memory
	// rate store remembers. Default: 100.
	RateCapacity int

	// RateStore is the storage backend for rate counters.
	// Default: in-memory LRU store.
	RateStore store.RateStore

	// EventStore receives audit events. Nil disables auditing.
	EventStore store.EventStore

	// GeoIPDatabasePath is the path to a MaxMind GeoLite2-City.mmdb file
	// used to enrich audit events. Optional.
	GeoIPDatabasePath string

	// ProxyTimeout bounds upstream fetches made by the proxy.
	// Default: 10 seconds.
	ProxyTimeout time.Duration

	// Logger receives structured logs. Default: logrus JSON to stdout.
	Logger *logrus.Entry

	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Mode:         BindingIPAndIdentity,
		MaxValidity:  10 * time.Hour,
		RateLimit:    20,
		RateWindow:   time.Minute,
		RateCapacity: 100,
		ProxyTimeout: 10 * time.Second,
	}
}

// applyDefaults fills in default values for zero-value fields.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.MaxValidity <= 0 {
		c.MaxValidity = defaults.MaxValidity
	}
	if c.RateLimit == 0 {
		c.RateLimit = defaults.RateLimit
	}
	if c.RateWindow <= 0 {
		c.RateWindow = defaults.RateWindow
	}
	if c.RateCapacity <= 0 {
		c.RateCapacity = defaults.RateCapacity
	}
	if c.ProxyTimeout <= 0 {
		c.ProxyTimeout = defaults.ProxyTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// ConfigFromEnv builds a Config from environment variables:
//
//	HOTSPOT_SECRET      HMAC secret
//	BINDING_MODE        ip-identity | key-only
//	ISSUE_ACCESS_KEY    shared issuance credential (X-Issue-Key)
//	ACCESS_KEY          static key for key-only mode
//	TARGET_URL          redirect target
//	ALLOWED_IPS         comma separated exact client IPs
//	ALLOW_RANGE_START   inclusive IPv4 range start
//	ALLOW_RANGE_END     inclusive IPv4 range end
//	MAX_VALIDITY_MS     validity cap in milliseconds
//	DEFAULT_VALIDITY_MS validity used when the caller omits one
//	INFER_IDENTITY      true to fall back to the client IP as identity
//	ROTATE_TOKENS       true to rotate tokens on validation
//	RATE_LIMIT          issuance requests per window, negative disables
//	GEOIP_DB            MaxMind database path
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.Secret = os.Getenv("HOTSPOT_SECRET")
	cfg.IssueKey = os.Getenv("ISSUE_ACCESS_KEY")
	cfg.AccessKey = os.Getenv("ACCESS_KEY")
	cfg.TargetURL = os.Getenv("TARGET_URL")
	cfg.GeoIPDatabasePath = os.Getenv("GEOIP_DB")

	mode, err := ParseBindingMode(os.Getenv("BINDING_MODE"))
	if err != nil {
		return cfg, err
	}
	cfg.Mode = mode

	cfg.AllowedIPs = splitList(os.Getenv("ALLOWED_IPS"))

	start, end := os.Getenv("ALLOW_RANGE_START"), os.Getenv("ALLOW_RANGE_END")
	if start != "" || end != "" {
		rng, err := NewIPRange(start, end)
		if err != nil {
			return cfg, err
		}
		cfg.AllowRange = rng
	}

	if v := os.Getenv("MAX_VALIDITY_MS"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("bifrost: invalid MAX_VALIDITY_MS: %w", err)
		}
		cfg.MaxValidity = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("DEFAULT_VALIDITY_MS"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("bifrost: invalid DEFAULT_VALIDITY_MS: %w", err)
		}
		cfg.DefaultValidity = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("bifrost: invalid RATE_LIMIT: %w", err)
		}
		cfg.RateLimit = n
	}

	cfg.InferIdentity = envBool("INFER_IDENTITY")
	cfg.RotateTokens = envBool("ROTATE_TOKENS")

	return cfg, nil
}

func envBool(name string) bool {
	b, _ := strconv.ParseBool(os.Getenv(name))
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
