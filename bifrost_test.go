package bifrost

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aadithya-v/bifrost/internal/logging"
	"github.com/aadithya-v/bifrost/store"
)

const (
	testSecret = "test-hotspot-secret"
	testIP     = "10.0.0.7"
	baseTime   = int64(1700000000000)
)

// testClock is a settable clock in milliseconds.
type testClock struct {
	ms int64
}

func (c *testClock) Now() time.Time {
	return time.UnixMilli(c.ms)
}

// newTestBifrost creates a Bifrost with a fixed clock and a silent logger.
func newTestBifrost(t *testing.T, mutate func(*Config)) (*Bifrost, *testClock) {
	t.Helper()

	clock := &testClock{ms: baseTime}
	cfg := DefaultConfig()
	cfg.Secret = testSecret
	cfg.Logger = logging.Discard()
	cfg.Now = clock.Now
	if mutate != nil {
		mutate(&cfg)
	}

	b, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create Bifrost: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b, clock
}

func issueFor(t *testing.T, b *Bifrost, ip, identity string, validity int64) *IssueResult {
	t.Helper()
	res, err := b.Issue(context.Background(), IssueRequest{
		RequestInfo: RequestInfo{ClientIP: ip},
		Identity:    identity,
		ValidityMS:  validity,
	})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return res
}

func validateReq(ip string, res *IssueResult) ValidateRequest {
	return ValidateRequest{
		RequestInfo: RequestInfo{ClientIP: ip},
		Token:       res.Token,
		Identity:    res.Identity,
		IssuedAt:    res.IssuedAt,
		ValidityMS:  res.ValidityMS,
	}
}

func TestIssueValidateRoundTrip(t *testing.T) {
	b, _ := newTestBifrost(t, nil)

	res := issueFor(t, b, testIP, "alice", 60000)
	if res.IssuedAt != baseTime {
		t.Errorf("Expected issued_at %d, got %d", baseTime, res.IssuedAt)
	}
	if len(res.Token) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(res.Token))
	}

	// Validation is idempotent until expiry.
	for i := 0; i < 3; i++ {
		if _, err := b.Validate(context.Background(), validateReq(testIP, res)); err != nil {
			t.Fatalf("Validate #%d failed: %v", i+1, err)
		}
	}
}

func TestExpiryBoundary(t *testing.T) {
	b, clock := newTestBifrost(t, nil)
	res := issueFor(t, b, testIP, "alice", 1000)

	tests := []struct {
		offset int64
		want   error
	}{
		{999, nil},
		{1000, nil},
		{1001, ErrTokenExpired},
	}

	for _, tt := range tests {
		clock.ms = baseTime + tt.offset
		_, err := b.Validate(context.Background(), validateReq(testIP, res))
		if !errors.Is(err, tt.want) {
			t.Errorf("At T+%d: expected %v, got %v", tt.offset, tt.want, err)
		}
	}
}

func TestValidateBindsClientIP(t *testing.T) {
	b, _ := newTestBifrost(t, nil)
	res := issueFor(t, b, testIP, "alice", 60000)

	_, err := b.Validate(context.Background(), validateReq("10.0.0.8", res))
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Expected ErrTokenInvalid from another IP, got %v", err)
	}
}

func TestValidateDetectsTampering(t *testing.T) {
	b, _ := newTestBifrost(t, nil)
	res := issueFor(t, b, testIP, "alice", 60000)

	tests := []struct {
		name   string
		mutate func(*ValidateRequest)
	}{
		{"identity", func(r *ValidateRequest) { r.Identity = "mallory" }},
		{"issued_at", func(r *ValidateRequest) { r.IssuedAt++ }},
		{"token", func(r *ValidateRequest) { r.Token = strings.Repeat("0", 64) }},
		{"token case", func(r *ValidateRequest) { r.Token = strings.ToUpper(r.Token) }},
		{"truncated", func(r *ValidateRequest) { r.Token = r.Token[:63] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validateReq(testIP, res)
			tt.mutate(&req)
			if _, err := b.Validate(context.Background(), req); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("Expected ErrTokenInvalid, got %v", err)
			}
		})
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	b, _ := newTestBifrost(t, nil)
	res := issueFor(t, b, testIP, "alice", 60000)

	tests := []struct {
		name   string
		mutate func(*ValidateRequest)
	}{
		{"token", func(r *ValidateRequest) { r.Token = "" }},
		{"identity", func(r *ValidateRequest) { r.Identity = "" }},
		{"issued_at", func(r *ValidateRequest) { r.IssuedAt = 0 }},
		{"validity", func(r *ValidateRequest) { r.ValidityMS = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validateReq(testIP, res)
			tt.mutate(&req)
			if _, err := b.Validate(context.Background(), req); !errors.Is(err, ErrMissingToken) {
				t.Errorf("Expected ErrMissingToken, got %v", err)
			}
		})
	}
}

func TestClaimedValidityIsClamped(t *testing.T) {
	b, clock := newTestBifrost(t, func(c *Config) {
		c.MaxValidity = time.Hour
	})

	res := issueFor(t, b, testIP, "alice", (24 * time.Hour).Milliseconds())
	if res.ValidityMS != time.Hour.Milliseconds() {
		t.Errorf("Expected issued validity clamped to 1h, got %dms", res.ValidityMS)
	}

	// The client claims a longer validity than it was issued. The digest
	// does not cover exp, so the cap is what stops it.
	clock.ms = baseTime + (2 * time.Hour).Milliseconds()
	req := validateReq(testIP, res)
	req.ValidityMS = (10 * time.Hour).Milliseconds()
	if _, err := b.Validate(context.Background(), req); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Expected ErrTokenExpired past the cap, got %v", err)
	}
}

func TestIssueGuards(t *testing.T) {
	rng, err := NewIPRange("10.0.0.1", "10.0.0.50")
	if err != nil {
		t.Fatalf("NewIPRange failed: %v", err)
	}
	b, _ := newTestBifrost(t, func(c *Config) {
		c.AllowRange = rng
		c.IssueKey = "portal-key"
	})

	tests := []struct {
		name string
		req  IssueRequest
		want error
	}{
		{
			name: "ip outside range",
			req:  IssueRequest{RequestInfo: RequestInfo{ClientIP: "192.168.1.1"}, IssueKey: "portal-key", Identity: "alice", ValidityMS: 1000},
			want: ErrIPNotAllowed,
		},
		{
			name: "missing issue key",
			req:  IssueRequest{RequestInfo: RequestInfo{ClientIP: testIP}, Identity: "alice", ValidityMS: 1000},
			want: ErrInvalidCredential,
		},
		{
			name: "wrong issue key",
			req:  IssueRequest{RequestInfo: RequestInfo{ClientIP: testIP}, IssueKey: "nope", Identity: "alice", ValidityMS: 1000},
			want: ErrInvalidCredential,
		},
		{
			name: "missing identity",
			req:  IssueRequest{RequestInfo: RequestInfo{ClientIP: testIP}, IssueKey: "portal-key", ValidityMS: 1000},
			want: ErrMissingClaim,
		},
		{
			name: "missing validity",
			req:  IssueRequest{RequestInfo: RequestInfo{ClientIP: testIP}, IssueKey: "portal-key", Identity: "alice"},
			want: ErrMissingClaim,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Issue(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestIssueDefaults(t *testing.T) {
	b, _ := newTestBifrost(t, func(c *Config) {
		c.InferIdentity = true
		c.DefaultValidity = 5 * time.Minute
	})

	res := issueFor(t, b, testIP, "", 0)
	if res.Identity != testIP {
		t.Errorf("Expected identity inferred from IP, got %q", res.Identity)
	}
	if res.ValidityMS != (5 * time.Minute).Milliseconds() {
		t.Errorf("Expected default validity, got %d", res.ValidityMS)
	}
}

func TestIssueRateLimit(t *testing.T) {
	b, _ := newTestBifrost(t, func(c *Config) {
		c.RateLimit = 2
		c.RateWindow = time.Minute
	})

	ctx := context.Background()
	req := IssueRequest{RequestInfo: RequestInfo{ClientIP: testIP}, Identity: "alice", ValidityMS: 1000}

	for i := 0; i < 2; i++ {
		if _, err := b.Issue(ctx, req); err != nil {
			t.Fatalf("Issue #%d failed: %v", i+1, err)
		}
	}
	if _, err := b.Issue(ctx, req); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected ErrRateLimited, got %v", err)
	}

	// Other clients are unaffected.
	other := req
	other.ClientIP = "10.0.0.9"
	if _, err := b.Issue(ctx, other); err != nil {
		t.Errorf("Expected other IP to be allowed, got %v", err)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	b, _ := newTestBifrost(t, func(c *Config) {
		c.RateLimit = -1
	})

	for i := 0; i < 50; i++ {
		issueFor(t, b, testIP, "alice", 1000)
	}
}

func TestRotateTokens(t *testing.T) {
	b, clock := newTestBifrost(t, func(c *Config) {
		c.RotateTokens = true
	})
	res := issueFor(t, b, testIP, "alice", 10000)

	clock.ms = baseTime + 8000
	rotated, err := b.Validate(context.Background(), validateReq(testIP, res))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if rotated.Token == "" || rotated.Token == res.Token {
		t.Fatalf("Expected a fresh token, got %q", rotated.Token)
	}
	if rotated.IssuedAt != clock.ms {
		t.Errorf("Expected rotated issued_at %d, got %d", clock.ms, rotated.IssuedAt)
	}

	// The rotated token carries the session past the original expiry.
	clock.ms = baseTime + 15000
	next := validateReq(testIP, res)
	next.Token, next.IssuedAt = rotated.Token, rotated.IssuedAt
	if _, err := b.Validate(context.Background(), next); err != nil {
		t.Errorf("Expected rotated token to validate, got %v", err)
	}
	if _, err := b.Validate(context.Background(), validateReq(testIP, res)); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Expected original token to be expired, got %v", err)
	}
}

func TestKeyOnlyMode(t *testing.T) {
	b, _ := newTestBifrost(t, func(c *Config) {
		c.Mode = BindingKeyOnly
		c.AccessKey = "lobby-tv"
		c.TargetURL = "https://tv.local/player"
	})
	ctx := context.Background()
	info := RequestInfo{ClientIP: testIP}

	res, err := b.Issue(ctx, IssueRequest{RequestInfo: info, AccessKey: "lobby-tv"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if res.Token != "" {
		t.Errorf("Expected no token in key-only mode, got %q", res.Token)
	}
	if res.RedirectURL != "https://tv.local/player?key=lobby-tv" {
		t.Errorf("Unexpected redirect %q", res.RedirectURL)
	}

	if _, err := b.Issue(ctx, IssueRequest{RequestInfo: info, AccessKey: "wrong"}); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("Expected ErrInvalidCredential, got %v", err)
	}

	if _, err := b.Validate(ctx, ValidateRequest{RequestInfo: info, AccessKey: "lobby-tv"}); err != nil {
		t.Errorf("Expected key to validate, got %v", err)
	}
	if _, err := b.Validate(ctx, ValidateRequest{RequestInfo: info, AccessKey: "wrong"}); !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("Expected ErrInvalidCredential, got %v", err)
	}
	if _, err := b.Validate(ctx, ValidateRequest{RequestInfo: info}); !errors.Is(err, ErrMissingKey) {
		t.Errorf("Expected ErrMissingKey, got %v", err)
	}
}

func TestSecretNotConfigured(t *testing.T) {
	b, _ := newTestBifrost(t, func(c *Config) {
		c.Secret = ""
	})
	ctx := context.Background()

	_, err := b.Issue(ctx, IssueRequest{RequestInfo: RequestInfo{ClientIP: testIP}, Identity: "alice", ValidityMS: 1000})
	if !errors.Is(err, ErrSecretNotConfigured) {
		t.Errorf("Expected ErrSecretNotConfigured on issue, got %v", err)
	}

	_, err = b.Validate(ctx, ValidateRequest{
		RequestInfo: RequestInfo{ClientIP: testIP},
		Token:       strings.Repeat("a", 64),
		Identity:    "alice",
		IssuedAt:    baseTime,
		ValidityMS:  1000,
	})
	if !errors.Is(err, ErrSecretNotConfigured) {
		t.Errorf("Expected ErrSecretNotConfigured on validate, got %v", err)
	}
}

func TestAuditEvents(t *testing.T) {
	events := store.NewMemoryEventStore()
	b, clock := newTestBifrost(t, func(c *Config) {
		c.EventStore = events
	})
	ctx := context.Background()

	res := issueFor(t, b, testIP, "alice", 1000)
	clock.ms += 10
	if _, err := b.Validate(ctx, validateReq(testIP, res)); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	clock.ms += 5000
	b.Validate(ctx, validateReq(testIP, res))

	list, err := b.RecentEvents(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("RecentEvents failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(list))
	}

	latest := list[0]
	if latest.Kind != store.KindValidate || latest.Outcome != store.OutcomeDenied || latest.Reason != "expired" {
		t.Errorf("Unexpected latest event: %+v", latest)
	}
	if list[2].Kind != store.KindIssue || list[2].Outcome != store.OutcomeAllowed {
		t.Errorf("Unexpected first event: %+v", list[2])
	}
	for _, e := range list {
		if e.ID == "" {
			t.Error("Event ID should not be empty")
		}
		if strings.Contains(e.Reason, res.Token) || strings.Contains(e.UserAgent, res.Token) {
			t.Error("Event must not carry the token")
		}
	}
}

func TestRecentEventsWithoutStore(t *testing.T) {
	b, _ := newTestBifrost(t, nil)

	list, err := b.RecentEvents(context.Background(), "alice", 10)
	if err != nil || list != nil {
		t.Errorf("Expected nil, nil without an event store, got %v, %v", list, err)
	}
}
