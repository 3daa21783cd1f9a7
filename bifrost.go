package bifrost

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/aadithya-v/bifrost/internal/logging"
	"github.com/aadithya-v/bifrost/store"
)

// Bifrost issues and validates hotspot access tokens.
// It holds no per-client state beyond the optional rate counters.
type Bifrost struct {
	config  Config
	secret  *Secret
	limiter *RateLimiter
	events  store.EventStore
	geoip   *GeoIPReader
	proxy   *Proxy
	log     *logrus.Entry
}

// New creates a new Bifrost instance with the given configuration.
// If RateStore is not provided, an in-memory LRU store is used.
func New(cfg Config) (*Bifrost, error) {
	cfg.applyDefaults()

	if cfg.TargetURL != "" {
		if _, err := url.Parse(cfg.TargetURL); err != nil {
			return nil, fmt.Errorf("bifrost: invalid target URL: %w", err)
		}
	}

	b := &Bifrost{
		config: cfg,
		secret: NewSecret([]byte(cfg.Secret)),
		events: cfg.EventStore,
		log:    cfg.Logger,
	}
	if b.log == nil {
		b.log = logging.New("bifrost", "info", "json")
	}
	if b.secret == nil {
		b.log.Warn("HOTSPOT_SECRET is not configured; token operations will fail")
	}

	if cfg.RateLimit >= 0 {
		rateStore := cfg.RateStore
		if rateStore == nil {
			// One slot beyond the limit is enough to tell "over" from "at".
			mem, err := store.NewMemoryRateStore(cfg.RateCapacity, cfg.RateLimit+1)
			if err != nil {
				return nil, fmt.Errorf("bifrost: failed to initialize rate store: %w", err)
			}
			mem.StartPruning(cfg.RateWindow, cfg.RateWindow)
			rateStore = mem
		}
		b.limiter = NewRateLimiter(rateStore, cfg.RateLimit, cfg.RateWindow)
	}

	if cfg.GeoIPDatabasePath != "" {
		geoip, err := NewGeoIPReader(cfg.GeoIPDatabasePath)
		if err != nil {
			b.limiter.Close()
			return nil, fmt.Errorf("bifrost: failed to initialize GeoIP: %w", err)
		}
		b.geoip = geoip
	}

	b.proxy = NewProxy(cfg.ProxyTimeout, b.log)

	return b, nil
}

// Close releases all resources held by Bifrost.
func (b *Bifrost) Close() error {
	var errs []error

	if err := b.limiter.Close(); err != nil {
		errs = append(errs, err)
	}

	if b.events != nil {
		if err := b.events.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := b.geoip.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("bifrost: errors during close: %v", errs)
	}
	return nil
}

// Mode returns the configured binding mode.
func (b *Bifrost) Mode() BindingMode {
	return b.config.Mode
}

// Issue runs the issuance guards in order and, if they all pass, mints a
// credential for the caller. Guards: client IP allowlist, rate limit,
// shared issue key, server secret, claim fields. Nothing is persisted;
// the outcome is logged and optionally audited.
func (b *Bifrost) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	res, err := b.issue(ctx, req)

	log := b.log.WithFields(logrus.Fields{"ip": req.ClientIP, "mode": b.config.Mode.String()})
	if err != nil {
		IssueRejections.WithLabelValues(outcomeLabel(err)).Inc()
		log.WithError(err).Warn("issuance refused")
		b.record(ctx, store.KindIssue, req.RequestInfo, req.Identity, err)
		return nil, err
	}

	TokensIssued.WithLabelValues(b.config.Mode.String()).Inc()
	log.WithField("identity", res.Identity).Info("access credential issued")
	b.record(ctx, store.KindIssue, req.RequestInfo, res.Identity, nil)
	return res, nil
}

func (b *Bifrost) issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	if !b.config.ipAllowed(req.ClientIP) {
		return nil, ErrIPNotAllowed
	}

	allowed, err := b.limiter.Allow(ctx, req.ClientIP)
	if err != nil {
		b.log.WithError(err).Warn("rate limit store unavailable, allowing request")
	}
	if !allowed {
		return nil, ErrRateLimited
	}

	if b.config.Mode == BindingKeyOnly {
		return b.issueKey(req)
	}

	if b.config.IssueKey != "" && !equalKeys(req.IssueKey, b.config.IssueKey) {
		return nil, ErrInvalidCredential
	}

	identity := req.Identity
	if identity == "" && b.config.InferIdentity {
		identity = req.ClientIP
	}
	validity := req.ValidityMS
	if validity <= 0 {
		validity = b.config.DefaultValidity.Milliseconds()
	}
	if identity == "" || validity <= 0 {
		return nil, ErrMissingClaim
	}

	claim := Claim{
		Identity:   identity,
		ClientIP:   req.ClientIP,
		IssuedAt:   b.config.Now().UnixMilli(),
		ValidityMS: b.clampValidity(validity),
	}
	token, err := b.secret.Sign(claim)
	if err != nil {
		return nil, err
	}

	res := &IssueResult{Claim: claim, Token: token}
	res.RedirectURL = b.redirectURL(url.Values{
		"token": {token},
		"ts":    {strconv.FormatInt(claim.IssuedAt, 10)},
		"u":     {claim.Identity},
		"exp":   {strconv.FormatInt(claim.ValidityMS, 10)},
	})
	return res, nil
}

// issueKey implements key passthrough: the presented key is checked and
// echoed unchanged to the target.
func (b *Bifrost) issueKey(req IssueRequest) (*IssueResult, error) {
	if b.config.AccessKey == "" {
		return nil, ErrSecretNotConfigured
	}
	if !equalKeys(req.AccessKey, b.config.AccessKey) {
		return nil, ErrInvalidCredential
	}
	return &IssueResult{
		AccessKey:   req.AccessKey,
		RedirectURL: b.redirectURL(url.Values{"key": {req.AccessKey}}),
	}, nil
}

// Validate recomputes the token for the claimed fields using the client
// IP of the current request. Both the digest and the age must check out;
// the claimed validity is clamped to MaxValidity first. Validation never
// consumes the token, so repeated calls give the same answer until expiry.
func (b *Bifrost) Validate(ctx context.Context, req ValidateRequest) (*ValidateResult, error) {
	res, err := b.validate(req)

	Validations.WithLabelValues(outcomeLabel(err)).Inc()
	log := b.log.WithFields(logrus.Fields{"ip": req.ClientIP, "identity": req.Identity})
	if err != nil {
		log.WithError(err).Info("validation failed")
	} else {
		log.Debug("validation passed")
	}
	b.record(ctx, store.KindValidate, req.RequestInfo, req.Identity, err)

	return res, err
}

func (b *Bifrost) validate(req ValidateRequest) (*ValidateResult, error) {
	if b.config.Mode == BindingKeyOnly {
		if req.AccessKey == "" {
			return nil, ErrMissingKey
		}
		if b.config.AccessKey == "" {
			return nil, ErrSecretNotConfigured
		}
		if !equalKeys(req.AccessKey, b.config.AccessKey) {
			return nil, ErrInvalidCredential
		}
		return &ValidateResult{}, nil
	}

	if req.Token == "" || req.Identity == "" || req.IssuedAt <= 0 || req.ValidityMS <= 0 {
		return nil, ErrMissingToken
	}

	claim := Claim{
		Identity:   req.Identity,
		ClientIP:   req.ClientIP,
		IssuedAt:   req.IssuedAt,
		ValidityMS: b.clampValidity(req.ValidityMS),
	}
	now := b.config.Now().UnixMilli()
	if err := b.secret.Verify(req.Token, claim, now); err != nil {
		return nil, err
	}

	if !b.config.RotateTokens {
		return &ValidateResult{}, nil
	}

	claim.IssuedAt = now
	token, err := b.secret.Sign(claim)
	if err != nil {
		return nil, err
	}
	return &ValidateResult{Token: token, IssuedAt: now}, nil
}

func (b *Bifrost) clampValidity(ms int64) int64 {
	if limit := b.config.MaxValidity.Milliseconds(); limit > 0 && ms > limit {
		return limit
	}
	return ms
}

// redirectURL merges params into the configured target URL.
func (b *Bifrost) redirectURL(params url.Values) string {
	if b.config.TargetURL == "" {
		return ""
	}
	target, err := url.Parse(b.config.TargetURL)
	if err != nil {
		return ""
	}
	q := target.Query()
	for k, vs := range params {
		q[k] = vs
	}
	target.RawQuery = q.Encode()
	return target.String()
}

// equalKeys compares credentials in constant time.
func equalKeys(presented, configured string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}
