// Package guard keeps a client session honest against the bifrost
// validator. It holds the current credentials, re-validates them on a
// timer and on resume events, and drives a blocking overlay from the
// outcome. Failure is sticky: only a successful validation unlocks.
package guard

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aadithya-v/bifrost/internal/logging"
)

// DefaultInterval is how often Run re-validates without other triggers.
const DefaultInterval = 5 * time.Minute

// State is the guard's lock state.
type State int

const (
	StateUninitialized State = iota
	StateUnlocked
	// StateLockedSilent means there is nothing to retry with. Only
	// Reconnect with fresh credentials leaves it.
	StateLockedSilent
	// StateLockedWithRetry means the last validation failed. The next
	// successful validation unlocks.
	StateLockedWithRetry
)

func (s State) String() string {
	switch s {
	case StateUnlocked:
		return "unlocked"
	case StateLockedSilent:
		return "locked-silent"
	case StateLockedWithRetry:
		return "locked-retry"
	default:
		return "uninitialized"
	}
}

// Locked reports whether the overlay should be up.
func (s State) Locked() bool {
	return s == StateLockedSilent || s == StateLockedWithRetry
}

// Messages shown on the overlay.
const (
	MsgNoToken         = "No access token found. Please reconnect to the WiFi network."
	MsgConnectionError = "Connection error. Please check your network."
	MsgAccessDenied    = "Access denied"
)

// Options tunes a Guard. Zero values select defaults.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Logger   *logrus.Entry
}

// Guard is the client session state machine.
type Guard struct {
	checker Checker
	storage Storage
	overlay Overlay

	interval time.Duration
	timeout  time.Duration
	log      *logrus.Entry

	// validating admits one validation at a time; triggers that lose the
	// race are dropped.
	validating atomic.Bool

	mu     sync.Mutex
	state  State
	reason string
}

// New creates a guard. storage and overlay may be nil, in which case an
// in-memory storage and a log-only overlay are used.
func New(checker Checker, storage Storage, overlay Overlay, opts Options) *Guard {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.New("bifrost-guard", "info", "text")
	}
	if storage == nil {
		storage = NewMemoryStorage()
	}
	if overlay == nil {
		overlay = LogOverlay{Log: opts.Logger}
	}

	return &Guard{
		checker:  checker,
		storage:  storage,
		overlay:  overlay,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		log:      opts.Logger,
	}
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Reason returns the message behind the current lock, if any.
func (g *Guard) Reason() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reason
}

// Init adopts credentials from u, persisting them to session storage and
// returning u with the credential parameters removed. Without credentials
// in u, previously stored ones are used. With neither, the guard locks
// silently. u may be nil.
func (g *Guard) Init(u *url.URL) *url.URL {
	var stripped *url.URL
	if u != nil {
		stripped = g.adoptFromURL(u)
	}

	if g.credentials().Empty() {
		g.lock(StateLockedSilent, MsgNoToken)
	}
	return stripped
}

func (g *Guard) adoptFromURL(u *url.URL) *url.URL {
	clean := *u
	q := u.Query()

	token, ts := q.Get("token"), q.Get("ts")
	key := q.Get("key")
	switch {
	case token != "" && ts != "":
		g.storage.Set(KeyToken, token)
		g.storage.Set(KeyTS, ts)
		setIfPresent(g.storage, KeyIdentity, q.Get("u"))
		setIfPresent(g.storage, KeyValidity, q.Get("exp"))
		g.log.Debug("adopted token from url")
	case key != "":
		g.storage.Set(KeyAccessKey, key)
		g.log.Debug("adopted access key from url")
	default:
		return &clean
	}

	for _, k := range []string{"token", "ts", "u", "exp", "key"} {
		q.Del(k)
	}
	clean.RawQuery = q.Encode()
	return &clean
}

func setIfPresent(s Storage, key, value string) {
	if value != "" {
		s.Set(key, value)
	}
}

func (g *Guard) credentials() Credentials {
	var c Credentials
	c.Token, _ = g.storage.Get(KeyToken)
	c.TS, _ = g.storage.Get(KeyTS)
	c.Identity, _ = g.storage.Get(KeyIdentity)
	c.Validity, _ = g.storage.Get(KeyValidity)
	c.AccessKey, _ = g.storage.Get(KeyAccessKey)
	return c
}

// Validate runs one validation cycle and returns the resulting state. It
// returns immediately, without calling the validator, when another cycle
// is in flight or when the guard is silently locked.
func (g *Guard) Validate(ctx context.Context) State {
	if !g.validating.CompareAndSwap(false, true) {
		return g.State()
	}
	defer g.validating.Store(false)

	if g.State() == StateLockedSilent {
		return StateLockedSilent
	}

	creds := g.credentials()
	if creds.Empty() {
		return g.lock(StateLockedSilent, MsgNoToken)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	res, err := g.checker.Check(ctx, creds)
	if err != nil {
		g.log.WithError(err).Warn("validation failed")
		return g.lock(StateLockedWithRetry, MsgConnectionError)
	}
	if !res.OK {
		reason := res.Reason
		if reason == "" {
			reason = MsgAccessDenied
		}
		return g.lock(StateLockedWithRetry, reason)
	}

	if res.Token != "" && res.TS != "" {
		g.storage.Set(KeyToken, res.Token)
		g.storage.Set(KeyTS, res.TS)
		g.log.Debug("adopted rotated token")
	}
	return g.unlock()
}

// Reconnect re-reads stored credentials and, when there are any, leaves
// a silent lock and validates.
func (g *Guard) Reconnect(ctx context.Context) State {
	if g.credentials().Empty() {
		return g.lock(StateLockedSilent, MsgNoToken)
	}

	g.mu.Lock()
	if g.state == StateLockedSilent {
		g.state = StateLockedWithRetry
	}
	g.mu.Unlock()

	return g.Validate(ctx)
}

// Run validates once, then again every interval and whenever resume
// fires, until ctx is done. Triggers that arrive while a validation is in
// flight are dropped. Run waits for the in-flight validation before
// returning ctx.Err().
func (g *Guard) Run(ctx context.Context, resume <-chan struct{}) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	trigger := func(source string) {
		if g.validating.Load() {
			g.log.WithField("trigger", source).Debug("validation in flight, trigger dropped")
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Validate(ctx)
		}()
	}

	trigger("start")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			trigger("interval")
		case _, ok := <-resume:
			if !ok {
				resume = nil
				continue
			}
			trigger("resume")
		}
	}
}

func (g *Guard) lock(state State, reason string) State {
	g.mu.Lock()
	g.state = state
	g.reason = reason
	g.mu.Unlock()

	g.overlay.Show(reason, state == StateLockedWithRetry)
	g.log.WithFields(logrus.Fields{"state": state.String(), "reason": reason}).Info("session locked")
	return state
}

func (g *Guard) unlock() State {
	g.mu.Lock()
	was := g.state
	g.state = StateUnlocked
	g.reason = ""
	g.mu.Unlock()

	if was != StateUnlocked {
		g.overlay.Hide()
		g.log.Info("session unlocked")
	}
	return StateUnlocked
}
