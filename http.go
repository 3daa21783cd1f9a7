package bifrost

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// IssueKeyHeader carries the shared issuance credential.
const IssueKeyHeader = "X-Issue-Key"

// Response is the JSON body of every issuer and validator answer.
type Response struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
	Token  string `json:"token,omitempty"`
	TS     int64  `json:"ts,omitempty"`
	U      string `json:"u,omitempty"`
	Exp    int64  `json:"exp,omitempty"`
	Key    string `json:"key,omitempty"`
}

// Router returns a chi.Router with the issuer, validator, proxy and IP
// check endpoints mounted under /api.
func (b *Bifrost) Router() chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		// The issuer checks the verb itself so that every other verb gets
		// the same JSON body as the other failures.
		r.HandleFunc("/issue", b.handleIssue)
		r.Get("/validate", b.handleValidate)
		r.Get("/check-ip", b.handleCheckIP)
		r.Method(http.MethodGet, "/proxy", b.proxy)
		r.Method(http.MethodOptions, "/proxy", b.proxy)
	})

	return r
}

func (b *Bifrost) handleIssue(w http.ResponseWriter, r *http.Request) {
	keyOnly := b.config.Mode == BindingKeyOnly
	if r.Method != http.MethodPost && !(keyOnly && r.Method == http.MethodGet) {
		w.Header().Set("Allow", http.MethodPost)
		b.writeIssueError(w, r, ErrMethodNotAllowed)
		return
	}

	req := IssueRequest{
		RequestInfo: RequestInfoFromHTTP(r),
		IssueKey:    r.Header.Get(IssueKeyHeader),
		AccessKey:   r.URL.Query().Get("key"),
	}
	if !keyOnly {
		// A body that does not decode simply leaves the claim empty,
		// which the issuer reports as a missing claim.
		req.Identity, req.ValidityMS = parseIssueBody(w, r)
	}

	res, err := b.Issue(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			w.Header().Set("Retry-After", strconv.Itoa(int(b.limiter.Window().Seconds())))
		}
		b.writeIssueError(w, r, err)
		return
	}

	if res.RedirectURL != "" && !wantsJSON(r) {
		http.Redirect(w, r, res.RedirectURL, http.StatusFound)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		OK:    true,
		Token: res.Token,
		TS:    res.IssuedAt,
		U:     res.Identity,
		Exp:   res.ValidityMS,
		Key:   res.AccessKey,
	})
}

func (b *Bifrost) handleValidate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ValidateRequest{
		RequestInfo: RequestInfoFromHTTP(r),
		Token:       q.Get("token"),
		Identity:    q.Get("u"),
		AccessKey:   q.Get("key"),
	}
	// Unparseable numbers stay zero and are rejected as missing.
	req.IssuedAt, _ = strconv.ParseInt(q.Get("ts"), 10, 64)
	req.ValidityMS, _ = strconv.ParseInt(q.Get("exp"), 10, 64)

	res, err := b.Validate(r.Context(), req)
	if err != nil {
		status, reason, _ := statusFor(err)
		writeJSON(w, status, Response{OK: false, Reason: reason})
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, Response{OK: true, Token: res.Token, TS: res.IssuedAt})
}

// checkIPResponse is the body of GET /api/check-ip.
type checkIPResponse struct {
	Allowed bool   `json:"allowed"`
	IP      string `json:"ip"`
}

func (b *Bifrost) handleCheckIP(w http.ResponseWriter, r *http.Request) {
	ip := ClientIP(r)
	allowed := b.config.ipAllowed(ip)

	status := http.StatusOK
	if !allowed {
		status = http.StatusForbidden
	}
	writeJSON(w, status, checkIPResponse{Allowed: allowed, IP: ip})
}

// issueBody is the JSON form of an issuance request.
type issueBody struct {
	Identity   string      `json:"identity"`
	ValidityMS json.Number `json:"validity_ms"`
}

// parseIssueBody reads identity and validity_ms from a JSON or form body.
// Missing or malformed values come back as zero values.
func parseIssueBody(w http.ResponseWriter, r *http.Request) (string, int64) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body issueBody
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
			return "", 0
		}
		ms, _ := body.ValidityMS.Int64()
		return strings.TrimSpace(body.Identity), ms
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := r.ParseForm(); err != nil {
		return "", 0
	}
	ms, _ := strconv.ParseInt(r.PostForm.Get("validity_ms"), 10, 64)
	return strings.TrimSpace(r.PostForm.Get("identity")), ms
}

// statusFor maps an error to an HTTP status and a human-readable reason.
// ok is false for errors outside the known taxonomy, which map to 500.
func statusFor(err error) (status int, reason string, ok bool) {
	switch {
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, "Method not allowed", true
	case errors.Is(err, ErrIPNotAllowed):
		return http.StatusForbidden, "Access denied", true
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "Too many requests", true
	case errors.Is(err, ErrInvalidCredential):
		return http.StatusForbidden, "Invalid or missing authentication credentials", true
	case errors.Is(err, ErrSecretNotConfigured):
		return http.StatusInternalServerError, "Server configuration error", true
	case errors.Is(err, ErrMissingClaim):
		return http.StatusBadRequest, "Missing user/session", true
	case errors.Is(err, ErrMissingToken):
		return http.StatusBadRequest, "Missing token or timestamp", true
	case errors.Is(err, ErrMissingKey):
		return http.StatusBadRequest, "Missing access key", true
	case errors.Is(err, ErrTokenInvalid):
		return http.StatusForbidden, "Invalid token", true
	case errors.Is(err, ErrTokenExpired):
		return http.StatusForbidden, "Session expired", true
	default:
		return http.StatusInternalServerError, "Internal server error", false
	}
}

// writeIssueError renders an error page for browsers and JSON otherwise.
// Captive-portal redirects land in a browser, so the issuer keeps an
// HTML path that the validator does not need.
func (b *Bifrost) writeIssueError(w http.ResponseWriter, r *http.Request, err error) {
	status, reason, _ := statusFor(err)
	if wantsHTML(r) {
		renderErrorPage(w, status, pageFor(err, reason, ClientIP(r)))
		return
	}
	writeJSON(w, status, Response{OK: false, Reason: reason})
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
