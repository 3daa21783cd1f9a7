package bifrost

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// Proxy fetches a remote URL server-side and passes the body and content
// type through with permissive CORS headers. It carries no protocol
// logic beyond that.
type Proxy struct {
	client *http.Client
	log    *logrus.Entry
}

// proxyError is the JSON body of a failed proxy request.
type proxyError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NewProxy creates a proxy whose upstream fetches are bounded by timeout.
func NewProxy(timeout time.Duration, log *logrus.Entry) *Proxy {
	return &Proxy{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	target, err := proxyTarget(r.URL.Query().Get("url"))
	if err != nil {
		ProxyRequests.WithLabelValues("bad_request").Inc()
		writeJSON(w, http.StatusBadRequest, proxyError{Error: "Missing ?url parameter", Details: detailFor(err)})
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		p.fail(w, target, err)
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.fail(w, target, err)
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		// Headers are already out; all that is left is to record it.
		ProxyRequests.WithLabelValues("stream_error").Inc()
		p.log.WithError(err).WithField("host", target.Host).Warn("proxy stream interrupted")
		return
	}
	ProxyRequests.WithLabelValues("ok").Inc()
	p.log.WithFields(logrus.Fields{"host": target.Host, "status": resp.StatusCode, "bytes": n}).Debug("proxied")
}

func (p *Proxy) fail(w http.ResponseWriter, target *url.URL, err error) {
	ProxyRequests.WithLabelValues("fetch_error").Inc()
	p.log.WithError(err).WithField("host", target.Host).Warn("proxy fetch failed")
	writeJSON(w, http.StatusInternalServerError, proxyError{Error: "Failed to fetch target", Details: err.Error()})
}

// proxyTarget parses the url parameter. Only absolute http and https
// URLs are fetched.
func proxyTarget(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, ErrMissingURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: no host", ErrMissingURL)
	}
	return u, nil
}

func detailFor(err error) string {
	if err == ErrMissingURL {
		return ""
	}
	return err.Error()
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}
