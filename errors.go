package bifrost

import "errors"

var (
	// ErrMethodNotAllowed is returned when an endpoint is called with the wrong verb.
	ErrMethodNotAllowed = errors.New("bifrost: method not allowed")

	// ErrIPNotAllowed is returned when the client IP is outside the configured allowlist.
	ErrIPNotAllowed = errors.New("bifrost: client IP not allowed")

	// ErrRateLimited is returned when a client IP exceeds the issuance rate.
	ErrRateLimited = errors.New("bifrost: too many requests")

	// ErrInvalidCredential is returned when a shared credential is missing or wrong.
	ErrInvalidCredential = errors.New("bifrost: invalid or missing credential")

	// ErrSecretNotConfigured is returned when the server HMAC secret is absent.
	// It signals a misconfigured deployment, not a denied user.
	ErrSecretNotConfigured = errors.New("bifrost: secret not configured")

	// ErrMissingClaim is returned when issuance lacks an identity or validity.
	ErrMissingClaim = errors.New("bifrost: missing identity or validity")

	// ErrMissingToken is returned when validation lacks token, ts, u or exp.
	ErrMissingToken = errors.New("bifrost: missing token or timestamp")

	// ErrMissingKey is returned when key-only validation has no key.
	ErrMissingKey = errors.New("bifrost: missing access key")

	// ErrTokenInvalid is returned when the recomputed digest does not match.
	ErrTokenInvalid = errors.New("bifrost: invalid token")

	// ErrTokenExpired is returned when the digest matches but the claim is too old.
	ErrTokenExpired = errors.New("bifrost: token expired")

	// ErrGeoIPDatabaseNotConfigured is returned when GeoIP lookup is attempted
	// without configuring the GeoIP database path.
	ErrGeoIPDatabaseNotConfigured = errors.New("bifrost: GeoIP database path not configured")

	// ErrGeoIPLookupFailed is returned when IP geolocation lookup fails.
	ErrGeoIPLookupFailed = errors.New("bifrost: GeoIP lookup failed")

	// ErrInvalidIP is returned when an invalid IP address is provided.
	ErrInvalidIP = errors.New("bifrost: invalid IP address")

	// ErrMissingURL is returned when the proxy is called without a target.
	ErrMissingURL = errors.New("bifrost: missing url parameter")

	// ErrUnsupportedScheme is returned when the proxy target is not http or https.
	ErrUnsupportedScheme = errors.New("bifrost: unsupported url scheme")
)
