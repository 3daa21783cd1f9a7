package bifrost

import (
	"fmt"
	"net"
	"net/http"
	"slices"
)

// IPRange is an inclusive IPv4 range.
type IPRange struct {
	Start string
	End   string

	start, end uint32
}

// NewIPRange parses an inclusive dotted-quad range.
func NewIPRange(start, end string) (*IPRange, error) {
	s, err := IPv4ToUint32(start)
	if err != nil {
		return nil, fmt.Errorf("bifrost: range start: %w", err)
	}
	e, err := IPv4ToUint32(end)
	if err != nil {
		return nil, fmt.Errorf("bifrost: range end: %w", err)
	}
	if s > e {
		return nil, fmt.Errorf("bifrost: range start %s is after end %s", start, end)
	}
	return &IPRange{Start: start, End: end, start: s, end: e}, nil
}

// Contains reports whether ip is a dotted-quad address inside the range.
// Anything that does not parse as IPv4 is outside every range.
func (r *IPRange) Contains(ip string) bool {
	n, err := IPv4ToUint32(ip)
	if err != nil {
		return false
	}
	return n >= r.start && n <= r.end
}

// IPv4ToUint32 converts a dotted-quad address to its 32-bit value.
func IPv4ToUint32(ip string) (uint32, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidIP, ip)
	}
	v4 := parsed.To4()
	if v4 == nil {
		return 0, fmt.Errorf("%w: %s is not IPv4", ErrInvalidIP, ip)
	}
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3]), nil
}

// CheckIP reports whether the request's client IP falls inside rng,
// along with the observed IP.
func CheckIP(r *http.Request, rng *IPRange) (bool, string) {
	ip := ClientIP(r)
	return rng.Contains(ip), ip
}

// ipAllowed applies the exact list and the range. Either restriction,
// when configured, must admit the IP.
func (c *Config) ipAllowed(ip string) bool {
	if len(c.AllowedIPs) > 0 && !slices.Contains(c.AllowedIPs, ip) {
		return false
	}
	if c.AllowRange != nil && !c.AllowRange.Contains(ip) {
		return false
	}
	return true
}
