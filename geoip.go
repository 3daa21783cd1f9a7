package bifrost

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// GeoIPReader resolves client IPs to a city and country for audit events.
type GeoIPReader struct {
	db *geoip2.Reader
}

// NewGeoIPReader opens a MaxMind GeoLite2-City database.
func NewGeoIPReader(dbPath string) (*GeoIPReader, error) {
	if dbPath == "" {
		return nil, ErrGeoIPDatabaseNotConfigured
	}

	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("geoip: failed to open database: %w", err)
	}
	return &GeoIPReader{db: db}, nil
}

// Lookup returns location information for an IP address.
// Hotspot clients usually carry private addresses, which the database
// does not know; those come back as a lookup failure.
func (r *GeoIPReader) Lookup(ip string) (*LocationInfo, error) {
	if r == nil || r.db == nil {
		return nil, ErrGeoIPDatabaseNotConfigured
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIP, ip)
	}
	if parsed.IsPrivate() || parsed.IsLoopback() {
		return nil, fmt.Errorf("%w: %s is not routable", ErrGeoIPLookupFailed, ip)
	}

	record, err := r.db.City(parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeoIPLookupFailed, err)
	}

	return &LocationInfo{
		IP:      ip,
		City:    englishName(record.City.Names),
		Country: englishName(record.Country.Names),
	}, nil
}

// LookupWithFallback returns a location carrying just the IP when the
// lookup fails or the reader is not configured.
func (r *GeoIPReader) LookupWithFallback(ip string) LocationInfo {
	loc, err := r.Lookup(ip)
	if err != nil || loc == nil {
		return LocationInfo{IP: ip}
	}
	return *loc
}

// Close closes the GeoIP database.
func (r *GeoIPReader) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// englishName prefers the English name, falling back to any available one.
func englishName(names map[string]string) string {
	if name, ok := names["en"]; ok {
		return name
	}
	for _, name := range names {
		return name
	}
	return ""
}
