package bifrost

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestIPv4ToUint32(t *testing.T) {
	tests := []struct {
		ip      string
		want    uint32
		wantErr bool
	}{
		{"0.0.0.0", 0, false},
		{"10.0.0.1", 0x0A000001, false},
		{"255.255.255.255", 0xFFFFFFFF, false},
		{"::1", 0, true},
		{"not-an-ip", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := IPv4ToUint32(tt.ip)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidIP) {
				t.Errorf("%q: expected ErrInvalidIP, got %v", tt.ip, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%q: expected %#x, got %#x (%v)", tt.ip, tt.want, got, err)
		}
	}
}

func TestIPRange(t *testing.T) {
	rng, err := NewIPRange("192.168.1.10", "192.168.1.20")
	if err != nil {
		t.Fatalf("NewIPRange failed: %v", err)
	}

	tests := []struct {
		ip   string
		want bool
	}{
		{"192.168.1.10", true},
		{"192.168.1.15", true},
		{"192.168.1.20", true},
		{"192.168.1.9", false},
		{"192.168.1.21", false},
		{"192.168.2.15", false},
		{"fe80::1", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := rng.Contains(tt.ip); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}

	if _, err := NewIPRange("10.0.0.9", "10.0.0.1"); err == nil {
		t.Error("Expected error for an inverted range")
	}
	if _, err := NewIPRange("10.0.0.1", "nope"); err == nil {
		t.Error("Expected error for a bad range end")
	}
}

func TestCheckIP(t *testing.T) {
	rng, _ := NewIPRange("10.0.0.1", "10.0.0.50")

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "10.0.0.5, 172.16.0.1")
	if ok, ip := CheckIP(r, rng); !ok || ip != "10.0.0.5" {
		t.Errorf("Expected 10.0.0.5 allowed, got %v %q", ok, ip)
	}

	r = httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.99:5555"
	if ok, ip := CheckIP(r, rng); ok || ip != "10.0.0.99" {
		t.Errorf("Expected 10.0.0.99 denied, got %v %q", ok, ip)
	}
}

func TestConfigIPAllowed(t *testing.T) {
	rng, _ := NewIPRange("10.0.0.1", "10.0.0.50")

	tests := []struct {
		name string
		cfg  Config
		ip   string
		want bool
	}{
		{"no restrictions", Config{}, "8.8.8.8", true},
		{"exact match", Config{AllowedIPs: []string{"10.0.0.7"}}, "10.0.0.7", true},
		{"exact miss", Config{AllowedIPs: []string{"10.0.0.7"}}, "10.0.0.8", false},
		{"range match", Config{AllowRange: rng}, "10.0.0.8", true},
		{"range miss", Config{AllowRange: rng}, "10.0.1.8", false},
		{"both must admit", Config{AllowedIPs: []string{"10.0.1.8"}, AllowRange: rng}, "10.0.1.8", false},
	}
	for _, tt := range tests {
		if got := tt.cfg.ipAllowed(tt.ip); got != tt.want {
			t.Errorf("%s: ipAllowed(%q) = %v, want %v", tt.name, tt.ip, got, tt.want)
		}
	}
}
