package probe

import (
	"context"
	"testing"
)

func TestHostOf(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://Example.com:8443/x", "Example.com"},
		{"http://127.0.0.1:9000", "127.0.0.1"},
		{"not a url", ""},
		{"http://[::1", ""},
	}
	for _, c := range cases {
		if got := HostOf(c.in); got != c.want {
			t.Fatalf("HostOf(%q)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestCheckDNS_NoNetworkCases(t *testing.T) {
	if got := CheckDNS(context.Background(), "::bad::").Class; got != DNSInvalidName {
		t.Fatalf("want %s, got %s", DNSInvalidName, got)
	}
	if got := CheckDNS(context.Background(), "http://127.0.0.1:1/").Class; got != DNSResolves {
		t.Fatalf("IP literal should resolve, got %s", got)
	}
}
