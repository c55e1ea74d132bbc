package httpmw

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		hops   int
		want   string
		// whether X-Forwarded-For survives extraction
		keepXFF bool
	}{
		{name: "public peer no hops", remote: "203.0.113.9:5555", xff: "1.1.1.1", want: "203.0.113.9"},
		{name: "public peer ignores hops", remote: "203.0.113.9:5555", xff: "1.1.1.1", hops: 1, want: "203.0.113.9"},
		{name: "private peer zero hops", remote: "10.0.0.5:80", xff: "1.1.1.1", want: "10.0.0.5"},
		{name: "single alb", remote: "10.0.0.5:80", xff: "198.51.100.7", hops: 1, want: "198.51.100.7", keepXFF: true},
		{name: "single alb spoofed prefix", remote: "10.0.0.5:80", xff: "6.6.6.6, 198.51.100.7", hops: 1, want: "198.51.100.7", keepXFF: true},
		{name: "cdn and alb", remote: "10.0.0.5:80", xff: "6.6.6.6, 198.51.100.7, 172.16.0.1", hops: 2, want: "198.51.100.7", keepXFF: true},
		{name: "too few entries", remote: "10.0.0.5:80", xff: "198.51.100.7", hops: 3, want: "10.0.0.5"},
		{name: "garbage entry", remote: "10.0.0.5:80", xff: "not-an-ip", hops: 1, want: "10.0.0.5", keepXFF: true},
		{name: "no xff", remote: "10.0.0.5:80", hops: 1, want: "10.0.0.5"},
		{name: "loopback peer", remote: "127.0.0.1:80", xff: "198.51.100.7", hops: 1, want: "198.51.100.7", keepXFF: true},
		{name: "ipv6 public", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "no port", remote: "10.0.0.5", want: "10.0.0.5"},
		{name: "unparseable host", remote: "host:80", want: "0.0.0.0"},
		{name: "empty remote", remote: "", want: "0.0.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
				r.Header.Set("X-Forwarded-Proto", "https")
			}
			if got := resolveClientIP(r, tt.hops); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			if tt.xff == "" || tt.remote == "" || tt.remote == "host:80" || tt.remote == "10.0.0.5" {
				return
			}
			kept := r.Header.Get("X-Forwarded-For") != ""
			if kept != tt.keepXFF {
				t.Fatalf("X-Forwarded-For kept = %v, want %v", kept, tt.keepXFF)
			}
			if !kept && r.Header.Get("X-Forwarded-Proto") != "" {
				t.Fatal("X-Forwarded-Proto survived an untrusted peer")
			}
		})
	}
}

func TestClientIPWithOptions_Middleware(t *testing.T) {
	var got string
	h := ClientIPWithOptions(ClientIPOptions{TrustedHops: 1})(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = ClientIPFromContext(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	r.RemoteAddr = "10.1.2.3:4000"
	r.Header.Set("X-Forwarded-For", "198.51.100.20")
	h.ServeHTTP(httptest.NewRecorder(), r)
	if got != "198.51.100.20" {
		t.Fatalf("client ip = %q", got)
	}

	ClientIP(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = ClientIPFromContext(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), r)
	if got != "10.1.2.3" {
		t.Fatalf("default options client ip = %q", got)
	}
}

func TestClientIPContext(t *testing.T) {
	if got := ClientIPFromContext(context.Background()); got != "" {
		t.Fatalf("missing = %q", got)
	}
	ctx := WithClientIP(context.Background(), "192.0.2.1")
	if got := ClientIPFromContext(ctx); got != "192.0.2.1" {
		t.Fatalf("got %q", got)
	}
	if WithClientIP(ctx, "") != ctx {
		t.Fatal("empty ip should not replace context")
	}
}

func FuzzResolveClientIP(f *testing.F) {
	f.Add("10.0.0.1:80", "1.2.3.4, 5.6.7.8", 1)
	f.Add("203.0.113.1:80", "", 0)
	f.Add("[::1]:80", ",,,", 4)
	f.Fuzz(func(t *testing.T, remote, xff string, hops int) {
		if hops < 0 || hops > 8 {
			return
		}
		r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		r.RemoteAddr = remote
		r.Header.Set("X-Forwarded-For", xff)
		got := resolveClientIP(r, hops)
		if got == "" {
			t.Fatal("empty client ip")
		}
		if got != remote && net.ParseIP(got) == nil {
			t.Fatalf("resolved %q is neither an IP nor the raw remote", got)
		}
	})
}
