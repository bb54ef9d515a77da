package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDefaultKeyFunc_PrefersClientHeaderWhenSourceIsHeader(t *testing.T) {
	fn := DefaultKeyFunc(IdentityOptions{Source: SourceHeader, ClientIDHeader: "X-ClientId", RealIPHeader: "X-Real-IP"})

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-ClientId", " client-123 ")
	r.Header.Set("X-Real-IP", "1.1.1.1")

	if got := fn(r); got != "client-123" {
		t.Fatalf("expected header key, got %q", got)
	}
}

func TestDefaultKeyFunc_RemoteSourceIgnoresClientHeader(t *testing.T) {
	fn := DefaultKeyFunc(IdentityOptions{Source: SourceRemoteAddr, ClientIDHeader: "X-ClientId"})

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-ClientId", "spoofed")

	if got := fn(r); got != "10.0.0.1" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestDefaultKeyFunc_RealIPHeader(t *testing.T) {
	fn := DefaultKeyFunc(IdentityOptions{Source: SourceRemoteAddr, RealIPHeader: "X-Real-IP", TrustXForwardedFor: true})

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Real-IP", "8.8.8.8")
	r.Header.Set("X-Forwarded-For", "1.2.3.4")

	if got := fn(r); got != "8.8.8.8" {
		t.Fatalf("expected real ip header, got %q", got)
	}
}

func TestDefaultKeyFunc_TrustXForwardedForUsesFirstIP(t *testing.T) {
	fn := DefaultKeyFunc(IdentityOptions{TrustXForwardedFor: true})

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	if got := fn(r); got != "1.2.3.4" {
		t.Fatalf("expected first XFF ip, got %q", got)
	}
}

func TestDefaultKeyFunc_FallbacksToRemoteAddrHost(t *testing.T) {
	fn := DefaultKeyFunc(IdentityOptions{})

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"

	if got := fn(r); got != "10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestDefaultKeyFunc_EmptyWhenNothingIdentifies(t *testing.T) {
	fn := DefaultKeyFunc(IdentityOptions{})

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = ""

	if got := fn(r); got != "" {
		t.Fatalf("expected empty identity, got %q", got)
	}
}

func TestRouteKey_UsesPatternThenMethodPath(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/api/tts/voices?x=1", nil)
	if got := RouteKey(r); got != "GET /api/tts/voices" {
		t.Fatalf("expected method + path, got %q", got)
	}

	mux := http.NewServeMux()
	var seen string
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) { seen = RouteKey(r) })
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "http://example/items/42", nil))
	if seen != "GET /items/{id}" {
		t.Fatalf("expected mux pattern, got %q", seen)
	}
}
