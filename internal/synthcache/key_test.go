package synthcache

import (
	"strings"
	"testing"
)

func TestFingerprint_Stable(t *testing.T) {
	a := Fingerprint("en-US_AllisonV3Voice", "hello world")
	b := Fingerprint("en-US_AllisonV3Voice", "hello world")
	if a != b {
		t.Fatalf("expected same key, got %q and %q", a, b)
	}
	if !strings.HasPrefix(string(a), "v1:") || len(a) != len("v1:")+64 {
		t.Fatalf("unexpected key format %q", a)
	}
}

func TestFingerprint_Normalizes(t *testing.T) {
	base := Fingerprint("v", "caf\u00e9")

	if got := Fingerprint(" v ", "  caf\u00e9\n"); got != base {
		t.Fatalf("surrounding whitespace must not change the key")
	}
	// "e" + acento combinante vs "é" pré-composto
	if got := Fingerprint("v", "cafe\u0301"); got != base {
		t.Fatalf("NFC-equivalent text must produce the same key")
	}
}

func TestFingerprint_Distinguishes(t *testing.T) {
	if Fingerprint("ab", "c") == Fingerprint("a", "bc") {
		t.Fatalf("voice/text boundary must be part of the key")
	}
	if Fingerprint("a\x00b", "c") == Fingerprint("a", "b\x00c") {
		t.Fatalf("NUL inside a field must not shift the voice/text boundary")
	}
	if Fingerprint("a\x00", "b") == Fingerprint("a", "\x00b") {
		t.Fatalf("trailing NUL in voice must not collide with leading NUL in text")
	}
	if Fingerprint("v1", "hello") == Fingerprint("v2", "hello") {
		t.Fatalf("different voices must produce different keys")
	}
	if Fingerprint("v", "hello") == Fingerprint("v", "Hello") {
		t.Fatalf("text is case sensitive")
	}
}
