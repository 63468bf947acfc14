package signature

import (
	"strings"
	"testing"
)

func TestSign_KnownVector(t *testing.T) {
	// RFC 2202 test case 2.
	got := Sign("Jefe", "what do ya want for nothing?")
	want := "effcdf6ae5eb2fa2d27416d5f184df9c259a7c79"
	if got != want {
		t.Fatalf("Sign = %s; want %s", got, want)
	}
}

func TestMessage_Concatenates(t *testing.T) {
	if got := Message("svc", "comments", "42"); got != "svccomments42" {
		t.Fatalf("Message = %q", got)
	}
}

func TestVerify_RoundTrip(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	msg := Message("2f1c7a5e-9d7c-4a7b-a1f1-3c9f2d0b8e11", "comments", "article-7")

	sig := Sign(secret, msg)
	if len(sig) != 40 || sig != strings.ToLower(sig) {
		t.Fatalf("signature must be 40 lowercase hex chars, got %q", sig)
	}
	if !Verify(secret, msg, sig) {
		t.Fatalf("Verify should accept its own signature")
	}
	if Verify(secret, msg, strings.ToUpper(sig)) {
		t.Fatalf("Verify must reject uppercase hex")
	}
}

func TestVerify_RejectsSingleBitFlips(t *testing.T) {
	secret := "s3cr3t"
	msg := "svc" + "comments" + "1"
	sig := Sign(secret, msg)

	// Flip every bit of the message.
	mb := []byte(msg)
	for i := range mb {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte(nil), mb...)
			flipped[i] ^= 1 << bit
			if Verify(secret, string(flipped), sig) {
				t.Fatalf("flipped message byte %d bit %d still verified", i, bit)
			}
		}
	}

	// Flip every bit of the key.
	kb := []byte(secret)
	for i := range kb {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte(nil), kb...)
			flipped[i] ^= 1 << bit
			if Verify(string(flipped), msg, sig) {
				t.Fatalf("flipped key byte %d bit %d still verified", i, bit)
			}
		}
	}
}

func TestVerify_RejectsEmptyAndGarbage(t *testing.T) {
	sig := Sign("k", "m")
	cases := []struct {
		name, secret, cand string
	}{
		{"empty candidate", "k", ""},
		{"empty secret", "", sig},
		{"truncated", "k", sig[:39]},
		{"garbage", "k", "not-a-signature"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if Verify(tc.secret, "m", tc.cand) {
				t.Fatalf("expected rejection")
			}
		})
	}
}
