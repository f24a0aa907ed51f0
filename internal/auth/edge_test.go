package auth

import (
	"testing"
	"time"
)

func TestQuickCheckAcceptsUnexpired(t *testing.T) {
	tokens := newTestTokens(t)
	raw, _, err := tokens.IssueAccessToken(Claims{Subject: "user-1"})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	v := NewEdgeValidator(nil)
	if !v.QuickCheck(raw) {
		t.Fatalf("unexpired token failed quick check")
	}
}

func TestQuickCheckRejectsExpired(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	issuer := newTestTokens(t, WithClock(func() time.Time { return past }))
	raw, _, err := issuer.IssueAccessToken(Claims{Subject: "user-1"})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	v := NewEdgeValidator(nil)
	if v.QuickCheck(raw) {
		t.Fatalf("expired token passed quick check")
	}
}

func TestQuickCheckIgnoresSignature(t *testing.T) {
	// The edge validator deliberately skips the signature: a token signed with
	// an unknown secret still passes as long as exp is in the future.
	foreign := newTestTokens(t)
	foreign.secret = []byte("nobody-we-trust")
	raw, _, err := foreign.IssueAccessToken(Claims{Subject: "user-1"})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	v := NewEdgeValidator(nil)
	if !v.QuickCheck(raw) {
		t.Fatalf("quick check must not depend on the signature")
	}
	authoritative := newTestTokens(t)
	if _, err := authoritative.Verify(raw, KindAccess); err == nil {
		t.Fatalf("full verifier must reject what the edge check waves through")
	}
}

func TestQuickCheckRejectsGarbage(t *testing.T) {
	v := NewEdgeValidator(nil)
	for _, raw := range []string{"", "x", "a.b", "a.!!!.c", "a.b.c.d"} {
		if v.QuickCheck(raw) {
			t.Fatalf("garbage %q passed quick check", raw)
		}
	}
}

func TestPeekClaims(t *testing.T) {
	tokens := newTestTokens(t)
	raw, _, err := tokens.IssueAccessToken(Claims{Subject: "user-1", Username: "alice"})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	v := NewEdgeValidator(nil)
	claims, ok := v.PeekClaims(raw)
	if !ok {
		t.Fatalf("expected claims from valid token")
	}
	if claims.Subject != "user-1" || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, ok := v.PeekClaims("garbage"); ok {
		t.Fatalf("garbage yielded claims")
	}
}
