package auth

import "time"

// EdgeValidator is the reduced-trust expiry check for restricted runtimes that
// cannot run the full verifier. It decodes the claims segment WITHOUT verifying
// the signature and checks only expiry.
//
// A true result proves nothing about authenticity. The only sanctioned use is
// an optimistic routing decision — redirect to login versus forward the request
// for full verification downstream. It is a distinct type from Tokens on
// purpose, so it cannot be passed where authoritative verification is required.
type EdgeValidator struct {
	now func() time.Time
}

// NewEdgeValidator constructs the validator with an optional clock override.
func NewEdgeValidator(clock func() time.Time) *EdgeValidator {
	if clock == nil {
		clock = time.Now
	}
	return &EdgeValidator{now: clock}
}

// QuickCheck reports whether the token is structurally a three-part token whose
// exp claim has not passed. No signature check is performed.
func (v *EdgeValidator) QuickCheck(raw string) bool {
	payload, err := decodePayload(raw)
	if err != nil {
		return false
	}
	exp, ok := toInt64(payload["exp"])
	if !ok {
		return false
	}
	return v.now().Unix() < exp
}

// PeekClaims returns the unverified claim set for routing hints (for example a
// login redirect that pre-fills the username). Never use the result for an
// authorization decision.
func (v *EdgeValidator) PeekClaims(raw string) (*Claims, bool) {
	payload, err := decodePayload(raw)
	if err != nil {
		return nil, false
	}
	claims, err := claimsFromPayload(payload)
	if err != nil {
		return nil, false
	}
	if claims.ExpiresAt.IsZero() || !v.now().Before(claims.ExpiresAt) {
		return nil, false
	}
	return claims, true
}
