package auth

import "time"

// Principal is the verified identity attached to a session: user_id,
// optional email, role, and expiry. Only the Token Cache owns Principal
// values.
type Principal struct {
	UserID     string
	Email      string
	Role       string
	ExpiresAt  int64 // unix seconds, taken from the token's exp claim
	VerifiedAt time.Time
}

// gracePeriod is the window exposed via IsNearExpiry for upstream renewal
// policies; the cache itself never refreshes a token.
const gracePeriod = 300 * time.Second

// IsExpired reports whether the principal's token has already expired.
func (p *Principal) IsExpired(now time.Time) bool {
	return now.Unix() >= p.ExpiresAt
}

// IsNearExpiry reports whether the principal is within the 300s grace
// period of expiry.
func (p *Principal) IsNearExpiry(now time.Time) bool {
	return p.ExpiresAt-now.Unix() <= int64(gracePeriod.Seconds())
}
