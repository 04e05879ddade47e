// File: internal/domain/tier.go
package domain

// Tier is a named usage class with distinct rate limits.
type Tier string

const (
	TierAnonymous Tier = "anonymous"
	TierFree      Tier = "free"
	TierBasic     Tier = "basic"
	TierPremium   Tier = "premium"
)

// ParseTier maps a raw tier claim to a known tier, defaulting to
// anonymous for anything unrecognized.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierFree, TierBasic, TierPremium:
		return Tier(s)
	default:
		return TierAnonymous
	}
}

// Identity describes one connected participant as resolved by the
// identity collaborator. ConnID is unique per connection and is the
// preferred key for own-message echo suppression; display names may
// collide between participants.
type Identity struct {
	Name   string
	ConnID string
	Tier   Tier
}
