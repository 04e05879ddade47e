// File: internal/ratelimit/tiers.go
package ratelimit

import "github.com/iyunix/go-roomchat/internal/domain"

// Action is a gated kind of user activity.
type Action string

const (
	ActionMessage   Action = "message"
	ActionAIRequest Action = "ai_request"
	ActionConnect   Action = "connect"
)

// Window identifies which time bucket a limit applies to.
type Window string

const (
	WindowHour Window = "hour"
	WindowDay  Window = "day"
)

// Limits holds the hourly and daily ceilings for one action.
type Limits struct {
	PerHour int
	PerDay  int
}

// TierLimits is the static limit table: ceilings per tier and action.
type TierLimits map[domain.Tier]map[Action]Limits

// DefaultTierLimits returns the production limit table.
func DefaultTierLimits() TierLimits {
	return TierLimits{
		domain.TierAnonymous: {
			ActionMessage:   {PerHour: 30, PerDay: 100},
			ActionAIRequest: {PerHour: 5, PerDay: 10},
			ActionConnect:   {PerHour: 60, PerDay: 300},
		},
		domain.TierFree: {
			ActionMessage:   {PerHour: 60, PerDay: 500},
			ActionAIRequest: {PerHour: 10, PerDay: 25},
			ActionConnect:   {PerHour: 120, PerDay: 600},
		},
		domain.TierBasic: {
			ActionMessage:   {PerHour: 120, PerDay: 2000},
			ActionAIRequest: {PerHour: 50, PerDay: 200},
			ActionConnect:   {PerHour: 240, PerDay: 1200},
		},
		domain.TierPremium: {
			ActionMessage:   {PerHour: 600, PerDay: 10000},
			ActionAIRequest: {PerHour: 200, PerDay: 1000},
			ActionConnect:   {PerHour: 600, PerDay: 3000},
		},
	}
}

// limitsFor resolves the ceilings for a tier/action, falling back to
// the anonymous tier for anything unknown.
func (t TierLimits) limitsFor(tier domain.Tier, action Action) Limits {
	if byAction, ok := t[tier]; ok {
		if l, ok := byAction[action]; ok {
			return l
		}
	}
	return t[domain.TierAnonymous][action]
}
