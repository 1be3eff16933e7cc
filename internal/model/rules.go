package model

import (
	"bytes"

	"github.com/goccy/go-json"
)

const (
	DefaultStartDelayDays = 0
	DefaultDurationDays   = 30
)

// Rules is the per-activity booking policy stored as JSON in
// activities.rules, for example:
//
//	{"membership": {"start_delay_days": 1, "duration_days": 30},
//	 "sessions":   {"per_week_limit": 2}}
type Rules struct {
	Membership MembershipRules `json:"membership"`
	Sessions   SessionRules    `json:"sessions"`
}

type MembershipRules struct {
	StartDelayDays int `json:"start_delay_days"`
	DurationDays   int `json:"duration_days"`
}

type SessionRules struct {
	PerWeekLimit int `json:"per_week_limit"`
	// MembershipRequired defaults to true when absent.
	MembershipRequired *bool `json:"membership_required,omitempty"`
}

// DefaultRules returns the policy used when an activity has no rules.
func DefaultRules() Rules {
	return Rules{Membership: MembershipRules{
		StartDelayDays: DefaultStartDelayDays,
		DurationDays:   DefaultDurationDays,
	}}
}

// ParseRules decodes a rules document and applies defaults.  A null or
// empty document yields DefaultRules.  On malformed input the defaults are
// returned together with the decode error.
func ParseRules(raw []byte) (Rules, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return DefaultRules(), nil
	}
	r := Rules{Membership: MembershipRules{StartDelayDays: -1, DurationDays: -1}}
	if err := json.Unmarshal(raw, &r); err != nil {
		return DefaultRules(), err
	}
	r.normalize()
	return r, nil
}

func (r *Rules) normalize() {
	if r.Membership.StartDelayDays < 0 {
		r.Membership.StartDelayDays = DefaultStartDelayDays
	}
	if r.Membership.DurationDays <= 0 {
		r.Membership.DurationDays = DefaultDurationDays
	}
	if r.Sessions.PerWeekLimit < 0 {
		r.Sessions.PerWeekLimit = 0
	}
}

// SessionsNeedMembership reports whether booking a session requires an
// active membership reservation on the parent activity.
func (r Rules) SessionsNeedMembership() bool {
	return r.Sessions.MembershipRequired == nil || *r.Sessions.MembershipRequired
}
