package model

import (
	"strings"
	"time"
)

// Kind classifies an activity and decides whether it tracks seats.
type Kind string

const (
	KindGym       Kind = "gym"
	KindClub      Kind = "club"
	KindTrainer   Kind = "trainer"
	KindClubSport Kind = "club_sport"
)

// NormalizeKind lower-cases the stored kind; an empty kind is a gym.
func NormalizeKind(s string) Kind {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" {
		return KindGym
	}
	return k
}

// Unlimited reports whether the kind is sold as a membership with no seat
// accounting.  Every other kind, club_sport included, consumes seats.
func (k Kind) Unlimited() bool {
	switch k {
	case KindGym, KindClub, KindTrainer:
		return true
	}
	return false
}

// Activity mirrors the activities table.
//
// Fields:
//
//	Capacity/SeatsLeft – only meaningful when Kind is not Unlimited.
//	Rules              – parsed rules document, defaults applied.
type Activity struct {
	ID          uint64     `json:"id"`          // activities.id
	ProviderID  *uint64    `json:"provider_id"` // activities.provider_id
	SportID     *uint64    `json:"sport_id"`    // activities.sport_id
	Title       string     `json:"title"`       // activities.title
	Description *string    `json:"description"` // activities.description
	Modality    *string    `json:"modality"`    // activities.modality
	Difficulty  *string    `json:"difficulty"`  // activities.difficulty
	Location    *string    `json:"location"`    // activities.location
	Price       *float64   `json:"price"`       // activities.price
	DateStart   *time.Time `json:"date_start"`  // activities.date_start
	DateEnd     *time.Time `json:"date_end"`    // activities.date_end
	Capacity    int        `json:"capacity"`    // activities.capacity
	SeatsLeft   int        `json:"seats_left"`  // activities.seats_left
	Kind        Kind       `json:"kind"`        // activities.kind
	Rules       Rules      `json:"rules"`       // activities.rules (JSON)
}

// Session is a timed slot of an activity.  Sessions always track seats.
type Session struct {
	ID         uint64    `json:"id"`          // activity_sessions.id
	ActivityID uint64    `json:"activity_id"` // activity_sessions.activity_id
	StartAt    time.Time `json:"start_at"`    // activity_sessions.start_at
	EndAt      time.Time `json:"end_at"`      // activity_sessions.end_at
	Capacity   int       `json:"capacity"`    // activity_sessions.capacity
	SeatsLeft  int       `json:"seats_left"`  // activity_sessions.seats_left
	Price      *float64  `json:"price"`       // activity_sessions.price
	Level      *string   `json:"level"`       // activity_sessions.level
}
