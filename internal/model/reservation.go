package model

import (
	"strings"
	"time"
)

// Reservation binds a user to an activity (membership, SessionID nil) or to
// one session of it (slot).  Stored in the enrollments table.
//
// Fields:
//
//	StartAt/EndAt – membership window, or the session's times for slots.
//	PricePaid     – price captured when the reservation was made.
type Reservation struct {
	ID         uint64     // enrollments.id
	UserID     uint64     // enrollments.user_id
	ActivityID uint64     // enrollments.activity_id
	SessionID  *uint64    // enrollments.session_id (nullable)
	StartAt    *time.Time // enrollments.start_at
	EndAt      *time.Time // enrollments.end_at
	PricePaid  *float64   // enrollments.price_paid
	CreatedAt  time.Time  // enrollments.created_at
}

// IsMembership reports whether the reservation covers the activity as a whole.
func (r Reservation) IsMembership() bool { return r.SessionID == nil }

// ReservationItem is one row of the "my reservations" listing.
type ReservationItem struct {
	ID           uint64     `json:"id"`
	ActivityID   uint64     `json:"activity_id"`
	SessionID    *uint64    `json:"session_id"`
	ActivityKind Kind       `json:"activity_kind"`
	ProviderID   *uint64    `json:"provider_id"`
	ProviderName *string    `json:"provider_name"`
	Title        string     `json:"title"`
	Location     *string    `json:"location"`
	DateStart    *time.Time `json:"date_start"`
	DateEnd      *time.Time `json:"date_end"`
	Price        *float64   `json:"price"`
}

// Window selects which reservations a listing returns.
type Window string

const (
	WindowUpcoming Window = "upcoming"
	WindowPast     Window = "past"
	WindowAll      Window = "all"
)

// ParseWindow maps the "when" query value; anything unknown is upcoming.
func ParseWindow(s string) Window {
	w := Window(strings.ToLower(strings.TrimSpace(s)))
	switch w {
	case WindowPast, WindowAll:
		return w
	}
	return WindowUpcoming
}
