package repository

import (
	"database/sql"
	"time"
)

func nullUint(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	u := uint64(v.Int64)
	return &u
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

// nullableUint and friends turn optional fields into driver arguments.
func nullableUint(p *uint64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func nullableTime(p *time.Time) interface{} {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func nullableFloat(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
