package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/fitnow/fitnow-api/internal/model"
)

// ActivitySearchQuery filters the public activity listing.  Zero values mean
// "no filter".  club_sport activities are hidden unless IncludeSports is
// set or Kind asks for them.
type ActivitySearchQuery struct {
	Difficulty    string
	Modality      string
	Kind          string
	ProviderID    uint64
	SportID       uint64
	MinPrice      *float64
	MaxPrice      *float64
	IncludeSports bool
	Limit         int
	Offset        int
}

// Normalize clamps paging to 1..100 (default 50) and a non-negative offset.
func (q *ActivitySearchQuery) Normalize() {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	q.Difficulty = strings.TrimSpace(q.Difficulty)
	q.Modality = strings.TrimSpace(q.Modality)
	q.Kind = strings.ToLower(strings.TrimSpace(q.Kind))
}

type ActivityRow struct {
	ID           uint64     `json:"id"`
	Title        string     `json:"title"`
	Description  *string    `json:"description"`
	Modality     *string    `json:"modality"`
	Difficulty   *string    `json:"difficulty"`
	Location     *string    `json:"location"`
	Price        *float64   `json:"price"`
	DateStart    *time.Time `json:"date_start"`
	DateEnd      *time.Time `json:"date_end"`
	Capacity     int        `json:"capacity"`
	SeatsLeft    int        `json:"seats_left"`
	Kind         string     `json:"kind"`
	ProviderID   *uint64    `json:"provider_id"`
	ProviderName *string    `json:"provider_name"`
	SportID      *uint64    `json:"sport_id"`
	SportName    *string    `json:"sport_name"`
}

// Search lists activities matching q ordered by start date.
func (r *ActivityRepo) Search(ctx context.Context, q ActivitySearchQuery) ([]ActivityRow, error) {
	q.Normalize()
	where := []string{}
	args := []any{}

	if !q.IncludeSports && q.Kind != "club_sport" {
		where = append(where, "(a.kind IS NULL OR a.kind <> 'club_sport')")
	}
	if q.Difficulty != "" {
		where = append(where, "a.difficulty = ?")
		args = append(args, q.Difficulty)
	}
	if q.Modality != "" {
		where = append(where, "a.modality = ?")
		args = append(args, q.Modality)
	}
	if q.MinPrice != nil {
		where = append(where, "a.price >= ?")
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		where = append(where, "a.price <= ?")
		args = append(args, *q.MaxPrice)
	}
	if q.ProviderID != 0 {
		where = append(where, "a.provider_id = ?")
		args = append(args, q.ProviderID)
	}
	if q.SportID != 0 {
		where = append(where, "a.sport_id = ?")
		args = append(args, q.SportID)
	}
	if q.Kind != "" {
		where = append(where, "a.kind = ?")
		args = append(args, q.Kind)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	dataSQL := `SELECT
			a.id, a.title, a.description, a.modality, a.difficulty, a.location, a.price,
			a.date_start, a.date_end, a.capacity, a.seats_left, a.kind,
			a.provider_id, p.name AS provider_name,
			a.sport_id, s.name AS sport_name
		FROM activities a
		LEFT JOIN providers p ON p.id = a.provider_id
		LEFT JOIN sports    s ON s.id = a.sport_id
		WHERE ` + cond + `
		ORDER BY a.date_start ASC, a.id ASC
		LIMIT ? OFFSET ?`
	args = append(args, q.Limit, q.Offset)

	rows, err := r.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ActivityRow, 0, q.Limit)
	for rows.Next() {
		var (
			d                     ActivityRow
			description, modality sql.NullString
			difficulty, location  sql.NullString
			price                 sql.NullFloat64
			start, end            sql.NullTime
			kind                  sql.NullString
			providerID, sportID   sql.NullInt64
			providerName, sport   sql.NullString
		)
		if err := rows.Scan(
			&d.ID, &d.Title, &description, &modality, &difficulty, &location, &price,
			&start, &end, &d.Capacity, &d.SeatsLeft, &kind,
			&providerID, &providerName,
			&sportID, &sport,
		); err != nil {
			return nil, err
		}
		d.Description = nullString(description)
		d.Modality = nullString(modality)
		d.Difficulty = nullString(difficulty)
		d.Location = nullString(location)
		d.Price = nullFloat(price)
		d.DateStart = nullTime(start)
		d.DateEnd = nullTime(end)
		d.Kind = string(model.NormalizeKind(kind.String))
		d.ProviderID = nullUint(providerID)
		d.ProviderName = nullString(providerName)
		d.SportID = nullUint(sportID)
		d.SportName = nullString(sport)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
