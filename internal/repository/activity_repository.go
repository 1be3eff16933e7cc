package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fitnow/fitnow-api/internal/model"
)

// ActivityRepo serves the read-only catalogue: activities, their sessions,
// providers and sports.  None of these reads lock rows.
type ActivityRepo struct {
	db *sql.DB
}

// NewActivityRepo returns a new ActivityRepo bound to the given database.
func NewActivityRepo(db *sql.DB) *ActivityRepo { return &ActivityRepo{db: db} }

// GetDetail returns the activity with its provider and sport.  sql.ErrNoRows
// is returned when the activity does not exist; a dangling provider or
// sport reference leaves that field nil.
func (r *ActivityRepo) GetDetail(ctx context.Context, id uint64) (*model.ActivityDetail, error) {
	act, err := scanActivity(r.db.QueryRowContext(ctx, activitySelect+` WHERE a.id = ?`, id))
	if err != nil {
		return nil, err
	}
	det := &model.ActivityDetail{Activity: *act}

	if act.ProviderID != nil {
		p, err := r.getProvider(ctx, *act.ProviderID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		det.Provider = p
	}
	if act.SportID != nil {
		var s model.Sport
		err := r.db.QueryRowContext(ctx, `SELECT id, name FROM sports WHERE id = ?`, *act.SportID).Scan(&s.ID, &s.Name)
		switch {
		case err == nil:
			det.Sport = &s
		case !errors.Is(err, sql.ErrNoRows):
			return nil, err
		}
	}
	return det, nil
}

func (r *ActivityRepo) getProvider(ctx context.Context, id uint64) (*model.Provider, error) {
	const q = `SELECT id, name, kind, address, city, lat, lng FROM providers WHERE id = ?`
	var (
		p                   model.Provider
		kind, address, city sql.NullString
		lat, lng            sql.NullFloat64
	)
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.Name, &kind, &address, &city, &lat, &lng); err != nil {
		return nil, err
	}
	p.Kind = nullString(kind)
	p.Address = nullString(address)
	p.City = nullString(city)
	p.Lat = nullFloat(lat)
	p.Lng = nullFloat(lng)
	return &p, nil
}

// ListSessions returns the sessions of an activity ordered by start time.
// An unknown activity yields an empty list.
func (r *ActivityRepo) ListSessions(ctx context.Context, activityID uint64) ([]model.Session, error) {
	rows, err := r.db.QueryContext(ctx, sessionSelect+` WHERE activity_id = ? ORDER BY start_at ASC, id ASC`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListProviderSports returns the sports a provider offers, by name.
func (r *ActivityRepo) ListProviderSports(ctx context.Context, providerID uint64) ([]model.Sport, error) {
	const q = `SELECT s.id, s.name
               FROM provider_sports ps
               JOIN sports s ON s.id = ps.sport_id
               WHERE ps.provider_id = ?
               ORDER BY s.name ASC`
	rows, err := r.db.QueryContext(ctx, q, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Sport, 0)
	for rows.Next() {
		var s model.Sport
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
