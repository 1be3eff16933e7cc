package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fitnow/fitnow-api/internal/logging"
	"github.com/fitnow/fitnow-api/internal/model"
	"github.com/fitnow/fitnow-api/internal/reservation"
)

// ReservationRepo stores enrollments and the seats_left counters of
// activities and sessions.  It implements reservation.Store; every write
// happens inside InTx.  All timestamps are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// txOptions runs booking transactions at READ COMMITTED so plain reads
// after a FOR UPDATE see rows committed by the previous lock holder.
var txOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// InTx runs fn in a transaction and commits when fn returns nil.
func (r *ReservationRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx reservation.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, txOptions)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, &reservationTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

const listColumns = `SELECT e.id, e.activity_id, e.session_id, a.kind, a.provider_id, p.name,
                            a.title, a.location,
                            COALESCE(e.start_at, a.date_start) AS eff_start,
                            COALESCE(e.end_at, a.date_end) AS eff_end,
                            COALESCE(e.price_paid, a.price) AS eff_price
                     FROM enrollments e
                     JOIN activities a ON a.id = e.activity_id
                     LEFT JOIN providers p ON p.id = a.provider_id
                     WHERE e.user_id = ?`

// ListByUser returns the user's reservations for the window.  Upcoming
// includes rows with no start date and is sorted soonest first; past and
// all are sorted newest first.  It reads committed state only.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64, w model.Window, now time.Time) ([]model.ReservationItem, error) {
	q := listColumns
	args := []interface{}{userID}
	switch w {
	case model.WindowPast:
		q += ` AND COALESCE(e.start_at, a.date_start) < ? ORDER BY eff_start DESC, e.id DESC`
		args = append(args, now)
	case model.WindowAll:
		q += ` ORDER BY eff_start DESC, e.id DESC`
	default:
		q += ` AND (COALESCE(e.start_at, a.date_start) IS NULL OR COALESCE(e.start_at, a.date_start) >= ?) ORDER BY eff_start ASC, e.id ASC`
		args = append(args, now)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.ReservationItem, 0)
	for rows.Next() {
		var (
			it           model.ReservationItem
			sessionID    sql.NullInt64
			kind         sql.NullString
			providerID   sql.NullInt64
			providerName sql.NullString
			location     sql.NullString
			start, end   sql.NullTime
			price        sql.NullFloat64
		)
		if err := rows.Scan(&it.ID, &it.ActivityID, &sessionID, &kind, &providerID, &providerName,
			&it.Title, &location, &start, &end, &price); err != nil {
			return nil, err
		}
		it.SessionID = nullUint(sessionID)
		it.ActivityKind = model.NormalizeKind(kind.String)
		it.ProviderID = nullUint(providerID)
		it.ProviderName = nullString(providerName)
		it.Location = nullString(location)
		it.DateStart = nullTime(start)
		it.DateEnd = nullTime(end)
		it.Price = nullFloat(price)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// reservationTx implements reservation.Tx on one *sql.Tx.
type reservationTx struct {
	tx *sql.Tx
}

func (t *reservationTx) LockActivity(ctx context.Context, activityID uint64) (*model.Activity, error) {
	return scanActivity(t.tx.QueryRowContext(ctx, activitySelect+` WHERE a.id = ? FOR UPDATE`, activityID))
}

// LockSession locks the parent activity first and the session second, the
// same order a membership operation on that activity uses.
func (t *reservationTx) LockSession(ctx context.Context, sessionID uint64) (*model.Session, *model.Activity, error) {
	var activityID uint64
	if err := t.tx.QueryRowContext(ctx,
		`SELECT activity_id FROM activity_sessions WHERE id = ?`, sessionID).Scan(&activityID); err != nil {
		return nil, nil, err
	}
	act, err := t.LockActivity(ctx, activityID)
	if err != nil {
		return nil, nil, err
	}
	sess, err := scanSession(t.tx.QueryRowContext(ctx, sessionSelect+` WHERE id = ? FOR UPDATE`, sessionID))
	if err != nil {
		return nil, nil, err
	}
	return sess, act, nil
}

const enrollmentSelect = `SELECT id, user_id, activity_id, session_id, start_at, end_at, price_paid, created_at
                          FROM enrollments`

func (t *reservationTx) FindMembership(ctx context.Context, userID, activityID uint64) (*model.Reservation, error) {
	return scanReservation(t.tx.QueryRowContext(ctx,
		enrollmentSelect+` WHERE user_id = ? AND activity_id = ? AND session_id IS NULL LIMIT 1`,
		userID, activityID))
}

func (t *reservationTx) HasSlot(ctx context.Context, userID, sessionID uint64) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx,
		`SELECT 1 FROM enrollments WHERE user_id = ? AND session_id = ? LIMIT 1`,
		userID, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *reservationTx) CountSlotsBetween(ctx context.Context, userID, activityID uint64, from, to time.Time) (int, error) {
	const q = `SELECT COUNT(*)
               FROM enrollments e
               JOIN activity_sessions s ON s.id = e.session_id
               WHERE e.user_id = ? AND e.activity_id = ?
                 AND s.start_at >= ? AND s.start_at < ?`
	var n int
	if err := t.tx.QueryRowContext(ctx, q, userID, activityID, from.UTC(), to.UTC()).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (t *reservationTx) Insert(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO enrollments (user_id, activity_id, session_id, start_at, end_at, price_paid)
               VALUES (?, ?, ?, ?, ?, ?)`
	result, err := t.tx.ExecContext(ctx, q,
		res.UserID, res.ActivityID, nullableUint(res.SessionID),
		nullableTime(res.StartAt), nullableTime(res.EndAt), nullableFloat(res.PricePaid))
	if err != nil {
		if isDuplicateKey(err) {
			return reservation.ErrDuplicateReservation
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	res.CreatedAt = time.Now().UTC()
	return nil
}

func (t *reservationTx) FindReservation(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
	return scanReservation(t.tx.QueryRowContext(ctx,
		enrollmentSelect+` WHERE id = ? AND user_id = ?`, reservationID, userID))
}

func (t *reservationTx) FindSlotReservation(ctx context.Context, userID, sessionID uint64) (*model.Reservation, error) {
	return scanReservation(t.tx.QueryRowContext(ctx,
		enrollmentSelect+` WHERE user_id = ? AND session_id = ? LIMIT 1`, userID, sessionID))
}

func (t *reservationTx) LockReservation(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
	return scanReservation(t.tx.QueryRowContext(ctx,
		enrollmentSelect+` WHERE id = ? AND user_id = ? FOR UPDATE`, reservationID, userID))
}

func (t *reservationTx) Delete(ctx context.Context, reservationID, userID uint64) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM enrollments WHERE id = ? AND user_id = ?`, reservationID, userID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return reservation.ErrNotFound
	}
	return nil
}

func (t *reservationTx) TakeSeat(ctx context.Context, ref reservation.ResourceRef) (bool, error) {
	q := fmt.Sprintf(`UPDATE %s SET seats_left = seats_left - 1 WHERE id = ? AND seats_left > 0`, seatTable(ref.Type))
	return t.execOne(ctx, q, ref.ID)
}

func (t *reservationTx) ReleaseSeat(ctx context.Context, ref reservation.ResourceRef) (bool, error) {
	q := fmt.Sprintf(`UPDATE %s SET seats_left = seats_left + 1 WHERE id = ? AND seats_left < capacity`, seatTable(ref.Type))
	return t.execOne(ctx, q, ref.ID)
}

func (t *reservationTx) execOne(ctx context.Context, q string, args ...interface{}) (bool, error) {
	result, err := t.tx.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func seatTable(rt reservation.ResourceType) string {
	if rt == reservation.ResourceSession {
		return "activity_sessions"
	}
	return "activities"
}

const activitySelect = `SELECT a.id, a.provider_id, a.sport_id, a.title, a.description, a.modality,
                               a.difficulty, a.location, a.price, a.date_start, a.date_end,
                               a.capacity, a.seats_left, a.kind, a.rules
                        FROM activities a`

const sessionSelect = `SELECT id, activity_id, start_at, end_at, capacity, seats_left, price, level
                       FROM activity_sessions`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActivity(row rowScanner) (*model.Activity, error) {
	var (
		a                     model.Activity
		providerID, sportID   sql.NullInt64
		description, modality sql.NullString
		difficulty, location  sql.NullString
		price                 sql.NullFloat64
		dateStart, dateEnd    sql.NullTime
		kind                  sql.NullString
		rules                 []byte
	)
	if err := row.Scan(&a.ID, &providerID, &sportID, &a.Title, &description, &modality,
		&difficulty, &location, &price, &dateStart, &dateEnd,
		&a.Capacity, &a.SeatsLeft, &kind, &rules); err != nil {
		return nil, err
	}
	a.ProviderID = nullUint(providerID)
	a.SportID = nullUint(sportID)
	a.Description = nullString(description)
	a.Modality = nullString(modality)
	a.Difficulty = nullString(difficulty)
	a.Location = nullString(location)
	a.Price = nullFloat(price)
	a.DateStart = nullTime(dateStart)
	a.DateEnd = nullTime(dateEnd)
	a.Kind = model.NormalizeKind(kind.String)
	parsed, err := model.ParseRules(rules)
	if err != nil {
		logging.Warn().Err(err).Uint64("activity_id", a.ID).Msg("malformed activity rules, using defaults")
	}
	a.Rules = parsed
	return &a, nil
}

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		s     model.Session
		price sql.NullFloat64
		level sql.NullString
	)
	if err := row.Scan(&s.ID, &s.ActivityID, &s.StartAt, &s.EndAt, &s.Capacity, &s.SeatsLeft, &price, &level); err != nil {
		return nil, err
	}
	s.Price = nullFloat(price)
	s.Level = nullString(level)
	return &s, nil
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		r          model.Reservation
		sessionID  sql.NullInt64
		start, end sql.NullTime
		price      sql.NullFloat64
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.ActivityID, &sessionID, &start, &end, &price, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.SessionID = nullUint(sessionID)
	r.StartAt = nullTime(start)
	r.EndAt = nullTime(end)
	r.PricePaid = nullFloat(price)
	return &r, nil
}
