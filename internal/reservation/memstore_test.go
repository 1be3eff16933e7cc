package reservation

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/fitnow/fitnow-api/internal/model"
)

// memStore is a transactional in-memory Store.  InTx serializes callers on
// one mutex and works on a copy of the state, so a failed fn leaves nothing
// behind.
type memStore struct {
	mu         sync.Mutex
	activities map[uint64]model.Activity
	sessions   map[uint64]model.Session
	rows       map[uint64]model.Reservation
	nextID     uint64
}

func newMemStore() *memStore {
	return &memStore{
		activities: map[uint64]model.Activity{},
		sessions:   map[uint64]model.Session{},
		rows:       map[uint64]model.Reservation{},
	}
}

func (m *memStore) addActivity(a model.Activity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Kind = model.NormalizeKind(string(a.Kind))
	if a.Rules == (model.Rules{}) {
		a.Rules = model.DefaultRules()
	}
	m.activities[a.ID] = a
}

func (m *memStore) addSession(s model.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

func (m *memStore) activity(id uint64) model.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activities[id]
}

func (m *memStore) session(id uint64) model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{
		activities: cloneMap(m.activities),
		sessions:   cloneMap(m.sessions),
		rows:       cloneMap(m.rows),
		nextID:     m.nextID,
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.activities, m.sessions, m.rows, m.nextID = tx.activities, tx.sessions, tx.rows, tx.nextID
	return nil
}

func (m *memStore) ListByUser(_ context.Context, userID uint64, w model.Window, now time.Time) ([]model.ReservationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type keyed struct {
		item  model.ReservationItem
		start *time.Time
	}
	var out []keyed
	for _, r := range m.rows {
		if r.UserID != userID {
			continue
		}
		a := m.activities[r.ActivityID]
		start := r.StartAt
		if start == nil {
			start = a.DateStart
		}
		end := r.EndAt
		if end == nil {
			end = a.DateEnd
		}
		price := r.PricePaid
		if price == nil {
			price = a.Price
		}
		switch w {
		case model.WindowUpcoming:
			if start != nil && start.Before(now) {
				continue
			}
		case model.WindowPast:
			if start == nil || !start.Before(now) {
				continue
			}
		}
		out = append(out, keyed{start: start, item: model.ReservationItem{
			ID:           r.ID,
			ActivityID:   r.ActivityID,
			SessionID:    r.SessionID,
			ActivityKind: a.Kind,
			ProviderID:   a.ProviderID,
			Title:        a.Title,
			Location:     a.Location,
			DateStart:    start,
			DateEnd:      end,
			Price:        price,
		}})
	}
	asc := w == model.WindowUpcoming
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.start == nil || b.start == nil || a.start.Equal(*b.start) {
			return a.item.ID < b.item.ID
		}
		if asc {
			return a.start.Before(*b.start)
		}
		return a.start.After(*b.start)
	})
	items := make([]model.ReservationItem, 0, len(out))
	for _, k := range out {
		items = append(items, k.item)
	}
	return items, nil
}

type memTx struct {
	activities map[uint64]model.Activity
	sessions   map[uint64]model.Session
	rows       map[uint64]model.Reservation
	nextID     uint64
}

func (t *memTx) LockActivity(_ context.Context, id uint64) (*model.Activity, error) {
	a, ok := t.activities[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (t *memTx) LockSession(_ context.Context, id uint64) (*model.Session, *model.Activity, error) {
	s, ok := t.sessions[id]
	if !ok {
		return nil, nil, sql.ErrNoRows
	}
	a, ok := t.activities[s.ActivityID]
	if !ok {
		return nil, nil, sql.ErrNoRows
	}
	return &s, &a, nil
}

func (t *memTx) FindMembership(_ context.Context, userID, activityID uint64) (*model.Reservation, error) {
	for _, r := range t.rows {
		if r.UserID == userID && r.ActivityID == activityID && r.SessionID == nil {
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (t *memTx) HasSlot(ctx context.Context, userID, sessionID uint64) (bool, error) {
	_, err := t.FindSlotReservation(ctx, userID, sessionID)
	return err == nil, nil
}

func (t *memTx) CountSlotsBetween(_ context.Context, userID, activityID uint64, from, to time.Time) (int, error) {
	n := 0
	for _, r := range t.rows {
		if r.UserID != userID || r.ActivityID != activityID || r.SessionID == nil {
			continue
		}
		s := t.sessions[*r.SessionID]
		if !s.StartAt.Before(from) && s.StartAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) Insert(_ context.Context, r *model.Reservation) error {
	for _, o := range t.rows {
		if o.UserID != r.UserID {
			continue
		}
		if r.SessionID == nil && o.SessionID == nil && o.ActivityID == r.ActivityID {
			return ErrDuplicateReservation
		}
		if r.SessionID != nil && o.SessionID != nil && *o.SessionID == *r.SessionID {
			return ErrDuplicateReservation
		}
	}
	t.nextID++
	r.ID = t.nextID
	r.CreatedAt = time.Now().UTC()
	t.rows[r.ID] = *r
	return nil
}

func (t *memTx) FindReservation(_ context.Context, reservationID, userID uint64) (*model.Reservation, error) {
	r, ok := t.rows[reservationID]
	if !ok || r.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (t *memTx) FindSlotReservation(_ context.Context, userID, sessionID uint64) (*model.Reservation, error) {
	for _, r := range t.rows {
		if r.UserID == userID && r.SessionID != nil && *r.SessionID == sessionID {
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (t *memTx) LockReservation(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
	return t.FindReservation(ctx, reservationID, userID)
}

func (t *memTx) Delete(_ context.Context, reservationID, userID uint64) error {
	r, ok := t.rows[reservationID]
	if !ok || r.UserID != userID {
		return ErrNotFound
	}
	delete(t.rows, reservationID)
	return nil
}

func (t *memTx) TakeSeat(_ context.Context, ref ResourceRef) (bool, error) {
	if ref.Type == ResourceSession {
		s, ok := t.sessions[ref.ID]
		if !ok || s.SeatsLeft <= 0 {
			return false, nil
		}
		s.SeatsLeft--
		t.sessions[ref.ID] = s
		return true, nil
	}
	a, ok := t.activities[ref.ID]
	if !ok || a.SeatsLeft <= 0 {
		return false, nil
	}
	a.SeatsLeft--
	t.activities[ref.ID] = a
	return true, nil
}

func (t *memTx) ReleaseSeat(_ context.Context, ref ResourceRef) (bool, error) {
	if ref.Type == ResourceSession {
		s, ok := t.sessions[ref.ID]
		if !ok || s.SeatsLeft >= s.Capacity {
			return false, nil
		}
		s.SeatsLeft++
		t.sessions[ref.ID] = s
		return true, nil
	}
	a, ok := t.activities[ref.ID]
	if !ok || a.SeatsLeft >= a.Capacity {
		return false, nil
	}
	a.SeatsLeft++
	t.activities[ref.ID] = a
	return true, nil
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
