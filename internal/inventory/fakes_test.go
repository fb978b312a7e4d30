//go:build unit

package inventory_test

import (
	"context"
	"sync"
	"time"

	"openbooking/internal/idempotency"
	"openbooking/internal/inventory"
	"openbooking/internal/pkg/dates"
	"openbooking/internal/pkg/errs"
	"openbooking/internal/pkg/fault"
	"openbooking/internal/platform/db"
	"openbooking/internal/platform/lock"
)

type nightKey struct {
	roomID int64
	date   string
}

func keyFor(roomID int64, date time.Time) nightKey {
	return nightKey{roomID: roomID, date: dates.Format(date)}
}

// fakeStore is the shared in-memory state behind the fake repository, the
// fake idempotency store and the fake transaction runner. The runner
// snapshots it so a failed transaction observably rolls back.
type fakeStore struct {
	mu         sync.Mutex
	nights     map[nightKey]inventory.Availability
	holds      map[int64]inventory.Hold
	nextHoldID int64
	memos      map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nights: make(map[nightKey]inventory.Availability),
		holds:  make(map[int64]inventory.Hold),
		memos:  make(map[string][]byte),
	}
}

func (s *fakeStore) seed(roomID int64, date time.Time, count int, price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nights[keyFor(roomID, date)] = inventory.Availability{
		RoomID:         roomID,
		Date:           dates.Truncate(date),
		AvailableCount: count,
		PricePerNight:  price,
	}
}

func (s *fakeStore) availableCount(roomID int64, date time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nights[keyFor(roomID, date)].AvailableCount
}

func (s *fakeStore) holdsFor(bookingID int64) []inventory.Hold {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []inventory.Hold
	for _, h := range s.holds {
		if h.BookingID == bookingID {
			out = append(out, h)
		}
	}
	return out
}

// totalStock sums availability plus active holds for one night; conserved
// across reserve, release and expiry.
func (s *fakeStore) totalStock(roomID int64, date time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.nights[keyFor(roomID, date)].AvailableCount
	for _, h := range s.holds {
		if h.RoomID == roomID && dates.Format(h.Date) == dates.Format(date) {
			total += h.Quantity
		}
	}
	return total
}

type snapshot struct {
	nights     map[nightKey]inventory.Availability
	holds      map[int64]inventory.Hold
	nextHoldID int64
	memos      map[string][]byte
}

func (s *fakeStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		nights:     make(map[nightKey]inventory.Availability, len(s.nights)),
		holds:      make(map[int64]inventory.Hold, len(s.holds)),
		nextHoldID: s.nextHoldID,
		memos:      make(map[string][]byte, len(s.memos)),
	}
	for k, v := range s.nights {
		snap.nights[k] = v
	}
	for k, v := range s.holds {
		snap.holds[k] = v
	}
	for k, v := range s.memos {
		snap.memos[k] = v
	}
	return snap
}

func (s *fakeStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nights = snap.nights
	s.holds = snap.holds
	s.nextHoldID = snap.nextHoldID
	s.memos = snap.memos
}

// fakeRunner serializes transactions and rolls the store back when the
// transaction function fails.
type fakeRunner struct {
	store *fakeStore
	txMu  sync.Mutex
}

func (r *fakeRunner) InTx(ctx context.Context, fn func(ctx context.Context, q db.DBTX) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	snap := r.store.snapshot()
	if err := fn(ctx, nil); err != nil {
		r.store.restore(snap)
		return err
	}
	return nil
}

type fakeRepo struct {
	store *fakeStore
}

func (r *fakeRepo) DecrementIfAvailable(_ context.Context, _ db.DBTX, roomID int64, date time.Time, qty int) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	k := keyFor(roomID, date)
	a, ok := r.store.nights[k]
	if !ok || a.AvailableCount < qty {
		return false, nil
	}
	a.AvailableCount -= qty
	a.Version++
	r.store.nights[k] = a
	return true, nil
}

func (r *fakeRepo) NightForUpdate(ctx context.Context, q db.DBTX, roomID int64, date time.Time) (inventory.Availability, error) {
	return r.Night(ctx, q, roomID, date)
}

func (r *fakeRepo) Night(_ context.Context, _ db.DBTX, roomID int64, date time.Time) (inventory.Availability, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.nights[keyFor(roomID, date)]
	if !ok {
		return inventory.Availability{}, fault.ErrNotFound
	}
	return a, nil
}

func (r *fakeRepo) Decrement(_ context.Context, _ db.DBTX, roomID int64, date time.Time, qty int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	k := keyFor(roomID, date)
	a := r.store.nights[k]
	a.AvailableCount -= qty
	a.Version++
	r.store.nights[k] = a
	return nil
}

func (r *fakeRepo) DecrementVersioned(_ context.Context, _ db.DBTX, roomID int64, date time.Time, qty int, version int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	k := keyFor(roomID, date)
	a, ok := r.store.nights[k]
	if !ok || a.Version != version || a.AvailableCount < qty {
		return false, nil
	}
	a.AvailableCount -= qty
	a.Version++
	r.store.nights[k] = a
	return true, nil
}

func (r *fakeRepo) Credit(_ context.Context, _ db.DBTX, roomID int64, date time.Time, qty int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	k := keyFor(roomID, date)
	a := r.store.nights[k]
	a.AvailableCount += qty
	a.Version++
	r.store.nights[k] = a
	return nil
}

func (r *fakeRepo) InsertHold(_ context.Context, _ db.DBTX, h inventory.Hold) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.nextHoldID++
	h.ID = r.store.nextHoldID
	r.store.holds[h.ID] = h
	return nil
}

func (r *fakeRepo) HoldsByBooking(_ context.Context, _ db.DBTX, bookingID int64) ([]inventory.Hold, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []inventory.Hold
	for _, h := range r.store.holds {
		if h.BookingID == bookingID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *fakeRepo) DeleteHoldsByBooking(_ context.Context, _ db.DBTX, bookingID int64) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var deleted int64
	for id, h := range r.store.holds {
		if h.BookingID == bookingID {
			delete(r.store.holds, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeRepo) ExpiredHolds(_ context.Context, _ db.DBTX, now time.Time, limit int) ([]inventory.Hold, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []inventory.Hold
	for _, h := range r.store.holds {
		if h.ExpiresAt.Before(now) {
			out = append(out, h)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeRepo) DeleteHold(_ context.Context, _ db.DBTX, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.holds, id)
	return nil
}

func (r *fakeRepo) UpsertNight(_ context.Context, _ db.DBTX, a inventory.Availability) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a.Date = dates.Truncate(a.Date)
	r.store.nights[keyFor(a.RoomID, a.Date)] = a
	return nil
}

func (r *fakeRepo) NightsInRange(_ context.Context, _ db.DBTX, roomID int64, from, to time.Time) ([]inventory.Availability, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []inventory.Availability
	for _, night := range dates.Nights(from, to) {
		if a, ok := r.store.nights[keyFor(roomID, night)]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeIdem keeps memos in the shared store so Save participates in the
// runner's rollback. failLookup simulates a durable-store outage;
// missNextLookups makes the next n lookups miss, emulating a reader that
// raced ahead of the winner's commit.
type fakeIdem struct {
	store           *fakeStore
	failLookup      bool
	missNextLookups int
	warmed          map[string][]byte
}

func newFakeIdem(store *fakeStore) *fakeIdem {
	return &fakeIdem{store: store, warmed: make(map[string][]byte)}
}

func (f *fakeIdem) Lookup(_ context.Context, _ db.DBTX, key string) ([]byte, bool, error) {
	if f.failLookup {
		return nil, false, fault.Unavailable(errs.New("store down"), "idempotency store read failed")
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if f.missNextLookups > 0 {
		f.missNextLookups--
		return nil, false, nil
	}
	payload, ok := f.store.memos[key]
	return payload, ok, nil
}

func (f *fakeIdem) Save(_ context.Context, _ db.DBTX, key string, payload []byte, _ time.Time) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if _, exists := f.store.memos[key]; exists {
		return errs.Mark(errs.Newf("key %s raced with another request", key), idempotency.ErrDuplicateKey)
	}
	f.store.memos[key] = payload
	return nil
}

func (f *fakeIdem) Warm(_ context.Context, key string, payload []byte) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.warmed[key] = payload
}

// fakeLocks hands out uncontended locks and counts acquisitions.
type fakeLocks struct {
	mu       sync.Mutex
	acquired []string
	denyAll  bool
}

func (f *fakeLocks) Acquire(_ context.Context, key string, _, _ time.Duration) (lock.Lock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denyAll {
		return nil, lock.ErrNotAcquired
	}
	f.acquired = append(f.acquired, key)
	return nopLock{}, nil
}

type nopLock struct{}

func (nopLock) Release(context.Context) error { return nil }
