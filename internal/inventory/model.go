// Package inventory owns per-(room, night) stock: the guarded availability
// decrement, reservation holds with TTL, and the reaper that returns expired
// holds to stock.
package inventory

import "time"

// Availability is one (room, night) stock row. Version backs the optimistic
// reservation strategy and is bumped on every versioned write.
type Availability struct {
	RoomID         int64     `json:"room_id"`
	Date           time.Time `json:"date"`
	AvailableCount int       `json:"available_count"`
	PricePerNight  int64     `json:"price_per_night_cents"`
	Version        int64     `json:"-"`
}

// Hold pins decremented stock for one (booking, room, night) until the saga
// confirms, releases, or the TTL expires.
type Hold struct {
	ID        int64
	BookingID int64
	RoomID    int64
	Date      time.Time
	Quantity  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

type ReserveCommand struct {
	RoomID         int64
	CheckIn        time.Time
	CheckOut       time.Time
	Quantity       int
	IdempotencyKey string
}

type ReserveResult struct {
	ReservationID   string `json:"reservation_id"`
	TotalPriceCents int64  `json:"total_price_cents"`
	Status          string `json:"status"`
}

const StatusReserved = "RESERVED"

type ReleaseCommand struct {
	RoomID    int64
	CheckIn   time.Time
	CheckOut  time.Time
	Quantity  int
	BookingID *int64
}

// SeedCommand creates or replaces availability for a room over a date range.
type SeedCommand struct {
	RoomID         int64
	From           time.Time
	To             time.Time
	AvailableCount int
	PricePerNight  int64
}
