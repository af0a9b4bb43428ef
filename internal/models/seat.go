package models

// Seat cell states as stored and reported by the seat map. A cell that has no
// entry in the map is free, so FREE never needs to be written.
const (
	SeatFree   = 0
	SeatLocked = 1
	SeatSold   = 2
)

// Hall bounds enforced at the service boundary, not by the store.
const (
	MinRow = 1
	MaxRow = 50
	MinCol = 1
	MaxCol = 100
)

// SeatPos addresses a single seat cell inside one showing.
type SeatPos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// FailedSeat reports why one seat in a lock batch could not be taken.
// Reason is either "locked" or "sold_out".
type FailedSeat struct {
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Reason string `json:"reason"`
}

// LockResult is the decoded outcome of the atomic lock script. The batch is
// all-or-nothing: FailedSeats is only populated when no seat was mutated.
type LockResult struct {
	Success     bool         `json:"success"`
	LockedSeats []SeatPos    `json:"locked_seats"`
	FailedSeats []FailedSeat `json:"failed_seats"`
}

// SeatStatusMap is the range-read result: row → col → state.
type SeatStatusMap map[int]map[int]int
