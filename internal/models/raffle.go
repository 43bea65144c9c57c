package models

import "time"

// State is the lifecycle state of the raffle round.
type State int

const (
	// StateOpen accepts entries; no draw is pending.
	StateOpen State = iota
	// StateCalculating has a randomness request outstanding; entries are rejected.
	StateCalculating
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateCalculating:
		return "CALCULATING"
	default:
		return "UNKNOWN"
	}
}

// EventType identifies an observable raffle event.
type EventType string

const (
	EventEnteredRaffle EventType = "EnteredRaffle"
	EventDrawRequested EventType = "DrawRequested"
	EventWinnerPicked  EventType = "WinnerPicked"
)

// Event is one observable occurrence in the raffle, recorded for
// external indexing and monitoring. It is never consumed internally.
type Event struct {
	Type      EventType `json:"type"`
	Player    string    `json:"player,omitempty"`
	RequestID uint64    `json:"requestId,omitempty"`
	Winner    string    `json:"winner,omitempty"`
	Amount    uint64    `json:"amount,omitempty"`
	Time      time.Time `json:"time"`
}

// UpkeepStatus is the diagnostic snapshot returned by CheckUpkeep.
type UpkeepStatus struct {
	State       State  `json:"state"`
	IsOpen      bool   `json:"isOpen"`
	TimePassed  bool   `json:"timePassed"`
	HasBalance  bool   `json:"hasBalance"`
	HasPlayers  bool   `json:"hasPlayers"`
	Pool        uint64 `json:"pool"`
	PlayerCount int    `json:"playerCount"`
}
