package services

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"raffle/internal/models"
	"raffle/internal/vrf"

	"github.com/google/logger"
)

var (
	// ErrInsufficientPayment is returned when an entry payment is below
	// the entrance fee.
	ErrInsufficientPayment = errors.New("payment below entrance fee")
	// ErrRaffleNotOpen is returned when an entry arrives while a draw
	// is being calculated.
	ErrRaffleNotOpen = errors.New("raffle is not open")
	// ErrIndexOutOfRange is returned for a player lookup past the end
	// of the entrant list.
	ErrIndexOutOfRange = errors.New("player index out of range")
	// ErrNoDrawPending is returned when a fulfillment arrives with no
	// draw in progress.
	ErrNoDrawPending = errors.New("no draw pending")
	// ErrNoRandomWords is returned when a fulfillment carries no words.
	ErrNoRandomWords = errors.New("fulfillment carried no random words")
	// ErrTransferFailed wraps a payout failure during settlement. The
	// round stays unsettled so the fulfillment can be retried.
	ErrTransferFailed = errors.New("payout transfer failed")
)

// UpkeepNotNeededError reports a rejected upkeep trigger along with a
// snapshot of the values the predicate saw.
type UpkeepNotNeededError struct {
	Pool        uint64
	PlayerCount int
	State       models.State
}

func (e *UpkeepNotNeededError) Error() string {
	return fmt.Sprintf("upkeep not needed: pool=%d players=%d state=%s", e.Pool, e.PlayerCount, e.State)
}

// Bank moves value between accounts. Transfers either complete fully
// or leave both accounts unchanged.
type Bank interface {
	Transfer(from, to string, amount uint64) error
}

// EventSink receives the raffle's observable events. Sink errors are
// logged and never fail the operation that produced the event.
type EventSink interface {
	Record(ev models.Event) error
}

// Config holds the construction parameters of a raffle. It is never
// mutated after NewRaffleService.
type Config struct {
	Account          string        // ledger account holding the pool
	EntranceFee      uint64        // minimum payment per entry
	Interval         time.Duration // minimum time between settlements
	KeyHash          string        // randomness gas-lane identifier
	SubscriptionID   uint64        // randomness subscription
	MinConfirmations uint16
	CallbackGasLimit uint32
	NumWords         uint32
}

// RaffleService is the raffle state machine. Entries accumulate into a
// pool while the raffle is open; once the interval has elapsed an
// upkeep trigger requests a random value, and its asynchronous
// fulfillment pays the whole pool to one entrant and resets the round.
type RaffleService struct {
	mu          sync.RWMutex
	cfg         Config
	bank        Bank
	coordinator vrf.Coordinator
	sink        EventSink
	now         func() time.Time

	state            models.State
	players          []string
	pool             uint64
	lastDrawTime     time.Time
	pendingRequestID uint64
}

// NewRaffleService creates an open raffle with an empty round. The
// interval clock starts at construction time.
func NewRaffleService(cfg Config, bank Bank, coordinator vrf.Coordinator, sink EventSink) *RaffleService {
	s := &RaffleService{
		cfg:         cfg,
		bank:        bank,
		coordinator: coordinator,
		sink:        sink,
		now:         time.Now,
		state:       models.StateOpen,
	}
	s.lastDrawTime = s.now()
	return s
}

// Enter adds one entry slot for the player and moves the payment into
// the pool. The same player may enter repeatedly; every accepted entry
// is a separate slot and raises their odds accordingly.
func (s *RaffleService) Enter(player string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount < s.cfg.EntranceFee {
		return ErrInsufficientPayment
	}
	if s.state != models.StateOpen {
		return ErrRaffleNotOpen
	}
	if err := s.bank.Transfer(player, s.cfg.Account, amount); err != nil {
		return fmt.Errorf("collect entry payment: %w", err)
	}

	s.players = append(s.players, player)
	s.pool += amount

	s.emit(models.Event{
		Type:   models.EventEnteredRaffle,
		Player: player,
		Amount: amount,
		Time:   s.now(),
	})
	return nil
}

// Player returns the entrant occupying the given slot.
func (s *RaffleService) Player(index int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.players) {
		return "", ErrIndexOutOfRange
	}
	return s.players[index], nil
}

// CheckUpkeep reports whether a draw may be triggered, along with the
// snapshot the decision was based on. It never mutates state and is
// safe to poll at any time.
func (s *RaffleService) CheckUpkeep() (bool, models.UpkeepStatus) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkUpkeepLocked()
}

// checkUpkeepLocked is the upkeep predicate. Callers must hold at
// least a read lock.
func (s *RaffleService) checkUpkeepLocked() (bool, models.UpkeepStatus) {
	status := models.UpkeepStatus{
		State:       s.state,
		IsOpen:      s.state == models.StateOpen,
		TimePassed:  s.now().Sub(s.lastDrawTime) >= s.cfg.Interval,
		HasBalance:  s.pool > 0,
		HasPlayers:  len(s.players) > 0,
		Pool:        s.pool,
		PlayerCount: len(s.players),
	}
	needed := status.IsOpen && status.TimePassed && status.HasBalance && status.HasPlayers
	return needed, status
}

// PerformUpkeep triggers a draw: it re-checks the upkeep predicate,
// moves the raffle into CALCULATING and requests random words from the
// coordinator. Anyone may call it; ineligible calls fail cleanly with
// the predicate's snapshot. The interval clock is not reset here, only
// settlement resets it.
func (s *RaffleService) PerformUpkeep(_ []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needed, status := s.checkUpkeepLocked()
	if !needed {
		return 0, &UpkeepNotNeededError{
			Pool:        status.Pool,
			PlayerCount: status.PlayerCount,
			State:       status.State,
		}
	}

	s.state = models.StateCalculating
	requestID, err := s.coordinator.RequestRandomWords(
		s.cfg.KeyHash,
		s.cfg.SubscriptionID,
		s.cfg.MinConfirmations,
		s.cfg.CallbackGasLimit,
		s.cfg.NumWords,
	)
	if err != nil {
		s.state = models.StateOpen
		return 0, fmt.Errorf("request random words: %w", err)
	}
	s.pendingRequestID = requestID

	s.emit(models.Event{
		Type:      models.EventDrawRequested,
		RequestID: requestID,
		Time:      s.now(),
	})
	return requestID, nil
}

// FulfillRandomWords settles the round: the first word picks a winner
// slot, the whole pool is paid out and the raffle reopens. The
// coordinator guarantees the request id belongs to a request it issued
// for this raffle and delivers it at most once. Settlement is
// all-or-nothing: a failed payout leaves the round exactly as it was
// so the delivery can be retried.
func (s *RaffleService) FulfillRandomWords(requestID uint64, words []*big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != models.StateCalculating || len(s.players) == 0 {
		return ErrNoDrawPending
	}
	if len(words) == 0 {
		return ErrNoRandomWords
	}

	winnerIndex := new(big.Int).Mod(words[0], big.NewInt(int64(len(s.players)))).Int64()
	winner := s.players[winnerIndex]
	prize := s.pool

	// Payout first; state is committed only after the transfer succeeds.
	if err := s.bank.Transfer(s.cfg.Account, winner, prize); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	s.players = nil
	s.pool = 0
	s.state = models.StateOpen
	s.pendingRequestID = 0
	s.lastDrawTime = s.now()

	logger.Infof("Raffle settled: request=%d winner=%s prize=%d", requestID, winner, prize)
	s.emit(models.Event{
		Type:      models.EventWinnerPicked,
		Winner:    winner,
		RequestID: requestID,
		Amount:    prize,
		Time:      s.lastDrawTime,
	})
	return nil
}

// State returns the current lifecycle state.
func (s *RaffleService) State() models.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Pool returns the value collected in the current round.
func (s *RaffleService) Pool() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool
}

// PlayerCount returns the number of entry slots in the current round.
func (s *RaffleService) PlayerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}

// Players returns a copy of the current entrant slots in entry order.
func (s *RaffleService) Players() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	players := make([]string, len(s.players))
	copy(players, s.players)
	return players
}

// LastDrawTime returns the time of the most recent settlement, or of
// construction when no round has settled yet.
func (s *RaffleService) LastDrawTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastDrawTime
}

// PendingRequestID returns the outstanding randomness request id, or
// zero when no draw is pending.
func (s *RaffleService) PendingRequestID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingRequestID
}

// EntranceFee returns the configured minimum payment per entry.
func (s *RaffleService) EntranceFee() uint64 {
	return s.cfg.EntranceFee
}

// Account returns the ledger account holding the pool.
func (s *RaffleService) Account() string {
	return s.cfg.Account
}

func (s *RaffleService) emit(ev models.Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Record(ev); err != nil {
		logger.Errorf("Failed to record %s event: %v", ev.Type, err)
	}
}
