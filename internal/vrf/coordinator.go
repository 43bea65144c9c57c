package vrf

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/logger"
)

var (
	// ErrNonexistentRequest is returned when a fulfillment targets a
	// request id the coordinator never issued or has already settled.
	ErrNonexistentRequest = errors.New("nonexistent request")
	// ErrNoConsumer is returned when randomness is requested before a
	// consumer callback has been registered.
	ErrNoConsumer = errors.New("no consumer registered")
	// ErrUnknownSubscription is returned for requests against a
	// subscription id the coordinator does not know.
	ErrUnknownSubscription = errors.New("unknown subscription")
)

// Coordinator issues randomness requests. The real service fulfills
// them asynchronously by calling back the consumer; how and when is
// the coordinator's business.
type Coordinator interface {
	RequestRandomWords(keyHash string, subID uint64, minConfirmations uint16, callbackGasLimit uint32, numWords uint32) (uint64, error)
}

// Consumer receives randomness fulfillments. The coordinator only ever
// delivers words for requests it issued, exactly once per request.
type Consumer interface {
	FulfillRandomWords(requestID uint64, words []*big.Int) error
}

type pendingRequest struct {
	numWords uint32
}

// MockCoordinator is a local stand-in for the external randomness
// service. It hands out sequential request ids and delivers words to
// the registered consumer, either on demand (Fulfill) or automatically
// after a fixed delay when one is configured.
type MockCoordinator struct {
	mu            sync.Mutex
	nextRequestID uint64
	pending       map[uint64]pendingRequest
	subscriptions map[uint64]uint64 // subID -> funded balance, in arbitrary link units
	consumer      Consumer
	fulfillDelay  time.Duration
}

// NewMockCoordinator creates a coordinator with no subscriptions and
// no consumer. A fulfillDelay of zero disables automatic fulfillment;
// requests then wait for an explicit Fulfill call.
func NewMockCoordinator(fulfillDelay time.Duration) *MockCoordinator {
	return &MockCoordinator{
		nextRequestID: 1,
		pending:       make(map[uint64]pendingRequest),
		subscriptions: make(map[uint64]uint64),
		fulfillDelay:  fulfillDelay,
	}
}

// CreateSubscription registers a subscription id so requests against
// it are accepted.
func (m *MockCoordinator) CreateSubscription(subID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.subscriptions[subID]; !exists {
		m.subscriptions[subID] = 0
	}
}

// FundSubscription credits a subscription's balance.
func (m *MockCoordinator) FundSubscription(subID uint64, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[subID] += amount
}

// RegisterConsumer sets the callback target for all fulfillments.
func (m *MockCoordinator) RegisterConsumer(c Consumer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumer = c
}

// RequestRandomWords records a pending request and returns its id.
// With a fulfillment delay configured, delivery is scheduled in the
// background.
func (m *MockCoordinator) RequestRandomWords(keyHash string, subID uint64, minConfirmations uint16, callbackGasLimit uint32, numWords uint32) (uint64, error) {
	m.mu.Lock()
	if m.consumer == nil {
		m.mu.Unlock()
		return 0, ErrNoConsumer
	}
	if _, exists := m.subscriptions[subID]; !exists {
		m.mu.Unlock()
		return 0, fmt.Errorf("%w: %d", ErrUnknownSubscription, subID)
	}
	requestID := m.nextRequestID
	m.nextRequestID++
	m.pending[requestID] = pendingRequest{numWords: numWords}
	delay := m.fulfillDelay
	m.mu.Unlock()

	logger.Infof("Randomness requested: id=%d keyHash=%s sub=%d words=%d", requestID, keyHash, subID, numWords)

	if delay > 0 {
		go func() {
			time.Sleep(delay)
			if err := m.Fulfill(requestID); err != nil {
				logger.Errorf("Auto-fulfill of request %d failed: %v", requestID, err)
			}
		}()
	}
	return requestID, nil
}

// Fulfill delivers freshly generated random words for a pending
// request to the consumer.
func (m *MockCoordinator) Fulfill(requestID uint64) error {
	return m.FulfillWithWords(requestID, nil)
}

// FulfillWithWords delivers the given words for a pending request. A
// nil words slice is filled with random 256-bit values. Each request
// can be fulfilled at most once; the pending entry is consumed only
// when the consumer accepts the delivery, so a failed callback can be
// retried.
func (m *MockCoordinator) FulfillWithWords(requestID uint64, words []*big.Int) error {
	m.mu.Lock()
	req, exists := m.pending[requestID]
	consumer := m.consumer
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %d", ErrNonexistentRequest, requestID)
	}
	if consumer == nil {
		return ErrNoConsumer
	}

	if words == nil {
		words = make([]*big.Int, req.numWords)
		limit := new(big.Int).Lsh(big.NewInt(1), 256)
		for i := range words {
			w, err := rand.Int(rand.Reader, limit)
			if err != nil {
				return fmt.Errorf("generate random word: %w", err)
			}
			words[i] = w
		}
	}

	if err := consumer.FulfillRandomWords(requestID, words); err != nil {
		return fmt.Errorf("consumer rejected request %d: %w", requestID, err)
	}

	m.mu.Lock()
	delete(m.pending, requestID)
	m.mu.Unlock()

	logger.Infof("Randomness delivered: id=%d", requestID)
	return nil
}

// PendingRequests returns the ids of requests awaiting fulfillment.
func (m *MockCoordinator) PendingRequests() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint64, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	return ids
}
