package vrf

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConsumer struct {
	requestIDs []uint64
	words      [][]*big.Int
	err        error
}

func (r *recordingConsumer) FulfillRandomWords(requestID uint64, words []*big.Int) error {
	if r.err != nil {
		return r.err
	}
	r.requestIDs = append(r.requestIDs, requestID)
	r.words = append(r.words, words)
	return nil
}

func newTestCoordinator(consumer Consumer) *MockCoordinator {
	m := NewMockCoordinator(0)
	m.CreateSubscription(1)
	if consumer != nil {
		m.RegisterConsumer(consumer)
	}
	return m
}

func TestRequestRandomWords(t *testing.T) {
	t.Run("issues sequential ids starting at one", func(t *testing.T) {
		m := newTestCoordinator(&recordingConsumer{})

		first, err := m.RequestRandomWords("lane", 1, 3, 500_000, 1)
		require.NoError(t, err)
		second, err := m.RequestRandomWords("lane", 1, 3, 500_000, 1)
		require.NoError(t, err)

		assert.Equal(t, uint64(1), first)
		assert.Equal(t, uint64(2), second)
		assert.Len(t, m.PendingRequests(), 2)
	})

	t.Run("rejects request without consumer", func(t *testing.T) {
		m := NewMockCoordinator(0)
		m.CreateSubscription(1)

		_, err := m.RequestRandomWords("lane", 1, 3, 500_000, 1)

		assert.ErrorIs(t, err, ErrNoConsumer)
	})

	t.Run("rejects unknown subscription", func(t *testing.T) {
		m := newTestCoordinator(&recordingConsumer{})

		_, err := m.RequestRandomWords("lane", 99, 3, 500_000, 1)

		assert.ErrorIs(t, err, ErrUnknownSubscription)
	})
}

func TestFulfill(t *testing.T) {
	t.Run("delivers requested number of words once", func(t *testing.T) {
		consumer := &recordingConsumer{}
		m := newTestCoordinator(consumer)
		requestID, err := m.RequestRandomWords("lane", 1, 3, 500_000, 3)
		require.NoError(t, err)

		require.NoError(t, m.Fulfill(requestID))

		require.Len(t, consumer.words, 1)
		assert.Len(t, consumer.words[0], 3)
		assert.Equal(t, requestID, consumer.requestIDs[0])
		assert.Empty(t, m.PendingRequests())

		err = m.Fulfill(requestID)
		assert.ErrorIs(t, err, ErrNonexistentRequest)
	})

	t.Run("rejects unknown request id", func(t *testing.T) {
		m := newTestCoordinator(&recordingConsumer{})

		err := m.Fulfill(42)

		assert.ErrorIs(t, err, ErrNonexistentRequest)
	})

	t.Run("delivers caller-supplied words verbatim", func(t *testing.T) {
		consumer := &recordingConsumer{}
		m := newTestCoordinator(consumer)
		requestID, err := m.RequestRandomWords("lane", 1, 3, 500_000, 1)
		require.NoError(t, err)

		words := []*big.Int{big.NewInt(999)}
		require.NoError(t, m.FulfillWithWords(requestID, words))

		assert.Equal(t, words, consumer.words[0])
	})

	t.Run("keeps request pending when consumer rejects delivery", func(t *testing.T) {
		consumer := &recordingConsumer{err: errors.New("not ready")}
		m := newTestCoordinator(consumer)
		requestID, err := m.RequestRandomWords("lane", 1, 3, 500_000, 1)
		require.NoError(t, err)

		err = m.FulfillWithWords(requestID, []*big.Int{big.NewInt(1)})

		require.Error(t, err)
		assert.Len(t, m.PendingRequests(), 1)

		// A retry after the consumer recovers consumes the request.
		consumer.err = nil
		require.NoError(t, m.FulfillWithWords(requestID, []*big.Int{big.NewInt(1)}))
		assert.Empty(t, m.PendingRequests())
	})
}
