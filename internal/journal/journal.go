package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"raffle/internal/models"

	bolt "go.etcd.io/bbolt"
)

var eventsBucket = []byte("events")

// Journal is an append-only record of raffle events, kept so external
// monitoring can replay what happened without the raffle itself
// holding history.
type Journal struct {
	db *bolt.DB
}

// Open opens or creates the journal file.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(eventsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create events bucket: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one event under the next sequence number. It
// implements the raffle's EventSink.
func (j *Journal) Record(ev models.Event) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		value, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		return b.Put(key, value)
	})
}

// Recent returns up to n most recent events, oldest first.
func (j *Journal) Recent(n int) ([]models.Event, error) {
	var events []models.Event
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(eventsBucket).Cursor()
		for k, v := c.Last(); k != nil && len(events) < n; k, v = c.Prev() {
			var ev models.Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Cursor walked backwards; restore chronological order.
	for l, r := 0, len(events)-1; l < r; l, r = l+1, r-1 {
		events[l], events[r] = events[r], events[l]
	}
	return events, nil
}

// Len returns the total number of recorded events.
func (j *Journal) Len() (uint64, error) {
	var n uint64
	err := j.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(eventsBucket).Sequence()
		return nil
	})
	return n, err
}
