package mirror

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

const bucketOutbox = "outbox"

// Batch is a group of rows that could not be appended to the sink.
type Batch struct {
	Seq        uint64     `json:"-"`
	ID         string     `json:"id"`
	Rows       [][]string `json:"rows"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
}

// Outbox persists failed appends in arrival order until they are drained.
type Outbox struct {
	db *bolt.DB
}

// OpenOutbox opens (or creates) the outbox database at path.
func OpenOutbox(path string) (*Outbox, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open outbox: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketOutbox))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucketOutbox, err)
	}
	return &Outbox{db: db}, nil
}

// Close closes the database.
func (o *Outbox) Close() error {
	return o.db.Close()
}

// Enqueue stores rows after every batch already pending.
func (o *Outbox) Enqueue(rows [][]string) (Batch, error) {
	b := Batch{ID: uuid.NewString(), Rows: rows, EnqueuedAt: time.Now().UTC()}
	err := o.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(bucketOutbox))
		seq, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		b.Seq = seq
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to marshal batch: %w", err)
		}
		return bkt.Put(itob(seq), data)
	})
	return b, err
}

// Pending returns the queued batches oldest first.
func (o *Outbox) Pending() ([]Batch, error) {
	var out []Batch
	err := o.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketOutbox)).ForEach(func(k, v []byte) error {
			var b Batch
			if err := json.Unmarshal(v, &b); err != nil {
				return fmt.Errorf("failed to unmarshal batch: %w", err)
			}
			b.Seq = binary.BigEndian.Uint64(k)
			out = append(out, b)
			return nil
		})
	})
	return out, err
}

// Len returns the number of queued batches.
func (o *Outbox) Len() (int, error) {
	var n int
	err := o.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(bucketOutbox)).Stats().KeyN
		return nil
	})
	return n, err
}

// Ack removes a delivered batch.
func (o *Outbox) Ack(seq uint64) error {
	return o.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketOutbox)).Delete(itob(seq))
	})
}

// itob encodes a sequence as a big-endian key so keys sort in order.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
