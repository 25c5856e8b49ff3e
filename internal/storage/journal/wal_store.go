// Package journal persists execution results in a write-ahead log so every
// submitted operation leaves a durable audit record.
package journal

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/substake/substake/internal/domain"
)

const (
	// DefaultDir keeps the journal next to the process working directory.
	DefaultDir = "./wal/journal"

	segmentLimit = 1000
	maxSegments  = 100

	resultKeyPrefix = "execution_result_"
)

// record is the serialized form of one execution result.
type record struct {
	Kind        string `json:"kind"`
	Hotkey      string `json:"hotkey"`
	Netuid      int    `json:"netuid"`
	AmountRao   int64  `json:"amount_rao"`
	Status      string `json:"status"`
	Err         string `json:"error,omitempty"`
	MovedRao    *int64 `json:"moved_rao,omitempty"`
	PartialFill bool   `json:"partial_fill,omitempty"`
	RecordedAt  string `json:"recorded_at"`
}

// WALStore persists execution results in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.Mutex
}

// NewWALStore initializes a WAL-backed execution journal.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "journal_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends one execution result to the journal.
func (s *WALStore) Save(result domain.ExecutionResult) error {
	if s == nil || s.wal == nil {
		return errors.New("journal is not initialized")
	}

	rec := record{
		Kind:       result.Operation.Kind.String(),
		Hotkey:     result.Operation.OriginHotkey,
		Netuid:     result.Operation.OriginNetuid,
		AmountRao:  result.Operation.Amount.Rao,
		Status:     result.Status.String(),
		Err:        result.Err,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if result.AmountMoved != nil {
		moved := result.AmountMoved.Rao
		rec.MovedRao = &moved
		rec.PartialFill = result.PartialFill
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal journal record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	key := fmt.Sprintf("%s%d_%s_%d", resultKeyPrefix, nextIndex, result.Operation.OriginHotkey, result.Operation.OriginNetuid)
	return errors.Wrap(s.wal.Write(nextIndex, key, payload), "write journal record")
}

// Records returns every journaled result in write order.
func (s *WALStore) Records() ([]json.RawMessage, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []json.RawMessage
	for msg := range s.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, resultKeyPrefix) {
			continue
		}
		out = append(out, json.RawMessage(msg.Value))
	}
	return out, nil
}

// Close flushes and closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return nil
	}
	return s.wal.Close()
}
