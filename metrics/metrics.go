// Package metrics records per-epoch training telemetry.
package metrics

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Sink receives one record per epoch, keyed by the block at which the
// epoch ended.
type Sink interface {
	Record(block int64, fields map[string]any) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Record(int64, map[string]any) error { return nil }
func (Nop) Close() error                       { return nil }

// FileSink appends records to a JSONL file, one object per line.
type FileSink struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
	now func() time.Time
}

func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileSink{f: f, enc: json.NewEncoder(f), now: time.Now}, nil
}

func (s *FileSink) Record(block int64, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		record[k] = v
	}
	record["block"] = block
	record["timestamp"] = s.now().UTC().Format(time.RFC3339)
	return s.enc.Encode(record)
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// ForPath returns a file sink when path is set, a Nop otherwise.
func ForPath(path string) (Sink, error) {
	if path == "" {
		return Nop{}, nil
	}
	return NewFileSink(path)
}
