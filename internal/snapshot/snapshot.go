package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Entry is the last observation for one product.
type Entry struct {
	Rate         float64   `json:"rate"`
	FeesOrPoints *float64  `json:"fees_or_points,omitempty"`
	APR          *float64  `json:"apr,omitempty"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Snapshot maps product id to its last observation. A missing id means the
// product has never been observed.
type Snapshot map[string]Entry

// Store persists a whole Snapshot. Save replaces the previous document.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
}

// LoadError means a snapshot exists but could not be read or parsed.
type LoadError struct {
	Where string
	Err   error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load snapshot %s: %v", e.Where, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// PersistError means the new snapshot could not be written.
type PersistError struct {
	Where string
	Err   error
}

func (e *PersistError) Error() string { return fmt.Sprintf("persist snapshot %s: %v", e.Where, e.Err) }
func (e *PersistError) Unwrap() error { return e.Err }

// Encode renders s as indented JSON. Keys come out sorted, so equal
// snapshots encode to equal bytes.
func Encode(s Snapshot) ([]byte, error) {
	if s == nil {
		s = Snapshot{}
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Decode parses a document produced by Encode. Empty input is an empty
// snapshot.
func Decode(b []byte) (Snapshot, error) {
	s := Snapshot{}
	if len(bytes.TrimSpace(b)) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	if s == nil {
		s = Snapshot{}
	}
	return s, nil
}
