// Package persist implements the durability log of base table writes.
package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/l7mp/dflow/pkg/dbsp"
)

// Mode selects what happens to the log.
type Mode string

const (
	// ModeMemory keeps no log at all.
	ModeMemory Mode = "memory"
	// ModeDeleteOnExit writes a log that is removed when the engine is closed.
	ModeDeleteOnExit Mode = "delete-on-exit"
	// ModePermanent keeps the log across restarts, it is replayed on startup.
	ModePermanent Mode = "permanent"
)

// ParseMode parses the textual form of a mode, the empty string selects ModeMemory.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeMemory:
		return ModeMemory, nil
	case ModeDeleteOnExit, ModePermanent:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

var (
	ErrInvalidMode = errors.New("invalid persistence mode")
	ErrClosed      = errors.New("log closed")
)

// Kind is the kind of a logged write.
type Kind string

const (
	KindInsert Kind = "insert"
	KindDelete Kind = "delete"
	KindUpdate Kind = "update"
)

// Record is a single base table write.
type Record struct {
	Seq   uint64   `json:"seq"`
	Table string   `json:"table"`
	Kind  Kind     `json:"kind"`
	Key   dbsp.Row `json:"key,omitempty"`
	Row   dbsp.Row `json:"row,omitempty"`
}

// Log records base table writes durably.
type Log interface {
	// Append records a write. The write must not be applied if Append fails.
	Append(ctx context.Context, rec Record) error
	// Replay calls fn on every record in sequence order.
	Replay(ctx context.Context, fn func(Record) error) error
	// Close flushes and closes the log.
	Close() error
}

// Params configures the durability log.
type Params struct {
	Mode Mode
	// Path is the database file of permanent logs, or the directory of delete-on-exit logs
	// (the system temp dir if empty).
	Path string
	// FlushInterval is the period of WAL checkpoints, zero disables periodic checkpoints.
	FlushInterval time.Duration
	Logger        logr.Logger
}

// Open creates the log selected by the params.
func Open(params Params) (Log, error) {
	logger := params.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}

	switch params.Mode {
	case "", ModeMemory:
		return NewNopLog(), nil
	case ModeDeleteOnExit:
		dir := params.Path
		if dir == "" {
			dir = os.TempDir()
		}
		path := filepath.Join(dir, fmt.Sprintf("dflow-%s.db", uuid.NewString()))
		return OpenSQLiteLog(path, SQLiteOptions{
			FlushInterval: params.FlushInterval,
			DeleteOnClose: true,
			Logger:        logger,
		})
	case ModePermanent:
		if params.Path == "" {
			return nil, fmt.Errorf("%w: permanent log needs a path", ErrInvalidMode)
		}
		return OpenSQLiteLog(params.Path, SQLiteOptions{
			FlushInterval: params.FlushInterval,
			Logger:        logger,
		})
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidMode, params.Mode)
}

// NopLog is the log of in-memory engines.
type NopLog struct{}

func NewNopLog() *NopLog { return &NopLog{} }

func (NopLog) Append(context.Context, Record) error             { return nil }
func (NopLog) Replay(context.Context, func(Record) error) error { return nil }
func (NopLog) Close() error                                     { return nil }
