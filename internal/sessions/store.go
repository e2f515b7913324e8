// Package sessions keeps uploaded tables for a limited time. Nothing is
// persisted beyond the session TTL.
package sessions

import (
	"context"
	"errors"
	"fmt"

	"attendx/internal/dataprocessing"
	"attendx/pkg/contracts/domain"
)

// ErrNotFound is returned for unknown or expired upload IDs
var ErrNotFound = errors.New("upload session not found")

// Session is one stored upload: its metadata and the raw cell records,
// header first.
type Session struct {
	Info    domain.UploadInfo `json:"info"`
	Records [][]string        `json:"records"`
}

// Table rebuilds the upload table. Every call returns an independent table.
func (s *Session) Table() (*dataprocessing.Table, error) {
	t, err := dataprocessing.NewTable(s.Records)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", s.Info.ID, err)
	}
	return t, nil
}

// Store holds upload sessions until they expire
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	// Count returns the number of sessions that have not expired
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

func copySession(s *Session) *Session {
	out := &Session{Info: s.Info, Records: make([][]string, len(s.Records))}
	out.Info.Columns = append([]string(nil), s.Info.Columns...)
	for i, row := range s.Records {
		out.Records[i] = append([]string(nil), row...)
	}
	return out
}
