package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

const snapshotName = "chronicles.json"

// NewFileStore creates an in-memory store that writes a JSON snapshot of its state to dir
// after each change and restores it on start.
func NewFileStore(dir string) (Store, error) {
	log.Trace("--> NewFileStore")
	defer log.Trace("<-- NewFileStore")

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	filename := filepath.Join(dir, snapshotName)

	snap := &snapshot{filename: filename}
	b, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.WithField("file", filename).Info("no snapshot found, starting empty")
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		snap.saved = b
	}
	data, err := snap.restore()
	if err != nil {
		return nil, fmt.Errorf("unable to decode snapshot %s: %w", filename, err)
	}

	return &memoryStore{data: data, snapshot: snap}, nil
}

// snapshot keeps the ledger on disk. saved holds the last contents written, which is the
// state the ledger returns to when a write fails.
type snapshot struct {
	filename string
	saved    []byte
}

// save writes the snapshot through a temporary file so a crash never leaves a partial file.
func (s *snapshot) save(l *ledger) error {
	b, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("unable to marshal the snapshot: %w", err)
	}
	tmp := s.filename + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.filename); err != nil {
		return err
	}
	s.saved = b
	return nil
}

// restore decodes the last saved contents, or returns an empty ledger if nothing was saved.
func (s *snapshot) restore() (*ledger, error) {
	l := newLedger()
	if s.saved == nil {
		return l, nil
	}
	if err := json.Unmarshal(s.saved, l); err != nil {
		return nil, err
	}
	l.init()
	return l, nil
}
