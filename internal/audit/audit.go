// Package audit keeps a git-versioned trail of applied trust-store
// changes.
//
// Each record is one JSON line appended to audit.log inside the state
// directory, committed immediately. The trail is best-effort history
// for operators; callers must never let an audit failure alter the
// reconciliation outcome.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const logFile = "audit.log"

// Committer identity used for audit commits. The state dir is private
// to keywarden, so no user git config is consulted.
const (
	commitName  = "keywarden"
	commitEmail = "keywarden@localhost"
)

// ErrEmptyRecord rejects records with no key identifier to log.
var ErrEmptyRecord = errors.New("audit record has no key identifier")

// Record describes one applied change.
type Record struct {
	RunID     string    `json:"run_id"`
	Time      time.Time `json:"time"`
	State     string    `json:"state"`
	KeyID     string    `json:"key_id"`
	SourceURL string    `json:"source_url,omitempty"`
}

// Log is an append-only audit trail rooted at a state directory.
type Log struct {
	dir string
}

// NewLog creates an audit log under the given state directory.
func NewLog(dir string) *Log {
	return &Log{dir: dir}
}

// Path returns the location of the audit file.
func (l *Log) Path() string {
	return filepath.Join(l.dir, logFile)
}

// Append writes one record and commits it. The repository is
// initialized on first use.
func (l *Log) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if rec.KeyID == "" {
		return ErrEmptyRecord
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}

	if err := os.MkdirAll(l.dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	repo, err := l.openOrInit()
	if err != nil {
		return err
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	f, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("write audit log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close audit log: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("get worktree: %w", err)
	}
	if _, err := worktree.Add(logFile); err != nil {
		return fmt.Errorf("stage audit log: %w", err)
	}

	msg := fmt.Sprintf("audit: %s %s", rec.State, rec.KeyID)
	_, err = worktree.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  commitName,
			Email: commitEmail,
			When:  rec.Time,
		},
	})
	if err != nil {
		return fmt.Errorf("commit audit log: %w", err)
	}

	return nil
}

// openOrInit opens the state-dir repository, initializing it on first use.
func (l *Log) openOrInit() (*gogit.Repository, error) {
	repo, err := gogit.PlainOpen(l.dir)
	if err == nil {
		return repo, nil
	}
	if err != gogit.ErrRepositoryNotExists {
		return nil, fmt.Errorf("open audit repository: %w", err)
	}

	repo, err = gogit.PlainInit(l.dir, false)
	if err != nil {
		return nil, fmt.Errorf("init audit repository: %w", err)
	}
	return repo, nil
}
