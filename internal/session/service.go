package session

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/afero"

	"github.com/opencode-ai/toolrun/internal/event"
	"github.com/opencode-ai/toolrun/internal/logging"
	"github.com/opencode-ai/toolrun/internal/metrics"
	"github.com/opencode-ai/toolrun/internal/storage"
	"github.com/opencode-ai/toolrun/pkg/types"
)

// storagePrefix is the storage key prefix of session records.
const storagePrefix = "session"

// Service manages session operations.
type Service struct {
	storage *storage.Storage
	metrics *metrics.Recorder
	fs      afero.Fs

	mu       sync.RWMutex
	sessions map[string]*types.Session
	// parents indexes child id -> parent id.
	parents map[string]string
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records the active session gauge.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithFs validates session directories on fs instead of the OS
// filesystem.
func WithFs(fs afero.Fs) Option {
	return func(s *Service) { s.fs = fs }
}

// NewService creates a new session service. store may be nil, in which case
// sessions are kept in memory only.
func NewService(store *storage.Storage, opts ...Option) *Service {
	s := &Service{
		storage:  store,
		fs:       afero.NewOsFs(),
		sessions: make(map[string]*types.Session),
		parents:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create creates a new active session rooted at directory. A relative
// directory is resolved against the process working directory. parentID
// may be empty; otherwise it must name a known session.
func (s *Service) Create(ctx context.Context, directory string, parentID string) (*types.Session, error) {
	dir, err := validateDirectory(s.fs, directory)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	session := &types.Session{
		ID:        generateID(),
		Directory: dir,
		Status:    types.SessionActive,
		Time: types.SessionTime{
			Created: now,
			Updated: now,
		},
	}

	s.mu.Lock()
	if parentID != "" {
		if _, ok := s.sessions[parentID]; !ok {
			s.mu.Unlock()
			return nil, types.NewError(types.KindUnknownParent, "unknown parent session %q", parentID)
		}
		p := parentID
		session.ParentID = &p
		s.parents[session.ID] = parentID
	}
	s.sessions[session.ID] = session
	s.mu.Unlock()

	if err := s.persist(ctx, session); err != nil {
		s.mu.Lock()
		delete(s.sessions, session.ID)
		delete(s.parents, session.ID)
		s.mu.Unlock()
		return nil, err
	}

	s.metrics.SessionOpened()
	logger := logging.Session(session.ID)
	logger.Info().
		Str("parent", parentID).
		Str("directory", dir).
		Msg("session created")

	out := session.Clone()
	event.Publish(event.Event{
		Type: event.SessionCreated,
		Data: event.SessionCreatedData{Info: out.Clone()},
	})
	return out, nil
}

// validateDirectory resolves directory to an absolute, cleaned path naming
// an existing directory.
func validateDirectory(fs afero.Fs, directory string) (string, error) {
	if directory == "" {
		return "", types.NewError(types.KindInvalidWorkingDirectory, "directory is required")
	}
	dir, err := filepath.Abs(directory)
	if err != nil {
		return "", types.WrapError(types.KindInvalidWorkingDirectory, err, "cannot resolve directory").WithPath(directory)
	}
	info, err := fs.Stat(dir)
	if err != nil {
		return "", types.WrapError(types.KindInvalidWorkingDirectory, err, "directory does not exist").WithPath(dir)
	}
	if !info.IsDir() {
		return "", types.NewError(types.KindInvalidWorkingDirectory, "not a directory").WithPath(dir)
	}
	return dir, nil
}

// Get retrieves a session by ID, including closed sessions.
func (s *Service) Get(ctx context.Context, sessionID string) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, notFound(sessionID)
	}
	return session.Clone(), nil
}

// List returns all sessions ordered by creation time.
func (s *Service) List(ctx context.Context) ([]*types.Session, error) {
	s.mu.RLock()
	sessions := make([]*types.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session.Clone())
	}
	s.mu.RUnlock()

	sortSessions(sessions)
	return sessions, nil
}

// Children returns the sessions whose parent is sessionID, ordered by
// creation time.
func (s *Service) Children(ctx context.Context, sessionID string) ([]*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, notFound(sessionID)
	}

	children := []*types.Session{}
	for childID, parentID := range s.parents {
		if parentID == sessionID {
			children = append(children, s.sessions[childID].Clone())
		}
	}
	sortSessions(children)
	return children, nil
}

// Parent returns the parent id of a session, if any.
func (s *Service) Parent(sessionID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parentID, ok := s.parents[sessionID]
	return parentID, ok
}

// Delete marks a session closed. Children are not affected. Deleting a
// closed session is a no-op.
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return notFound(sessionID)
	}
	if !session.Active() {
		s.mu.Unlock()
		return nil
	}
	previous := session.Clone()
	now := time.Now().UnixMilli()
	session.Status = types.SessionClosed
	session.Time.Updated = now
	session.Time.Closed = &now
	snapshot := session.Clone()
	s.mu.Unlock()

	if err := s.persist(ctx, snapshot); err != nil {
		s.mu.Lock()
		s.sessions[sessionID] = previous
		s.mu.Unlock()
		return err
	}

	s.metrics.SessionClosed()
	logger := logging.Session(sessionID)
	logger.Info().Msg("session closed")

	event.Publish(event.Event{
		Type: event.SessionClosed,
		Data: event.SessionClosedData{Info: snapshot},
	})
	return nil
}

// Restore loads persisted session records. Records that fail to decode, or
// whose parent is missing, are skipped; their errors are aggregated into
// the returned error while every valid record is still loaded.
func (s *Service) Restore(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}

	var result *multierror.Error
	var loaded []*types.Session
	err := s.storage.Scan(ctx, []string{storagePrefix}, func(key string, data json.RawMessage) error {
		var session types.Session
		if err := json.Unmarshal(data, &session); err != nil {
			result = multierror.Append(result, fmt.Errorf("session %s: %w", key, err))
			return nil
		}
		if session.ID != key {
			result = multierror.Append(result, fmt.Errorf("session %s: record id %q does not match key", key, session.ID))
			return nil
		}
		loaded = append(loaded, &session)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan sessions: %w", err)
	}

	s.mu.Lock()
	for _, session := range loaded {
		s.sessions[session.ID] = session
	}
	for _, session := range loaded {
		if session.ParentID == nil {
			continue
		}
		if _, ok := s.sessions[*session.ParentID]; !ok {
			result = multierror.Append(result, fmt.Errorf("session %s: unknown parent %q", session.ID, *session.ParentID))
			continue
		}
		s.parents[session.ID] = *session.ParentID
	}
	active := 0
	for _, session := range loaded {
		if session.Active() {
			active++
		}
	}
	s.mu.Unlock()

	for i := 0; i < active; i++ {
		s.metrics.SessionOpened()
	}
	logging.Info().Int("sessions", len(loaded)).Msg("sessions restored")

	return result.ErrorOrNil()
}

func (s *Service) persist(ctx context.Context, session *types.Session) error {
	if s.storage == nil {
		return nil
	}
	if err := s.storage.Put(ctx, []string{storagePrefix, session.ID}, session); err != nil {
		return types.WrapError(types.KindIOFailure, err, "cannot save session")
	}
	return nil
}

func notFound(sessionID string) error {
	return types.NewError(types.KindNotFound, "session %q not found", sessionID)
}

func sortSessions(sessions []*types.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Time.Created != sessions[j].Time.Created {
			return sessions[i].Time.Created < sessions[j].Time.Created
		}
		return sessions[i].ID < sessions[j].ID
	})
}

// generateID generates a new session ID.
func generateID() string {
	return "ses_" + ulid.Make().String()
}
