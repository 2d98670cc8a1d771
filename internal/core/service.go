package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"envirotrack/internal/blob"
	"envirotrack/pkg/domain"
)

// ErrArchiveDisabled is returned by archive operations on a service built
// without an archive.
var ErrArchiveDisabled = errors.New("export archive not configured")

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for stamps and rule evaluation.
func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(g IDGenerator) Option { return func(s *Service) { s.ids = g } }

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRulesEngine replaces the default rule set.
func WithRulesEngine(e *RulesEngine) Option { return func(s *Service) { s.engine = e } }

// WithMetrics records operation outcomes.
func WithMetrics(m MetricsRecorder) Option { return func(s *Service) { s.metrics = m } }

// WithArchive enables the blob export archive.
func WithArchive(a *Archive) Option { return func(s *Service) { s.archive = a } }

// WithSchemas overrides the module schemas.
func WithSchemas(set domain.SchemaSet) Option { return func(s *Service) { s.schemas = set } }

// Service applies repository transitions to the stored root state and commits
// each result through the Store. Calls are serialized.
type Service struct {
	mu      sync.Mutex
	store   *Store
	repo    *Repository
	engine  *RulesEngine
	clock   Clock
	ids     IDGenerator
	schemas domain.SchemaSet
	log     *zap.Logger
	metrics MetricsRecorder
	archive *Archive
}

// NewService constructs a service over store.
func NewService(store *Store, opts ...Option) *Service {
	s := &Service{store: store, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	if s.engine == nil {
		s.engine = NewDefaultRulesEngine()
	}
	s.repo = NewRepository(s.ids, s.clock, s.schemas)
	return s
}

// Schemas returns the module schemas in use.
func (s *Service) Schemas() domain.SchemaSet { return s.repo.Schemas() }

// Store returns the underlying store.
func (s *Service) Store() *Store { return s.store }

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	}
	if err != nil {
		s.log.Debug("operation failed", zap.String("operation", op), zap.Error(err))
	}
}

// commit installs next as the current root and queues it for persistence.
func (s *Service) commit(next domain.RootState) {
	_ = s.store.Save(next)
}

// State returns the current root state.
func (s *Service) State(ctx context.Context) domain.RootState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Load(ctx)
}

// WorkspaceSummary is one row of the workspace list.
type WorkspaceSummary struct {
	ID       string         `json:"id"`
	Profile  domain.Profile `json:"profile"`
	Created  string         `json:"created"`
	Modified string         `json:"modified"`
	Records  int            `json:"records"`
	Open     bool           `json:"open"`
}

// Workspaces lists workspaces in display order.
func (s *Service) Workspaces(ctx context.Context) []WorkspaceSummary {
	root := s.State(ctx)
	open, _ := root.Open()
	out := make([]WorkspaceSummary, 0, len(root.Order))
	for _, id := range root.Order {
		ws := root.Workspaces[id]
		out = append(out, WorkspaceSummary{
			ID:       id,
			Profile:  ws.Profile,
			Created:  ws.Created,
			Modified: ws.Modified,
			Records:  ws.RecordCount(),
			Open:     id == open,
		})
	}
	return out
}

// CreateWorkspace creates and opens a new workspace.
func (s *Service) CreateWorkspace(ctx context.Context, profile domain.Profile) (id string, err error) {
	defer func(start time.Time) { s.observe(ctx, "create_workspace", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	next, id, err := s.repo.CreateWorkspace(s.store.Load(ctx), profile)
	if err != nil {
		return "", err
	}
	s.commit(next)
	s.log.Info("workspace created", zap.String("workspace", id))
	return id, nil
}

// OpenWorkspace marks id as open.
func (s *Service) OpenWorkspace(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.observe(ctx, "open_workspace", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.repo.OpenWorkspace(s.store.Load(ctx), id)
	if err != nil {
		return err
	}
	s.commit(next)
	return nil
}

// CloseWorkspace clears the open workspace.
func (s *Service) CloseWorkspace(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(s.repo.CloseWorkspace(s.store.Load(ctx)))
}

// DeleteWorkspace removes a workspace. Unknown ids report false and write nothing.
func (s *Service) DeleteWorkspace(ctx context.Context, id string) (deleted bool, err error) {
	defer func(start time.Time) { s.observe(ctx, "delete_workspace", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	next, changed := s.repo.DeleteWorkspace(s.store.Load(ctx), id)
	if !changed {
		return false, nil
	}
	s.commit(next)
	s.log.Info("workspace deleted", zap.String("workspace", id))
	return true, nil
}

// SaveProfile replaces the profile of workspace id.
func (s *Service) SaveProfile(ctx context.Context, id string, profile domain.Profile) (err error) {
	defer func(start time.Time) { s.observe(ctx, "save_profile", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.repo.SaveProfile(s.store.Load(ctx), id, profile)
	if err != nil {
		return err
	}
	s.commit(next)
	return nil
}

// ImportWorkspace adds the workspace encoded in document under a fresh id.
func (s *Service) ImportWorkspace(ctx context.Context, document []byte) (id string, err error) {
	defer func(start time.Time) { s.observe(ctx, "import_workspace", start, err) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	next, id, err := s.repo.ImportWorkspace(s.store.Load(ctx), document)
	if err != nil {
		return "", err
	}
	s.commit(next)
	s.log.Info("workspace imported",
		zap.String("workspace", id),
		zap.Int("records", next.Workspaces[id].RecordCount()))
	return id, nil
}

// Workspace returns workspace id.
func (s *Service) Workspace(ctx context.Context, id string) (domain.Workspace, error) {
	root := s.State(ctx)
	ws, ok := root.Workspaces[id]
	if !ok {
		return domain.Workspace{}, fmt.Errorf("%s: %w", id, ErrWorkspaceNotFound)
	}
	return ws, nil
}

// Current returns the open workspace and its id.
func (s *Service) Current(ctx context.Context) (string, domain.Workspace, error) {
	root := s.State(ctx)
	id, ok := root.Open()
	if !ok {
		return "", domain.Workspace{}, ErrNoOpenWorkspace
	}
	return id, root.Workspaces[id], nil
}

// Records lists one collection of the open workspace.
func (s *Service) Records(ctx context.Context, key domain.CollectionKey) ([]domain.Record, error) {
	if _, ok := s.repo.Schemas().Lookup(key); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, key)
	}
	_, ws, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	return ws.Records(key), nil
}

// updateOpen runs fn against the open workspace and commits when it reports a change.
func (s *Service) updateOpen(ctx context.Context, fn func(domain.Workspace) (domain.Workspace, bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	root := s.store.Load(ctx)
	id, ok := root.Open()
	if !ok {
		return ErrNoOpenWorkspace
	}
	next, changed, err := fn(root.Workspaces[id])
	if err != nil || !changed {
		return err
	}
	s.commit(root.WithWorkspace(id, next))
	return nil
}

// AddRecord appends a record to a collection of the open workspace.
func (s *Service) AddRecord(ctx context.Context, key domain.CollectionKey, fields domain.Record) (rec domain.Record, err error) {
	defer func(start time.Time) { s.observe(ctx, "add_record", start, err) }(time.Now())
	err = s.updateOpen(ctx, func(ws domain.Workspace) (domain.Workspace, bool, error) {
		next, added, err := s.repo.AddRecord(ws, key, fields)
		if err != nil {
			return ws, false, err
		}
		rec = added
		return next, true, nil
	})
	return rec, err
}

// EditRecord merges fields into record id. A missing id reports false.
func (s *Service) EditRecord(ctx context.Context, key domain.CollectionKey, id string, fields domain.Record) (changed bool, err error) {
	defer func(start time.Time) { s.observe(ctx, "edit_record", start, err) }(time.Now())
	err = s.updateOpen(ctx, func(ws domain.Workspace) (domain.Workspace, bool, error) {
		next, ok, err := s.repo.EditRecord(ws, key, id, fields)
		changed = ok
		return next, ok, err
	})
	return changed, err
}

// DeleteRecord removes record id. A missing id reports false.
func (s *Service) DeleteRecord(ctx context.Context, key domain.CollectionKey, id string) (deleted bool, err error) {
	defer func(start time.Time) { s.observe(ctx, "delete_record", start, err) }(time.Now())
	err = s.updateOpen(ctx, func(ws domain.Workspace) (domain.Workspace, bool, error) {
		next, ok, err := s.repo.DeleteRecord(ws, key, id)
		deleted = ok
		return next, ok, err
	})
	return deleted, err
}

// Dashboard evaluates the rules and KPIs of the open workspace.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	_, ws, err := s.Current(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return BuildDashboard(ctx, s.engine, ws, s.clock.Now())
}

// Badge grades one record as of the service clock.
func (s *Service) Badge(key domain.CollectionKey, rec domain.Record) Status {
	return Badge(key, rec, s.clock.Now())
}

func (s *Service) resolve(ctx context.Context, id string) (string, domain.Workspace, error) {
	if id == "" {
		return s.Current(ctx)
	}
	ws, err := s.Workspace(ctx, id)
	return id, ws, err
}

// ExportBackup returns the JSON backup of workspace id, or of the open
// workspace when id is empty.
func (s *Service) ExportBackup(ctx context.Context, id string) ([]byte, error) {
	_, ws, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return MarshalBackup(ws)
}

// ExportCSV writes one collection of the open workspace as CSV.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, key domain.CollectionKey) error {
	schema, ok := s.repo.Schemas().Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, key)
	}
	_, ws, err := s.Current(ctx)
	if err != nil {
		return err
	}
	table, err := ExportRows(schema, ws.Records(key))
	if err != nil {
		return err
	}
	return table.WriteCSV(w)
}

// ArchiveBackup files the backup of the open workspace in the archive.
func (s *Service) ArchiveBackup(ctx context.Context) (info blob.Info, err error) {
	defer func(start time.Time) { s.observe(ctx, "archive_backup", start, err) }(time.Now())
	if s.archive == nil {
		return blob.Info{}, ErrArchiveDisabled
	}
	id, ws, err := s.Current(ctx)
	if err != nil {
		return blob.Info{}, err
	}
	return s.archive.SaveBackup(ctx, id, ws)
}

// ArchiveCSV files the CSV export of one collection of the open workspace.
func (s *Service) ArchiveCSV(ctx context.Context, key domain.CollectionKey) (info blob.Info, err error) {
	defer func(start time.Time) { s.observe(ctx, "archive_csv", start, err) }(time.Now())
	if s.archive == nil {
		return blob.Info{}, ErrArchiveDisabled
	}
	schema, ok := s.repo.Schemas().Lookup(key)
	if !ok {
		return blob.Info{}, fmt.Errorf("%w: %q", ErrUnknownCollection, key)
	}
	id, ws, err := s.Current(ctx)
	if err != nil {
		return blob.Info{}, err
	}
	return s.archive.SaveCSV(ctx, id, schema, ws.Records(key))
}

// Exports lists archived exports for workspace id (all when empty).
func (s *Service) Exports(ctx context.Context, id string) ([]blob.Info, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.List(ctx, id)
}

// ImportArchived imports a backup previously filed in the archive.
func (s *Service) ImportArchived(ctx context.Context, key string) (string, error) {
	if s.archive == nil {
		return "", ErrArchiveDisabled
	}
	data, err := s.archive.Read(ctx, key)
	if err != nil {
		return "", err
	}
	return s.ImportWorkspace(ctx, data)
}

// Flush waits for queued writes and reports the latest write failure.
func (s *Service) Flush(ctx context.Context) error {
	return s.store.Flush(ctx)
}
