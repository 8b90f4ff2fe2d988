// Package session owns the workspace that is currently open: its canonical
// store, its cache and the services built on both.
package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"finance-workspace/internal/apperr"
	"finance-workspace/internal/indexer"
	"finance-workspace/internal/repository"
	"finance-workspace/internal/service"
	"finance-workspace/internal/workspace"
)

// Session is one open workspace.
type Session struct {
	Root  string
	Name  string
	Paths LocalPaths

	Store      *workspace.Store
	Cache      *repository.Cache
	Indexer    *indexer.Indexer
	Ledger     *service.LedgerService
	Accounts   *service.AccountService
	Categories *service.CategoryService
	Records    *service.RecordService
}

// Close releases the cache connection.
func (s *Session) Close() error {
	return s.Cache.Close()
}

// WorkspaceContext describes the open workspace to front-ends.
type WorkspaceContext struct {
	Name     string
	Path     string
	Currency string
	Theme    string
}

// Manager switches between workspaces. Readers take the current session
// without locking; switches are serialized.
type Manager struct {
	appData string
	log     zerolog.Logger
	now     func() time.Time

	switchMu sync.Mutex
	current  atomic.Pointer[Session]
}

func NewManager(appData string, log zerolog.Logger) *Manager {
	return &Manager{
		appData: appData,
		log:     log.With().Str("component", "session").Logger(),
		now:     time.Now,
	}
}

// InitFullWorkspace scaffolds a new workspace at path, builds its cache and
// makes it current. If anything after the scaffolding fails, the new
// workspace directory is removed again.
func (m *Manager) InitFullWorkspace(ctx context.Context, path string) error {
	root, err := absPath(path)
	if err != nil {
		return err
	}

	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	if err := workspace.Init(root, m.now()); err != nil {
		return err
	}
	sess, _, err := m.open(ctx, root)
	if err != nil {
		if rerr := os.RemoveAll(root); rerr != nil {
			m.log.Error().Err(rerr).Str("path", root).Msg("rollback of new workspace failed")
		}
		return err
	}
	if err := m.swap(sess); err != nil {
		os.RemoveAll(root)
		return err
	}
	m.log.Info().Str("workspace", sess.Name).Str("path", root).Msg("workspace created")
	return nil
}

// OpenAndReindex opens an existing workspace, rebuilds its cache and makes
// it current.
func (m *Manager) OpenAndReindex(ctx context.Context, path string) error {
	root, err := absPath(path)
	if err != nil {
		return err
	}
	if err := workspace.Check(root); err != nil {
		return err
	}

	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	sess, report, err := m.open(ctx, root)
	if err != nil {
		return err
	}
	if err := m.swap(sess); err != nil {
		return err
	}
	m.log.Info().Str("workspace", sess.Name).Int("records", report.Indexed).Msg("workspace opened")
	return nil
}

// OpenLast reopens the workspace recorded in last_session.json.
func (m *Manager) OpenLast(ctx context.Context) error {
	last, err := LoadLastSession(m.appData)
	if err != nil {
		return err
	}
	return m.OpenAndReindex(ctx, last.LastWorkspacePath)
}

// Reindex rebuilds the cache of the current workspace from its documents.
func (m *Manager) Reindex(ctx context.Context) (indexer.Report, error) {
	sess, err := m.Current()
	if err != nil {
		return indexer.Report{}, err
	}
	return sess.Indexer.IndexFullWorkspace(ctx, sess.Root)
}

// Current returns the open session.
func (m *Manager) Current() (*Session, error) {
	sess := m.current.Load()
	if sess == nil {
		return nil, apperr.NotFound("current workspace", "no workspace is open")
	}
	return sess, nil
}

// Context reads the last session pointer and that workspace's app.json.
func (m *Manager) Context() (WorkspaceContext, error) {
	last, err := LoadLastSession(m.appData)
	if err != nil {
		return WorkspaceContext{}, err
	}
	app, err := workspace.NewStore(last.LastWorkspacePath).LoadApp()
	if err != nil {
		return WorkspaceContext{}, err
	}
	return WorkspaceContext{
		Name:     last.LastWorkspaceName,
		Path:     last.LastWorkspacePath,
		Currency: app.Currency,
		Theme:    app.Theme,
	}, nil
}

// PruneTemp clears old files from the current workspace's temp directory.
func (m *Manager) PruneTemp(maxAge time.Duration) (int, error) {
	sess, err := m.Current()
	if err != nil {
		return 0, err
	}
	return PruneTemp(sess.Paths.TempDir, maxAge, m.now())
}

// Close closes the current session, if any.
func (m *Manager) Close() error {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()
	if sess := m.current.Swap(nil); sess != nil {
		return sess.Close()
	}
	return nil
}

func (m *Manager) open(ctx context.Context, root string) (*Session, indexer.Report, error) {
	name := filepath.Base(root)
	paths, err := PrepareLocalStorage(m.appData, name)
	if err != nil {
		return nil, indexer.Report{}, err
	}

	db, err := repository.NewDB(paths.CacheFile(), m.log)
	if err != nil {
		return nil, indexer.Report{}, apperr.Database("open cache", err)
	}
	cache := repository.NewCache(db)
	store := workspace.NewStore(root)

	sess := &Session{
		Root:       root,
		Name:       name,
		Paths:      paths,
		Store:      store,
		Cache:      cache,
		Indexer:    indexer.New(cache, m.log),
		Ledger:     service.NewLedgerService(cache),
		Accounts:   service.NewAccountService(store, cache, m.log),
		Categories: service.NewCategoryService(store, cache, m.log),
		Records:    service.NewRecordService(store, cache, m.log),
	}

	report, err := sess.Indexer.IndexFullWorkspace(ctx, root)
	if err != nil {
		sess.Close()
		return nil, indexer.Report{}, err
	}
	return sess, report, nil
}

// swap records sess as the last session and makes it current. The previous
// session is closed afterwards.
func (m *Manager) swap(sess *Session) error {
	last := LastSession{LastWorkspacePath: sess.Root, LastWorkspaceName: sess.Name}
	if err := SaveLastSession(m.appData, last); err != nil {
		sess.Close()
		return err
	}
	if prev := m.current.Swap(sess); prev != nil {
		if err := prev.Close(); err != nil {
			m.log.Warn().Err(err).Str("workspace", prev.Name).Msg("closing previous workspace failed")
		}
	}
	return nil
}

func absPath(path string) (string, error) {
	if path == "" {
		return "", apperr.Invalid("workspace path", "path is empty")
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return "", apperr.IO("workspace path", err)
	}
	return root, nil
}
