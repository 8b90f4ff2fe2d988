// Package workspace reads and writes the canonical JSON documents of a
// finance workspace. Every write rewrites a whole document.
package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"finance-workspace/internal/apperr"
)

const (
	FinanceDir     = ".finance"
	RecordsDir     = "records"
	AttachmentsDir = "attachments"

	VersionFile    = "version.json"
	AppFile        = "app.json"
	CategoriesFile = "categories.json"
	AccountsFile   = "accounts.json"
	BudgetsFile    = "budgets.json"
	TagsFile       = "tags.json"
)

// Store is the canonical store rooted at a workspace directory.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Root() string { return s.root }

func (s *Store) docPath(name string) string {
	return filepath.Join(s.root, FinanceDir, name)
}

// RecordsDir returns the directory holding one file per record.
func (s *Store) RecordsDir() string {
	return filepath.Join(s.root, RecordsDir)
}

// RecordPath is the canonical file of a record: <root>/records/<id>.json.
func (s *Store) RecordPath(id string) string {
	return RecordPath(s.root, id)
}

func RecordPath(root, id string) string {
	return filepath.Join(root, RecordsDir, id+".json")
}

// Check verifies that root looks like a workspace.
func Check(root string) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return apperr.IO("open workspace", fmt.Errorf("%q is not a directory", root))
	}
	for _, name := range []string{AppFile, VersionFile} {
		if _, err := os.Stat(filepath.Join(root, FinanceDir, name)); err != nil {
			return apperr.IO("open workspace", fmt.Errorf("%q is not a workspace (missing %s/%s)", root, FinanceDir, name))
		}
	}
	return nil
}

func (s *Store) LoadApp() (AppConfig, error) {
	var cfg AppConfig
	err := LoadJSON(s.docPath(AppFile), &cfg)
	return cfg, err
}

func (s *Store) LoadCategories() (CategoriesConfig, error) {
	var cfg CategoriesConfig
	err := LoadJSON(s.docPath(CategoriesFile), &cfg)
	return cfg, err
}

func (s *Store) SaveCategories(cfg CategoriesConfig) error {
	return SaveJSON(s.docPath(CategoriesFile), cfg)
}

// LoadAccounts reads accounts.json; a missing file is an empty document.
func (s *Store) LoadAccounts() (AccountsConfig, error) {
	var cfg AccountsConfig
	err := LoadJSON(s.docPath(AccountsFile), &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return AccountsConfig{}, nil
	}
	return cfg, err
}

func (s *Store) SaveAccounts(cfg AccountsConfig) error {
	return SaveJSON(s.docPath(AccountsFile), cfg)
}

// LoadTags reads tags.json; a missing file is an empty list.
func (s *Store) LoadTags() (TagsConfig, error) {
	var cfg TagsConfig
	err := LoadJSON(s.docPath(TagsFile), &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return cfg, err
}

// RecordFiles lists the *.json files in the records directory, sorted by
// name. A missing directory yields no files.
func (s *Store) RecordFiles() ([]string, error) {
	entries, err := os.ReadDir(s.RecordsDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.IO("list records", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(s.RecordsDir(), e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// WriteRecord stores a record document at its canonical path.
func (s *Store) WriteRecord(rec RecordItem) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", apperr.Invalid("write record", "%v", err)
	}
	path := s.RecordPath(rec.ID)
	if err := os.MkdirAll(s.RecordsDir(), 0o755); err != nil {
		return "", apperr.IO("write record", err)
	}
	return path, SaveJSON(path, rec)
}

// ParseRecord decodes a record document.
func ParseRecord(data []byte) (RecordItem, error) {
	var rec RecordItem
	if err := json.Unmarshal(data, &rec); err != nil {
		return RecordItem{}, err
	}
	return rec, nil
}
