package workspace

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"finance-workspace/internal/apperr"
)

// writeDoc is SaveJSON; tests swap it to fail midway.
var writeDoc = SaveJSON

// Init scaffolds a new workspace at root with default documents. The
// directory must not exist. On failure the partially created tree is removed;
// a failed removal is ignored because the original error dominates.
func Init(root string, now time.Time) error {
	if _, err := os.Stat(root); err == nil {
		return apperr.AlreadyExists("init workspace", "%q already exists", root)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return apperr.IO("init workspace", err)
	}

	if err := createStructure(root, now.Unix()); err != nil {
		_ = os.RemoveAll(root)
		return err
	}
	return nil
}

func createStructure(root string, now int64) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return apperr.IO("init workspace", err)
	}
	for _, dir := range []string{FinanceDir, RecordsDir, AttachmentsDir} {
		if err := os.Mkdir(filepath.Join(root, dir), 0o755); err != nil {
			return apperr.IO("init workspace", err)
		}
	}

	docs := []struct {
		name string
		v    any
	}{
		{VersionFile, defaultVersion(now)},
		{AppFile, defaultApp(now)},
		{CategoriesFile, defaultCategories(now)},
		{AccountsFile, defaultAccounts(now)},
		{BudgetsFile, json.RawMessage(`{}`)},
		{TagsFile, TagsConfig{}},
	}
	for _, doc := range docs {
		if err := writeDoc(filepath.Join(root, FinanceDir, doc.name), doc.v); err != nil {
			return err
		}
	}
	return nil
}
