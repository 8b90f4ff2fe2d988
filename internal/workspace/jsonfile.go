package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"finance-workspace/internal/apperr"
)

// LoadJSON decodes the JSON file at path into v. Read failures are KindIO
// (and still match fs.ErrNotExist), decode failures KindConfig.
func LoadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperr.IO("read "+filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Config("parse "+filepath.Base(path), fmt.Errorf("%s: %w", path, err))
	}
	return nil
}

// SaveJSON writes v as indented JSON. The content goes to a temporary
// sibling first and is renamed over path, so readers never see half a document.
func SaveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperr.Config("serialize "+filepath.Base(path), err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return apperr.IO("write "+filepath.Base(path), err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperr.IO("write "+filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperr.IO("write "+filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return apperr.IO("write "+filepath.Base(path), err)
	}
	return nil
}
