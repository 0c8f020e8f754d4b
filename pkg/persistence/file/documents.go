package file

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// readDocument loads one JSON document into out. Returns os.ErrNotExist when
// the document is missing.
func (p *Persistence) readDocument(dir, id string, out any) error {
	filePath := filepath.Clean(path.Join(p.root, dir, id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return os.ErrNotExist
		}

		return fmt.Errorf("failed to read %s/%s: %w", dir, id, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s/%s: %w", dir, id, err)
	}

	return nil
}

// writeDocument stores one JSON document, creating the directory as needed.
func (p *Persistence) writeDocument(dir, id string, doc any) error {
	fullDir := path.Join(p.root, dir)

	if err := os.MkdirAll(fullDir, 0750); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", dir, id, err)
	}

	if err := os.WriteFile(path.Join(fullDir, id+".json"), data, 0600); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", dir, id, err)
	}

	return nil
}

// listDocumentIDs returns the document IDs stored under dir.
func (p *Persistence) listDocumentIDs(dir string) ([]string, error) {
	root := os.DirFS(path.Join(p.root, dir))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s documents: %w", dir, err)
	}

	ids := make([]string, 0, len(jsonFiles))
	for _, file := range jsonFiles {
		ids = append(ids, file[:len(file)-5])
	}

	return ids, nil
}
