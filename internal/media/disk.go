package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore writes files under the static uploads directory and returns the
// public /static/uploads URL.
type DiskStore struct {
	dir     string
	baseURL string
}

func NewDiskStore(dir, publicBaseURL string) *DiskStore {
	return &DiskStore{dir: dir, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (d *DiskStore) Name() string { return "disk" }

func (d *DiskStore) Save(_ context.Context, name string, upload Upload) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}

	path := filepath.Join(d.dir, name)
	if err := os.WriteFile(path, upload.Data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return d.baseURL + "/static/uploads/" + name, nil
}
