package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// FS stores artifacts as files below Root.
type FS struct {
	Root string
}

// NewFS creates a filesystem backend rooted at root.
func NewFS(root string) *FS {
	return &FS{Root: root}
}

func (f *FS) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", eris.Errorf("artifact: invalid key %q", key)
	}
	return filepath.Join(f.Root, clean), nil
}

// Exists reports whether a file is present for key.
func (f *FS) Exists(_ context.Context, key string) (bool, error) {
	p, err := f.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, eris.Wrapf(err, "artifact: stat %s", key)
	}
	return true, nil
}

// Put writes data to a temp file beside the target and renames it into
// place, creating parent directories as needed.
func (f *FS) Put(ctx context.Context, key string, data []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "artifact: put")
	}

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "artifact: mkdir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "artifact: create temp for %s", key)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "artifact: write %s", key)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "artifact: close %s", key)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return eris.Wrapf(err, "artifact: publish %s", key)
	}
	return nil
}

// Get returns the artifact's bytes, or ErrNotFound.
func (f *FS) Get(_ context.Context, key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(ErrNotFound, "artifact: get %s", key)
		}
		return nil, eris.Wrapf(err, "artifact: read %s", key)
	}
	return data, nil
}
