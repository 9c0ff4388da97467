package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"printkiosk/internal/config"
)

// localStorage keeps files verbatim in a single flat directory.
// Concurrent writes to the same name are not coordinated; the last writer wins.
type localStorage struct {
	dir string
}

// NewLocal returns a Storage rooted at cfg.Dir, creating the directory if it is missing.
func NewLocal(cfg config.StorageConfig) (Storage, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &localStorage{dir: dir}, nil
}

func (s *localStorage) path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// Put streams r into a temp file in the storage directory and renames it over the
// named file once the whole body has arrived. A failed upload leaves any previous
// content untouched.
func (s *localStorage) Put(ctx context.Context, name string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	p, err := s.path(name)
	if err != nil {
		return ObjectInfo{}, err
	}
	f, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create %s: %w", name, err)
	}
	tmp := f.Name()
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return ObjectInfo{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return ObjectInfo{}, fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return ObjectInfo{}, fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return ObjectInfo{}, fmt.Errorf("replace %s: %w", name, err)
	}
	info, err := s.Stat(ctx, name)
	if err != nil {
		return ObjectInfo{}, err
	}
	if opt.ContentType != "" {
		info.ContentType = opt.ContentType
	}
	return info, nil
}

// List reads the directory fresh on every call. Subdirectories and in-flight uploads are skipped.
func (s *localStorage) List(_ context.Context) ([]ObjectInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read storage directory: %w", err)
	}
	out := make([]ObjectInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		out = append(out, infoFromFile(fi))
	}
	return out, nil
}

func (s *localStorage) Stat(_ context.Context, name string) (ObjectInfo, error) {
	p, err := s.path(name)
	if err != nil {
		return ObjectInfo{}, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, err
	}
	if fi.IsDir() {
		return ObjectInfo{}, ErrNotFound
	}
	return infoFromFile(fi), nil
}

func (s *localStorage) Get(ctx context.Context, name string) (Object, ObjectInfo, error) {
	info, err := s.Stat(ctx, name)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, err
	}
	return f, info, nil
}

// LocalPath does not require the file to exist; callers that hand the path to an
// external tool get that tool's own error for a missing file.
func (s *localStorage) LocalPath(_ context.Context, name string) (string, func(), error) {
	p, err := s.path(name)
	if err != nil {
		return "", func() {}, err
	}
	return p, func() {}, nil
}

func (s *localStorage) Ping(_ context.Context) error {
	fi, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

func infoFromFile(fi fs.FileInfo) ObjectInfo {
	return ObjectInfo{
		Name:         fi.Name(),
		Size:         fi.Size(),
		ContentType:  contentTypeFor(fi.Name()),
		LastModified: fi.ModTime(),
	}
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
