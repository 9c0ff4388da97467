package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"printkiosk/internal/applog"
	"printkiosk/internal/model"
	"printkiosk/internal/printer"
	"printkiosk/internal/storage"
)

var (
	ErrFileRequired = errors.New("file is required")
	ErrReaderNil    = errors.New("reader is nil")
	ErrNotFound     = storage.ErrNotFound
	ErrInvalidName  = storage.ErrInvalidName
)

// Printer is the subset of the print bridge used by the service.
type Printer interface {
	Print(ctx context.Context, path string) printer.Result
}

// KioskService defines the kiosk use cases.
type KioskService interface {
	// Upload stores the content under the normalised client filename, replacing any file
	// with the same name.
	Upload(ctx context.Context, r io.Reader, originalFilename string, contentType string, size int64) (*model.StoredFile, error)

	// List returns the names of all stored files, freshly read from storage.
	List(ctx context.Context) ([]string, error)

	// Open returns a stored file for streaming.
	Open(ctx context.Context, name string) (storage.Object, *model.StoredFile, error)

	// Print forwards a stored file to the printer share. Only invalid input is an error;
	// a failed job is reported through the result.
	Print(ctx context.Context, name string) (*model.PrintResult, error)

	// Ping checks that the storage backend is usable.
	Ping(ctx context.Context) error
}

type kioskService struct {
	store   storage.Storage
	printer Printer
	log     *applog.Logger
}

// NewKioskService constructs a new KioskService.
func NewKioskService(store storage.Storage, p Printer, log *applog.Logger) KioskService {
	if log == nil {
		log = applog.Discard()
	}
	return &kioskService{store: store, printer: p, log: log}
}

func (s *kioskService) Upload(ctx context.Context, r io.Reader, originalFilename string, contentType string, size int64) (*model.StoredFile, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	name, err := storage.CleanName(originalFilename)
	if err != nil {
		return nil, err
	}

	info, err := s.store.Put(ctx, name, r, storage.PutObjectOptions{
		Size:        size,
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	s.log.Info("file_uploaded", map[string]any{
		"file":         info.Name,
		"size":         info.Size,
		"content_type": info.ContentType,
	})
	return toStoredFile(info), nil
}

func (s *kioskService) List(ctx context.Context) ([]string, error) {
	files, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list storage: %w", err)
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names, nil
}

func (s *kioskService) Open(ctx context.Context, name string) (storage.Object, *model.StoredFile, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, nil, err
	}
	obj, info, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return obj, toStoredFile(info), nil
}

func (s *kioskService) Print(ctx context.Context, name string) (*model.PrintResult, error) {
	if name == "" {
		return nil, ErrFileRequired
	}
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}

	out := &model.PrintResult{File: name}

	path, cleanup, err := s.store.LocalPath(ctx, name)
	defer cleanup()
	if err != nil {
		out.Status = model.PrintStatusFailed
		out.ExitCode = -1
		out.Error = err.Error()
		s.log.Error("print_failed", err, map[string]any{"file": name, "stage": "storage"})
		return out, nil
	}

	res := s.printer.Print(ctx, path)
	out.ExitCode = res.ExitCode
	out.Output = res.Output
	if !res.OK() {
		out.Status = model.PrintStatusFailed
		out.Error = res.Err.Error()
		s.log.Error("print_failed", res.Err, map[string]any{
			"file":      name,
			"stage":     "smbclient",
			"exit_code": res.ExitCode,
			"output":    res.Output,
		})
		return out, nil
	}

	out.Status = model.PrintStatusSent
	s.log.Info("print_sent", map[string]any{"file": name})
	return out, nil
}

func (s *kioskService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func toStoredFile(info storage.ObjectInfo) *model.StoredFile {
	return &model.StoredFile{
		Name:        info.Name,
		Size:        info.Size,
		ContentType: info.ContentType,
		ModifiedAt:  info.LastModified,
	}
}
