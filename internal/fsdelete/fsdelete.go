// Package fsdelete provides the primitives that remove a single file.
// None of them delete directories.
package fsdelete

import (
	"context"
	"io/fs"
	"os"
	"syscall"

	"github.com/rs/zerolog"
)

type Deleter interface {
	Delete(ctx context.Context, path string) error
}

// Inspector reports what a path names on a backend without changing it.
type Inspector interface {
	Inspect(ctx context.Context, path string) (fs.FileInfo, error)
}

// Local unlinks files on the local filesystem.
type Local struct{}

func (Local) Inspect(_ context.Context, path string) (fs.FileInfo, error) {
	return os.Lstat(path)
}

func (Local) Delete(_ context.Context, path string) error {
	if err := syscall.Unlink(path); err != nil {
		return &fs.PathError{Op: "unlink", Path: path, Err: err}
	}
	return nil
}

// DryRun checks that path names an existing non-directory on Backend and
// logs it instead of deleting it. A nil Backend inspects the local
// filesystem.
type DryRun struct {
	Backend Inspector
	Logger  zerolog.Logger
}

func (d DryRun) Delete(ctx context.Context, path string) error {
	var backend Inspector = Local{}
	if d.Backend != nil {
		backend = d.Backend
	}
	fi, err := backend.Inspect(ctx, path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return &fs.PathError{Op: "unlink", Path: path, Err: syscall.EISDIR}
	}
	d.Logger.Info().Str("path", path).Msg("[dry-run] unlink")
	return nil
}

// Func adapts a function to Deleter.
type Func func(ctx context.Context, path string) error

func (f Func) Delete(ctx context.Context, path string) error { return f(ctx, path) }
