// Package access checks read and write permission on files and directories
// before an operation touches them, so callers can report an actionable error
// instead of failing halfway through a save or export.
package access

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	ErrNotExist   = errors.New("path does not exist")
	ErrNotFile    = errors.New("path is not a file")
	ErrNotDir     = errors.New("path is not a directory")
	ErrPermission = errors.New("permission denied")
)

// Error records the failed check and the path
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cannot %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Checker is the path-access interface consumed by save and export.
type Checker interface {
	CanReadFile(path string) bool
	CanWriteFile(path string) bool
	CanWriteNewFile(path string) bool
	CanReadDir(path string) bool
	CanWriteDir(path string) bool
}

// FS checks the local filesystem
type FS struct{}

var _ Checker = FS{}

// CheckFileRead returns nil if path is a readable regular file.
func (FS) CheckFileRead(path string) error {
	return check("read", path, false, readable)
}

// CheckFileWrite returns nil if path is an existing writable regular file.
func (FS) CheckFileWrite(path string) error {
	return check("write", path, false, writable)
}

// CheckNewFileWrite checks an existing file for write access, or the directory
// that would contain it when the file does not exist yet.
func (f FS) CheckNewFileWrite(path string) error {
	if _, err := os.Stat(path); err == nil {
		return f.CheckFileWrite(path)
	}
	return f.CheckDirWrite(filepath.Dir(path))
}

// CheckDirRead returns nil if path is a readable directory.
func (FS) CheckDirRead(path string) error {
	return check("read", path, true, readable)
}

// CheckDirWrite returns nil if path is a writable directory.
func (FS) CheckDirWrite(path string) error {
	return check("write", path, true, writable)
}

func (f FS) CanReadFile(path string) bool     { return f.CheckFileRead(path) == nil }
func (f FS) CanWriteFile(path string) bool    { return f.CheckFileWrite(path) == nil }
func (f FS) CanWriteNewFile(path string) bool { return f.CheckNewFileWrite(path) == nil }
func (f FS) CanReadDir(path string) bool      { return f.CheckDirRead(path) == nil }
func (f FS) CanWriteDir(path string) bool     { return f.CheckDirWrite(path) == nil }

type mode int

const (
	readable mode = iota
	writable
)

func check(op, path string, wantDir bool, m mode) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Error{Op: op, Path: path, Err: ErrNotExist}
		}
		if errors.Is(err, os.ErrPermission) {
			return &Error{Op: op, Path: path, Err: ErrPermission}
		}
		return &Error{Op: op, Path: path, Err: err}
	}
	if wantDir && !info.IsDir() {
		return &Error{Op: op, Path: path, Err: ErrNotDir}
	}
	if !wantDir && !info.Mode().IsRegular() {
		return &Error{Op: op, Path: path, Err: ErrNotFile}
	}
	if !permitted(path, info, m) {
		return &Error{Op: op, Path: path, Err: ErrPermission}
	}
	return nil
}
