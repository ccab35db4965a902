package security

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyFilename   = errors.New("filename is empty")
	ErrDirectoryTarget = errors.New("filename names a directory")
	ErrTraversal       = errors.New("filename contains a traversal sequence")
	ErrSymlinkEscape   = errors.New("symlink escapes root")
)

// ValidateFilename applies the checks a logical filename must pass before it
// is joined to a root. The traversal check is a plain substring match: any
// "./" (which also covers "../") is refused, even where a path parser would
// accept it. A final "." or ".." segment is refused as well.
func ValidateFilename(name string) error {
	if name == "" {
		return ErrEmptyFilename
	}
	if strings.HasSuffix(name, "/") {
		return ErrDirectoryTarget
	}
	if strings.Contains(name, "../") || strings.Contains(name, "./") {
		return ErrTraversal
	}
	if name == "." || name == ".." || strings.HasSuffix(name, "/.") || strings.HasSuffix(name, "/..") {
		return ErrTraversal
	}
	if strings.IndexByte(name, 0) >= 0 {
		return ErrTraversal
	}
	return nil
}

// CheckParentEscape evaluates symlinks in the directory holding path and
// fails if the result leaves root. A missing directory is not an error; the
// delete that follows will fail on its own.
func CheckParentEscape(root, path string) error {
	cleanRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	if evalRoot, err := filepath.EvalSymlinks(cleanRoot); err == nil {
		cleanRoot = evalRoot
	}
	evaluated, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil {
		return nil
	}
	evaluated, err = filepath.Abs(evaluated)
	if err != nil {
		return err
	}
	if !within(cleanRoot, evaluated) {
		return ErrSymlinkEscape
	}
	return nil
}

func within(root, p string) bool {
	if p == root {
		return true
	}
	if root == string(filepath.Separator) {
		return strings.HasPrefix(p, root)
	}
	return strings.HasPrefix(p, root+string(filepath.Separator))
}
