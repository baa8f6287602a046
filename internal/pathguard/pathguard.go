// Package pathguard confines filesystem access to a declared set of allowed
// root directories, with protected directories (such as the audit log
// directory) that are denied even when nested inside an allowed root.
//
// All comparisons are made on symlink-resolved absolute paths, so a symlink
// inside an allowed root cannot be used to escape it.
package pathguard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AccessError reports a denied filesystem access. The tool registry maps it
// to a TOOL_ACCESS_DENIED audit event.
type AccessError struct {
	Path   string
	Op     string
	Reason string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s %q denied: %s", e.Op, e.Path, e.Reason)
}

// Enforcer checks paths against allowed roots and protected directories.
// Protected directories win over allowed roots.
type Enforcer struct {
	allowedRoots  []string
	protectedDirs []string
}

// New builds an Enforcer. Every allowed root must exist and be a directory;
// an empty root set is a configuration error (use NewWithCwdFallback when a
// default is acceptable). Protected directories need not exist yet.
func New(allowedRoots []string, protectedDirs []string) (*Enforcer, error) {
	if len(allowedRoots) == 0 {
		return nil, fmt.Errorf("at least one allowed root is required")
	}

	roots := make([]string, 0, len(allowedRoots))
	for _, root := range allowedRoots {
		resolved, err := resolveExisting(root)
		if err != nil {
			return nil, fmt.Errorf("allowed root %q: %w", root, err)
		}
		info, err := os.Stat(resolved)
		if err != nil {
			return nil, fmt.Errorf("allowed root %q: %w", root, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("allowed root %q is not a directory", root)
		}
		roots = append(roots, resolved)
	}

	protected := make([]string, 0, len(protectedDirs))
	for _, dir := range protectedDirs {
		resolved, err := resolveLenient(dir)
		if err != nil {
			return nil, fmt.Errorf("protected dir %q: %w", dir, err)
		}
		protected = append(protected, resolved)
	}

	return &Enforcer{allowedRoots: roots, protectedDirs: protected}, nil
}

// NewWithCwdFallback is New, but an empty root set falls back to the current
// working directory. Callers are expected to log a warning when the fallback
// is taken.
func NewWithCwdFallback(allowedRoots []string, protectedDirs []string) (*Enforcer, error) {
	if len(allowedRoots) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
		allowedRoots = []string{cwd}
	}
	return New(allowedRoots, protectedDirs)
}

// AllowedRoots returns the resolved allowed roots. The first root is used
// as the working directory for shell commands.
func (e *Enforcer) AllowedRoots() []string {
	return e.allowedRoots
}

// Check resolves path and verifies it may be accessed for the given
// operation ("read", "write", "list"). It returns the resolved absolute
// path on success, and an *AccessError on denial.
func (e *Enforcer) Check(path string, op string) (string, error) {
	if path == "" {
		return "", &AccessError{Path: path, Op: op, Reason: "empty path"}
	}

	resolved, err := resolveLenient(path)
	if err != nil {
		return "", &AccessError{Path: path, Op: op, Reason: fmt.Sprintf("cannot resolve path: %v", err)}
	}

	// Protected directories are checked first so that an allowed root can
	// never grant access into one.
	for _, dir := range e.protectedDirs {
		if resolved == dir || isWithin(dir, resolved) {
			return "", &AccessError{Path: path, Op: op, Reason: fmt.Sprintf("path is inside protected directory %s", dir)}
		}
	}

	for _, root := range e.allowedRoots {
		if resolved == root || isWithin(root, resolved) {
			return resolved, nil
		}
	}

	return "", &AccessError{Path: path, Op: op, Reason: "path is outside allowed paths"}
}

// isWithin reports whether child is strictly inside parent.
func isWithin(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "."
}

// resolveExisting resolves an absolute, symlink-free form of a path that
// must already exist.
func resolveExisting(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// resolveLenient resolves a path that may not exist yet (a write target).
// The deepest existing ancestor is symlink-resolved and the remaining
// components are re-joined onto it.
func resolveLenient(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	var missing []string
	current := abs
	for {
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing ancestor for %q", abs)
		}
		missing = append([]string{filepath.Base(current)}, missing...)
		resolved, err = filepath.EvalSymlinks(parent)
		if err == nil {
			return filepath.Join(append([]string{resolved}, missing...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		current = parent
	}
}
