package vfs

import (
	"fmt"
	"path"
	"strings"
)

const Root = "/"

// NormalizePath turns a client supplied path into the canonical form stored
// in the database: rooted, no repeated or trailing slashes, no dot segments.
// "/docs", "/docs/" and "docs//" all normalize to "/docs".
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return Root
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// ParentPath returns the directory containing p. The parent of root is root.
func ParentPath(p string) string {
	return path.Dir(NormalizePath(p))
}

// BaseName returns the last segment of p, or "" for root.
func BaseName(p string) string {
	p = NormalizePath(p)
	if p == Root {
		return ""
	}
	return path.Base(p)
}

// Join places name inside dir.
func Join(dir, name string) string {
	return NormalizePath(NormalizePath(dir) + "/" + name)
}

// IsWithin reports whether p is dir itself or lies anywhere below it.
// The comparison is segment aware: "/docs-archive" is not within "/docs".
func IsWithin(p, dir string) bool {
	p, dir = NormalizePath(p), NormalizePath(dir)
	if dir == Root || p == dir {
		return true
	}
	return strings.HasPrefix(p, dir+"/")
}

// IsDirectChild reports whether p sits exactly one segment below dir.
func IsDirectChild(p, dir string) bool {
	p = NormalizePath(p)
	return p != Root && ParentPath(p) == NormalizePath(dir)
}

// ValidateName checks a single path segment supplied by a client.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case trimmed == "." || trimmed == "..":
		return fmt.Errorf("%w: %q is not a valid name", ErrValidation, name)
	case strings.ContainsAny(name, "/\x00"):
		return fmt.Errorf("%w: name %q contains a forbidden character", ErrValidation, name)
	}
	return nil
}
