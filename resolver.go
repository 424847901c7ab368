package blade

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
)

// ValidFileExtensions are the source file extensions the FS resolver
// recognizes, probed in order.
var ValidFileExtensions = []string{".blade", ".blade.html", ".tmpl", ".html", ".gohtml"}

// Source is one resolved template: its logical path, raw bytes and a
// content fingerprint used for exact-match cache invalidation.
type Source struct {
	Path        string
	Bytes       []byte
	Fingerprint string
}

// Resolver locates template source by logical path. Implementations
// return ErrNotFound (possibly wrapped) for unknown paths.
type Resolver interface {
	Resolve(logicalPath string) (*Source, error)
}

// Lister is implemented by resolvers that can enumerate every known
// logical path; Warm and Load require it.
type Lister interface {
	List() ([]string, error)
}

// FSResolver resolves logical paths against an fs.FS, the way the
// engine loads views from a directory or an embedded filesystem.
// Logical paths use either "pages/home" or dotted "pages.home" form.
type FSResolver struct {
	fsys fs.FS
}

// NewFSResolver wraps a filesystem as a template resolver.
func NewFSResolver(fsys fs.FS) *FSResolver {
	return &FSResolver{fsys: fsys}
}

// Resolve reads a template's bytes and computes its fingerprint.
func (r *FSResolver) Resolve(logicalPath string) (*Source, error) {
	name := normalizeName(logicalPath)
	for _, ext := range ValidFileExtensions {
		f, err := r.fsys.Open(name + ext)
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("blade: reading %s%s: %w", name, ext, err)
		}
		return &Source{Path: name, Bytes: raw, Fingerprint: fingerprint(raw)}, nil
	}
	return nil, fmt.Errorf("blade: %q: %w", logicalPath, ErrNotFound)
}

// List walks the filesystem and returns every template's logical path.
func (r *FSResolver) List() ([]string, error) {
	var names []string
	err := fs.WalkDir(r.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(path.Ext(p))
		if !slices.Contains(ValidFileExtensions, ext) {
			return nil
		}
		names = append(names, normalizeName(p))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// MapResolver serves templates from an in-memory map, keyed by logical
// path. Useful for tests and generated sources.
type MapResolver map[string]string

func (m MapResolver) Resolve(logicalPath string) (*Source, error) {
	name := normalizeName(logicalPath)
	src, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("blade: %q: %w", logicalPath, ErrNotFound)
	}
	return &Source{Path: name, Bytes: []byte(src), Fingerprint: fingerprint([]byte(src))}, nil
}

func (m MapResolver) List() ([]string, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// normalizeName strips quotes, spaces and extensions and converts
// dotted names to slash form: "pages.home" and "pages/home.blade" both
// become "pages/home".
func normalizeName(n string) string {
	n = strings.TrimSpace(n)
	n = strings.Trim(n, `"' `)
	for _, ext := range ValidFileExtensions {
		if strings.HasSuffix(n, ext) {
			n = strings.TrimSuffix(n, ext)
			break
		}
	}
	if !strings.Contains(n, "/") {
		n = strings.ReplaceAll(n, ".", "/")
	}
	return n
}
