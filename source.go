package goodr

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultExtensions are the file extensions recognized as ASN.1 sources
// when listing directories.
var DefaultExtensions = []string{".asn", ".asn1"}

// Source lists ASN.1 source files.
type Source interface {
	// ListFiles returns the file paths in a stable order.
	ListFiles() ([]string, error)

	// ReadFile returns the content of a path returned by ListFiles.
	ReadFile(path string) ([]byte, error)
}

// SourceOption configures a directory source.
type SourceOption func(*sourceConfig)

type sourceConfig struct {
	extensions []string
}

func defaultSourceConfig() sourceConfig {
	return sourceConfig{
		extensions: DefaultExtensions,
	}
}

// WithExtensions sets the file extensions to recognize for this source.
func WithExtensions(exts ...string) SourceOption {
	return func(c *sourceConfig) {
		c.extensions = exts
	}
}

// --- Files Source (explicit paths) ---

type fileSource struct {
	paths []string
}

// Files creates a Source over the given paths, in the given order.
func Files(paths ...string) Source {
	return &fileSource{paths: slices.Clone(paths)}
}

func (s *fileSource) ListFiles() ([]string, error) {
	return slices.Clone(s.paths), nil
}

func (s *fileSource) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// --- Dir Source (single directory) ---

type dirSource struct {
	path   string
	config sourceConfig
}

// Dir creates a Source over the matching files of a single directory (no
// recursion), in name order.
func Dir(path string, opts ...SourceOption) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}
	cfg := defaultSourceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &dirSource{path: path, config: cfg}, nil
}

func (s *dirSource) ListFiles() ([]string, error) {
	extSet := makeExtensionSet(s.config.extensions)
	var files []string

	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.path, entry.Name())
		if hasValidExtension(path, extSet) {
			files = append(files, path)
		}
	}
	return files, nil
}

func (s *dirSource) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// --- FS Source (for embed.FS, testing) ---

type fsSource struct {
	fsys   fs.FS
	config sourceConfig
}

// FS creates a Source over the matching files of an fs.FS (e.g., embed.FS),
// walked in lexical order.
func FS(fsys fs.FS, opts ...SourceOption) Source {
	cfg := defaultSourceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &fsSource{fsys: fsys, config: cfg}
}

func (s *fsSource) ListFiles() ([]string, error) {
	extSet := makeExtensionSet(s.config.extensions)
	var files []string
	err := fs.WalkDir(s.fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && hasValidExtension(path, extSet) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func (s *fsSource) ReadFile(path string) ([]byte, error) {
	return fs.ReadFile(s.fsys, path)
}

// --- Helpers ---

func makeExtensionSet(extensions []string) map[string]struct{} {
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		set[strings.ToLower(ext)] = struct{}{}
	}
	return set
}

func hasValidExtension(path string, extSet map[string]struct{}) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := extSet[ext]
	return ok
}
