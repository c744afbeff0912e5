package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/restexec/packages/rest"
	"gopkg.in/yaml.v3"
)

// Extensions lists the file extensions recognised as request files.
var Extensions = []string{".yaml", ".yml"}

// ParseError points at the offending request declaration.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// IsRequestFile reports whether path has a request file extension.
func IsRequestFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// Parse decodes and validates a request file. path is used for error
// messages and for resolving attachment paths.
func Parse(data []byte, path string) (*File, error) {
	file := &File{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Path: path, Message: "file is empty"}
		}
		return nil, &ParseError{Path: path, Message: err.Error()}
	}
	file.Path = path

	if len(file.Requests) == 0 {
		return nil, &ParseError{Path: path, Message: "no requests declared"}
	}

	names := make(map[string]int)
	for i, req := range file.Requests {
		if req == nil {
			return nil, &ParseError{Path: path, Message: fmt.Sprintf("request #%d is empty", i+1)}
		}
		if err := validateRequest(req); err != nil {
			return nil, &ParseError{Path: path, Line: req.Line, Message: err.Error()}
		}
		if req.Name != "" {
			if line, dup := names[req.Name]; dup {
				return nil, &ParseError{Path: path, Line: req.Line, Message: fmt.Sprintf("duplicate request name %q (first declared on line %d)", req.Name, line)}
			}
			names[req.Name] = req.Line
		}
	}

	return file, nil
}

func validateRequest(req *Request) error {
	if _, err := rest.ParseMethod(req.Method); err != nil {
		return err
	}
	if req.Resource == "" {
		return errors.New("resource is required")
	}

	if req.File != "" && req.Multipart != "" {
		return errors.New("file and multipart are mutually exclusive")
	}
	if req.File != "" && req.Body != "" {
		return errors.New("body and file are mutually exclusive")
	}
	if req.Repeat < 0 {
		return errors.New("repeat must not be negative")
	}
	return nil
}

// BaseDir returns the directory relative paths in the file resolve against.
func (f *File) BaseDir() string {
	return filepath.Dir(f.Path)
}

// ResolvePath resolves a path declared in the file. Relative paths are joined
// to the file's directory and may not escape it.
func (f *File) ResolvePath(p string) (string, error) {
	if p == "" || filepath.IsAbs(p) {
		return p, nil
	}
	resolved := filepath.Join(f.BaseDir(), p)
	if err := validatePathWithinBase(resolved, f.BaseDir()); err != nil {
		return "", err
	}
	return resolved, nil
}

// validatePathWithinBase checks that the resolved path stays within the base directory
// to prevent path traversal attacks
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}
