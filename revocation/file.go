package revocation

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/gatekeep/go-jwt-gate/core"
)

// fileDocument is the YAML layout of a revocation file:
//
//	revoked:
//	  - eyJhbGciOiJSUzI1NiIs...
//	  - 6f1c2b1e-0d7b-4f5e-9a53-1f0b2c3d4e5f
type fileDocument struct {
	Revoked []string `yaml:"revoked" validate:"dive,required"`
}

// FileList is a revocation list loaded from a YAML file and reloaded on
// demand.
type FileList struct {
	path     string
	list     *List
	validate *validator.Validate
}

// NewFileList loads path. A missing or invalid file is an error.
func NewFileList(path string) (*FileList, error) {
	f := &FileList{
		path:     path,
		list:     NewList(),
		validate: validator.New(),
	}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the file the list is loaded from.
func (f *FileList) Path() string {
	return f.path
}

// Reload reads the file again and replaces the list. On error the list
// keeps its previous contents.
func (f *FileList) Reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("failed to read revocation file: %w", err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse revocation file %s: %w", f.path, err)
	}
	if err := f.validate.Struct(doc); err != nil {
		return fmt.Errorf("invalid revocation file %s: %w", f.path, err)
	}

	f.list.Replace(doc.Revoked)
	return nil
}

// Len returns the number of loaded entries.
func (f *FileList) Len() int {
	return f.list.Len()
}

// IsRevoked implements core.RevocationChecker.
func (f *FileList) IsRevoked(ctx context.Context, token string, claims *core.ClaimSet) (bool, error) {
	return f.list.IsRevoked(ctx, token, claims)
}
