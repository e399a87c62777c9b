// Package vartree reads the installed-package database to find live
// packages and their saved build environments.
package vartree

import (
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultRoot is where portage keeps the installed-package database
const DefaultRoot = "/var/db/pkg"

var ErrNoEnvironment = errors.New("package has no saved environment")

// DB is the package database collaborator the scanner consumes. It is
// implemented by VarDB for the real system and MockDB in tests.
type DB interface {
	// Packages lists every installed package as category/package-version
	Packages() ([]string, error)

	// Inherited returns the eclasses a package's ebuild inherited
	Inherited(cpv string) ([]string, error)

	// Environment opens the package's saved environment blob
	Environment(cpv string) (io.ReadCloser, error)
}

// VarDB reads the on-disk /var/db/pkg database
type VarDB struct {
	root string
}

// NewVarDB opens the database under root, or DefaultRoot if empty
func NewVarDB(root string) *VarDB {
	if root == "" {
		root = DefaultRoot
	}
	return &VarDB{root: root}
}

// Packages walks the two-level category/package-version layout
func (db *VarDB) Packages() ([]string, error) {
	categories, err := os.ReadDir(db.root)
	if err != nil {
		return nil, fmt.Errorf("reading package database: %w", err)
	}

	var cpvs []string
	for _, cat := range categories {
		if !cat.IsDir() || strings.HasPrefix(cat.Name(), ".") {
			continue
		}
		pkgs, err := os.ReadDir(filepath.Join(db.root, cat.Name()))
		if err != nil {
			return nil, err
		}
		for _, pkg := range pkgs {
			if !pkg.IsDir() || strings.HasPrefix(pkg.Name(), "-MERGING-") {
				continue
			}
			cpvs = append(cpvs, cat.Name()+"/"+pkg.Name())
		}
	}
	return cpvs, nil
}

// Inherited reads the INHERITED metadata file
func (db *VarDB) Inherited(cpv string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(db.root, cpv, "INHERITED"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return strings.Fields(string(data)), nil
}

// Environment opens environment.bz2, falling back to an uncompressed
// environment file when present.
func (db *VarDB) Environment(cpv string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(db.root, cpv, "environment.bz2"))
	if err == nil {
		return &bz2ReadCloser{r: bzip2.NewReader(f), f: f}, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	f, err = os.Open(filepath.Join(db.root, cpv, "environment"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", cpv, ErrNoEnvironment)
		}
		return nil, err
	}
	return f, nil
}

// bz2ReadCloser closes the underlying file once the decompressed stream is
// no longer needed
type bz2ReadCloser struct {
	r io.Reader
	f *os.File
}

func (b *bz2ReadCloser) Read(p []byte) (int, error) { return b.r.Read(p) }

func (b *bz2ReadCloser) Close() error { return b.f.Close() }
