package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"
)

const chainFile = "_chain"

// FS stores each document version as <root>/<id>/<version>.json with a
// per-document chain file recording insertion order. Writes go through a
// temp file and rename.
type FS struct {
	root string
	mu   sync.Mutex
	log  *slog.Logger
}

// NewFS creates the root directory if needed.
func NewFS(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create root: %v", ErrStorage, err)
	}
	return &FS{
		root: root,
		log:  slog.Default().With("component", "store"),
	}, nil
}

// checkComponent rejects ids and versions that could escape the root when
// used as path elements. Foreign documents choose their own ids.
func checkComponent(s string) error {
	if s == "" || s == "." || s == ".." || s == chainFile {
		return fmt.Errorf("%w: unsafe path component %q", ErrStorage, s)
	}
	if strings.ContainsAny(s, "/\\\x00") {
		return fmt.Errorf("%w: unsafe path component %q", ErrStorage, s)
	}
	return nil
}

func (f *FS) docDir(id string) (string, error) {
	if err := checkComponent(id); err != nil {
		return "", err
	}
	return filepath.Join(f.root, id), nil
}

func (f *FS) versionPath(id, version string) (string, error) {
	dir, err := f.docDir(id)
	if err != nil {
		return "", err
	}
	if err := checkComponent(version); err != nil {
		return "", err
	}
	return filepath.Join(dir, version+".json"), nil
}

func (f *FS) Put(ctx context.Context, doc *contracts.Document) error {
	if _, err := storageKey(doc.ID, doc.Version); err != nil {
		return err
	}
	path, err := f.versionPath(doc.ID, doc.Version)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrVersionExists, doc.StorageKey())
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStorage, err)
	}
	if err := writeAtomic(path, raw); err != nil {
		return err
	}
	if err := f.appendChain(dir, doc.Version); err != nil {
		return err
	}

	f.log.Debug("document stored", "key", doc.StorageKey())
	return nil
}

func (f *FS) Get(ctx context.Context, id, version string) (*contracts.Document, error) {
	path, err := f.versionPath(id, version)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s:%s", ErrNotFound, id, version)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	var doc contracts.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s:%s: %v", ErrStorage, id, version, err)
	}
	return &doc, nil
}

func (f *FS) Latest(ctx context.Context, id string) (*contracts.Document, error) {
	versions, err := f.Versions(ctx, id)
	if err != nil {
		return nil, err
	}
	return f.Get(ctx, id, versions[len(versions)-1])
}

func (f *FS) Versions(ctx context.Context, id string) ([]string, error) {
	dir, err := f.docDir(id)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, chainFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return lines, nil
}

func (f *FS) appendChain(dir, version string) error {
	path := filepath.Join(dir, chainFile)
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: chain read: %v", ErrStorage, err)
	}
	updated := append(existing, []byte(version+"\n")...)
	return writeAtomic(path, updated)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}
