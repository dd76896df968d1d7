package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalConfig holds configuration for the local directory store
type LocalConfig struct {
	Path string `yaml:"path,omitempty"` // directory for encrypted files
}

// LocalStore implements RemoteStore using a local (or mounted) directory
type LocalStore struct {
	path string
}

func newLocalStore(cfg *LocalConfig) (*LocalStore, error) {
	dir := ""
	if cfg != nil {
		dir = cfg.Path
	}
	if dir == "" {
		// Default to ~/.config/csvlock/store
		base := configDir()
		if base == "" {
			return nil, fmt.Errorf("could not determine home directory")
		}
		dir = filepath.Join(base, "store")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	debugLog("local store: %s", dir)
	return &LocalStore{path: dir}, nil
}

func (b *LocalStore) objectPath(name string) string {
	return filepath.Join(b.path, name)
}

func (b *LocalStore) Put(_ context.Context, name string, blob []byte, _ map[string]string) error {
	if err := validateObjectName(name); err != nil {
		return err
	}
	if err := writeFileAtomic(b.objectPath(name), blob, 0600); err != nil {
		return fmt.Errorf("writing %q to store: %w", name, err)
	}
	return nil
}

func (b *LocalStore) Get(_ context.Context, name string) ([]byte, map[string]string, error) {
	if err := validateObjectName(name); err != nil {
		return nil, nil, err
	}

	p := b.objectPath(name)
	blob, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%q not found in %s", name, b.path)
		}
		return nil, nil, fmt.Errorf("reading %q from store: %w", name, err)
	}

	meta := map[string]string{"path": p}
	if info, err := os.Stat(p); err == nil {
		meta["modified-at"] = info.ModTime().UTC().Format(time.RFC3339)
	}
	return blob, meta, nil
}

func (b *LocalStore) List(_ context.Context) ([]RemoteObject, error) {
	entries, err := os.ReadDir(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RemoteObject{}, nil
		}
		return nil, fmt.Errorf("reading store directory: %w", err)
	}

	var objects []RemoteObject
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue // temp files from writeFileAtomic
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		objects = append(objects, RemoteObject{
			Name:       name,
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	return objects, nil
}

func (b *LocalStore) Delete(_ context.Context, name string) error {
	if err := validateObjectName(name); err != nil {
		return err
	}

	err := os.Remove(b.objectPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%q not found in %s", name, b.path)
		}
		return fmt.Errorf("deleting %q from store: %w", name, err)
	}
	return nil
}
