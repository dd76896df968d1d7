package main

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const encryptedExt = ".enc"

// readInputFile reads the whole file into memory
func readInputFile(name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s not found\n  Make sure %s is in the current directory: %w", name, filepath.Base(name), err)
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("cannot read %s (permission denied): %w", name, err)
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place, so a failure never leaves a truncated file.
func writeFileAtomic(name string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(name)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmpName, name); err != nil {
		return fmt.Errorf("renaming into %s: %w", name, err)
	}
	committed = true
	return nil
}

func fileExists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

func defaultOutputPath(input string) string {
	return input + encryptedExt
}

// defaultDecryptPath strips the .enc suffix, or appends .dec if there is none
func defaultDecryptPath(input string) string {
	if trimmed := strings.TrimSuffix(input, encryptedExt); trimmed != input && trimmed != "" {
		return trimmed
	}
	return input + ".dec"
}

// isGitignored reports whether a .gitignore between name's directory and the
// repository root has a pattern matching it. Deeper files override
// shallower ones. Outside a repository only the file's own directory is
// consulted.
func isGitignored(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}

	dirs := gitignoreDirs(filepath.Dir(abs))
	ignored := false
	for i := len(dirs) - 1; i >= 0; i-- {
		rel, err := filepath.Rel(dirs[i], abs)
		if err != nil {
			continue
		}
		if v, ok := matchGitignoreFile(filepath.Join(dirs[i], ".gitignore"), filepath.ToSlash(rel)); ok {
			ignored = v
		}
	}
	return ignored
}

// gitignoreDirs lists dir and its parents up to the directory holding .git
func gitignoreDirs(dir string) []string {
	var dirs []string
	for d := dir; ; {
		dirs = append(dirs, d)
		if _, err := os.Stat(filepath.Join(d, ".git")); err == nil {
			return dirs
		}
		parent := filepath.Dir(d)
		if parent == d {
			return []string{dir} // not in a repository
		}
		d = parent
	}
}

// matchGitignoreFile applies one .gitignore to rel, a slash-separated path
// relative to that file's directory. ok is false when no pattern matched.
func matchGitignoreFile(name, rel string) (ignored, ok bool) {
	f, err := os.Open(name)
	if err != nil {
		return false, false
	}
	defer func() { _ = f.Close() }()

	// An ignored parent directory ignores everything under it
	segments := strings.Split(rel, "/")
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		negate := strings.HasPrefix(line, "!")
		pattern := strings.TrimPrefix(line, "!")
		dirOnly := strings.HasSuffix(pattern, "/")
		pattern = strings.TrimSuffix(pattern, "/")
		anchored := strings.Contains(pattern, "/")
		pattern = strings.TrimPrefix(pattern, "/")
		if pattern == "" {
			continue
		}

		last := len(segments)
		if dirOnly {
			last-- // only parent directories can match
		}
		for n := 1; n <= last; n++ {
			var hit bool
			if anchored {
				hit = matchPathSegments(strings.Split(pattern, "/"), segments[:n])
			} else {
				hit, _ = path.Match(pattern, segments[n-1])
			}
			if hit {
				ignored, ok = !negate, true
				break
			}
		}
	}
	return ignored, ok
}

// matchPathSegments matches a slash pattern where "**" spans any number of
// directories
func matchPathSegments(pattern, name []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			pattern = pattern[1:]
			if len(pattern) == 0 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchPathSegments(pattern, name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		if hit, _ := path.Match(pattern[0], name[0]); !hit {
			return false
		}
		pattern, name = pattern[1:], name[1:]
	}
	return len(name) == 0
}

// formatSize returns a human-readable size string
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	const prefixes = "KMGTPE"
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp < len(prefixes)-1; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), prefixes[exp])
}
