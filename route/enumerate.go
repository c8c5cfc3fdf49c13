package route

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const fixturePattern = "**/*.{yml,yaml,YML,YAML}"

// Files lists every fixture file under the root, hidden files and
// directories excluded, sorted.
func (d *Deriver) Files() ([]string, error) {
	info, err := os.Stat(d.root)
	if err != nil {
		return nil, fmt.Errorf("failed to access fixture root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fixture root %s is not a directory", d.root)
	}

	var files []string
	err = doublestar.GlobWalk(os.DirFS(d.root), fixturePattern, func(path string, entry fs.DirEntry) error {
		if entry.IsDir() || Hidden(path) || !IsFixture(path) {
			return nil
		}

		files = append(files, filepath.Join(d.root, filepath.FromSlash(path)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", d.root, err)
	}

	sort.Strings(files)

	return files, nil
}

// Enumerate derives a Registration for every fixture file under the root.
func (d *Deriver) Enumerate() ([]Registration, error) {
	files, err := d.Files()
	if err != nil {
		return nil, err
	}

	regs := make([]Registration, 0, len(files))
	for _, file := range files {
		reg, err := d.Derive(file)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}

	return regs, nil
}

// Dirs lists the root and every non-hidden directory beneath it.
func (d *Deriver) Dirs() ([]string, error) {
	return Subdirs(d.root)
}

// Subdirs lists dir and every non-hidden directory beneath it.
func Subdirs(dir string) ([]string, error) {
	dirs := []string{dir}

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped
			return nil
		}
		if !entry.IsDir() || path == dir {
			return nil
		}
		if strings.HasPrefix(entry.Name(), ".") {
			return filepath.SkipDir
		}

		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return dirs, nil
}

// Relative returns file relative to the root with forward slashes.
func (d *Deriver) Relative(file string) string {
	rel, err := filepath.Rel(d.root, file)
	if err != nil {
		return file
	}
	return filepath.ToSlash(rel)
}

// Hidden reports whether any segment of a slash separated path starts with a dot.
func Hidden(path string) bool {
	for _, segment := range strings.Split(path, "/") {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}
