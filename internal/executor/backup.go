package executor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/harrison/weaver/internal/filelock"
)

type backupEntry struct {
	existed bool
	mode    fs.FileMode
	created string // first directory that did not exist, removed on restore if empty
}

// Backup keeps byte-for-byte copies of the files one intersection touches so
// they can be restored if the intersection fails.
type Backup struct {
	root    string
	dir     string
	entries map[string]backupEntry
}

// NewBackup creates a backup of files under root, stored in dir.
func NewBackup(root, dir string) *Backup {
	return &Backup{root: root, dir: dir, entries: make(map[string]backupEntry)}
}

// Dir returns the backup directory.
func (b *Backup) Dir() string {
	return b.dir
}

// Save records the current state of rel. Files that do not exist are
// remembered as absent and removed again on restore. Saving twice is a no-op.
func (b *Backup) Save(rel string) error {
	if _, ok := b.entries[rel]; ok {
		return nil
	}
	src := filepath.Join(b.root, filepath.FromSlash(rel))
	info, err := os.Stat(src)
	if errors.Is(err, fs.ErrNotExist) {
		b.entries[rel] = backupEntry{created: firstMissingDir(filepath.Dir(src))}
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", rel, err)
	}
	if info.IsDir() {
		return fmt.Errorf("backup %s: is a directory", rel)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", rel, err)
	}
	dst := filepath.Join(b.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	if err := os.WriteFile(dst, data, 0600); err != nil {
		return fmt.Errorf("write backup of %s: %w", rel, err)
	}
	b.entries[rel] = backupEntry{existed: true, mode: info.Mode().Perm()}
	return nil
}

// Files returns the backed up paths, sorted.
func (b *Backup) Files() []string {
	files := make([]string, 0, len(b.entries))
	for rel := range b.entries {
		files = append(files, rel)
	}
	sort.Strings(files)
	return files
}

// Restore puts every saved file back as it was. All files are attempted;
// the errors are joined.
func (b *Backup) Restore() error {
	var errs []error
	for _, rel := range b.Files() {
		entry := b.entries[rel]
		target := filepath.Join(b.root, filepath.FromSlash(rel))
		if !entry.existed {
			if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("remove %s: %w", rel, err))
			}
			if entry.created != "" {
				removeEmptyDirs(entry.created, filepath.Dir(target))
			}
			continue
		}
		data, err := os.ReadFile(filepath.Join(b.dir, filepath.FromSlash(rel)))
		if err != nil {
			errs = append(errs, fmt.Errorf("read backup of %s: %w", rel, err))
			continue
		}
		if err := filelock.AtomicWrite(target, data); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", rel, err))
			continue
		}
		if err := os.Chmod(target, entry.mode); err != nil {
			errs = append(errs, fmt.Errorf("restore mode of %s: %w", rel, err))
		}
	}
	return errors.Join(errs...)
}

// Discard deletes the backup copies.
func (b *Backup) Discard() error {
	if err := os.RemoveAll(b.dir); err != nil {
		return fmt.Errorf("remove backup %s: %w", b.dir, err)
	}
	return nil
}

func firstMissingDir(dir string) string {
	missing := ""
	for {
		if _, err := os.Stat(dir); err == nil {
			return missing
		}
		missing = dir
		parent := filepath.Dir(dir)
		if parent == dir {
			return missing
		}
		dir = parent
	}
}

// removeEmptyDirs removes dir and its parents up to and including top while
// they are empty.
func removeEmptyDirs(top, dir string) {
	for {
		if err := os.Remove(dir); err != nil {
			return
		}
		if dir == top {
			return
		}
		dir = filepath.Dir(dir)
	}
}
