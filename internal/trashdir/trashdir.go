// Package trashdir implements freedesktop.org-style move-to-trash.
//
// The contract is best-effort: callers mark their in-memory state trashed
// regardless of whether the physical move succeeded, so a failure here only
// means the file lingers on disk until the next cleanup.
package trashdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
)

// Trasher moves paths into a trash directory instead of unlinking them.
type Trasher struct {
	filesDir string
	infoDir  string
}

// New returns a Trasher rooted at the user's XDG trash
// ($XDG_DATA_HOME/Trash).
func New() *Trasher {
	base := filepath.Join(xdg.DataHome, "Trash")
	return NewAt(base)
}

// NewAt returns a Trasher rooted at an explicit directory. Used by tests and
// by deployments with a relocated trash.
func NewAt(base string) *Trasher {
	return &Trasher{
		filesDir: filepath.Join(base, "files"),
		infoDir:  filepath.Join(base, "info"),
	}
}

// Move relocates path (file or directory) into the trash and writes the
// .trashinfo sidecar. Name collisions get a numeric suffix.
func (t *Trasher) Move(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(abs); err != nil {
		return err
	}

	if err := os.MkdirAll(t.filesDir, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(t.infoDir, 0o755); err != nil {
		return err
	}

	name := filepath.Base(abs)
	target := filepath.Join(t.filesDir, name)
	info := filepath.Join(t.infoDir, name+".trashinfo")
	for counter := 1; exists(target) || exists(info); counter++ {
		suffixed := name + "." + strconv.Itoa(counter)
		target = filepath.Join(t.filesDir, suffixed)
		info = filepath.Join(t.infoDir, suffixed+".trashinfo")
	}

	// Sidecar first: per the trash spec a file without info is undeletable
	// cruft, the reverse is merely a stale record.
	sidecar := fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n",
		abs, time.Now().Format("2006-01-02T15:04:05"))
	if err := os.WriteFile(info, []byte(sidecar), 0o644); err != nil {
		return err
	}

	if err := os.Rename(abs, target); err != nil {
		_ = os.Remove(info)
		return err
	}
	return nil
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}
