package notify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nottray/internal/notification"
)

const themeSoundDir = "/usr/share/sounds/freedesktop/stereo"

// resolveSound picks the sound file for a unit, in precedence order:
// the suppress-sound hint silences it, a sound-file hint is used verbatim,
// a sound-name hint maps into the freedesktop theme, and otherwise the
// nearest per-folder sound override up the tree wins.
func (n *Notifier) resolveSound(c *notification.Cached) string {
	if c.SuppressSound() {
		return ""
	}
	if f := c.SoundFile(); f != "" {
		return f
	}
	if name := c.SoundName(); name != "" {
		return fmt.Sprintf("%s/%s.oga", themeSoundDir, name)
	}

	dir := folderOf(c)
	for {
		candidate := filepath.Join(dir, notification.SoundFileName)
		if st, err := os.Stat(candidate); err == nil && st.Mode().IsRegular() {
			return candidate
		}
		if dir == n.root || !strings.HasPrefix(dir, n.root) {
			return ""
		}
		dir = filepath.Dir(dir)
	}
}
