package notification

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Filesystem limits the storage path is truncated to. Truncation always
// preserves the file extension so trimmed files stay recognizable.
const (
	MaxFileNameLength = 255
	MaxFilePathLength = 4096
)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9_\s-]`)
	dashRuns     = regexp.MustCompile(`[-\s]+`)
)

// Slugify converts arbitrary text into a filesystem-safe folder name,
// django-style: NFKD normalize, drop non-ASCII, lowercase, strip everything
// but word characters / spaces / hyphens, collapse runs to single hyphens.
func Slugify(s string) string {
	s = norm.NFKD.String(s)

	var b strings.Builder
	for _, r := range s {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	s = strings.ToLower(b.String())
	s = nonSlugChars.ReplaceAllString(s, "")
	s = dashRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-_")
	if s == "" {
		return "unnamed"
	}
	return s
}

// FileName returns the storage filename for a (run id, id) pair, truncated
// to the filename limit with the extension preserved.
func FileName(runID string, id int) string {
	name := fmt.Sprintf("%s-%d", runID, id)
	if len(name) > MaxFileNameLength-len(FileExt) {
		name = name[:MaxFileNameLength-len(FileExt)]
	}
	return name + FileExt
}

// PathResolver decides where a notification is persisted. The default
// resolver derives the directory from app name and summary; deployments may
// install a custom resolver (per-folder subdir logic lives outside this
// core).
type PathResolver func(root string, n *Notification) string

// DefaultResolver places notifications under root/slug(app)/slug(summary).
func DefaultResolver(root string, n *Notification) string {
	dir := filepath.Join(root, Slugify(n.AppName), Slugify(n.Summary))
	return TruncatePath(filepath.Join(dir, FileName(n.RunID, n.ID)))
}

// ResolveWith applies a custom resolver and falls back to the default when
// the resolver fails or escapes the root. Custom subdir logic must stay
// below the tree it was configured for.
func ResolveWith(resolver PathResolver, root string, n *Notification) string {
	if resolver == nil {
		return DefaultResolver(root, n)
	}
	p := resolver(root, n)
	if p == "" {
		return DefaultResolver(root, n)
	}
	cleanRoot := filepath.Clean(root)
	if !strings.HasPrefix(filepath.Clean(p), cleanRoot+string(filepath.Separator)) {
		return DefaultResolver(root, n)
	}
	return TruncatePath(p)
}

// TruncatePath enforces the full-path limit, preserving the extension.
func TruncatePath(p string) string {
	if len(p) <= MaxFilePathLength {
		return p
	}
	ext := filepath.Ext(p)
	return p[:MaxFilePathLength-len(ext)] + ext
}

// IsNotificationFile reports whether a filename follows the persisted
// notification convention (recognized extension, not a reserved file).
func IsNotificationFile(name string) bool {
	return strings.HasSuffix(name, FileExt) && name != SettingsFileName
}
