package notification

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Firefox", "firefox"},
		{"New Tab - Mozilla Firefox", "new-tab-mozilla-firefox"},
		{"Caffè  Réunion", "caffe-reunion"},
		{"__hidden__", "hidden"},
		{"!!!", "unnamed"},
		{"", "unnamed"},
		{"  spaces   everywhere  ", "spaces-everywhere"},
	}
	for _, c := range cases {
		if got := Slugify(c.in); got != c.want {
			t.Fatalf("Slugify(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFileName(t *testing.T) {
	runID := "abc123def456"
	got := FileName(runID, 7)
	if got != "abc123def456-7.json" {
		t.Fatalf("FileName = %q", got)
	}
}

func TestFileNameTruncation(t *testing.T) {
	long := strings.Repeat("a", 300)
	got := FileName(long, 1)
	if len(got) > MaxFileNameLength {
		t.Fatalf("file name too long: %d", len(got))
	}
	if !strings.HasSuffix(got, FileExt) {
		t.Fatalf("truncation lost extension: %q", got)
	}
}

func TestDefaultResolver(t *testing.T) {
	n := &Notification{AppName: "Firefox", Summary: "New Tab", ID: 1, RunID: "r1"}
	got := DefaultResolver("/tmp/store", n)
	want := filepath.Join("/tmp/store", "firefox", "new-tab", "r1-1.json")
	if got != want {
		t.Fatalf("resolved %q, want %q", got, want)
	}
}

func TestResolveWithEscapingResolverFallsBack(t *testing.T) {
	n := &Notification{AppName: "app", Summary: "sum", ID: 2, RunID: "r1"}
	escape := func(root string, n *Notification) string {
		return filepath.Join(root, "..", "outside", FileName(n.RunID, n.ID))
	}
	got := ResolveWith(escape, "/tmp/store", n)
	want := DefaultResolver("/tmp/store", n)
	if got != want {
		t.Fatalf("escaping resolver not rejected: %q", got)
	}
}

func TestTruncatePathBound(t *testing.T) {
	p := "/root/" + strings.Repeat("x", MaxFilePathLength)
	if got := TruncatePath(p); len(got) > MaxFilePathLength {
		t.Fatalf("path too long: %d", len(got))
	}
}

func TestIsNotificationFile(t *testing.T) {
	if !IsNotificationFile("r1-1.json") {
		t.Fatalf("expected notification file")
	}
	for _, name := range []string{SettingsFileName, SoundFileName, "readme.txt"} {
		if IsNotificationFile(name) {
			t.Fatalf("%q misclassified as notification file", name)
		}
	}
}
