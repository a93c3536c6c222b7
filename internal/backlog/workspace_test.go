package backlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenWorkspace_NotInitialized(t *testing.T) {
	_, err := OpenWorkspace(t.TempDir())
	if err == nil {
		t.Fatal("expected error for a bare directory")
	}
	if !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("got %q, want a not-initialized error", err.Error())
	}
}

func TestOpenWorkspace_MissingLedger(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".storyrunner"), 0755); err != nil {
		t.Fatal(err)
	}

	_, err := OpenWorkspace(root)
	if err == nil {
		t.Fatal("expected error when status.yaml is missing")
	}
	if !strings.Contains(err.Error(), "status.yaml not found") {
		t.Errorf("got %q, want a missing-ledger error", err.Error())
	}
}

func TestInitWorkspace_ScaffoldsLayout(t *testing.T) {
	root := t.TempDir()

	ws, err := InitWorkspace(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, dir := range []string{ws.StateDir(), ws.StoriesDir(), ws.EpicsDir()} {
		info, serr := os.Stat(dir)
		if serr != nil || !info.IsDir() {
			t.Errorf("expected directory %s", dir)
		}
	}

	// The starter ledger is comment-only and must parse as an empty ledger.
	ledger, err := ws.Ledger()
	if err != nil {
		t.Fatalf("starter ledger unreadable: %v", err)
	}
	if got := len(ledger.Stories()); got != 0 {
		t.Errorf("got %d stories in a fresh workspace, want 0", got)
	}

	if _, err := OpenWorkspace(root); err != nil {
		t.Errorf("OpenWorkspace after init: %v", err)
	}
}

func TestInitWorkspace_RefusesExistingState(t *testing.T) {
	root := t.TempDir()
	if _, err := InitWorkspace(root); err != nil {
		t.Fatalf("first init: %v", err)
	}

	_, err := InitWorkspace(root)
	if err == nil {
		t.Fatal("expected error on second init")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("got %q, want an already-exists error", err.Error())
	}
}

func TestWorkspace_Paths(t *testing.T) {
	ws := &Workspace{Root: "/work"}

	tests := []struct {
		got  string
		want string
	}{
		{ws.LedgerPath(), "/work/.storyrunner/status.yaml"},
		{ws.ReportPath(), "/work/.storyrunner/report.md"},
		{ws.ConfigPath(), "/work/.storyrunner/config.yaml"},
		{ws.LockPath(), "/work/.storyrunner/run.lock"},
		{ws.StoryPath(Key{Epic: 3, Story: 2, Slug: "user-auth"}), "/work/.storyrunner/stories/3-2-user-auth.md"},
		{ws.EpicPath(3), "/work/.storyrunner/epics/epic-3.md"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestWorkspace_RunDirCreatesSubdirs(t *testing.T) {
	ws := testWorkspace(t)

	dir, err := ws.RunDir("20260102-030405-abcd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, sub := range []string{"attempts", "review"} {
		info, serr := os.Stat(filepath.Join(dir, sub))
		if serr != nil || !info.IsDir() {
			t.Errorf("expected %s under the run dir", sub)
		}
	}
}
