package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// setupTestRepo creates a temporary git repository and returns its path.
func setupTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	cmd := exec.Command("git", "init")
	cmd.Dir = dir
	if err := cmd.Run(); err != nil {
		t.Fatalf("failed to init git repo: %v", err)
	}

	// Commits need an identity regardless of the host's global config.
	for _, args := range [][]string{
		{"config", "user.email", "test@test.com"},
		{"config", "user.name", "Test User"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if err := cmd.Run(); err != nil {
			t.Fatalf("git %s: %v", strings.Join(args, " "), err)
		}
	}

	return dir
}

// commitFile writes, stages, and commits a single file.
func commitFile(t *testing.T, dir, name, content, message string) {
	t.Helper()

	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	for _, args := range [][]string{
		{"add", name},
		{"commit", "-m", message},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if err := cmd.Run(); err != nil {
			t.Fatalf("git %s: %v", strings.Join(args, " "), err)
		}
	}
}

func TestGetStatus(t *testing.T) {
	t.Parallel()

	t.Run("empty repo is clean", func(t *testing.T) {
		t.Parallel()
		dir := setupTestRepo(t)

		status, err := GetStatus(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !status.Clean {
			t.Error("expected empty repo to be clean")
		}
		if len(status.Files) != 0 {
			t.Errorf("expected no files, got %v", status.Files)
		}
	})

	t.Run("untracked file makes repo dirty", func(t *testing.T) {
		t.Parallel()
		dir := setupTestRepo(t)

		if err := os.WriteFile(filepath.Join(dir, "newfile.txt"), []byte("content"), 0644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}

		status, err := GetStatus(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status.Clean {
			t.Error("expected repo with untracked file to be dirty")
		}
		if len(status.Files) != 1 || status.Files[0] != "newfile.txt" {
			t.Errorf("expected [newfile.txt], got %v", status.Files)
		}
	})

	t.Run("staged file makes repo dirty", func(t *testing.T) {
		t.Parallel()
		dir := setupTestRepo(t)

		if err := os.WriteFile(filepath.Join(dir, "staged.txt"), []byte("content"), 0644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
		cmd := exec.Command("git", "add", "staged.txt")
		cmd.Dir = dir
		if err := cmd.Run(); err != nil {
			t.Fatalf("failed to stage file: %v", err)
		}

		status, err := GetStatus(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status.Clean {
			t.Error("expected repo with staged file to be dirty")
		}
		if len(status.Files) != 1 || status.Files[0] != "staged.txt" {
			t.Errorf("expected [staged.txt], got %v", status.Files)
		}
	})

	t.Run("modified tracked file makes repo dirty", func(t *testing.T) {
		t.Parallel()
		dir := setupTestRepo(t)
		commitFile(t, dir, "tracked.txt", "original", "initial")

		if err := os.WriteFile(filepath.Join(dir, "tracked.txt"), []byte("modified"), 0644); err != nil {
			t.Fatalf("failed to modify file: %v", err)
		}

		status, err := GetStatus(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status.Clean {
			t.Error("expected repo with modified file to be dirty")
		}
		if len(status.Files) != 1 || status.Files[0] != "tracked.txt" {
			t.Errorf("expected [tracked.txt], got %v", status.Files)
		}
	})

	t.Run("committed changes leave repo clean", func(t *testing.T) {
		t.Parallel()
		dir := setupTestRepo(t)
		commitFile(t, dir, "committed.txt", "content", "add file")

		status, err := GetStatus(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !status.Clean {
			t.Errorf("expected repo with only committed changes to be clean, dirty: %v", status.Files)
		}
	})
}

func TestHeadSHA(t *testing.T) {
	t.Parallel()

	t.Run("empty before the first commit", func(t *testing.T) {
		t.Parallel()
		dir := setupTestRepo(t)

		if sha := HeadSHA(dir); sha != "" {
			t.Errorf("expected empty SHA in a repo with no commits, got %q", sha)
		}
	})

	t.Run("moves with each commit", func(t *testing.T) {
		t.Parallel()
		dir := setupTestRepo(t)
		commitFile(t, dir, "a.txt", "a", "first")

		first := HeadSHA(dir)
		if len(first) != 40 {
			t.Fatalf("expected a 40-char SHA, got %q", first)
		}

		commitFile(t, dir, "b.txt", "b", "second")
		if second := HeadSHA(dir); second == first {
			t.Error("expected HEAD to move after a new commit")
		}
	})
}

func TestIsRepository(t *testing.T) {
	t.Parallel()

	t.Run("true inside a work tree", func(t *testing.T) {
		t.Parallel()
		dir := setupTestRepo(t)

		if !IsRepository(dir) {
			t.Error("expected IsRepository to be true in an initialized repo")
		}
	})

	t.Run("false in a plain directory", func(t *testing.T) {
		t.Parallel()
		if IsRepository(t.TempDir()) {
			t.Error("expected IsRepository to be false outside a repo")
		}
	})
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	t.Run("stable when nothing changes", func(t *testing.T) {
		t.Parallel()
		dir := setupTestRepo(t)
		commitFile(t, dir, "base.txt", "base", "initial")
		if err := os.WriteFile(filepath.Join(dir, "dirty.txt"), []byte("draft"), 0644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}

		first := Fingerprint(dir)
		if second := Fingerprint(dir); second != first {
			t.Errorf("fingerprint drifted with no workspace change: %q then %q", first, second)
		}
	})

	t.Run("changes when a file appears", func(t *testing.T) {
		t.Parallel()
		dir := setupTestRepo(t)

		before := Fingerprint(dir)
		if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("content"), 0644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
		if after := Fingerprint(dir); after == before {
			t.Error("expected fingerprint to change when an untracked file appears")
		}
	})

	t.Run("changes when a dirty file is edited", func(t *testing.T) {
		t.Parallel()
		dir := setupTestRepo(t)

		if err := os.WriteFile(filepath.Join(dir, "draft.txt"), []byte("v1"), 0644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
		before := Fingerprint(dir)

		// Different length so the size component moves even where mtime
		// resolution is coarse.
		if err := os.WriteFile(filepath.Join(dir, "draft.txt"), []byte("v2 with more detail"), 0644); err != nil {
			t.Fatalf("failed to modify file: %v", err)
		}
		if after := Fingerprint(dir); after == before {
			t.Error("expected fingerprint to change when a dirty file is edited")
		}
	})

	t.Run("changes when dirty work is committed", func(t *testing.T) {
		t.Parallel()
		dir := setupTestRepo(t)

		if err := os.WriteFile(filepath.Join(dir, "work.txt"), []byte("work"), 0644); err != nil {
			t.Fatalf("failed to create file: %v", err)
		}
		before := Fingerprint(dir)

		commitFile(t, dir, "work.txt", "work", "land work")
		if after := Fingerprint(dir); after == before {
			t.Error("expected fingerprint to change after a commit")
		}
	})

	t.Run("degrades outside a repository", func(t *testing.T) {
		t.Parallel()
		if got := Fingerprint(t.TempDir()); got != "unavailable" {
			t.Errorf("got %q, want %q", got, "unavailable")
		}
	})
}
