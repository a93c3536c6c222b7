package git

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Status represents the git workspace status.
type Status struct {
	Clean bool
	Files []string
}

// GetStatus returns the git workspace status for the given directory.
// If dir is empty, uses the current working directory.
func GetStatus(dir string) (*Status, error) {
	cmd := exec.Command("git", "status", "--porcelain")
	if dir != "" {
		cmd.Dir = dir
	}

	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var files []string
	lines := strings.Split(string(output), "\n")
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		// git status --porcelain format: XY filename
		// XY is the status (2 chars), followed by a space and filename
		// e.g., "?? file.txt", " M file.txt", "A  file.txt"
		if len(line) > 3 {
			files = append(files, line[3:])
		} else {
			// Unexpected format, include the whole line as the filename
			// to avoid silently dropping entries
			files = append(files, strings.TrimSpace(line))
		}
	}

	return &Status{
		Clean: len(files) == 0,
		Files: files,
	}, nil
}

// HeadSHA returns the current HEAD commit SHA, or empty on a repository
// with no commits yet.
func HeadSHA(dir string) string {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	if dir != "" {
		cmd.Dir = dir
	}
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

// IsRepository reports whether dir is inside a git work tree.
func IsRepository(dir string) bool {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	if dir != "" {
		cmd.Dir = dir
	}
	return cmd.Run() == nil
}

// Fingerprint hashes the observable workspace state: HEAD, the porcelain
// status, and the modification times of every dirty file. Any commit, any
// new or removed dirty path, and any edit to an already-dirty file changes
// the fingerprint. Used by stall detection; errors degrade to a constant
// value rather than failing the caller.
func Fingerprint(dir string) string {
	h := sha256.New()
	fmt.Fprintln(h, HeadSHA(dir))

	status, err := GetStatus(dir)
	if err != nil {
		return "unavailable"
	}
	for _, f := range status.Files {
		fmt.Fprintln(h, f)
		if info, err := os.Stat(filepath.Join(dir, f)); err == nil {
			fmt.Fprintln(h, info.ModTime().UnixNano(), info.Size())
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}
