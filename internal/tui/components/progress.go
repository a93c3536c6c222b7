package components

import (
	"fmt"
	"strings"
)

// ProgressBar renders task completion as a fixed-width bar with a count
// suffix, for example "███░░░░░░░ 3/10". done is clamped into [0, total].
// Width is the character width of the bar portion; a non-positive width or
// total renders nothing.
func ProgressBar(done, total, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}

	if done < 0 {
		done = 0
	}
	if done > total {
		done = total
	}

	filled := done * width / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %d/%d", bar, done, total)
}
