package utils

import (
	"fmt"
	"math"
	"time"
)

// Terminal color codes used by the command line output.
const (
	SuccessColor = "\x1b[92m"
	ErrorColor   = "\x1b[31m"
	DefaultColor = "\x1b[39m"
)

// FormatTime formats time.Duration output to a human readable value.
// Durations under a minute keep two decimals.
func FormatTime(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm:%ds", int64(d.Minutes()), int64(math.Mod(d.Seconds(), 60)))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh:%dm:%ds",
			int64(d.Hours()), int64(math.Mod(d.Minutes(), 60)), int64(math.Mod(d.Seconds(), 60)))
	}
	return fmt.Sprintf("%dd:%dh:%dm:%ds",
		int64(d.Hours()/24), int64(math.Mod(d.Hours(), 24)),
		int64(math.Mod(d.Minutes(), 60)), int64(math.Mod(d.Seconds(), 60)))
}

// Colorize wraps s in the given color when enabled is set.
func Colorize(s, color string, enabled bool) string {
	if !enabled {
		return s
	}
	return color + s + DefaultColor
}
