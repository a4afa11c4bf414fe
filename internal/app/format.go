package app

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatDamageShort renders a damage value compactly: 1.5M, 12.3K, 950.
func FormatDamageShort(v int64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(v)/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.1fK", float64(v)/1_000)
	default:
		return fmt.Sprintf("%d", v)
	}
}

// FormatDamage renders a damage value with thousands separators.
func FormatDamage(v int64) string {
	return humanize.Comma(v)
}

// TruncateName shortens name to at most max runes.
func TruncateName(name string, max int) string {
	r := []rune(name)
	if len(r) <= max {
		return name
	}
	return string(r[:max])
}
