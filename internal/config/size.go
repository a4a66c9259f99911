package config

import (
	"regexp"
	"strconv"
	"strings"
)

// sizeLiteralRe matches spec.md §6's size-literal grammar:
// ^[0-9]+(\.[0-9]+)?\s*(B|KB|MB|GB|TB|PB)$, case-insensitive.
var sizeLiteralRe = regexp.MustCompile(`(?i)^([0-9]+(?:\.[0-9]+)?)\s*(B|KB|MB|GB|TB|PB)$`)

var sizeUnits = map[string]float64{
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
	"TB": 1 << 40,
	"PB": 1 << 50,
}

// ParseSize parses a size literal like "512MB" into a byte count. It
// rejects null/empty/non-matching input with a structured InvalidConfig
// error, never panics or guesses.
func ParseSize(s string) (int64, error) {
	if s == "" {
		return 0, New(ErrInvalidConfig, "size literal is empty")
	}
	m := sizeLiteralRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, New(ErrInvalidConfig, "malformed size literal: "+s)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, Wrap(ErrInvalidConfig, "malformed size literal: "+s, err)
	}
	unit := sizeUnits[strings.ToUpper(m[2])]
	return int64(n * unit), nil
}

// FormatSize is ParseSize's inverse for the testable law
// parseSize(formatSize(n)) == n, n >= 0 up to PB. It always picks the
// largest unit that divides n exactly, falling back to bytes.
func FormatSize(n int64) string {
	if n == 0 {
		return "0B"
	}
	order := []string{"PB", "TB", "GB", "MB", "KB", "B"}
	for _, u := range order {
		unit := int64(sizeUnits[u])
		if n%unit == 0 {
			return strconv.FormatInt(n/unit, 10) + u
		}
	}
	return strconv.FormatInt(n, 10) + "B"
}
