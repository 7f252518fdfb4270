// Package formatting parses and formats the loosely structured values that
// cross the service boundary: byte sizes, data URLs and model JSON replies.
package formatting

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var units = []string{"B", "KB", "MB", "GB", "TB"}

var bytesPattern = regexp.MustCompile(`^(\d+\.?\d*)\s*([A-Za-z]*)$`)

// FormatBytes renders n with base-1024 units and one decimal, e.g. "1.5 MB".
func FormatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}

	i := min(int(math.Log(float64(n))/math.Log(1024)), len(units)-1)
	return strconv.FormatFloat(float64(n)/math.Pow(1024, float64(i)), 'f', 1, 64) + " " + units[i]
}

// ParseBytes parses sizes such as "512KB", "4 mb" or "1024" (bytes).
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	m := bytesPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	unit := strings.ToUpper(m[2])
	if unit == "" {
		return int64(value), nil
	}

	idx := slices.Index(units, unit)
	if idx == -1 {
		return 0, fmt.Errorf("unknown byte size unit: %q", m[2])
	}
	return int64(value * math.Pow(1024, float64(idx))), nil
}
