package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationRegex = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseDurationString converts strings like "10s", "5m", "1h" or "30d" into time.Duration.
func ParseDurationString(durationStr string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(durationStr))
	if s == "" || s == "0" {
		return 0, nil
	}

	matches := durationRegex.FindStringSubmatch(s)
	if len(matches) != 3 {
		return 0, fmt.Errorf("invalid duration string format: %s. Use '10s', '5m', '1h' or '7d'", durationStr)
	}

	value, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration numeric value: %s", matches[1])
	}

	var unit time.Duration
	switch matches[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}

	return time.Duration(value) * unit, nil
}

// Truncate shortens s to max runes, replacing the tail with "..." when it had to cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// TrimBaseURL drops trailing slashes so paths can be appended verbatim.
func TrimBaseURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}
