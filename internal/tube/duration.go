package tube

import (
	"fmt"
	"strings"
	"time"
)

// ParseISODuration parses the ISO-8601 durations the video API returns,
// e.g. "PT2M45S", "PT1H", "PT30S". Date components are not supported;
// anything with days is far past the short-form ceiling anyway.
func ParseISODuration(s string) (time.Duration, error) {
	rest, ok := strings.CutPrefix(s, "PT")
	if !ok || rest == "" {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	var total time.Duration
	num := ""
	for _, r := range rest {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'H' || r == 'M' || r == 'S':
			if num == "" {
				return 0, fmt.Errorf("invalid duration %q", s)
			}
			var n int
			fmt.Sscanf(num, "%d", &n)
			switch r {
			case 'H':
				total += time.Duration(n) * time.Hour
			case 'M':
				total += time.Duration(n) * time.Minute
			case 'S':
				total += time.Duration(n) * time.Second
			}
			num = ""
		default:
			return 0, fmt.Errorf("invalid duration %q", s)
		}
	}
	if num != "" {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	return total, nil
}
