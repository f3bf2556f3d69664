package chain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var counterSuffix = regexp.MustCompile(`\((\d+)\)$`)

// DatePrefix formats t as YYYY-MM-DD in t's location.
func DatePrefix(t time.Time) string {
	return t.Format("2006-01-02")
}

// NextName picks the name for a new chain created at now.
//
// The first chain of a day is named after the date. Once any chain name starts
// with the date, the new name is "<date> (n)" where n is one more than the
// highest trailing counter among those names; the bare date counts as 1.
// Only names currently in use are considered, so deleted chains free their
// counters.
func NextName(existing []string, now time.Time) string {
	prefix := DatePrefix(now)

	seen := false
	maxSuffix := 0
	for _, name := range existing {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		seen = true
		if name == prefix && maxSuffix < 1 {
			maxSuffix = 1
		}
		if m := counterSuffix.FindStringSubmatch(name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > maxSuffix {
				maxSuffix = n
			}
		}
	}
	if !seen {
		return prefix
	}
	return fmt.Sprintf("%s (%d)", prefix, maxSuffix+1)
}
