package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
)

var (
	dayFirstSlash = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	dayFirstDash  = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`)
	isoDate       = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})`)
	// OFX dates may carry a time and zone suffix: 20240310120000[-3:BRT]
	compactDate = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})`)
)

// fallbackLayouts are tried when none of the supported patterns match
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"02/01/06",
	"02.01.2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseDate accepts DD/MM/YYYY, DD-MM-YYYY, YYYY-MM-DD and YYYYMMDD (OFX), falling back to
// a set of common layouts. Day-first input is assumed for slash and dash dates; there is no
// month/day disambiguation. Returns false when nothing matches a valid calendar date.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.Trim(strings.TrimSpace(raw), `"'`)
	if s == "" {
		return time.Time{}, false
	}

	if m := dayFirstSlash.FindStringSubmatch(s); m != nil {
		return buildDate(m[3], m[2], m[1])
	}
	if m := dayFirstDash.FindStringSubmatch(s); m != nil {
		return buildDate(m[3], m[2], m[1])
	}
	if m := isoDate.FindStringSubmatch(s); m != nil {
		return buildDate(m[1], m[2], m[3])
	}
	if m := compactDate.FindStringSubmatch(s); m != nil {
		if d, ok := buildDate(m[1], m[2], m[3]); ok {
			return d, true
		}
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.TruncateToDate(t), true
		}
	}
	return time.Time{}, false
}

// buildDate rejects dates that time.Date would silently normalize (e.g. 31/02)
func buildDate(yearStr, monthStr, dayStr string) (time.Time, bool) {
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 {
		return time.Time{}, false
	}

	d := domain.NewDate(year, time.Month(month), day)
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	return d, true
}
