package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a parsed change date. Month and Day are zero when the source only
// carried a coarser precision. Raw is the matched date text: the rule's
// date group when it has one, otherwise the whole match.
type Date struct {
	Year  int
	Month int
	Day   int
	Raw   string
}

// String renders the canonical form: YYYY年MM月DD日, YYYY年MM月 or YYYY年.
// Invalid dates render as their raw text.
func (d Date) String() string {
	if !d.valid() {
		return d.Raw
	}
	switch {
	case d.Day > 0:
		return fmt.Sprintf("%04d年%02d月%02d日", d.Year, d.Month, d.Day)
	case d.Month > 0:
		return fmt.Sprintf("%04d年%02d月", d.Year, d.Month)
	default:
		return fmt.Sprintf("%04d年", d.Year)
	}
}

func (d Date) valid() bool {
	if d.Year < 1 || d.Month < 0 || d.Month > 12 || d.Day < 0 || d.Day > 31 {
		return false
	}
	if d.Day == 0 {
		return true
	}
	if d.Month == 0 {
		return false
	}
	// Rejects days past the end of the month, e.g. 2月30日.
	t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
	return t.Day() == d.Day
}

var monthNames = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// parseDate builds a Date from a date rule's named groups: year, month,
// day, mname (English month), era and eyear (era year, 元 for 1). A date
// group, when present, bounds Raw to the date itself.
func parseDate(m Match, eras map[string]int) Date {
	g := m.Groups
	raw := m.Text
	if span, ok := g["date"]; ok {
		raw = span
	}
	d := Date{Raw: strings.TrimSpace(raw)}

	if era, ok := g["era"]; ok {
		offset, known := eras[era]
		if !known {
			return d
		}
		ey := 1
		if g["eyear"] != "元" {
			n, err := strconv.Atoi(g["eyear"])
			if err != nil {
				return d
			}
			ey = n
		}
		d.Year = offset + ey
	} else if y, err := strconv.Atoi(g["year"]); err == nil {
		d.Year = y
	}

	if name, ok := g["mname"]; ok && len(name) >= 3 {
		d.Month = present(monthNames[strings.ToLower(name[:3])])
	} else if mo, err := strconv.Atoi(g["month"]); err == nil {
		d.Month = present(mo)
	}
	if day, err := strconv.Atoi(g["day"]); err == nil {
		d.Day = present(day)
	}
	return d
}

// present maps a captured zero to -1 so that it fails validation instead of
// reading as "not captured".
func present(v int) int {
	if v == 0 {
		return -1
	}
	return v
}
