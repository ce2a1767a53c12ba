package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// pdfDateRe captures the digits of a PDF date string and an optional UTC offset:
// D:YYYYMMDD[HHmm[SS]][Z|+HH'mm'|-HH'mm'].
var pdfDateRe = regexp.MustCompile(`(\d{14}|\d{12}|\d{8})(Z|[+-]\d{2}(?:'?\d{2}'?)?)?`)

var pdfDateLayouts = map[int]string{
	14: "20060102150405",
	12: "200601021504",
	8:  "20060102",
}

// ParsePDFDate parses the PDF date encoding with 8, 12 or 14 digits of
// precision. An offset, when present, sets the location of the result.
func ParsePDFDate(s string) (time.Time, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "D:")

	m := pdfDateRe.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, fmt.Errorf("invalid PDF date: %q", s)
	}

	loc, err := pdfDateLocation(m[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid PDF date offset %q: %w", s, err)
	}

	t, err := time.ParseInLocation(pdfDateLayouts[len(m[1])], m[1], loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid PDF date %q: %w", s, err)
	}
	return t, nil
}

func pdfDateLocation(offset string) (*time.Location, error) {
	if offset == "" || offset == "Z" {
		return time.UTC, nil
	}

	sign := 1
	if offset[0] == '-' {
		sign = -1
	}
	digits := strings.ReplaceAll(offset[1:], "'", "")

	hours, err := strconv.Atoi(digits[:2])
	if err != nil {
		return nil, err
	}
	minutes := 0
	if len(digits) >= 4 {
		if minutes, err = strconv.Atoi(digits[2:4]); err != nil {
			return nil, err
		}
	}
	if hours > 23 || minutes > 59 {
		return nil, fmt.Errorf("offset out of range")
	}
	return time.FixedZone("", sign*(hours*3600+minutes*60)), nil
}

// documentDate picks the creation date, falling back to the modification date.
// It returns nil with a fault when neither parses.
func documentDate(created, modified string) (*time.Time, *Fault) {
	var errs []string
	for _, candidate := range []struct{ field, value string }{
		{"CreationDate", created},
		{"ModDate", modified},
	} {
		if strings.TrimSpace(candidate.value) == "" {
			continue
		}
		t, err := ParsePDFDate(candidate.value)
		if err == nil {
			return &t, nil
		}
		errs = append(errs, fmt.Sprintf("%s: %v", candidate.field, err))
	}
	if len(errs) == 0 {
		return nil, nil
	}
	return nil, &Fault{
		Kind:  FaultDate,
		Scope: "CreationDate",
		Err:   fmt.Errorf("%w: %s", errNoDate, strings.Join(errs, "; ")),
	}
}
