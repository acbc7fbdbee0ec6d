package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var amountCleanRe = regexp.MustCompile(`[,_\s¥$€£]|元|人民币|RMB|CNY|USD`)

// NormalizeAmount coerces a raw amount string to a plain decimal number.
// Thousands separators and common currency markers are stripped first.
func NormalizeAmount(raw string) (string, error) {
	s := amountCleanRe.ReplaceAllString(strings.TrimSpace(raw), "")
	if s == "" {
		return "", fmt.Errorf("empty amount")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", fmt.Errorf("not a number: %q", raw)
	}
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10), nil
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"2006.01.02",
	"2006.1.2",
	"2006年1月2日",
	"2006年01月02日",
	"20060102",
}

var monthLayouts = []string{
	"2006-01",
	"2006-1",
	"2006/01",
	"2006/1",
	"2006年1月",
	"2006年01月",
}

// NormalizeDate coerces a raw date string to ISO form. Full dates become
// YYYY-MM-DD; year-month values become YYYY-MM.
func NormalizeDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01"), nil
		}
	}
	return "", fmt.Errorf("not a date: %q", raw)
}

var durationRe = regexp.MustCompile(`^(\d+)\s*(.+?)$`)

var durationUnits = map[string]string{
	"day": "day", "days": "day", "天": "day", "日": "day",
	"month": "month", "months": "month", "月": "month", "个月": "month",
	"year": "year", "years": "year", "年": "year", "周年": "year",
}

// NormalizeDuration coerces a raw duration string to "<count><unit>" where
// unit is one of day, month or year.
func NormalizeDuration(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("not a duration: %q", raw)
	}
	unit, ok := durationUnits[strings.ToLower(strings.TrimSpace(m[2]))]
	if !ok {
		return "", fmt.Errorf("unknown duration unit: %q", raw)
	}
	return m[1] + unit, nil
}
