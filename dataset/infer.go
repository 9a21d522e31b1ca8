package dataset

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// TYPE INFERENCE — Classifies raw column values as numeric/temporal/text
// ============================================================================
// Heuristic classification over sampled values. 80%+ of non-empty values
// must match for a column to be typed numeric or temporal; everything else
// stays text. No AI involved.
// ============================================================================

const typeThreshold = 0.8

// InferType classifies a column from its sampled values.
func InferType(values []string) ColumnType {
	numCount := 0
	dateCount := 0
	total := 0

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, "null") || strings.EqualFold(v, "n/a") {
			continue
		}
		total++
		if isNumeric(v) {
			numCount++
		}
		if isTemporal(v) {
			dateCount++
		}
	}

	if total == 0 {
		return TypeText
	}

	threshold := int(float64(total) * typeThreshold)
	if threshold == 0 {
		threshold = 1
	}

	// Temporal wins over numeric so bare years ("2026") stay temporal.
	if dateCount >= threshold {
		return TypeTemporal
	}
	if numCount >= threshold {
		return TypeNumeric
	}
	return TypeText
}

func isNumeric(s string) bool {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "") // handle "1,234.56"
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimPrefix(s, "£")
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"02/01/2006",
	"Jan-2006",
	"January 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

var monthPattern = regexp.MustCompile(`^(?:[A-Z][a-z]{2}-\d{4}|\d{4}-\d{2}|Q[1-4][-\s]\d{4})$`)

func isTemporal(s string) bool {
	s = strings.TrimSpace(s)
	if monthPattern.MatchString(s) {
		return true
	}
	for _, layout := range dateFormats {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// ParseNumber coerces a cell value to a float. Used by the sandbox for
// numeric comparison and aggregation.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimPrefix(s, "£")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FormatNumber renders a float the way result cells store it: no exponent,
// no trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
