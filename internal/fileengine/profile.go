// Package fileengine answers Korean questions over uploaded tables without
// the analytics backend. It profiles columns, detects intents on three
// keyword-driven levels, runs deterministic aggregations, and only falls
// back to the LLM port for free-form insight.
package fileengine

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"nugget/internal/exec"
)

// ColumnType is the inferred role of a column.
type ColumnType string

const (
	TypeNumeric     ColumnType = "numeric"
	TypeCategorical ColumnType = "categorical"
	TypeDate        ColumnType = "date"
	TypeBoolean     ColumnType = "boolean"
	TypeIdentifier  ColumnType = "identifier"
)

// ColumnProfile summarizes one column over the profiling sample.
type ColumnProfile struct {
	Name     string
	Type     ColumnType
	NonBlank int
	Unique   int
	Samples  []string
}

const (
	profileSampleRows = 1000
	maxSamples        = 5

	booleanThreshold = 0.95
	dateThreshold    = 0.90
	numericThreshold = 0.95
	idUniqueRatio    = 0.90

	// Integer columns with this few distinct values over this many rows
	// read as codes, not quantities.
	codeMaxUnique   = 5
	codeMinNonBlank = 40
)

var booleanTokens = map[string]struct{}{
	"y": {}, "n": {}, "yes": {}, "no": {},
	"true": {}, "false": {}, "0": {}, "1": {}, "t": {}, "f": {},
}

var blankCells = map[string]struct{}{
	"": {}, "null": {}, "nan": {}, "none": {}, "na": {}, "n/a": {},
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"20060102",
	"2006-01",
}

// Profile infers a type for every column from up to profileSampleRows rows.
// The order of checks matters: boolean tokens would otherwise parse as
// numbers, and compact dates as integers.
func Profile(t *exec.Table) []ColumnProfile {
	if t == nil {
		return nil
	}
	limit := len(t.Rows)
	if limit > profileSampleRows {
		limit = profileSampleRows
	}

	profiles := make([]ColumnProfile, 0, len(t.Columns))
	for _, col := range t.Columns {
		p := ColumnProfile{Name: col}
		var boolHits, dateHits, numHits int
		fractional := false
		seen := make(map[string]struct{})

		for i := 0; i < limit; i++ {
			cell := t.Rows[i][col]
			s := strings.TrimSpace(cell.Str())
			if cell.IsNull() || isBlankCell(s) {
				continue
			}
			p.NonBlank++
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				if len(p.Samples) < maxSamples {
					p.Samples = append(p.Samples, s)
				}
			}
			if _, ok := booleanTokens[strings.ToLower(s)]; ok || cell.Kind() == exec.KindBool {
				boolHits++
			}
			if _, ok := parseDate(s); ok {
				dateHits++
			}
			if f, ok := strictNumber(s); ok {
				numHits++
				if f != math.Trunc(f) {
					fractional = true
				}
			}
		}
		p.Unique = len(seen)
		p.Type = classify(col, p.NonBlank, boolHits, dateHits, numHits, p.Unique, !fractional)
		profiles = append(profiles, p)
	}
	return profiles
}

func classify(name string, nonBlank, boolHits, dateHits, numHits, unique int, integerLike bool) ColumnType {
	if nonBlank == 0 {
		return TypeCategorical
	}
	total := float64(nonBlank)
	switch {
	case float64(boolHits)/total >= booleanThreshold:
		return TypeBoolean
	case float64(dateHits)/total >= dateThreshold:
		return TypeDate
	}

	numericEnough := float64(numHits)/total >= numericThreshold
	mostlyUnique := float64(unique) >= idUniqueRatio*total
	if (numericEnough && integerLike && mostlyUnique) || idSuggestingName(name) {
		return TypeIdentifier
	}
	if numericEnough {
		codeLike := integerLike && unique <= codeMaxUnique && nonBlank >= codeMinNonBlank
		if !codeLike {
			return TypeNumeric
		}
	}
	return TypeCategorical
}

var idWordRe = regexp.MustCompile(`(^|[_\s-])(id|uuid|guid)([_\s-]|$)`)

func idSuggestingName(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if strings.Contains(n, "아이디") || strings.Contains(n, "식별자") || strings.Contains(n, "uuid") {
		return true
	}
	if idWordRe.MatchString(n) || strings.HasSuffix(n, "_id") {
		return true
	}
	// Glued forms like userid or orderid, but never words that merely end
	// in "id" (paid, valid).
	if stem, ok := strings.CutSuffix(n, "id"); ok {
		switch stem {
		case "user", "member", "order", "item", "session", "event", "customer", "product", "transaction":
			return true
		}
	}
	return false
}

func isBlankCell(s string) bool {
	_, ok := blankCells[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// strictNumber parses display numbers (thousand separators allowed) but,
// unlike exec.ParseNumeric, refuses strings that merely contain digits.
func strictNumber(s string) (float64, bool) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if clean == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var yearMonthCellRe = regexp.MustCompile(`^\d{4}-\d{2}$`)

// parseDate tries the known layouts and reports the value normalized to
// ISO form, YYYY-MM when the layout has no day.
func parseDate(s string) (string, bool) {
	for _, layout := range dateLayouts {
		if layout == "2006-01" && !yearMonthCellRe.MatchString(s) {
			continue
		}
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if layout == "2006-01" {
			return t.Format("2006-01"), true
		}
		return t.Format("2006-01-02"), true
	}
	return "", false
}

func findProfile(profiles []ColumnProfile, name string) (ColumnProfile, bool) {
	for _, p := range profiles {
		if p.Name == name {
			return p, true
		}
	}
	return ColumnProfile{}, false
}

func typeLabel(t ColumnType) string {
	switch t {
	case TypeNumeric:
		return "숫자형"
	case TypeDate:
		return "날짜형"
	case TypeBoolean:
		return "불리언"
	case TypeIdentifier:
		return "식별자"
	default:
		return "범주형"
	}
}
