package respond

import (
	"math"
	"strconv"
	"strings"

	"nugget/internal/exec"
)

// unitClasses map metric-key fragments to display units, checked in
// order: purchaseRevenue must hit 원 before 회, totalPurchasers must hit
// 명 before 회.
var unitClasses = []struct {
	fragments []string
	unit      string
}{
	{[]string{"rate", "ratio"}, "%"},
	{[]string{"revenue", "amount", "adspend", "tax", "shipping", "refund"}, "원"},
	{[]string{"user", "visitor", "purchaser", "buyer"}, "명"},
	{[]string{"session", "event", "transaction", "purchase"}, "회"},
}

// Unit returns the display unit inferred from a metric key, or "" for a
// unitless metric.
func Unit(metricKey string) string {
	lower := strings.ToLower(metricKey)
	for _, class := range unitClasses {
		for _, fragment := range class.fragments {
			if strings.Contains(lower, fragment) {
				return class.unit
			}
		}
	}
	return ""
}

// FormatMetric renders a numeric metric value with its inferred unit.
// Percent-class values in [0,1] are scaled to percent first.
func FormatMetric(metricKey string, v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	unit := Unit(metricKey)
	if unit == "%" {
		if v >= 0 && v <= 1 {
			v *= 100
		}
		return trimFloat(v) + "%"
	}
	return groupDigits(trimFloat(v)) + unit
}

// FormatMetricText formats s when it is a plain number. Anything already
// carrying separators or a unit passes through untouched, which keeps
// formatting idempotent.
func FormatMetricText(metricKey, s string) string {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return s
	}
	return FormatMetric(metricKey, f)
}

// FormatValue renders one metric cell for display.
func FormatValue(metricKey string, v exec.Value) string {
	switch v.Kind() {
	case exec.KindFloat:
		f, _ := v.Float64()
		return FormatMetric(metricKey, f)
	case exec.KindString:
		return FormatMetricText(metricKey, v.Str())
	case exec.KindBool:
		return v.Str()
	default:
		return ""
	}
}

// FormatDimension renders a dimension value: compact report dates spread
// into ISO form, yearMonth always as YYYY-MM. Already-formatted values
// pass through.
func FormatDimension(dimKey, raw string) string {
	switch dimKey {
	case "yearMonth":
		if len(raw) == 6 && allDigits(raw) {
			return raw[:4] + "-" + raw[4:]
		}
	case "date":
		if len(raw) == 8 && allDigits(raw) {
			return raw[:4] + "-" + raw[4:6] + "-" + raw[6:]
		}
	}
	return raw
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// trimFloat renders with at most two decimals, dropping trailing zeros.
func trimFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// groupDigits inserts thousands separators into the integer part.
func groupDigits(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i := 0; i < len(intPart); i++ {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteByte(intPart[i])
	}
	if fracPart != "" {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}
