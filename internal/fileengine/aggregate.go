package fileengine

import (
	"sort"
	"strings"

	"nugget/internal/exec"
)

const aggMaxRows = 200

type aggOp string

const (
	opSum   aggOp = "sum"
	opMean  aggOp = "mean"
	opMax   aggOp = "max"
	opMin   aggOp = "min"
	opCount aggOp = "count"
)

func (op aggOp) label() string {
	switch op {
	case opMean:
		return "평균"
	case opMax:
		return "최대"
	case opMin:
		return "최소"
	case opCount:
		return "건수"
	default:
		return "합계"
	}
}

// groupNameHints mark column names that usually denote categories worth
// grouping by.
var groupNameHints = []string{
	"유형", "type", "채널", "channel", "카테고리", "category",
	"country", "국가", "지역", "region", "상태", "status",
	"후원", "구분", "성별", "gender", "등급", "방법", "수단",
}

// metricNameHints route question vocabulary to likely column names.
var metricNameHints = []struct {
	triggers  []string
	fragments []string
}{
	{[]string{"매출", "금액", "수익", "가격"}, []string{"revenue", "amount", "price", "금액", "매출", "수익", "가격"}},
	{[]string{"사용자", "유저", "회원"}, []string{"user", "member", "회원", "사용자"}},
	{[]string{"클릭", "이벤트", "횟수"}, []string{"count", "event", "click", "cnt", "횟수"}},
}

// pickGroupColumn scores categorical and boolean columns: a literal mention
// in the question outranks a name hint, and a sane cardinality breaks ties.
func pickGroupColumn(question string, t *exec.Table, profiles []ColumnProfile) (string, bool) {
	lower := strings.ToLower(question)
	rows := t.Len()
	maxCard := 200
	if rows < maxCard {
		maxCard = rows
	}

	best, bestScore := "", 0
	for _, p := range profiles {
		if p.Type != TypeCategorical && p.Type != TypeBoolean {
			continue
		}
		score := 0
		name := strings.ToLower(p.Name)
		if name != "" && strings.Contains(lower, name) {
			score += 3
		}
		for _, hint := range groupNameHints {
			if strings.Contains(name, hint) {
				score += 2
				break
			}
		}
		if score == 0 {
			continue
		}
		if p.Unique >= 2 && p.Unique <= maxCard {
			score++
		}
		if score > bestScore {
			best, bestScore = p.Name, score
		}
	}
	return best, bestScore > 0
}

// pickMetricColumn chooses the numeric column to aggregate: a column named
// in the question wins, then the keyword mapping, then the first numeric.
func pickMetricColumn(question string, profiles []ColumnProfile) (string, bool) {
	lower := strings.ToLower(question)
	var numeric []ColumnProfile
	for _, p := range profiles {
		if p.Type == TypeNumeric {
			numeric = append(numeric, p)
		}
	}
	if len(numeric) == 0 {
		return "", false
	}

	for _, p := range numeric {
		if name := strings.ToLower(p.Name); name != "" && strings.Contains(lower, name) {
			return p.Name, true
		}
	}
	for _, hint := range metricNameHints {
		triggered := false
		for _, trig := range hint.triggers {
			if strings.Contains(lower, trig) {
				triggered = true
				break
			}
		}
		if !triggered {
			continue
		}
		for _, p := range numeric {
			name := strings.ToLower(p.Name)
			for _, frag := range hint.fragments {
				if strings.Contains(name, frag) {
					return p.Name, true
				}
			}
		}
	}
	return numeric[0].Name, true
}

func pickOp(question string) aggOp {
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "평균") || strings.Contains(q, "avg") || strings.Contains(q, "mean"):
		return opMean
	case strings.Contains(q, "최대") || strings.Contains(q, "최고") || strings.Contains(q, "max"):
		return opMax
	case strings.Contains(q, "최소") || strings.Contains(q, "최저") || strings.Contains(q, "min"):
		return opMin
	case strings.Contains(q, "개수") || strings.Contains(q, "건수") || strings.Contains(q, "count") || strings.Contains(q, "횟수"):
		return opCount
	default:
		return opSum
	}
}

type bucket struct {
	key  string
	sum  float64
	max  float64
	min  float64
	n    int
	rows int
}

// aggregate computes one value per group, descending, capped at aggMaxRows.
// Blank group keys are skipped; the value column keeps the metric's name,
// or "count" when only rows are counted.
func aggregate(t *exec.Table, groupCol, metricCol string, op aggOp) *exec.Table {
	valueCol := metricCol
	if op == opCount || metricCol == "" {
		valueCol = "count"
	}

	buckets := make(map[string]*bucket)
	var order []string
	for _, row := range t.Rows {
		key := strings.TrimSpace(row[groupCol].Str())
		if isBlankCell(key) {
			continue
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{key: key}
			buckets[key] = b
			order = append(order, key)
		}
		b.rows++
		if metricCol == "" {
			continue
		}
		v, ok := row[metricCol].Float64()
		if !ok {
			continue
		}
		if b.n == 0 || v > b.max {
			b.max = v
		}
		if b.n == 0 || v < b.min {
			b.min = v
		}
		b.sum += v
		b.n++
	}

	out := exec.NewTable(groupCol, valueCol)
	for _, key := range order {
		b := buckets[key]
		var v float64
		switch {
		case op == opCount || metricCol == "":
			v = float64(b.rows)
		case op == opMean:
			if b.n > 0 {
				v = b.sum / float64(b.n)
			}
		case op == opMax:
			v = b.max
		case op == opMin:
			v = b.min
		default:
			v = b.sum
		}
		out.Rows = append(out.Rows, exec.Row{
			groupCol: exec.String(key),
			valueCol: exec.Float(v),
		})
	}

	sort.SliceStable(out.Rows, func(i, j int) bool {
		a, _ := out.Rows[i][valueCol].Float64()
		b, _ := out.Rows[j][valueCol].Float64()
		if a != b {
			return a > b
		}
		return out.Rows[i][groupCol].Str() < out.Rows[j][groupCol].Str()
	})
	if len(out.Rows) > aggMaxRows {
		out.Rows = out.Rows[:aggMaxRows]
	}
	return out
}
