package nlq

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"nugget/internal/convo"
)

const isoDate = "2006-01-02"

var (
	prevWeekShiftRe = regexp.MustCompile(`그\s*전주|전전주`)
	explicitDateRe  = regexp.MustCompile(`(\d{4})[.\-/]\s?(\d{1,2})[.\-/]\s?(\d{1,2})`)
	monthDayRe      = regexp.MustCompile(`(\d{1,2})월\s*(\d{1,2})일`)
	bareMonthRe     = regexp.MustCompile(`(\d{1,2})월`)
	recentDaysRe    = regexp.MustCompile(`최근\s*(\d+)\s*일`)
)

// parseDates resolves the question's date window. Priority: relative shift
// against the last state, Korean relative phrases, explicit dates, none.
// The source tag feeds matching telemetry.
func parseDates(question string, last *convo.State, now time.Time) (DateRange, string) {
	today := now

	// 1. Relative shift: "그 전주" (or bare 전주 outside 지난주/이번주)
	// moves the previous window back one week.
	if last.HasDates() && mentionsPrevWeekShift(question) {
		start, err1 := time.Parse(isoDate, last.StartDate)
		end, err2 := time.Parse(isoDate, last.EndDate)
		if err1 == nil && err2 == nil {
			return DateRange{
				Start:           start.AddDate(0, 0, -7).Format(isoDate),
				End:             end.AddDate(0, 0, -7).Format(isoDate),
				IsRelativeShift: true,
			}, "relative_shift"
		}
	}

	// 2. Relative phrases.
	switch {
	case strings.Contains(question, "오늘"):
		d := today.Format(isoDate)
		return DateRange{Start: d, End: d}, "phrase"
	case strings.Contains(question, "어제"):
		d := today.AddDate(0, 0, -1).Format(isoDate)
		return DateRange{Start: d, End: d}, "phrase"
	case strings.Contains(question, "이번주") || strings.Contains(question, "이번 주"):
		return DateRange{Start: mondayOf(today).Format(isoDate), End: today.Format(isoDate)}, "phrase"
	case strings.Contains(question, "지난주") || strings.Contains(question, "지난 주"):
		monday := mondayOf(today).AddDate(0, 0, -7)
		return DateRange{Start: monday.Format(isoDate), End: monday.AddDate(0, 0, 6).Format(isoDate)}, "phrase"
	case strings.Contains(question, "이번달") || strings.Contains(question, "이번 달"):
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return DateRange{Start: first.Format(isoDate), End: today.Format(isoDate)}, "phrase"
	case strings.Contains(question, "지난달") || strings.Contains(question, "지난 달"):
		firstThis := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		firstPrev := firstThis.AddDate(0, -1, 0)
		return DateRange{Start: firstPrev.Format(isoDate), End: firstThis.AddDate(0, 0, -1).Format(isoDate)}, "phrase"
	}
	if m := recentDaysRe.FindStringSubmatch(question); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return DateRange{Start: today.AddDate(0, 0, -(n - 1)).Format(isoDate), End: today.Format(isoDate)}, "phrase"
		}
	}

	// 3. Explicit dates.
	if r, ok := parseExplicitDates(question, today); ok {
		return r, "explicit"
	}

	return DateRange{}, ""
}

// mentionsPrevWeekShift detects 그 전주/전전주, or a bare 전주 that is not
// part of 지난주/이번주 phrasing.
func mentionsPrevWeekShift(question string) bool {
	if prevWeekShiftRe.MatchString(question) {
		return true
	}
	if !strings.Contains(question, "전주") {
		return false
	}
	return !strings.Contains(question, "지난주") && !strings.Contains(question, "이번주")
}

func parseExplicitDates(question string, today time.Time) (DateRange, bool) {
	// YYYY-MM-DD / YYYY.MM.DD, one date or a range.
	if ms := explicitDateRe.FindAllStringSubmatch(question, 2); len(ms) > 0 {
		first, ok1 := buildDate(ms[0][1], ms[0][2], ms[0][3])
		if ok1 {
			if len(ms) > 1 {
				if second, ok2 := buildDate(ms[1][1], ms[1][2], ms[1][3]); ok2 {
					return orderedRange(first, second), true
				}
			}
			d := first.Format(isoDate)
			return DateRange{Start: d, End: d}, true
		}
	}

	// N월 N일, one day or a range.
	if ms := monthDayRe.FindAllStringSubmatch(question, 2); len(ms) > 0 {
		first, ok1 := buildDate(strconv.Itoa(today.Year()), ms[0][1], ms[0][2])
		if ok1 {
			if len(ms) > 1 {
				if second, ok2 := buildDate(strconv.Itoa(today.Year()), ms[1][1], ms[1][2]); ok2 {
					return orderedRange(first, second), true
				}
			}
			d := first.Format(isoDate)
			return DateRange{Start: d, End: d}, true
		}
	}

	// Bare N월: the whole month. Two distinct months span both.
	if ms := bareMonthRe.FindAllStringSubmatch(question, 2); len(ms) > 0 {
		firstMonth, err := strconv.Atoi(ms[0][1])
		if err == nil && firstMonth >= 1 && firstMonth <= 12 {
			start := time.Date(today.Year(), time.Month(firstMonth), 1, 0, 0, 0, 0, today.Location())
			end := start.AddDate(0, 1, -1)
			if len(ms) > 1 {
				if secondMonth, err := strconv.Atoi(ms[1][1]); err == nil &&
					secondMonth >= 1 && secondMonth <= 12 && secondMonth != firstMonth {
					other := time.Date(today.Year(), time.Month(secondMonth), 1, 0, 0, 0, 0, today.Location())
					if other.Before(start) {
						start = other
					} else {
						end = other.AddDate(0, 1, -1)
					}
				}
			}
			return DateRange{Start: start.Format(isoDate), End: end.Format(isoDate)}, true
		}
	}

	return DateRange{}, false
}

func buildDate(year, month, day string) (time.Time, bool) {
	t, err := time.Parse(isoDate, fmt.Sprintf("%s-%s-%s", year, pad2(month), pad2(day)))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func orderedRange(a, b time.Time) DateRange {
	if b.Before(a) {
		a, b = b, a
	}
	return DateRange{Start: a.Format(isoDate), End: b.Format(isoDate)}
}

// mondayOf returns the Monday of t's ISO week.
func mondayOf(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return t.AddDate(0, 0, 1-weekday)
}

// SpansMultipleMonths reports whether the window crosses a calendar month
// boundary. The planner uses it to pick yearMonth for month comparisons.
func (d DateRange) SpansMultipleMonths() bool {
	if d.IsZero() {
		return false
	}
	start, err1 := time.Parse(isoDate, d.Start)
	end, err2 := time.Parse(isoDate, d.End)
	if err1 != nil || err2 != nil {
		return false
	}
	return start.Year() != end.Year() || start.Month() != end.Month()
}
