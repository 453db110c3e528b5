package nlq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nugget/internal/convo"
)

// 2026-02-18 is a Wednesday.
var testNow = time.Date(2026, 2, 18, 10, 30, 0, 0, time.UTC)

func TestParseDatesPhrases(t *testing.T) {
	cases := []struct {
		question string
		start    string
		end      string
	}{
		{"오늘 사용자 알려줘", "2026-02-18", "2026-02-18"},
		{"어제 매출은?", "2026-02-17", "2026-02-17"},
		{"이번주 사용자", "2026-02-16", "2026-02-18"},
		{"지난주 채널별 사용자", "2026-02-09", "2026-02-15"},
		{"이번달 매출", "2026-02-01", "2026-02-18"},
		{"지난달 매출", "2026-01-01", "2026-01-31"},
		{"최근 7일 추이", "2026-02-12", "2026-02-18"},
	}
	for _, tc := range cases {
		t.Run(tc.question, func(t *testing.T) {
			got, source := parseDates(tc.question, nil, testNow)
			assert.Equal(t, tc.start, got.Start)
			assert.Equal(t, tc.end, got.End)
			assert.Equal(t, "phrase", source)
			assert.False(t, got.IsRelativeShift)
		})
	}
}

func TestParseDatesExplicit(t *testing.T) {
	cases := []struct {
		question string
		start    string
		end      string
	}{
		{"2026-02-01부터 2026-02-10까지 매출", "2026-02-01", "2026-02-10"},
		{"2026.2.3 매출 알려줘", "2026-02-03", "2026-02-03"},
		{"2월 5일 사용자", "2026-02-05", "2026-02-05"},
		{"2월 1일부터 2월 10일까지", "2026-02-01", "2026-02-10"},
		{"1월 매출 알려줘", "2026-01-01", "2026-01-31"},
		{"1월과 2월 매출 비교", "2026-01-01", "2026-02-28"},
	}
	for _, tc := range cases {
		t.Run(tc.question, func(t *testing.T) {
			got, source := parseDates(tc.question, nil, testNow)
			assert.Equal(t, tc.start, got.Start)
			assert.Equal(t, tc.end, got.End)
			assert.Equal(t, "explicit", source)
		})
	}
}

func TestParseDatesRelativeShift(t *testing.T) {
	last := &convo.State{StartDate: "2026-02-09", EndDate: "2026-02-15"}

	got, source := parseDates("그 전주 사용자는?", last, testNow)
	require.Equal(t, "relative_shift", source)
	assert.Equal(t, "2026-02-02", got.Start)
	assert.Equal(t, "2026-02-08", got.End)
	assert.True(t, got.IsRelativeShift)
}

func TestParseDatesBarePrevWeekShift(t *testing.T) {
	last := &convo.State{StartDate: "2026-02-09", EndDate: "2026-02-15"}

	// Bare 전주 shifts, but only when it is not part of 지난주/이번주.
	got, source := parseDates("전주 매출은?", last, testNow)
	assert.Equal(t, "relative_shift", source)
	assert.Equal(t, "2026-02-02", got.Start)

	got, source = parseDates("지난주 매출은?", last, testNow)
	assert.Equal(t, "phrase", source)
	assert.Equal(t, "2026-02-09", got.Start)
	assert.Equal(t, "2026-02-15", got.End)
}

func TestParseDatesShiftWithoutLastState(t *testing.T) {
	got, source := parseDates("그 전주 매출은?", nil, testNow)
	assert.True(t, got.IsZero())
	assert.Empty(t, source)
}

func TestParseDatesNone(t *testing.T) {
	got, source := parseDates("채널별 사용자 알려줘", nil, testNow)
	assert.True(t, got.IsZero())
	assert.Empty(t, source)
}

func TestSpansMultipleMonths(t *testing.T) {
	assert.False(t, DateRange{Start: "2026-02-01", End: "2026-02-28"}.SpansMultipleMonths())
	assert.True(t, DateRange{Start: "2026-01-01", End: "2026-02-28"}.SpansMultipleMonths())
	assert.True(t, DateRange{Start: "2025-12-01", End: "2026-01-31"}.SpansMultipleMonths())
	assert.False(t, DateRange{}.SpansMultipleMonths())
}

func TestMondayOf(t *testing.T) {
	// Sunday belongs to the week that started the previous Monday.
	sunday := time.Date(2026, 2, 22, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-02-16", mondayOf(sunday).Format(isoDate))

	monday := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-02-16", mondayOf(monday).Format(isoDate))
}
