package fileengine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nugget/internal/exec"
)

func csvTable(t *testing.T, csv string) *exec.Table {
	t.Helper()
	table, err := exec.FromCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return table
}

func typeOf(t *testing.T, profiles []ColumnProfile, name string) ColumnType {
	t.Helper()
	p, ok := findProfile(profiles, name)
	require.True(t, ok, "column %s not profiled", name)
	return p.Type
}

func TestProfileInfersColumnTypes(t *testing.T) {
	table := csvTable(t, `user_id,name,amount,is_admin,created
u1,김철수,10000,y,2026-02-01
u2,이영희,5000,n,2026-02-01
u3,박민수,10000,n,2026-02-02
u4,최지우,15000,y,2026-02-03
u5,정다은,7000,n,2026-02-03
`)
	profiles := Profile(table)

	assert.Equal(t, TypeIdentifier, typeOf(t, profiles, "user_id"))
	assert.Equal(t, TypeCategorical, typeOf(t, profiles, "name"))
	assert.Equal(t, TypeNumeric, typeOf(t, profiles, "amount"))
	assert.Equal(t, TypeBoolean, typeOf(t, profiles, "is_admin"))
	assert.Equal(t, TypeDate, typeOf(t, profiles, "created"))
}

func TestProfileBooleanThreshold(t *testing.T) {
	var b strings.Builder
	b.WriteString("flag\n")
	for i := 0; i < 19; i++ {
		b.WriteString("y\n")
	}
	b.WriteString("maybe\n")
	profiles := Profile(csvTable(t, b.String()))
	assert.Equal(t, TypeBoolean, typeOf(t, profiles, "flag"), "19/20 tokens is exactly the threshold")

	b.Reset()
	b.WriteString("flag\n")
	for i := 0; i < 17; i++ {
		b.WriteString("y\n")
	}
	b.WriteString("maybe\nmaybe\nmaybe\n")
	profiles = Profile(csvTable(t, b.String()))
	assert.Equal(t, TypeCategorical, typeOf(t, profiles, "flag"))
}

func TestProfileDateThreshold(t *testing.T) {
	var b strings.Builder
	b.WriteString("when\n")
	for i := 1; i <= 9; i++ {
		fmt.Fprintf(&b, "2026-02-%02d\n", i)
	}
	b.WriteString("나중에\n")
	profiles := Profile(csvTable(t, b.String()))
	assert.Equal(t, TypeDate, typeOf(t, profiles, "when"))

	b.Reset()
	b.WriteString("when\n")
	for i := 1; i <= 8; i++ {
		fmt.Fprintf(&b, "2026-02-%02d\n", i)
	}
	b.WriteString("나중에\n곧\n")
	profiles = Profile(csvTable(t, b.String()))
	assert.Equal(t, TypeCategorical, typeOf(t, profiles, "when"))
}

func TestProfileIdentifierRules(t *testing.T) {
	// Unique integers read as an identifier even without an id name.
	var b strings.Builder
	b.WriteString("seq,score\n")
	for i := 1; i <= 20; i++ {
		fmt.Fprintf(&b, "%d,%d.%d\n", i, i, i%7)
	}
	profiles := Profile(csvTable(t, b.String()))
	assert.Equal(t, TypeIdentifier, typeOf(t, profiles, "seq"))
	assert.Equal(t, TypeNumeric, typeOf(t, profiles, "score"), "fractional values are measures, not ids")
}

func TestProfileIdNamesWinOverValues(t *testing.T) {
	table := csvTable(t, `orderid,paid
A-1,10000
A-1,5000
A-2,10000
`)
	profiles := Profile(table)
	assert.Equal(t, TypeIdentifier, typeOf(t, profiles, "orderid"))
	// "paid" merely ends in "id"; its repeating amounts stay numeric.
	assert.Equal(t, TypeNumeric, typeOf(t, profiles, "paid"))
}

func TestProfileCodeLikeIntegersStayCategorical(t *testing.T) {
	var b strings.Builder
	b.WriteString("grade\n")
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "%d\n", 1+i%3)
	}
	profiles := Profile(csvTable(t, b.String()))
	assert.Equal(t, TypeCategorical, typeOf(t, profiles, "grade"))
}

func TestProfileSkipsBlankCells(t *testing.T) {
	table := csvTable(t, `v
null
NaN

12.5
13.5
`)
	profiles := Profile(table)
	p, ok := findProfile(profiles, "v")
	require.True(t, ok)
	assert.Equal(t, 2, p.NonBlank)
	assert.Equal(t, TypeNumeric, p.Type)
}

func TestParseDateNormalizesLayouts(t *testing.T) {
	cases := map[string]string{
		"20260209":            "2026-02-09",
		"2026-02-09":          "2026-02-09",
		"2026/02/09":          "2026-02-09",
		"2026.02.09":          "2026-02-09",
		"2026-02":             "2026-02",
		"2026-02-09 10:30:00": "2026-02-09",
	}
	for in, want := range cases {
		got, ok := parseDate(in)
		assert.True(t, ok, "parseDate(%q)", in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"그냥 글", "1-5", "12345", ""} {
		_, ok := parseDate(in)
		assert.False(t, ok, "parseDate(%q) should fail", in)
	}
}
