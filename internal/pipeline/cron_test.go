package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextCronTime_DailyAtFour(t *testing.T) {
	after := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	next, err := nextCronTime("0 4 * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 30, 4, 0, 0, 0, time.UTC), next)
}

func TestNextCronTime_SameDayWhenStillAhead(t *testing.T) {
	after := time.Date(2026, 8, 29, 2, 15, 0, 0, time.UTC)
	next, err := nextCronTime("0 4 * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 29, 4, 0, 0, 0, time.UTC), next)
}

func TestNextCronTime_EveryFifteenMinutes(t *testing.T) {
	after := time.Date(2026, 8, 29, 10, 7, 30, 0, time.UTC)
	next, err := nextCronTime("*/15 * * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 29, 10, 15, 0, 0, time.UTC), next)
}

func TestNextCronTime_StrictlyAfter(t *testing.T) {
	// A time exactly on the schedule advances to the next occurrence.
	after := time.Date(2026, 8, 29, 4, 0, 0, 0, time.UTC)
	next, err := nextCronTime("0 4 * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 30, 4, 0, 0, 0, time.UTC), next)
}

func TestNextCronTime_DayOfWeek(t *testing.T) {
	// 2026-08-29 is a Saturday; next Monday is the 31st.
	after := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	next, err := nextCronTime("30 6 * * 1", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 31, 6, 30, 0, 0, time.UTC), next)
}

func TestParseCronField_Forms(t *testing.T) {
	cases := []struct {
		field    string
		min, max int
		want     []int
	}{
		{"*", 0, 59, nil},
		{"5", 0, 59, []int{5}},
		{"1-3", 0, 59, []int{1, 2, 3}},
		{"0,30", 0, 59, []int{0, 30}},
		{"*/20", 0, 59, []int{0, 20, 40}},
	}
	for _, tc := range cases {
		f, err := parseCronField(tc.field, tc.min, tc.max)
		require.NoError(t, err, "field %q", tc.field)
		if tc.want == nil {
			assert.Nil(t, f.set, "field %q should be wildcard", tc.field)
			continue
		}
		require.Len(t, f.set, len(tc.want), "field %q", tc.field)
		for _, v := range tc.want {
			assert.True(t, f.matches(v), "field %q should match %d", tc.field, v)
		}
	}
}

func TestParseCron_Invalid(t *testing.T) {
	// Four fields, out-of-range values, zero step, inverted range,
	// garbage, six fields.
	cases := []string{
		"0 4 * *",
		"60 * * * *",
		"* 24 * * *",
		"* * * * 7",
		"*/0 * * * *",
		"5-1 * * * *",
		"abc * * * *",
		"0 4 * * * *",
	}
	for _, expr := range cases {
		_, err := parseCron(expr)
		assert.Error(t, err, "expression %q accepted", expr)
	}
}
