package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cronField is one parsed field of a 5-field cron expression. A nil set
// means wildcard.
type cronField struct {
	set map[int]bool
}

func (f cronField) matches(val int) bool {
	if f.set == nil {
		return true
	}
	return f.set[val]
}

// parseCronField parses one cron field. Supported forms: "*", "*/n",
// "a", "a-b", and comma lists of the latter two.
func parseCronField(field string, min, max int) (cronField, error) {
	if field == "*" {
		return cronField{}, nil
	}

	set := make(map[int]bool)

	if step, ok := strings.CutPrefix(field, "*/"); ok {
		n, err := strconv.Atoi(step)
		if err != nil || n <= 0 {
			return cronField{}, fmt.Errorf("invalid cron step %q", field)
		}
		for v := min; v <= max; v += n {
			set[v] = true
		}
		return cronField{set: set}, nil
	}

	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)
		lo, hi, found := strings.Cut(part, "-")
		if !found {
			hi = lo
		}
		from, err := strconv.Atoi(lo)
		if err != nil {
			return cronField{}, fmt.Errorf("invalid cron value %q", part)
		}
		to, err := strconv.Atoi(hi)
		if err != nil {
			return cronField{}, fmt.Errorf("invalid cron value %q", part)
		}
		if from < min || to > max || from > to {
			return cronField{}, fmt.Errorf("cron value %q outside range %d-%d", part, min, max)
		}
		for v := from; v <= to; v++ {
			set[v] = true
		}
	}
	return cronField{set: set}, nil
}

// parsedCron holds the five fields of a standard cron expression:
// minute hour day-of-month month day-of-week.
type parsedCron struct {
	minute     cronField
	hour       cronField
	dayOfMonth cronField
	month      cronField
	dayOfWeek  cronField
}

func (c parsedCron) matchesTime(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dayOfMonth.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dayOfWeek.matches(int(t.Weekday()))
}

func parseCron(expr string) (parsedCron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return parsedCron{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	specs := []struct {
		name     string
		min, max int
		dst      *cronField
	}{
		{"minute", 0, 59, nil},
		{"hour", 0, 23, nil},
		{"day-of-month", 1, 31, nil},
		{"month", 1, 12, nil},
		{"day-of-week", 0, 6, nil},
	}

	var out parsedCron
	specs[0].dst = &out.minute
	specs[1].dst = &out.hour
	specs[2].dst = &out.dayOfMonth
	specs[3].dst = &out.month
	specs[4].dst = &out.dayOfWeek

	for i, spec := range specs {
		f, err := parseCronField(fields[i], spec.min, spec.max)
		if err != nil {
			return parsedCron{}, fmt.Errorf("parsing %s field: %w", spec.name, err)
		}
		*spec.dst = f
	}
	return out, nil
}

// nextCronTime returns the first time after 'after' matching the cron
// expression, searching minute-by-minute up to one year ahead.
func nextCronTime(cronExpr string, after time.Time) (time.Time, error) {
	cron, err := parseCron(cronExpr)
	if err != nil {
		return time.Time{}, err
	}

	candidate := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)

	for candidate.Before(limit) {
		if cron.matchesTime(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("no matching cron time found within one year for %q", cronExpr)
}
