package model

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var weekIDPattern = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// WeekID formats the ISO year-week of t, e.g. "2024-W05".
func WeekID(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// ParseWeekID validates an ISO year-week string.
func ParseWeekID(s string) (year, week int, err error) {
	m := weekIDPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid week id %q: want YYYY-Www", s)
	}
	year, _ = strconv.Atoi(m[1])
	week, _ = strconv.Atoi(m[2])
	if week < 1 || week > 53 {
		return 0, 0, fmt.Errorf("invalid week id %q: week out of range", s)
	}
	return year, week, nil
}
