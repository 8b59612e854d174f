package cron

import (
	"fmt"
	"strconv"
	"strings"
)

// fieldSpec is a bitmask over the legal values of one cron field. Minute and
// hour fit in a uint64 directly; day-of-month/month/day-of-week are tiny.
type fieldSpec uint64

// bounds for each of the five fields, in order: minute, hour, dom, month, dow.
var fieldBounds = [5][2]int{
	{0, 59}, // minute
	{0, 23}, // hour
	{1, 31}, // day of month
	{1, 12}, // month
	{0, 6},  // day of week
}

// parseField accepts the grammar this module supports: "*", an integer,
// "*/N", "N-M", "N/S", "N-M/S", and comma-separated lists of any of those.
// Named months/days, "L", "W", "?", and a seconds field are never accepted —
// rejecting them is what makes Validate stricter than a general-purpose
// cron library.
func parseField(raw string, min, max int) (fieldSpec, error) {
	var bits fieldSpec
	for _, part := range strings.Split(raw, ",") {
		b, err := parseRange(part, min, max)
		if err != nil {
			return 0, err
		}
		bits |= b
	}
	if bits == 0 {
		return 0, fmt.Errorf("field %q matches no values", raw)
	}
	return bits, nil
}

func parseRange(part string, min, max int) (fieldSpec, error) {
	rangePart := part
	step := 1
	if idx := strings.IndexByte(part, '/'); idx >= 0 {
		rangePart = part[:idx]
		s, err := strconv.Atoi(part[idx+1:])
		if err != nil || s <= 0 {
			return 0, fmt.Errorf("invalid step in %q", part)
		}
		step = s
	}

	var lo, hi int
	switch {
	case rangePart == "*":
		lo, hi = min, max
	case strings.Contains(rangePart, "-"):
		bounds := strings.SplitN(rangePart, "-", 2)
		if len(bounds) != 2 {
			return 0, fmt.Errorf("invalid range %q", rangePart)
		}
		var err error
		lo, err = strconv.Atoi(bounds[0])
		if err != nil {
			return 0, fmt.Errorf("invalid range start %q", bounds[0])
		}
		hi, err = strconv.Atoi(bounds[1])
		if err != nil {
			return 0, fmt.Errorf("invalid range end %q", bounds[1])
		}
		if lo > hi {
			return 0, fmt.Errorf("range %q has start after end", rangePart)
		}
	default:
		v, err := strconv.Atoi(rangePart)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q", rangePart)
		}
		lo, hi = v, v
	}

	if lo < min || hi > max {
		return 0, fmt.Errorf("value out of range [%d, %d]: %q", min, max, part)
	}

	var bits fieldSpec
	for v := lo; v <= hi; v += step {
		bits |= 1 << uint(v)
	}
	return bits, nil
}

func (f fieldSpec) match(v int) bool {
	return f&(1<<uint(v)) != 0
}
