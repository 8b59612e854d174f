// Package cron owns cron expression validation and the nextAfter timing
// primitive. It deliberately does not depend on a third-party cron timer
// library: nextAfter is the single source of truth for both validation and
// scheduling, so there is no risk of a library's grammar drifting from the
// engine's own idea of "next".
package cron

import (
	"log/slog"
	"strings"
	"time"
)

// istOffset is the fixed Asia/Kolkata offset. IST has no DST, so a flat
// offset is sufficient — and reproduces the source behavior this port must
// match: the offset is added to a UTC instant and the result is manipulated
// with ordinary UTC field arithmetic, as if the shifted instant actually
// were UTC. This is correct for wall-clock alignment in IST and wrong
// exactly where the design notes says it is wrong (any other timezone,
// and any edge within the UTC day that straddles the IST offset). Do not
// "fix" this without introducing an explicit timezone parameter.
const istOffset = 5*time.Hour + 30*time.Minute

// maxLookahead bounds the brute-force minute-by-minute search so a
// pathological expression (all fields constrained to a combination that
// never recurs, e.g. day-of-month 31 and month 2) cannot loop forever.
const maxLookahead = 4 * 366 * 24 * time.Hour

// Evaluator validates cron expressions and computes their next firing
// instant. It is stateless and safe for concurrent use.
type Evaluator struct {
	logger *slog.Logger
}

// New returns an Evaluator that logs fallback/warning conditions to logger.
// A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger}
}

type schedule struct {
	minute, hour, dom, month, dow fieldSpec
}

// parse splits expr into five fields and parses each against its bounds.
// It accepts "*", integers, ranges, steps, and comma lists per field (the
// wider grammar §9 notes some control-plane paths rely on); it rejects "L",
// "W", "?", and a 6-field (seconds) expression outright.
func parse(expr string) (schedule, bool) {
	fields := strings.Fields(strings.TrimSpace(expr))
	if len(fields) != 5 {
		return schedule{}, false
	}
	for _, f := range fields {
		if strings.ContainsAny(f, "LW?") {
			return schedule{}, false
		}
	}

	var sched schedule
	var err error
	if sched.minute, err = parseField(fields[0], fieldBounds[0][0], fieldBounds[0][1]); err != nil {
		return schedule{}, false
	}
	if sched.hour, err = parseField(fields[1], fieldBounds[1][0], fieldBounds[1][1]); err != nil {
		return schedule{}, false
	}
	if sched.dom, err = parseField(fields[2], fieldBounds[2][0], fieldBounds[2][1]); err != nil {
		return schedule{}, false
	}
	if sched.month, err = parseField(fields[3], fieldBounds[3][0], fieldBounds[3][1]); err != nil {
		return schedule{}, false
	}
	if sched.dow, err = parseField(fields[4], fieldBounds[4][0], fieldBounds[4][1]); err != nil {
		return schedule{}, false
	}
	return sched, true
}

func (s schedule) matches(t time.Time) bool {
	return s.minute.match(t.Minute()) &&
		s.hour.match(t.Hour()) &&
		s.dom.match(t.Day()) &&
		s.month.match(int(t.Month())) &&
		s.dow.match(int(t.Weekday()))
}

// Validate reports whether expr is a well-formed 5-field cron expression.
func (e *Evaluator) Validate(expr string) bool {
	_, ok := parse(expr)
	return ok
}

// NextAfter returns the smallest UTC instant strictly after t0 at which expr
// matches in IST wall-clock time. Seconds are truncated to zero. If expr
// cannot be evaluated, NextAfter logs a warning and falls back to t0+1h —
// a deliberately preserved footgun; see the design notes this module was
// built from.
func (e *Evaluator) NextAfter(expr string, t0 time.Time) time.Time {
	sched, ok := parse(expr)
	if !ok {
		e.logger.Warn("cron: falling back to 1h lookahead for unparsable expression",
			"expression", expr)
		return t0.Add(time.Hour)
	}

	// Shift into "IST-as-UTC" and truncate seconds/nanoseconds, then step
	// forward one minute at a time — minute is the finest granularity any
	// field can express.
	shifted := t0.Add(istOffset).UTC().Truncate(time.Minute).Add(time.Minute)

	deadline := shifted.Add(maxLookahead)
	for shifted.Before(deadline) {
		if sched.matches(shifted) {
			return shifted.Add(-istOffset)
		}
		shifted = shifted.Add(time.Minute)
	}

	e.logger.Warn("cron: no match found within lookahead window, falling back to 1h",
		"expression", expr)
	return t0.Add(time.Hour)
}
