package cron

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("bad fixture time %q: %v", s, err)
	}
	return tm
}

func TestValidate_AcceptsSupportedGrammar(t *testing.T) {
	e := New(nil)
	valid := []string{
		"* * * * *",
		"*/5 * * * *",
		"30 * * * *",
		"0 9 * * *",
		"1-5 * * * *",
		"0,15,30,45 * * * *",
		"*/15 9-17 * * 1-5",
	}
	for _, expr := range valid {
		if !e.Validate(expr) {
			t.Errorf("expected %q to be valid", expr)
		}
	}
}

func TestValidate_RejectsUnsupportedForms(t *testing.T) {
	e := New(nil)
	invalid := []string{
		"",
		"* * * *",
		"* * * * * *",
		"L * * * *",
		"? * * * *",
		"0 0 W * *",
		"60 * * * *",
		"* 24 * * *",
		"bogus",
	}
	for _, expr := range invalid {
		if e.Validate(expr) {
			t.Errorf("expected %q to be invalid", expr)
		}
	}
}

func TestNextAfter_EveryMinute(t *testing.T) {
	e := New(nil)
	t0 := mustParse(t, "2026-08-03T10:30:00Z")
	next := e.NextAfter("* * * * *", t0)

	want := t0.Add(time.Minute)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNextAfter_StepMinutes(t *testing.T) {
	e := New(nil)
	// 04:58 UTC = 10:28 IST; next */5 boundary in IST is 10:30 IST = 05:00 UTC.
	t0 := mustParse(t, "2026-08-03T04:58:00Z")
	next := e.NextAfter("*/5 * * * *", t0)
	want := mustParse(t, "2026-08-03T05:00:00Z")
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNextAfter_DailyFixedISTTime(t *testing.T) {
	e := New(nil)
	// "30 9 * * *" = 09:30 IST daily = 04:00 UTC.
	t0 := mustParse(t, "2026-08-03T03:00:00Z") // 08:30 IST, before today's fire
	next := e.NextAfter("30 9 * * *", t0)
	want := mustParse(t, "2026-08-03T04:00:00Z")
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}

	// once past today's fire, the next one rolls to tomorrow.
	t1 := want
	next2 := e.NextAfter("30 9 * * *", t1)
	want2 := want.AddDate(0, 0, 1)
	if !next2.Equal(want2) {
		t.Errorf("expected %v, got %v", want2, next2)
	}
}

func TestNextAfter_NeverReturnsT0(t *testing.T) {
	e := New(nil)
	// t0 exactly on an IST minute boundary that * * * * * matches.
	t0 := mustParse(t, "2026-08-03T10:30:00Z")
	next := e.NextAfter("* * * * *", t0)
	if next.Equal(t0) || !next.After(t0) {
		t.Errorf("expected a strictly later instant, got %v for t0=%v", next, t0)
	}
}

func TestNextAfter_Idempotence(t *testing.T) {
	e := New(nil)
	t0 := mustParse(t, "2026-08-03T10:31:17Z")
	exprs := []string{"* * * * *", "*/5 * * * *", "0 9 * * *"}
	for _, expr := range exprs {
		n1 := e.NextAfter(expr, t0)
		n2 := e.NextAfter(expr, n1)
		if !n2.After(n1) {
			t.Errorf("%q: expected nextAfter(nextAfter(t)) > nextAfter(t); got n1=%v n2=%v", expr, n1, n2)
		}
	}
}

func TestNextAfter_TruncatesSeconds(t *testing.T) {
	e := New(nil)
	t0 := mustParse(t, "2026-08-03T10:30:45Z")
	next := e.NextAfter("* * * * *", t0)
	if next.Second() != 0 || next.Nanosecond() != 0 {
		t.Errorf("expected seconds truncated, got %v", next)
	}
}

func TestValidate_UnsupportedImpliesFallback(t *testing.T) {
	e := New(nil)
	t0 := mustParse(t, "2026-08-03T10:30:00Z")
	next := e.NextAfter("not a cron expr", t0)
	want := t0.Add(time.Hour)
	if !next.Equal(want) {
		t.Errorf("expected 1h fallback, got %v", next)
	}
}
