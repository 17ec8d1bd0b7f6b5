package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestAlignFromTo(t *testing.T) {
	from := time.Date(2024, 10, 10, 10, 13, 42, 0, time.UTC)
	to := time.Date(2024, 10, 10, 11, 58, 1, 0, time.UTC)

	gotFrom, gotTo := AlignFromTo(from, to, "5m")
	if gotFrom.Minute() != 10 || gotFrom.Second() != 0 {
		t.Fatalf("unexpected from %v", gotFrom)
	}
	if gotTo.Minute() != 55 || gotTo.Second() != 0 {
		t.Fatalf("unexpected to %v", gotTo)
	}

	gotFrom, _ = AlignFromTo(from, to, "1h")
	if gotFrom.Minute() != 0 || gotFrom.Hour() != 10 {
		t.Fatalf("unexpected hourly from %v", gotFrom)
	}
}

func TestStepDuration(t *testing.T) {
	if d := StepDuration("6h"); d != 6*time.Hour {
		t.Fatalf("unexpected duration %v", d)
	}
	if d := StepDuration("bogus"); d != 5*time.Minute {
		t.Fatalf("expected 5m fallback, got %v", d)
	}
}
