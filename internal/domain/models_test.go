package domain

import (
	"testing"
	"time"
)

func TestFormatElapsed(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00:00"},
		{42 * time.Second, "0:00:42"},
		{5 * time.Minute, "0:05:00"},
		{14*time.Minute + 59*time.Second, "0:14:59"},
		{time.Hour + 7*time.Minute + 3*time.Second, "1:07:03"},
		{-time.Second, "0:00:00"},
	}
	for _, tc := range cases {
		if got := FormatElapsed(tc.in); got != tc.want {
			t.Errorf("FormatElapsed(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCorrectOptionID(t *testing.T) {
	q := Question{
		ID: "q1",
		Options: []Option{
			{ID: "a"},
			{ID: "b", Correct: true},
			{ID: "c", Correct: true},
		},
	}
	if got := q.CorrectOptionID(); got != "b" {
		t.Fatalf("expected first flagged option, got %q", got)
	}
	if got := (Question{ID: "q2"}).CorrectOptionID(); got != "" {
		t.Fatalf("expected empty for unflagged question, got %q", got)
	}
}
