package utils

import "testing"

func TestNormalizeGameStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"Scheduled", "upcoming"},
		{"InProgress", "live"},
		{"In Progress", "live"},
		{"Final", "completed"},
		{"Postponed", "cancelled"},
		{"Canceled", "cancelled"},
		{"Cancelled", "cancelled"},
		{"  final  ", "completed"},
		{"", "upcoming"},
		{"Something New", "upcoming"},
	}
	for _, tc := range cases {
		if got := NormalizeGameStatus(tc.raw); got != tc.want {
			t.Errorf("NormalizeGameStatus(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizeInjuryStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"Out", "Out"},
		{"out", "Out"},
		{"Doubtful", "Doubtful"},
		{"Questionable", "Questionable"},
		{"Probable", "Probable"},
		{"Injured Reserve", "IR"},
		{"IR", "IR"},
		{"ir", "IR"},
		{"PUP", "PUP"},
		{"Suspended", "Suspended"},
		{"", "Unknown"},
		{"   ", "Unknown"},
		{"Day-To-Day", "Day-To-Day"},
	}
	for _, tc := range cases {
		if got := NormalizeInjuryStatus(tc.raw); got != tc.want {
			t.Errorf("NormalizeInjuryStatus(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

// "Doubtful" contains the substring "out"; the table order keeps it from
// collapsing to Out.
func TestNormalizeInjuryStatusOrdering(t *testing.T) {
	if got := NormalizeInjuryStatus("doubtful"); got != "Doubtful" {
		t.Fatalf("got %q, want Doubtful", got)
	}
	// "First" contains "ir" but is not an IR status.
	if got := NormalizeInjuryStatus("First"); got != "First" {
		t.Fatalf("got %q, want passthrough First", got)
	}
}
