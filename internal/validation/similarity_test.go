package validation

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"The Matrix", "matrix"},
		{"MATRIX", "matrix"},
		{"the   matrix", "matrix"},
		{"The Matrix!", "matrix"},
		{"Spider-Man: No Way Home", "spider-man no way home"},
		{"Ocean's Eleven", "ocean's eleven"},
		{"An American Werewolf", "american werewolf"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, in := range []string{"The Matrix", "Ocean's Eleven", "Spider-Man 2"} {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestNormalizeYear(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"1999", "1999"},
		{"1999-2003", "1999"},
		{"2010 (TV Movie)", "2010"},
		{"N/A", ""},
		{"", ""},
		{"soon", ""},
	}
	for _, tc := range cases {
		if got := NormalizeYear(tc.in); got != tc.want {
			t.Errorf("NormalizeYear(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEditDistanceSimilarity(t *testing.T) {
	sim := EditDistanceSimilarity{}

	if got := sim.Score("matrix", "matrix"); got != 1.0 {
		t.Errorf("Exact match should score 1.0, got %f", got)
	}
	if got := sim.Score("blade runner", "blade runner the final cut"); got != 0.9 {
		t.Errorf("Containment should score 0.9, got %f", got)
	}
	if got := sim.Score("", "matrix"); got != 0 {
		t.Errorf("Empty title should score 0, got %f", got)
	}

	// One deletion in 20 runes.
	got := sim.Score("shawshank redemtion", "shawshank redemption")
	if got < 0.94 || got >= 1.0 {
		t.Errorf("Single-typo score should be high but below 1.0, got %f", got)
	}

	if got := sim.Score("matrix", "titanic"); got >= 0.5 {
		t.Errorf("Unrelated titles should score low, got %f", got)
	}
}

func TestEditDistanceSimilarity_Symmetric(t *testing.T) {
	sim := EditDistanceSimilarity{}
	pairs := [][2]string{
		{"shawshank redemtion", "shawshank redemption"},
		{"matrix", "titanic"},
		{"blade runner", "blade runner the final cut"},
	}
	for _, p := range pairs {
		if a, b := sim.Score(p[0], p[1]), sim.Score(p[1], p[0]); a != b {
			t.Errorf("Score(%q, %q) = %f but reversed = %f", p[0], p[1], a, b)
		}
	}
}
