package core

import "testing"

func TestValidateIdentifier(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want bool
	}{
		{"canonical", "123e4567-e89b-12d3-a456-426614174000-deadbeef", true},
		{"uppercase", "123E4567-E89B-12D3-A456-426614174000-DEADBEEF", true},
		{"mixed case", "123e4567-E89B-12d3-a456-426614174000-DeadBeef", true},
		{"plain uuid without suffix", "123e4567-e89b-12d3-a456-426614174000", false},
		{"not a uuid", "not-a-uuid", false},
		{"empty", "", false},
		{"suffix too short", "123e4567-e89b-12d3-a456-426614174000-dead", false},
		{"suffix too long", "123e4567-e89b-12d3-a456-426614174000-deadbeef1", false},
		{"non-hex body", "123e4567-e89b-12d3-a456-42661417400g-deadbeef", false},
		{"trailing garbage", "123e4567-e89b-12d3-a456-426614174000-deadbeef ", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateIdentifier(tc.raw); got != tc.want {
				t.Fatalf("ValidateIdentifier(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestGeneratedIdentifiersValidate(t *testing.T) {
	for i := 0; i < 32; i++ {
		id := newIdentifier()
		if !ValidateIdentifier(id) {
			t.Fatalf("generated identifier fails validation: %q", id)
		}
	}
}
