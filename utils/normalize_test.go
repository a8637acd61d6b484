package utils

import "testing"

func TestNormalizeDonorName_StableAcrossVariants(t *testing.T) {
	cases := []struct {
		a string
		b string
	}{
		{"María Pérez", "  maria perez "},
		{"JUAN GÓMEZ", "juan gomez"},
		{"Transferencia: Ana López", "ana  lopez"},
		{"Transfer: Pedro", "pedro"},
		{"José\tÁngel", "jose angel"},
	}
	for _, tc := range cases {
		if got, want := NormalizeDonorName(tc.a), NormalizeDonorName(tc.b); got != want {
			t.Fatalf("NormalizeDonorName(%q)=%q, NormalizeDonorName(%q)=%q; expected equal", tc.a, got, tc.b, want)
		}
	}
}

func TestNormalizeDonorName_EmptyIsAnonymous(t *testing.T) {
	for _, raw := range []string{"", "   ", "Transferencia: ", "\t"} {
		if got := NormalizeDonorName(raw); got != AnonymousDonorKey {
			t.Fatalf("NormalizeDonorName(%q) = %q, expected %q", raw, got, AnonymousDonorKey)
		}
	}
}

func TestNormalizeDonorName_Values(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"María Pérez", "maria perez"},
		{"Transferencia: Núñez", "nunez"},
		{"  Ana  ", "ana"},
	}
	for _, tc := range cases {
		if got := NormalizeDonorName(tc.in); got != tc.expected {
			t.Fatalf("NormalizeDonorName(%q) = %q, expected %q", tc.in, got, tc.expected)
		}
	}
}
