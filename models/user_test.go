package models

import "testing"

func TestUser_BeforeSave_NormalizedName(t *testing.T) {
	cases := []struct {
		display string
		want    string
	}{
		{"María Pérez", "maria perez"},
		{"  JOSÉ  ÁNGEL ", "jose angel"},
		{"Tesorería", "tesoreria"},
	}
	for _, tc := range cases {
		user := User{DisplayName: tc.display}
		if err := user.BeforeSave(nil); err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.display, err)
		}
		if user.NormalizedName != tc.want {
			t.Fatalf("%s: normalized = %q, expected %q", tc.display, user.NormalizedName, tc.want)
		}
	}
}
