package models

import (
	"errors"
	"fmt"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("duplicate entry"), false},
		{"dup entry errno", &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry 'maria perez' for key 'donor_key'"}, true},
		{"wrapped dup entry", fmt.Errorf("create summary: %w", &mysqlDriver.MySQLError{Number: 1062}), true},
		{"other mysql errno", &mysqlDriver.MySQLError{Number: 1213, Message: "Deadlock found"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isDuplicateKeyErr(tc.err); got != tc.want {
				t.Errorf("isDuplicateKeyErr() = %v, want %v", got, tc.want)
			}
		})
	}
}
