package models

import (
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

// isDuplicateKeyErr detects MySQL ER_DUP_ENTRY so insert races on unique
// keys can be handled instead of surfaced.
func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
