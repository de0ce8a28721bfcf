package sqlite

import (
	"errors"
	"strings"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// isForeignKeyViolation reports whether err is SQLite's
// "FOREIGN KEY constraint failed".
func isForeignKeyViolation(err error) bool {
	return hasCode(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) ||
		(err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed"))
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY conflict.
// column narrows the match to one column ("users.email"); "" matches any.
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	coded := hasCode(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) ||
		hasCode(err, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY)
	msg := err.Error()
	if !coded && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return column == "" || strings.Contains(msg, column)
}

func hasCode(err error, code int) bool {
	var se *moderncsqlite.Error
	return errors.As(err, &se) && se.Code() == code
}
