package storage

import (
	"fmt"
	"regexp"
)

// DefaultTable is the table created by the SQLite migrations.
const DefaultTable = "tiles"

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,47}$`)

// ValidateTableName rejects names that cannot be spliced into a statement.
func ValidateTableName(table string) error {
	if !tableNameRe.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	return nil
}
