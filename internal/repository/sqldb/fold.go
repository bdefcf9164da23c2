package sqldb

import (
	"database/sql/driver"
	"strings"

	"modernc.org/sqlite"
)

// SQLite's LOWER only folds ASCII. Searches on sqlite go through this function
// instead so that "Éclair" matches "éclair" as it does on the other stores.
const unicodeLowerFunc = "mongomart_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(unicodeLowerFunc, 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// lowerExpr case-folds column the way strings.ToLower does.
func (d *DB) lowerExpr(column string) string {
	if d.dialect == SQLite {
		return unicodeLowerFunc + "(" + column + ")"
	}
	return "LOWER(" + column + ")"
}
