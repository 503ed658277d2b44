package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Supported dialect names. Postgres backs production deployments,
// SQLite backs tests and single-node setups.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// DialectName returns the name of the dialect behind the connection,
// or an empty string when no dialector is attached.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

func isSQLite(conn *gorm.DB) bool {
	return DialectName(conn) == DialectSQLite
}

// CaseInsensitiveLikeExpr builds the LIKE clause used by audit-log
// reason search. SQLite has no ILIKE, so matching lowers both sides.
func CaseInsensitiveLikeExpr(conn *gorm.DB, column string) string {
	if isSQLite(conn) {
		return fmt.Sprintf("LOWER(%s) LIKE ?", column)
	}
	return fmt.Sprintf("%s ILIKE ?", column)
}

// NormalizeLikePattern prepares a search pattern for
// CaseInsensitiveLikeExpr on the current dialect.
func NormalizeLikePattern(conn *gorm.DB, pattern string) string {
	if isSQLite(conn) {
		return strings.ToLower(pattern)
	}
	return pattern
}

// JSONExtractTextExpr extracts a key from a JSON column as text.
// Config-event filters use it to match fields inside the meta blob.
func JSONExtractTextExpr(conn *gorm.DB, column, key string) string {
	if isSQLite(conn) {
		return fmt.Sprintf("json_extract(%s, '$.%s')", column, key)
	}
	return fmt.Sprintf("%s->>'%s'", column, key)
}
