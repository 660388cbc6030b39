// Package typenorm assembles native datatype strings from fragmented
// catalog columns and normalises default-value text, per spec §4.3. No
// cross-dialect type mapping happens here — datatypes stay in the native
// form of the source engine; this package only produces a single
// human-readable string from (base type, length, precision, scale) and
// strips incidental formatting from default-value literals.
package typenorm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// maxFragment caps a length/precision/scale fragment used in datatype
// assembly, per spec §4.1's MySQL contract ("capped at 999999 to cap
// pathological inputs"). Applied by the MySQL, SQL Server and DB2
// assemblers; the Oracle and PostgreSQL paths do not cap.
const maxFragment = 999999

func capFragment(n int64) int64 {
	if n > maxFragment {
		return maxFragment
	}
	if n < -maxFragment {
		return -maxFragment
	}
	return n
}

// MySQLDataType assembles a MySQL column's native type string from
// INFORMATION_SCHEMA.COLUMNS fragments.
func MySQLDataType(dataType string, charMaxLen, numericPrecision, numericScale *int64) string {
	switch {
	case charMaxLen != nil:
		return fmt.Sprintf("%s(%d)", dataType, capFragment(*charMaxLen))
	case numericPrecision != nil && numericScale != nil && *numericScale > 0:
		return fmt.Sprintf("%s(%d,%d)", dataType, capFragment(*numericPrecision), capFragment(*numericScale))
	case numericPrecision != nil:
		return fmt.Sprintf("%s(%d)", dataType, capFragment(*numericPrecision))
	default:
		return dataType
	}
}

// PostgresDataType returns the type exactly as information_schema reports
// it: PostgreSQL's own catalog already produces a fully-formed string such
// as "character varying(255)" or "timestamp without time zone".
func PostgresDataType(raw string) string {
	return raw
}

// MSSQLDataType assembles a SQL Server column's native type string.
// NVARCHAR/NCHAR store max_length in bytes (two-byte encoding), so it is
// halved to report character count; max_length == -1 means an unbounded
// `(max)` type.
func MSSQLDataType(typeName string, maxLength int64, precision, scale int) string {
	lower := strings.ToLower(typeName)
	isWide := lower == "nvarchar" || lower == "nchar"

	if maxLength == -1 {
		return fmt.Sprintf("%s(max)", typeName)
	}

	switch lower {
	case "nvarchar", "nchar", "varchar", "char", "binary", "varbinary":
		length := maxLength
		if isWide {
			length /= 2
		}
		return fmt.Sprintf("%s(%d)", typeName, capFragment(length))
	case "decimal", "numeric":
		if scale > 0 {
			return fmt.Sprintf("%s(%d,%d)", typeName, capFragment(int64(precision)), capFragment(int64(scale)))
		}
		return fmt.Sprintf("%s(%d)", typeName, capFragment(int64(precision)))
	default:
		return typeName
	}
}

// OracleDataType preserves Oracle's uppercase reporting convention. NUMBER
// with no precision stays bare; with precision only, "NUMBER(p)"; with a
// positive scale, "NUMBER(p,s)".
func OracleDataType(typeName string, precision, scale *int) string {
	typeName = strings.ToUpper(typeName)
	if typeName != "NUMBER" {
		return typeName
	}
	switch {
	case precision == nil:
		return "NUMBER"
	case scale != nil && *scale > 0:
		return fmt.Sprintf("NUMBER(%d,%d)", *precision, *scale)
	default:
		return fmt.Sprintf("NUMBER(%d)", *precision)
	}
}

// DB2DataType assembles a DB2 column's native type string from
// SYSCAT.COLUMNS fragments (length, scale).
func DB2DataType(typeName string, length int64, scale int) string {
	upper := strings.ToUpper(typeName)
	switch upper {
	case "DECIMAL", "NUMERIC":
		if scale > 0 {
			return fmt.Sprintf("%s(%d,%d)", upper, capFragment(length), capFragment(int64(scale)))
		}
		return fmt.Sprintf("%s(%d)", upper, capFragment(length))
	case "VARCHAR", "CHAR", "GRAPHIC", "VARGRAPHIC":
		return fmt.Sprintf("%s(%d)", upper, capFragment(length))
	default:
		return upper
	}
}

// NormalizeDefault applies the default-value normalisation rules of spec
// §4.3 in order: trim (empty → nil), SQL Server parenthesis stripping,
// PostgreSQL cast removal, then single-quote stripping. Each rule is applied
// whenever it matches; a rule that does not match does not stop the later
// ones. dialect selects the SQL-Server-only parenthesis-stripping rule and
// the PostgreSQL-only cast-stripping rule. The verbatim registry does not
// change the returned value.
func NormalizeDefault(raw string, dialect string, verbatim *VerbatimFunctions) *string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}

	if dialect == "mssql" {
		for strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") && len(v) >= 2 {
			inner := v[1 : len(v)-1]
			if !parenBalanced(inner) {
				break
			}
			v = inner
		}
	}

	if dialect == "postgres" {
		v = stripPGCast(v)
	}

	if len(v) >= 2 && strings.HasPrefix(v, "'") && strings.HasSuffix(v, "'") {
		v = v[1 : len(v)-1]
	}

	if verbatim != nil && verbatim.IsKnown(v) {
		return &v
	}

	return &v
}

// parenBalanced reports whether a string has balanced outer parentheses,
// used to decide whether stripping one more layer in the SQL Server
// default-value rule would cross into an unrelated inner expression.
func parenBalanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			return false
		}
	}
	return depth == 0
}

// pgCastPattern matches a PostgreSQL `::typename` cast, optionally followed
// by a length/precision fragment (`::numeric(10,2)`), so it can be removed
// in place rather than truncating everything after it — required for casts
// that appear mid-expression, e.g. `nextval('orders_id_seq'::regclass)`. Runs
// before the quote-strip rule, since a cast suffix (`'active'::varchar`)
// would otherwise leave the value not ending in `'`.
var pgCastPattern = regexp.MustCompile(`::[A-Za-z_][A-Za-z0-9_ ]*(\([0-9]+(,[0-9]+)?\))?`)

func stripPGCast(v string) string {
	return pgCastPattern.ReplaceAllString(v, "")
}

// ParseIntOrZero is a small helper extractors use when a catalog driver
// returns a numeric fragment as a string or NullInt type that has already
// been reduced to text.
func ParseIntOrZero(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
