package dialect

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// SqlServer implements Dialect for a Microsoft SQL Server-style backend:
// bracket quoting, @-prefixed parameters, SCOPE_IDENTITY() for generated
// keys, OFFSET/FETCH paging.
type SqlServer struct{}

var _ Dialect = SqlServer{}

func (SqlServer) Name() Name           { return SqlServerName }
func (SqlServer) DefaultSchema() string { return "dbo" }

func (SqlServer) FormatParameter(baseName string) string {
	return "@" + baseName
}

func (SqlServer) QuoteIdentifier(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

func (SqlServer) FormatTableAlias(alias string) string {
	return "AS " + alias
}

func (SqlServer) FormatBoolean(value bool) string {
	if value {
		return "1"
	}
	return "0"
}

func (SqlServer) SupportsReturningId() bool { return true }

func (d SqlServer) BuildInsertReturningId(baseInsertSql, tableName string, keyColumnNames []string) (string, error) {
	if len(keyColumnNames) == 0 {
		return "", newUnsupportedReturningError(d.Name())
	}
	// Multi-column generated keys are not meaningfully supported by
	// SCOPE_IDENTITY(); this dialect only returns the first (and only
	// expected) identity column, matching spec S2.
	key := keyColumnNames[0]
	return fmt.Sprintf("%s; SELECT CAST(SCOPE_IDENTITY() AS int) AS %s",
		baseInsertSql, d.QuoteIdentifier(key)), nil
}

func (d SqlServer) BuildPaging(sql string, skip, take int, hasTake bool) string {
	var b strings.Builder
	b.WriteString(sql)
	b.WriteString(" OFFSET ")
	b.WriteString(strconv.Itoa(skip))
	b.WriteString(" ROWS")
	if hasTake {
		b.WriteString(" FETCH NEXT ")
		b.WriteString(strconv.Itoa(take))
		b.WriteString(" ROWS ONLY")
	}
	return b.String()
}

func (SqlServer) InListBatchCap() int { return 2000 }

func (d SqlServer) FormatSequenceNextVal(sequenceName string) string {
	return "NEXT VALUE FOR " + d.QuoteIdentifier(sequenceName)
}

func (SqlServer) TryMapClrTypeToDbType(t reflect.Type) (string, bool) {
	return mapCommonClrType(t, commonTypeMap{
		stringType: "NVarChar",
		intType:    "Int",
		int64Type:  "BigInt",
		boolType:   "Bit",
		floatType:  "Float",
		timeType:   "DateTime2",
	})
}

type commonTypeMap struct {
	stringType, intType, int64Type, boolType, floatType, timeType string
}

func mapCommonClrType(t reflect.Type, m commonTypeMap) (string, bool) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch {
	case t.Kind() == reflect.String:
		return m.stringType, true
	case t.Kind() == reflect.Int || t.Kind() == reflect.Int32:
		return m.intType, true
	case t.Kind() == reflect.Int64:
		return m.int64Type, true
	case t.Kind() == reflect.Bool:
		return m.boolType, true
	case t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64:
		return m.floatType, true
	case t == reflect.TypeOf(time.Time{}):
		return m.timeType, true
	default:
		return "", false
	}
}
