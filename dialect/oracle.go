package dialect

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Oracle implements Dialect for an Oracle-style backend: double-quote
// identifiers, colon-prefixed bind variables, RETURNING ... INTO for
// generated keys, FETCH FIRST paging.
type Oracle struct{}

var _ Dialect = Oracle{}

func (Oracle) Name() Name            { return OracleName }
func (Oracle) DefaultSchema() string { return "" }

func (Oracle) FormatParameter(baseName string) string {
	return ":" + baseName
}

func (Oracle) QuoteIdentifier(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func (Oracle) FormatTableAlias(alias string) string {
	return alias
}

func (Oracle) FormatBoolean(value bool) string {
	if value {
		return "1"
	}
	return "0"
}

func (Oracle) SupportsReturningId() bool { return true }

func (d Oracle) BuildInsertReturningId(baseInsertSql, tableName string, keyColumnNames []string) (string, error) {
	if len(keyColumnNames) == 0 {
		return "", newUnsupportedReturningError(d.Name())
	}
	quoted := make([]string, len(keyColumnNames))
	binds := make([]string, len(keyColumnNames))
	for i, col := range keyColumnNames {
		quoted[i] = d.QuoteIdentifier(col)
		binds[i] = d.FormatParameter(col)
	}
	return fmt.Sprintf("%s RETURNING %s INTO %s",
		baseInsertSql, strings.Join(quoted, ", "), strings.Join(binds, ", ")), nil
}

func (d Oracle) BuildPaging(sql string, skip, take int, hasTake bool) string {
	var b strings.Builder
	b.WriteString(sql)
	if skip == 0 {
		if hasTake {
			b.WriteString(" FETCH FIRST ")
			b.WriteString(strconv.Itoa(take))
			b.WriteString(" ROWS ONLY")
		}
		return b.String()
	}
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

func (Oracle) InListBatchCap() int { return 900 }

func (d Oracle) FormatSequenceNextVal(sequenceName string) string {
	return d.QuoteIdentifier(sequenceName) + ".NEXTVAL"
}

func (Oracle) TryMapClrTypeToDbType(t reflect.Type) (string, bool) {
	return mapCommonClrType(t, commonTypeMap{
		stringType: "VARCHAR2",
		intType:    "NUMBER",
		int64Type:  "NUMBER",
		boolType:   "NUMBER",
		floatType:  "BINARY_DOUBLE",
		timeType:   "TIMESTAMP",
	})
}
