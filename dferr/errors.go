// Package dferr implements the engine's single root error kind, EngineError,
// with the variants spec §7 names. Every engine component raises one of
// these instead of a bare error so callers can branch on Kind.
package dferr

import "fmt"

// Kind classifies an EngineError.
type Kind string

const (
	Configuration Kind = "Configuration"
	Validation    Kind = "Validation"
	ReadOnly      Kind = "ReadOnly"
	Execution     Kind = "Execution"
	Concurrency   Kind = "Concurrency"
	Operation     Kind = "Operation"
	KeyAssignment Kind = "KeyAssignment"
	Connection    Kind = "Connection"
)

// FieldError is one field-level validation violation.
type FieldError struct {
	Property string
	Message  string
}

func (f FieldError) Error() string {
	return fmt.Sprintf("%s: %s", f.Property, f.Message)
}

// EngineError is the single error type the engine raises. EntityName and Op
// are populated whenever meaningful; SQL carries the first ~500 chars of a
// failed statement for Execution errors; Fields carries every violation for
// Validation errors.
type EngineError struct {
	Kind       Kind
	EntityName string
	Op         string
	SQL        string
	Fields     []FieldError
	Err        error
}

func (e *EngineError) Error() string {
	msg := string(e.Kind)
	if e.EntityName != "" {
		msg += " [" + e.EntityName + "]"
	}
	if e.Op != "" {
		msg += " during " + e.Op
	}
	if len(e.Fields) > 0 {
		msg += fmt.Sprintf(": %d validation error(s)", len(e.Fields))
		for _, f := range e.Fields {
			msg += "; " + f.Error()
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.SQL != "" {
		msg += " (sql: " + e.SQL + ")"
	}
	return msg
}

func (e *EngineError) Unwrap() error { return e.Err }

const sqlTruncateLen = 500

// TruncateSQL returns at most the first 500 characters of sql, per spec §7.
func TruncateSQL(sql string) string {
	if len(sql) <= sqlTruncateLen {
		return sql
	}
	return sql[:sqlTruncateLen]
}

func New(kind Kind, entityName, op string, err error) *EngineError {
	return &EngineError{Kind: kind, EntityName: entityName, Op: op, Err: err}
}

func Configurationf(entityName, op, format string, args ...any) *EngineError {
	return &EngineError{Kind: Configuration, EntityName: entityName, Op: op, Err: fmt.Errorf(format, args...)}
}

func ReadOnlyErr(entityName, op string) *EngineError {
	return &EngineError{Kind: ReadOnly, EntityName: entityName, Op: op,
		Err: fmt.Errorf("entity %q is read-only", entityName)}
}

func Execution(entityName, op, sql string, err error) *EngineError {
	return &EngineError{Kind: Execution, EntityName: entityName, Op: op, SQL: TruncateSQL(sql), Err: err}
}

func Concurrency(entityName, op string, rowsAffected int64) *EngineError {
	return &EngineError{Kind: Concurrency, EntityName: entityName, Op: op,
		Err: fmt.Errorf("expected 1 row affected, got %d", rowsAffected)}
}

func Operationf(entityName, op, format string, args ...any) *EngineError {
	return &EngineError{Kind: Operation, EntityName: entityName, Op: op, Err: fmt.Errorf(format, args...)}
}

func KeyAssignment(entityName, op string, err error) *EngineError {
	return &EngineError{Kind: KeyAssignment, EntityName: entityName, Op: op, Err: err}
}

func Connectionf(format string, args ...any) *EngineError {
	return &EngineError{Kind: Connection, Err: fmt.Errorf(format, args...)}
}

func Validation(entityName string, fields []FieldError) *EngineError {
	return &EngineError{Kind: Validation, EntityName: entityName, Op: "validate", Fields: fields}
}

// Is supports errors.Is(err, &dferr.EngineError{Kind: dferr.Configuration})
// style checks: a target carrying only a Kind matches any error of that Kind.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	if t.Err == nil && t.EntityName == "" && t.Op == "" && len(t.Fields) == 0 {
		return e.Kind == t.Kind
	}
	return false
}
