package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Diagnosis flattens an error chain for logs. Postgres fields are filled
// from either driver's error type.
type Diagnosis struct {
	Message  string
	Code     Code
	Chain    []string
	Postgres map[string]string
}

func Diagnose(err error) Diagnosis {
	if err == nil {
		return Diagnosis{}
	}
	d := Diagnosis{Message: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.code
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgxErr):
		d.Postgres = compact(map[string]string{
			"pg_code":       pgxErr.Code,
			"pg_message":    pgxErr.Message,
			"pg_detail":     pgxErr.Detail,
			"pg_table":      pgxErr.TableName,
			"pg_column":     pgxErr.ColumnName,
			"pg_constraint": pgxErr.ConstraintName,
		})
	case stdErrors.As(err, &pqErr):
		d.Postgres = compact(map[string]string{
			"pg_code":       string(pqErr.Code),
			"pg_message":    pqErr.Message,
			"pg_detail":     pqErr.Detail,
			"pg_table":      pqErr.Table,
			"pg_column":     pqErr.Column,
			"pg_constraint": pqErr.Constraint,
		})
	}
	return d
}

// Fields renders the diagnosis as log fields, omitting empty values.
func (d Diagnosis) Fields() map[string]any {
	out := map[string]any{"error": d.Message}
	if d.Code != "" {
		out["error_code"] = d.Code
	}
	if len(d.Chain) > 1 {
		out["error_chain"] = d.Chain
	}
	for k, v := range d.Postgres {
		out[k] = v
	}
	return out
}

func compact(m map[string]string) map[string]string {
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	return m
}
