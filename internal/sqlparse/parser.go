// Package sqlparse extracts the facts pgaudit needs from DDL: which tables a
// script creates and which relations and functions a definition references.
package sqlparse

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

const defaultSchema = "public"

// Table is a table created by a CREATE TABLE statement
type Table struct {
	Schema     string
	Name       string
	SQL        string   // the CREATE TABLE statement as written
	References []string // schema qualified tables referenced by foreign keys
}

// QualifiedName returns schema.name
func (t Table) QualifiedName() string {
	return t.Schema + "." + t.Name
}

// ParseTables returns every table created by the given script, in statement order.
// Statements other than CREATE TABLE are ignored.
func ParseTables(sql string) ([]Table, error) {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("pg_query parse error: %w", err)
	}

	var tables []Table
	for _, raw := range result.Stmts {
		createStmt := raw.Stmt.GetCreateStmt()
		if createStmt == nil {
			continue
		}

		schema, name := extractTableName(createStmt.Relation)
		table := Table{
			Schema: schema,
			Name:   name,
			SQL:    statementText(sql, raw),
		}

		for _, element := range createStmt.TableElts {
			switch elt := element.Node.(type) {
			case *pg_query.Node_ColumnDef:
				for _, c := range elt.ColumnDef.Constraints {
					table.References = appendForeignKey(table.References, c.GetConstraint())
				}
			case *pg_query.Node_Constraint:
				table.References = appendForeignKey(table.References, elt.Constraint)
			}
		}
		tables = append(tables, table)
	}

	return tables, nil
}

// References are the objects a single definition points at
type References struct {
	Relations []string // schema qualified tables
	Functions []string // schema qualified functions
}

// ExtractReferences parses a definition and returns the relations and functions it
// references structurally: a trigger's table and function, and the functions called
// in its WHEN clause. Function bodies are opaque strings to the parser and yield
// nothing; callers fall back to textual matching for those.
func ExtractReferences(sql string) (References, error) {
	var refs References

	result, err := pg_query.Parse(sql)
	if err != nil {
		return refs, fmt.Errorf("pg_query parse error: %w", err)
	}

	for _, raw := range result.Stmts {
		switch node := raw.Stmt.Node.(type) {
		case *pg_query.Node_CreateTrigStmt:
			stmt := node.CreateTrigStmt
			if stmt.Relation != nil {
				schema, table := extractTableName(stmt.Relation)
				refs.Relations = append(refs.Relations, schema+"."+table)
			}
			if fn := qualifiedFuncName(stmt.Funcname); fn != "" {
				refs.Functions = append(refs.Functions, fn)
			}
			refs.Functions = append(refs.Functions, collectFuncCalls(stmt.WhenClause)...)
		case *pg_query.Node_CreateStmt:
			for _, element := range node.CreateStmt.TableElts {
				if c := element.GetConstraint(); c != nil {
					refs.Relations = appendForeignKey(refs.Relations, c)
				}
			}
		}
	}

	return refs, nil
}

func extractTableName(rangeVar *pg_query.RangeVar) (schema, table string) {
	if rangeVar.Schemaname != "" {
		schema = rangeVar.Schemaname
	} else {
		schema = defaultSchema
	}
	table = rangeVar.Relname
	return
}

func appendForeignKey(refs []string, constraint *pg_query.Constraint) []string {
	if constraint == nil || constraint.Contype != pg_query.ConstrType_CONSTR_FOREIGN || constraint.Pktable == nil {
		return refs
	}
	schema, table := extractTableName(constraint.Pktable)
	return append(refs, schema+"."+table)
}

// qualifiedFuncName joins a function name list; unqualified names get the default schema
func qualifiedFuncName(names []*pg_query.Node) string {
	var parts []string
	for _, n := range names {
		if str := n.GetString_(); str != nil {
			parts = append(parts, str.Sval)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return defaultSchema + "." + parts[0]
	default:
		// Drop a leading catalog name if present
		return strings.Join(parts[len(parts)-2:], ".")
	}
}

// collectFuncCalls walks the expression shapes a trigger WHEN clause commonly uses
func collectFuncCalls(expr *pg_query.Node) []string {
	if expr == nil {
		return nil
	}

	var calls []string
	switch {
	case expr.GetFuncCall() != nil:
		fc := expr.GetFuncCall()
		if fn := qualifiedFuncName(fc.Funcname); fn != "" && !strings.HasPrefix(fn, "pg_catalog.") {
			calls = append(calls, fn)
		}
		for _, arg := range fc.Args {
			calls = append(calls, collectFuncCalls(arg)...)
		}
	case expr.GetTypeCast() != nil:
		calls = append(calls, collectFuncCalls(expr.GetTypeCast().Arg)...)
	case expr.GetBoolExpr() != nil:
		for _, arg := range expr.GetBoolExpr().Args {
			calls = append(calls, collectFuncCalls(arg)...)
		}
	case expr.GetAExpr() != nil:
		calls = append(calls, collectFuncCalls(expr.GetAExpr().Lexpr)...)
		calls = append(calls, collectFuncCalls(expr.GetAExpr().Rexpr)...)
	}
	return calls
}

// statementText recovers the original text of a statement from its location
func statementText(sql string, raw *pg_query.RawStmt) string {
	start := int(raw.StmtLocation)
	end := len(sql)
	if raw.StmtLen > 0 {
		end = start + int(raw.StmtLen)
	}
	if start < 0 || start > len(sql) || end > len(sql) {
		return strings.TrimSpace(sql)
	}
	text := strings.TrimSpace(sql[start:end])
	if !strings.HasSuffix(text, ";") {
		text += ";"
	}
	return text
}
