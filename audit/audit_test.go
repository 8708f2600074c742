package audit

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pgschema/pgaudit/internal/template"
)

func TestSetup(t *testing.T) {
	registry, tables, err := Setup(MigrationContext{Schema: "audit"}, []AuditTable{
		{Name: "orders"},
		{Name: "sales.customers", ExcludedColumns: []string{"password"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var identities []string
	for _, entry := range registry.Snapshot() {
		identities = append(identities, entry.Identity)
	}
	want := []string{
		"extension:public.btree_gist",
		"function:audit.get_setting(setting text, fallback text)",
		"function:audit.jsonb_subtract(arg1 jsonb, arg2 jsonb)",
		"function:audit.create_activity()",
		"trigger:public.audit_trigger_insert on public.orders",
		"trigger:public.audit_trigger_update on public.orders",
		"trigger:public.audit_trigger_delete on public.orders",
		"trigger:sales.audit_trigger_insert on sales.customers",
		"trigger:sales.audit_trigger_update on sales.customers",
		"trigger:sales.audit_trigger_delete on sales.customers",
	}
	if diff := cmp.Diff(want, identities); diff != "" {
		t.Errorf("registry mismatch (-want +got):\n%s", diff)
	}

	var names []string
	for _, table := range tables {
		names = append(names, table.QualifiedName())
	}
	if diff := cmp.Diff([]string{"audit.pga_transaction", "audit.pga_activity"}, names); diff != "" {
		t.Errorf("tables mismatch (-want +got):\n%s", diff)
	}
}

func TestSetupBuildsFreshRegistries(t *testing.T) {
	first, _, err := Setup(MigrationContext{Schema: "audit"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _, err := Setup(MigrationContext{Schema: "audit"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := first.Remove("function:audit.create_activity()"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Len() != first.Len()+1 {
		t.Errorf("expected registries to be independent, got %d and %d entries", first.Len(), second.Len())
	}
}

func TestSetupMissingSchema(t *testing.T) {
	_, _, err := Setup(MigrationContext{}, []AuditTable{{Name: "orders"}})

	var tmplErr *template.Error
	if !errors.As(err, &tmplErr) {
		t.Fatalf("expected *template.Error, got %v", err)
	}
}

func TestOptionsDefaultSchema(t *testing.T) {
	mctx := Options{Params: map[string]any{"owner": "auditor"}}.migrationContext()
	if mctx.Schema != "audit" {
		t.Errorf("expected default schema audit, got %q", mctx.Schema)
	}
	if mctx.Params["owner"] != "auditor" {
		t.Errorf("expected params to be carried over, got %v", mctx.Params)
	}
}
