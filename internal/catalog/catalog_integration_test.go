package catalog

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pgschema/pgaudit/internal/entity"
	"github.com/pgschema/pgaudit/testutil"
)

func TestCatalogIntegration(t *testing.T) {
	ctx := context.Background()
	container := testutil.SetupPostgresContainer(ctx, t)
	defer container.Terminate(ctx, t)

	container.Exec(ctx, t,
		"CREATE SCHEMA audit",
		"CREATE EXTENSION btree_gist WITH SCHEMA public",
		"CREATE TABLE public.orders (id serial PRIMARY KEY)",
		`CREATE FUNCTION audit.get_setting(setting text, fallback text) RETURNS text AS $$
			SELECT coalesce(nullif(current_setting(setting, 't'), ''), fallback)
		$$ LANGUAGE sql`,
		`CREATE FUNCTION audit.noop() RETURNS trigger AS $$ BEGIN RETURN NULL; END; $$ LANGUAGE plpgsql`,
		"CREATE TRIGGER audit_trigger_insert AFTER INSERT ON public.orders FOR EACH ROW EXECUTE FUNCTION audit.noop()",
	)

	c := New(container.Conn)

	for schema, want := range map[string]bool{"audit": true, "public": true, "missing": false} {
		got, err := c.SchemaExists(ctx, schema)
		if err != nil {
			t.Fatalf("SchemaExists(%s): %v", schema, err)
		}
		if got != want {
			t.Errorf("SchemaExists(%s) = %v, want %v", schema, got, want)
		}
	}

	exists, err := c.TableExists(ctx, "public", "orders")
	if err != nil || !exists {
		t.Errorf("TableExists(public, orders) = %v, %v", exists, err)
	}
	exists, err = c.TableExists(ctx, "audit", "orders")
	if err != nil || exists {
		t.Errorf("TableExists(audit, orders) = %v, %v", exists, err)
	}

	functions, err := c.ExistingIdentities(ctx, entity.KindFunction, "audit")
	if err != nil {
		t.Fatalf("ExistingIdentities(function): %v", err)
	}
	wantFunctions := []string{
		"function:audit.get_setting(setting text, fallback text)",
		"function:audit.noop()",
	}
	if diff := cmp.Diff(wantFunctions, functions); diff != "" {
		t.Errorf("functions mismatch (-want +got):\n%s", diff)
	}

	triggers, err := c.ExistingIdentities(ctx, entity.KindTrigger, "public")
	if err != nil {
		t.Fatalf("ExistingIdentities(trigger): %v", err)
	}
	if diff := cmp.Diff([]string{"trigger:public.audit_trigger_insert on public.orders"}, triggers); diff != "" {
		t.Errorf("triggers mismatch (-want +got):\n%s", diff)
	}

	state, err := c.Snapshot(ctx, []string{"audit", "public", "missing"})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !state.Schemas["audit"] || state.Schemas["missing"] {
		t.Errorf("unexpected schema state %v", state.Schemas)
	}
	for _, id := range []string{
		"extension:public.btree_gist",
		"function:audit.noop()",
		"trigger:public.audit_trigger_insert on public.orders",
	} {
		if !state.Exists(id) {
			t.Errorf("expected %s in snapshot", id)
		}
	}
}
