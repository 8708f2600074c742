package cmd

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pgschema/pgaudit/audit"
	"github.com/pgschema/pgaudit/internal/catalog"
	"github.com/pgschema/pgaudit/internal/color"
)

func setupStatusRegistry(t *testing.T) (*audit.Registry, []audit.Table) {
	t.Helper()
	registry, tables, err := audit.Setup(audit.MigrationContext{Schema: "audit"}, []audit.AuditTable{{Name: "orders"}})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	return registry, tables
}

func TestStatusCommand(t *testing.T) {
	if StatusCmd.Use != "status" {
		t.Errorf("Expected Use to be 'status', got '%s'", StatusCmd.Use)
	}
	for _, name := range []string{"host", "port", "db", "user", "password", "schema", "config", "no-color"} {
		if StatusCmd.Flags().Lookup(name) == nil {
			t.Errorf("Expected --%s flag to be defined", name)
		}
	}
}

func TestStatusSchemas(t *testing.T) {
	registry, _ := setupStatusRegistry(t)

	got := statusSchemas("audit", registry)
	if diff := cmp.Diff([]string{"audit", "public"}, got); diff != "" {
		t.Errorf("schemas mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteStatusEmptyDatabase(t *testing.T) {
	registry, tables := setupStatusRegistry(t)

	tableState := make(map[string]bool, len(tables))
	for _, table := range tables {
		tableState[table.QualifiedName()] = false
	}

	var buf bytes.Buffer
	writeStatus(&buf, color.New(false), "audit", catalog.NewState(nil), registry, tables, tableState)
	output := buf.String()

	for _, expected := range []string{
		"Schema:",
		"Tables:",
		"Objects:",
		"audit.pga_transaction",
		"function:audit.get_setting(setting text, fallback text)",
		"trigger:public.audit_trigger_insert on public.orders",
	} {
		if !strings.Contains(output, expected) {
			t.Errorf("Expected output to contain %q, got:\n%s", expected, output)
		}
	}
	if strings.Contains(output, "present") {
		t.Errorf("Expected nothing to be present, got:\n%s", output)
	}
	// schema, every registered object and every audit table
	want := 1 + registry.Len() + len(tables)
	if !strings.Contains(output, "run \"pgaudit plan\"") || !strings.Contains(output, strconv.Itoa(want)+" audit objects missing") {
		t.Errorf("Expected %d missing objects, got:\n%s", want, output)
	}
}

func TestWriteStatusUpToDate(t *testing.T) {
	registry, tables := setupStatusRegistry(t)

	var objects []audit.SchemaObject
	for _, entry := range registry.Snapshot() {
		objects = append(objects, entry.Object)
	}
	state := catalog.NewState(map[string]bool{"audit": true, "public": true}, objects...)
	tableState := make(map[string]bool, len(tables))
	for _, table := range tables {
		tableState[table.QualifiedName()] = true
	}

	var buf bytes.Buffer
	writeStatus(&buf, color.New(false), "audit", state, registry, tables, tableState)
	output := buf.String()

	if strings.Contains(output, "missing") {
		t.Errorf("Expected nothing to be missing, got:\n%s", output)
	}
	if !strings.Contains(output, "Audit setup is up to date.") {
		t.Errorf("Expected up to date message, got:\n%s", output)
	}
}
