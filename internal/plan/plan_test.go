package plan

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"sigs.k8s.io/yaml"

	"github.com/pgschema/pgaudit/internal/entity"
	"github.com/pgschema/pgaudit/internal/operation"
	"github.com/pgschema/pgaudit/internal/template"
)

var getSetting = entity.SchemaObject{
	Kind:       entity.KindFunction,
	Schema:     "audit",
	Name:       "get_setting",
	Arguments:  "setting text, fallback text",
	Definition: "CREATE OR REPLACE FUNCTION audit.get_setting(setting text, fallback text) RETURNS text AS $$ SELECT fallback $$ LANGUAGE sql;",
}

func testPlan() *Plan {
	upgrade := operation.NewUpgradeOps(
		operation.SchemaCreate{Schema: "audit"},
		operation.EntityCreate{Object: getSetting},
	)
	return New(upgrade, template.MustNewRenderer(), "audit")
}

func TestPlanSQL(t *testing.T) {
	p := testPlan()

	sql, err := p.SQL()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "CREATE SCHEMA IF NOT EXISTS audit;\n\n" + getSetting.Definition + "\n"
	if diff := cmp.Diff(want, sql); diff != "" {
		t.Errorf("upgrade SQL mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanDowngradeSQL(t *testing.T) {
	p := testPlan()

	sql, err := p.DowngradeSQL()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "DROP FUNCTION IF EXISTS audit.get_setting(setting text, fallback text);\n\n" +
		"DROP SCHEMA IF EXISTS audit CASCADE;\n"
	if diff := cmp.Diff(want, sql); diff != "" {
		t.Errorf("downgrade SQL mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanJSON(t *testing.T) {
	p := testPlan()

	out, err := p.JSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed PlanJSON
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("plan JSON does not parse: %v", err)
	}

	if parsed.TargetSchema != "audit" {
		t.Errorf("expected target schema audit, got %q", parsed.TargetSchema)
	}
	wantSummary := PlanSummary{
		Add:   2,
		Total: 2,
		ByType: map[string]TypeSummary{
			"schema":   {Add: 1},
			"function": {Add: 1},
		},
	}
	if diff := cmp.Diff(wantSummary, parsed.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	wantAddresses := []string{"audit", getSetting.Identity()}
	var got []string
	for _, c := range parsed.Changes {
		got = append(got, c.Address)
	}
	if diff := cmp.Diff(wantAddresses, got); diff != "" {
		t.Errorf("changes mismatch (-want +got):\n%s", diff)
	}
	if len(parsed.Downgrade) != 2 || parsed.Downgrade[0].Action != "drop" {
		t.Errorf("unexpected downgrade: %+v", parsed.Downgrade)
	}
}

func TestPlanYAMLUsesJSONFieldNames(t *testing.T) {
	p := testPlan()

	out, err := p.YAML()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "target_schema: audit") {
		t.Errorf("expected target_schema key in YAML output:\n%s", out)
	}

	var parsed PlanJSON
	if err := yaml.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("plan YAML does not parse: %v", err)
	}
	if parsed.Summary.Total != 2 {
		t.Errorf("expected 2 changes, got %d", parsed.Summary.Total)
	}
}

func TestPlanHuman(t *testing.T) {
	p := testPlan()

	out, err := p.Human(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"Plan: 2 to add, 0 to drop.",
		"  schemas: 1 to add, 0 to drop",
		"Functions:\n  + " + getSetting.Identity(),
		"DDL to be executed:",
		"CREATE SCHEMA IF NOT EXISTS audit;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected human output to contain %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("expected no ANSI codes with color disabled")
	}
}

func TestEmptyPlan(t *testing.T) {
	p := New(operation.NewUpgradeOps(), template.MustNewRenderer(), "audit")

	if !p.IsEmpty() {
		t.Error("expected empty plan")
	}
	out, err := p.Human(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "No changes detected.\n" {
		t.Errorf("unexpected output %q", out)
	}
	sql, err := p.SQL()
	if err != nil || sql != "" {
		t.Errorf("expected no SQL, got %q (err %v)", sql, err)
	}
}
