package catalog

import (
	"testing"

	"github.com/pgschema/pgaudit/internal/entity"
)

func TestNewState(t *testing.T) {
	trigger := entity.SchemaObject{
		Kind:   entity.KindTrigger,
		Schema: "public",
		Name:   "audit_trigger_insert",
		Table:  "public.orders",
	}
	state := NewState(map[string]bool{"audit": true}, trigger)

	if !state.Schemas["audit"] {
		t.Error("expected audit schema to exist")
	}
	if !state.Exists("trigger:public.audit_trigger_insert on public.orders") {
		t.Error("expected trigger to exist")
	}
	if state.Exists("trigger:public.audit_trigger_insert on public.customers") {
		t.Error("expected trigger on another table not to exist")
	}
	if len(state.Objects) != 1 {
		t.Errorf("expected 1 object, got %d", len(state.Objects))
	}
}
