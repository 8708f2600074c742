package plan

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/pgschema/pgaudit/internal/color"
	"github.com/pgschema/pgaudit/internal/operation"
	"github.com/pgschema/pgaudit/internal/template"
	"github.com/pgschema/pgaudit/internal/version"
)

// Plan is a generated migration: the upgrade operations and their reversal
type Plan struct {
	Upgrade   *operation.UpgradeOps
	Downgrade *operation.UpgradeOps

	// The schema the audit objects live in
	TargetSchema string

	CreatedAt time.Time

	renderer *template.Renderer
}

// ObjectChange is a single operation in structured output
type ObjectChange struct {
	Address string `json:"address"`
	Type    string `json:"type"`
	Action  string `json:"action"`
	SQL     string `json:"sql"`
}

// PlanJSON is the structured JSON and YAML output format
type PlanJSON struct {
	Version        string         `json:"version"`
	PgauditVersion string         `json:"pgaudit_version"`
	CreatedAt      time.Time      `json:"created_at"`
	TargetSchema   string         `json:"target_schema"`
	Summary        PlanSummary    `json:"summary"`
	Changes        []ObjectChange `json:"changes"`
	Downgrade      []ObjectChange `json:"downgrade"`
}

// PlanSummary provides counts of upgrade changes by type
type PlanSummary struct {
	Add     int                    `json:"add"`
	Destroy int                    `json:"destroy"`
	Total   int                    `json:"total"`
	ByType  map[string]TypeSummary `json:"by_type"`
}

// TypeSummary provides counts for a specific object type
type TypeSummary struct {
	Add     int `json:"add"`
	Destroy int `json:"destroy"`
}

// getObjectOrder returns the display order of object types
func getObjectOrder() []operation.ObjectType {
	return []operation.ObjectType{
		operation.ObjectTypeSchema,
		operation.ObjectTypeExtension,
		operation.ObjectTypeTable,
		operation.ObjectTypeFunction,
		operation.ObjectTypeTrigger,
	}
}

// New creates a plan for upgrade; the downgrade is derived from it
func New(upgrade *operation.UpgradeOps, renderer *template.Renderer, targetSchema string) *Plan {
	return &Plan{
		Upgrade:      upgrade,
		Downgrade:    upgrade.Downgrade(),
		TargetSchema: targetSchema,
		CreatedAt:    time.Now(),
		renderer:     renderer,
	}
}

// IsEmpty reports whether the plan has nothing to do
func (p *Plan) IsEmpty() bool {
	return p.Upgrade.IsEmpty()
}

// SQL returns the upgrade statements separated by blank lines
func (p *Plan) SQL() (string, error) {
	return p.render(p.Upgrade)
}

// Statements returns the upgrade statements one by one, for execution
func (p *Plan) Statements() ([]string, error) {
	return p.Upgrade.Statements(p.renderer)
}

// DowngradeStatements returns the downgrade statements one by one
func (p *Plan) DowngradeStatements() ([]string, error) {
	return p.Downgrade.Statements(p.renderer)
}

// DowngradeSQL returns the statements undoing the upgrade
func (p *Plan) DowngradeSQL() (string, error) {
	return p.render(p.Downgrade)
}

// JSON returns the plan as indented JSON
func (p *Plan) JSON() (string, error) {
	planJSON, err := p.structured()
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(planJSON, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan to JSON: %w", err)
	}
	return string(data), nil
}

// YAML returns the plan as YAML, using the JSON field names
func (p *Plan) YAML() (string, error) {
	planJSON, err := p.structured()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(planJSON)
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan to YAML: %w", err)
	}
	return string(data), nil
}

// Human returns a human-readable summary of the plan with optional color
func (p *Plan) Human(enableColor bool) (string, error) {
	c := color.New(enableColor)
	var summary strings.Builder

	planJSON, err := p.structured()
	if err != nil {
		return "", err
	}

	if planJSON.Summary.Total == 0 {
		summary.WriteString("No changes detected.\n")
		return summary.String(), nil
	}

	summary.WriteString(c.FormatPlanHeader(planJSON.Summary.Add, planJSON.Summary.Destroy) + "\n\n")

	summary.WriteString(c.Bold("Summary by type:") + "\n")
	for _, objType := range getObjectOrder() {
		if ts, ok := planJSON.Summary.ByType[string(objType)]; ok {
			summary.WriteString(c.FormatSummaryLine(pluralize(objType), ts.Add, ts.Destroy) + "\n")
		}
	}
	summary.WriteString("\n")

	for _, objType := range getObjectOrder() {
		if _, ok := planJSON.Summary.ByType[string(objType)]; ok {
			writeDetailedChanges(&summary, objType, planJSON.Changes, c)
		}
	}

	summary.WriteString(c.Bold("DDL to be executed:") + "\n")
	summary.WriteString(strings.Repeat("-", 50) + "\n\n")
	sql, err := p.SQL()
	if err != nil {
		return "", err
	}
	summary.WriteString(sql)
	if !strings.HasSuffix(sql, "\n") {
		summary.WriteString("\n")
	}

	return summary.String(), nil
}

func (p *Plan) render(ops *operation.UpgradeOps) (string, error) {
	statements, err := ops.Statements(p.renderer)
	if err != nil {
		return "", err
	}
	if len(statements) == 0 {
		return "", nil
	}

	var b strings.Builder
	for i, stmt := range statements {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(terminate(stmt))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// structured converts the plan into the JSON/YAML representation. Changes are
// kept in execution order.
func (p *Plan) structured() (*PlanJSON, error) {
	planJSON := &PlanJSON{
		Version:        version.PlanFormat(),
		PgauditVersion: version.App(),
		CreatedAt:      p.CreatedAt.Truncate(time.Second),
		TargetSchema:   p.TargetSchema,
		Summary: PlanSummary{
			ByType: make(map[string]TypeSummary),
		},
		Changes:   []ObjectChange{},
		Downgrade: []ObjectChange{},
	}

	changes, err := p.objectChanges(p.Upgrade)
	if err != nil {
		return nil, err
	}
	planJSON.Changes = append(planJSON.Changes, changes...)

	downgrade, err := p.objectChanges(p.Downgrade)
	if err != nil {
		return nil, err
	}
	planJSON.Downgrade = append(planJSON.Downgrade, downgrade...)

	for _, change := range planJSON.Changes {
		ts := planJSON.Summary.ByType[change.Type]
		switch operation.Action(change.Action) {
		case operation.ActionCreate:
			ts.Add++
			planJSON.Summary.Add++
		case operation.ActionDrop:
			ts.Destroy++
			planJSON.Summary.Destroy++
		}
		planJSON.Summary.ByType[change.Type] = ts
		planJSON.Summary.Total++
	}
	return planJSON, nil
}

func (p *Plan) objectChanges(ops *operation.UpgradeOps) ([]ObjectChange, error) {
	changes := make([]ObjectChange, 0, ops.Len())
	for _, op := range ops.Ops {
		sql, err := op.SQL(p.renderer)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s %s: %w", op.Action(), op.Address(), err)
		}
		changes = append(changes, ObjectChange{
			Address: op.Address(),
			Type:    string(op.ObjectType()),
			Action:  string(op.Action()),
			SQL:     terminate(sql),
		})
	}
	return changes, nil
}

// writeDetailedChanges lists the changes of one object type in execution order
func writeDetailedChanges(summary *strings.Builder, objType operation.ObjectType, changes []ObjectChange, c *color.Color) {
	name := pluralize(objType)
	fmt.Fprintf(summary, "%s:\n", c.Bold(strings.ToUpper(name[:1])+name[1:]))

	for _, change := range changes {
		if change.Type != string(objType) {
			continue
		}
		fmt.Fprintf(summary, "  %s %s\n", c.PlanSymbol(change.Action), change.Address)
	}
	summary.WriteString("\n")
}

func pluralize(objType operation.ObjectType) string {
	return string(objType) + "s"
}

func terminate(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if stmt != "" && !strings.HasSuffix(stmt, ";") {
		stmt += ";"
	}
	return stmt
}
