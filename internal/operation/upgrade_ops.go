package operation

import (
	"fmt"
	"strings"

	"github.com/pgschema/pgaudit/internal/template"
)

// UpgradeOps is the ordered list of operations composing one generated
// migration. Comparators read and mutate it in place.
type UpgradeOps struct {
	Ops []Operation
}

// NewUpgradeOps creates an operation list holding ops
func NewUpgradeOps(ops ...Operation) *UpgradeOps {
	return &UpgradeOps{Ops: ops}
}

// Insert places op at index, shifting later operations back. Indexes past the
// end append.
func (u *UpgradeOps) Insert(index int, op Operation) {
	if index < 0 {
		index = 0
	}
	if index >= len(u.Ops) {
		u.Ops = append(u.Ops, op)
		return
	}
	u.Ops = append(u.Ops, nil)
	copy(u.Ops[index+1:], u.Ops[index:])
	u.Ops[index] = op
}

// Append adds ops to the end of the list
func (u *UpgradeOps) Append(ops ...Operation) {
	u.Ops = append(u.Ops, ops...)
}

// Len returns the number of operations
func (u *UpgradeOps) Len() int {
	return len(u.Ops)
}

// IsEmpty reports whether the migration has no operations
func (u *UpgradeOps) IsEmpty() bool {
	return len(u.Ops) == 0
}

// TableCreates returns the staged table creations in order
func (u *UpgradeOps) TableCreates() []TableCreate {
	var creates []TableCreate
	for _, op := range u.Ops {
		if tc, ok := op.(TableCreate); ok {
			creates = append(creates, tc)
		}
	}
	return creates
}

// IndexOf returns the index of the first operation matching pred, or -1
func (u *UpgradeOps) IndexOf(pred func(Operation) bool) int {
	for i, op := range u.Ops {
		if pred(op) {
			return i
		}
	}
	return -1
}

// Downgrade returns the operations that undo this migration: every operation
// reversed, in reverse order.
func (u *UpgradeOps) Downgrade() *UpgradeOps {
	down := make([]Operation, 0, len(u.Ops))
	for i := len(u.Ops) - 1; i >= 0; i-- {
		down = append(down, u.Ops[i].Reverse())
	}
	return &UpgradeOps{Ops: down}
}

// Statements renders every operation to SQL
func (u *UpgradeOps) Statements(r *template.Renderer) ([]string, error) {
	statements := make([]string, 0, len(u.Ops))
	for _, op := range u.Ops {
		stmt, err := op.SQL(r)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s %s %s: %w", op.Action(), op.ObjectType(), op.Address(), err)
		}
		statements = append(statements, strings.TrimSpace(stmt))
	}
	return statements, nil
}
