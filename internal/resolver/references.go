package resolver

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/pgschema/pgaudit/internal/entity"
	"github.com/pgschema/pgaudit/internal/sqlparse"
)

// references returns the signatures obj refers to explicitly: declared
// DependsOn edges plus the relations and functions its definition references
// structurally. Textual matching against the definition is done separately.
func references(obj entity.SchemaObject, log *slog.Logger) []string {
	refs := append([]string(nil), obj.DependsOn...)

	if strings.TrimSpace(obj.Definition) == "" {
		return refs
	}
	parsed, err := sqlparse.ExtractReferences(obj.Definition)
	if err != nil {
		// Unparseable definitions fall back to textual matching only
		log.Debug("Could not parse definition for references", "identity", obj.Identity(), "error", err)
		return refs
	}

	for _, ref := range append(parsed.Relations, parsed.Functions...) {
		if !slices.Contains(refs, ref) {
			refs = append(refs, ref)
		}
	}
	return refs
}

// refersTo reports whether obj (with explicit references refs) refers to other.
// A textual match on one of obj's own signatures is not a reference: objects
// sharing a name, like the per-table audit triggers, do not depend on each other.
func refersTo(obj entity.SchemaObject, refs []string, other entity.SchemaObject) bool {
	own := obj.Signatures()
	for _, sig := range other.Signatures() {
		if slices.Contains(refs, sig) {
			return true
		}
		if slices.Contains(own, sig) {
			continue
		}
		if strings.Contains(obj.Definition, sig) {
			return true
		}
	}
	return false
}

// signatureList is the ordered, duplicate free list of deferred signatures
type signatureList struct {
	items []string
	set   map[string]bool
}

func newSignatureList() *signatureList {
	return &signatureList{set: make(map[string]bool)}
}

func (l *signatureList) add(signatures ...string) {
	for _, sig := range signatures {
		if sig == "" || l.set[sig] {
			continue
		}
		l.set[sig] = true
		l.items = append(l.items, sig)
	}
}

func (l *signatureList) contains(sig string) bool {
	return l.set[sig]
}

// matchText reports whether text contains any signature other than own as a
// literal substring. Incidental matches over-approximate and only cause an
// unnecessary deferral.
func (l *signatureList) matchText(text string, own []string) bool {
	for _, sig := range l.items {
		if slices.Contains(own, sig) {
			continue
		}
		if strings.Contains(text, sig) {
			return true
		}
	}
	return false
}
