package hrsync

import (
	"fmt"
	"strings"

	ad "github.com/matthewdavidson09/onboard-sync/internal/active_directory"
	"github.com/matthewdavidson09/onboard-sync/internal/hris"
	"golang.org/x/text/unicode/norm"
)

// Field is one of the HR-owned attributes kept in step with the directory.
type Field string

const (
	FieldDepartment Field = "department"
	FieldTitle      Field = "title"
	FieldManager    Field = "manager"
	FieldMobile     Field = "mobile"
)

// TrackedFields is the complete, ordered set of fields the diff looks at.
var TrackedFields = []Field{FieldDepartment, FieldTitle, FieldManager, FieldMobile}

// Attribute is the directory attribute the field is written to.
func (f Field) Attribute() string {
	return string(f)
}

type Change struct {
	Current  string `json:"current"`
	Proposed string `json:"proposed"`
}

// FieldDiff holds only the fields whose values differ. A field absent from the map is never written.
type FieldDiff map[Field]Change

// ManagerResolver maps a manager's name to the DN stored in the manager attribute.
type ManagerResolver func(name string) (string, error)

// Normalize is the comparison form of a value: NFC, trimmed, inner whitespace collapsed.
func Normalize(v string) string {
	return strings.Join(strings.Fields(norm.NFC.String(v)), " ")
}

// ComputeDiff compares the tracked fields of an HR record with the live directory values.
func ComputeDiff(rec hris.Record, attrs ad.DirectoryAttributes) FieldDiff {
	proposed := map[Field]string{
		FieldDepartment: rec.Department,
		FieldTitle:      rec.Title,
		FieldManager:    rec.ManagerName,
		FieldMobile:     rec.MobileNumber,
	}
	current := map[Field]string{
		FieldDepartment: attrs.Department,
		FieldTitle:      attrs.Title,
		FieldManager:    attrs.ManagerName,
		FieldMobile:     attrs.MobileNumber,
	}

	diff := FieldDiff{}
	for _, f := range TrackedFields {
		cur, next := Normalize(current[f]), Normalize(proposed[f])
		if cur == next {
			continue
		}
		diff[f] = Change{Current: cur, Proposed: next}
	}
	return diff
}

// Fields lists the fields in the diff in tracked order.
func (d FieldDiff) Fields() []Field {
	out := make([]Field, 0, len(d))
	for _, f := range TrackedFields {
		if _, ok := d[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

func (d FieldDiff) String() string {
	parts := make([]string, 0, len(d))
	for _, f := range d.Fields() {
		c := d[f]
		parts = append(parts, fmt.Sprintf("%s: %q -> %q", f, c.Current, c.Proposed))
	}
	return strings.Join(parts, "; ")
}

// Attributes turns the diff into the (changes, current) pair UpdateUserAttributes takes. An empty
// proposal clears the attribute. The manager name is resolved to a DN first.
func (d FieldDiff) Attributes(resolveManager ManagerResolver) (changes, current map[string]string, err error) {
	changes = make(map[string]string, len(d))
	current = make(map[string]string, len(d))
	for _, f := range d.Fields() {
		c := d[f]
		value := c.Proposed
		if f == FieldManager && value != "" {
			if resolveManager == nil {
				return nil, nil, fmt.Errorf("manager %q cannot be resolved without a directory lookup", value)
			}
			dn, err := resolveManager(value)
			if err != nil {
				return nil, nil, fmt.Errorf("manager %q could not be resolved: %w", value, err)
			}
			value = dn
		}
		changes[f.Attribute()] = value
		current[f.Attribute()] = c.Current
	}
	return changes, current, nil
}
