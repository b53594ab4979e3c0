// Package hris reads authoritative employee records. The HR system itself is external; this package
// only adapts its exports into Records.
package hris

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/matthewdavidson09/onboard-sync/tools"
	"gopkg.in/yaml.v3"
)

// Record is one employee as the HR system knows them. It is never mutated during a sync pass.
type Record struct {
	EmployeeID   string `yaml:"employeeId" json:"employeeId"`
	DisplayName  string `yaml:"displayName" json:"displayName"`
	Department   string `yaml:"department" json:"department"`
	Title        string `yaml:"title" json:"title"`
	ManagerName  string `yaml:"managerName" json:"managerName"`
	MobileNumber string `yaml:"mobileNumber" json:"mobileNumber"`

	GivenName   string `yaml:"givenName,omitempty" json:"givenName,omitempty"`
	Surname     string `yaml:"surname,omitempty" json:"surname,omitempty"`
	Email       string `yaml:"email,omitempty" json:"email,omitempty"`
	AccountName string `yaml:"accountName,omitempty" json:"accountName,omitempty"`
}

// Source is the HR collaborator consumed by the sync engine.
type Source interface {
	FetchAll(ctx context.Context) ([]Record, error)
	Fetch(ctx context.Context, employeeIDs []string) ([]Record, error)
}

type roster struct {
	Employees []Record `yaml:"employees"`
}

// FileSource serves records from a YAML export. The file is re-read on every call so each pass sees
// the latest export.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (f *FileSource) FetchAll(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read HR roster %s: %w", f.Path, err)
	}
	var r roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse HR roster %s: %w", f.Path, err)
	}
	records, skipped := clean(r.Employees)
	if skipped > 0 {
		tools.Log.WithField("path", f.Path).Warnf("Skipped %d roster entries without an employeeId", skipped)
	}
	tools.Log.WithField("path", f.Path).Debugf("Loaded %d HR records", len(records))
	return records, nil
}

func (f *FileSource) Fetch(ctx context.Context, employeeIDs []string) ([]Record, error) {
	all, err := f.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(all, employeeIDs), nil
}

// StaticSource serves a fixed slice, e.g. records pushed through the API or built in tests.
type StaticSource struct {
	Records []Record
}

func (s StaticSource) FetchAll(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Record, len(s.Records))
	copy(out, s.Records)
	return out, nil
}

func (s StaticSource) Fetch(ctx context.Context, employeeIDs []string) ([]Record, error) {
	all, err := s.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(all, employeeIDs), nil
}

// Filter keeps records whose EmployeeID is in ids, preserving roster order.
func Filter(records []Record, ids []string) []Record {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			wanted[id] = struct{}{}
		}
	}
	var out []Record
	for _, r := range records {
		if _, ok := wanted[r.EmployeeID]; ok {
			out = append(out, r)
		}
	}
	return out
}

func clean(records []Record) ([]Record, int) {
	out := make([]Record, 0, len(records))
	skipped := 0
	for _, r := range records {
		r.EmployeeID = strings.TrimSpace(r.EmployeeID)
		if r.EmployeeID == "" {
			skipped++
			continue
		}
		out = append(out, r)
	}
	return out, skipped
}
