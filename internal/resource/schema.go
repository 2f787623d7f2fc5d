// Package resource renders list, form and delete pages for CRM entities
// described by a declarative Schema.
package resource

import (
	"fmt"
	"slices"
	"strings"
)

// Kind selects the input widget and the JSON encoding of a field.
type Kind string

const (
	KindText     Kind = "text"
	KindEmail    Kind = "email"
	KindTel      Kind = "tel"
	KindNumber   Kind = "number"
	KindMoney    Kind = "money"
	KindDate     Kind = "date"
	KindTextarea Kind = "textarea"
	KindSelect   Kind = "select"
)

// Relation points a field at the identifier of another resource. Options
// are labelled with the target schema's LabelFields.
type Relation struct {
	Resource string
}

// Field describes one attribute of a resource.
type Field struct {
	Name     string
	Label    string
	Kind     Kind
	Validate string
	Options  []string
	Relation *Relation
}

// Required reports whether the validate tag demands a value.
func (f Field) Required() bool {
	for _, tag := range strings.Split(f.Validate, ",") {
		if tag == "required" {
			return true
		}
	}
	return false
}

// Numeric reports whether the value is sent as a JSON number.
func (f Field) Numeric() bool {
	return f.Kind == KindNumber || f.Kind == KindMoney || f.Relation != nil
}

// Schema declares how one CRM entity is listed, edited and deleted.
type Schema struct {
	Name         string
	Singular     string
	Title        string
	Path         string
	APIPath      string
	IDField      string
	Fields       []Field
	UpdateFields []string
	ListColumns  []string
	LabelFields  []string
	Deletable    bool
	DetailLinks  bool
}

// Field returns the named field.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Columns resolves ListColumns to fields, in order.
func (s *Schema) Columns() []Field {
	cols := make([]Field, 0, len(s.ListColumns))
	for _, name := range s.ListColumns {
		if f, ok := s.Field(name); ok {
			cols = append(cols, f)
		}
	}
	return cols
}

// Editable reports whether name is submitted when updating a record.
func (s *Schema) Editable(name string) bool {
	if len(s.UpdateFields) == 0 {
		return true
	}
	return slices.Contains(s.UpdateFields, name)
}

// Relations lists the resources referenced by the schema's fields.
func (s *Schema) Relations() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Relation != nil && !slices.Contains(names, f.Relation.Resource) {
			names = append(names, f.Relation.Resource)
		}
	}
	return names
}

// Label builds the human label of rec from fields.
func Label(rec Record, fields []string) string {
	parts := make([]string, 0, len(fields))
	for _, name := range fields {
		if v := rec.Text(name); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// Registry indexes schemas by name so relations can be resolved.
type Registry struct {
	order  []*Schema
	byName map[string]*Schema
}

// NewRegistry validates and indexes schemas.
func NewRegistry(schemas ...*Schema) (*Registry, error) {
	reg := &Registry{byName: make(map[string]*Schema, len(schemas))}
	for _, s := range schemas {
		if s.Name == "" || s.Path == "" || s.APIPath == "" || s.IDField == "" {
			return nil, fmt.Errorf("resource: schema %q is incomplete", s.Name)
		}
		if _, dup := reg.byName[s.Name]; dup {
			return nil, fmt.Errorf("resource: duplicate schema %q", s.Name)
		}
		reg.byName[s.Name] = s
		reg.order = append(reg.order, s)
	}
	for _, s := range schemas {
		for _, rel := range s.Relations() {
			if _, ok := reg.byName[rel]; !ok {
				return nil, fmt.Errorf("resource: schema %q references unknown %q", s.Name, rel)
			}
		}
		for _, name := range s.UpdateFields {
			if _, ok := s.Field(name); !ok {
				return nil, fmt.Errorf("resource: schema %q updates unknown field %q", s.Name, name)
			}
		}
	}
	return reg, nil
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (*Schema, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// All returns the schemas in registration order.
func (r *Registry) All() []*Schema {
	return slices.Clone(r.order)
}
