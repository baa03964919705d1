package uorm

import (
	"context"
	"fmt"
	"slices"
)

const (
	idField       = "_id"
	submodelField = "submodel"
)

// Field declares one field of a model
type Field struct {
	Name string
	// Default is used when the field is absent. Mutable defaults (maps, slices)
	// must use DefaultFunc, Default values are shared between records.
	Default any
	// DefaultFunc is called once per construction if the field is absent, it wins over Default
	DefaultFunc func() any
	// Required fields must be non-nil on save
	Required bool
	// Rejected fields are skipped by Record.Update, only Set changes them
	Rejected bool
	// Restricted fields are left out of ToDoc(false) but persisted and cached
	Restricted bool
}

func (f *Field) defaultValue() any {
	if f.DefaultFunc != nil {
		return f.DefaultFunc()
	}
	return f.Default
}

// Hooks are called around Save and Destroy unless SkipCallback is given.
// An error of a Before hook aborts the operation.
type Hooks struct {
	BeforeSave   func(ctx context.Context, r *Record) error
	AfterSave    func(ctx context.Context, r *Record) error
	BeforeDelete func(ctx context.Context, r *Record) error
	AfterDelete  func(ctx context.Context, r *Record) error
}

// Schema describes a model: its collection, fields and cache keys
type Schema struct {
	Collection string
	// KeyField is queried by Get for expressions that are no ObjectID. Defaults to _id.
	// A key value that is a canonical ObjectID hex string can never be looked up
	// through Get, the expression resolves to an _id query.
	KeyField string
	// CacheKeyFields are invalidated on save. Defaults to _id and KeyField.
	CacheKeyFields []string
	Fields         []Field
	Hooks          Hooks
}

// normalize validates the schema and fills in the defaults
func (s Schema) normalize() (Schema, error) {
	if s.Collection == "" {
		return s, integrityError("schema without collection")
	}

	s.Fields = slices.Clone(s.Fields)
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		switch {
		case f.Name == "":
			return s, integrityError("%s: field without name", s.Collection)
		case f.Name == idField || f.Name == submodelField:
			return s, integrityError("%s: field %s is reserved", s.Collection, f.Name)
		case seen[f.Name]:
			return s, integrityError("%s: field %s declared twice", s.Collection, f.Name)
		}
		seen[f.Name] = true
	}

	if s.KeyField == "" {
		s.KeyField = idField
	}
	if s.KeyField != idField && !seen[s.KeyField] {
		return s, integrityError("%s: key field %s is not declared", s.Collection, s.KeyField)
	}

	if len(s.CacheKeyFields) == 0 {
		s.CacheKeyFields = []string{idField}
		if s.KeyField != idField {
			s.CacheKeyFields = append(s.CacheKeyFields, s.KeyField)
		}
	} else {
		s.CacheKeyFields = slices.Clone(s.CacheKeyFields)
	}
	for _, name := range s.CacheKeyFields {
		if name != idField && !seen[name] {
			return s, integrityError("%s: cache key field %s is not declared", s.Collection, name)
		}
	}
	return s, nil
}

func (s Schema) field(name string) (*Field, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

func (s Schema) String() string {
	return fmt.Sprintf("%s(%d fields, key %s)", s.Collection, len(s.Fields), s.KeyField)
}
