package domain

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// FieldKind describes how a field is entered and interpreted.
type FieldKind string

// Supported field kinds.
const (
	KindText   FieldKind = "text"
	KindNumber FieldKind = "number"
	KindDate   FieldKind = "date"
	KindSelect FieldKind = "select"
)

// FieldSchema declares one module field.
type FieldSchema struct {
	Name     string    `yaml:"name" json:"name"`
	Label    string    `yaml:"label" json:"label"`
	Kind     FieldKind `yaml:"kind" json:"kind"`
	Required bool      `yaml:"required" json:"required,omitempty"`
	Options  []string  `yaml:"options" json:"options,omitempty"`
	Default  string    `yaml:"default" json:"default,omitempty"`
}

// ModuleSchema declares the field layout of a collection.
type ModuleSchema struct {
	Key        CollectionKey `yaml:"key" json:"key"`
	Title      string        `yaml:"title" json:"title"`
	Regulation string        `yaml:"regulation" json:"regulation"`
	ExportName string        `yaml:"export_name" json:"export_name"`
	Fields     []FieldSchema `yaml:"fields" json:"fields"`
}

// Required returns the fields that must be non-blank.
func (m ModuleSchema) Required() []FieldSchema {
	var out []FieldSchema
	for _, f := range m.Fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// Field looks up a field by name.
func (m ModuleSchema) Field(name string) (FieldSchema, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSchema{}, false
}

// Defaults returns a record pre-filled with each field's default value.
func (m ModuleSchema) Defaults() Record {
	rec := make(Record, len(m.Fields))
	for _, f := range m.Fields {
		rec[f.Name] = f.Default
	}
	return rec
}

// SchemaSet maps every collection to its schema.
type SchemaSet map[CollectionKey]ModuleSchema

// Lookup returns the schema for key.
func (s SchemaSet) Lookup(key CollectionKey) (ModuleSchema, bool) {
	m, ok := s[key]
	return m, ok
}

//go:embed schemas.yaml
var schemaDocument []byte

var (
	defaultSchemasOnce sync.Once
	defaultSchemas     SchemaSet
	defaultSchemasErr  error
)

// ParseSchemas decodes a YAML schema document and checks that it covers every
// collection exactly once.
func ParseSchemas(doc []byte) (SchemaSet, error) {
	var file struct {
		Modules []ModuleSchema `yaml:"modules"`
	}
	if err := yaml.Unmarshal(doc, &file); err != nil {
		return nil, fmt.Errorf("decode schemas: %w", err)
	}
	set := make(SchemaSet, len(file.Modules))
	for _, m := range file.Modules {
		if !m.Key.Valid() {
			return nil, fmt.Errorf("schema for unknown collection %q", m.Key)
		}
		if _, dup := set[m.Key]; dup {
			return nil, fmt.Errorf("duplicate schema for %s", m.Key)
		}
		for i := range m.Fields {
			if m.Fields[i].Kind == "" {
				m.Fields[i].Kind = KindText
			}
		}
		set[m.Key] = m
	}
	for _, k := range CollectionKeys {
		if _, ok := set[k]; !ok {
			return nil, fmt.Errorf("missing schema for %s", k)
		}
	}
	return set, nil
}

// DefaultSchemas returns the embedded module schemas. It panics if the
// embedded document is malformed, which is a build defect.
func DefaultSchemas() SchemaSet {
	defaultSchemasOnce.Do(func() {
		defaultSchemas, defaultSchemasErr = ParseSchemas(schemaDocument)
	})
	if defaultSchemasErr != nil {
		panic(defaultSchemasErr)
	}
	return defaultSchemas
}
