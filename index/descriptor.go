package index

import (
	"fmt"
	"regexp"
)

// Standard field names of a harvest index.
const (
	FieldID            = "id"
	FieldContent       = "content"
	FieldTitle         = "title"
	FieldURL           = "url"
	FieldChunkIndex    = "chunk_index"
	FieldSourceType    = "source_type"
	FieldMetadata      = "metadata"
	FieldContentVector = "content_vector"
)

// FieldKind is the storage type of a field.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindInt    FieldKind = "int"
	KindVector FieldKind = "vector"
)

// Field describes one field of the index schema.
type Field struct {
	Name       string    `json:"name"`
	Kind       FieldKind `json:"kind"`
	Key        bool      `json:"key,omitempty"`
	Searchable bool      `json:"searchable,omitempty"`
	Filterable bool      `json:"filterable,omitempty"`
	Dimension  int       `json:"dimension,omitempty"`
}

// Descriptor is the schema an index is created with.
type Descriptor struct {
	Fields []Field `json:"fields"`
	// Metric is the vector similarity function. Only "cosine" is supported.
	Metric string `json:"metric"`
}

// NewDescriptor returns the chunk schema with a vector field of dimension.
func NewDescriptor(dimension int) Descriptor {
	return Descriptor{
		Fields: []Field{
			{Name: FieldID, Kind: KindString, Key: true, Filterable: true},
			{Name: FieldContent, Kind: KindString, Searchable: true},
			{Name: FieldTitle, Kind: KindString, Searchable: true, Filterable: true},
			{Name: FieldURL, Kind: KindString, Filterable: true},
			{Name: FieldChunkIndex, Kind: KindInt, Filterable: true},
			{Name: FieldSourceType, Kind: KindString, Filterable: true},
			{Name: FieldMetadata, Kind: KindString, Searchable: true},
			{Name: FieldContentVector, Kind: KindVector, Dimension: dimension},
		},
		Metric: "cosine",
	}
}

// Field looks up a field by name.
func (d Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Dimension returns the size of the vector field, or 0 if there is none.
func (d Descriptor) Dimension() int {
	for _, f := range d.Fields {
		if f.Kind == KindVector {
			return f.Dimension
		}
	}
	return 0
}

// Searchable returns the names of the full-text fields.
func (d Descriptor) Searchable() []string {
	var names []string
	for _, f := range d.Fields {
		if f.Searchable {
			names = append(names, f.Name)
		}
	}
	return names
}

// Validate checks that the schema has a key, a content field and a positive
// vector dimension.
func (d Descriptor) Validate() error {
	key, ok := d.Field(FieldID)
	if !ok || !key.Key {
		return fmt.Errorf("%w: missing key field %q", ErrInvalidDescriptor, FieldID)
	}
	if _, ok := d.Field(FieldContent); !ok {
		return fmt.Errorf("%w: missing field %q", ErrInvalidDescriptor, FieldContent)
	}
	if d.Dimension() <= 0 {
		return fmt.Errorf("%w: vector dimension must be positive", ErrInvalidDescriptor)
	}
	if d.Metric != "cosine" {
		return fmt.Errorf("%w: unsupported metric %q", ErrInvalidDescriptor, d.Metric)
	}
	return nil
}

var indexNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,127}$`)

// ValidateName checks an index name: lowercase letters, digits and dashes,
// 2 to 128 characters, not starting with a dash.
func ValidateName(name string) error {
	if !indexNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIndexName, name)
	}
	return nil
}
