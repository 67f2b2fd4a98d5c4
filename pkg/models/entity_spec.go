package models

import (
	"fmt"

	"github.com/seedforge/seedforge/pkg/apperrors"
)

// FieldType classifies a generated field for the prompt's output schema.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldEnum   FieldType = "enum"
)

// FieldSpec describes one field every generated record must carry.
// The order of fields in EntitySpec.Fields is the order rendered into
// the prompt's output schema.
type FieldSpec struct {
	Name string    `yaml:"name" json:"name"`
	Type FieldType `yaml:"type" json:"type"`
	// Enum lists the allowed values when Type is FieldEnum.
	Enum []string `yaml:"enum,omitempty" json:"enum,omitempty"`
}

// LinkedSpec points an entity type at the previously generated entity set it
// must reference. Generated records carry the referenced id in ForeignKey.
type LinkedSpec struct {
	EntityType    string   `yaml:"entity_type" json:"entity_type"`
	ForeignKey    string   `yaml:"foreign_key" json:"foreign_key"`
	FilePath      string   `yaml:"file_path" json:"file_path"`
	DisplayFields []string `yaml:"display_fields" json:"display_fields"`
	// Required makes a missing context file fatal for the run.
	Required bool `yaml:"required" json:"required"`
	// MaxItems bounds the context slice included in prompts (default 10, cap 20).
	MaxItems int `yaml:"max_items" json:"max_items"`
}

// EntitySpec is the static description of one entity type to generate.
type EntitySpec struct {
	Type        string      `yaml:"type" json:"type"`
	TargetCount int         `yaml:"target_count" json:"target_count"`
	BatchSize   int         `yaml:"batch_size" json:"batch_size"`
	UniqueKey   string      `yaml:"unique_key" json:"unique_key"`
	Fields      []FieldSpec `yaml:"fields" json:"fields"`
	Linked      *LinkedSpec `yaml:"linked,omitempty" json:"linked,omitempty"`
	OutputFile  string      `yaml:"output_file" json:"output_file"`
}

// Validate checks the spec before any prompt is built or network call made.
// All failures wrap apperrors.ErrInvalidSpec.
func (s *EntitySpec) Validate() error {
	if s.Type == "" {
		return fmt.Errorf("%w: entity type is empty", apperrors.ErrInvalidSpec)
	}
	if s.TargetCount <= 0 {
		return fmt.Errorf("%w: target count %d for %s", apperrors.ErrInvalidSpec, s.TargetCount, s.Type)
	}
	if s.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size %d for %s", apperrors.ErrInvalidSpec, s.BatchSize, s.Type)
	}
	if s.UniqueKey == "" {
		return fmt.Errorf("%w: unique key is empty for %s", apperrors.ErrInvalidSpec, s.Type)
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("%w: no fields declared for %s", apperrors.ErrInvalidSpec, s.Type)
	}
	if !s.HasField(s.UniqueKey) {
		return fmt.Errorf("%w: unique key %q is not a declared field of %s", apperrors.ErrInvalidSpec, s.UniqueKey, s.Type)
	}
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: unnamed field in %s", apperrors.ErrInvalidSpec, s.Type)
		}
		if f.Type == FieldEnum && len(f.Enum) == 0 {
			return fmt.Errorf("%w: enum field %q of %s has no values", apperrors.ErrInvalidSpec, f.Name, s.Type)
		}
	}
	if s.Linked != nil {
		if s.Linked.ForeignKey == "" {
			return fmt.Errorf("%w: linked spec for %s has no foreign key", apperrors.ErrInvalidSpec, s.Type)
		}
		if s.Linked.FilePath == "" {
			return fmt.Errorf("%w: linked spec for %s has no file path", apperrors.ErrInvalidSpec, s.Type)
		}
	}
	return nil
}

// HasField reports whether name is a declared field.
func (s *EntitySpec) HasField(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// FieldNames returns the declared field names in schema order.
func (s *EntitySpec) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

/// RequiredFields returns every field a generated record must contain:
// the declared schema plus the foreign-key field when linked.
func (s *EntitySpec) RequiredFields() []string {
	names := s.FieldNames()
	if s.Linked != nil && !s.HasField(s.Linked.ForeignKey) {
		names = append(names, s.Linked.ForeignKey)
	}
	return names
}
