package transition

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML descriptor file listing every transitioned column of a
// table family. Descriptors are explicit values handed to each operation;
// there is no ambient global registry, so the same process can drive several
// table families without cross-contamination.
type Config struct {
	Fields []Field `yaml:"fields"`
}

// LoadConfig reads and validates a descriptor file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("transition config: failed to read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("transition config: failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("transition config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks every field and the referential consistency of the family:
// a foreign-key field must reference a primary-key field declared in the same
// config, since cutover and validation need the parent's shadow column.
func (c *Config) Validate() error {
	if len(c.Fields) == 0 {
		return fmt.Errorf("no fields declared")
	}
	pks := make(map[string]string) // table -> pk column
	for _, f := range c.Fields {
		if err := f.Validate(); err != nil {
			return err
		}
		if f.PrimaryKey {
			if prev, ok := pks[f.Table]; ok {
				return fmt.Errorf("table %s declares two primary-key fields (%s, %s)", f.Table, prev, f.Column)
			}
			pks[f.Table] = f.Column
		}
	}
	for _, f := range c.Fields {
		if f.References == nil {
			continue
		}
		pk, ok := pks[f.References.Table]
		if !ok {
			return fmt.Errorf("field %s.%s references %s, which has no primary-key field in this config",
				f.Table, f.Column, f.References.Table)
		}
		if pk != f.References.Column {
			return fmt.Errorf("field %s.%s references %s.%s, but the declared primary key is %s",
				f.Table, f.Column, f.References.Table, f.References.Column, pk)
		}
	}
	return nil
}

// FieldsFor returns the fields declared on one table.
func (c *Config) FieldsFor(table string) []Field {
	var out []Field
	for _, f := range c.Fields {
		if f.Table == table {
			out = append(out, f)
		}
	}
	return out
}

// TableNames returns the distinct table names in declaration order.
func (c *Config) TableNames() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range c.Fields {
		if !seen[f.Table] {
			seen[f.Table] = true
			out = append(out, f.Table)
		}
	}
	return out
}

// PrimaryKeyField returns the primary-key field of a table, if declared.
func (c *Config) PrimaryKeyField(table string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Table == table && f.PrimaryKey {
			return f, true
		}
	}
	return Field{}, false
}
