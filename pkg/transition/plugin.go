package transition

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/studioops/uuidshift/pkg/codec"
)

var uuidType = reflect.TypeOf(uuid.UUID{})

// Plugin is a gorm.Plugin that injects the shadow-column assignment into
// every create and update touching a registered legacy column. The assignment
// happens before gorm builds the statement, so it commits (or fails) in the
// same transaction as the triggering write: a malformed legacy key fails the
// whole write with *codec.FormatError and nothing is persisted.
type Plugin struct {
	mu     sync.RWMutex
	fields map[string][]Field
}

// NewPlugin creates a Plugin syncing the given fields. More fields can be
// registered later with Register.
func NewPlugin(fields ...Field) *Plugin {
	p := &Plugin{fields: make(map[string][]Field)}
	p.Register(fields...)
	return p
}

// Name implements gorm.Plugin.
func (p *Plugin) Name() string { return "uuidshift:transition" }

// Register adds fields to the sync set. Safe for concurrent use.
func (p *Plugin) Register(fields ...Field) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range fields {
		p.fields[f.Table] = append(p.fields[f.Table], f)
	}
}

// Initialize implements gorm.Plugin by registering write-time callbacks.
func (p *Plugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("uuidshift:sync_shadow_create", p.syncShadow); err != nil {
		return fmt.Errorf("transition plugin: register create callback: %w", err)
	}
	if err := db.Callback().Update().Before("gorm:update").Register("uuidshift:sync_shadow_update", p.syncShadow); err != nil {
		return fmt.Errorf("transition plugin: register update callback: %w", err)
	}
	return nil
}

func (p *Plugin) fieldsFor(table string) []Field {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fields[table]
}

func (p *Plugin) syncShadow(tx *gorm.DB) {
	stmt := tx.Statement
	if stmt == nil {
		return
	}
	for _, f := range p.fieldsFor(stmt.Table) {
		if err := p.apply(tx, f); err != nil {
			_ = tx.AddError(err)
			return
		}
	}
}

func (p *Plugin) apply(tx *gorm.DB, f Field) error {
	stmt := tx.Statement

	// Map-form updates: Model(...).Update(col, v) / Updates(map).
	if dest, ok := stmt.Dest.(map[string]interface{}); ok {
		raw, present := dest[f.Column]
		if !present || raw == nil {
			return nil
		}
		legacy, ok := raw.(string)
		if !ok {
			return fmt.Errorf("transition: %s.%s must be written as a string, got %T", f.Table, f.Column, raw)
		}
		u, err := codec.Decode(legacy)
		if err != nil {
			return err
		}
		dest[f.ShadowColumn()] = u.String()
		return nil
	}

	if stmt.Schema == nil {
		return nil
	}
	legacyField := stmt.Schema.LookUpField(f.Column)
	shadowField := stmt.Schema.LookUpField(f.ShadowColumn())
	if legacyField == nil || shadowField == nil {
		return nil
	}

	switch stmt.ReflectValue.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < stmt.ReflectValue.Len(); i++ {
			if err := syncOne(stmt.Context, legacyField, shadowField, stmt.ReflectValue.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
		return syncOne(stmt.Context, legacyField, shadowField, stmt.ReflectValue)
	default:
		return nil
	}
}

func syncOne(ctx context.Context, legacy, shadow *schema.Field, rv reflect.Value) error {
	rv = reflect.Indirect(rv)
	v, isZero := legacy.ValueOf(ctx, rv)
	if isZero || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("transition: legacy column %s must be a string, got %T", legacy.DBName, v)
	}
	u, err := codec.Decode(s)
	if err != nil {
		return err
	}
	return shadow.Set(ctx, rv, shadowFieldValue(shadow, u))
}

// shadowFieldValue picks the representation the model's shadow field expects:
// uuid.UUID for uuid-typed fields, canonical hyphenated text otherwise.
func shadowFieldValue(shadow *schema.Field, u uuid.UUID) interface{} {
	ft := shadow.FieldType
	for ft.Kind() == reflect.Ptr {
		ft = ft.Elem()
	}
	if ft == uuidType {
		return u
	}
	return u.String()
}
