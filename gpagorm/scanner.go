package gpagorm

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/lemmego/gpameta"
	"gorm.io/gorm/schema"
)

// =====================================
// Scanner
// =====================================

// Scanner reads entity metadata from gorm model schemas. Column details come
// from gorm's parsed fields and relationships; the `gpa` tag adds what gorm
// tags cannot express.
type Scanner struct {
	config gpameta.Config
	namer  schema.NamingStrategy
	cache  *sync.Map
}

// NewScanner creates a scanner using the mapping settings of config
func NewScanner(config gpameta.Config) *Scanner {
	return &Scanner{
		config: config,
		namer:  NamingStrategy(config),
		cache:  &sync.Map{},
	}
}

// NamingStrategy builds the gorm naming strategy for config. The gorm
// "singular_table" option wins over the mapping block.
func NamingStrategy(config gpameta.Config) schema.NamingStrategy {
	ns := schema.NamingStrategy{
		TablePrefix:   config.Mapping.TablePrefix,
		SingularTable: config.Mapping.SingularTable,
	}
	if v, ok := config.Option("gorm", "singular_table"); ok {
		if singular, ok := v.(bool); ok {
			ns.SingularTable = singular
		}
	}
	return ns
}

// Scan parses every model and the superclasses they inherit from. Models may
// be values, pointers or reflect.Type.
func (s *Scanner) Scan(models ...any) ([]*gpameta.EntityClass, error) {
	queue, err := modelTypes(models)
	if err != nil {
		return nil, err
	}

	var classes []*gpameta.EntityClass
	seen := make(map[reflect.Type]bool)
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		if seen[t] {
			continue
		}
		seen[t] = true

		class, super, err := s.scanEntity(t)
		if err != nil {
			return nil, err
		}
		classes = append(classes, class)
		if super != nil && !seen[super] {
			queue = append(queue, super)
		}
	}
	return classes, nil
}

func (s *Scanner) parse(t reflect.Type) (*schema.Schema, error) {
	sch, err := schema.Parse(reflect.New(t).Interface(), s.cache, s.namer)
	if err != nil {
		return nil, gpameta.NewErrorWithCause(gpameta.ErrorTypeMapping,
			fmt.Sprintf("failed to parse %s", gpameta.TypeName(t)), convertGormError(err))
	}
	return sch, nil
}

func (s *Scanner) scanEntity(t reflect.Type) (*gpameta.EntityClass, reflect.Type, error) {
	sch, err := s.parse(t)
	if err != nil {
		return nil, nil, err
	}

	class := gpameta.NewEntityClass(t, s.config.BindingContext("gorm", t))
	class.PrimaryTable.Name = sch.Table

	w := &walker{scanner: s, schema: sch, owner: sch, ctx: class.LocalBindingContext}
	m, super, err := w.walk(t, nil, "", true)
	if err != nil {
		return nil, nil, err
	}
	class.SimpleAttributes = m.basics
	class.EmbeddedClasses = m.embedded
	class.AssociationAttributes = m.associations
	class.ConstraintSources = append(class.ConstraintSources, w.constraints...)
	if super != nil {
		class.Superclass = gpameta.Some(gpameta.TypeName(super))
	}
	class.JpaCallbacks = withNativeHooks(class.Name, class.JpaCallbacks, sch)
	return class, super, nil
}

// elementClass describes the element type of an element collection
func (s *Scanner) elementClass(elem reflect.Type, name, path string, ctx gpameta.LocalBindingContext) (*gpameta.EmbeddableClass, error) {
	sch, err := s.parse(elem)
	if err != nil {
		return nil, err
	}
	w := &walker{scanner: s, schema: sch, owner: sch, ctx: ctx}
	m, _, err := w.walk(elem, nil, path, false)
	if err != nil {
		return nil, err
	}
	return &gpameta.EmbeddableClass{
		Name:                  name,
		Path:                  path,
		ClassName:             gpameta.TypeName(elem),
		SimpleAttributes:      m.basics,
		EmbeddedClasses:       m.embedded,
		AssociationAttributes: m.associations,
		LocalBindingContext:   ctx,
	}, nil
}

// =====================================
// Struct Walk
// =====================================

type members struct {
	basics       []*gpameta.BasicAttribute
	embedded     []*gpameta.EmbeddableClass
	associations []*gpameta.AssociationAttribute
}

func (m *members) merge(other members) {
	m.basics = append(m.basics, other.basics...)
	m.embedded = append(m.embedded, other.embedded...)
	m.associations = append(m.associations, other.associations...)
}

type walker struct {
	scanner     *Scanner
	schema      *schema.Schema
	owner       *schema.Schema
	ctx         gpameta.LocalBindingContext
	constraints []gpameta.ConstraintSource
}

// walk collects the attributes declared by struct type t. bind is the gorm
// bind-name path of t inside the parsed schema and path its attribute path.
func (w *walker) walk(t reflect.Type, bind []string, path string, top bool) (members, reflect.Type, error) {
	var m members
	var super reflect.Type

	for _, f := range gpameta.MappedFields(t) {
		fieldBind := append(append([]string(nil), bind...), f.Name)
		name := gpameta.AttributeName(f.Name)
		gormTag := schema.ParseTagSetting(f.StructField.Tag.Get("gorm"), ";")

		switch {
		case f.Tag.Inherits:
			if !top || !f.Anonymous {
				return m, nil, gpameta.NewErrorf(gpameta.ErrorTypeMapping,
					"%s: inherits is only allowed on an embedded entity of a top-level model", f.Name)
			}
			super = indirect(f.Type)

		case f.Anonymous && indirect(f.Type).Kind() == reflect.Struct && !f.Tag.Embedded:
			// promoted fields belong to the owner
			inner, innerSuper, err := w.walk(indirect(f.Type), fieldBind, path, top)
			if err != nil {
				return m, nil, err
			}
			m.merge(inner)
			if innerSuper != nil {
				super = innerSuper
			}

		case f.Tag.ElementCollection:
			attr, err := w.elementCollection(f, name, gpameta.JoinPath(path, name))
			if err != nil {
				return m, nil, err
			}
			m.associations = append(m.associations, attr)

		case f.Tag.Nature != "" || w.relation(fieldBind) != nil:
			attr, err := w.association(f, fieldBind, name)
			if err != nil {
				return m, nil, err
			}
			m.associations = append(m.associations, attr)

		case f.Tag.Embedded || hasSetting(gormTag, "EMBEDDED"):
			attrPath := gpameta.JoinPath(path, name)
			inner, _, err := w.walk(indirect(f.Type), fieldBind, attrPath, false)
			if err != nil {
				return m, nil, err
			}
			m.embedded = append(m.embedded, &gpameta.EmbeddableClass{
				Name:                  name,
				Path:                  attrPath,
				ClassName:             gpameta.TypeName(f.Type),
				SimpleAttributes:      inner.basics,
				EmbeddedClasses:       inner.embedded,
				AssociationAttributes: inner.associations,
				LocalBindingContext:   w.ctx,
			})

		default:
			if attr := w.basic(f, fieldBind, name); attr != nil {
				m.basics = append(m.basics, attr)
			}
		}
	}
	return m, super, nil
}

func (w *walker) field(bind []string) *schema.Field {
	if f, ok := w.schema.FieldsByBindName[strings.Join(bind, ".")]; ok {
		return f
	}
	if len(bind) == 1 {
		return w.schema.FieldsByName[bind[0]]
	}
	return nil
}

// relation finds the gorm relationship declared at bind, following embedded structs
func (w *walker) relation(bind []string) *schema.Relationship {
	rels := &w.schema.Relationships
	for _, name := range bind[:len(bind)-1] {
		next, ok := rels.EmbeddedRelations[name]
		if !ok || next == nil {
			return nil
		}
		rels = next
	}
	return rels.Relations[bind[len(bind)-1]]
}

func (w *walker) basic(f gpameta.MappedField, bind []string, name string) *gpameta.BasicAttribute {
	field := w.field(bind)
	if field == nil || field.DBName == "" {
		return nil
	}
	column := columnOf(field)
	if f.Tag.Column != "" {
		column.Name = f.Tag.Column
	}

	for _, key := range []string{"INDEX", "UNIQUEINDEX"} {
		v, ok := field.TagSettings[key]
		if !ok {
			continue
		}
		c := gpameta.ConstraintSource{
			Name:    v,
			Kind:    gpameta.ConstraintIndex,
			Table:   w.owner.Table,
			Columns: []string{column.Name},
		}
		if key == "UNIQUEINDEX" {
			c.Kind = gpameta.ConstraintUnique
		}
		if c.Name == "" || c.Name == key {
			c.Name = w.scanner.namer.IndexName(w.owner.Table, column.Name)
		}
		w.constraints = append(w.constraints, c)
	}

	return &gpameta.BasicAttribute{
		Name:      name,
		GoType:    f.Type.String(),
		Column:    column,
		ID:        field.PrimaryKey || f.Tag.ID,
		Version:   f.Tag.Version,
		Generated: field.AutoIncrement || field.AutoCreateTime > 0 || field.AutoUpdateTime > 0,
		Fetch:     f.Tag.Fetch,
	}
}

func (w *walker) association(f gpameta.MappedField, bind []string, name string) (*gpameta.AssociationAttribute, error) {
	rel := w.relation(bind)
	nature := f.Tag.Nature
	if nature == "" {
		nature = natureOf(rel.Type)
	}
	target := targetType(f.Type)
	attr := f.Tag.NewAssociation(name, nature, gpameta.TypeName(target))
	if attr.Plural != nil {
		attr.Plural.ElementType = attr.TargetEntity
	}

	if rel == nil {
		if f.Tag.JoinColumn != "" && !nature.IsPlural() {
			attr.JoinColumns = []gpameta.ColumnSource{{
				Name:       f.Tag.JoinColumn,
				Nullable:   attr.Optional,
				Insertable: true,
				Updatable:  true,
			}}
		}
		if attr.Plural != nil && f.Tag.CollectionTable != "" {
			attr.Plural.CollectionTable = gpameta.TableSource{Name: f.Tag.CollectionTable}
		}
		return attr, nil
	}

	if constraint := strings.ToUpper(rel.Field.TagSettings["CONSTRAINT"]); strings.Contains(constraint, "ONDELETE:CASCADE") &&
		!gpameta.HasCascade(attr.Cascades, gpameta.CascadeRemove) {
		attr.Cascades = append(attr.Cascades, gpameta.CascadeRemove)
	}

	switch rel.Type {
	case schema.BelongsTo:
		for _, ref := range rel.References {
			if ref.OwnPrimaryKey || ref.ForeignKey == nil {
				continue
			}
			column := columnOf(ref.ForeignKey)
			column.Nullable = attr.Optional
			attr.JoinColumns = append(attr.JoinColumns, column)
		}
		if attr.ForeignKeyName == "" {
			if c := rel.ParseConstraint(); c != nil {
				attr.ForeignKeyName = c.Name
			}
		}
	case schema.HasOne, schema.HasMany:
		if attr.MappedBy == "" {
			for _, ref := range rel.References {
				if ref.OwnPrimaryKey && ref.ForeignKey != nil {
					attr.MappedBy = gpameta.AttributeName(ref.ForeignKey.Name)
					break
				}
			}
		}
	case schema.Many2Many:
		if rel.JoinTable != nil && attr.Plural != nil {
			attr.Plural.CollectionTable = gpameta.TableSource{Name: rel.JoinTable.Table}
			for _, ref := range rel.References {
				if ref.OwnPrimaryKey && ref.ForeignKey != nil {
					attr.Plural.KeyColumns = append(attr.Plural.KeyColumns, ref.ForeignKey.DBName)
				}
			}
		}
	}
	return attr, nil
}

func (w *walker) elementCollection(f gpameta.MappedField, name, path string) (*gpameta.AssociationAttribute, error) {
	elem, ok := gpameta.ElementType(f.Type)
	if !ok {
		return nil, gpameta.NewErrorf(gpameta.ErrorTypeMapping,
			"element collection %s must be a slice or array, got %s", f.Name, f.Type)
	}

	nature := gpameta.ElementCollectionNature(elem)
	attr := f.Tag.NewAssociation(name, nature, "")
	attr.Plural.ElementType = gpameta.TypeName(elem)

	table := f.Tag.CollectionTable
	if table == "" {
		table = w.scanner.namer.TableName(w.owner.Name + f.Name)
	}
	attr.Plural.CollectionTable = gpameta.TableSource{Name: table}

	if f.Tag.JoinColumn != "" {
		attr.Plural.KeyColumns = []string{f.Tag.JoinColumn}
	} else {
		prefix := w.scanner.namer.ColumnName("", w.owner.Name)
		for _, pk := range w.owner.PrimaryFields {
			attr.Plural.KeyColumns = append(attr.Plural.KeyColumns, prefix+"_"+pk.DBName)
		}
	}

	if nature == gpameta.NatureElementCollectionEmbeddable {
		class, err := w.scanner.elementClass(elem, name, path, w.ctx)
		if err != nil {
			return nil, err
		}
		attr.Plural.ElementClass = class
	}
	return attr, nil
}

// =====================================
// Helpers
// =====================================

func columnOf(field *schema.Field) gpameta.ColumnSource {
	return gpameta.ColumnSource{
		Name:       field.DBName,
		SQLType:    string(field.DataType),
		Nullable:   !field.NotNull && !field.PrimaryKey,
		Unique:     field.Unique,
		Length:     field.Size,
		Precision:  field.Precision,
		Scale:      field.Scale,
		Insertable: field.Creatable,
		Updatable:  field.Updatable,
		Default:    field.DefaultValue,
	}
}

func natureOf(t schema.RelationshipType) gpameta.AttributeNature {
	switch t {
	case schema.BelongsTo:
		return gpameta.NatureManyToOne
	case schema.HasOne:
		return gpameta.NatureOneToOne
	case schema.HasMany:
		return gpameta.NatureOneToMany
	case schema.Many2Many:
		return gpameta.NatureManyToMany
	}
	return ""
}

var nativeHooks = []struct {
	callback gpameta.CallbackType
	method   string
	declared func(*schema.Schema) bool
}{
	{gpameta.CallbackPrePersist, "BeforeCreate", func(s *schema.Schema) bool { return s.BeforeCreate }},
	{gpameta.CallbackPrePersist, "BeforeSave", func(s *schema.Schema) bool { return s.BeforeSave }},
	{gpameta.CallbackPostPersist, "AfterCreate", func(s *schema.Schema) bool { return s.AfterCreate }},
	{gpameta.CallbackPostPersist, "AfterSave", func(s *schema.Schema) bool { return s.AfterSave }},
	{gpameta.CallbackPreUpdate, "BeforeUpdate", func(s *schema.Schema) bool { return s.BeforeUpdate }},
	{gpameta.CallbackPreUpdate, "BeforeSave", func(s *schema.Schema) bool { return s.BeforeSave }},
	{gpameta.CallbackPostUpdate, "AfterUpdate", func(s *schema.Schema) bool { return s.AfterUpdate }},
	{gpameta.CallbackPostUpdate, "AfterSave", func(s *schema.Schema) bool { return s.AfterSave }},
	{gpameta.CallbackPreRemove, "BeforeDelete", func(s *schema.Schema) bool { return s.BeforeDelete }},
	{gpameta.CallbackPostRemove, "AfterDelete", func(s *schema.Schema) bool { return s.AfterDelete }},
	{gpameta.CallbackPostLoad, "AfterFind", func(s *schema.Schema) bool { return s.AfterFind }},
}

// withNativeHooks adds gorm hook methods as the entity's own callbacks when
// the model declares none through gpameta hook interfaces.
func withNativeHooks(entity string, callbacks []gpameta.JpaCallbackSource, sch *schema.Schema) []gpameta.JpaCallbackSource {
	for _, cb := range callbacks {
		if !cb.Listener && cb.Name == entity {
			return callbacks
		}
	}
	methods := make(map[gpameta.CallbackType]string)
	for _, h := range nativeHooks {
		if _, taken := methods[h.callback]; !taken && h.declared(sch) {
			methods[h.callback] = h.method
		}
	}
	if len(methods) == 0 {
		return callbacks
	}
	return append(callbacks, gpameta.JpaCallbackSource{Name: entity, Callbacks: methods})
}

func hasSetting(settings map[string]string, key string) bool {
	_, ok := settings[key]
	return ok
}

func modelTypes(models []any) ([]reflect.Type, error) {
	types := make([]reflect.Type, 0, len(models))
	for _, model := range models {
		if model == nil {
			return nil, gpameta.NewError(gpameta.ErrorTypeInvalidArgument, "model must not be nil")
		}
		t, ok := model.(reflect.Type)
		if !ok {
			t = reflect.TypeOf(model)
		}
		t = indirect(t)
		if t.Kind() != reflect.Struct {
			return nil, gpameta.NewErrorf(gpameta.ErrorTypeInvalidArgument, "model %s is not a struct", t)
		}
		types = append(types, t)
	}
	return types, nil
}

func targetType(t reflect.Type) reflect.Type {
	if elem, ok := gpameta.ElementType(t); ok {
		return elem
	}
	return indirect(t)
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
