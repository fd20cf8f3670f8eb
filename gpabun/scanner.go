package gpabun

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/jinzhu/inflection"
	"github.com/lemmego/gpameta"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// =====================================
// Scanner
// =====================================

// Scanner reads entity metadata from bun table models. Fields are matched to
// bun's parsed fields by struct index, so `embed:` prefixes and inlined
// structs resolve the way bun resolves them.
type Scanner struct {
	db     *bun.DB
	config gpameta.Config
}

// NewScanner creates a scanner over the table registry of db
func NewScanner(db *bun.DB, config gpameta.Config) *Scanner {
	return &Scanner{db: db, config: config}
}

// Scan reads every model and the superclasses they inherit from
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

func (s *Scanner) table(t reflect.Type) (table *schema.Table, err error) {
	defer func() {
		// bun panics on models it cannot map
		if r := recover(); r != nil {
			err = gpameta.NewErrorf(gpameta.ErrorTypeMapping, "failed to map %s: %v", gpameta.TypeName(t), r)
		}
	}()
	return s.db.Table(t), nil
}

func (s *Scanner) scanEntity(t reflect.Type) (*gpameta.EntityClass, reflect.Type, error) {
	table, err := s.table(t)
	if err != nil {
		return nil, nil, err
	}

	class := gpameta.NewEntityClass(t, s.config.BindingContext("bun", t))
	class.PrimaryTable.Name = s.config.Mapping.TablePrefix + table.Name

	w := newWalker(s, table, class.LocalBindingContext)
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
	return class, super, nil
}

func (s *Scanner) elementClass(elem reflect.Type, name, path string, ctx gpameta.LocalBindingContext) (*gpameta.EmbeddableClass, error) {
	table, err := s.table(elem)
	if err != nil {
		return nil, err
	}
	w := newWalker(s, table, ctx)
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
	table       *schema.Table
	ctx         gpameta.LocalBindingContext
	fields      map[string]*schema.Field
	relations   map[string]*schema.Relation
	constraints []gpameta.ConstraintSource
}

func newWalker(s *Scanner, table *schema.Table, ctx gpameta.LocalBindingContext) *walker {
	w := &walker{
		scanner:   s,
		table:     table,
		ctx:       ctx,
		fields:    make(map[string]*schema.Field, len(table.Fields)),
		relations: make(map[string]*schema.Relation, len(table.Relations)),
	}
	for _, f := range table.Fields {
		w.fields[indexKey(f.Index)] = f
	}
	for _, rel := range table.Relations {
		w.relations[indexKey(rel.Field.Index)] = rel
	}
	return w
}

func (w *walker) walk(t reflect.Type, index []int, path string, top bool) (members, reflect.Type, error) {
	var m members
	var super reflect.Type

	for _, f := range gpameta.MappedFields(t) {
		fieldIndex := append(append([]int(nil), index...), f.Index...)
		key := indexKey(fieldIndex)
		name := gpameta.AttributeName(f.Name)
		bunTag := f.StructField.Tag.Get("bun")

		switch {
		case f.Tag.Inherits:
			if !top || !f.Anonymous {
				return m, nil, gpameta.NewErrorf(gpameta.ErrorTypeMapping,
					"%s: inherits is only allowed on an embedded entity of a top-level model", f.Name)
			}
			super = indirect(f.Type)

		case f.Anonymous && indirect(f.Type).Kind() == reflect.Struct && !f.Tag.Embedded:
			inner, innerSuper, err := w.walk(indirect(f.Type), fieldIndex, path, top)
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

		case f.Tag.Nature != "" || w.relations[key] != nil:
			attr, err := w.association(f, w.relations[key], name)
			if err != nil {
				return m, nil, err
			}
			m.associations = append(m.associations, attr)

		case f.Tag.Embedded || strings.HasPrefix(bunTag, "embed:"):
			attrPath := gpameta.JoinPath(path, name)
			inner, _, err := w.walk(indirect(f.Type), fieldIndex, attrPath, false)
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
			if field, ok := w.fields[key]; ok {
				m.basics = append(m.basics, w.basic(f, field, name))
			}
		}
	}
	return m, super, nil
}

func (w *walker) basic(f gpameta.MappedField, field *schema.Field, name string) *gpameta.BasicAttribute {
	column := columnOf(field)
	if f.Tag.Column != "" {
		column.Name = f.Tag.Column
	}
	if field.Tag.HasOption("unique") {
		w.constraints = append(w.constraints, gpameta.ConstraintSource{
			Name:    fmt.Sprintf("%s_%s_key", w.table.Name, column.Name),
			Kind:    gpameta.ConstraintUnique,
			Table:   w.table.Name,
			Columns: []string{column.Name},
		})
	}
	return &gpameta.BasicAttribute{
		Name:      name,
		GoType:    f.Type.String(),
		Column:    column,
		ID:        field.IsPK || f.Tag.ID,
		Version:   f.Tag.Version,
		Generated: field.AutoIncrement || field.Identity,
		Fetch:     f.Tag.Fetch,
	}
}

func (w *walker) association(f gpameta.MappedField, rel *schema.Relation, name string) (*gpameta.AssociationAttribute, error) {
	nature := f.Tag.Nature
	if nature == "" {
		nature = natureOf(rel.Type)
	}
	attr := f.Tag.NewAssociation(name, nature, gpameta.TypeName(targetType(f.Type)))
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

	if strings.EqualFold(rel.OnDelete, "ON DELETE CASCADE") && !gpameta.HasCascade(attr.Cascades, gpameta.CascadeRemove) {
		attr.Cascades = append(attr.Cascades, gpameta.CascadeRemove)
	}

	switch rel.Type {
	case schema.BelongsToRelation:
		for _, base := range joinColumns(rel.Field, true) {
			column := gpameta.ColumnSource{Name: base, Nullable: attr.Optional, Insertable: true, Updatable: true}
			if field, ok := w.table.FieldMap[base]; ok {
				column = columnOf(field)
				column.Nullable = attr.Optional
			}
			attr.JoinColumns = append(attr.JoinColumns, column)
		}
	case schema.HasOneRelation, schema.HasManyRelation:
		if attr.MappedBy == "" && rel.JoinTable != nil {
			for _, fk := range joinColumns(rel.Field, false) {
				if field, ok := rel.JoinTable.FieldMap[fk]; ok {
					attr.MappedBy = gpameta.AttributeName(field.GoName)
					break
				}
			}
		}
	case schema.ManyToManyRelation:
		if rel.M2MTable != nil && attr.Plural != nil {
			attr.Plural.CollectionTable = gpameta.TableSource{Name: rel.M2MTable.Name}
			attr.Plural.KeyColumns = m2mKeyColumns(rel.M2MTable, w.table)
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

	owner := inflection.Singular(w.table.Name)
	table := f.Tag.CollectionTable
	if table == "" {
		table = owner + "_" + gpameta.SnakeCase(f.Name)
	}
	attr.Plural.CollectionTable = gpameta.TableSource{Name: w.scanner.config.Mapping.TablePrefix + table}

	if f.Tag.JoinColumn != "" {
		attr.Plural.KeyColumns = []string{f.Tag.JoinColumn}
	} else {
		for _, pk := range w.table.PKs {
			attr.Plural.KeyColumns = append(attr.Plural.KeyColumns, owner+"_"+pk.Name)
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
	sqlType := field.UserSQLType
	if sqlType == "" {
		sqlType = field.DiscoveredSQLType
	}
	return gpameta.ColumnSource{
		Name:       field.Name,
		SQLType:    sqlType,
		Nullable:   !field.NotNull && !field.IsPK,
		Unique:     field.Tag.HasOption("unique"),
		Insertable: !field.Tag.HasOption("scanonly"),
		Updatable:  !field.Tag.HasOption("scanonly"),
		Default:    field.SQLDefault,
	}
}

// joinColumns reads the `join:base=join` pairs of a relation tag and returns
// the base or join side
func joinColumns(field *schema.Field, base bool) []string {
	var columns []string
	for _, pair := range field.Tag.Options["join"] {
		for _, part := range strings.Split(pair, ",") {
			sides := strings.SplitN(strings.TrimSpace(part), "=", 2)
			if len(sides) != 2 {
				continue
			}
			if base {
				columns = append(columns, sides[0])
			} else {
				columns = append(columns, sides[1])
			}
		}
	}
	return columns
}

// m2mKeyColumns finds the columns of the m2m table referencing the owner
func m2mKeyColumns(m2m, owner *schema.Table) []string {
	for _, rel := range m2m.Relations {
		if rel.Type == schema.BelongsToRelation && rel.JoinTable == owner {
			return joinColumns(rel.Field, true)
		}
	}
	return nil
}

func natureOf(t int) gpameta.AttributeNature {
	switch t {
	case schema.BelongsToRelation:
		return gpameta.NatureManyToOne
	case schema.HasOneRelation:
		return gpameta.NatureOneToOne
	case schema.HasManyRelation:
		return gpameta.NatureOneToMany
	case schema.ManyToManyRelation:
		return gpameta.NatureManyToMany
	}
	return ""
}

func indexKey(index []int) string {
	return fmt.Sprint(index)
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
