package gpamongo

import (
	"reflect"
	"time"

	"github.com/jinzhu/inflection"
	"github.com/lemmego/gpameta"
	"go.mongodb.org/mongo-driver/bson/bsoncodec"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// =====================================
// Scanner
// =====================================

// Scanner reads entity metadata from `bson` struct tags. Nested structs are
// embedded documents, slices of them are element collections stored inside
// the owning document, and references to other entities come from `gpa` tags
// on fields the bson codec skips.
type Scanner struct {
	config gpameta.Config
	parser bsoncodec.StructTagParser
}

// NewScanner creates a scanner using the mapping settings of config
func NewScanner(config gpameta.Config) *Scanner {
	return &Scanner{
		config: config,
		parser: bsoncodec.DefaultStructTagParser,
	}
}

// Scan describes every model and the superclasses they inherit from
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

// CollectionName returns the collection holding documents of type t: the
// value of its CollectionName method, or the pluralized snake_case type name.
func (s *Scanner) CollectionName(t reflect.Type) string {
	t = indirect(t)
	name := ""
	if m, ok := reflect.PointerTo(t).MethodByName("CollectionName"); ok &&
		m.Type.NumIn() == 1 && m.Type.NumOut() == 1 && m.Type.Out(0).Kind() == reflect.String {
		name = m.Func.Call([]reflect.Value{reflect.New(t)})[0].String()
	}
	if name == "" {
		name = inflection.Plural(gpameta.SnakeCase(t.Name()))
	}
	return s.config.Mapping.TablePrefix + name
}

func (s *Scanner) scanEntity(t reflect.Type) (*gpameta.EntityClass, reflect.Type, error) {
	class := gpameta.NewEntityClass(t, s.config.BindingContext("bson", t))
	class.PrimaryTable.Name = s.CollectionName(t)

	w := &walker{scanner: s, ctx: class.LocalBindingContext}
	m, super, err := w.walk(t, "", "", true)
	if err != nil {
		return nil, nil, err
	}
	class.SimpleAttributes = m.basics
	class.EmbeddedClasses = m.embedded
	class.AssociationAttributes = m.associations
	if super != nil {
		class.Superclass = gpameta.Some(gpameta.TypeName(super))
	}
	return class, super, nil
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
	scanner *Scanner
	ctx     gpameta.LocalBindingContext
}

// walk collects the attributes of struct type t. key is the dotted document
// key of t inside the top-level document and path its attribute path.
func (w *walker) walk(t reflect.Type, key, path string, top bool) (members, reflect.Type, error) {
	var m members
	var super reflect.Type

	for _, f := range gpameta.MappedFields(t) {
		tags, err := w.scanner.parser.ParseStructTags(f.StructField)
		if err != nil {
			return m, nil, gpameta.NewErrorWithCause(gpameta.ErrorTypeMapping,
				"invalid bson tag on "+f.Name, err)
		}
		name := gpameta.AttributeName(f.Name)
		fieldKey := documentKey(key, tags.Name)
		ft := indirect(f.Type)

		switch {
		case f.Tag.Inherits:
			if !top || !f.Anonymous {
				return m, nil, gpameta.NewErrorf(gpameta.ErrorTypeMapping,
					"%s: inherits is only allowed on an embedded entity of a top-level model", f.Name)
			}
			super = ft

		case f.Tag.Nature != "":
			m.associations = append(m.associations, w.reference(f, name, tags))

		case tags.Skip:
			continue

		case (tags.Inline || (f.Anonymous && f.StructField.Tag.Get("bson") == "")) && isDocument(ft):
			inner, innerSuper, err := w.walk(ft, key, path, top)
			if err != nil {
				return m, nil, err
			}
			m.merge(inner)
			if innerSuper != nil {
				super = innerSuper
			}

		case isCollection(f.Type):
			attr, err := w.elementCollection(f, name, gpameta.JoinPath(path, name), fieldKey)
			if err != nil {
				return m, nil, err
			}
			m.associations = append(m.associations, attr)

		case isDocument(f.Type):
			attrPath := gpameta.JoinPath(path, name)
			inner, _, err := w.walk(ft, fieldKey, attrPath, false)
			if err != nil {
				return m, nil, err
			}
			m.embedded = append(m.embedded, &gpameta.EmbeddableClass{
				Name:                  name,
				Path:                  attrPath,
				ClassName:             gpameta.TypeName(ft),
				SimpleAttributes:      inner.basics,
				EmbeddedClasses:       inner.embedded,
				AssociationAttributes: inner.associations,
				LocalBindingContext:   w.ctx,
			})

		default:
			m.basics = append(m.basics, w.basic(f, name, fieldKey, tags, top))
		}
	}
	return m, super, nil
}

func (w *walker) basic(f gpameta.MappedField, name, key string, tags bsoncodec.StructTags, top bool) *gpameta.BasicAttribute {
	column := gpameta.ColumnSource{
		Name:       key,
		SQLType:    bsonType(f.Type),
		Nullable:   f.Type.Kind() == reflect.Ptr || tags.OmitEmpty,
		Insertable: true,
		Updatable:  true,
	}
	if f.Tag.Column != "" {
		column.Name = f.Tag.Column
	}
	id := f.Tag.ID || (top && key == "_id")
	if id {
		column.Nullable = false
	}
	return &gpameta.BasicAttribute{
		Name:      name,
		GoType:    f.Type.String(),
		Column:    column,
		ID:        id,
		Version:   f.Tag.Version,
		Generated: id && indirect(f.Type) == objectIDType && tags.OmitEmpty,
		Fetch:     f.Tag.Fetch,
	}
}

// reference maps a field holding another entity. The document stores only
// the referenced key, under the join column.
func (w *walker) reference(f gpameta.MappedField, name string, tags bsoncodec.StructTags) *gpameta.AssociationAttribute {
	attr := f.Tag.NewAssociation(name, f.Tag.Nature, gpameta.TypeName(targetType(f.Type)))
	if attr.Plural != nil {
		attr.Plural.ElementType = attr.TargetEntity
		return attr
	}
	if attr.MappedBy != "" {
		return attr
	}
	column := f.Tag.JoinColumn
	if column == "" && !tags.Skip {
		column = tags.Name
	}
	if column == "" {
		column = gpameta.SnakeCase(f.Name) + "_id"
	}
	attr.JoinColumns = []gpameta.ColumnSource{{
		Name:       column,
		SQLType:    "objectId",
		Nullable:   attr.Optional,
		Insertable: true,
		Updatable:  true,
	}}
	return attr
}

// elementCollection maps an array inside the owning document. Arrays have no
// table of their own, so the collection table stays empty.
func (w *walker) elementCollection(f gpameta.MappedField, name, path, key string) (*gpameta.AssociationAttribute, error) {
	elem, _ := gpameta.ElementType(f.Type)
	nature := gpameta.NatureElementCollectionBasic
	if isDocument(elem) {
		nature = gpameta.NatureElementCollectionEmbeddable
	}
	attr := f.Tag.NewAssociation(name, nature, "")
	attr.Plural.ElementType = gpameta.TypeName(elem)
	if attr.Plural.Kind == "" {
		attr.Plural.Kind = gpameta.CollectionList
	}

	if nature == gpameta.NatureElementCollectionEmbeddable {
		inner, _, err := w.walk(elem, key, path, false)
		if err != nil {
			return nil, err
		}
		attr.Plural.ElementClass = &gpameta.EmbeddableClass{
			Name:                  name,
			Path:                  path,
			ClassName:             gpameta.TypeName(elem),
			SimpleAttributes:      inner.basics,
			EmbeddedClasses:       inner.embedded,
			AssociationAttributes: inner.associations,
			LocalBindingContext:   w.ctx,
		}
	}
	return attr, nil
}

// =====================================
// Helpers
// =====================================

var objectIDType = reflect.TypeOf(primitive.ObjectID{})

// scalarTypes are structs the bson codecs encode as a single value
var scalarTypes = map[reflect.Type]string{
	objectIDType:                           "objectId",
	reflect.TypeOf(time.Time{}):            "date",
	reflect.TypeOf(primitive.DateTime(0)):  "date",
	reflect.TypeOf(primitive.Decimal128{}): "decimal",
	reflect.TypeOf(primitive.Timestamp{}):  "timestamp",
	reflect.TypeOf(primitive.Regex{}):      "regex",
	reflect.TypeOf(primitive.Binary{}):     "binData",
}

func documentKey(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// isDocument reports whether values of t are encoded as embedded documents
func isDocument(t reflect.Type) bool {
	t = indirect(t)
	if _, ok := scalarTypes[t]; ok || t.Kind() != reflect.Struct {
		return false
	}
	return !gpameta.IsValueType(t)
}

// isCollection reports whether t is encoded as a BSON array
func isCollection(t reflect.Type) bool {
	t = indirect(t)
	switch t.Kind() {
	case reflect.Slice:
		return t.Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return t != objectIDType && t.Elem().Kind() != reflect.Uint8
	}
	return false
}

// bsonType names the BSON type the default codecs produce for t
func bsonType(t reflect.Type) string {
	t = indirect(t)
	if name, ok := scalarTypes[t]; ok {
		return name
	}
	switch t.Kind() {
	case reflect.Bool:
		return "bool"
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return "int"
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return "long"
	case reflect.Float32, reflect.Float64:
		return "double"
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return "binData"
		}
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	}
	return t.Kind().String()
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
