package gpameta

import (
	"database/sql"
	"database/sql/driver"
	"reflect"
	"strings"
	"time"
	"unicode"

	"gorm.io/gorm/schema"
)

// =====================================
// `gpa` Struct Tag
// =====================================

// TagName is the struct tag read by every scanner for mapping information the
// storage library's own tags do not carry.
//
//	type PurchaseInvoice struct {
//	    Invoice        `gpa:"inherits"`
//	    AccountPayable AccountPayable `gpa:"embedded"`
//	    Supplier       *Supplier      `gpa:"manyToOne;fetch:lazy"`
//	    Payments       []Payment      `gpa:"elementCollection;orderColumn"`
//	}
const TagName = "gpa"

// AttributeTag is a parsed `gpa` tag
type AttributeTag struct {
	Inherits          bool
	Embedded          bool
	Transient         bool
	ElementCollection bool
	ID                bool
	Version           bool
	Nature            AttributeNature // explicit association nature, empty when unset
	Target            string
	Fetch             FetchTiming
	Cascades          []CascadeType
	OrphanRemoval     bool
	Optional          Optional[bool]
	MappedBy          string
	OrderColumn       Optional[string]
	OrderBy           string
	Kind              CollectionKind
	CollectionTable   string
	JoinColumn        string
	ForeignKey        string
	Column            string
}

var natureKeys = map[string]AttributeNature{
	"ONETOONE":   NatureOneToOne,
	"MANYTOONE":  NatureManyToOne,
	"ONETOMANY":  NatureOneToMany,
	"MANYTOMANY": NatureManyToMany,
}

// ParseAttributeTag parses the `gpa` tag of a struct field. Settings are
// separated by ';' and keys are case-insensitive, as in gorm tags.
func ParseAttributeTag(field reflect.StructField) AttributeTag {
	raw, ok := field.Tag.Lookup(TagName)
	if !ok {
		return AttributeTag{}
	}
	if strings.TrimSpace(raw) == "-" {
		return AttributeTag{Transient: true}
	}

	settings := schema.ParseTagSetting(raw, ";")
	value := func(key string) (string, bool) {
		v, ok := settings[key]
		if !ok || v == key {
			return "", ok
		}
		return strings.TrimSpace(v), true
	}

	tag := AttributeTag{}
	_, tag.Inherits = settings["INHERITS"]
	_, tag.Embedded = settings["EMBEDDED"]
	_, tag.Transient = settings["TRANSIENT"]
	_, tag.ElementCollection = settings["ELEMENTCOLLECTION"]
	_, tag.ID = settings["ID"]
	_, tag.Version = settings["VERSION"]
	_, tag.OrphanRemoval = settings["ORPHANREMOVAL"]

	for key, nature := range natureKeys {
		if _, ok := settings[key]; ok {
			tag.Nature = nature
		}
	}
	if _, ok := settings["LAZY"]; ok {
		tag.Fetch = FetchLazy
	}
	if v, ok := value("FETCH"); ok {
		switch strings.ToLower(v) {
		case "lazy":
			tag.Fetch = FetchLazy
		case "eager":
			tag.Fetch = FetchEager
		}
	}
	if v, ok := value("CASCADE"); ok {
		for _, c := range strings.Split(v, ",") {
			if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
				tag.Cascades = append(tag.Cascades, CascadeType(c))
			}
		}
	}
	if v, ok := value("OPTIONAL"); ok {
		tag.Optional = Some(strings.EqualFold(v, "true"))
	}
	if _, ok := settings["ORDERCOLUMN"]; ok {
		v, _ := value("ORDERCOLUMN")
		if v == "" {
			v = SnakeCase(field.Name) + "_order"
		}
		tag.OrderColumn = Some(v)
	}
	if v, ok := value("KIND"); ok {
		tag.Kind = CollectionKind(strings.ToLower(v))
	}
	tag.Target, _ = value("TARGET")
	tag.MappedBy, _ = value("MAPPEDBY")
	tag.OrderBy, _ = value("ORDERBY")
	tag.CollectionTable, _ = value("COLLECTIONTABLE")
	tag.JoinColumn, _ = value("JOINCOLUMN")
	tag.ForeignKey, _ = value("FOREIGNKEY")
	tag.Column, _ = value("COLUMN")
	return tag
}

// NewAssociation builds an association attribute from the tag. Scanners add
// join columns and plural details.
func (t AttributeTag) NewAssociation(name string, nature AttributeNature, target string) *AssociationAttribute {
	if t.Target != "" {
		target = t.Target
	}
	attr := &AssociationAttribute{
		Name:           name,
		Nature:         nature,
		TargetEntity:   target,
		Fetch:          t.Fetch,
		Cascades:       append([]CascadeType(nil), t.Cascades...),
		OrphanRemoval:  t.OrphanRemoval,
		Optional:       t.Optional.OrElse(true),
		MappedBy:       t.MappedBy,
		ForeignKeyName: t.ForeignKey,
	}
	if nature.IsPlural() {
		kind := t.Kind
		if kind == "" && t.OrderColumn.IsPresent() {
			kind = CollectionList
		}
		attr.Plural = &PluralAttribute{
			Kind:        kind,
			OrderColumn: t.OrderColumn,
			OrderBy:     t.OrderBy,
		}
	}
	return attr
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// IsValueType reports whether t is stored as a single column value rather
// than decomposed into attributes
func IsValueType(t reflect.Type) bool {
	t = indirect(t)
	if t == timeType || t.Implements(valuerType) || reflect.PointerTo(t).Implements(scannerType) {
		return true
	}
	switch t.Kind() {
	case reflect.Struct, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		return false
	case reflect.Slice, reflect.Array:
		return t.Elem().Kind() == reflect.Uint8
	}
	return true
}

// ElementType returns the element type of a slice or array field, dereferenced
func ElementType(t reflect.Type) (reflect.Type, bool) {
	t = indirect(t)
	if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
		return nil, false
	}
	return indirect(t.Elem()), true
}

// ElementCollectionNature classifies an element collection by its element type
func ElementCollectionNature(elem reflect.Type) AttributeNature {
	if IsValueType(elem) {
		return NatureElementCollectionBasic
	}
	return NatureElementCollectionEmbeddable
}

// MappedField is an exported struct field together with its parsed `gpa` tag
type MappedField struct {
	reflect.StructField
	Tag AttributeTag
}

// MappedFields lists the exported, non-transient fields of struct type t in
// declaration order
func MappedFields(t reflect.Type) []MappedField {
	t = indirect(t)
	if t.Kind() != reflect.Struct {
		return nil
	}
	fields := make([]MappedField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := ParseAttributeTag(f)
		if tag.Transient {
			continue
		}
		fields = append(fields, MappedField{StructField: f, Tag: tag})
	}
	return fields
}

// AttributeName converts a Go field name to its attribute name:
// "AccountPayable" becomes "accountPayable", "ID" becomes "id" and
// "URLPath" becomes "urlPath".
func AttributeName(field string) string {
	runes := []rune(field)
	upper := 0
	for upper < len(runes) && unicode.IsUpper(runes[upper]) {
		upper++
	}
	switch {
	case upper == 0:
		return field
	case upper == 1 || upper == len(runes):
		// "Amount" -> "amount", "ID" -> "id"
	default:
		// keep the last capital as the start of the next word
		upper--
	}
	for i := 0; i < upper; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

// SnakeCase converts a Go identifier to a snake_case column name, the way
// gorm names columns
func SnakeCase(name string) string {
	return schema.NamingStrategy{}.ColumnName("", name)
}
