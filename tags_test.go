package gpameta

import (
	"database/sql"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tagFixture struct {
	Supplier *struct{}  `gpa:"manyToOne;fetch:lazy;cascade:persist, MERGE;joinColumn:supplier_id;optional:false"`
	Payments []struct{} `gpa:"elementCollection;orderColumn;collectionTable:invoice_payments"`
	Lines    []struct{} `gpa:"oneToMany;mappedBy:invoice;orderBy:position;kind:set"`
	Version  int        `gpa:"version;column:row_version"`
	Cache    string     `gpa:"-"`
	Scratch  string     `gpa:"transient"`
	Name     string
	note     string
}

func fieldTag(t *testing.T, name string) AttributeTag {
	f, ok := reflect.TypeOf(tagFixture{}).FieldByName(name)
	require.True(t, ok, name)
	return ParseAttributeTag(f)
}

func TestParseAttributeTag(t *testing.T) {
	supplier := fieldTag(t, "Supplier")
	assert.Equal(t, NatureManyToOne, supplier.Nature)
	assert.Equal(t, FetchLazy, supplier.Fetch)
	assert.Equal(t, []CascadeType{CascadePersist, CascadeMerge}, supplier.Cascades)
	assert.Equal(t, "supplier_id", supplier.JoinColumn)
	assert.Equal(t, Some(false), supplier.Optional)

	payments := fieldTag(t, "Payments")
	assert.True(t, payments.ElementCollection)
	assert.Equal(t, Some("payments_order"), payments.OrderColumn)
	assert.Equal(t, "invoice_payments", payments.CollectionTable)

	lines := fieldTag(t, "Lines")
	assert.Equal(t, NatureOneToMany, lines.Nature)
	assert.Equal(t, "invoice", lines.MappedBy)
	assert.Equal(t, "position", lines.OrderBy)
	assert.Equal(t, CollectionSet, lines.Kind)

	version := fieldTag(t, "Version")
	assert.True(t, version.Version)
	assert.Equal(t, "row_version", version.Column)

	assert.True(t, fieldTag(t, "Cache").Transient)
	assert.Equal(t, AttributeTag{}, fieldTag(t, "Name"))
}

func TestAttributeTag_NewAssociation(t *testing.T) {
	attr := fieldTag(t, "Supplier").NewAssociation("supplier", NatureManyToOne, "billing.Supplier")
	assert.Equal(t, "billing.Supplier", attr.TargetEntity)
	assert.False(t, attr.Optional)
	assert.Nil(t, attr.Plural)

	payments := fieldTag(t, "Payments").NewAssociation("payments", NatureElementCollectionBasic, "")
	require.NotNil(t, payments.Plural)
	assert.True(t, payments.Optional)
	assert.Equal(t, CollectionList, payments.Plural.Kind)
	assert.Equal(t, Some("payments_order"), payments.Plural.OrderColumn)

	explicit := AttributeTag{Target: "billing.Vendor"}.NewAssociation("supplier", NatureOneToOne, "billing.Supplier")
	assert.Equal(t, "billing.Vendor", explicit.TargetEntity)
}

func TestMappedFields_SkipsTransientAndUnexported(t *testing.T) {
	var names []string
	for _, f := range MappedFields(reflect.TypeOf(&tagFixture{})) {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Supplier", "Payments", "Lines", "Version", "Name"}, names)
	assert.Nil(t, MappedFields(reflect.TypeOf(42)))
}

func TestAttributeName(t *testing.T) {
	tests := map[string]string{
		"AccountPayable": "accountPayable",
		"ID":             "id",
		"URLPath":        "urlPath",
		"Amount":         "amount",
		"status":         "status",
	}
	for field, want := range tests {
		assert.Equal(t, want, AttributeName(field), field)
	}
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "account_payable", SnakeCase("AccountPayable"))
	assert.Equal(t, "supplier_id", SnakeCase("SupplierID"))
	assert.Equal(t, "id", SnakeCase("ID"))
}

func TestIsValueType(t *testing.T) {
	assert.True(t, IsValueType(reflect.TypeOf(time.Time{})))
	assert.True(t, IsValueType(reflect.TypeOf(sql.NullString{})))
	assert.True(t, IsValueType(reflect.TypeOf([]byte(nil))))
	assert.True(t, IsValueType(reflect.TypeOf(new(int64))))
	assert.False(t, IsValueType(reflect.TypeOf(struct{ A int }{})))
	assert.False(t, IsValueType(reflect.TypeOf([]string(nil))))
	assert.False(t, IsValueType(reflect.TypeOf(map[string]int(nil))))
}

func TestElementType(t *testing.T) {
	elem, ok := ElementType(reflect.TypeOf([]*time.Time(nil)))
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(time.Time{}), elem)
	assert.Equal(t, NatureElementCollectionBasic, ElementCollectionNature(elem))

	elem, ok = ElementType(reflect.TypeOf(&[2]struct{ A int }{}))
	require.True(t, ok)
	assert.Equal(t, NatureElementCollectionEmbeddable, ElementCollectionNature(elem))

	_, ok = ElementType(reflect.TypeOf(""))
	assert.False(t, ok)
}
