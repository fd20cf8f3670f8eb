package gpameta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func translate(t *testing.T, classes ...*EntityClass) *SourceSet {
	t.Helper()
	set := NewSourceSet()
	for _, c := range classes {
		_, err := set.Translate(c)
		require.NoError(t, err)
	}
	return set
}

func TestAttributeSources_OneAdapterPerAttribute(t *testing.T) {
	for _, class := range []*EntityClass{invoiceClass(), purchaseInvoiceClass(), supplierClass()} {
		set := translate(t, class)
		src, _ := set.Lookup(class.Name)

		sources, err := src.AttributeSources()
		require.NoError(t, err)
		want := len(class.SimpleAttributes) + len(class.EmbeddedClasses) + len(class.AssociationAttributes)
		assert.Len(t, sources, want, class.Name)
	}
}

func TestAttributeSources_Order(t *testing.T) {
	set := translate(t, purchaseInvoiceClass())
	src, _ := set.Lookup(purchaseInvoiceEntity)

	sources, err := src.AttributeSources()
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.IsType(t, &SingularAttributeSource{}, sources[0])
	assert.IsType(t, &ComponentAttributeSource{}, sources[1])
	assert.IsType(t, &ToOneAttributeSource{}, sources[2])
}

func TestAttributeSources_PurchaseInvoice(t *testing.T) {
	set := translate(t, purchaseInvoiceClass())
	src, _ := set.Lookup(purchaseInvoiceEntity)
	sources, err := src.AttributeSources()
	require.NoError(t, err)

	payable, ok := sources[1].(*ComponentAttributeSource)
	require.True(t, ok)
	assert.Equal(t, "accountPayable", payable.Path())
	assert.Equal(t, NatureEmbedded, payable.Nature())
	assert.Equal(t, "example.com/billing.AccountPayable", payable.ClassName())
	assert.Equal(t, []ColumnSource{{Name: "payable_amount", SQLType: "decimal", Precision: 12, Scale: 2}}, payable.Columns())

	nested, err := payable.AttributeSources()
	require.NoError(t, err)
	require.Len(t, nested, 2)

	amount := nested[0].(*SingularAttributeSource)
	assert.Equal(t, "accountPayable.amount", amount.Path())
	assert.Equal(t, "payable_amount", amount.Column().Name)

	payments, ok := nested[1].(*PluralAttributeSource)
	require.True(t, ok)
	assert.Equal(t, "accountPayable.payments", payments.Path())
	assert.False(t, payments.IsSingular())
	assert.Equal(t, FetchLazy, payments.FetchTiming())
	assert.Equal(t, CollectionList, payments.Kind())
	assert.Equal(t, Some("payments_order"), payments.OrderColumn())
	assert.Equal(t, "purchase_invoice_payments", payments.CollectionTable().Name)
	assert.Equal(t, []string{"purchase_invoice_number"}, payments.KeyColumns())
	assert.Empty(t, payments.Columns())

	elements, err := payments.ElementSources()
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, "accountPayable.payments.paidAt", elements[0].Path())
	// overrides match exact attribute paths
	assert.Equal(t, "amount", elements[1].Columns()[0].Name)

	supplier, ok := sources[2].(*ToOneAttributeSource)
	require.True(t, ok)
	assert.Equal(t, "supplier", supplier.Path())
	assert.Equal(t, NatureManyToOne, supplier.Nature())
	assert.Equal(t, supplierEntity, supplier.TargetEntity())
	assert.Equal(t, FetchLazy, supplier.FetchTiming())
	assert.Equal(t, []CascadeType{CascadePersist}, supplier.Cascades())
	assert.Equal(t, "supplier_id", supplier.Columns()[0].Name)
	assert.False(t, supplier.IsUnique())
	assert.False(t, supplier.ForeignKeyName().IsPresent())
	assert.False(t, supplier.MappedBy().IsPresent())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		nature AttributeNature
		want   AttributeSource
	}{
		{NatureOneToOne, &ToOneAttributeSource{}},
		{NatureManyToOne, &ToOneAttributeSource{}},
		{NatureManyToMany, &PluralAttributeSource{}},
		{NatureElementCollectionBasic, &PluralAttributeSource{}},
		{NatureElementCollectionEmbeddable, &PluralAttributeSource{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.nature), func(t *testing.T) {
			source, err := Classify(&AssociationAttribute{Name: "x", Nature: tt.nature})
			require.NoError(t, err)
			assert.IsType(t, tt.want, source)
			assert.Equal(t, tt.nature, source.Nature())
		})
	}
}

func TestClassify_UnsupportedNature(t *testing.T) {
	for _, nature := range []AttributeNature{NatureOneToMany, NatureBasic, ""} {
		_, err := Classify(&AssociationAttribute{Name: "books", Nature: nature})
		require.Error(t, err)
		assert.True(t, IsNotYetImplemented(err), "nature %q", nature)
	}

	_, err := Classify(&AssociationAttribute{Name: "books", Nature: NatureOneToMany})
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "association_nature", e.Code)
}

func TestAttributeSources_UnsupportedNatureAbortsEnumeration(t *testing.T) {
	class := supplierClass()
	class.AssociationAttributes = append(class.AssociationAttributes, &AssociationAttribute{
		Name:         "invoices",
		Nature:       NatureOneToMany,
		TargetEntity: purchaseInvoiceEntity,
	})
	set := translate(t, class)
	src, _ := set.Lookup(supplierEntity)

	sources, err := src.AttributeSources()
	assert.Nil(t, sources)
	require.Error(t, err)
	assert.True(t, IsNotYetImplemented(err))
	assert.Contains(t, err.Error(), supplierEntity)
}

func TestFetchTimingDefaults(t *testing.T) {
	basic := newSingularAttributeSource(&BasicAttribute{Name: "name"}, "", nil)
	assert.Equal(t, FetchEager, basic.FetchTiming())

	toOne, err := Classify(&AssociationAttribute{Name: "owner", Nature: NatureOneToOne})
	require.NoError(t, err)
	assert.Equal(t, FetchEager, toOne.FetchTiming())

	plural, err := Classify(&AssociationAttribute{Name: "tags", Nature: NatureManyToMany})
	require.NoError(t, err)
	assert.Equal(t, FetchLazy, plural.FetchTiming())
	assert.Equal(t, CollectionBag, plural.(*PluralAttributeSource).Kind())
}

func TestSingularAttributeSource_IDIsNeverNullable(t *testing.T) {
	id := newSingularAttributeSource(&BasicAttribute{Name: "id", ID: true, Column: column("id")}, "", nil)
	assert.False(t, id.IsNullable())

	name := newSingularAttributeSource(&BasicAttribute{Name: "name", Column: column("name")}, "", nil)
	assert.True(t, name.IsNullable())
}

func TestEntitySource_Accessors(t *testing.T) {
	set := translate(t, purchaseInvoiceClass())
	src, _ := set.Lookup(purchaseInvoiceEntity)

	assert.Equal(t, purchaseInvoiceEntity, src.EntityName())
	assert.Equal(t, purchaseInvoiceEntity, src.ClassName())
	assert.Equal(t, purchaseInvoiceEntity, src.Path())
	assert.Equal(t, Some("PurchaseInvoice"), src.JpaEntityName())
	assert.Equal(t, "purchase_invoices", src.PrimaryTable().QualifiedName())
	assert.False(t, src.IsAbstract())
	assert.True(t, src.IsLazy())
	assert.Equal(t, 25, src.BatchSize())
	assert.True(t, src.IsDynamicUpdate())
	assert.False(t, src.IsDynamicInsert())
	assert.Equal(t, []string{"suppliers"}, src.SynchronizedTableNames())
	assert.Equal(t, Some("purchase"), src.DiscriminatorMatchValue())
	assert.Nil(t, src.MetaAttributes())

	update, ok := src.CustomSQLUpdate().Get()
	require.True(t, ok)
	assert.Equal(t, ResultCheckCount, update.Check)
	assert.False(t, src.CustomSQLInsert().IsPresent())
	assert.False(t, src.CustomSQLDelete().IsPresent())
}

func TestEntitySource_AbsentOptionalMetadata(t *testing.T) {
	set := translate(t, supplierClass())
	src, _ := set.Lookup(supplierEntity)

	assert.False(t, src.Proxy().IsPresent())
	assert.False(t, src.CustomLoaderName().IsPresent())
	assert.False(t, src.CustomTuplizerClassName().IsPresent())
	assert.False(t, src.CustomPersisterClassName().IsPresent())
	assert.False(t, src.JpaEntityName().IsPresent())
	assert.False(t, src.DiscriminatorMatchValue().IsPresent())
	assert.Equal(t, "", src.Proxy().OrElse(""))
}

func TestEntitySource_ReadsAreIdempotent(t *testing.T) {
	set := translate(t, purchaseInvoiceClass())
	src, _ := set.Lookup(purchaseInvoiceEntity)

	first, err := src.AttributeSources()
	require.NoError(t, err)
	second, err := src.AttributeSources()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	tables := src.SynchronizedTableNames()
	tables[0] = "changed"
	assert.Equal(t, []string{"suppliers"}, src.SynchronizedTableNames())
	assert.Equal(t, src.SecondaryTables(), src.SecondaryTables())
	assert.Equal(t, src.Constraints(), src.Constraints())
	assert.Equal(t, src.JpaCallbackClasses(), src.JpaCallbackClasses())
}

func TestAddSecondaryTable_Unique(t *testing.T) {
	class := purchaseInvoiceClass()
	class.AddSecondaryTable(SecondaryTableSource{Table: TableSource{Name: "purchase_invoice_notes"}})
	class.AddSecondaryTable(SecondaryTableSource{Table: TableSource{Schema: "audit", Name: "purchase_invoice_notes"}})
	require.Len(t, class.SecondaryTableSources, 2)
	assert.Equal(t, "audit.purchase_invoice_notes", class.SecondaryTableSources[1].Table.QualifiedName())
}

func TestHasCascade(t *testing.T) {
	assert.True(t, HasCascade([]CascadeType{CascadePersist}, CascadePersist))
	assert.True(t, HasCascade([]CascadeType{CascadeAll}, CascadeRemove))
	assert.False(t, HasCascade(nil, CascadeRemove))
}

func TestComponentAttributeSource_ColumnsIncludeNestedEmbeddables(t *testing.T) {
	outer := &EmbeddableClass{
		Name:      "billing",
		Path:      "billing",
		ClassName: "example.com/billing.Billing",
		EmbeddedClasses: []*EmbeddableClass{{
			Name:      "address",
			Path:      "billing.address",
			ClassName: "example.com/billing.Address",
			SimpleAttributes: []*BasicAttribute{
				{Name: "street", GoType: "string", Column: column("street")},
				{Name: "city", GoType: "string", Column: column("city")},
			},
		}},
	}
	overrides := map[string]ColumnSource{"billing.address.city": column("billing_city")}

	source := NewComponentAttributeSource(outer, "", overrides)
	columns := source.Columns()
	require.Len(t, columns, 2)
	assert.Equal(t, "street", columns[0].Name)
	assert.Equal(t, "billing_city", columns[1].Name)
}
