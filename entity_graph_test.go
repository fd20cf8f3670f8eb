package gpameta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityGraph_Builders(t *testing.T) {
	graph := NewEntityGraph(purchaseInvoiceEntity)
	graph.AddAttributeNodes("status", "status")
	payable := graph.AddSubgraph("accountPayable")
	payable.AddAttributeNodes("payments")

	assert.Equal(t, purchaseInvoiceEntity, graph.Entity())
	assert.Equal(t, []string{"status", "accountPayable"}, graph.AttributeNodes())
	assert.Equal(t, "accountPayable", payable.Attribute())
	assert.Same(t, payable, graph.AddSubgraph("accountPayable"))
}

func TestGraphFromPaths(t *testing.T) {
	graph := GraphFromPaths(purchaseInvoiceEntity, "accountPayable.payments", "supplier", "")

	assert.Equal(t, []string{"accountPayable", "supplier"}, graph.AttributeNodes())
	assert.True(t, graph.child("accountPayable").has("payments"))
	assert.Nil(t, graph.child("supplier"))
}

func TestFetchPlan_FetchSemantic(t *testing.T) {
	set, err := invoiceSet()
	require.NoError(t, err)

	graph := NewEntityGraph(purchaseInvoiceEntity)
	graph.AddSubgraph("accountPayable").AddAttributeNodes("payments")

	plan, err := set.FetchPlan(graph, GraphFetch)
	require.NoError(t, err)
	assert.Equal(t, GraphFetch, plan.Semantic())
	assert.Equal(t, purchaseInvoiceEntity, plan.Entity())

	assert.False(t, plan.IsInitialized("lineItems"))
	assert.True(t, plan.IsInitialized("accountPayable"))
	assert.True(t, plan.IsInitialized("accountPayable.payments"))
	assert.True(t, plan.Requested("accountPayable.payments"))
	assert.False(t, plan.IsInitialized("supplier"))
	assert.True(t, plan.IsInitialized("number"))
	assert.True(t, plan.IsInitialized("issuedAt"))

	// element attributes are planned only under a subgraph
	_, planned := plan.Decision("accountPayable.payments.paidAt")
	assert.False(t, planned)

	d, ok := plan.Decision("accountPayable.payments")
	require.True(t, ok)
	assert.Equal(t, NatureElementCollectionEmbeddable, d.Nature)

	assert.Equal(t, []string{
		"accountPayable",
		"accountPayable.amount",
		"accountPayable.payments",
		"issuedAt",
		"lineItems",
		"number",
		"status",
		"supplier",
	}, plan.Paths())
}

func TestFetchPlan_LoadSemanticKeepsEagerDefaults(t *testing.T) {
	class := purchaseInvoiceClass()
	class.AssociationAttributes[0].Fetch = FetchDefault

	set, err := Bind(staticScanner{class, invoiceClass(), supplierClass()})
	require.NoError(t, err)
	graph := GraphFromPaths(purchaseInvoiceEntity, "lineItems")

	load, err := set.FetchPlan(graph, GraphLoad)
	require.NoError(t, err)
	assert.True(t, load.IsInitialized("lineItems"))
	assert.True(t, load.IsInitialized("supplier"))
	assert.False(t, load.IsInitialized("accountPayable.payments"))

	fetch, err := set.FetchPlan(graph, GraphFetch)
	require.NoError(t, err)
	assert.True(t, fetch.IsInitialized("lineItems"))
	assert.False(t, fetch.IsInitialized("supplier"))
}

func TestFetchPlan_ElementSubgraph(t *testing.T) {
	set, err := invoiceSet()
	require.NoError(t, err)

	plan, err := set.FetchPlan(GraphFromPaths(purchaseInvoiceEntity, "accountPayable.payments.paidAt"), GraphFetch)
	require.NoError(t, err)
	assert.True(t, plan.IsInitialized("accountPayable.payments"))
	assert.True(t, plan.Requested("accountPayable.payments.paidAt"))
	assert.True(t, plan.IsInitialized("accountPayable.payments.amount"))

	_, err = set.FetchPlan(GraphFromPaths(purchaseInvoiceEntity, "accountPayable.payments.note"), GraphFetch)
	assert.True(t, IsInvalidArgument(err))
}

func TestFetchPlan_SubgraphOnTargetEntity(t *testing.T) {
	set, err := invoiceSet()
	require.NoError(t, err)

	plan, err := set.FetchPlan(GraphFromPaths(purchaseInvoiceEntity, "supplier.name"), "")
	require.NoError(t, err)
	assert.Equal(t, GraphFetch, plan.Semantic())
	assert.True(t, plan.IsInitialized("supplier"))
	assert.True(t, plan.IsInitialized("supplier.name"))
	assert.True(t, plan.IsInitialized("supplier.id"))
}

func TestFetchPlan_Errors(t *testing.T) {
	set, err := invoiceSet()
	require.NoError(t, err)

	_, err = set.FetchPlan(nil, GraphFetch)
	assert.True(t, IsInvalidArgument(err))

	_, err = set.FetchPlan(NewEntityGraph("example.com/billing.Ledger"), GraphFetch)
	assert.True(t, IsNotFound(err))

	_, err = set.FetchPlan(GraphFromPaths(purchaseInvoiceEntity, "shipping"), GraphFetch)
	assert.True(t, IsInvalidArgument(err))

	_, err = set.FetchPlan(GraphFromPaths(purchaseInvoiceEntity, "accountPayable.total"), GraphFetch)
	assert.True(t, IsInvalidArgument(err))
}
