package gpamongo

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/lemmego/gpameta"
	"github.com/lemmego/gpameta/examples/invoice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func testConfig() gpameta.Config {
	return gpameta.Config{
		Driver:   "mongodb",
		Host:     "localhost",
		Port:     27017,
		Database: "test_gpameta",
		Options: map[string]interface{}{
			"mongo": map[string]interface{}{
				"server_selection_timeout": "2s",
			},
		},
	}
}

func typeName(v any) string {
	return gpameta.TypeName(reflect.TypeOf(v))
}

func scanByName(t *testing.T, models ...any) map[string]*gpameta.EntityClass {
	classes, err := NewScanner(testConfig()).Scan(models...)
	require.NoError(t, err)
	byName := make(map[string]*gpameta.EntityClass, len(classes))
	for _, c := range classes {
		byName[c.Name] = c
	}
	return byName
}

type testProduct struct {
	ID       primitive.ObjectID     `bson:"_id,omitempty"`
	Name     string                 `bson:"name"`
	Price    primitive.Decimal128   `bson:"price"`
	Tags     []string               `bson:"tags,omitempty"`
	Metadata map[string]interface{} `bson:"metadata,omitempty"`
	Internal string                 `bson:"-"`
}

func (testProduct) CollectionName() string { return "catalog" }

func TestScanner_PurchaseInvoice(t *testing.T) {
	classes := scanByName(t, invoice.Models()...)
	require.Len(t, classes, 3)

	pi := classes[typeName(invoice.PurchaseInvoice{})]
	require.NotNil(t, pi)
	assert.Equal(t, "purchase_invoices", pi.PrimaryTable.Name)
	assert.Equal(t, "bson", pi.LocalBindingContext.Origin.Kind)
	assert.Equal(t, gpameta.Some(typeName(invoice.Invoice{})), pi.Superclass)

	require.Len(t, pi.SimpleAttributes, 2)
	assert.Equal(t, "status", pi.SimpleAttributes[0].Column.Name)
	assert.Equal(t, "string", pi.SimpleAttributes[0].Column.SQLType)
	assert.Equal(t, "supplier_id", pi.SimpleAttributes[1].Column.Name)
	assert.Equal(t, "long", pi.SimpleAttributes[1].Column.SQLType)

	require.Len(t, pi.EmbeddedClasses, 1)
	payable := pi.EmbeddedClasses[0]
	assert.Equal(t, "accountPayable", payable.Name)
	require.Len(t, payable.SimpleAttributes, 1)
	assert.Equal(t, "account_payable.amount", payable.SimpleAttributes[0].Column.Name)

	require.Len(t, payable.AssociationAttributes, 1)
	payments := payable.AssociationAttributes[0]
	assert.Equal(t, gpameta.NatureElementCollectionEmbeddable, payments.Nature)
	assert.Empty(t, payments.Plural.CollectionTable.Name)
	assert.Empty(t, payments.Plural.KeyColumns)
	assert.Equal(t, gpameta.CollectionList, payments.Plural.Kind)
	require.NotNil(t, payments.Plural.ElementClass)
	require.Len(t, payments.Plural.ElementClass.SimpleAttributes, 2)
	assert.Equal(t, "account_payable.payments.paid_at", payments.Plural.ElementClass.SimpleAttributes[0].Column.Name)
	assert.Equal(t, "date", payments.Plural.ElementClass.SimpleAttributes[0].Column.SQLType)

	require.Len(t, pi.AssociationAttributes, 1)
	supplier := pi.AssociationAttributes[0]
	assert.Equal(t, gpameta.NatureManyToOne, supplier.Nature)
	assert.Equal(t, typeName(invoice.Supplier{}), supplier.TargetEntity)
	require.Len(t, supplier.JoinColumns, 1)
	assert.Equal(t, "supplier_id", supplier.JoinColumns[0].Name)
	assert.False(t, supplier.JoinColumns[0].Nullable)
}

func TestScanner_Invoice(t *testing.T) {
	classes := scanByName(t, &invoice.Invoice{})
	inv := classes[typeName(invoice.Invoice{})]
	require.NotNil(t, inv)

	assert.Equal(t, "invoices", inv.PrimaryTable.Name)
	require.Len(t, inv.SimpleAttributes, 2)
	assert.True(t, inv.SimpleAttributes[0].ID)
	assert.Equal(t, "_id", inv.SimpleAttributes[0].Column.Name)
	assert.False(t, inv.SimpleAttributes[0].Generated)

	require.Len(t, inv.EmbeddedClasses, 1)
	assert.Equal(t, "discount.code", inv.EmbeddedClasses[0].SimpleAttributes[0].Column.Name)

	require.Len(t, inv.AssociationAttributes, 1)
	items := inv.AssociationAttributes[0]
	assert.Equal(t, "lineItems", items.Name)
	assert.Empty(t, items.Plural.CollectionTable.Name)
	assert.Equal(t, typeName(invoice.LineItem{}), items.Plural.ElementType)
}

func TestScanner_CollectionNameAndScalars(t *testing.T) {
	cfg := testConfig()
	cfg.Mapping.TablePrefix = "shop_"
	classes, err := NewScanner(cfg).Scan(testProduct{})
	require.NoError(t, err)
	require.Len(t, classes, 1)

	product := classes[0]
	assert.Equal(t, "shop_catalog", product.PrimaryTable.Name)

	require.Len(t, product.SimpleAttributes, 4)
	id := product.SimpleAttributes[0]
	assert.True(t, id.ID)
	assert.True(t, id.Generated)
	assert.Equal(t, "objectId", id.Column.SQLType)
	assert.Equal(t, "decimal", product.SimpleAttributes[2].Column.SQLType)
	assert.Equal(t, "object", product.SimpleAttributes[3].Column.SQLType)
	assert.True(t, product.SimpleAttributes[3].Column.Nullable)

	require.Len(t, product.AssociationAttributes, 1)
	tags := product.AssociationAttributes[0]
	assert.Equal(t, gpameta.NatureElementCollectionBasic, tags.Nature)
	assert.Equal(t, "string", tags.Plural.ElementType)
	assert.Nil(t, tags.Plural.ElementClass)
}

func TestScanner_DefaultCollectionName(t *testing.T) {
	s := NewScanner(testConfig())
	assert.Equal(t, "purchase_invoices", s.CollectionName(reflect.TypeOf(invoice.PurchaseInvoice{})))
	assert.Equal(t, "line_items", s.CollectionName(reflect.TypeOf(&invoice.LineItem{})))
}

func TestCheckCollections(t *testing.T) {
	set, err := gpameta.Bind(NewScanner(testConfig()), invoice.Models()...)
	require.NoError(t, err)
	expected, err := set.ExpectedTables()
	require.NoError(t, err)

	report, err := gpameta.CheckTables(expected, collectionInspector{
		collections: map[string]bool{"suppliers": true, "invoices": true},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Tables)
	assert.Equal(t, []string{"purchase_invoices"}, report.MissingTables())
	assert.Empty(t, report.MissingColumns())
}

func TestBind_FetchPlan(t *testing.T) {
	set, err := gpameta.Bind(NewScanner(testConfig()), invoice.Models()...)
	require.NoError(t, err)

	plan, err := set.FetchPlan(gpameta.GraphFromPaths(invoice.PurchaseInvoiceEntity, "supplier"), gpameta.GraphLoad)
	require.NoError(t, err)
	assert.True(t, plan.IsInitialized("supplier"))
	assert.True(t, plan.IsInitialized("status"))
	assert.True(t, plan.IsInitialized("accountPayable.amount"))
	assert.False(t, plan.IsInitialized("lineItems"))
}

func TestBuildConnectionURI(t *testing.T) {
	assert.Equal(t, "mongodb://localhost:27017", buildConnectionURI(gpameta.Config{}))

	cfg := gpameta.Config{Host: "db", Port: 27018, Username: "app", Password: "secret", Database: "ledger"}
	assert.Equal(t, "mongodb://app:secret@db:27018/ledger", buildConnectionURI(cfg))

	cfg.SSL = gpameta.SSLConfig{Enabled: true, CAFile: "/etc/ca.pem"}
	assert.Equal(t, "mongodb://app:secret@db:27018/ledger?ssl=true&sslCAFile=/etc/ca.pem", buildConnectionURI(cfg))

	cfg.ConnectionURL = "mongodb+srv://cluster/ledger"
	assert.Equal(t, "mongodb+srv://cluster/ledger", buildConnectionURI(cfg))
}

func TestApplyClientOptions(t *testing.T) {
	opts := options.Client()
	applyClientOptions(opts, map[string]any{
		"max_pool_size": float64(20),
		"min_pool_size": 2,
		"max_idle_time": "30s",
		"app_name":      "gpameta",
	})
	require.NotNil(t, opts.MaxPoolSize)
	assert.Equal(t, uint64(20), *opts.MaxPoolSize)
	require.NotNil(t, opts.MinPoolSize)
	assert.Equal(t, uint64(2), *opts.MinPoolSize)
	require.NotNil(t, opts.MaxConnIdleTime)
	assert.Equal(t, 30*time.Second, *opts.MaxConnIdleTime)
	require.NotNil(t, opts.AppName)
	assert.Equal(t, "gpameta", *opts.AppName)
}

func TestConvertMongoError(t *testing.T) {
	assert.Nil(t, convertMongoError(nil))
	assert.True(t, gpameta.IsNotFound(convertMongoError(mongo.ErrNoDocuments)))

	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	assert.True(t, gpameta.IsErrorType(convertMongoError(dup), gpameta.ErrorTypeDuplicate))

	missing := mongo.CommandError{Code: 26, Message: "ns not found"}
	assert.True(t, gpameta.IsNotFound(convertMongoError(missing)))
}

// =====================================
// Validator
// =====================================

type ValidatorTestSuite struct {
	suite.Suite
	ctx context.Context
	db  *mongo.Database
	set *gpameta.SourceSet
}

func (s *ValidatorTestSuite) SetupSuite() {
	s.ctx = context.Background()
	db, err := Open(s.ctx, testConfig())
	if err != nil {
		s.T().Skip("MongoDB not available:", err)
	}
	s.db = db
	s.set, err = gpameta.Bind(NewScanner(testConfig()), invoice.Models()...)
	s.Require().NoError(err)
}

func (s *ValidatorTestSuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Drop(s.ctx)
		_ = s.db.Client().Disconnect(s.ctx)
	}
}

func (s *ValidatorTestSuite) SetupTest() {
	s.Require().NoError(s.db.Drop(s.ctx))
}

func (s *ValidatorTestSuite) TestReportsMissingCollections() {
	s.Require().NoError(s.db.CreateCollection(s.ctx, "suppliers"))

	report, err := NewValidator(s.db).Validate(s.ctx, s.set)
	s.Require().NoError(err)
	s.Equal([]string{"invoices", "purchase_invoices"}, report.MissingTables())
}

func (s *ValidatorTestSuite) TestPassesWhenCollectionsExist() {
	for _, name := range []string{"suppliers", "purchase_invoices", "invoices"} {
		s.Require().NoError(s.db.CreateCollection(s.ctx, name))
	}

	report, err := NewValidator(s.db).Validate(s.ctx, s.set)
	s.Require().NoError(err)
	s.True(report.OK(), "problems: %v", report.Problems)
}

func TestValidatorSuite(t *testing.T) {
	suite.Run(t, new(ValidatorTestSuite))
}
