package gpameta

import "reflect"

// =====================================
// Entity Mapping Options
// =====================================

// MappingOptions holds the per-entity knobs struct tags cannot express.
// Zero values mean "use the default".
type MappingOptions struct {
	EntityName         string
	Schema             string
	Catalog            string
	Lazy               Optional[bool]
	Proxy              string
	BatchSize          int
	DynamicInsert      bool
	DynamicUpdate      bool
	SelectBeforeUpdate bool
	Tuplizer           string
	Persister          string
	Loader             string
	SQLInsert          *CustomSQL
	SQLUpdate          *CustomSQL
	SQLDelete          *CustomSQL
	Synchronize        []string
	SecondaryTables    []SecondaryTableSource
	DiscriminatorValue string
	Inheritance        InheritanceType
	AttributeOverrides map[string]ColumnSource
	Constraints        []ConstraintSource
	Listeners          []any
}

// Mapped is implemented by entities declaring MappingOptions.
//
// Example:
//
//	func (PurchaseInvoice) MappingOptions() gpameta.MappingOptions {
//	    return gpameta.MappingOptions{BatchSize: 25, DynamicUpdate: true}
//	}
type Mapped interface {
	MappingOptions() MappingOptions
}

var mappedType = reflect.TypeOf((*Mapped)(nil)).Elem()

// ResolveOptions returns the MappingOptions declared by t, on either its
// value or pointer receiver. The method is called on a zero value.
func ResolveOptions(t reflect.Type) (MappingOptions, bool) {
	t = indirect(t)
	ptr := reflect.New(t)
	if ptr.Type().Implements(mappedType) {
		return ptr.Interface().(Mapped).MappingOptions(), true
	}
	return MappingOptions{}, false
}

// NewEntityClass builds the entity-level part of an EntityClass for t from
// its MappingOptions and the scan context. Scanners fill in the table name and
// attributes.
func NewEntityClass(t reflect.Type, ctx LocalBindingContext) *EntityClass {
	opts, _ := ResolveOptions(t)

	class := &EntityClass{
		Name:                    TypeName(t),
		ExplicitEntityName:      OptionalString(opts.EntityName),
		Inheritance:             opts.Inheritance,
		PrimaryTable:            TableSource{Schema: opts.Schema, Catalog: opts.Catalog},
		Lazy:                    opts.Lazy.OrElse(ctx.DefaultLazy),
		Proxy:                   OptionalString(opts.Proxy),
		BatchSize:               ctx.DefaultBatchSize,
		DynamicInsert:           opts.DynamicInsert,
		DynamicUpdate:           opts.DynamicUpdate,
		SelectBeforeUpdate:      opts.SelectBeforeUpdate,
		CustomTuplizer:          OptionalString(opts.Tuplizer),
		CustomPersister:         OptionalString(opts.Persister),
		CustomLoaderQueryName:   OptionalString(opts.Loader),
		CustomInsert:            optionalSQL(opts.SQLInsert),
		CustomUpdate:            optionalSQL(opts.SQLUpdate),
		CustomDelete:            optionalSQL(opts.SQLDelete),
		SynchronizedTableNames:  append([]string(nil), opts.Synchronize...),
		AttributeOverrides:      make(map[string]ColumnSource, len(opts.AttributeOverrides)),
		ConstraintSources:       append([]ConstraintSource(nil), opts.Constraints...),
		JpaCallbacks:            Callbacks(t, opts.Listeners),
		DiscriminatorMatchValue: OptionalString(opts.DiscriminatorValue),
		LocalBindingContext:     ctx,
	}
	if opts.BatchSize > 0 {
		class.BatchSize = opts.BatchSize
	}
	for path, column := range opts.AttributeOverrides {
		class.AttributeOverrides[path] = column
	}
	for _, st := range opts.SecondaryTables {
		class.AddSecondaryTable(st)
	}
	return class
}

func optionalSQL(sql *CustomSQL) Optional[CustomSQL] {
	if sql == nil || sql.SQL == "" {
		return None[CustomSQL]()
	}
	out := *sql
	if out.Check == "" {
		out.Check = ResultCheckCount
		if out.Callable {
			out.Check = ResultCheckParam
		}
	}
	return Some(out)
}
