package gpameta

const (
	invoiceEntity         = "example.com/billing.Invoice"
	purchaseInvoiceEntity = "example.com/billing.PurchaseInvoice"
	supplierEntity        = "example.com/billing.Supplier"
)

func column(name string) ColumnSource {
	return ColumnSource{Name: name, Nullable: true, Insertable: true, Updatable: true}
}

func invoiceClass() *EntityClass {
	return &EntityClass{
		Name:         invoiceEntity,
		Inheritance:  InheritanceTablePerClass,
		PrimaryTable: TableSource{Name: "invoices"},
		BatchSize:    -1,
		SimpleAttributes: []*BasicAttribute{
			{Name: "number", GoType: "string", Column: column("number"), ID: true},
			{Name: "issuedAt", GoType: "time.Time", Column: column("issued_at")},
		},
		AssociationAttributes: []*AssociationAttribute{{
			Name:   "lineItems",
			Nature: NatureElementCollectionEmbeddable,
			Plural: &PluralAttribute{
				CollectionTable: TableSource{Name: "invoice_line_items"},
				KeyColumns:      []string{"invoice_number"},
				ElementType:     "example.com/billing.LineItem",
				ElementClass: &EmbeddableClass{
					Name:      "lineItems",
					Path:      "lineItems",
					ClassName: "example.com/billing.LineItem",
					SimpleAttributes: []*BasicAttribute{
						{Name: "description", GoType: "string", Column: column("description")},
					},
				},
			},
		}},
	}
}

func purchaseInvoiceClass() *EntityClass {
	return &EntityClass{
		Name:                   purchaseInvoiceEntity,
		ExplicitEntityName:     Some("PurchaseInvoice"),
		Superclass:             Some(invoiceEntity),
		PrimaryTable:           TableSource{Name: "purchase_invoices"},
		Lazy:                   true,
		BatchSize:              25,
		DynamicUpdate:          true,
		CustomUpdate:           Some(CustomSQL{SQL: "UPDATE purchase_invoices SET status = ?", Check: ResultCheckCount}),
		SynchronizedTableNames: []string{"suppliers"},
		SimpleAttributes: []*BasicAttribute{
			{Name: "status", GoType: "string", Column: column("status")},
		},
		EmbeddedClasses: []*EmbeddableClass{{
			Name:      "accountPayable",
			Path:      "accountPayable",
			ClassName: "example.com/billing.AccountPayable",
			SimpleAttributes: []*BasicAttribute{
				{Name: "amount", GoType: "int64", Column: column("amount")},
			},
			AssociationAttributes: []*AssociationAttribute{{
				Name:   "payments",
				Nature: NatureElementCollectionEmbeddable,
				Plural: &PluralAttribute{
					Kind:            CollectionList,
					CollectionTable: TableSource{Name: "purchase_invoice_payments"},
					KeyColumns:      []string{"purchase_invoice_number"},
					OrderColumn:     Some("payments_order"),
					ElementType:     "example.com/billing.Payment",
					ElementClass: &EmbeddableClass{
						Name:      "payments",
						Path:      "accountPayable.payments",
						ClassName: "example.com/billing.Payment",
						SimpleAttributes: []*BasicAttribute{
							{Name: "paidAt", GoType: "time.Time", Column: column("paid_at")},
							{Name: "amount", GoType: "int64", Column: column("amount")},
						},
					},
				},
			}},
		}},
		AssociationAttributes: []*AssociationAttribute{{
			Name:         "supplier",
			Nature:       NatureManyToOne,
			TargetEntity: supplierEntity,
			Fetch:        FetchLazy,
			Cascades:     []CascadeType{CascadePersist},
			JoinColumns:  []ColumnSource{{Name: "supplier_id", Insertable: true, Updatable: true}},
		}},
		AttributeOverrides: map[string]ColumnSource{
			"accountPayable.amount": {Name: "payable_amount", SQLType: "decimal", Precision: 12, Scale: 2},
		},
		SecondaryTableSources: []SecondaryTableSource{
			{Table: TableSource{Name: "purchase_invoice_notes"}, JoinColumns: []string{"number"}},
		},
		DiscriminatorMatchValue: Some("purchase"),
	}
}

func supplierClass() *EntityClass {
	return &EntityClass{
		Name:         supplierEntity,
		PrimaryTable: TableSource{Name: "suppliers"},
		SimpleAttributes: []*BasicAttribute{
			{Name: "id", GoType: "uint", Column: column("id"), ID: true, Generated: true},
			{Name: "name", GoType: "string", Column: column("name")},
		},
	}
}

// invoiceSet translates the invoice fixtures, subclass first
func invoiceSet() (*SourceSet, error) {
	set := NewSourceSet()
	for _, class := range []*EntityClass{supplierClass(), purchaseInvoiceClass(), invoiceClass()} {
		if _, err := set.Translate(class); err != nil {
			return nil, err
		}
	}
	return set, set.Freeze()
}
