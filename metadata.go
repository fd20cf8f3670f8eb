package gpameta

// =====================================
// Scanned Metadata
// =====================================

// Origin identifies where a piece of metadata was declared
type Origin struct {
	Kind string // "gorm", "bun", "bson" ...
	Name string // fully qualified Go type name
}

// String renders the origin for diagnostics
func (o Origin) String() string {
	if o.Kind == "" {
		return o.Name
	}
	return o.Kind + ":" + o.Name
}

// LocalBindingContext carries the provenance and defaults in effect for one scanned type
type LocalBindingContext struct {
	Origin           Origin
	PackagePath      string
	DefaultLazy      bool
	DefaultBatchSize int
}

// TableSource names a table
type TableSource struct {
	Schema  string
	Catalog string
	Name    string
}

// QualifiedName returns the table name prefixed by schema and catalog when set
func (t TableSource) QualifiedName() string {
	name := t.Name
	if t.Schema != "" {
		name = t.Schema + "." + name
	}
	if t.Catalog != "" {
		name = t.Catalog + "." + name
	}
	return name
}

// SecondaryTableSource describes an additional table holding part of an entity's state
type SecondaryTableSource struct {
	Table       TableSource
	JoinColumns []string
}

// ColumnSource contains column mapping information
type ColumnSource struct {
	Name       string
	SQLType    string
	Table      string // empty for the owner's primary table
	Nullable   bool
	Unique     bool
	Length     int
	Precision  int
	Scale      int
	Insertable bool
	Updatable  bool
	Default    string
}

// ConstraintSource describes a unique constraint or index declared on an entity
type ConstraintSource struct {
	Name    string
	Kind    ConstraintKind
	Table   string
	Columns []string
}

// CustomSQL overrides the statement generated for an entity operation
type CustomSQL struct {
	SQL      string
	Callable bool
	Check    ResultCheckStyle
}

// JpaCallbackSource lists the lifecycle methods of an entity or one of its listeners
type JpaCallbackSource struct {
	Name      string
	Listener  bool
	Callbacks map[CallbackType]string
}

// CallbackFor returns the method handling the given callback type
func (s JpaCallbackSource) CallbackFor(ct CallbackType) (string, bool) {
	m, ok := s.Callbacks[ct]
	return m, ok
}

// BasicAttribute is a scalar attribute mapped to a single column
type BasicAttribute struct {
	Name      string
	GoType    string
	Column    ColumnSource
	ID        bool
	Version   bool
	Generated bool
	Fetch     FetchTiming
}

// PluralAttribute carries the collection-specific part of a to-many attribute
type PluralAttribute struct {
	Kind            CollectionKind
	CollectionTable TableSource
	KeyColumns      []string
	OrderColumn     Optional[string]
	OrderBy         string
	ElementType     string
	ElementClass    *EmbeddableClass
}

// AssociationAttribute is a reference to other entities or a collection of values
type AssociationAttribute struct {
	Name           string
	Nature         AttributeNature
	TargetEntity   string
	Fetch          FetchTiming
	Cascades       []CascadeType
	OrphanRemoval  bool
	Optional       bool
	MappedBy       string
	JoinColumns    []ColumnSource
	ForeignKeyName string
	Plural         *PluralAttribute
}

// EmbeddableClass is a scanned value type embedded into its owner's table
type EmbeddableClass struct {
	Name                  string // attribute name on the owner
	Path                  string // dotted path from the owning entity
	ClassName             string
	SimpleAttributes      []*BasicAttribute
	EmbeddedClasses       []*EmbeddableClass
	AssociationAttributes []*AssociationAttribute
	LocalBindingContext   LocalBindingContext
}

// EmbeddedClass returns the nested embeddable registered under path
func (c *EmbeddableClass) EmbeddedClass(path string) (*EmbeddableClass, bool) {
	return findEmbedded(c.EmbeddedClasses, path)
}

// EntityClass is the scanned representation of one mapped type.
// It is produced by a Scanner and not modified afterwards.
type EntityClass struct {
	Name                    string
	ExplicitEntityName      Optional[string]
	Superclass              Optional[string]
	Inheritance             InheritanceType
	PrimaryTable            TableSource
	Lazy                    bool
	Proxy                   Optional[string]
	BatchSize               int
	DynamicInsert           bool
	DynamicUpdate           bool
	SelectBeforeUpdate      bool
	CustomTuplizer          Optional[string]
	CustomPersister         Optional[string]
	CustomLoaderQueryName   Optional[string]
	CustomInsert            Optional[CustomSQL]
	CustomUpdate            Optional[CustomSQL]
	CustomDelete            Optional[CustomSQL]
	SynchronizedTableNames  []string
	SimpleAttributes        []*BasicAttribute
	EmbeddedClasses         []*EmbeddableClass
	AssociationAttributes   []*AssociationAttribute
	AttributeOverrides      map[string]ColumnSource
	ConstraintSources       []ConstraintSource
	JpaCallbacks            []JpaCallbackSource
	SecondaryTableSources   []SecondaryTableSource
	DiscriminatorMatchValue Optional[string]
	LocalBindingContext     LocalBindingContext
}

// EmbeddedClass returns the embeddable registered under path
func (c *EntityClass) EmbeddedClass(path string) (*EmbeddableClass, bool) {
	return findEmbedded(c.EmbeddedClasses, path)
}

// AddSecondaryTable registers a secondary table unless one with the same
// qualified name is already present
func (c *EntityClass) AddSecondaryTable(st SecondaryTableSource) {
	for _, existing := range c.SecondaryTableSources {
		if existing.Table.QualifiedName() == st.Table.QualifiedName() {
			return
		}
	}
	c.SecondaryTableSources = append(c.SecondaryTableSources, st)
}

func findEmbedded(classes []*EmbeddableClass, path string) (*EmbeddableClass, bool) {
	for _, c := range classes {
		if c.Path == path {
			return c, true
		}
		if nested, ok := findEmbedded(c.EmbeddedClasses, path); ok {
			return nested, true
		}
	}
	return nil, false
}
