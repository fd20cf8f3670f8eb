package gpameta

import "strings"

// =====================================
// Attribute Sources
// =====================================

// AttributeSource is the uniform view of one attribute handed to the binder.
// The set of implementations is closed: *SingularAttributeSource,
// *ToOneAttributeSource, *PluralAttributeSource and *ComponentAttributeSource.
// Consumers switch on the concrete type.
type AttributeSource interface {
	// Name returns the attribute name as declared on its owner
	Name() string

	// Path returns the dotted attribute path relative to the owning entity
	Path() string

	// Nature returns the classification the source was built for
	Nature() AttributeNature

	// IsSingular reports whether the attribute holds at most one value
	IsSingular() bool

	// FetchTiming returns the mapped fetch timing, with JPA defaults applied
	FetchTiming() FetchTiming

	// Cascades returns the operations cascaded through this attribute
	Cascades() []CascadeType

	// IsNullable reports whether the attribute may be absent
	IsNullable() bool

	// Columns returns the columns this attribute maps to on its owner's table
	Columns() []ColumnSource

	attributeSource()
}

// Classify wraps an association attribute declared directly on an entity.
// It fails with ErrorTypeNotYetImplemented for natures with no translation.
func Classify(attr *AssociationAttribute) (AttributeSource, error) {
	return classify(attr, "", nil)
}

func classify(attr *AssociationAttribute, prefix string, overrides map[string]ColumnSource) (AttributeSource, error) {
	path := JoinPath(prefix, attr.Name)
	switch attr.Nature {
	case NatureOneToOne, NatureManyToOne:
		return &ToOneAttributeSource{attr: attr, path: path}, nil
	case NatureManyToMany, NatureElementCollectionBasic, NatureElementCollectionEmbeddable:
		return &PluralAttributeSource{attr: attr, path: path, overrides: overrides}, nil
	default:
		return nil, &Error{
			Type:    ErrorTypeNotYetImplemented,
			Message: "attribute " + path + " has unsupported nature " + string(attr.Nature),
			Code:    "association_nature",
		}
	}
}

// attributeSources builds the ordered attribute list of an entity or
// embeddable: basic attributes, then embedded, then associations.
func attributeSources(
	basics []*BasicAttribute,
	embedded []*EmbeddableClass,
	associations []*AssociationAttribute,
	prefix string,
	overrides map[string]ColumnSource,
) ([]AttributeSource, error) {
	sources := make([]AttributeSource, 0, len(basics)+len(embedded)+len(associations))
	for _, attr := range basics {
		sources = append(sources, newSingularAttributeSource(attr, prefix, overrides))
	}
	for _, component := range embedded {
		sources = append(sources, NewComponentAttributeSource(component, prefix, overrides))
	}
	for _, attr := range associations {
		source, err := classify(attr, prefix, overrides)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, nil
}

// JoinPath appends name to a dotted attribute path
func JoinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// =====================================
// Singular (basic) attributes
// =====================================

// SingularAttributeSource wraps a basic attribute
type SingularAttributeSource struct {
	attr   *BasicAttribute
	path   string
	column ColumnSource
}

func newSingularAttributeSource(attr *BasicAttribute, prefix string, overrides map[string]ColumnSource) *SingularAttributeSource {
	path := JoinPath(prefix, attr.Name)
	column := attr.Column
	if override, ok := overrides[path]; ok {
		column = override
	}
	return &SingularAttributeSource{attr: attr, path: path, column: column}
}

func (s *SingularAttributeSource) attributeSource() {}

func (s *SingularAttributeSource) Name() string            { return s.attr.Name }
func (s *SingularAttributeSource) Path() string            { return s.path }
func (s *SingularAttributeSource) Nature() AttributeNature { return NatureBasic }
func (s *SingularAttributeSource) IsSingular() bool        { return true }
func (s *SingularAttributeSource) Cascades() []CascadeType { return nil }

// FetchTiming defaults to eager for basic attributes
func (s *SingularAttributeSource) FetchTiming() FetchTiming {
	if s.attr.Fetch == FetchDefault {
		return FetchEager
	}
	return s.attr.Fetch
}

// IsNullable reports column nullability; identifiers are never nullable
func (s *SingularAttributeSource) IsNullable() bool {
	return s.column.Nullable && !s.attr.ID
}

// Columns returns the single mapped column, after attribute overrides
func (s *SingularAttributeSource) Columns() []ColumnSource {
	return []ColumnSource{s.column}
}

// Column returns the mapped column, after attribute overrides
func (s *SingularAttributeSource) Column() ColumnSource { return s.column }

// GoType returns the declared Go type of the attribute
func (s *SingularAttributeSource) GoType() string { return s.attr.GoType }

// IsID reports whether the attribute is (part of) the identifier
func (s *SingularAttributeSource) IsID() bool { return s.attr.ID }

// IsVersion reports whether the attribute is the optimistic lock version
func (s *SingularAttributeSource) IsVersion() bool { return s.attr.Version }

// IsGenerated reports whether the value is generated by the database
func (s *SingularAttributeSource) IsGenerated() bool { return s.attr.Generated }

// =====================================
// To-one associations
// =====================================

// ToOneAttributeSource wraps a one-to-one or many-to-one association
type ToOneAttributeSource struct {
	attr *AssociationAttribute
	path string
}

func (s *ToOneAttributeSource) attributeSource() {}

func (s *ToOneAttributeSource) Name() string            { return s.attr.Name }
func (s *ToOneAttributeSource) Path() string            { return s.path }
func (s *ToOneAttributeSource) Nature() AttributeNature { return s.attr.Nature }
func (s *ToOneAttributeSource) IsSingular() bool        { return true }
func (s *ToOneAttributeSource) IsNullable() bool        { return s.attr.Optional }
func (s *ToOneAttributeSource) Cascades() []CascadeType { return copyCascades(s.attr.Cascades) }

// FetchTiming defaults to eager for to-one associations
func (s *ToOneAttributeSource) FetchTiming() FetchTiming {
	if s.attr.Fetch == FetchDefault {
		return FetchEager
	}
	return s.attr.Fetch
}

// Columns returns the join columns held on the owner's table
func (s *ToOneAttributeSource) Columns() []ColumnSource {
	return append([]ColumnSource(nil), s.attr.JoinColumns...)
}

// TargetEntity returns the name of the referenced entity
func (s *ToOneAttributeSource) TargetEntity() string { return s.attr.TargetEntity }

// IsOptional reports whether the reference may be null
func (s *ToOneAttributeSource) IsOptional() bool { return s.attr.Optional }

// IsUnique reports whether the join columns carry a uniqueness constraint
func (s *ToOneAttributeSource) IsUnique() bool {
	return s.attr.Nature == NatureOneToOne && s.attr.MappedBy == ""
}

// ForeignKeyName returns the explicit foreign key name, if any
func (s *ToOneAttributeSource) ForeignKeyName() Optional[string] {
	return OptionalString(s.attr.ForeignKeyName)
}

// MappedBy returns the owning attribute on the target when this side is inverse
func (s *ToOneAttributeSource) MappedBy() Optional[string] { return OptionalString(s.attr.MappedBy) }

// OrphanRemoval reports whether dereferenced targets are deleted
func (s *ToOneAttributeSource) OrphanRemoval() bool { return s.attr.OrphanRemoval }

// =====================================
// Plural attributes
// =====================================

// PluralAttributeSource wraps a many-to-many association or an element collection
type PluralAttributeSource struct {
	attr      *AssociationAttribute
	path      string
	overrides map[string]ColumnSource
}

func (s *PluralAttributeSource) attributeSource() {}

func (s *PluralAttributeSource) Name() string            { return s.attr.Name }
func (s *PluralAttributeSource) Path() string            { return s.path }
func (s *PluralAttributeSource) Nature() AttributeNature { return s.attr.Nature }
func (s *PluralAttributeSource) IsSingular() bool        { return false }
func (s *PluralAttributeSource) IsNullable() bool        { return true }
func (s *PluralAttributeSource) Cascades() []CascadeType { return copyCascades(s.attr.Cascades) }

// FetchTiming defaults to lazy for collections
func (s *PluralAttributeSource) FetchTiming() FetchTiming {
	if s.attr.Fetch == FetchDefault {
		return FetchLazy
	}
	return s.attr.Fetch
}

// Columns is empty: collections are held in their own table
func (s *PluralAttributeSource) Columns() []ColumnSource { return nil }

func (s *PluralAttributeSource) plural() *PluralAttribute {
	if s.attr.Plural == nil {
		return &PluralAttribute{}
	}
	return s.attr.Plural
}

// TargetEntity returns the element entity for many-to-many associations
func (s *PluralAttributeSource) TargetEntity() string { return s.attr.TargetEntity }

// CollectionTable returns the join or collection table
func (s *PluralAttributeSource) CollectionTable() TableSource { return s.plural().CollectionTable }

// KeyColumns returns the collection table columns referencing the owner
func (s *PluralAttributeSource) KeyColumns() []string {
	return append([]string(nil), s.plural().KeyColumns...)
}

// Kind returns the collection semantics, bag when unset
func (s *PluralAttributeSource) Kind() CollectionKind {
	if k := s.plural().Kind; k != "" {
		return k
	}
	return CollectionBag
}

// OrderColumn returns the list index column, if any
func (s *PluralAttributeSource) OrderColumn() Optional[string] { return s.plural().OrderColumn }

// OrderBy returns the ordering fragment applied on load
func (s *PluralAttributeSource) OrderBy() string { return s.plural().OrderBy }

// ElementType returns the Go type of the collection elements
func (s *PluralAttributeSource) ElementType() string { return s.plural().ElementType }

// MappedBy returns the owning attribute on the target when this side is inverse
func (s *PluralAttributeSource) MappedBy() Optional[string] { return OptionalString(s.attr.MappedBy) }

// OrphanRemoval reports whether removed elements are deleted
func (s *PluralAttributeSource) OrphanRemoval() bool { return s.attr.OrphanRemoval }

// ElementSources returns the attribute sources of an embeddable element type.
// It returns nil for collections of basic values and of entities.
func (s *PluralAttributeSource) ElementSources() ([]AttributeSource, error) {
	element := s.plural().ElementClass
	if element == nil {
		return nil, nil
	}
	return attributeSources(
		element.SimpleAttributes,
		element.EmbeddedClasses,
		element.AssociationAttributes,
		s.path,
		s.overrides,
	)
}

// =====================================
// Components (embedded)
// =====================================

// ComponentAttributeSource wraps an embeddable embedded into its owner
type ComponentAttributeSource struct {
	class      *EmbeddableClass
	pathPrefix string
	overrides  map[string]ColumnSource
}

// NewComponentAttributeSource wraps an embeddable located under pathPrefix.
// Overrides are keyed by attribute path relative to the owning entity and
// apply to every attribute nested in the component.
func NewComponentAttributeSource(class *EmbeddableClass, pathPrefix string, overrides map[string]ColumnSource) *ComponentAttributeSource {
	return &ComponentAttributeSource{class: class, pathPrefix: pathPrefix, overrides: overrides}
}

func (s *ComponentAttributeSource) attributeSource() {}

func (s *ComponentAttributeSource) Name() string             { return s.class.Name }
func (s *ComponentAttributeSource) Path() string             { return JoinPath(s.pathPrefix, s.class.Name) }
func (s *ComponentAttributeSource) Nature() AttributeNature  { return NatureEmbedded }
func (s *ComponentAttributeSource) IsSingular() bool         { return true }
func (s *ComponentAttributeSource) IsNullable() bool         { return true }
func (s *ComponentAttributeSource) Cascades() []CascadeType  { return nil }
func (s *ComponentAttributeSource) FetchTiming() FetchTiming { return FetchEager }

// ClassName returns the embeddable's Go type name
func (s *ComponentAttributeSource) ClassName() string { return s.class.ClassName }

// PathPrefix returns the path of the component's owner
func (s *ComponentAttributeSource) PathPrefix() string { return s.pathPrefix }

// Columns returns the columns of the component's basic attributes, including
// those of nested embeddables, after overrides
func (s *ComponentAttributeSource) Columns() []ColumnSource {
	columns := make([]ColumnSource, 0, len(s.class.SimpleAttributes))
	for _, attr := range s.class.SimpleAttributes {
		columns = append(columns, newSingularAttributeSource(attr, s.Path(), s.overrides).Column())
	}
	for _, nested := range s.class.EmbeddedClasses {
		columns = append(columns, NewComponentAttributeSource(nested, s.Path(), s.overrides).Columns()...)
	}
	return columns
}

// AttributeSources returns the component's own attributes with the same
// ordering and dispatch rules as an entity
func (s *ComponentAttributeSource) AttributeSources() ([]AttributeSource, error) {
	return attributeSources(
		s.class.SimpleAttributes,
		s.class.EmbeddedClasses,
		s.class.AssociationAttributes,
		s.Path(),
		s.overrides,
	)
}

func copyCascades(cascades []CascadeType) []CascadeType {
	if len(cascades) == 0 {
		return nil
	}
	return append([]CascadeType(nil), cascades...)
}

// HasCascade reports whether cascades include ct, directly or through CascadeAll
func HasCascade(cascades []CascadeType, ct CascadeType) bool {
	for _, c := range cascades {
		if c == ct || c == CascadeAll {
			return true
		}
	}
	return false
}

// SplitPath splits a dotted attribute path
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}
