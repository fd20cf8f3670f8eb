package gpameta

// =====================================
// Core Types and Constants
// =====================================

// AttributeNature classifies an attribute of an entity or embeddable.
// The set is closed: every scanned attribute resolves to exactly one nature.
type AttributeNature string

const (
	NatureBasic                       AttributeNature = "basic"
	NatureEmbedded                    AttributeNature = "embedded"
	NatureOneToOne                    AttributeNature = "one_to_one"
	NatureManyToOne                   AttributeNature = "many_to_one"
	NatureOneToMany                   AttributeNature = "one_to_many"
	NatureManyToMany                  AttributeNature = "many_to_many"
	NatureElementCollectionBasic      AttributeNature = "element_collection_basic"
	NatureElementCollectionEmbeddable AttributeNature = "element_collection_embeddable"
)

// IsAssociation reports whether the nature describes an association or collection
func (n AttributeNature) IsAssociation() bool {
	switch n {
	case NatureOneToOne, NatureManyToOne, NatureOneToMany, NatureManyToMany,
		NatureElementCollectionBasic, NatureElementCollectionEmbeddable:
		return true
	}
	return false
}

// IsPlural reports whether the nature maps to a collection
func (n AttributeNature) IsPlural() bool {
	switch n {
	case NatureOneToMany, NatureManyToMany, NatureElementCollectionBasic, NatureElementCollectionEmbeddable:
		return true
	}
	return false
}

// FetchTiming represents when an attribute is loaded
type FetchTiming string

const (
	FetchDefault FetchTiming = ""
	FetchEager   FetchTiming = "eager"
	FetchLazy    FetchTiming = "lazy"
)

// CascadeType represents an operation cascaded from owner to association
type CascadeType string

const (
	CascadeAll     CascadeType = "all"
	CascadePersist CascadeType = "persist"
	CascadeMerge   CascadeType = "merge"
	CascadeRemove  CascadeType = "remove"
	CascadeRefresh CascadeType = "refresh"
	CascadeDetach  CascadeType = "detach"
)

// InheritanceType represents the mapping strategy of an entity hierarchy
type InheritanceType string

const (
	InheritanceNone          InheritanceType = ""
	InheritanceSingleTable   InheritanceType = "single_table"
	InheritanceJoined        InheritanceType = "joined"
	InheritanceTablePerClass InheritanceType = "table_per_class"
)

// CollectionKind represents the semantics of a plural attribute
type CollectionKind string

const (
	CollectionBag  CollectionKind = "bag"
	CollectionList CollectionKind = "list"
	CollectionSet  CollectionKind = "set"
	CollectionMap  CollectionKind = "map"
)

// CallbackType represents a JPA entity lifecycle event
type CallbackType string

const (
	CallbackPrePersist  CallbackType = "pre_persist"
	CallbackPostPersist CallbackType = "post_persist"
	CallbackPreUpdate   CallbackType = "pre_update"
	CallbackPostUpdate  CallbackType = "post_update"
	CallbackPreRemove   CallbackType = "pre_remove"
	CallbackPostRemove  CallbackType = "post_remove"
	CallbackPostLoad    CallbackType = "post_load"
)

// CallbackTypes lists every callback type in lifecycle order
var CallbackTypes = []CallbackType{
	CallbackPrePersist,
	CallbackPostPersist,
	CallbackPreUpdate,
	CallbackPostUpdate,
	CallbackPreRemove,
	CallbackPostRemove,
	CallbackPostLoad,
}

// ResultCheckStyle represents how the outcome of custom SQL is verified
type ResultCheckStyle string

const (
	ResultCheckNone  ResultCheckStyle = "none"
	ResultCheckCount ResultCheckStyle = "count"
	ResultCheckParam ResultCheckStyle = "param"
)

// ConstraintKind represents the kind of a table constraint
type ConstraintKind string

const (
	ConstraintUnique ConstraintKind = "unique"
	ConstraintIndex  ConstraintKind = "index"
)

// GraphSemantic represents how an entity graph is applied to a load
type GraphSemantic string

const (
	// GraphFetch loads the graph's attributes and treats everything else as lazy.
	GraphFetch GraphSemantic = "fetch"
	// GraphLoad loads the graph's attributes and keeps mapped defaults elsewhere.
	GraphLoad GraphSemantic = "load"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeDuplicate         ErrorType = "duplicate"
	ErrorTypeConnection        ErrorType = "connection"
	ErrorTypeUnsupported       ErrorType = "unsupported"
	ErrorTypeNotYetImplemented ErrorType = "not_yet_implemented"
	ErrorTypeInvalidArgument   ErrorType = "invalid_argument"
	ErrorTypeMapping           ErrorType = "mapping"
	ErrorTypeConfig            ErrorType = "config"
	ErrorTypeInternal          ErrorType = "internal"
)
