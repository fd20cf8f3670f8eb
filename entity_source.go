package gpameta

import (
	"fmt"
	"strings"
)

// =====================================
// Entity Source
// =====================================

// EntitySource is the binder-facing view of one scanned entity. Every
// accessor is a pure projection of the underlying EntityClass; the only
// mutable state is the subclass membership kept in the owning SourceSet.
type EntitySource struct {
	class      *EntityClass
	id         SourceID
	set        *SourceSet
	subclasses []SourceID
}

// EntityClass returns the scanned class this source wraps
func (s *EntitySource) EntityClass() *EntityClass { return s.class }

// ID returns the source's index in its SourceSet
func (s *EntitySource) ID() SourceID { return s.id }

// Origin returns where the entity was declared
func (s *EntitySource) Origin() Origin { return s.class.LocalBindingContext.Origin }

// LocalBindingContext returns the scan context of the entity
func (s *EntitySource) LocalBindingContext() LocalBindingContext {
	return s.class.LocalBindingContext
}

// EntityName returns the entity name used by the binder
func (s *EntitySource) EntityName() string { return s.class.Name }

// ClassName returns the Go type name of the entity
func (s *EntitySource) ClassName() string { return s.class.Name }

// JpaEntityName returns the explicitly declared entity name, if any
func (s *EntitySource) JpaEntityName() Optional[string] { return s.class.ExplicitEntityName }

// Path returns the root attribute path of the entity, its entity name
func (s *EntitySource) Path() string { return s.class.Name }

// PrimaryTable returns the table holding the entity's own state
func (s *EntitySource) PrimaryTable() TableSource { return s.class.PrimaryTable }

// SecondaryTables returns the additional tables, one entry per table
func (s *EntitySource) SecondaryTables() []SecondaryTableSource {
	return append([]SecondaryTableSource(nil), s.class.SecondaryTableSources...)
}

// Constraints returns the declared unique constraints and indexes
func (s *EntitySource) Constraints() []ConstraintSource {
	return append([]ConstraintSource(nil), s.class.ConstraintSources...)
}

// IsAbstract is always false; abstractness is resolved by the scanner
func (s *EntitySource) IsAbstract() bool { return false }

// IsLazy reports whether the entity is loaded through a proxy by default
func (s *EntitySource) IsLazy() bool { return s.class.Lazy }

// BatchSize returns the batch fetch size, -1 when unset
func (s *EntitySource) BatchSize() int { return s.class.BatchSize }

// IsDynamicInsert reports whether inserts include only non-null columns
func (s *EntitySource) IsDynamicInsert() bool { return s.class.DynamicInsert }

// IsDynamicUpdate reports whether updates include only changed columns
func (s *EntitySource) IsDynamicUpdate() bool { return s.class.DynamicUpdate }

// IsSelectBeforeUpdate reports whether the row is read before an update
func (s *EntitySource) IsSelectBeforeUpdate() bool { return s.class.SelectBeforeUpdate }

// Proxy returns the proxy interface name, if any
func (s *EntitySource) Proxy() Optional[string] { return s.class.Proxy }

// CustomTuplizerClassName returns the custom tuplizer type name, if any
func (s *EntitySource) CustomTuplizerClassName() Optional[string] { return s.class.CustomTuplizer }

// CustomPersisterClassName returns the custom persister type name, if any
func (s *EntitySource) CustomPersisterClassName() Optional[string] { return s.class.CustomPersister }

// CustomLoaderName returns the named query used to load the entity, if any
func (s *EntitySource) CustomLoaderName() Optional[string] { return s.class.CustomLoaderQueryName }

// CustomSQLInsert returns the custom insert statement, if any
func (s *EntitySource) CustomSQLInsert() Optional[CustomSQL] { return s.class.CustomInsert }

// CustomSQLUpdate returns the custom update statement, if any
func (s *EntitySource) CustomSQLUpdate() Optional[CustomSQL] { return s.class.CustomUpdate }

// CustomSQLDelete returns the custom delete statement, if any
func (s *EntitySource) CustomSQLDelete() Optional[CustomSQL] { return s.class.CustomDelete }

// SynchronizedTableNames returns the tables whose changes invalidate this entity
func (s *EntitySource) SynchronizedTableNames() []string {
	return append([]string(nil), s.class.SynchronizedTableNames...)
}

// JpaCallbackClasses returns the lifecycle callback sources in invocation order
func (s *EntitySource) JpaCallbackClasses() []JpaCallbackSource {
	return append([]JpaCallbackSource(nil), s.class.JpaCallbacks...)
}

// DiscriminatorMatchValue returns the discriminator value selecting this entity
func (s *EntitySource) DiscriminatorMatchValue() Optional[string] {
	return s.class.DiscriminatorMatchValue
}

// MetaAttributes is always empty for tag-scanned entities
func (s *EntitySource) MetaAttributes() map[string]string { return nil }

// AttributeSources lists the entity's attributes: basic attributes first,
// then embedded components, then associations, each group in scan order.
// An association whose nature has no translation aborts the enumeration
// with an ErrorTypeNotYetImplemented error.
func (s *EntitySource) AttributeSources() ([]AttributeSource, error) {
	sources, err := attributeSources(
		s.class.SimpleAttributes,
		s.class.EmbeddedClasses,
		s.class.AssociationAttributes,
		"",
		s.class.AttributeOverrides,
	)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", s.class.Name, err)
	}
	return sources, nil
}

// Add registers a subclass source. Adding the same source twice has no
// effect. The subclass must name this entity as its superclass.
func (s *EntitySource) Add(sub *EntitySource) error {
	if sub == nil || sub.set != s.set {
		return NewError(ErrorTypeInvalidArgument, "subclass source does not belong to this source set")
	}
	if super, ok := sub.class.Superclass.Get(); !ok || super != s.class.Name {
		return NewErrorf(ErrorTypeInvalidArgument, "%s is not a subclass of %s", sub.class.Name, s.class.Name)
	}
	for _, id := range s.subclasses {
		if id == sub.id {
			return nil
		}
	}
	s.subclasses = append(s.subclasses, sub.id)
	return nil
}

// SubclassSources returns the directly registered subclasses. The result
// reflects every Add made so far; read it once the scan pass is complete.
func (s *EntitySource) SubclassSources() []*EntitySource {
	subs := make([]*EntitySource, 0, len(s.subclasses))
	for _, id := range s.subclasses {
		subs = append(subs, s.set.Get(id))
	}
	return subs
}

// IsRoot reports whether the entity declares no superclass
func (s *EntitySource) IsRoot() bool { return !s.class.Superclass.IsPresent() }

// Superclass returns the superclass source once it has been translated
func (s *EntitySource) Superclass() (*EntitySource, bool) {
	name, ok := s.class.Superclass.Get()
	if !ok {
		return nil, false
	}
	return s.set.Lookup(name)
}

// String renders the entity and its registered subclasses
func (s *EntitySource) String() string {
	names := make([]string, 0, len(s.subclasses))
	for _, sub := range s.SubclassSources() {
		names = append(names, sub.ClassName())
	}
	return fmt.Sprintf("EntitySource{entity=%s, subclasses=[%s]}", s.class.Name, strings.Join(names, ","))
}
