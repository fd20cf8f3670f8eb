package gpameta

import (
	"context"
	"reflect"
)

// =====================================
// Entity Hook Interfaces
// =====================================

// PrePersistHook is called before an entity is first stored
type PrePersistHook interface {
	PrePersist(ctx context.Context) error
}

// PostPersistHook is called after an entity is first stored
type PostPersistHook interface {
	PostPersist(ctx context.Context) error
}

// PreUpdateHook is called before an entity is updated
type PreUpdateHook interface {
	PreUpdate(ctx context.Context) error
}

// PostUpdateHook is called after an entity is updated
type PostUpdateHook interface {
	PostUpdate(ctx context.Context) error
}

// PreRemoveHook is called before an entity is removed
type PreRemoveHook interface {
	PreRemove(ctx context.Context) error
}

// PostRemoveHook is called after an entity is removed
type PostRemoveHook interface {
	PostRemove(ctx context.Context) error
}

// PostLoadHook is called after an entity is loaded
type PostLoadHook interface {
	PostLoad(ctx context.Context) error
}

// =====================================
// Entity Listener Interfaces
// =====================================

// Listeners are separate types receiving the entity as an argument. They are
// declared through MappingOptions.Listeners.

type PrePersistListener interface {
	PrePersist(ctx context.Context, entity any) error
}

type PostPersistListener interface {
	PostPersist(ctx context.Context, entity any) error
}

type PreUpdateListener interface {
	PreUpdate(ctx context.Context, entity any) error
}

type PostUpdateListener interface {
	PostUpdate(ctx context.Context, entity any) error
}

type PreRemoveListener interface {
	PreRemove(ctx context.Context, entity any) error
}

type PostRemoveListener interface {
	PostRemove(ctx context.Context, entity any) error
}

type PostLoadListener interface {
	PostLoad(ctx context.Context, entity any) error
}

type hookBinding struct {
	callback CallbackType
	method   string
	iface    reflect.Type
}

var entityHookBindings = []hookBinding{
	{CallbackPrePersist, "PrePersist", reflect.TypeOf((*PrePersistHook)(nil)).Elem()},
	{CallbackPostPersist, "PostPersist", reflect.TypeOf((*PostPersistHook)(nil)).Elem()},
	{CallbackPreUpdate, "PreUpdate", reflect.TypeOf((*PreUpdateHook)(nil)).Elem()},
	{CallbackPostUpdate, "PostUpdate", reflect.TypeOf((*PostUpdateHook)(nil)).Elem()},
	{CallbackPreRemove, "PreRemove", reflect.TypeOf((*PreRemoveHook)(nil)).Elem()},
	{CallbackPostRemove, "PostRemove", reflect.TypeOf((*PostRemoveHook)(nil)).Elem()},
	{CallbackPostLoad, "PostLoad", reflect.TypeOf((*PostLoadHook)(nil)).Elem()},
}

var listenerHookBindings = []hookBinding{
	{CallbackPrePersist, "PrePersist", reflect.TypeOf((*PrePersistListener)(nil)).Elem()},
	{CallbackPostPersist, "PostPersist", reflect.TypeOf((*PostPersistListener)(nil)).Elem()},
	{CallbackPreUpdate, "PreUpdate", reflect.TypeOf((*PreUpdateListener)(nil)).Elem()},
	{CallbackPostUpdate, "PostUpdate", reflect.TypeOf((*PostUpdateListener)(nil)).Elem()},
	{CallbackPreRemove, "PreRemove", reflect.TypeOf((*PreRemoveListener)(nil)).Elem()},
	{CallbackPostRemove, "PostRemove", reflect.TypeOf((*PostRemoveListener)(nil)).Elem()},
	{CallbackPostLoad, "PostLoad", reflect.TypeOf((*PostLoadListener)(nil)).Elem()},
}

// Callbacks lists the lifecycle callback sources for an entity type: one per
// listener (in declaration order) followed by the entity itself. Types
// without any hook are omitted.
func Callbacks(entityType reflect.Type, listeners []any) []JpaCallbackSource {
	var sources []JpaCallbackSource
	for _, l := range listeners {
		if l == nil {
			continue
		}
		lt := reflect.TypeOf(l)
		if cb := detectHooks(lt, listenerHookBindings); len(cb) > 0 {
			sources = append(sources, JpaCallbackSource{Name: TypeName(lt), Listener: true, Callbacks: cb})
		}
	}
	if cb := detectHooks(entityType, entityHookBindings); len(cb) > 0 {
		sources = append(sources, JpaCallbackSource{Name: TypeName(entityType), Callbacks: cb})
	}
	return sources
}

func detectHooks(t reflect.Type, bindings []hookBinding) map[CallbackType]string {
	t = indirect(t)
	ptr := reflect.PointerTo(t)
	callbacks := make(map[CallbackType]string)
	for _, b := range bindings {
		if t.Implements(b.iface) || ptr.Implements(b.iface) {
			callbacks[b.callback] = b.method
		}
	}
	return callbacks
}

// TypeName returns the package-qualified name of a (possibly pointer) type
func TypeName(t reflect.Type) string {
	t = indirect(t)
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
