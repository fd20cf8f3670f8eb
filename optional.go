package gpameta

// Optional holds a value that may be absent. The zero value is empty.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some returns an Optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// None returns an empty Optional
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// OptionalString treats the empty string as absent
func OptionalString(s string) Optional[string] {
	if s == "" {
		return None[string]()
	}
	return Some(s)
}

// Get returns the value and whether it is present
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// IsPresent reports whether a value is held
func (o Optional[T]) IsPresent() bool {
	return o.ok
}

// OrElse returns the held value or def when empty
func (o Optional[T]) OrElse(def T) T {
	if o.ok {
		return o.value
	}
	return def
}
