package gpameta

// =====================================
// Source Set (hierarchy arena)
// =====================================

// SourceID indexes an EntitySource inside its SourceSet
type SourceID int

// SourceSet owns every EntitySource produced by one scan pass. Subclass
// membership is stored as index lists on each source, so hierarchies are
// assembled without reference cycles and in any scan order.
//
// A SourceSet is not safe for concurrent use; callers scanning in parallel
// must serialize Translate calls.
type SourceSet struct {
	sources []*EntitySource
	byName  map[string]SourceID
	pending map[string][]SourceID // superclass name -> subclasses waiting for it
	frozen  bool
}

// NewSourceSet creates an empty source set
func NewSourceSet() *SourceSet {
	return &SourceSet{
		byName:  make(map[string]SourceID),
		pending: make(map[string][]SourceID),
	}
}

// Translate wraps a scanned class into an EntitySource and links it into its
// hierarchy. A subclass seen before its superclass is linked when the
// superclass arrives.
func (set *SourceSet) Translate(class *EntityClass) (*EntitySource, error) {
	if class == nil || class.Name == "" {
		return nil, NewError(ErrorTypeInvalidArgument, "entity class must have a name")
	}
	if set.frozen {
		return nil, NewErrorf(ErrorTypeValidation, "source set is frozen, cannot add %s", class.Name)
	}
	if super, ok := class.Superclass.Get(); ok && super == class.Name {
		return nil, NewErrorf(ErrorTypeMapping, "entity %s cannot extend itself", class.Name)
	}
	if _, exists := set.byName[class.Name]; exists {
		return nil, NewErrorf(ErrorTypeDuplicate, "entity %s already translated", class.Name)
	}

	src := &EntitySource{class: class, id: SourceID(len(set.sources)), set: set}
	set.sources = append(set.sources, src)
	set.byName[class.Name] = src.id

	if super, ok := class.Superclass.Get(); ok {
		if parent, found := set.Lookup(super); found {
			if err := parent.Add(src); err != nil {
				return nil, err
			}
		} else {
			set.pending[super] = append(set.pending[super], src.id)
		}
	}

	for _, id := range set.pending[class.Name] {
		if err := src.Add(set.Get(id)); err != nil {
			return nil, err
		}
	}
	delete(set.pending, class.Name)

	return src, nil
}

// Freeze closes the scan pass. It fails when a subclass names a superclass
// that was never translated.
func (set *SourceSet) Freeze() error {
	for super, ids := range set.pending {
		if len(ids) > 0 {
			return NewErrorf(ErrorTypeMapping, "%s extends unknown entity %s", set.Get(ids[0]).EntityName(), super)
		}
	}
	set.frozen = true
	return nil
}

// IsFrozen reports whether Freeze has completed
func (set *SourceSet) IsFrozen() bool { return set.frozen }

// Len returns the number of sources
func (set *SourceSet) Len() int { return len(set.sources) }

// Get returns the source with the given id
func (set *SourceSet) Get(id SourceID) *EntitySource {
	return set.sources[id]
}

// Lookup finds a source by entity name
func (set *SourceSet) Lookup(name string) (*EntitySource, bool) {
	id, ok := set.byName[name]
	if !ok {
		return nil, false
	}
	return set.sources[id], true
}

// Sources returns all sources in translation order
func (set *SourceSet) Sources() []*EntitySource {
	return append([]*EntitySource(nil), set.sources...)
}

// Roots returns the sources that declare no superclass
func (set *SourceSet) Roots() []*EntitySource {
	var roots []*EntitySource
	for _, src := range set.sources {
		if src.IsRoot() {
			roots = append(roots, src)
		}
	}
	return roots
}

// Lineage returns src followed by its superclasses up to the root.
// The walk stops at the first superclass that is missing or already visited.
func (set *SourceSet) Lineage(src *EntitySource) []*EntitySource {
	lineage := []*EntitySource{src}
	seen := map[SourceID]bool{src.id: true}
	for current := src; ; {
		parent, ok := current.Superclass()
		if !ok || seen[parent.id] {
			return lineage
		}
		seen[parent.id] = true
		lineage = append(lineage, parent)
		current = parent
	}
}
