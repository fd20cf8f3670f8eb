package gpameta

import "sort"

// =====================================
// Entity Graphs
// =====================================

type graphNode struct {
	attributes []string
	subgraphs  map[string]*Subgraph
}

func (n *graphNode) addAttribute(name string) {
	for _, a := range n.attributes {
		if a == name {
			return
		}
	}
	n.attributes = append(n.attributes, name)
}

func (n *graphNode) subgraph(name string) *Subgraph {
	if n.subgraphs == nil {
		n.subgraphs = make(map[string]*Subgraph)
	}
	sg, ok := n.subgraphs[name]
	if !ok {
		sg = &Subgraph{attribute: name}
		n.subgraphs[name] = sg
	}
	n.addAttribute(name)
	return sg
}

func (n *graphNode) has(name string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.attributes {
		if a == name {
			return true
		}
	}
	return false
}

func (n *graphNode) child(name string) *graphNode {
	if n == nil || n.subgraphs == nil {
		return nil
	}
	if sg, ok := n.subgraphs[name]; ok {
		return &sg.graphNode
	}
	return nil
}

// EntityGraph declares which attributes of an entity should be loaded.
//
// Example:
//
//	graph := gpameta.NewEntityGraph(purchaseInvoice)
//	graph.AddSubgraph("accountPayable").AddAttributeNodes("payments")
type EntityGraph struct {
	entity string
	graphNode
}

// NewEntityGraph creates an empty graph rooted at the named entity
func NewEntityGraph(entity string) *EntityGraph {
	return &EntityGraph{entity: entity}
}

// Entity returns the root entity name
func (g *EntityGraph) Entity() string { return g.entity }

// GraphFromPaths builds a graph from dotted attribute paths. Every
// intermediate segment becomes a subgraph:
//
//	GraphFromPaths(entity, "accountPayable.payments", "supplier")
func GraphFromPaths(entity string, paths ...string) *EntityGraph {
	g := NewEntityGraph(entity)
	for _, path := range paths {
		segments := SplitPath(path)
		if len(segments) == 0 {
			continue
		}
		node := &g.graphNode
		for _, seg := range segments[:len(segments)-1] {
			node = &node.subgraph(seg).graphNode
		}
		node.addAttribute(segments[len(segments)-1])
	}
	return g
}

// AddAttributeNodes requests the named attributes.
// Returns the same graph for method chaining.
func (g *EntityGraph) AddAttributeNodes(names ...string) *EntityGraph {
	for _, name := range names {
		g.addAttribute(name)
	}
	return g
}

// AddSubgraph requests the named attribute and returns the graph applied to its value
func (g *EntityGraph) AddSubgraph(name string) *Subgraph {
	return g.subgraph(name)
}

// AttributeNodes returns the requested attribute names in insertion order
func (g *EntityGraph) AttributeNodes() []string {
	return append([]string(nil), g.attributes...)
}

// Subgraph declares which attributes of an associated or embedded value should be loaded
type Subgraph struct {
	attribute string
	graphNode
}

// Attribute returns the attribute the subgraph applies to
func (s *Subgraph) Attribute() string { return s.attribute }

// AddAttributeNodes requests the named attributes.
// Returns the same subgraph for method chaining.
func (s *Subgraph) AddAttributeNodes(names ...string) *Subgraph {
	for _, name := range names {
		s.addAttribute(name)
	}
	return s
}

// AddSubgraph requests the named attribute and returns the graph applied to its value
func (s *Subgraph) AddSubgraph(name string) *Subgraph {
	return s.subgraph(name)
}

// =====================================
// Fetch Plans
// =====================================

// FetchDecision records how one attribute path is treated by a load
type FetchDecision struct {
	Path        string
	Nature      AttributeNature
	Requested   bool
	Initialized bool
}

// FetchPlan is the outcome of applying an entity graph to an entity's metadata
type FetchPlan struct {
	entity    string
	semantic  GraphSemantic
	decisions map[string]FetchDecision
}

// Entity returns the root entity name
func (p *FetchPlan) Entity() string { return p.entity }

// Semantic returns how the graph was applied
func (p *FetchPlan) Semantic() GraphSemantic { return p.semantic }

// Decision returns the decision for an attribute path
func (p *FetchPlan) Decision(path string) (FetchDecision, bool) {
	d, ok := p.decisions[path]
	return d, ok
}

// IsInitialized reports whether the attribute at path is loaded with its owner
func (p *FetchPlan) IsInitialized(path string) bool {
	return p.decisions[path].Initialized
}

// Requested reports whether the graph named the attribute at path
func (p *FetchPlan) Requested(path string) bool {
	return p.decisions[path].Requested
}

// Paths returns every planned attribute path, sorted
func (p *FetchPlan) Paths() []string {
	paths := make([]string, 0, len(p.decisions))
	for path := range p.decisions {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// FetchPlan applies graph to the metadata of its root entity, including
// attributes inherited from superclasses. Every attribute named by the graph
// must exist.
func (set *SourceSet) FetchPlan(graph *EntityGraph, semantic GraphSemantic) (*FetchPlan, error) {
	if graph == nil {
		return nil, NewError(ErrorTypeInvalidArgument, "entity graph is required")
	}
	if semantic == "" {
		semantic = GraphFetch
	}
	root, ok := set.Lookup(graph.entity)
	if !ok {
		return nil, NewErrorf(ErrorTypeNotFound, "entity %s is not mapped", graph.entity)
	}

	sources, err := set.inheritedAttributeSources(root)
	if err != nil {
		return nil, err
	}

	plan := &FetchPlan{
		entity:    graph.entity,
		semantic:  semantic,
		decisions: make(map[string]FetchDecision),
	}
	planner := &fetchPlanner{set: set, plan: plan}
	if err := planner.walk(root.EntityName(), sources, &graph.graphNode, "", true); err != nil {
		return nil, err
	}
	return plan, nil
}

func (set *SourceSet) inheritedAttributeSources(src *EntitySource) ([]AttributeSource, error) {
	lineage := set.Lineage(src)
	var all []AttributeSource
	for i := len(lineage) - 1; i >= 0; i-- {
		sources, err := lineage[i].AttributeSources()
		if err != nil {
			return nil, err
		}
		all = append(all, sources...)
	}
	return all, nil
}

type fetchPlanner struct {
	set  *SourceSet
	plan *FetchPlan
}

func (p *fetchPlanner) walk(owner string, sources []AttributeSource, node *graphNode, prefix string, ownerLoaded bool) error {
	if node != nil {
		known := make(map[string]bool, len(sources))
		for _, s := range sources {
			known[s.Name()] = true
		}
		for _, name := range node.attributes {
			if !known[name] {
				return NewErrorf(ErrorTypeInvalidArgument, "attribute %s is not declared on %s", name, owner)
			}
		}
	}

	for _, source := range sources {
		name := source.Name()
		path := JoinPath(prefix, name)
		requested := node.has(name)
		child := node.child(name)

		decision := FetchDecision{Path: path, Nature: source.Nature(), Requested: requested}

		switch s := source.(type) {
		case *SingularAttributeSource:
			decision.Initialized = ownerLoaded && (s.IsID() || requested || s.FetchTiming() == FetchEager)
			p.plan.decisions[path] = decision

		case *ComponentAttributeSource:
			decision.Initialized = ownerLoaded
			p.plan.decisions[path] = decision
			nested, err := s.AttributeSources()
			if err != nil {
				return err
			}
			if err := p.walk(s.ClassName(), nested, child, path, ownerLoaded); err != nil {
				return err
			}

		case *ToOneAttributeSource:
			decision.Initialized = ownerLoaded && p.loads(requested, s.FetchTiming())
			p.plan.decisions[path] = decision
			if child != nil {
				if err := p.walkEntity(s.TargetEntity(), child, path, decision.Initialized); err != nil {
					return err
				}
			}

		case *PluralAttributeSource:
			decision.Initialized = ownerLoaded && p.loads(requested, s.FetchTiming())
			p.plan.decisions[path] = decision
			if child == nil {
				continue
			}
			elements, err := s.ElementSources()
			if err != nil {
				return err
			}
			if elements != nil {
				if err := p.walk(s.ElementType(), elements, child, path, decision.Initialized); err != nil {
					return err
				}
			} else if s.TargetEntity() != "" {
				if err := p.walkEntity(s.TargetEntity(), child, path, decision.Initialized); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (p *fetchPlanner) walkEntity(entity string, node *graphNode, prefix string, loaded bool) error {
	target, ok := p.set.Lookup(entity)
	if !ok {
		return NewErrorf(ErrorTypeNotFound, "entity %s referenced by %s is not mapped", entity, prefix)
	}
	sources, err := p.set.inheritedAttributeSources(target)
	if err != nil {
		return err
	}
	return p.walk(entity, sources, node, prefix, loaded)
}

func (p *fetchPlanner) loads(requested bool, timing FetchTiming) bool {
	if requested {
		return true
	}
	if p.plan.semantic == GraphLoad {
		return timing == FetchEager
	}
	return false
}
