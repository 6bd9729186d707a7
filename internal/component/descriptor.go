// Package component defines the identity of a chunk column: the
// ComponentDescriptor triple of archetype, component, and component-type
// names.
package component

// Name is an interned-style string identifier. It is kept as a distinct
// type (rather than bare string) so descriptor fields can't be swapped by
// accident at call sites.
type Name string

// Descriptor identifies a chunk column. Component alone is the index/column
// identity used by the store; Archetype and ComponentType are metadata
// carried alongside it. Two descriptors with the same Component but
// different Archetype are indexed together but retain their own metadata.
type Descriptor struct {
	Archetype     *Name
	Component     Name
	ComponentType *Name
}

// NewDescriptor builds a Descriptor identified solely by its component name.
func NewDescriptor(comp Name) Descriptor {
	return Descriptor{Component: comp}
}

// WithArchetype returns a copy of d qualified with the given archetype name.
func (d Descriptor) WithArchetype(a Name) Descriptor {
	d.Archetype = &a
	return d
}

// WithComponentType returns a copy of d qualified with the given physical
// component-type name.
func (d Descriptor) WithComponentType(t Name) Descriptor {
	d.ComponentType = &t
	return d
}

// IndexKey is the key used by store indices: the component name alone.
func (d Descriptor) IndexKey() Name { return d.Component }

// String renders a debug form: "archetype:component#type", omitting absent
// qualifiers.
func (d Descriptor) String() string {
	s := string(d.Component)
	if d.Archetype != nil {
		s = string(*d.Archetype) + ":" + s
	}
	if d.ComponentType != nil {
		s = s + "#" + string(*d.ComponentType)
	}
	return s
}

// Equal reports whether d and o denote the same column identity, ignoring
// metadata qualifiers — i.e. whether they'd be indexed under the same key.
func (d Descriptor) Equal(o Descriptor) bool { return d.Component == o.Component }
