package component

import "testing"

func TestIndexKeyIgnoresQualifiers(t *testing.T) {
	a := NewDescriptor("Position3D").WithArchetype("Points3D")
	b := NewDescriptor("Position3D").WithArchetype("Boxes3D")
	if a.IndexKey() != b.IndexKey() {
		t.Fatal("two descriptors sharing a component name must share an index key")
	}
	if !a.Equal(b) {
		t.Fatal("Equal compares component identity only, ignoring archetype")
	}
}

func TestWithArchetypeAndComponentTypeDoNotMutateReceiver(t *testing.T) {
	base := NewDescriptor("Color")
	qualified := base.WithArchetype("Points3D").WithComponentType("rerun.datatypes.Color")
	if base.Archetype != nil || base.ComponentType != nil {
		t.Fatal("WithArchetype/WithComponentType must return a copy, not mutate base")
	}
	if qualified.Archetype == nil || *qualified.Archetype != "Points3D" {
		t.Fatal("expected archetype to be set on the qualified copy")
	}
	if qualified.ComponentType == nil || *qualified.ComponentType != "rerun.datatypes.Color" {
		t.Fatal("expected component type to be set on the qualified copy")
	}
}

func TestStringOmitsAbsentQualifiers(t *testing.T) {
	if got := NewDescriptor("Color").String(); got != "Color" {
		t.Fatalf("expected bare component name, got %q", got)
	}
	full := NewDescriptor("Color").WithArchetype("Points3D").WithComponentType("rerun.datatypes.Color")
	if got := full.String(); got != "Points3D:Color#rerun.datatypes.Color" {
		t.Fatalf("unexpected rendering: %q", got)
	}
}
