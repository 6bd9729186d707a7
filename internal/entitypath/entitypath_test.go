package entitypath

import "testing"

func TestParseDropsEmptySegments(t *testing.T) {
	p := Parse("/world//robot/camera/")
	want := []string{"world", "robot", "camera"}
	got := p.Parts()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestEqualIgnoresConstructionPath(t *testing.T) {
	a := Parse("world/robot")
	b := New("world", "robot")
	if !a.Equal(b) {
		t.Fatal("expected Parse and New to produce equal paths for the same parts")
	}
	if a.Hash() != b.Hash() {
		t.Fatal("expected equal paths to share a hash")
	}
}

func TestNotEqualDifferentParts(t *testing.T) {
	a := Parse("world/robot")
	b := Parse("world/sensor")
	if a.Equal(b) {
		t.Fatal("expected different paths to compare unequal")
	}
}

func TestIsRoot(t *testing.T) {
	if !Parse("/").IsRoot() {
		t.Fatal("expected the empty path to be root")
	}
	if Parse("/a").IsRoot() {
		t.Fatal("a non-empty path is not root")
	}
}

func TestChildAppendsPart(t *testing.T) {
	base := Parse("world/robot")
	child := base.Child("camera")
	if child.String() != "/world/robot/camera" {
		t.Fatalf("expected /world/robot/camera, got %s", child.String())
	}
	if base.String() != "/world/robot" {
		t.Fatal("Child must not mutate the receiver")
	}
}

func TestStringRendersCanonicalForm(t *testing.T) {
	if got := New("a", "b", "c").String(); got != "/a/b/c" {
		t.Fatalf("expected /a/b/c, got %s", got)
	}
}
