package tree

import (
	"errors"
	"reflect"
	"testing"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

func TestPath(t *testing.T) {
	p := Root(1).Child(0).Child(3)
	if p != "1.0.3" {
		t.Errorf("path = %q; want 1.0.3", p)
	}
	if p.Depth() != 2 {
		t.Errorf("Depth() = %d; want 2", p.Depth())
	}

	idx, err := p.Indexes()
	if err != nil {
		t.Fatalf("Indexes() error = %v", err)
	}
	if !reflect.DeepEqual(idx, []int{1, 0, 3}) {
		t.Errorf("Indexes() = %v; want [1 0 3]", idx)
	}

	parent, ok := p.Parent()
	if !ok || parent != "1.0" {
		t.Errorf("Parent() = %q, %v; want 1.0, true", parent, ok)
	}
	if _, ok := Root(4).Parent(); ok {
		t.Error("Parent() of a top-level path reported ok")
	}
}

func TestResolve(t *testing.T) {
	forest := testForest()

	node, err := Resolve(forest, "0.1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if node.Name != "Quick quiz" {
		t.Errorf("Resolve(0.1) = %q; want Quick quiz", node.Name)
	}

	if _, err := Resolve(forest, "2.0"); !errors.Is(err, domain.ErrNodeNotFound) {
		t.Errorf("Resolve(2.0) error = %v; want ErrNodeNotFound", err)
	}
}
