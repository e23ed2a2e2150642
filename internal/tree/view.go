package tree

import (
	"fmt"
	"strings"
	"sync"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

// Navigator receives navigation requests emitted by leaf clicks
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(route string)

// Navigate calls f(route)
func (f NavigatorFunc) Navigate(route string) { f(route) }

// ActionKind describes what a click did
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionToggle
	ActionNavigate
)

func (k ActionKind) String() string {
	switch k {
	case ActionToggle:
		return "toggle"
	case ActionNavigate:
		return "navigate"
	default:
		return "none"
	}
}

// Action is the outcome of a click
type Action struct {
	Kind  ActionKind
	Route string
	Open  bool
}

// View is one mounted lesson outline. It owns the open/closed flag of every
// node it has rendered; the flags start closed and die with the view.
type View struct {
	mu     sync.Mutex
	forest []domain.LessonNode
	open   map[Path]bool
	nav    Navigator
	closed bool
}

// NewView creates a view over the forest. nav may be nil when the caller
// acts on the returned Action instead.
func NewView(forest []domain.LessonNode, nav Navigator) *View {
	return &View{
		forest: forest,
		open:   make(map[Path]bool),
		nav:    nav,
	}
}

// Click applies the primary click on the node at p: expandable nodes
// toggle, leaf-actionable nodes navigate, inert nodes do nothing.
func (v *View) Click(p Path) (Action, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	node, err := v.resolve(p)
	if err != nil {
		return Action{}, err
	}
	if !v.shown(p) {
		return Action{Kind: ActionNone}, fmt.Errorf("%w: %s", domain.ErrNodeClosed, p)
	}

	switch node.Kind() {
	case domain.NodeExpandable:
		return v.flip(p), nil
	case domain.NodeLeafActionable:
		return v.navigate(domain.ExerciseRoute(node.Code)), nil
	default:
		return Action{Kind: ActionNone}, nil
	}
}

// Toggle flips the open flag of an expandable node without navigating
func (v *View) Toggle(p Path) (Action, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	node, err := v.resolve(p)
	if err != nil {
		return Action{}, err
	}
	if !v.shown(p) {
		return Action{Kind: ActionNone}, fmt.Errorf("%w: %s", domain.ErrNodeClosed, p)
	}
	if node.Kind() != domain.NodeExpandable {
		return Action{Kind: ActionNone}, fmt.Errorf("%w: %s", domain.ErrNotExpandable, p)
	}

	return v.flip(p), nil
}

// flip toggles the flag at p. Closing a node drops the flags of everything
// beneath it, so its subtree comes back collapsed when reopened.
func (v *View) flip(p Path) Action {
	if v.open[p] {
		delete(v.open, p)
		prefix := p + "."
		for q := range v.open {
			if strings.HasPrefix(string(q), string(prefix)) {
				delete(v.open, q)
			}
		}
		return Action{Kind: ActionToggle, Open: false}
	}
	v.open[p] = true
	return Action{Kind: ActionToggle, Open: true}
}

// ClickExercise navigates to the index-th exercise of the node at p. The
// node must be open, since closed nodes do not show their exercises.
func (v *View) ClickExercise(p Path, index int) (Action, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	node, err := v.resolve(p)
	if err != nil {
		return Action{}, err
	}
	if !v.visible(p) {
		return Action{Kind: ActionNone}, fmt.Errorf("%w: %s", domain.ErrNodeClosed, p)
	}
	if index < 0 || index >= len(node.Exercises) {
		return Action{Kind: ActionNone}, fmt.Errorf("%w: %s/%d", domain.ErrExerciseNotFound, p, index)
	}

	return v.navigate(domain.ExerciseRoute(node.Exercises[index].Code)), nil
}

// IsOpen reports the open flag of the node at p
func (v *View) IsOpen(p Path) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.open[p]
}

// Close discards all open flags. Further operations fail with ErrNotMounted.
func (v *View) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.closed = true
	v.open = make(map[Path]bool)
	return nil
}

func (v *View) navigate(route string) Action {
	if v.nav != nil {
		v.nav.Navigate(route)
	}
	return Action{Kind: ActionNavigate, Route: route}
}

func (v *View) resolve(p Path) (*domain.LessonNode, error) {
	if v.closed {
		return nil, domain.ErrNotMounted
	}
	return Resolve(v.forest, p)
}

// shown reports whether the row for p is rendered, i.e. every ancestor is
// open
func (v *View) shown(p Path) bool {
	parent, ok := p.Parent()
	if !ok {
		return true
	}
	return v.visible(parent)
}

// visible reports whether the node at p and every ancestor are open
func (v *View) visible(p Path) bool {
	idx, err := p.Indexes()
	if err != nil {
		return false
	}
	cur := Root(idx[0])
	if !v.open[cur] {
		return false
	}
	for _, i := range idx[1:] {
		cur = cur.Child(i)
		if !v.open[cur] {
			return false
		}
	}
	return true
}
