package domain

import (
	"net/url"
)

// LessonNode is one lesson in the lesson forest. A node may carry
// sub-lessons, directly attached exercises, or a direct exercise code.
type LessonNode struct {
	ID          int           `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	Code        string        `json:"code,omitempty" yaml:"code,omitempty"`
	Children    []LessonNode  `json:"children,omitempty" yaml:"children,omitempty"`
	Exercises   []ExerciseRef `json:"exercises,omitempty" yaml:"exercises,omitempty"`
}

// ExerciseRef points at an exercise the remote service can generate.
type ExerciseRef struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Code string `json:"code" yaml:"code"`
}

// NodeKind classifies how a lesson node reacts to a primary click
type NodeKind int

const (
	// NodeInert nodes have no nested content and no code
	NodeInert NodeKind = iota
	// NodeExpandable nodes toggle open/closed on click
	NodeExpandable
	// NodeLeafActionable nodes navigate straight to their exercise
	NodeLeafActionable
)

func (k NodeKind) String() string {
	switch k {
	case NodeExpandable:
		return "expandable"
	case NodeLeafActionable:
		return "leaf"
	default:
		return "inert"
	}
}

// HasNestedContent reports whether the node has sub-lessons or exercises
func (n *LessonNode) HasNestedContent() bool {
	return len(n.Children) > 0 || len(n.Exercises) > 0
}

// Kind returns the click behavior of the node
func (n *LessonNode) Kind() NodeKind {
	switch {
	case n.HasNestedContent():
		return NodeExpandable
	case n.Code != "":
		return NodeLeafActionable
	default:
		return NodeInert
	}
}

// ExerciseRoute returns the client route of the exercise view for a code
func ExerciseRoute(code string) string {
	return "/exercise/" + url.PathEscape(code)
}

// Client routes
const (
	RouteHome      = "/"
	RouteLogin     = "/login"
	RouteSignup    = "/signup"
	RouteDashboard = "/dashboard"
	RouteLessons   = "/lessons"
)
