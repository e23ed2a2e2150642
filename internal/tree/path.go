package tree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

// Path addresses a node by its child indexes from the forest root, joined
// with dots: "1" is the second top-level lesson, "1.0" its first child.
type Path string

// Root returns the path of the i-th top-level lesson
func Root(i int) Path {
	return Path(strconv.Itoa(i))
}

// Child returns the path of the i-th child of p
func (p Path) Child(i int) Path {
	return p + "." + Path(strconv.Itoa(i))
}

// Parent returns the path of the enclosing node; ok is false for
// top-level lessons
func (p Path) Parent() (parent Path, ok bool) {
	i := strings.LastIndexByte(string(p), '.')
	if i < 0 {
		return "", false
	}
	return p[:i], true
}

// Depth returns the nesting depth, 0 for top-level lessons
func (p Path) Depth() int {
	return strings.Count(string(p), ".")
}

// Indexes parses the path into its child indexes
func (p Path) Indexes() ([]int, error) {
	if p == "" {
		return nil, fmt.Errorf("%w: empty path", domain.ErrNodeNotFound)
	}
	parts := strings.Split(string(p), ".")
	out := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad path %q", domain.ErrNodeNotFound, p)
		}
		out[i] = n
	}
	return out, nil
}

// Resolve finds the node addressed by p
func Resolve(forest []domain.LessonNode, p Path) (*domain.LessonNode, error) {
	idx, err := p.Indexes()
	if err != nil {
		return nil, err
	}

	level := forest
	var node *domain.LessonNode
	for _, i := range idx {
		if i >= len(level) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, p)
		}
		node = &level[i]
		level = node.Children
	}
	return node, nil
}
