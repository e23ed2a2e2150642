package tree

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var outlineTmpl = template.Must(template.ParseFS(templateFS, "templates/outline.html"))

// indentStep is the horizontal offset per nesting level, in pixels
const indentStep = 16

// RowKind distinguishes lesson rows from exercise rows
type RowKind int

const (
	RowLesson RowKind = iota
	RowExercise
)

// Row is one visible line of the outline
type Row struct {
	Kind     RowKind
	Path     Path
	Depth    int
	Name     string
	NodeKind domain.NodeKind
	Open     bool
	Index    int    // exercise index within its lesson, RowExercise only
	Code     string // exercise code, RowExercise only
}

// Rows flattens the visible outline in declaration order: a lesson row,
// then its exercises and children while it is open.
func (v *View) Rows() []Row {
	v.mu.Lock()
	defer v.mu.Unlock()

	var rows []Row
	var visit func(nodes []domain.LessonNode, parent Path)
	visit = func(nodes []domain.LessonNode, parent Path) {
		for i := range nodes {
			n := &nodes[i]
			p := Root(i)
			if parent != "" {
				p = parent.Child(i)
			}
			open := v.open[p]
			rows = append(rows, Row{
				Kind:     RowLesson,
				Path:     p,
				Depth:    p.Depth(),
				Name:     n.Name,
				NodeKind: n.Kind(),
				Open:     open,
			})
			if !open {
				continue
			}
			for j, ex := range n.Exercises {
				rows = append(rows, Row{
					Kind:  RowExercise,
					Path:  p,
					Depth: p.Depth() + 1,
					Name:  ex.Name,
					Index: j,
					Code:  ex.Code,
				})
			}
			visit(n.Children, p)
		}
	}
	if !v.closed {
		visit(v.forest, "")
	}
	return rows
}

type nodeData struct {
	Base       string
	Path       Path
	Node       *domain.LessonNode
	Kind       string
	Indent     int
	Expandable bool
	Open       bool
	Exercises  []exerciseData
	Children   []nodeData
}

type exerciseData struct {
	Name   string
	Action string
	Indent int
}

// Render writes the outline as HTML. base is the URL prefix the row forms
// post back to, e.g. "/lessons/{view}".
func (v *View) Render(w io.Writer, base string) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return domain.ErrNotMounted
	}
	data := v.build(base, v.forest, "", 0)
	v.mu.Unlock()

	if err := outlineTmpl.ExecuteTemplate(w, "outline", data); err != nil {
		return fmt.Errorf("render outline: %w", err)
	}
	return nil
}

// build snapshots the render model of one level, recursing into open nodes
func (v *View) build(base string, nodes []domain.LessonNode, parent Path, depth int) []nodeData {
	out := make([]nodeData, 0, len(nodes))
	for i := range nodes {
		n := &nodes[i]
		p := Root(i)
		if parent != "" {
			p = parent.Child(i)
		}
		d := nodeData{
			Base:       base,
			Path:       p,
			Node:       n,
			Kind:       n.Kind().String(),
			Indent:     depth * indentStep,
			Expandable: n.Kind() == domain.NodeExpandable,
			Open:       v.open[p],
		}
		if d.Open {
			for j, ex := range n.Exercises {
				d.Exercises = append(d.Exercises, exerciseData{
					Name:   ex.Name,
					Action: fmt.Sprintf("%s/nodes/%s/exercises/%d", base, p, j),
					Indent: (depth + 1) * indentStep,
				})
			}
			d.Children = v.build(base, n.Children, p, depth+1)
		}
		out = append(out, d)
	}
	return out
}
