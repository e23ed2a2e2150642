package lesson

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

// Registry holds the lesson forest loaded at startup. The forest is never
// mutated after Load; callers must treat returned slices as read-only.
type Registry struct {
	loader *Loader
	mu     sync.RWMutex
	forest []domain.LessonNode
	loaded bool
}

// NewRegistry creates a new lesson registry
func NewRegistry(loader *Loader) *Registry {
	return &Registry{loader: loader}
}

// Load reads the forest once. Duplicate ids are reported, not rejected.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return nil
	}

	forest, err := r.loader.Load()
	if err != nil {
		return fmt.Errorf("load lessons: %w", err)
	}

	if dups := DuplicateIDs(forest); len(dups) > 0 {
		slog.Warn("lesson forest has duplicate ids", "ids", dups, "source", r.source())
	}

	r.forest = forest
	r.loaded = true

	stats := collectStats(forest)
	slog.Info("lessons loaded",
		"source", r.source(),
		"lessons", stats.LessonCount,
		"exercises", stats.ExerciseCount,
	)
	return nil
}

func (r *Registry) source() string {
	if p := r.loader.Path(); p != "" {
		return p
	}
	return "builtin"
}

// Forest returns the loaded top-level lessons
func (r *Registry) Forest() []domain.LessonNode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.forest
}

// Codes returns every distinct exercise code reachable from the forest, sorted
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	walk(r.forest, 0, func(n *domain.LessonNode, _ int) {
		if n.Kind() == domain.NodeLeafActionable {
			seen[n.Code] = true
		}
		for _, ex := range n.Exercises {
			seen[ex.Code] = true
		}
	})

	codes := make([]string, 0, len(seen))
	for c := range seen {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// HasCode reports whether the forest links to the given exercise code
func (r *Registry) HasCode(code string) bool {
	for _, c := range r.Codes() {
		if c == code {
			return true
		}
	}
	return false
}

// Outline renders the whole forest as indented plain text, every node open
func (r *Registry) Outline() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	walk(r.forest, 0, func(n *domain.LessonNode, depth int) {
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(&b, "%s- %s", indent, n.Name)
		if n.Kind() == domain.NodeLeafActionable {
			fmt.Fprintf(&b, " [%s]", n.Code)
		}
		b.WriteString("\n")
		for _, ex := range n.Exercises {
			fmt.Fprintf(&b, "%s    * %s [%s]\n", indent, ex.Name, ex.Code)
		}
	})
	return b.String()
}

// Stats returns statistics about the loaded forest
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return collectStats(r.forest)
}

// RegistryStats holds statistics about the registry
type RegistryStats struct {
	LessonCount   int
	ExerciseCount int
	MaxDepth      int
	ByKind        map[string]int
}

func collectStats(forest []domain.LessonNode) RegistryStats {
	stats := RegistryStats{ByKind: make(map[string]int)}
	walk(forest, 0, func(n *domain.LessonNode, depth int) {
		stats.LessonCount++
		stats.ExerciseCount += len(n.Exercises)
		stats.ByKind[n.Kind().String()]++
		if depth+1 > stats.MaxDepth {
			stats.MaxDepth = depth + 1
		}
	})
	return stats
}

// DuplicateIDs returns ids used more than once across lessons and exercises
func DuplicateIDs(forest []domain.LessonNode) []int {
	counts := make(map[int]int)
	walk(forest, 0, func(n *domain.LessonNode, _ int) {
		counts[n.ID]++
		for _, ex := range n.Exercises {
			counts[ex.ID]++
		}
	})

	var dups []int
	for id, c := range counts {
		if c > 1 {
			dups = append(dups, id)
		}
	}
	sort.Ints(dups)
	return dups
}

// walk visits nodes depth-first in declaration order
func walk(nodes []domain.LessonNode, depth int, fn func(*domain.LessonNode, int)) {
	for i := range nodes {
		fn(&nodes[i], depth)
		walk(nodes[i].Children, depth+1, fn)
	}
}
