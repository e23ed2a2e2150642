package lesson

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/felixgeelhaar/blackbird/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultForest []byte

// ForestFile represents the YAML structure of a lesson forest
type ForestFile struct {
	Lessons []domain.LessonNode `yaml:"lessons"`
}

// Loader reads a lesson forest from YAML
type Loader struct {
	path string
}

// NewLoader creates a loader for the given file. An empty path selects the
// built-in sample forest.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Path returns the configured forest file, or "" for the built-in forest
func (l *Loader) Path() string {
	return l.path
}

// Load reads and parses the forest
func (l *Loader) Load() ([]domain.LessonNode, error) {
	data := defaultForest
	if l.path != "" {
		var err error
		data, err = os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("read lesson file: %w", err)
		}
	}
	return Parse(data)
}

// Parse decodes a forest document and checks its shape
func Parse(data []byte) ([]domain.LessonNode, error) {
	var file ForestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse lesson file: %w", err)
	}

	for i := range file.Lessons {
		if err := checkNode(&file.Lessons[i], fmt.Sprintf("lessons[%d]", i)); err != nil {
			return nil, err
		}
	}

	return file.Lessons, nil
}

func checkNode(n *domain.LessonNode, where string) error {
	if n.Name == "" {
		return fmt.Errorf("%s: lesson %d has no name", where, n.ID)
	}
	for i, ex := range n.Exercises {
		if ex.Code == "" {
			return fmt.Errorf("%s.exercises[%d]: exercise %d has no code", where, i, ex.ID)
		}
	}
	for i := range n.Children {
		if err := checkNode(&n.Children[i], fmt.Sprintf("%s.children[%d]", where, i)); err != nil {
			return err
		}
	}
	return nil
}
