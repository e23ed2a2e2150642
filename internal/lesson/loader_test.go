package lesson

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/blackbird/internal/domain"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/test/lessons.yaml")
	if loader.Path() != "/test/lessons.yaml" {
		t.Errorf("Path() = %q, want %q", loader.Path(), "/test/lessons.yaml")
	}
}

func TestLoader_LoadBuiltin(t *testing.T) {
	forest, err := NewLoader("").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(forest) != 2 {
		t.Fatalf("len(forest) = %d, want 2", len(forest))
	}
	if forest[0].Name != "S1 E1 Radicali" {
		t.Errorf("forest[0].Name = %q, want %q", forest[0].Name, "S1 E1 Radicali")
	}
	if forest[1].Exercises[0].Code != "002A" {
		t.Errorf("forest[1].Exercises[0].Code = %q, want %q", forest[1].Exercises[0].Code, "002A")
	}

	// codes must stay strings even though they look numeric
	if forest[0].Exercises[0].Code != "001" {
		t.Errorf("forest[0].Exercises[0].Code = %q, want %q", forest[0].Exercises[0].Code, "001")
	}

	deepest := forest[0].Children[0].Children[0]
	if deepest.ID != 111 || len(deepest.Exercises) != 1 {
		t.Errorf("deepest node = %+v, want id 111 with one exercise", deepest)
	}
}

func TestLoader_LoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "lessons.yaml")

	content := `lessons:
  - id: 7
    name: Ecuatii
    description: Ecuatii de gradul I
    code: "007"
  - id: 8
    name: Inert
    description: nothing here yet
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write lessons file: %v", err)
	}

	forest, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(forest) != 2 {
		t.Fatalf("len(forest) = %d, want 2", len(forest))
	}
	if forest[0].Kind() != domain.NodeLeafActionable {
		t.Errorf("forest[0].Kind() = %v, want leaf", forest[0].Kind())
	}
	if forest[1].Kind() != domain.NodeInert {
		t.Errorf("forest[1].Kind() = %v, want inert", forest[1].Kind())
	}
}

func TestLoader_LoadMissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	if err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
	if !strings.Contains(err.Error(), "read lesson file") {
		t.Errorf("error = %v, want read failure", err)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "not yaml",
			content: "lessons: [unclosed",
			wantErr: "parse lesson file",
		},
		{
			name: "nameless lesson",
			content: `lessons:
  - id: 1
    description: no name
`,
			wantErr: "lessons[0]: lesson 1 has no name",
		},
		{
			name: "exercise without code",
			content: `lessons:
  - id: 1
    name: A
    children:
      - id: 2
        name: B
        exercises:
          - id: 3
            name: C
`,
			wantErr: "lessons[0].children[0].exercises[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			if err == nil {
				t.Fatal("Parse() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	forest, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(forest) != 0 {
		t.Errorf("len(forest) = %d, want 0", len(forest))
	}
}
