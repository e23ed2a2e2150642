package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/blackbird/internal/config"
	"github.com/felixgeelhaar/blackbird/internal/lesson"
	"github.com/felixgeelhaar/blackbird/internal/queue"
)

// cmdLessons prints the lesson outline or its statistics
func cmdLessons(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry := lesson.NewRegistry(lesson.NewLoader(cfg.Lessons.Path))
	if err := registry.Load(); err != nil {
		return err
	}

	subCmd := "outline"
	if len(args) > 0 {
		subCmd = args[0]
	}

	switch subCmd {
	case "outline":
		fmt.Print(registry.Outline())
		return nil
	case "stats":
		return printLessonStats(os.Stdout, registry)
	default:
		return fmt.Errorf("unknown lessons command: %s (valid: outline, stats)", subCmd)
	}
}

func printLessonStats(w io.Writer, registry *lesson.Registry) error {
	stats := registry.Stats()

	fmt.Fprintln(w, "Lesson Statistics")
	fmt.Fprintln(w, "=================")
	fmt.Fprintf(w, "Lessons:        %d\n", stats.LessonCount)
	fmt.Fprintf(w, "Exercises:      %d\n", stats.ExerciseCount)
	fmt.Fprintf(w, "Exercise codes: %d\n", len(registry.Codes()))
	fmt.Fprintf(w, "Max depth:      %d\n", stats.MaxDepth)

	kinds := make([]string, 0, len(stats.ByKind))
	for kind := range stats.ByKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	fmt.Fprintln(w, "\nBy Kind")
	fmt.Fprintln(w, "-------")
	for _, kind := range kinds {
		fmt.Fprintf(w, "%-18s %d\n", kind, stats.ByKind[kind])
	}

	if dups := lesson.DuplicateIDs(registry.Forest()); len(dups) > 0 {
		fmt.Fprintf(w, "\nDuplicate ids:  %v\n", dups)
	}
	return nil
}

// cmdConfig shows the effective configuration or writes the defaults
func cmdConfig(args []string) error {
	if len(args) > 0 && args[0] == "init" {
		return configInit()
	}
	if len(args) > 0 {
		return fmt.Errorf("unknown config command: %s (valid: init)", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	fmt.Printf("# %s (with environment overrides)\n", path)
	return printConfig(os.Stdout, cfg)
}

func printConfig(w io.Writer, cfg *config.Config) error {
	shown := *cfg
	shown.Events.AMQPURL = queue.SanitizeURL(cfg.Events.AMQPURL)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&shown); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

func configInit() error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists at %s\n", path)
		return nil
	}

	if err := config.Save(path, config.DefaultConfig()); err != nil {
		return err
	}
	fmt.Printf("✓ Wrote %s\n", path)
	return nil
}
