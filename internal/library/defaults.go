package library

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/claude/sweatbell/internal/models"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var defaultExercises = mustParseDefaults()

func mustParseDefaults() []models.Exercise {
	var doc struct {
		Exercises []models.Exercise `yaml:"exercises"`
	}
	if err := yaml.Unmarshal(defaultsYAML, &doc); err != nil {
		panic(fmt.Sprintf("library: embedded defaults.yaml does not parse: %v", err))
	}
	if err := models.ValidateLibrary(doc.Exercises); err != nil {
		panic(fmt.Sprintf("library: embedded defaults.yaml is invalid: %v", err))
	}
	models.SortExercisesByName(doc.Exercises)
	return doc.Exercises
}

// Defaults returns a copy of the built-in starter library, sorted by name.
// Used to seed fresh databases and as the fallback library for the timer
// CLI.
func Defaults() []models.Exercise {
	out := make([]models.Exercise, len(defaultExercises))
	copy(out, defaultExercises)
	return out
}
