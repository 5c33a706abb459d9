package review

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Rubric is the prompt specification for a review. It is normally loaded
// from prompts/review.yaml; a compiled-in default keeps the client working
// when the file is absent.
type Rubric struct {
	System   string   `yaml:"system"`
	Sections []string `yaml:"sections"`
	Style    struct {
		Temperature float32 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"style"`
}

// DefaultRubric mirrors the shipped prompts/review.yaml.
func DefaultRubric() Rubric {
	r := Rubric{
		System: "You are a senior engineer reviewing a pull request. " +
			"Be concise and concrete. Use '-' prefixed bullets and '**Header**' section titles. " +
			"Respond with exactly the requested sections and nothing else.",
		Sections: []string{
			"**Summary** - one or two bullets describing the change",
			"**Purpose** - what problem the change appears to solve",
			"**Issues** - bugs, risks or smells in the changed lines",
			"**Suggestions** - concrete improvements",
			"**Score** - a single recommendation score from 0 to 100",
		},
	}
	r.Style.Temperature = 0.2
	return r
}

// LoadRubric reads a rubric YAML file, falling back to the default when the
// file does not exist. A file that exists but fails to parse is an error:
// a half-loaded rubric should not silently produce degenerate prompts.
func LoadRubric(path string) (Rubric, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultRubric(), nil
		}
		return Rubric{}, err
	}
	var r Rubric
	if err := yaml.Unmarshal(b, &r); err != nil {
		return Rubric{}, err
	}
	if r.System == "" || len(r.Sections) == 0 {
		def := DefaultRubric()
		if r.System == "" {
			r.System = def.System
		}
		if len(r.Sections) == 0 {
			r.Sections = def.Sections
		}
	}
	return r, nil
}
