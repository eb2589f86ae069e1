// Package prompts loads the embedded agent role prompts.
package prompts

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed roles/*.yaml
var rolesFS embed.FS

// role is the on-disk YAML shape of a prompt file.
type role struct {
	Name   string `yaml:"name"`
	Prompt string `yaml:"prompt"`
}

// Set holds all loaded role prompts.
type Set struct {
	Safety           string
	Decompose        string
	Attraction       string
	Traffic          string
	Dining           string
	Budget           string
	Hotel            string
	Plan             string
	SingleAttraction string
}

// Load parses every embedded role file into a Set.
func Load() (*Set, error) {
	files := map[string]*string{}
	set := &Set{}
	files["safety"] = &set.Safety
	files["decompose"] = &set.Decompose
	files["attraction"] = &set.Attraction
	files["traffic"] = &set.Traffic
	files["dining"] = &set.Dining
	files["budget"] = &set.Budget
	files["hotel"] = &set.Hotel
	files["plan"] = &set.Plan
	files["single_attraction"] = &set.SingleAttraction

	for name, dst := range files {
		data, err := rolesFS.ReadFile("roles/" + name + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("read role %s: %w", name, err)
		}
		var r role
		if err := yaml.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("parse role %s: %w", name, err)
		}
		if strings.TrimSpace(r.Prompt) == "" {
			return nil, fmt.Errorf("role %s: empty prompt", name)
		}
		*dst = r.Prompt
	}
	return set, nil
}

// WithQuestion substitutes the {question} placeholder.
func WithQuestion(prompt, question string) string {
	return strings.ReplaceAll(prompt, "{question}", question)
}

// WithTime substitutes the {time} placeholder.
func WithTime(prompt, now string) string {
	return strings.ReplaceAll(prompt, "{time}", now)
}
