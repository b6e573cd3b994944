// Package personality loads the starting trait set for a character from YAML.
package personality

import (
	_ "embed"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/companion-state/internal/evolution"
	"github.com/rcliao/companion-state/internal/model"
)

//go:embed default.yaml
var defaultYAML []byte

// Personality is a named starting trait set.
type Personality struct {
	Name   string         `yaml:"name"`
	Traits model.TraitSet `yaml:"traits"`
}

// Default returns the built-in personality.
func Default() *Personality {
	p, err := Parse(defaultYAML)
	if err != nil {
		panic("personality: built-in default is invalid: " + err.Error())
	}
	return p
}

// Load reads a personality file. An empty path yields Default.
func Load(path string) (*Personality, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, model.Configurationf("read personality %s: %v", path, err)
	}
	return Parse(b)
}

// Parse decodes and validates a YAML personality definition.
func Parse(b []byte) (*Personality, error) {
	var p Personality
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, model.Configurationf("decode personality: %v", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks every trait is in [0,1] and every evolvable trait is defined.
func (p *Personality) Validate() error {
	if err := p.Traits.Require(evolution.RequiredTraits()...); err != nil {
		return err
	}
	for _, name := range p.Traits.Names() {
		v := p.Traits[name].Value
		if math.IsNaN(v) || v < 0 || v > 1 {
			return model.Configurationf("trait %q value %v outside [0,1]", name, v)
		}
	}
	return nil
}

// NewRelationship starts a relationship with a copy of the personality's traits.
func (p *Personality) NewRelationship(characterID, userID string) *model.Relationship {
	return model.NewRelationship(characterID, userID, p.Traits.Clone())
}
