// Package evolution nudges a relationship's personality traits and trust
// after each interaction.
package evolution

import (
	"math"
	"time"

	"github.com/rcliao/companion-state/internal/model"
)

// Trait names with an evolution rule.
const (
	Empathy      = "empathy"
	Adaptability = "adaptability"
	Reliability  = "reliability"
	Creativity   = "creativity"
	Intelligence = "intelligence"
)

// Signals are the values derived from one exchange.
type Signals struct {
	EmotionalTone float64
	TrustImpact   float64
}

// rule returns the delta for a trait given the exchange signals.
type rule func(Signals) float64

// rules is closed: only these traits evolve, and every one of them must be
// defined on the relationship.
var rules = []struct {
	trait string
	apply rule
}{
	{Empathy, func(s Signals) float64 {
		if math.Abs(s.EmotionalTone) > 0.5 {
			return 0.02 * s.EmotionalTone
		}
		return 0
	}},
	{Adaptability, trustRule},
	{Reliability, trustRule},
	// reserved for a richer analyzer
	{Creativity, func(Signals) float64 { return 0 }},
	{Intelligence, func(Signals) float64 { return 0 }},
}

func trustRule(s Signals) float64 {
	if s.TrustImpact > 0 {
		return 0.01 * s.TrustImpact
	}
	return 0
}

// RequiredTraits lists every trait an evolvable personality must define.
func RequiredTraits() []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.trait
	}
	return names
}

// ToneAnalyzer scores the emotional tone of an exchange in [-1,1].
type ToneAnalyzer interface {
	Tone(userMessage, characterResponse string) float64
}

// TrustAnalyzer scores how an exchange should move trust.
type TrustAnalyzer interface {
	TrustImpact(userMessage, characterResponse string, trust float64) float64
}

// NeutralTone is the baseline tone analyzer.
type NeutralTone struct{}

func (NeutralTone) Tone(string, string) float64 { return 0 }

// BaselineTrustNudge is the impact FixedTrust applies per interaction.
const BaselineTrustNudge = 0.01

// FixedTrust is the baseline trust analyzer: a small constant nudge.
type FixedTrust struct{ Nudge float64 }

func (f FixedTrust) TrustImpact(string, string, float64) float64 { return f.Nudge }

// Engine applies evolution rules to a relationship.
type Engine struct {
	tone  ToneAnalyzer
	trust TrustAnalyzer
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

func WithToneAnalyzer(a ToneAnalyzer) Option   { return func(e *Engine) { e.tone = a } }
func WithTrustAnalyzer(a TrustAnalyzer) Option { return func(e *Engine) { e.trust = a } }
func WithClock(now func() time.Time) Option    { return func(e *Engine) { e.now = now } }

// NewEngine returns an engine using the baseline analyzers unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		tone:  NeutralTone{},
		trust: FixedTrust{Nudge: BaselineTrustNudge},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessInteraction derives signals from the exchange, adjusts trust,
// applies every trait rule and appends the interaction record to rel.
// A relationship missing any required trait is rejected with
// model.ErrConfiguration before anything is mutated.
func (e *Engine) ProcessInteraction(rel *model.Relationship, userMessage, characterResponse string) (*model.InteractionRecord, error) {
	if rel == nil || rel.Trust == nil {
		return nil, model.Configurationf("relationship has no trust level")
	}
	if err := rel.Traits.Require(RequiredTraits()...); err != nil {
		return nil, err
	}

	sig := Signals{
		EmotionalTone: bounded(e.tone.Tone(userMessage, characterResponse)),
		TrustImpact:   bounded(e.trust.TrustImpact(userMessage, characterResponse, rel.Trust.Level())),
	}

	traits, err := evolve(rel.Traits, sig)
	if err != nil {
		return nil, err
	}
	rel.Traits = traits
	rel.Trust.Adjust(sig.TrustImpact)

	tone, impact := sig.EmotionalTone, sig.TrustImpact
	rec := model.InteractionRecord{
		UserMessage:       userMessage,
		CharacterResponse: characterResponse,
		Timestamp:         e.now().UTC(),
		EmotionalTone:     &tone,
		TrustImpact:       &impact,
	}
	rel.Interactions = append(rel.Interactions, rec)
	return &rec, nil
}

// evolve applies every rule to a copy of traits. The input is untouched on error.
func evolve(traits model.TraitSet, sig Signals) (model.TraitSet, error) {
	out := traits.Clone()
	for _, r := range rules {
		if d := r.apply(sig); d != 0 {
			if _, err := out.Nudge(r.trait, d); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// bounded clamps an analyzer output to [-1,1]; NaN reads as no signal.
func bounded(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return model.Clamp(v, -1, 1)
}
