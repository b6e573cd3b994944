package model

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

// DefaultTrust is the trust level of a new relationship.
const DefaultTrust = 0.5

// Clamp bounds v to [lo, hi]. NaN collapses to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 { return Clamp(v, 0, 1) }

// Trust is the bounded relationship-health scalar shared by trait evolution
// and conflict resolution. The zero value is not usable; call NewTrust.
type Trust struct {
	level float64
}

// NewTrust returns a trust level starting at DefaultTrust.
func NewTrust() *Trust { return &Trust{level: DefaultTrust} }

// RestoreTrust rebuilds a persisted trust level. Values outside [0,1] are rejected.
func RestoreTrust(level float64) (*Trust, error) {
	if math.IsNaN(level) || level < 0 || level > 1 {
		return nil, Validationf("trust level %v outside [0,1]", level)
	}
	return &Trust{level: level}, nil
}

func (t *Trust) Level() float64 { return t.level }

// Adjust applies clamp(level+delta, 0, 1) and returns the new level.
// Every trust mutation goes through here.
func (t *Trust) Adjust(delta float64) float64 {
	t.level = Clamp01(t.level + delta)
	return t.level
}

func (t *Trust) MarshalJSON() ([]byte, error) { return json.Marshal(t.level) }

func (t *Trust) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	r, err := RestoreTrust(v)
	if err != nil {
		return err
	}
	*t = *r
	return nil
}

// Trait is a bounded personality attribute.
type Trait struct {
	Value       float64 `json:"value" yaml:"value"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}

// TraitSet maps trait names to their values.
type TraitSet map[string]Trait

// Value returns the named trait or a configuration error when it is undefined.
func (ts TraitSet) Value(name string) (float64, error) {
	t, ok := ts[name]
	if !ok {
		return 0, Configurationf("trait %q is not defined", name)
	}
	return t.Value, nil
}

// Nudge adds delta to the named trait, clamping the result to [0,1].
func (ts TraitSet) Nudge(name string, delta float64) (float64, error) {
	t, ok := ts[name]
	if !ok {
		return 0, Configurationf("trait %q is not defined", name)
	}
	t.Value = Clamp01(t.Value + delta)
	ts[name] = t
	return t.Value, nil
}

// Require returns a configuration error naming the first missing trait.
func (ts TraitSet) Require(names ...string) error {
	for _, n := range names {
		if _, ok := ts[n]; !ok {
			return Configurationf("trait %q is not defined", n)
		}
	}
	return nil
}

// Names returns trait names in sorted order.
func (ts TraitSet) Names() []string {
	names := make([]string, 0, len(ts))
	for n := range ts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (ts TraitSet) Clone() TraitSet {
	out := make(TraitSet, len(ts))
	for k, v := range ts {
		out[k] = v
	}
	return out
}

// InteractionRecord is one turn's audit entry for trait evolution.
type InteractionRecord struct {
	UserMessage       string    `json:"user_message"`
	CharacterResponse string    `json:"character_response"`
	Timestamp         time.Time `json:"timestamp"`
	EmotionalTone     *float64  `json:"emotional_tone,omitempty"`
	TrustImpact       *float64  `json:"trust_impact,omitempty"`
}

// ConflictRecord is the audit entry of one resolved conflict.
type ConflictRecord struct {
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	Severity    float64   `json:"severity"`
	Category    string    `json:"category"`
	Resolution  string    `json:"resolution,omitempty"`
	Impact      *float64  `json:"impact,omitempty"`
}

// Relationship is the state owned by one character and user pairing.
// Callers must serialize access; nothing here is safe for concurrent writers.
type Relationship struct {
	CharacterID  string              `json:"character_id"`
	UserID       string              `json:"user_id"`
	Trust        *Trust              `json:"trust_level"`
	Traits       TraitSet            `json:"traits"`
	Interactions []InteractionRecord `json:"interaction_history"`
	Conflicts    []ConflictRecord    `json:"conflict_history"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// NewRelationship starts a relationship at default trust with a copy of traits.
func NewRelationship(characterID, userID string, traits TraitSet) *Relationship {
	return &Relationship{
		CharacterID:  characterID,
		UserID:       userID,
		Trust:        NewTrust(),
		Traits:       traits.Clone(),
		Interactions: []InteractionRecord{},
		Conflicts:    []ConflictRecord{},
	}
}

// Validate checks bounds on a relationship loaded from outside the engine.
func (r *Relationship) Validate() error {
	if r.CharacterID == "" || r.UserID == "" {
		return Validationf("relationship: character and user ids are required")
	}
	if r.Trust == nil {
		return Validationf("relationship: trust level is required")
	}
	for _, name := range r.Traits.Names() {
		v := r.Traits[name].Value
		if math.IsNaN(v) || v < 0 || v > 1 {
			return Validationf("relationship: trait %q value %v outside [0,1]", name, v)
		}
	}
	return nil
}
