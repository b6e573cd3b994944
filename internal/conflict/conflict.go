// Package conflict resolves user and character disagreements into a stance
// and a trust delta.
package conflict

import (
	"math"
	"strings"
	"time"

	"github.com/rcliao/companion-state/internal/model"
)

// Category is the closed set of conflict kinds. New kinds are added here and
// in Resolve's switch, nowhere else.
type Category int

const (
	Generic Category = iota
	Disagreement
	Misunderstanding
	Betrayal
)

var categoryNames = map[Category]string{
	Generic:          "generic",
	Disagreement:     "disagreement",
	Misunderstanding: "misunderstanding",
	Betrayal:         "betrayal",
}

func (c Category) String() string {
	if n, ok := categoryNames[c]; ok {
		return n
	}
	return categoryNames[Generic]
}

// ParseCategory maps a category name to its Category. Unknown names are Generic.
func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disagreement":
		return Disagreement
	case "misunderstanding":
		return Misunderstanding
	case "betrayal":
		return Betrayal
	default:
		return Generic
	}
}

// Canned stances.
const (
	StanceUnderstanding = "I understand why you see it that way, and I respect your perspective even though I see it differently."
	StanceMiddleGround  = "We see this differently. Maybe there's a middle ground we can both live with?"
	StanceDisagree      = "I see your point, but I have to respectfully disagree."
	StanceClarify       = "I think we might be talking past each other. Let me explain what I meant, and tell me if I misread you."
	StanceApologize     = "Sorry, I think I misunderstood. Could you help me understand what you meant?"
	StanceRepair        = "That really hurt, but I value what we have. I'd like to talk it through and rebuild trust."
	StanceSerious       = "That was a serious breach of trust. I need some time, and I need you to understand how much it hurt."
	StanceCollaborate   = "Let's work through this together."
)

// Resolution is the outcome of a conflict.
type Resolution struct {
	Category   Category `json:"-"`
	Response   string   `json:"response"`
	TrustDelta float64  `json:"trust_delta"`
	TrustLevel float64  `json:"trust_level"`
}

// Resolver resolves conflicts against a relationship's traits.
type Resolver struct {
	now func() time.Time
}

// NewResolver returns a Resolver. A nil clock uses time.Now.
func NewResolver(now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{now: now}
}

// Resolve picks a stance for the conflict, applies its delta to rel.Trust and
// appends a ConflictRecord. Missing traits yield model.ErrConfiguration and
// out-of-range severity yields model.ErrValidation; neither mutates rel.
func (r *Resolver) Resolve(rel *model.Relationship, description string, category Category, severity float64) (Resolution, error) {
	if rel == nil || rel.Trust == nil {
		return Resolution{}, model.Configurationf("relationship has no trust level")
	}
	if math.IsNaN(severity) || severity < 0 || severity > 1 {
		return Resolution{}, model.Validationf("conflict severity %v outside [0,1]", severity)
	}

	response, delta, err := stance(rel.Traits, category)
	if err != nil {
		return Resolution{}, err
	}

	level := rel.Trust.Adjust(delta)
	impact := delta
	rel.Conflicts = append(rel.Conflicts, model.ConflictRecord{
		Description: description,
		Timestamp:   r.now().UTC(),
		Severity:    severity,
		Category:    category.String(),
		Resolution:  response,
		Impact:      &impact,
	})

	return Resolution{Category: category, Response: response, TrustDelta: delta, TrustLevel: level}, nil
}

func stance(traits model.TraitSet, category Category) (string, float64, error) {
	switch category {
	case Disagreement:
		empathy, err := traits.Value("empathy")
		if err != nil {
			return "", 0, err
		}
		if empathy > 0.7 {
			return StanceUnderstanding, 0.05, nil
		}
		adaptability, err := traits.Value("adaptability")
		if err != nil {
			return "", 0, err
		}
		if adaptability > 0.7 {
			return StanceMiddleGround, 0.03, nil
		}
		return StanceDisagree, 0.01, nil

	case Misunderstanding:
		empathy, err := traits.Value("empathy")
		if err != nil {
			return "", 0, err
		}
		if empathy > 0.7 {
			intelligence, err := traits.Value("intelligence")
			if err != nil {
				return "", 0, err
			}
			if intelligence > 0.7 {
				return StanceClarify, 0.02, nil
			}
		}
		return StanceApologize, 0.01, nil

	case Betrayal:
		empathy, err := traits.Value("empathy")
		if err != nil {
			return "", 0, err
		}
		if empathy > 0.8 {
			reliability, err := traits.Value("reliability")
			if err != nil {
				return "", 0, err
			}
			if reliability > 0.8 {
				return StanceRepair, -0.1, nil
			}
		}
		return StanceSerious, -0.2, nil

	default:
		return StanceCollaborate, 0, nil
	}
}
