package conflict

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/companion-state/internal/model"
)

func traits(empathy, adaptability, reliability, intelligence float64) model.TraitSet {
	return model.TraitSet{
		"empathy":      {Value: empathy},
		"adaptability": {Value: adaptability},
		"reliability":  {Value: reliability},
		"intelligence": {Value: intelligence},
		"creativity":   {Value: 0.5},
	}
}

func TestResolve_Strategies(t *testing.T) {
	tests := []struct {
		name     string
		traits   model.TraitSet
		category Category
		response string
		delta    float64
	}{
		{"disagreement empathetic", traits(0.9, 0.5, 0.5, 0.5), Disagreement, StanceUnderstanding, 0.05},
		{"disagreement adaptable", traits(0.5, 0.8, 0.5, 0.5), Disagreement, StanceMiddleGround, 0.03},
		{"disagreement neutral", traits(0.5, 0.5, 0.5, 0.5), Disagreement, StanceDisagree, 0.01},
		{"disagreement at threshold", traits(0.7, 0.7, 0.5, 0.5), Disagreement, StanceDisagree, 0.01},
		{"misunderstanding clarify", traits(0.8, 0.5, 0.5, 0.8), Misunderstanding, StanceClarify, 0.02},
		{"misunderstanding apologize", traits(0.8, 0.5, 0.5, 0.6), Misunderstanding, StanceApologize, 0.01},
		{"betrayal repair", traits(0.9, 0.5, 0.9, 0.5), Betrayal, StanceRepair, -0.1},
		{"betrayal serious", traits(0.9, 0.5, 0.8, 0.5), Betrayal, StanceSerious, -0.2},
		{"generic", traits(0.1, 0.1, 0.1, 0.1), Generic, StanceCollaborate, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel := model.NewRelationship("aria", "u1", tt.traits)
			res, err := NewResolver(nil).Resolve(rel, "we argued", tt.category, 0.5)
			require.NoError(t, err)
			assert.Equal(t, tt.response, res.Response)
			assert.Equal(t, tt.delta, res.TrustDelta)
			assert.InDelta(t, model.DefaultTrust+tt.delta, rel.Trust.Level(), 1e-12)
			assert.Equal(t, res.TrustLevel, rel.Trust.Level())
		})
	}
}

func TestResolve_AppendsConflictRecord(t *testing.T) {
	at := time.Date(2024, 8, 2, 20, 0, 0, 0, time.UTC)
	rel := model.NewRelationship("aria", "u1", traits(0.9, 0.5, 0.5, 0.5))

	res, err := NewResolver(func() time.Time { return at }).Resolve(rel, "politics", Disagreement, 0.3)
	require.NoError(t, err)

	require.Len(t, rel.Conflicts, 1)
	rec := rel.Conflicts[0]
	assert.Equal(t, "politics", rec.Description)
	assert.Equal(t, "disagreement", rec.Category)
	assert.Equal(t, 0.3, rec.Severity)
	assert.Equal(t, res.Response, rec.Resolution)
	require.NotNil(t, rec.Impact)
	assert.Equal(t, 0.05, *rec.Impact)
	assert.Equal(t, at, rec.Timestamp)
}

func TestResolve_TrustStaysBounded(t *testing.T) {
	rel := model.NewRelationship("aria", "u1", traits(0.1, 0.1, 0.1, 0.1))
	r := NewResolver(nil)
	for i := 0; i < 10; i++ {
		_, err := r.Resolve(rel, "again", Betrayal, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 0.0, rel.Trust.Level())

	rel = model.NewRelationship("aria", "u1", traits(0.9, 0.1, 0.1, 0.1))
	for i := 0; i < 30; i++ {
		_, err := r.Resolve(rel, "again", Disagreement, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, 1.0, rel.Trust.Level())
}

func TestResolve_MissingTraitIsConfigurationError(t *testing.T) {
	rel := model.NewRelationship("aria", "u1", model.TraitSet{"empathy": {Value: 0.5}})

	_, err := NewResolver(nil).Resolve(rel, "hm", Disagreement, 0.5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConfiguration))
	assert.Equal(t, model.DefaultTrust, rel.Trust.Level())
	assert.Empty(t, rel.Conflicts)

	// generic never consults traits
	_, err = NewResolver(nil).Resolve(rel, "hm", Generic, 0.5)
	assert.NoError(t, err)
}

func TestResolve_InvalidSeverity(t *testing.T) {
	rel := model.NewRelationship("aria", "u1", traits(0.5, 0.5, 0.5, 0.5))
	for _, sev := range []float64{-0.1, 1.1} {
		_, err := NewResolver(nil).Resolve(rel, "x", Generic, sev)
		assert.True(t, errors.Is(err, model.ErrValidation), "severity %v", sev)
	}
	assert.Empty(t, rel.Conflicts)
}

func TestParseCategory(t *testing.T) {
	assert.Equal(t, Disagreement, ParseCategory("disagreement"))
	assert.Equal(t, Misunderstanding, ParseCategory(" Misunderstanding "))
	assert.Equal(t, Betrayal, ParseCategory("BETRAYAL"))
	assert.Equal(t, Generic, ParseCategory("jealousy"))
	assert.Equal(t, Generic, ParseCategory(""))
	assert.Equal(t, "betrayal", Betrayal.String())
	assert.Equal(t, "generic", Category(42).String())
}
