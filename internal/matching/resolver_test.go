package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_ExactAndUnknown(t *testing.T) {
	assert.Equal(t, "Garage", Resolve("Garage", []string{"Garage", "Attic", "Shed"}, 80))
	assert.Equal(t, "Xyzzy", Resolve("Xyzzy", []string{"Garage", "Attic"}, 80))
}

func TestResolve_NoOpLaws(t *testing.T) {
	vocab := []string{"Garage", "Attic"}

	assert.Equal(t, "Loft", Resolve("Loft", nil, DefaultThreshold))
	assert.Equal(t, "Loft", Resolve("Loft", []string{}, DefaultThreshold))
	assert.Equal(t, "", Resolve("", vocab, DefaultThreshold))
}

func TestResolve_CloseSpellingsSnapToVocabulary(t *testing.T) {
	vocab := []string{"Garage", "Attic", "Shed", "Car Boot Sale"}

	tests := []struct {
		input string
		want  string
	}{
		{input: "garage", want: "Garage"},
		{input: "  GARAGE ", want: "Garage"},
		{input: "Atic", want: "Attic"},
		{input: "car boot sail", want: "Car Boot Sale"},
		{input: "sale car boot", want: "Car Boot Sale"},
		{input: "Kitchen", want: "Kitchen"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.input, vocab, DefaultThreshold))
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	vocab := []string{"garage", "Garage", "Attic", "Blue Vase", "Vase Blue", "Shed"}
	inputs := []string{"Garage", "GARAGE", "atic", "vase blue", "Blue Vas", "Shedd", "nowhere", ""}

	for _, in := range inputs {
		once := Resolve(in, vocab, DefaultThreshold)
		twice := Resolve(once, vocab, DefaultThreshold)
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestResolve_TiesKeepVocabularyOrder(t *testing.T) {
	got := Resolve("Blue Vas", []string{"Blue Vast", "Blue Vase"}, DefaultThreshold)

	assert.Equal(t, "Blue Vast", got)
}

func TestBest_ReportsAmbiguity(t *testing.T) {
	m := Best("Blue Vas", []string{"Blue Vase", "Red Jug", "Blue Vast"}, DefaultThreshold)

	require.True(t, m.Matched)
	assert.True(t, m.Ambiguous())
	assert.Equal(t, []string{"Blue Vase", "Blue Vast"}, m.Tied())
}

func TestBest_ExactEntryIsNeverAmbiguous(t *testing.T) {
	m := Best("Blue Vase", []string{"Blue Vase", "Blue Vast"}, DefaultThreshold)

	assert.True(t, m.Matched)
	assert.False(t, m.Ambiguous())
	assert.Equal(t, "Blue Vase", m.Value)
	assert.Equal(t, float64(100), m.Score)
}

func TestBest_DuplicateEntriesCollapse(t *testing.T) {
	m := Best("brass lamp", []string{"Brass Lamp", "Brass Lamp", "Tin Cup"}, DefaultThreshold)

	require.True(t, m.Matched)
	assert.False(t, m.Ambiguous())
	assert.Len(t, m.Candidates, 1)
}

func TestBest_BelowThresholdIsUnmatched(t *testing.T) {
	m := Best("Camera", []string{"Vintage Camera Lens"}, DefaultThreshold)

	assert.False(t, m.Matched)
	assert.Equal(t, "Camera", m.Value)
	assert.Empty(t, m.Candidates)
	assert.Nil(t, m.Tied())
}

func TestScore(t *testing.T) {
	assert.Equal(t, float64(100), Score("Vintage Camera", "camera vintage"))
	assert.Equal(t, float64(80), Score("Atic", "Attic"))
	assert.Less(t, Score("Xyzzy", "Garage"), float64(50))
}
