package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchThemes(t *testing.T) {
	scores := matchThemes("Dentist appointment reminder", "Your checkup at the clinic is tomorrow.")

	assert.Contains(t, scores, "health")
	assert.NotContains(t, scores, "travel")

	// confidence never exceeds the rule weight
	for theme, conf := range scores {
		assert.LessOrEqual(t, conf, themeRules[theme].Weight, "theme %s", theme)
		assert.Greater(t, conf, 0.0)
	}
}

func TestMatchThemesMoreHitsScoreHigher(t *testing.T) {
	one := matchThemes("school", "")
	many := matchThemes("school", "The teacher sent homework and a permission slip for the field trip.")

	assert.Greater(t, many["school"], one["school"])
}

func TestMatchThemesNoHits(t *testing.T) {
	scores := matchThemes("zzz", "nothing relevant here at all")
	assert.Empty(t, scores)
}

func TestHasUrgentWord(t *testing.T) {
	assert.True(t, hasUrgentWord("URGENT: reply needed", ""))
	assert.True(t, hasUrgentWord("", "please respond asap"))
	assert.False(t, hasUrgentWord("Weekly newsletter", "nothing pressing"))
}

func TestMatchedKeywordsCapped(t *testing.T) {
	body := "school teacher homework pta principal doctor dentist clinic practice game coach payment invoice bill"
	kws := matchedKeywords("", body, 5)
	assert.Len(t, kws, 5)
}

func TestDedupeCap(t *testing.T) {
	in := []string{"a", "b", "a", "c", "b", "d"}
	out := dedupeCap(in, 3)
	assert.Equal(t, []string{"a", "b", "c"}, out)

	assert.Nil(t, dedupeCap(nil, 3))
}
