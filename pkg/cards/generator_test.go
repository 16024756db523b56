package cards

import (
	"strings"
	"testing"

	"docflash-be/pkg/knowledge"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_DefinitionBecomesQA(t *testing.T) {
	kp := KnowledgeInput{
		ID:   uuid.New(),
		Type: knowledge.TypeDefinition,
		Text: "Photosynthesis is defined as the conversion of light energy into chemical energy.",
	}

	cards := NewGenerator().Generate([]KnowledgeInput{kp}, nil)

	require.Len(t, cards, 1)
	c := cards[0]
	assert.Equal(t, TypeQA, c.Type)
	assert.Equal(t, kp.ID, c.KnowledgeID)
	assert.Equal(t, "What is Photosynthesis?", c.Front)
	assert.Equal(t, kp.Text, c.Back)
}

func TestGenerate_ChineseDefinition(t *testing.T) {
	kp := KnowledgeInput{ID: uuid.New(), Type: knowledge.TypeConcept, Text: "光合作用是指植物利用光能合成有机物的过程。"}

	cards := NewGenerator().Generate([]KnowledgeInput{kp}, nil)

	require.Len(t, cards, 1)
	assert.Equal(t, "什么是光合作用？", cards[0].Front)
}

func TestGenerate_FactWithEntityBecomesCloze(t *testing.T) {
	kp := KnowledgeInput{
		ID:       uuid.New(),
		Type:     knowledge.TypeFact,
		Text:     "Alexander Graham Bell patented the telephone in 1876.",
		Entities: []string{"Alexander Graham Bell", "Bell"},
	}

	cards := NewGenerator().Generate([]KnowledgeInput{kp}, nil)

	require.Len(t, cards, 1)
	c := cards[0]
	assert.Equal(t, TypeCloze, c.Type)
	assert.Equal(t, "_____ patented the telephone in 1876.", c.Front)
	assert.Equal(t, kp.Text, c.Back)
	assert.Equal(t, []string{"Alexander Graham Bell"}, c.Metadata["blanks"])
	assert.Equal(t, "{{c1::Alexander Graham Bell}} patented the telephone in 1876.", c.Metadata["cloze"])
}

func TestGenerate_TheoremWithoutEntityFallsBackToQA(t *testing.T) {
	kp := KnowledgeInput{ID: uuid.New(), Type: knowledge.TypeTheorem, Text: "the sum of angles in a triangle is the same everywhere"}

	cards := NewGenerator().Generate([]KnowledgeInput{kp}, nil)

	require.Len(t, cards, 1)
	assert.Equal(t, TypeQA, cards[0].Type)
	assert.True(t, strings.HasPrefix(cards[0].Front, "State the result about"))
}

func TestGenerate_ProcessBlanksSteps(t *testing.T) {
	kp := KnowledgeInput{
		ID:   uuid.New(),
		Type: knowledge.TypeProcess,
		Text: "Bread making is the following procedure:\n1. Mix flour\n2. Knead dough\n3. Bake",
	}

	cards := NewGenerator().Generate([]KnowledgeInput{kp}, nil)

	require.Len(t, cards, 1)
	c := cards[0]
	assert.Equal(t, TypeCloze, c.Type)
	assert.Equal(t, "Steps of Bread making:\n1. _____\n2. _____\n3. _____", c.Front)
	assert.Equal(t, "1. Mix flour\n2. Knead dough\n3. Bake", c.Back)
	assert.Equal(t, []string{"Mix flour", "Knead dough", "Bake"}, c.Metadata["blanks"])
}

func TestGenerate_EveryPointGetsACard(t *testing.T) {
	var points []KnowledgeInput
	for _, ty := range knowledge.AllTypes {
		points = append(points, KnowledgeInput{ID: uuid.New(), Type: ty, Text: "A short statement about something."})
	}

	cards := NewGenerator().Generate(points, nil)

	require.Len(t, cards, len(points))
	for i, c := range cards {
		assert.Equal(t, points[i].ID, c.KnowledgeID)
		assert.NotEmpty(t, c.Front)
		assert.NotEmpty(t, c.Back)
		assert.GreaterOrEqual(t, c.Difficulty, MinDifficulty)
		assert.LessOrEqual(t, c.Difficulty, MaxDifficulty)
	}
}

func TestGenerate_ImageHotspot(t *testing.T) {
	chapter := uuid.New()
	other := uuid.New()
	points := []KnowledgeInput{
		{ID: uuid.New(), ChapterID: chapter, Type: knowledge.TypeFact, Text: "Chloroplasts contain chlorophyll.", Entities: []string{"Chloroplast"}},
		{ID: uuid.New(), ChapterID: chapter, Type: knowledge.TypeFact, Text: "The stroma and thylakoid are parts.", Entities: []string{"stroma", "thylakoid"}},
		{ID: uuid.New(), ChapterID: other, Type: knowledge.TypeFact, Text: "Unrelated stroma mention.", Entities: []string{"stroma"}},
	}
	figures := []FigureInput{
		{ID: uuid.New(), ChapterID: chapter, Caption: "Figure 2: Chloroplast with stroma and thylakoid", StoragePath: "2026/10/x.png"},
		{ID: uuid.New(), ChapterID: chapter, Caption: ""},
		{ID: uuid.New(), ChapterID: chapter, Caption: "Figure 3: Nothing matches here"},
	}

	cards := NewGenerator().Generate(points, figures)

	require.Len(t, cards, len(points)+1)
	hs := cards[len(cards)-1]
	assert.Equal(t, TypeImageHotspot, hs.Type)
	assert.Equal(t, points[1].ID, hs.KnowledgeID)
	assert.Equal(t, "Chloroplast, stroma, thylakoid", hs.Back)
	assert.Equal(t, figures[0].ID.String(), hs.Metadata["figure_id"])
	assert.Equal(t, 3, hs.Metadata["label_count"])
}

func TestDifficultyBounds(t *testing.T) {
	easy := Difficulty("Cats purr.", 0, TypeQA)
	hard := Difficulty(strings.Repeat("The thermodynamics of DNA polymerase ∑ 3.14 catalysis ", 20), 20, TypeImageHotspot)

	assert.GreaterOrEqual(t, easy, MinDifficulty)
	assert.LessOrEqual(t, hard, MaxDifficulty)
	assert.Greater(t, hard, easy)
	assert.Equal(t, MinDifficulty, Difficulty("", 0, TypeQA))
}
