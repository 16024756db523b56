// Package cards turns knowledge points and captioned figures into flashcards.
package cards

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"docflash-be/pkg/knowledge"
	"docflash-be/pkg/parser"

	"github.com/google/uuid"
)

type Type string

const (
	TypeQA           Type = "QA"
	TypeCloze        Type = "CLOZE"
	TypeImageHotspot Type = "IMAGE_HOTSPOT"
)

const (
	MinDifficulty = 1.0
	MaxDifficulty = 5.0
	clozeBlank    = "_____"
	maxClozeTerms = 3
)

// KnowledgeInput is a persisted knowledge point.
type KnowledgeInput struct {
	ID        uuid.UUID
	ChapterID uuid.UUID
	Type      knowledge.Type
	Text      string
	Entities  []string
}

// FigureInput is a persisted figure with its caption.
type FigureInput struct {
	ID          uuid.UUID
	ChapterID   uuid.UUID
	Caption     string
	StoragePath string
	BBox        parser.BoundingBox
}

type Card struct {
	KnowledgeID uuid.UUID
	Type        Type
	Front       string
	Back        string
	Difficulty  float64
	Metadata    map[string]interface{}
}

type Generator struct{}

func NewGenerator() *Generator { return &Generator{} }

// Generate produces at least one card per knowledge point plus one image
// hotspot card per captioned figure whose caption names entities from the
// same chapter.
func (g *Generator) Generate(points []KnowledgeInput, figures []FigureInput) []Card {
	out := make([]Card, 0, len(points)+len(figures))
	for _, kp := range points {
		out = append(out, g.forKnowledge(kp))
	}
	for _, fig := range figures {
		if card, ok := g.hotspot(fig, points); ok {
			out = append(out, card)
		}
	}
	return out
}

func (g *Generator) forKnowledge(kp KnowledgeInput) Card {
	switch kp.Type {
	case knowledge.TypeDefinition, knowledge.TypeConcept:
		return g.qa(kp, definitionQuestion)
	case knowledge.TypeFact, knowledge.TypeTheorem:
		if card, ok := g.entityCloze(kp); ok {
			return card
		}
		if kp.Type == knowledge.TypeTheorem {
			return g.qa(kp, theoremQuestion)
		}
		return g.qa(kp, factQuestion)
	case knowledge.TypeProcess:
		if card, ok := g.stepCloze(kp); ok {
			return card
		}
		if card, ok := g.entityCloze(kp); ok {
			return card
		}
		return g.qa(kp, processQuestion)
	case knowledge.TypeExample:
		return g.qa(kp, exampleQuestion)
	}
	return g.qa(kp, factQuestion)
}

type questionFunc func(term string, zh bool) string

func definitionQuestion(term string, zh bool) string {
	if zh {
		return "什么是" + term + "？"
	}
	return fmt.Sprintf("What is %s?", term)
}

func theoremQuestion(term string, zh bool) string {
	if zh {
		return "请陈述：" + term
	}
	return fmt.Sprintf("State the result about %s.", term)
}

func factQuestion(term string, zh bool) string {
	if zh {
		return "关于" + term + "，有哪些要点？"
	}
	return fmt.Sprintf("What is known about %s?", term)
}

func processQuestion(term string, zh bool) string {
	if zh {
		return term + "的过程是怎样的？"
	}
	return fmt.Sprintf("Describe the process of %s.", term)
}

func exampleQuestion(term string, zh bool) string {
	if zh {
		return "举例说明" + term + "。"
	}
	return fmt.Sprintf("Give an example that illustrates %s.", term)
}

func (g *Generator) qa(kp KnowledgeInput, question questionFunc) Card {
	term := knowledge.ExtractTerm(kp.Text, kp.Entities)
	zh := knowledge.DetectLanguage(kp.Text) == knowledge.LangChinese
	return Card{
		KnowledgeID: kp.ID,
		Type:        TypeQA,
		Front:       question(term, zh),
		Back:        kp.Text,
		Difficulty:  Difficulty(kp.Text, len(kp.Entities), TypeQA),
		Metadata: map[string]interface{}{
			"term":           term,
			"knowledge_type": string(kp.Type),
		},
	}
}

// entityCloze blanks up to three entities that occur verbatim in the text,
// longest first so nested terms do not split a longer one.
func (g *Generator) entityCloze(kp KnowledgeInput) (Card, bool) {
	candidates := append([]string(nil), kp.Entities...)
	sort.SliceStable(candidates, func(a, b int) bool {
		return utf8.RuneCountInString(candidates[a]) > utf8.RuneCountInString(candidates[b])
	})

	front := kp.Text
	anki := kp.Text
	var blanks []string
	for _, ent := range candidates {
		if len(blanks) == maxClozeTerms {
			break
		}
		if ent == "" || !strings.Contains(front, ent) {
			continue
		}
		n := len(blanks) + 1
		front = strings.Replace(front, ent, clozeBlank, 1)
		anki = strings.Replace(anki, ent, fmt.Sprintf("{{c%d::%s}}", n, ent), 1)
		blanks = append(blanks, ent)
	}
	if len(blanks) == 0 {
		return Card{}, false
	}

	return Card{
		KnowledgeID: kp.ID,
		Type:        TypeCloze,
		Front:       front,
		Back:        kp.Text,
		Difficulty:  Difficulty(kp.Text, len(kp.Entities), TypeCloze),
		Metadata: map[string]interface{}{
			"blanks":         blanks,
			"cloze":          anki,
			"knowledge_type": string(kp.Type),
		},
	}, true
}

func (g *Generator) stepCloze(kp KnowledgeInput) (Card, bool) {
	steps := knowledge.SplitSteps(kp.Text)
	if len(steps) < 2 {
		return Card{}, false
	}
	term := knowledge.ExtractTerm(kp.Text, kp.Entities)
	zh := knowledge.DetectLanguage(kp.Text) == knowledge.LangChinese

	var front, back, anki strings.Builder
	if zh {
		front.WriteString(term + "的步骤：")
	} else {
		front.WriteString("Steps of " + term + ":")
	}
	for i, s := range steps {
		fmt.Fprintf(&front, "\n%d. %s", i+1, clozeBlank)
		fmt.Fprintf(&back, "%d. %s\n", i+1, s)
		fmt.Fprintf(&anki, "%d. {{c%d::%s}}\n", i+1, i+1, s)
	}

	return Card{
		KnowledgeID: kp.ID,
		Type:        TypeCloze,
		Front:       front.String(),
		Back:        strings.TrimRight(back.String(), "\n"),
		Difficulty:  Difficulty(kp.Text, len(kp.Entities)+len(steps), TypeCloze),
		Metadata: map[string]interface{}{
			"blanks":         steps,
			"cloze":          strings.TrimRight(anki.String(), "\n"),
			"knowledge_type": string(kp.Type),
		},
	}, true
}

type hotspot struct {
	Label  string             `json:"label"`
	Region parser.BoundingBox `json:"region"`
}

// hotspot labels a figure with the chapter entities its caption mentions.
// The card belongs to the knowledge point sharing the most of those labels.
func (g *Generator) hotspot(fig FigureInput, points []KnowledgeInput) (Card, bool) {
	if strings.TrimSpace(fig.Caption) == "" {
		return Card{}, false
	}
	caption := knowledge.Normalize(fig.Caption)

	var owner *KnowledgeInput
	ownerHits := 0
	seen := map[string]bool{}
	var labels []string

	for i := range points {
		kp := &points[i]
		if kp.ChapterID != fig.ChapterID {
			continue
		}
		hits := 0
		for _, ent := range kp.Entities {
			key := knowledge.Normalize(ent)
			if key == "" || !strings.Contains(caption, key) {
				continue
			}
			hits++
			if !seen[key] {
				seen[key] = true
				labels = append(labels, ent)
			}
		}
		if hits > ownerHits {
			owner, ownerHits = kp, hits
		}
	}
	if owner == nil {
		return Card{}, false
	}

	spots := make([]hotspot, 0, len(labels))
	for _, l := range labels {
		spots = append(spots, hotspot{Label: l, Region: fig.BBox})
	}

	zh := knowledge.DetectLanguage(fig.Caption) == knowledge.LangChinese
	front := "Identify the labelled parts: " + fig.Caption
	if zh {
		front = "请识别图中标注的部分：" + fig.Caption
	}

	return Card{
		KnowledgeID: owner.ID,
		Type:        TypeImageHotspot,
		Front:       front,
		Back:        strings.Join(labels, ", "),
		Difficulty:  Difficulty(fig.Caption, len(labels), TypeImageHotspot),
		Metadata: map[string]interface{}{
			"figure_id":    fig.ID.String(),
			"image_path":   fig.StoragePath,
			"hotspots":     spots,
			"caption":      fig.Caption,
			"label_count":  len(labels),
			"knowledge_id": owner.ID.String(),
		},
	}, true
}

var (
	sentenceSplitRe = regexp.MustCompile(`[.!?。！？]+`)
	technicalRe     = regexp.MustCompile(`(?i)\b[a-z]+(?:tion|ism|ology|ity|ence|ance|ics|esis|ase)\b|[A-Z]{2,}|\d+(?:\.\d+)?|[=+×÷<>≤≥∑∫]`)
)

// Difficulty rises with entity count, sentence length and the density of
// technical vocabulary, clamped to [MinDifficulty, MaxDifficulty].
func Difficulty(text string, entityCount int, cardType Type) float64 {
	d := MinDifficulty
	d += math.Min(float64(entityCount), 5) * 0.3

	words := strings.Fields(text)
	wordCount := len(words)
	if knowledge.DetectLanguage(text) == knowledge.LangChinese {
		// no spaces to count; roughly two characters per word
		wordCount = utf8.RuneCountInString(text) / 2
	}
	sentences := 0
	for _, s := range sentenceSplitRe.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	if sentences == 0 {
		sentences = 1
	}
	d += math.Min(float64(wordCount)/float64(sentences)/10, 1.5)

	if wordCount > 0 {
		density := float64(len(technicalRe.FindAllString(text, -1))) / float64(wordCount)
		d += math.Min(density*2, 1)
	}

	switch cardType {
	case TypeCloze:
		d += 0.3
	case TypeImageHotspot:
		d += 0.5
	}

	return math.Round(math.Max(MinDifficulty, math.Min(MaxDifficulty, d))*100) / 100
}
