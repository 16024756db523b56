// Package knowledge cuts chapter text into segments, classifies each into a
// knowledge type and attaches the entities it mentions.
package knowledge

import (
	"math"
	"unicode/utf8"

	"docflash-be/pkg/parser"

	"github.com/google/uuid"
)

// Anchor points back to where a knowledge point came from.
type Anchor struct {
	Page         int                `json:"page"`
	Position     int                `json:"position"`
	BBox         parser.BoundingBox `json:"bbox"`
	ChapterTitle string             `json:"chapter_title,omitempty"`
}

type Point struct {
	ChapterID  uuid.UUID
	Type       Type
	Text       string
	Entities   []string
	Language   string
	Anchor     Anchor
	Confidence float64
}

type Options struct {
	MinSegmentLength int
	MaxEntities      int
	Rules            []Rule
	Entity           EntityOptions
}

func DefaultOptions() Options {
	return Options{
		MinSegmentLength: 20,
		MaxEntities:      10,
		Rules:            DefaultRules,
		Entity:           DefaultEntityOptions(),
	}
}

type Extractor struct {
	opts     Options
	entities *EntityExtractor
}

func NewExtractor(opts Options) *Extractor {
	if opts.MinSegmentLength <= 0 {
		opts.MinSegmentLength = DefaultOptions().MinSegmentLength
	}
	if opts.MaxEntities <= 0 {
		opts.MaxEntities = DefaultOptions().MaxEntities
	}
	if len(opts.Rules) == 0 {
		opts.Rules = DefaultRules
	}
	opts.Entity.MaxEntities = opts.MaxEntities
	return &Extractor{opts: opts, entities: NewEntityExtractor(opts.Entity)}
}

// Entities exposes the extractor's entity recogniser.
func (x *Extractor) Entities() *EntityExtractor { return x.entities }

// ExtractFromSegments yields at most one point per segment. Segments shorter
// than MinSegmentLength are skipped, so empty input gives an empty result.
func (x *Extractor) ExtractFromSegments(segments []Segment, chapterID uuid.UUID, chapterTitle string) []Point {
	points := make([]Point, 0, len(segments))
	for _, seg := range segments {
		if utf8.RuneCountInString(seg.Text) < x.opts.MinSegmentLength {
			continue
		}

		lang := DetectLanguage(seg.Text)
		kind, weight := Classify(seg.Text, x.opts.Rules)
		ents := x.entities.Extract(seg.Text, lang, chapterTitle)

		points = append(points, Point{
			ChapterID:  chapterID,
			Type:       kind,
			Text:       seg.Text,
			Entities:   Texts(ents),
			Language:   lang,
			Confidence: Confidence(seg.Text, weight, len(ents)),
			Anchor: Anchor{
				Page:         seg.Page,
				Position:     seg.Position,
				BBox:         seg.BBox,
				ChapterTitle: chapterTitle,
			},
		})
	}
	return points
}

// Confidence blends segment length, how strongly a rule matched and how
// many entities were found, clamped to [0, 1].
func Confidence(text string, ruleWeight float64, entityCount int) float64 {
	length := math.Min(float64(utf8.RuneCountInString(text))/300, 1)
	entities := math.Min(float64(entityCount)/5, 1)
	c := 0.3 + ruleWeight*0.4 + length*0.2 + entities*0.1
	return math.Max(0, math.Min(1, c))
}
