package knowledge

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

type EntityType string

const (
	EntityNamed     EntityType = "named_entity"
	EntityTechnical EntityType = "technical_term"
)

type Entity struct {
	Text       string
	Type       EntityType
	Confidence float64
	Frequency  int
	Score      float64
	firstSeen  int
}

type EntityOptions struct {
	SimilarityThreshold float64
	MaxEntities         int
}

func DefaultEntityOptions() EntityOptions {
	return EntityOptions{SimilarityThreshold: 0.85, MaxEntities: 10}
}

type entityRule struct {
	re         *regexp.Regexp
	group      int
	kind       EntityType
	confidence float64
}

var (
	englishRules = []entityRule{
		{regexp.MustCompile(`"([^"\n]{2,40})"|“([^”\n]{2,40})”`), -1, EntityTechnical, 0.75},
		{regexp.MustCompile(`\b([A-Z][a-zA-Z]+(?:\s+(?:of|de|von|van|the|and)?\s*[A-Z][a-zA-Z]+)+)\b`), 1, EntityNamed, 0.8},
		{regexp.MustCompile(`\b([A-Z]{2,6}s?)\b`), 1, EntityTechnical, 0.7},
		{regexp.MustCompile(`\b([a-z]+(?:[A-Z][a-z0-9]+)+)\b`), 1, EntityTechnical, 0.6},
		{regexp.MustCompile(`\b([A-Za-z]+[0-9]+[A-Za-z0-9]*|[A-Za-z]{2,}(?:-[A-Za-z0-9]{2,})+)\b`), 1, EntityTechnical, 0.5},
	}
	chineseRules = []entityRule{
		{regexp.MustCompile(`《([^》]{1,30})》`), 1, EntityNamed, 0.85},
		{regexp.MustCompile(`[“「『"]([^”」』"]{2,20})[”」』"]`), 1, EntityTechnical, 0.8},
		{regexp.MustCompile(`(?:所谓)?([\p{Han}A-Za-z0-9]{2,10}?)(?:是指|定义为|称为|叫做)`), 1, EntityTechnical, 0.75},
		{regexp.MustCompile(`([\p{Han}]{1,8}?(?:算法|系统|模型|定理|方法|原理|函数|结构|网络|理论|协议|公式|定律|机制|反应|作用))`), 1, EntityTechnical, 0.7},
		{regexp.MustCompile(`\b([A-Z]{2,6}s?)\b`), 1, EntityTechnical, 0.7},
	}

	leadingStopwords = map[string]bool{
		"the": true, "a": true, "an": true, "this": true, "that": true, "these": true,
		"those": true, "in": true, "on": true, "at": true, "for": true, "when": true,
		"if": true, "as": true, "by": true, "it": true, "its": true, "our": true, "we": true,
	}
	stopTerms = map[string]bool{
		"i": true, "ok": true, "id": true, "vs": true, "etc": true, "eg": true, "ie": true,
		"我们": true, "他们": true, "这个": true, "一个": true,
	}
)

type EntityExtractor struct {
	opts EntityOptions
}

func NewEntityExtractor(opts EntityOptions) *EntityExtractor {
	def := DefaultEntityOptions()
	if opts.SimilarityThreshold <= 0 || opts.SimilarityThreshold > 1 {
		opts.SimilarityThreshold = def.SimilarityThreshold
	}
	if opts.MaxEntities <= 0 {
		opts.MaxEntities = def.MaxEntities
	}
	return &EntityExtractor{opts: opts}
}

// Extract finds named entities and technical terms, merges near duplicates
// and returns them best first. lang may be empty to auto-detect. Terms that
// also appear in any of the hints (chapter titles and the like) rank higher.
func (x *EntityExtractor) Extract(text, lang string, hints ...string) []Entity {
	if strings.TrimSpace(text) == "" {
		return []Entity{}
	}
	if lang == "" {
		lang = DetectLanguage(text)
	}
	rules := englishRules
	if lang == LangChinese {
		rules = chineseRules
	}

	var found []Entity
	for _, rule := range rules {
		for _, m := range rule.re.FindAllStringSubmatchIndex(text, -1) {
			term, start := matchText(text, m, rule.group)
			term = cleanEntity(term)
			if !validEntity(term) {
				continue
			}
			found = append(found, Entity{
				Text:       term,
				Type:       rule.kind,
				Confidence: rule.confidence,
				firstSeen:  start,
			})
		}
	}
	if len(found) == 0 {
		return []Entity{}
	}

	merged := x.dedupe(found)
	folded := Normalize(text)
	normHints := make([]string, 0, len(hints))
	for _, h := range hints {
		normHints = append(normHints, Normalize(h))
	}

	for i := range merged {
		key := Normalize(merged[i].Text)
		merged[i].Frequency = maxInt(1, strings.Count(folded, key))
		merged[i].Score = score(merged[i], key, normHints)
	}

	sort.SliceStable(merged, func(a, b int) bool {
		if merged[a].Score != merged[b].Score {
			return merged[a].Score > merged[b].Score
		}
		return merged[a].firstSeen < merged[b].firstSeen
	})
	if len(merged) > x.opts.MaxEntities {
		merged = merged[:x.opts.MaxEntities]
	}
	return merged
}

// Texts is a convenience for callers that only store the strings.
func Texts(entities []Entity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Text)
	}
	return out
}

func matchText(text string, m []int, group int) (string, int) {
	if group >= 0 {
		return text[m[2*group]:m[2*group+1]], m[2*group]
	}
	for g := 1; 2*g+1 < len(m); g++ {
		if m[2*g] >= 0 {
			return text[m[2*g]:m[2*g+1]], m[2*g]
		}
	}
	return text[m[0]:m[1]], m[0]
}

func cleanEntity(term string) string {
	term = strings.TrimSpace(term)
	words := strings.Fields(term)
	for len(words) > 1 && leadingStopwords[strings.ToLower(words[0])] {
		words = words[1:]
	}
	return strings.Trim(strings.Join(words, " "), `.,;:!?"'()[]{}`)
}

func validEntity(term string) bool {
	n := utf8.RuneCountInString(term)
	if n < 2 || n > 60 {
		return false
	}
	return !stopTerms[strings.ToLower(term)] && !leadingStopwords[strings.ToLower(term)]
}

// dedupe merges entities whose normalized forms are equal or within the
// similarity threshold. The earliest occurrence keeps its spelling.
func (x *EntityExtractor) dedupe(in []Entity) []Entity {
	sort.SliceStable(in, func(a, b int) bool { return in[a].firstSeen < in[b].firstSeen })

	var out []Entity
	var keys []string
	for _, e := range in {
		key := Normalize(e.Text)
		merged := false
		for i, k := range keys {
			if k == key || similarity(k, key) >= x.opts.SimilarityThreshold {
				if e.Confidence > out[i].Confidence {
					out[i].Confidence = e.Confidence
					out[i].Type = e.Type
				}
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, e)
			keys = append(keys, key)
		}
	}
	return out
}

func similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := maxInt(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func score(e Entity, key string, hints []string) float64 {
	s := e.Confidence*0.5 + minFloat(float64(e.Frequency)/5, 1)*0.3
	for _, h := range hints {
		if strings.Contains(h, key) {
			s += 0.2
			break
		}
	}
	if e.Type == EntityTechnical {
		s += 0.05
	}
	return s
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
