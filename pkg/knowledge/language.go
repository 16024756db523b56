package knowledge

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	LangEnglish = "en"
	LangChinese = "zh"
)

// CJKRatioThreshold is the share of Han characters among letters above which
// text is treated as Chinese.
const CJKRatioThreshold = 0.3

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

func DetectLanguage(text string) string {
	letters, han := 0, 0
	for _, r := range text {
		switch {
		case isCJK(r):
			han++
			letters++
		case unicode.IsLetter(r):
			letters++
		}
	}
	if letters == 0 {
		return LangEnglish
	}
	if float64(han)/float64(letters) > CJKRatioThreshold {
		return LangChinese
	}
	return LangEnglish
}

// Normalize prepares a term for comparison: NFKC, case folded, single spaces.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

var (
	termTriggerEN = regexp.MustCompile(`(?i)^(?:an?\s+|the\s+)?(.{2,80}?)\s+(?:is defined as|is called|refers to|is known as|is termed|means|denotes|is the|is an?|are)\b`)
	termTriggerZH = regexp.MustCompile(`^(.{1,20}?)(?:是指|定义为|称为|叫做|指的是|是一种|是)`)
	leadingTermZH = regexp.MustCompile(`^所谓(.{1,20}?)[，,]`)
	wordRe        = regexp.MustCompile(`[\p{L}\p{N}'-]+`)
)

// ExtractTerm picks the subject a statement is about: the phrase before a
// defining verb when there is one, otherwise the first entity, otherwise the
// opening words.
func ExtractTerm(text string, entities []string) string {
	text = strings.TrimSpace(text)
	if DetectLanguage(text) == LangChinese {
		if m := leadingTermZH.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
		if m := termTriggerZH.FindStringSubmatch(text); m != nil {
			return strings.Trim(strings.TrimSpace(m[1]), "“”《》\"")
		}
	} else if m := termTriggerEN.FindStringSubmatch(text); m != nil {
		term := strings.Trim(strings.TrimSpace(m[1]), `"'`)
		if len(strings.Fields(term)) <= 8 {
			return term
		}
	}

	if len(entities) > 0 {
		return entities[0]
	}

	words := wordRe.FindAllString(text, 6)
	if len(words) == 0 {
		return text
	}
	return strings.Join(words, " ")
}

var (
	stepLineRe   = regexp.MustCompile(`(?m)^\s*(?:\d{1,2}[.)、]|\(\d{1,2}\)|step\s+\d+[:.]?|第[一二三四五六七八九十\d]+步[:：]?)\s*(.+)$`)
	stepInlineRe = regexp.MustCompile(`(?i)(?:^|\s)(?:\(?\d{1,2}[.)]|step\s+\d+[:.]?)\s+`)
	stepWordsRe  = regexp.MustCompile(`(?i)\b(first(?:ly)?|second(?:ly)?|then|next|after that|finally|lastly)\b,?\s*`)
	stepWordsZH  = regexp.MustCompile(`(首先|其次|然后|接着|之后|最后)[，,]?`)
)

// SplitSteps breaks a procedure into its steps, whether they are numbered,
// introduced by ordinal words or written one per line. Fewer than two steps
// means the text is not a usable procedure.
func SplitSteps(text string) []string {
	if m := stepLineRe.FindAllStringSubmatch(text, -1); len(m) >= 2 {
		steps := make([]string, 0, len(m))
		for _, s := range m {
			steps = append(steps, strings.TrimSpace(s[1]))
		}
		return steps
	}

	for _, re := range []*regexp.Regexp{stepInlineRe, stepWordsRe, stepWordsZH} {
		locs := re.FindAllStringIndex(text, -1)
		if len(locs) < 2 {
			continue
		}
		var steps []string
		for i, loc := range locs {
			end := len(text)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			step := strings.Trim(strings.TrimSpace(text[loc[1]:end]), ",;，；")
			if step != "" {
				steps = append(steps, step)
			}
		}
		if len(steps) >= 2 {
			return steps
		}
	}
	return nil
}
