package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashProvider embeds text with signed feature hashing over word unigrams,
// word bigrams and, for CJK runs, character bigrams. It needs no model and
// is deterministic, which keeps similarity search usable offline.
type HashProvider struct {
	dim int
}

func NewHashProvider(dim int) *HashProvider {
	if dim <= 0 {
		dim = 384
	}
	return &HashProvider{dim: dim}
}

func (p *HashProvider) Dimension() int { return p.dim }

func (p *HashProvider) Generate(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dim)
	features := hashFeatures(text)
	for _, f := range features {
		h := fnv.New64a()
		_, _ = h.Write([]byte(f))
		sum := h.Sum64()
		idx := int(sum % uint64(p.dim))
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	return normalizeVector(vec), nil
}

func hashFeatures(text string) []string {
	var words []string
	var out []string

	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		runes := []rune(tok)
		if isCJK(runes) {
			for i := 0; i+1 < len(runes); i++ {
				out = append(out, "c:"+string(runes[i:i+2]))
			}
			if len(runes) == 1 {
				out = append(out, "c:"+tok)
			}
			continue
		}
		words = append(words, tok)
	}

	for i, w := range words {
		out = append(out, "w:"+w)
		if i+1 < len(words) {
			out = append(out, "b:"+w+" "+words[i+1])
		}
	}
	return out
}

func isCJK(runes []rune) bool {
	for _, r := range runes {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
