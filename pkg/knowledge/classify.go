package knowledge

import "regexp"

type Type string

const (
	TypeDefinition Type = "DEFINITION"
	TypeFact       Type = "FACT"
	TypeTheorem    Type = "THEOREM"
	TypeProcess    Type = "PROCESS"
	TypeExample    Type = "EXAMPLE"
	TypeConcept    Type = "CONCEPT"
)

var AllTypes = []Type{TypeDefinition, TypeFact, TypeTheorem, TypeProcess, TypeExample, TypeConcept}

func (t Type) Valid() bool {
	for _, v := range AllTypes {
		if v == t {
			return true
		}
	}
	return false
}

type Rule struct {
	Type    Type
	Pattern *regexp.Regexp
	Weight  float64
}

// DefaultRules are checked in order and the first match decides the type.
var DefaultRules = []Rule{
	{TypeDefinition, regexp.MustCompile(`(?i)\b(is defined as|is called|refers to|is known as|is termed|we define|denotes|by definition)\b`), 0.9},
	{TypeDefinition, regexp.MustCompile(`定义为|是指|称为|叫做|指的是|所谓`), 0.9},
	{TypeTheorem, regexp.MustCompile(`(?i)\b(theorem|lemma|corollary|law of|axiom|proposition)\b`), 0.85},
	{TypeTheorem, regexp.MustCompile(`定理|引理|推论|定律|公理`), 0.85},
	{TypeProcess, regexp.MustCompile(`(?i)(\bthe process of\b|\bprocess by which\b|\bsteps?\s+(?:to|for|of|\d)|\bprocedure\b|\bworkflow\b|\bfirst(?:ly)?\b.*\bthen\b|(?:^|\s)1[.)]\s.*\s2[.)]\s)`), 0.8},
	{TypeProcess, regexp.MustCompile(`过程|步骤|流程|首先.*然后|第[一二三四五六七八九十\d]+步`), 0.8},
	{TypeExample, regexp.MustCompile(`(?i)\b(for example|for instance|e\.g\.|such as|consider the case|as an example)`), 0.75},
	{TypeExample, regexp.MustCompile(`例如|比如|举例|譬如|例子`), 0.75},
	{TypeConcept, regexp.MustCompile(`(?i)\b(the concept of|the idea of|is a type of|is a kind of|is a form of|consists of|is composed of|principle)\b`), 0.7},
	{TypeConcept, regexp.MustCompile(`概念|是一种|属于|原理|由.{1,20}组成`), 0.7},
	{TypeFact, regexp.MustCompile(`(?i)(\b(1[0-9]{3}|20[0-9]{2})\b|\d+(?:\.\d+)?\s?%|\bpercent\b|\bdiscovered\b|\binvented\b|\bfounded\b|\baccording to\b|\bresearch shows\b)`), 0.6},
	{TypeFact, regexp.MustCompile(`发现|发明|成立|据统计|研究表明|\d+(?:\.\d+)?%|\d{4}年`), 0.6},
}

// DefaultType applies when no rule matches.
const DefaultType = TypeFact

// Classify returns the type of the first matching rule and its weight, or
// DefaultType with zero weight.
func Classify(text string, rules []Rule) (Type, float64) {
	for _, r := range rules {
		if r.Pattern.MatchString(text) {
			return r.Type, r.Weight
		}
	}
	return DefaultType, 0
}
