/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package rules holds the password rules and the sequential unlock engine
// that evaluates a password against them.
package rules

// Rule is a single password requirement.
type Rule interface {
	Message() string
	Check(password string) bool
}

// Regenerator is implemented by rules with a randomized target that a
// player may re-roll.
type Regenerator interface {
	Regenerate()
}

// AnswerSource supplies an externally fetched answer. Answer must not
// block; it returns "" until a value has been resolved.
type AnswerSource interface {
	Answer() string
}

// Catalog builds fresh rule lists in the canonical unlock order.
type Catalog struct {
	answers AnswerSource
}

func NewCatalog(answers AnswerSource) *Catalog {
	return &Catalog{answers: answers}
}

// New returns a new rule list. Each call returns independent instances so
// regenerating one player's rule never affects another player. The daily
// word rule is only included when the catalog has an answer source.
func (c *Catalog) New() []Rule {
	out := []Rule{
		MinLength(5),
		ContainsDigit(),
		ContainsUppercase(),
		ContainsSpecial(),
		DigitSum(25),
		ContainsMonth(),
		ContainsRoman(),
		NewRomanSum(35),
	}
	if c.answers != nil {
		out = append(out, NewDailyWord(c.answers))
	}
	return out
}

// Count is the number of rules New returns.
func (c *Catalog) Count() int {
	return len(c.New())
}

// Messages returns the display text of each rule, in order.
func Messages(rules []Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Message()
	}
	return out
}
