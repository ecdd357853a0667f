/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rules

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

type predicate struct {
	message string
	check   func(string) bool
}

func (p predicate) Message() string {
	return p.message
}

func (p predicate) Check(password string) bool {
	return p.check(password)
}

func MinLength(n int) Rule {
	return predicate{
		message: fmt.Sprintf("Your password must be at least %d characters.", n),
		check: func(s string) bool {
			return utf8.RuneCountInString(s) >= n
		},
	}
}

func ContainsDigit() Rule {
	return predicate{
		message: "Your password must include a number.",
		check: func(s string) bool {
			return strings.IndexFunc(s, unicode.IsDigit) >= 0
		},
	}
}

func ContainsUppercase() Rule {
	return predicate{
		message: "Your password must include an uppercase letter.",
		check: func(s string) bool {
			return strings.IndexFunc(s, unicode.IsUpper) >= 0
		},
	}
}

func ContainsSpecial() Rule {
	return predicate{
		message: "Your password must include a special character.",
		check: func(s string) bool {
			return strings.IndexFunc(s, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
			}) >= 0
		},
	}
}

func DigitSum(target int) Rule {
	return predicate{
		message: fmt.Sprintf("The digits in your password must add up to %d.", target),
		check: func(s string) bool {
			sum := 0
			for _, r := range s {
				if r >= '0' && r <= '9' {
					sum += int(r - '0')
				}
			}
			return sum == target
		},
	}
}

var months = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

func ContainsMonth() Rule {
	return predicate{
		message: "Your password must include a month of the year.",
		check: func(s string) bool {
			lower := strings.ToLower(s)
			for _, m := range months {
				if strings.Contains(lower, m) {
					return true
				}
			}
			return false
		},
	}
}

var romanValues = map[rune]int{
	'I': 1,
	'V': 5,
	'X': 10,
	'L': 50,
	'C': 100,
	'D': 500,
	'M': 1000,
}

func ContainsRoman() Rule {
	return predicate{
		message: "Your password must include a Roman numeral.",
		check: func(s string) bool {
			return strings.IndexFunc(s, func(r rune) bool {
				_, ok := romanValues[r]
				return ok
			}) >= 0
		},
	}
}

// RomanSum requires the uppercase Roman numeral letters in the password to
// add up to a target that can be re-rolled.
type RomanSum struct {
	mu     sync.Mutex
	target int
	draw   func() int
}

const (
	romanSumMin = 10
	romanSumMax = 60
)

func NewRomanSum(target int) *RomanSum {
	return &RomanSum{
		target: target,
		draw: func() int {
			return romanSumMin + rand.IntN(romanSumMax-romanSumMin+1)
		},
	}
}

func (r *RomanSum) Target() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.target
}

func (r *RomanSum) Message() string {
	return fmt.Sprintf("The Roman numerals in your password must add up to %d.", r.Target())
}

func (r *RomanSum) Check(s string) bool {
	sum := 0
	for _, c := range s {
		sum += romanValues[c]
	}
	return sum > 0 && sum == r.Target()
}

// Regenerate draws a new target different from the current one.
func (r *RomanSum) Regenerate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.draw()
	for next == r.target {
		next = r.draw()
	}
	r.target = next
}

// DailyWord requires today's word-puzzle answer, matched case-insensitively.
type DailyWord struct {
	answers AnswerSource
}

func NewDailyWord(answers AnswerSource) *DailyWord {
	return &DailyWord{answers: answers}
}

func (d *DailyWord) Message() string {
	return "Your password must contain today's Wordle answer."
}

func (d *DailyWord) Check(s string) bool {
	if d.answers == nil {
		return false
	}
	answer := d.answers.Answer()
	if answer == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(answer))
}
