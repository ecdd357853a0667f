/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rules

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contains is satisfied by any password containing it.
type contains string

func (c contains) Message() string { return "must contain " + string(c) }
func (c contains) Check(s string) bool { return strings.Contains(s, string(c)) }

func testRules() []Rule {
	return []Rule{contains("a"), contains("b"), contains("c")}
}

func TestEvaluateEmptyPasswordUnlocksNothing(t *testing.T) {
	res := Evaluate("", testRules(), nil)

	assert.Equal(t, 0, res.MaxUnlocked)
	assert.Equal(t, 0, res.Solved)
	assert.False(t, res.AllSolved)
	for _, s := range res.States {
		assert.False(t, s.Unlocked, "rule %d", s.Num)
		assert.False(t, s.Correct, "rule %d", s.Num)
	}
}

func TestEvaluateUnlocksFirstRuleOnInput(t *testing.T) {
	res := Evaluate("x", testRules(), NewStates(3))

	want := []State{
		{Num: 1, Unlocked: true},
		{Num: 2},
		{Num: 3},
	}
	if diff := cmp.Diff(want, res.States); diff != "" {
		t.Fatalf("states mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, res.MaxUnlocked)
}

func TestEvaluateCascadesThroughSolvedRules(t *testing.T) {
	res := Evaluate("ab", testRules(), nil)

	want := []State{
		{Num: 1, Unlocked: true, Correct: true},
		{Num: 2, Unlocked: true, Correct: true},
		{Num: 3, Unlocked: true},
	}
	if diff := cmp.Diff(want, res.States); diff != "" {
		t.Fatalf("states mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, res.Solved)
	assert.Equal(t, 3, res.MaxUnlocked)
	assert.False(t, res.AllSolved)
}

func TestEvaluateAllSolved(t *testing.T) {
	res := Evaluate("abc", testRules(), nil)

	assert.True(t, res.AllSolved)
	assert.Equal(t, 3, res.Solved)
	for _, s := range res.States {
		assert.True(t, s.Unlocked)
		assert.True(t, s.Correct)
	}
}

func TestEvaluateNeverRelocks(t *testing.T) {
	rules := testRules()

	first := Evaluate("abc", rules, nil)
	require.True(t, first.AllSolved)

	second := Evaluate("z", rules, first.States)

	assert.Equal(t, 3, second.MaxUnlocked)
	for _, s := range second.States {
		assert.True(t, s.Unlocked, "rule %d was re-locked", s.Num)
		assert.False(t, s.Correct, "rule %d", s.Num)
	}
	assert.False(t, second.AllSolved)
}

func TestEvaluateStopsAtUnsolvedRule(t *testing.T) {
	res := Evaluate("c", testRules(), nil)

	assert.Equal(t, 1, res.MaxUnlocked)
	assert.False(t, res.States[2].Correct, "locked rules never report correct")
}

func TestEvaluateIsIdempotent(t *testing.T) {
	rules := testRules()
	for _, pw := range []string{"", "x", "a", "ab", "abc", "ca", "bca"} {
		once := Evaluate(pw, rules, nil)
		twice := Evaluate(pw, rules, once.States)

		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("password %q not idempotent (-once +twice):\n%s", pw, diff)
		}
	}
}

func TestEvaluateFrontierMonotonic(t *testing.T) {
	rules := testRules()
	sequence := []string{"", "a", "ab", "b", "", "abc", "a", "xyz", ""}

	var states []State
	prevMax := 0
	unlockedBefore := make([]bool, len(rules))

	for _, pw := range sequence {
		res := Evaluate(pw, rules, states)

		assert.GreaterOrEqual(t, res.MaxUnlocked, prevMax, "password %q", pw)
		assert.LessOrEqual(t, res.MaxUnlocked, len(rules))
		require.Len(t, res.States, len(rules))

		for i, s := range res.States {
			assert.Equal(t, i+1, s.Num)
			if unlockedBefore[i] {
				assert.True(t, s.Unlocked, "rule %d re-locked by %q", s.Num, pw)
			}
			if s.Correct {
				assert.True(t, s.Unlocked, "rule %d correct while locked", s.Num)
			}
			unlockedBefore[i] = s.Unlocked
		}

		if res.AllSolved {
			assert.Equal(t, len(rules), res.Solved)
		}

		prevMax = res.MaxUnlocked
		states = res.States
	}
}

func TestEvaluateDoesNotModifyPrior(t *testing.T) {
	prior := NewStates(3)
	_ = Evaluate("abc", testRules(), prior)

	assert.Equal(t, NewStates(3), prior)
}

func TestEvaluateIgnoresMismatchedPrior(t *testing.T) {
	res := Evaluate("", testRules(), []State{{Num: 1, Unlocked: true}})

	assert.Equal(t, 0, res.MaxUnlocked)
}

func TestRecheckOnlyTouchesOneRule(t *testing.T) {
	rules := testRules()
	prior := Evaluate("ab", rules, nil).States

	res := Recheck("abc", rules, prior, 3)

	assert.True(t, res.States[2].Correct)
	assert.Equal(t, prior[:2], res.States[:2])
	assert.True(t, res.AllSolved)
}

func TestRecheckLockedRuleStaysIncorrect(t *testing.T) {
	rules := testRules()
	prior := Evaluate("x", rules, nil).States

	res := Recheck("abc", rules, prior, 3)

	assert.False(t, res.States[2].Correct)
	assert.Equal(t, 1, res.MaxUnlocked)
}
