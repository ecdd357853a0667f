/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rules

// State is the per-player view of a single rule.
type State struct {
	Num      int  `json:"num" validate:"min=1"`
	Unlocked bool `json:"unlocked"`
	Correct  bool `json:"correct"`
}

// Result is the outcome of evaluating one password against a rule list.
type Result struct {
	States      []State
	Solved      int
	AllSolved   bool
	MaxUnlocked int
}

// NewStates returns an all-locked state vector for n rules.
func NewStates(n int) []State {
	states := make([]State, n)
	for i := range states {
		states[i].Num = i + 1
	}
	return states
}

// Unlocked counts the unlocked prefix of a state vector.
func Unlocked(states []State) int {
	n := 0
	for _, s := range states {
		if !s.Unlocked {
			break
		}
		n++
	}
	return n
}

// Evaluate checks password against rules in order, unlocking the next rule
// only while every rule before it is currently correct. Rules are never
// re-locked and the unlock frontier never moves backwards. prior is not
// modified; a prior vector of the wrong length is treated as all-locked.
func Evaluate(password string, rules []Rule, prior []State) Result {
	states := NewStates(len(rules))
	if len(prior) == len(rules) {
		for i := range prior {
			states[i].Unlocked = prior[i].Unlocked
		}
	}

	frontier := Unlocked(states)

	if len(states) > 0 && !states[0].Unlocked && password != "" {
		states[0].Unlocked = true
		frontier++
	}

	solved := 0
	for i := range rules {
		if i == frontier {
			if frontier == 0 || solved != frontier {
				break
			}
			states[i].Unlocked = true
			frontier++
		}

		states[i].Correct = rules[i].Check(password)
		if states[i].Correct {
			solved++
		}
	}

	return Result{
		States:      states,
		Solved:      solved,
		AllSolved:   len(rules) > 0 && solved == len(rules),
		MaxUnlocked: frontier,
	}
}

// Recheck re-evaluates only rule num against password, leaving every other
// rule's state as it was. Used after a rule's target has been regenerated.
func Recheck(password string, rules []Rule, prior []State, num int) Result {
	states := make([]State, len(prior))
	copy(states, prior)

	if num >= 1 && num <= len(states) && states[num-1].Unlocked {
		states[num-1].Correct = rules[num-1].Check(password)
	}

	solved := 0
	for _, s := range states {
		if s.Correct {
			solved++
		}
	}

	return Result{
		States:      states,
		Solved:      solved,
		AllSolved:   len(rules) > 0 && solved == len(rules),
		MaxUnlocked: Unlocked(states),
	}
}
