// Package classify selects a transaction type and category for a
// normalized line item. It is a pure function over an ordered rule
// snapshot: user rules first, then per-source heuristics, then the
// No-Label fallback. Repeated calls with the same inputs always return
// the same assignment.
package classify

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"lucid/internal/core"
)

// Assignment is the categorization outcome for a line.
type Assignment struct {
	Type     core.TransactionType
	Category string
	SubType  core.SubType
}

type compiledRule struct {
	rule core.Rule
	re   *regexp.Regexp // nil for substring rules
}

// RuleSet is an immutable, ordered snapshot of active rules. Rules are
// evaluated in ascending priority, ties broken by rule ID ascending, and
// the first match wins. Regex patterns are compiled once at build time.
type RuleSet struct {
	rules []compiledRule
}

// NewRuleSet builds a snapshot from authored rules. Inactive rules are
// dropped; an invalid regex pattern is a build error so that a bad rule
// cannot silently change categorization results.
func NewRuleSet(rules []core.Rule) (*RuleSet, error) {
	active := make([]core.Rule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority < active[j].Priority
		}
		return active[i].ID < active[j].ID
	})

	rs := &RuleSet{rules: make([]compiledRule, 0, len(active))}
	for _, r := range active {
		cr := compiledRule{rule: r}
		if r.IsRegex {
			pattern := r.Pattern
			if !r.CaseSensitive {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("rule %d: compiling pattern %q: %w", r.ID, r.Pattern, err)
			}
			cr.re = re
		}
		rs.rules = append(rs.rules, cr)
	}
	return rs, nil
}

// Len returns the number of active rules in the snapshot.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// Match returns the first rule matching the description and unsigned
// amount, in priority order. A rule matches only if both its pattern and,
// when present, its amount predicate succeed.
func (rs *RuleSet) Match(description string, amount core.Money) (core.Rule, bool) {
	if description == "" {
		return core.Rule{}, false
	}
	for _, cr := range rs.rules {
		if !cr.matchPattern(description) {
			continue
		}
		r := cr.rule
		if r.AmountOp != "" && !r.AmountOp.Eval(amount.Abs(), core.Money{Cents: r.AmountCents}) {
			continue
		}
		return r, true
	}
	return core.Rule{}, false
}

func (cr compiledRule) matchPattern(description string) bool {
	if cr.re != nil {
		return cr.re.MatchString(description)
	}
	r := cr.rule
	if r.CaseSensitive {
		return strings.Contains(description, r.Pattern)
	}
	return strings.Contains(strings.ToLower(description), strings.ToLower(r.Pattern))
}

// Classify assigns type, category and sub-type to a line. User rules are
// consulted first; if none matches, the per-source heuristic tables; if
// those also fail the line is left for manual review as No-Label.
func Classify(line core.NormalizedLine, rules *RuleSet) Assignment {
	if rule, ok := rules.Match(line.Description(), line.Amount); ok {
		return Assignment{
			Type:     rule.Type,
			Category: rule.Category,
			SubType:  core.AutoSubType(rule.Category, ""),
		}
	}

	a := heuristicAssign(line)
	a.SubType = core.AutoSubType(a.Category, a.SubType)
	return a
}
