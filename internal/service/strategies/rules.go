package strategies

import (
	"fmt"
	"strconv"
	"strings"

	"SigForge/internal/engine"
)

// Entry rules are conjunctions of indicator comparisons, e.g.
// "rsi < 30 && momentum > 0". The name "price" compares against the
// snapshot price; anything else looks up the indicator map. A clause
// over a missing indicator evaluates to false, so a strategy never
// enters on data it does not have.

type clause struct {
	name  string
	op    string
	value float64
}

func (c clause) eval(price float64, indicators map[string]float64) bool {
	var v float64
	if c.name == "price" {
		v = price
	} else {
		got, ok := indicators[c.name]
		if !ok {
			return false
		}
		v = got
	}
	switch c.op {
	case "<":
		return v < c.value
	case "<=":
		return v <= c.value
	case ">":
		return v > c.value
	case ">=":
		return v >= c.value
	case "==":
		return v == c.value
	case "!=":
		return v != c.value
	}
	return false
}

// CompileRule parses an entry rule expression into a predicate. An
// unparseable expression is a configuration error.
func CompileRule(expr string) (engine.RuleFunc, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty entry rule")
	}
	parts := strings.Split(expr, "&&")
	clauses := make([]clause, 0, len(parts))
	for _, part := range parts {
		c, err := parseClause(part)
		if err != nil {
			return nil, fmt.Errorf("entry rule %q: %w", expr, err)
		}
		clauses = append(clauses, c)
	}
	return func(price float64, indicators map[string]float64) bool {
		for _, c := range clauses {
			if !c.eval(price, indicators) {
				return false
			}
		}
		return true
	}, nil
}

// Operators ordered so two-character forms match before their
// one-character prefixes.
var operators = []string{"<=", ">=", "==", "!=", "<", ">"}

func parseClause(part string) (clause, error) {
	part = strings.TrimSpace(part)
	for _, op := range operators {
		idx := strings.Index(part, op)
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(part[:idx])
		raw := strings.TrimSpace(part[idx+len(op):])
		if name == "" {
			return clause{}, fmt.Errorf("missing indicator name in %q", part)
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return clause{}, fmt.Errorf("bad comparison value %q", raw)
		}
		return clause{name: name, op: op, value: value}, nil
	}
	return clause{}, fmt.Errorf("no comparison operator in %q", part)
}
