package conditionals

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Operator is a comparison used by a choice condition.
type Operator string

const (
	OpEqual    Operator = "=="
	OpNotEqual Operator = "!="
	OpGreater  Operator = ">"
	OpLess     Operator = "<"
)

// Valid reports whether op is one of the supported operators.
func (op Operator) Valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpGreater, OpLess:
		return true
	}
	return false
}

// Condition gates a choice on the value of a single flag.
type Condition struct {
	Flag  string   `json:"flag" yaml:"flag"`
	Op    Operator `json:"operator" yaml:"operator"`
	Value any      `json:"value" yaml:"value"`
}

// FlagView provides the minimal read access needed to evaluate conditions.
// This avoids an import cycle with the state package.
type FlagView interface {
	Flag(key string) (any, bool)
}

// UnmarshalJSON rejects unknown operators at load time.
func (c *Condition) UnmarshalJSON(data []byte) error {
	type Alias Condition
	aux := (*Alias)(c)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if !c.Op.Valid() {
		return fmt.Errorf("condition on %q: unsupported operator %q", c.Flag, c.Op)
	}
	return nil
}

// Evaluate checks the condition against the current flags.
// A missing flag compares as nil. Ordering operators require numeric operands
// and evaluate to false otherwise.
func Evaluate(c Condition, flags FlagView) bool {
	var actual any
	if flags != nil {
		actual, _ = flags.Flag(c.Flag)
	}
	expected := c.Value

	switch c.Op {
	case OpEqual:
		return equal(actual, expected)
	case OpNotEqual:
		return !equal(actual, expected)
	case OpGreater, OpLess:
		a, okA := toFloat(actual)
		b, okB := toFloat(expected)
		if !okA || !okB {
			return false
		}
		if c.Op == OpGreater {
			return a > b
		}
		return a < b
	default:
		return false
	}
}

func equal(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	if okA != okB {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
