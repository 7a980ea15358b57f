package hook

import (
	"fmt"

	"github.com/jittakal/kafeventexport/internal/errors"
)

// Rule is the canonical form of one jpointer configuration entry:
// pointer, target type, action, filter and filter literal.
type Rule struct {
	Pointer string
	Type    TargetType
	Action  ActionKind
	Filter  FilterKind
	Literal string
}

// Normalize expands the three accepted jpointer shapes into canonical
// rules. An entry is either a bare pointer string, a positional list
// [pointer, pqtype, action, filter, data], or a mapping with the keys
// jpointer, pqtype, action, filter and data. Missing members default to
// (text, store, noop, "").
//
// Unknown enum names and missing filter literals are configuration
// errors; the service refuses to start on them rather than failing
// per message.
func Normalize(entries []any) ([]Rule, error) {
	rules := make([]Rule, 0, len(entries))

	for i, entry := range entries {
		rule := Rule{
			Type:   TargetText,
			Action: ActionStore,
			Filter: FilterNoop,
		}

		switch e := entry.(type) {
		case string:
			rule.Pointer = e

		case []any:
			if err := normalizeList(&rule, e, i); err != nil {
				return nil, err
			}

		case map[string]any:
			if err := normalizeMapping(&rule, e, i); err != nil {
				return nil, err
			}

		default:
			return nil, &errors.RuleError{
				Hook:   jsonExportName,
				Index:  i,
				Field:  "jpointer",
				Reason: fmt.Sprintf("entry must be a string, list or mapping, got %T", entry),
			}
		}

		rules = append(rules, rule)
	}

	return rules, nil
}

// normalizeList fills a rule from a positional entry. Elements beyond
// the filter literal are ignored.
func normalizeList(rule *Rule, list []any, index int) error {
	if len(list) == 0 {
		return &errors.RuleError{
			Hook:   jsonExportName,
			Index:  index,
			Field:  "jpointer",
			Reason: "positional entry is empty",
		}
	}

	pointer, ok := list[0].(string)
	if !ok {
		return &errors.RuleError{
			Hook:   jsonExportName,
			Index:  index,
			Field:  "jpointer",
			Reason: fmt.Sprintf("pointer must be a string, got %T", list[0]),
		}
	}
	rule.Pointer = pointer

	if len(list) > 1 {
		s, ok := list[1].(string)
		if !ok {
			return listTypeError(index, "pqtype", list[1])
		}
		t, ok := parseTargetType(s)
		if !ok {
			return &errors.RuleError{
				Hook:   jsonExportName,
				Index:  index,
				Field:  "pqtype",
				Reason: fmt.Sprintf("not a valid type transformation: %s", s),
			}
		}
		rule.Type = t
	}

	if len(list) > 2 {
		s, ok := list[2].(string)
		if !ok {
			return listTypeError(index, "action", list[2])
		}
		a, ok := parseActionKind(s)
		if !ok {
			return &errors.RuleError{
				Hook:   jsonExportName,
				Index:  index,
				Field:  "action",
				Reason: fmt.Sprintf("not a valid action type: %s", s),
			}
		}
		rule.Action = a
	}

	if len(list) > 3 {
		s, ok := list[3].(string)
		if !ok {
			return listTypeError(index, "filter", list[3])
		}
		f, ok := parseFilterKind(s)
		if !ok {
			return &errors.RuleError{
				Hook:   jsonExportName,
				Index:  index,
				Field:  "filter",
				Reason: fmt.Sprintf("not a valid filter type: %s", s),
			}
		}
		rule.Filter = f
	}

	if rule.Filter.NeedsLiteral() {
		if len(list) < 5 {
			return &errors.RuleError{
				Hook:   jsonExportName,
				Index:  index,
				Field:  "data",
				Reason: fmt.Sprintf("filter %s needs configuration", rule.Filter),
			}
		}
		literal, ok := list[4].(string)
		if !ok {
			return listTypeError(index, "data", list[4])
		}
		rule.Literal = literal
	}

	return nil
}

// normalizeMapping fills a rule from a named entry. Unknown keys are
// ignored.
func normalizeMapping(rule *Rule, m map[string]any, index int) error {
	v, ok := m["jpointer"]
	if !ok {
		return &errors.RuleError{
			Hook:   jsonExportName,
			Index:  index,
			Field:  "jpointer",
			Reason: "pointer is required",
		}
	}
	pointer, ok := v.(string)
	if !ok {
		return &errors.RuleError{
			Hook:   jsonExportName,
			Index:  index,
			Field:  "jpointer",
			Reason: fmt.Sprintf("pointer must be a string, got %T", v),
		}
	}
	rule.Pointer = pointer

	if v, ok := m["pqtype"]; ok {
		s, ok := v.(string)
		if !ok {
			return listTypeError(index, "pqtype", v)
		}
		t, ok := parseTargetType(s)
		if !ok {
			return &errors.RuleError{
				Hook:   jsonExportName,
				Index:  index,
				Field:  "pqtype",
				Reason: fmt.Sprintf("not a valid type transformation: %s", s),
			}
		}
		rule.Type = t
	}

	if v, ok := m["action"]; ok {
		s, ok := v.(string)
		if !ok {
			return listTypeError(index, "action", v)
		}
		a, ok := parseActionKind(s)
		if !ok {
			return &errors.RuleError{
				Hook:   jsonExportName,
				Index:  index,
				Field:  "action",
				Reason: fmt.Sprintf("not a valid action type: %s", s),
			}
		}
		rule.Action = a
	}

	if v, ok := m["filter"]; ok {
		s, ok := v.(string)
		if !ok {
			return listTypeError(index, "filter", v)
		}
		f, ok := parseFilterKind(s)
		if !ok {
			return &errors.RuleError{
				Hook:   jsonExportName,
				Index:  index,
				Field:  "filter",
				Reason: fmt.Sprintf("not a valid filter type: %s", s),
			}
		}
		rule.Filter = f
	}

	if rule.Filter.NeedsLiteral() {
		v, ok := m["data"]
		if !ok {
			return &errors.RuleError{
				Hook:   jsonExportName,
				Index:  index,
				Field:  "data",
				Reason: fmt.Sprintf("filter %s needs configuration", rule.Filter),
			}
		}
		literal, ok := v.(string)
		if !ok {
			return listTypeError(index, "data", v)
		}
		rule.Literal = literal
	}

	return nil
}

func listTypeError(index int, field string, v any) error {
	return &errors.RuleError{
		Hook:   jsonExportName,
		Index:  index,
		Field:  field,
		Reason: fmt.Sprintf("%s must be a string, got %T", field, v),
	}
}
