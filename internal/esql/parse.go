package esql

import (
	"fmt"
	"strings"
)

// ParseCondition parses the CLI form of a condition:
//
//	[and:|or:]field|OP|value
//
// The value may be omitted for IS NULL / IS NOT NULL. OP is case-insensitive.
func ParseCondition(s string) (FilterCondition, error) {
	var c FilterCondition
	c.Connector = And

	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "or:"):
		c.Connector = Or
		s = s[3:]
	case strings.HasPrefix(lower, "and:"):
		s = s[4:]
	}

	parts := strings.SplitN(s, "|", 3)
	if len(parts) < 2 {
		return c, fmt.Errorf("filter %q: want field|OP|value", s)
	}
	c.Field = strings.TrimSpace(parts[0])
	if c.Field == "" {
		return c, fmt.Errorf("filter %q: field is empty", s)
	}
	c.Operator = Operator(strings.ToUpper(strings.Join(strings.Fields(parts[1]), " ")))
	if !c.Operator.Valid() {
		return c, fmt.Errorf("filter %q: unsupported operator %q", s, parts[1])
	}
	if len(parts) == 3 {
		c.Value = parts[2]
	}
	if c.Value == "" && !c.Operator.IsNullCheck() {
		return c, fmt.Errorf("filter %q: operator %s needs a value", s, c.Operator)
	}
	return c, nil
}

// ParseSort parses "field" or "field:asc|desc". Direction defaults to DESC.
func ParseSort(s string) (string, SortOrder, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", nil
	}
	field, dir, found := strings.Cut(s, ":")
	if !found {
		return field, Desc, nil
	}
	switch strings.ToUpper(dir) {
	case "ASC":
		return field, Asc, nil
	case "DESC", "":
		return field, Desc, nil
	default:
		return "", "", fmt.Errorf("sort %q: direction must be asc or desc", s)
	}
}
