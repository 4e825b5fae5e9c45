package esql

import "strings"

// BuildKQL renders the same condition list for the backend's KQL endpoint.
// Returns "" when no condition is included, which the backend treats as match-all.
func BuildKQL(conds []FilterCondition) string {
	var sb strings.Builder
	n := 0
	for _, c := range conds {
		if !c.Included() {
			continue
		}
		if n > 0 {
			sb.WriteString(" " + strings.ToLower(string(normalizeConnector(c.Connector))) + " ")
		}
		sb.WriteString(renderKQL(c))
		n++
	}
	return sb.String()
}

func renderKQL(c FilterCondition) string {
	field := strings.TrimSpace(c.Field)
	v := escape(c.Value)
	switch c.Operator {
	case OpIsNull:
		return "not " + field + ":*"
	case OpIsNotNull:
		return field + ":*"
	case OpLike:
		// KQL wildcards only apply to unquoted values.
		return field + ":*" + kqlUnquoted(c.Value) + "*"
	case OpNe:
		return "not " + field + `:"` + v + `"`
	case OpGt, OpLt, OpGte, OpLte:
		return field + " " + string(c.Operator) + ` "` + v + `"`
	default:
		return field + `:"` + v + `"`
	}
}

var kqlSpecial = strings.NewReplacer(
	`\`, `\\`, `(`, `\(`, `)`, `\)`, `:`, `\:`, `<`, `\<`, `>`, `\>`,
	`"`, `\"`, `*`, `\*`, ` `, `\ `,
)

func kqlUnquoted(v string) string {
	return kqlSpecial.Replace(v)
}
