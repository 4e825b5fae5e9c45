// Package esql assembles ES|QL and KQL query strings from filter conditions.
package esql

import (
	"strconv"
	"strings"
)

// Operator is a comparison used in a FilterCondition.
type Operator string

const (
	OpEq        Operator = "=="
	OpNe        Operator = "!="
	OpLike      Operator = "LIKE"
	OpGt        Operator = ">"
	OpLt        Operator = "<"
	OpGte       Operator = ">="
	OpLte       Operator = "<="
	OpIsNull    Operator = "IS NULL"
	OpIsNotNull Operator = "IS NOT NULL"
)

// Operators lists every supported operator in display order.
var Operators = []Operator{OpEq, OpNe, OpLike, OpGt, OpLt, OpGte, OpLte, OpIsNull, OpIsNotNull}

// IsNullCheck reports whether the operator takes no value.
func (o Operator) IsNullCheck() bool {
	return o == OpIsNull || o == OpIsNotNull
}

// Valid reports whether o is one of Operators.
func (o Operator) Valid() bool {
	for _, op := range Operators {
		if o == op {
			return true
		}
	}
	return false
}

// Connector joins a condition to the one before it.
type Connector string

const (
	And Connector = "AND"
	Or  Connector = "OR"
)

// SortOrder is the direction of the SORT clause.
type SortOrder string

const (
	Asc  SortOrder = "ASC"
	Desc SortOrder = "DESC"
)

// FilterCondition is one row of the query builder.
// Connector is ignored on the first included condition.
type FilterCondition struct {
	Field     string    `json:"field"`
	Operator  Operator  `json:"operator"`
	Value     string    `json:"value"`
	Connector Connector `json:"connector,omitempty"`
}

// Included reports whether the condition contributes to the WHERE clause:
// it needs a field, and a value unless the operator is a null check.
func (c FilterCondition) Included() bool {
	if strings.TrimSpace(c.Field) == "" {
		return false
	}
	return c.Value != "" || c.Operator.IsNullCheck()
}

// Query is the full input of Build.
type Query struct {
	Index      string            `json:"index"`
	Conditions []FilterCondition `json:"conditions"`
	SortField  string            `json:"sort_field,omitempty"`
	SortOrder  SortOrder         `json:"sort_order,omitempty"`
	Limit      int               `json:"limit"`
}

// Build renders q as a single-line ES|QL pipeline:
//
//	FROM <index> [| WHERE ...] [| SORT <field> <ASC|DESC>] | LIMIT <n>
//
// Build never fails; inputs are not validated beyond dropping incomplete conditions.
func Build(q Query) string {
	parts := []string{"FROM " + q.Index}

	if where := whereClause(q.Conditions); where != "" {
		parts = append(parts, "| WHERE "+where)
	}

	if field := strings.TrimSpace(q.SortField); field != "" {
		order := Desc
		if strings.EqualFold(string(q.SortOrder), string(Asc)) {
			order = Asc
		}
		parts = append(parts, "| SORT "+field+" "+string(order))
	}

	parts = append(parts, "| LIMIT "+strconv.Itoa(q.Limit))
	return strings.Join(parts, " ")
}

func whereClause(conds []FilterCondition) string {
	var sb strings.Builder
	n := 0
	for _, c := range conds {
		if !c.Included() {
			continue
		}
		if n > 0 {
			sb.WriteString(" " + string(normalizeConnector(c.Connector)) + " ")
		}
		sb.WriteString(renderCondition(c))
		n++
	}
	return sb.String()
}

func renderCondition(c FilterCondition) string {
	field := strings.TrimSpace(c.Field)
	switch c.Operator {
	case OpIsNull, OpIsNotNull:
		return field + " " + string(c.Operator)
	case OpLike:
		return field + ` LIKE "*` + escape(c.Value) + `*"`
	default:
		return field + " " + string(c.Operator) + ` "` + escape(c.Value) + `"`
	}
}

func normalizeConnector(c Connector) Connector {
	if strings.EqualFold(string(c), string(Or)) {
		return Or
	}
	return And
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// escape makes v safe to place between double quotes.
func escape(v string) string {
	return quoteEscaper.Replace(v)
}
