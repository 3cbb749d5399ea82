package filter

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Kind is the storage type of a filterable attribute.
type Kind int

const (
	KindText Kind = iota
	KindBool
)

var (
	textOps    = []Operator{OpEq, OpGt, OpGe, OpLt, OpLe, OpIn, OpBetween, OpLike}
	idOps      = []Operator{OpEq, OpIn}
	exactOps   = []Operator{OpEq}
	sortColumn = "created_at"
)

// Field describes how an attribute is stored and which operators it accepts.
type Field struct {
	// Column is a SQL column name or a json_extract expression.
	Column    string
	Kind      Kind
	Operators []Operator
	// Sortable fields may appear in sort.
	Sortable bool
}

func (f Field) allows(op Operator) bool {
	return slices.Contains(f.Operators, op)
}

// Schema is the explicit set of attributes an entity exposes to queries.
type Schema struct {
	entity string
	fields map[string]Field
}

// NewSchema declares the attributes of an entity.
func NewSchema(entity string, fields map[string]Field) Schema {
	return Schema{entity: entity, fields: fields}
}

func jsonPath(column, path string) Field {
	return Field{
		Column:    fmt.Sprintf("json_extract(%s, '$.%s')", column, path),
		Kind:      KindText,
		Operators: exactOps,
	}
}

// ServerSchema lists the queryable server attributes. Operating system
// sub-fields are matched exactly through their JSON path.
var ServerSchema = NewSchema("server", map[string]Field{
	"id":                            {Column: "id", Operators: idOps, Sortable: true},
	"name":                          {Column: "name", Operators: textOps, Sortable: true},
	"cpu":                           {Column: "cpu", Operators: textOps, Sortable: true},
	"ram":                           {Column: "ram", Operators: textOps, Sortable: true},
	"hdd":                           {Column: "hdd", Operators: textOps, Sortable: true},
	"environment":                   {Column: "environment", Operators: textOps, Sortable: true},
	"status":                        {Column: "status", Operators: []Operator{OpEq, OpIn}, Sortable: true},
	"discarded":                     {Column: "discarded", Kind: KindBool, Operators: exactOps},
	"created_at":                    {Column: "created_at", Operators: []Operator{OpGt, OpGe, OpLt, OpLe, OpBetween}, Sortable: true},
	"updated_at":                    {Column: "updated_at", Operators: []Operator{OpGt, OpGe, OpLt, OpLe, OpBetween}, Sortable: true},
	"operating_system.name":         jsonPath("operating_system", "name"),
	"operating_system.version":      jsonPath("operating_system", "version"),
	"operating_system.architecture": jsonPath("operating_system", "architecture"),
})

// ApplicationSchema lists the queryable application attributes.
var ApplicationSchema = NewSchema("application", map[string]Field{
	"id":         {Column: "id", Operators: idOps, Sortable: true},
	"name":       {Column: "name", Operators: textOps, Sortable: true},
	"version":    {Column: "version", Operators: textOps, Sortable: true},
	"architect":  {Column: "architect", Operators: textOps, Sortable: true},
	"discarded":  {Column: "discarded", Kind: KindBool, Operators: exactOps},
	"created_at": {Column: "created_at", Operators: []Operator{OpGt, OpGe, OpLt, OpLe, OpBetween}, Sortable: true},
	"updated_at": {Column: "updated_at", Operators: []Operator{OpGt, OpGe, OpLt, OpLe, OpBetween}, Sortable: true},
})

// Validate checks every attribute and operator of q against the schema.
func (s Schema) Validate(q Query) error {
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("%w: limit and offset must be non-negative", ErrPagination)
	}
	filters := append([]Filter{q.Filter}, q.And...)
	filters = append(filters, q.Or...)
	for _, f := range filters {
		for _, c := range f {
			if _, err := s.condition(c); err != nil {
				return err
			}
		}
	}
	for _, sf := range q.Sort {
		field, ok := s.fields[sf.Attribute]
		if !ok || !field.Sortable {
			return fmt.Errorf("%w: %s cannot be sorted by %q", ErrSort, s.entity, sf.Attribute)
		}
	}
	return nil
}

// SQLCondition is a WHERE clause fragment with positional parameters.
type SQLCondition struct {
	Clause string
	Params []any
}

// IsEmpty reports whether the condition has no clause.
func (c SQLCondition) IsEmpty() bool {
	return c.Clause == ""
}

// Where translates a filter into a conjunctive condition.
func (s Schema) Where(f Filter) (SQLCondition, error) {
	parts := make([]SQLCondition, 0, len(f))
	for _, c := range f {
		cond, err := s.condition(c)
		if err != nil {
			return SQLCondition{}, err
		}
		parts = append(parts, cond)
	}
	return join(parts, " AND "), nil
}

// WhereAny translates a list of filters into a disjunction of conjunctions.
func (s Schema) WhereAny(filters []Filter) (SQLCondition, error) {
	parts := make([]SQLCondition, 0, len(filters))
	for _, f := range filters {
		cond, err := s.Where(f)
		if err != nil {
			return SQLCondition{}, err
		}
		if !cond.IsEmpty() {
			parts = append(parts, cond)
		}
	}
	return join(parts, " OR "), nil
}

// OrderBy renders sort fields as an ORDER BY list. Columns come only from the
// schema. The id is appended as a tie-break so pages are stable.
func (s Schema) OrderBy(sort []SortField) (string, error) {
	terms := make([]string, 0, len(sort)+2)
	seenID := false
	for _, sf := range sort {
		field, ok := s.fields[sf.Attribute]
		if !ok || !field.Sortable {
			return "", fmt.Errorf("%w: %s cannot be sorted by %q", ErrSort, s.entity, sf.Attribute)
		}
		direction := "ASC"
		if sf.Descending {
			direction = "DESC"
		}
		terms = append(terms, field.Column+" "+direction)
		seenID = seenID || field.Column == "id"
	}
	if len(terms) == 0 {
		terms = append(terms, sortColumn+" ASC")
	}
	if !seenID {
		terms = append(terms, "id ASC")
	}
	return strings.Join(terms, ", "), nil
}

func (s Schema) condition(c Condition) (SQLCondition, error) {
	field, ok := s.fields[c.Attribute]
	if !ok {
		return SQLCondition{}, fmt.Errorf("%w: %s has no attribute %q", ErrFilter, s.entity, c.Attribute)
	}
	if !field.allows(c.Operator) {
		return SQLCondition{}, fmt.Errorf("%w: operator %q is not allowed on %q", ErrFilter, c.Operator, c.Attribute)
	}

	value, err := field.coerce(c.Value)
	if err != nil {
		return SQLCondition{}, fmt.Errorf("%w: %s: %v", ErrFilter, c.Attribute, err)
	}

	col := field.Column
	switch c.Operator {
	case OpEq:
		return SQLCondition{Clause: col + " = ?", Params: []any{value}}, nil
	case OpGt:
		return SQLCondition{Clause: col + " > ?", Params: []any{value}}, nil
	case OpGe:
		return SQLCondition{Clause: col + " >= ?", Params: []any{value}}, nil
	case OpLt:
		return SQLCondition{Clause: col + " < ?", Params: []any{value}}, nil
	case OpLe:
		return SQLCondition{Clause: col + " <= ?", Params: []any{value}}, nil
	case OpIn:
		items := splitList(c.Value)
		if len(items) == 0 {
			return SQLCondition{}, fmt.Errorf("%w: %s.in needs at least one value", ErrFilter, c.Attribute)
		}
		params := make([]any, len(items))
		for i, item := range items {
			params[i] = item
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(items)), ", ")
		return SQLCondition{Clause: fmt.Sprintf("%s IN (%s)", col, placeholders), Params: params}, nil
	case OpBetween:
		bounds := splitList(c.Value)
		if len(bounds) != 2 {
			return SQLCondition{}, fmt.Errorf("%w: %s.btw needs exactly two values", ErrFilter, c.Attribute)
		}
		return SQLCondition{Clause: col + " BETWEEN ? AND ?", Params: []any{bounds[0], bounds[1]}}, nil
	case OpLike:
		pattern := "%" + escapeLike(strings.ToLower(c.Value)) + "%"
		return SQLCondition{Clause: "LOWER(" + col + `) LIKE ? ESCAPE '\'`, Params: []any{pattern}}, nil
	}
	return SQLCondition{}, fmt.Errorf("%w: unknown operator %q", ErrFilter, c.Operator)
}

func (f Field) coerce(v string) (any, error) {
	if f.Kind != KindBool {
		return v, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("expected a boolean, got %q", v)
	}
	// sqlite stores booleans as integers
	if b {
		return 1, nil
	}
	return 0, nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func escapeLike(v string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(v)
}

func join(parts []SQLCondition, sep string) SQLCondition {
	switch len(parts) {
	case 0:
		return SQLCondition{}
	case 1:
		return parts[0]
	}
	clauses := make([]string, len(parts))
	var params []any
	for i, p := range parts {
		clauses[i] = "(" + p.Clause + ")"
		params = append(params, p.Params...)
	}
	return SQLCondition{Clause: strings.Join(clauses, sep), Params: params}
}
