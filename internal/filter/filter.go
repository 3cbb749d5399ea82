// Package filter parses the list query DSL and translates it into SQL conditions.
//
// A filter is a JSON object mapping attribute names to operator objects:
//
//	{"name": {"lk": "web"}, "environment": {"in": "prod,staging"}}
//
// Every entry of an object is combined with AND, in the order it was written.
package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrFilter     = errors.New("invalid filter")
	ErrSort       = errors.New("invalid sort")
	ErrPagination = errors.New("invalid pagination")
)

// Operator is a comparison understood by the DSL.
type Operator string

const (
	OpEq      Operator = "eq"
	OpGt      Operator = "gt"
	OpGe      Operator = "ge"
	OpLt      Operator = "lt"
	OpLe      Operator = "le"
	OpIn      Operator = "in"
	OpBetween Operator = "btw"
	OpLike    Operator = "lk"
)

func (o Operator) valid() bool {
	switch o {
	case OpEq, OpGt, OpGe, OpLt, OpLe, OpIn, OpBetween, OpLike:
		return true
	}
	return false
}

// Condition is a single attribute predicate.
type Condition struct {
	Attribute string
	Operator  Operator
	Value     string
}

// Filter is a conjunction of conditions.
type Filter []Condition

// Names reports whether any condition targets attr.
func (f Filter) Names(attr string) bool {
	for _, c := range f {
		if c.Attribute == attr {
			return true
		}
	}
	return false
}

// SortField orders results by one attribute.
type SortField struct {
	Attribute  string
	Descending bool
}

// Query is a fully parsed list request.
type Query struct {
	Limit  int
	Offset int
	Filter Filter
	And    []Filter
	Or     []Filter
	Sort   []SortField
}

// Names reports whether attr appears anywhere in the query's predicates.
func (q Query) Names(attr string) bool {
	if q.Filter.Names(attr) {
		return true
	}
	for _, group := range [][]Filter{q.And, q.Or} {
		for _, f := range group {
			if f.Names(attr) {
				return true
			}
		}
	}
	return false
}

// ParseFilter decodes a single filter object. A blank input yields an empty filter.
func ParseFilter(raw string) (Filter, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	dec := newDecoder(raw)
	f, err := decodeFilter(dec)
	if err != nil {
		return nil, err
	}
	if err := expectEOF(dec, ErrFilter); err != nil {
		return nil, err
	}
	return f, nil
}

// ParseFilterList decodes an array of filter objects, as used by and_filter and or_filter.
func ParseFilterList(raw string) ([]Filter, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	dec := newDecoder(raw)
	if err := expectDelim(dec, '[', ErrFilter); err != nil {
		return nil, err
	}

	var out []Filter
	for dec.More() {
		f, err := decodeFilter(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := expectDelim(dec, ']', ErrFilter); err != nil {
		return nil, err
	}
	if err := expectEOF(dec, ErrFilter); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseSort decodes {"attr": "asc"|"desc", ...} keeping key order.
func ParseSort(raw string) ([]SortField, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	dec := newDecoder(raw)

	var out []SortField
	err := decodeObject(dec, ErrSort, func(key string) error {
		var direction string
		if err := dec.Decode(&direction); err != nil {
			return fmt.Errorf("%w: direction for %q must be a string", ErrSort, key)
		}
		switch strings.ToLower(direction) {
		case "asc":
			out = append(out, SortField{Attribute: key})
		case "desc":
			out = append(out, SortField{Attribute: key, Descending: true})
		default:
			return fmt.Errorf("%w: unknown direction %q for %q", ErrSort, direction, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := expectEOF(dec, ErrSort); err != nil {
		return nil, err
	}
	return out, nil
}

func newDecoder(raw string) *json.Decoder {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	return dec
}

func decodeFilter(dec *json.Decoder) (Filter, error) {
	var out Filter
	err := decodeObject(dec, ErrFilter, func(attr string) error {
		return decodeObject(dec, ErrFilter, func(op string) error {
			operator := Operator(strings.ToLower(op))
			if !operator.valid() {
				return fmt.Errorf("%w: unknown operator %q on %q", ErrFilter, op, attr)
			}
			value, err := decodeScalar(dec)
			if err != nil {
				return fmt.Errorf("%w: %s.%s: %v", ErrFilter, attr, op, err)
			}
			out = append(out, Condition{Attribute: attr, Operator: operator, Value: value})
			return nil
		})
	})
	return out, err
}

// decodeObject walks an object's keys in document order.
func decodeObject(dec *json.Decoder, kind error, each func(key string) error) error {
	if err := expectDelim(dec, '{', kind); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", kind, err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: expected object key, got %v", kind, tok)
		}
		if err := each(key); err != nil {
			return err
		}
	}
	return expectDelim(dec, '}', kind)
}

func decodeScalar(dec *json.Decoder) (string, error) {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return "", err
	}
	var v any
	inner := json.NewDecoder(bytes.NewReader(raw))
	inner.UseNumber()
	if err := inner.Decode(&v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	default:
		return "", fmt.Errorf("value must be a string, number or boolean")
	}
}

func expectDelim(dec *json.Decoder, want json.Delim, kind error) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", kind, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", kind, want, tok)
	}
	return nil
}

func expectEOF(dec *json.Decoder, kind error) error {
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data", kind)
	}
	return nil
}
