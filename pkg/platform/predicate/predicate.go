// Package predicate is a small structured filter tree. A Predicate is built
// from typed constructors, evaluated in memory with Match, and compiled to
// parameterized SQL with SQL. User input only ever travels as bind values.
package predicate

import (
	"encoding"
	"reflect"
	"strings"
	"time"
)

type kind int

const (
	kindAll kind = iota
	kindEq
	kindGte
	kindLte
	kindContains
	kindAnd
	kindOr
)

// Predicate is an immutable filter node. The zero value matches everything.
type Predicate struct {
	kind     kind
	field    string
	value    any
	children []Predicate
}

// All matches every record.
func All() Predicate { return Predicate{} }

// Eq matches records whose field equals value.
func Eq(field string, value any) Predicate {
	return Predicate{kind: kindEq, field: field, value: value}
}

// Gte matches records whose field is greater than or equal to value.
func Gte(field string, value any) Predicate {
	return Predicate{kind: kindGte, field: field, value: value}
}

// Lte matches records whose field is less than or equal to value.
func Lte(field string, value any) Predicate {
	return Predicate{kind: kindLte, field: field, value: value}
}

// Contains matches records whose field contains substr, ignoring case.
func Contains(field, substr string) Predicate {
	return Predicate{kind: kindContains, field: field, value: substr}
}

// And matches when every child matches. Match-all children are dropped.
func And(ps ...Predicate) Predicate {
	children := compact(ps)
	switch len(children) {
	case 0:
		return All()
	case 1:
		return children[0]
	}
	return Predicate{kind: kindAnd, children: children}
}

// Or matches when any child matches. Or of nothing matches nothing.
func Or(ps ...Predicate) Predicate {
	if len(ps) == 1 {
		return ps[0]
	}
	return Predicate{kind: kindOr, children: append([]Predicate(nil), ps...)}
}

func compact(ps []Predicate) []Predicate {
	out := make([]Predicate, 0, len(ps))
	for _, p := range ps {
		if p.IsAll() {
			continue
		}
		out = append(out, p)
	}
	return out
}

// IsAll reports whether p matches every record.
func (p Predicate) IsAll() bool { return p.kind == kindAll }

// Fields returns the field names referenced anywhere in the tree.
func (p Predicate) Fields() []string {
	var out []string
	p.walk(func(n Predicate) {
		if n.field != "" {
			out = append(out, n.field)
		}
	})
	return out
}

func (p Predicate) walk(fn func(Predicate)) {
	fn(p)
	for _, c := range p.children {
		c.walk(fn)
	}
}

// Record exposes named fields for in-memory evaluation.
type Record interface {
	Field(name string) (any, bool)
}

// Match evaluates p against r. Unknown fields never match.
func (p Predicate) Match(r Record) bool {
	switch p.kind {
	case kindAll:
		return true
	case kindAnd:
		for _, c := range p.children {
			if !c.Match(r) {
				return false
			}
		}
		return true
	case kindOr:
		for _, c := range p.children {
			if c.Match(r) {
				return true
			}
		}
		return false
	}

	got, ok := r.Field(p.field)
	if !ok {
		return false
	}
	left, right := normalize(got), normalize(p.value)

	switch p.kind {
	case kindEq:
		cmp, ok := compare(left, right)
		return ok && cmp == 0
	case kindGte:
		cmp, ok := compare(left, right)
		return ok && cmp >= 0
	case kindLte:
		cmp, ok := compare(left, right)
		return ok && cmp <= 0
	case kindContains:
		ls, lok := left.(string)
		rs, rok := right.(string)
		return lok && rok && strings.Contains(strings.ToLower(ls), strings.ToLower(rs))
	}
	return false
}

type timer interface {
	Time() time.Time
}

// normalize reduces values to string, int64 or time.Time so typed ids,
// enum strings and dates compare naturally.
func normalize(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t
	case timer:
		return t.Time()
	case string:
		return t
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint())
	}
	if tm, ok := v.(encoding.TextMarshaler); ok {
		if b, err := tm.MarshalText(); err == nil {
			return string(b)
		}
	}
	return v
}

func compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}
