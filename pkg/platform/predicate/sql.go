package predicate

import (
	"database/sql/driver"
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Columns maps predicate field names to SQL column expressions. Fields absent
// from the map are rejected, so a predicate can never name arbitrary SQL.
type Columns map[string]string

// SQL compiles p into a boolean SQL expression whose placeholders start at
// $startArg. It returns the expression and its bind values in order.
func (p Predicate) SQL(cols Columns, startArg int) (string, []any, error) {
	c := compiler{cols: cols, next: startArg}
	expr, err := c.compile(p)
	if err != nil {
		return "", nil, err
	}
	return expr, c.args, nil
}

type compiler struct {
	cols Columns
	next int
	args []any
}

func (c *compiler) bind(v any) string {
	c.args = append(c.args, sqlValue(v))
	ph := "$" + strconv.Itoa(c.next)
	c.next++
	return ph
}

func (c *compiler) compile(p Predicate) (string, error) {
	switch p.kind {
	case kindAll:
		return "TRUE", nil
	case kindAnd, kindOr:
		if len(p.children) == 0 {
			if p.kind == kindAnd {
				return "TRUE", nil
			}
			return "FALSE", nil
		}
		sep := " AND "
		if p.kind == kindOr {
			sep = " OR "
		}
		parts := make([]string, 0, len(p.children))
		for _, child := range p.children {
			part, err := c.compile(child)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		return "(" + strings.Join(parts, sep) + ")", nil
	}

	col, ok := c.cols[p.field]
	if !ok {
		return "", fmt.Errorf("predicate: unknown field %q", p.field)
	}

	switch p.kind {
	case kindEq:
		return col + " = " + c.bind(p.value), nil
	case kindGte:
		return col + " >= " + c.bind(p.value), nil
	case kindLte:
		return col + " <= " + c.bind(p.value), nil
	case kindContains:
		s, _ := p.value.(string)
		return col + " ILIKE " + c.bind("%"+escapeLike(s)+"%") + ` ESCAPE '\'`, nil
	}
	return "", fmt.Errorf("predicate: unsupported node")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// sqlValue converts typed ids and enums into values database/sql drivers accept.
func sqlValue(v any) any {
	switch v.(type) {
	case driver.Valuer, time.Time, string, int, int64:
		return v
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	}
	if tm, ok := v.(encoding.TextMarshaler); ok {
		if b, err := tm.MarshalText(); err == nil {
			return string(b)
		}
	}
	return v
}
