package database

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Op is a PostgREST filter operator.
type Op string

const (
	OpEq    Op = "eq"
	OpNeq   Op = "neq"
	OpGt    Op = "gt"
	OpGte   Op = "gte"
	OpLt    Op = "lt"
	OpLte   Op = "lte"
	OpLike  Op = "like"
	OpILike Op = "ilike"
	OpIn    Op = "in"
	OpIs    Op = "is"
)

type Filter struct {
	Column string
	Op     Op
	Value  any
}

type Order struct {
	Column    string
	Ascending bool
}

// Query describes a row selection. The zero value selects every row in
// backend order.
type Query struct {
	Filters []Filter
	Order   []Order
	Limit   int
}

func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

func In[T any](column string, values []T) Filter {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return Filter{Column: column, Op: OpIn, Value: vals}
}

// IsNull matches rows where column is NULL.
func IsNull(column string) Filter {
	return Filter{Column: column, Op: OpIs, Value: nil}
}

func Desc(column string) Order { return Order{Column: column} }

func Asc(column string) Order { return Order{Column: column, Ascending: true} }

// Where returns a copy of q with f appended.
func (q Query) Where(f ...Filter) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), f...)
	return q
}

func (q Query) OrderBy(o ...Order) Query {
	q.Order = append(append([]Order(nil), q.Order...), o...)
	return q
}

// Values encodes the query in the PostgREST URL dialect.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("select", "*")
	for _, f := range q.Filters {
		v.Add(f.Column, string(f.Op)+"."+formatFilterValue(f))
	}
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "desc"
			if o.Ascending {
				dir = "asc"
			}
			parts[i] = o.Column + "." + dir
		}
		v.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

func formatFilterValue(f Filter) string {
	if f.Op == OpIn {
		vals, _ := f.Value.([]any)
		parts := make([]string, len(vals))
		for i, val := range vals {
			parts[i] = quoteListItem(formatScalar(val))
		}
		return "(" + strings.Join(parts, ",") + ")"
	}
	if f.Value == nil {
		return "null"
	}
	return formatScalar(f.Value)
}

func formatScalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return "null"
		}
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

// quoteListItem double-quotes an in-list member that holds a character
// PostgREST reserves inside lists.
func quoteListItem(s string) string {
	if s == "" || !strings.ContainsAny(s, `,()"\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
