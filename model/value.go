package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindAbsent ValueKind = iota
	KindBool
	KindNumber
	KindText
	KindList
)

// Value is one stored answer: a boolean, a number, a string or a list of
// strings. The zero Value is absent, which is how "never answered" reads.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
	list []string
}

func Bool(v bool) Value      { return Value{kind: KindBool, b: v} }
func Number(v float64) Value { return Value{kind: KindNumber, n: v} }
func Text(v string) Value    { return Value{kind: KindText, s: v} }

func List(items ...string) Value {
	list := make([]string, len(items))
	copy(list, items)
	return Value{kind: KindList, list: list}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsAbsent() bool  { return v.kind == KindAbsent }

func (v Value) Bool() bool      { return v.b }
func (v Value) Number() float64 { return v.n }
func (v Value) Int() int        { return int(v.n) }
func (v Value) Text() string    { return v.s }

func (v Value) List() []string {
	list := make([]string, len(v.list))
	copy(list, v.list)
	return list
}

// Interface returns the natural Go primitive for serialization.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindText:
		return v.s
	case KindList:
		return v.List()
	default:
		return nil
	}
}

// Display renders the value the way it appears in prompts and summaries.
func (v Value) Display() string {
	switch v.kind {
	case KindBool:
		if v.b {
			return "Yes"
		}
		return "No"
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindText:
		if v.s == "" {
			return "—"
		}
		return v.s
	case KindList:
		if len(v.list) == 0 {
			return "—"
		}
		return strings.Join(v.list, ", ")
	default:
		return "—"
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v Value) String() string {
	return fmt.Sprintf("Value(%s)", v.Display())
}
