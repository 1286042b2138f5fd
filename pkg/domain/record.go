package domain

import (
	"fmt"
	"strconv"
	"time"
)

// ValueKind tags the dynamic type of a spreadsheet cell value.
type ValueKind int

// Cell value kinds. Absence of a column is represented by absence from the
// Record map, not by a kind, so that "column not in this spreadsheet" can be
// told apart from "cell explicitly blank".
const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindDate
)

// Value is one tagged cell value from a parsed spreadsheet row.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Time time.Time
}

// StringValue wraps a string cell.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// NumberValue wraps a numeric cell.
func NumberValue(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// DateValue wraps a date cell.
func DateValue(t time.Time) Value { return Value{Kind: KindDate, Time: t} }

// NullValue is an explicitly blank cell.
func NullValue() Value { return Value{Kind: KindNull} }

// IsNull reports whether the cell was explicitly blank.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Text renders the value in its canonical string form, used both for match-key
// computation and for conflict comparison. Null renders as the empty string.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindDate:
		return v.Time.Format("2006-01-02")
	default:
		return ""
	}
}

// Equal compares two values on kind and canonical content.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		// A number cell and a string cell holding the same digits refer to
		// the same source datum; compare on text when kinds disagree.
		return !v.IsNull() && !other.IsNull() && v.Text() == other.Text()
	}
	switch v.Kind {
	case KindNumber:
		return v.Num == other.Num
	case KindDate:
		return v.Time.Equal(other.Time)
	default:
		return v.Str == other.Str
	}
}

func (v Value) String() string {
	if v.IsNull() {
		return "<null>"
	}
	return v.Text()
}

// Record maps column names to tagged cell values. A column missing from the
// map was absent from the source row; a column mapped to a Null value was
// present but blank.
type Record map[string]Value

// Get returns the value for a column and whether the column was present.
func (r Record) Get(col string) (Value, bool) {
	v, ok := r[col]
	return v, ok
}

// Text returns the canonical string for a column, empty when absent or null.
func (r Record) Text(col string) string {
	v, ok := r[col]
	if !ok {
		return ""
	}
	return v.Text()
}

// Has reports whether the column was present in the source row, blank or not.
func (r Record) Has(col string) bool {
	_, ok := r[col]
	return ok
}

// Number returns the numeric value of a column when it holds one.
func (r Record) Number(col string) (float64, bool) {
	v, ok := r[col]
	if !ok {
		return 0, false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindString:
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Date returns the date value of a column when it holds one.
func (r Record) Date(col string) (time.Time, bool) {
	v, ok := r[col]
	if !ok {
		return time.Time{}, false
	}
	switch v.Kind {
	case KindDate:
		return v.Time, true
	case KindString:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v.Str); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// Accepted spreadsheet date spellings, most specific first.
var dateLayouts = []string{"2006-01-02", "02/01/2006", "2006/01/02", "2-Jan-2006", "2 Jan 2006"}

// Clone returns a copy of the record safe to mutate independently.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Row is one raw spreadsheet row handed to the import coordinator by the
// external parser, together with its declared target entity type.
type Row struct {
	Index  int
	Entity EntityType
	Record Record
}

func (r Row) String() string {
	return fmt.Sprintf("row %d (%s)", r.Index, r.Entity)
}
