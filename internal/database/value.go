package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a cell for literal encoding.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindNumeric
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindNumeric:
		return "numeric"
	case KindBinary:
		return "binary"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is one cell in its textual wire form. Data is nil only for KindNull.
type Value struct {
	Kind Kind
	Data []byte
}

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Row is one result row; Columns and Values are parallel and keep the
// server's column order.
type Row struct {
	Columns []string
	Values  []Value
}

// Get returns the value of the first column named name.
func (r Row) Get(name string) (Value, bool) {
	for i, c := range r.Columns {
		if c == name {
			return r.Values[i], true
		}
	}
	return Value{}, false
}

// classify maps a column's DatabaseTypeName to the literal kind used when
// rendering it. Unknown types are treated as text.
func classify(typeName string) Kind {
	t := strings.ToUpper(strings.TrimSpace(typeName))
	t = strings.TrimPrefix(t, "UNSIGNED ")
	switch t {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT",
		"DECIMAL", "NUMERIC", "FLOAT", "DOUBLE", "REAL", "YEAR":
		return KindNumeric
	case "BINARY", "VARBINARY", "TINYBLOB", "BLOB", "MEDIUMBLOB", "LONGBLOB",
		"BIT", "GEOMETRY":
		return KindBinary
	default:
		return KindText
	}
}

// toValue converts a scanned cell. The MySQL text protocol yields []byte for
// every non-NULL cell; the other cases cover drivers that decode eagerly.
func toValue(src any, kind Kind) Value {
	switch v := src.(type) {
	case nil:
		return Value{Kind: KindNull}
	case []byte:
		return Value{Kind: kind, Data: v}
	case string:
		return Value{Kind: kind, Data: []byte(v)}
	case int64:
		return Value{Kind: KindNumeric, Data: strconv.AppendInt(nil, v, 10)}
	case uint64:
		return Value{Kind: KindNumeric, Data: strconv.AppendUint(nil, v, 10)}
	case float64:
		return Value{Kind: KindNumeric, Data: strconv.AppendFloat(nil, v, 'g', -1, 64)}
	case bool:
		if v {
			return Value{Kind: KindNumeric, Data: []byte("1")}
		}
		return Value{Kind: KindNumeric, Data: []byte("0")}
	case time.Time:
		return Value{Kind: KindText, Data: []byte(v.Format("2006-01-02 15:04:05.999999"))}
	default:
		return Value{Kind: kind, Data: []byte(fmt.Sprint(v))}
	}
}
