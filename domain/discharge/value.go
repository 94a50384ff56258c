package discharge

import (
	"strconv"
	"strings"
)

// Value is a dimension value: either an integer (years, hospital codes) or a
// string (names, diagnosis codes, labels).
type Value struct {
	num     int64
	str     string
	numeric bool
}

// Int creates an integer value
func Int(v int64) Value {
	return Value{num: v, numeric: true}
}

// Str creates a string value
func Str(s string) Value {
	return Value{str: s}
}

// IsNumeric reports whether the value holds an integer
func (v Value) IsNumeric() bool {
	return v.numeric
}

// Int64 returns the integer payload; ok is false for string values.
func (v Value) Int64() (int64, bool) {
	return v.num, v.numeric
}

func (v Value) String() string {
	if v.numeric {
		return strconv.FormatInt(v.num, 10)
	}
	return v.str
}

// Compare orders integers numerically, strings lexically, and integers before strings.
func Compare(a, b Value) int {
	switch {
	case a.numeric && b.numeric:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	case a.numeric:
		return -1
	case b.numeric:
		return 1
	}
	return strings.Compare(a.str, b.str)
}

// Key is an ordered tuple of dimension values.
type Key []Value

// CompareKeys compares two keys element by element.
func CompareKeys(a, b Key) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// Encode returns a stable string form of the key usable as a map key.
func (k Key) Encode() string {
	var sb strings.Builder
	for i, v := range k {
		if i > 0 {
			sb.WriteByte(0x1f)
		}
		if v.numeric {
			sb.WriteByte('i')
		} else {
			sb.WriteByte('s')
		}
		sb.WriteString(v.String())
	}
	return sb.String()
}

func (k Key) String() string {
	parts := make([]string, len(k))
	for i, v := range k {
		parts[i] = v.String()
	}
	return strings.Join(parts, "|")
}

// Project picks the values at the given positions into a new key.
func (k Key) Project(positions []int) Key {
	out := make(Key, len(positions))
	for i, p := range positions {
		out[i] = k[p]
	}
	return out
}
