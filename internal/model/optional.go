package model

import (
	"bytes"
	"encoding/json"
)

// Optional is a measurement or sub-score that may be absent. The zero value
// is absent. Absence is resolved by the consumer through Or, never through an
// error path.
type Optional struct {
	value float64
	valid bool
}

// Some returns a present value.
func Some(v float64) Optional {
	return Optional{value: v, valid: true}
}

// None returns an absent value.
func None() Optional {
	return Optional{}
}

// OptionalFromPtr converts a nullable scan target into an Optional.
func OptionalFromPtr(p *float64) Optional {
	if p == nil {
		return None()
	}
	return Some(*p)
}

// OptionalFromIntPtr converts a nullable integer column into an Optional.
func OptionalFromIntPtr(p *int) Optional {
	if p == nil {
		return None()
	}
	return Some(float64(*p))
}

// Get returns the value and whether it is present.
func (o Optional) Get() (float64, bool) {
	return o.value, o.valid
}

// Valid reports whether the value is present.
func (o Optional) Valid() bool {
	return o.valid
}

// Or returns the value, or def when absent.
func (o Optional) Or(def float64) float64 {
	if !o.valid {
		return def
	}
	return o.value
}

// Ptr returns a pointer suitable for a nullable column, nil when absent.
func (o Optional) Ptr() *float64 {
	if !o.valid {
		return nil
	}
	v := o.value
	return &v
}

// MarshalJSON encodes an absent value as null.
func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON decodes null as absent.
func (o *Optional) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = None()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
