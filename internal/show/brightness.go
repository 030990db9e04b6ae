package show

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// MinLevel and MaxLevel bound master brightness, master volume and output overrides.
const (
	MinLevel = 0.0
	MaxLevel = 100.0
)

// Brightness is an output's brightness setting: either linked to the master
// level or overridden with an independent value. The zero value is linked.
// It marshals to JSON null (linked) or a number (overridden).
type Brightness struct {
	overridden bool
	value      float64
}

// Linked returns a brightness that follows the master level.
func Linked() Brightness {
	return Brightness{}
}

// Override returns a brightness fixed at v, clamped to [0,100].
func Override(v float64) Brightness {
	return Brightness{overridden: true, value: ClampLevel(v)}
}

// IsLinked reports whether the brightness follows the master level.
func (b Brightness) IsLinked() bool {
	return !b.overridden
}

// Value returns the override value and true, or 0 and false when linked.
func (b Brightness) Value() (float64, bool) {
	return b.value, b.overridden
}

// Resolve returns the effective brightness given the master level.
func (b Brightness) Resolve(master float64) float64 {
	if b.overridden {
		return b.value
	}
	return master
}

// Ptr returns nil for linked and a pointer to the value otherwise,
// the representation used by the engine wire protocol.
func (b Brightness) Ptr() *float64 {
	if !b.overridden {
		return nil
	}
	v := b.value
	return &v
}

// BrightnessFromPtr is the inverse of Ptr.
func BrightnessFromPtr(v *float64) Brightness {
	if v == nil {
		return Linked()
	}
	return Override(*v)
}

func (b Brightness) String() string {
	if !b.overridden {
		return "linked"
	}
	return fmt.Sprintf("%.0f", b.value)
}

// MarshalJSON implements json.Marshaler.
func (b Brightness) MarshalJSON() ([]byte, error) {
	if !b.overridden {
		return []byte("null"), nil
	}
	return json.Marshal(b.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Brightness) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*b = Linked()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("brightness must be null or a number: %w", err)
	}
	*b = Override(v)
	return nil
}

// ClampLevel limits v to [MinLevel, MaxLevel]. NaN becomes MinLevel.
func ClampLevel(v float64) float64 {
	if math.IsNaN(v) || v < MinLevel {
		return MinLevel
	}
	if v > MaxLevel {
		return MaxLevel
	}
	return v
}
