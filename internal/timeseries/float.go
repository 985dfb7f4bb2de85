package timeseries

import (
	"math"
	"strconv"

	"github.com/invopop/jsonschema"
)

// Float is a float64 that encodes NaN and ±Inf as JSON null. Result types
// use it so an undefined ratio never breaks encoding.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler. null decodes to NaN.
func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// JSONSchema describes Float as a nullable number.
func (Float) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{{Type: "number"}, {Type: "null"}},
	}
}

// IsNaN reports whether f is NaN.
func (f Float) IsNaN() bool { return math.IsNaN(float64(f)) }

// FloatPtr returns a pointer to x as a Float.
func FloatPtr(x float64) *Float {
	v := Float(x)
	return &v
}
