package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Measure is either a number or a descriptive text such as "As per deployment".
// The zero value is Numeric(0). It is stored and transmitted as a bare number
// or string.
type Measure struct {
	number      float64
	text        string
	descriptive bool
}

func Numeric(n float64) Measure {
	return Measure{number: n}
}

func Descriptive(text string) Measure {
	return Measure{text: text, descriptive: true}
}

// ParseMeasure treats numeric-looking text as a number.
func ParseMeasure(s string) Measure {
	trimmed := strings.TrimSpace(s)
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
		return Numeric(n)
	}
	return Descriptive(s)
}

func (m Measure) IsNumeric() bool {
	return !m.descriptive
}

// Number returns the numeric value and whether the measure is numeric.
func (m Measure) Number() (float64, bool) {
	return m.number, !m.descriptive
}

func (m Measure) Text() string {
	return m.text
}

// IsBlank reports a descriptive measure with no text.
func (m Measure) IsBlank() bool {
	return m.descriptive && strings.TrimSpace(m.text) == ""
}

func (m Measure) String() string {
	if m.descriptive {
		return m.text
	}
	return strconv.FormatFloat(m.number, 'f', -1, 64)
}

func (m Measure) MarshalJSON() ([]byte, error) {
	if m.descriptive {
		return json.Marshal(m.text)
	}
	return json.Marshal(m.number)
}

func (m *Measure) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = Measure{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = ParseMeasure(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("measure must be a number or a string: %w", err)
	}
	*m = Numeric(n)
	return nil
}

func (m Measure) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if m.descriptive {
		return bson.MarshalValue(m.text)
	}
	return bson.MarshalValue(m.number)
}

func (m *Measure) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Double:
		*m = Numeric(raw.Double())
	case bsontype.Int32:
		*m = Numeric(float64(raw.Int32()))
	case bsontype.Int64:
		*m = Numeric(float64(raw.Int64()))
	case bsontype.String:
		*m = Descriptive(raw.StringValue())
	case bsontype.Null, bsontype.Undefined:
		*m = Measure{}
	default:
		return fmt.Errorf("cannot decode BSON %s into a measure", t)
	}
	return nil
}

// ProgressPercent is min(100, value/target*100) rounded to a whole percent.
// It only applies when both target and value are numeric and the target is positive.
func ProgressPercent(target, value Measure) (int, bool) {
	t, ok := target.Number()
	if !ok || t <= 0 {
		return 0, false
	}
	v, ok := value.Number()
	if !ok {
		return 0, false
	}
	pct := math.Round(v / t * 100)
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return int(pct), true
}
