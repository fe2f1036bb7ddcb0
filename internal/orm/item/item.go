// Package item turns raw rows into validated items and projections.
package item

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/conduit-lang/tablequery/internal/orm/validation"
)

// Item is one row of a table with every value validated by its column.
// Fields keep the schema's column order.
type Item struct {
	primary string
	fields  []string
	values  map[string]interface{}
}

// New creates an empty item whose id lives in the primary column
func New(primary string) *Item {
	return &Item{primary: primary, values: make(map[string]interface{})}
}

// Set stores a value, appending the field on first use
func (i *Item) Set(field string, value interface{}) {
	if _, ok := i.values[field]; !ok {
		i.fields = append(i.fields, field)
	}
	i.values[field] = value
}

// ID returns the primary key value
func (i *Item) ID() interface{} {
	return i.values[i.primary]
}

// Get returns a field value
func (i *Item) Get(field string) (interface{}, bool) {
	v, ok := i.values[field]
	return v, ok
}

// Has reports whether the item carries field
func (i *Item) Has(field string) bool {
	_, ok := i.values[field]
	return ok
}

// Fields returns the field names in column order
func (i *Item) Fields() []string {
	return append([]string(nil), i.fields...)
}

// Map returns a copy of the values
func (i *Item) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(i.values))
	for k, v := range i.values {
		out[k] = v
	}
	return out
}

// Decode copies the item into a struct. Fields are matched by their "db"
// tag and converted weakly, so "42" fills an int.
func (i *Item) Decode(dst interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "db",
		WeaklyTypedInput: true,
		Result:           dst,
		DecodeHook:       mapstructure.StringToTimeHookFunc(validation.DatetimeLayout),
	})
	if err != nil {
		return fmt.Errorf("item decoder: %w", err)
	}
	if err := dec.Decode(i.values); err != nil {
		return fmt.Errorf("decode item %v: %w", i.ID(), err)
	}
	return nil
}

// MarshalJSON writes the fields in column order
func (i *Item) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for n, field := range i.fields {
		if n > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(jsonValue(i.values[field]))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonValue keeps binary columns readable instead of base64
func jsonValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
