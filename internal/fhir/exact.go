package fhir

import (
	"reflect"
	"strings"

	"github.com/goccy/go-json"
)

var rawMessageType = reflect.TypeOf(json.RawMessage(nil))

// unmarshalExact decodes data into v, matching object keys to json tags by
// exact case. Keys that differ only in case are dropped before decoding, so
// they count as absent rather than binding to a field.
func unmarshalExact(data []byte, v any) error {
	filtered, err := exactKeys(data, reflect.TypeOf(v))
	if err != nil {
		return err
	}
	return json.Unmarshal(filtered, v)
}

func exactKeys(raw json.RawMessage, t reflect.Type) (json.RawMessage, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == rawMessageType {
		return raw, nil
	}
	switch t.Kind() {
	case reflect.Struct:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
			// Not an object: the typed decode reports the mismatch.
			return raw, nil
		}
		kept := make(map[string]json.RawMessage, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := jsonName(f)
			if name == "" {
				continue
			}
			val, ok := fields[name]
			if !ok {
				continue
			}
			val, err := exactKeys(val, f.Type)
			if err != nil {
				return nil, err
			}
			kept[name] = val
		}
		return json.Marshal(kept)
	case reflect.Slice, reflect.Array:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil || items == nil {
			return raw, nil
		}
		for i, item := range items {
			out, err := exactKeys(item, t.Elem())
			if err != nil {
				return nil, err
			}
			items[i] = out
		}
		return json.Marshal(items)
	}
	return raw, nil
}

func jsonName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}
