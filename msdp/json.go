package msdp

import "encoding/json"

// MarshalJSON renders a Value as plain JSON: a string leaf becomes a JSON
// string, an array becomes a JSON array, and a table becomes a JSON object.
// This is the bridge a GMCP-style consumer (or a debug log) uses to look at
// an MSDP tree without knowing about VAR/VAL framing at all.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindArray:
		return json.Marshal(v.Array)
	case KindTable:
		return json.Marshal(v.Table)
	default:
		return json.Marshal(v.String)
	}
}

// UnmarshalJSON builds a Value from JSON, inferring Kind from the JSON
// shape: a string becomes KindString, an array KindArray, and an object
// KindTable. MSDP has no boolean or null scalar, so true/false/null map to
// the conventional MSDP encoding of "1"/"0"/"-1"; numbers are stored as
// their literal JSON text, which is already a valid MSDP string.
func (v *Value) UnmarshalJSON(data []byte) error {
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	switch typed := probe.(type) {
	case []any:
		items := make([]Value, 0, len(typed))
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return err
		}
		for _, raw := range raws {
			var item Value
			if err := json.Unmarshal(raw, &item); err != nil {
				return err
			}
			items = append(items, item)
		}
		*v = ArrayValue(items)
		return nil
	case map[string]any:
		var raws map[string]json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return err
		}
		table := make(map[string]Value, len(raws))
		for name, raw := range raws {
			var item Value
			if err := json.Unmarshal(raw, &item); err != nil {
				return err
			}
			table[name] = item
		}
		*v = TableValue(table)
		return nil
	case string:
		*v = StringValue(typed)
		return nil
	case bool:
		if typed {
			*v = StringValue("1")
		} else {
			*v = StringValue("0")
		}
		return nil
	case nil:
		*v = StringValue("-1")
		return nil
	default:
		// Numbers: MSDP has no native numeric type, but the literal JSON
		// text is already a valid MSDP string.
		*v = StringValue(string(data))
		return nil
	}
}

// ToJSON renders a decoded top-level MSDP table as a single JSON object,
// the shape a GMCP-style consumer expects.
func ToJSON(table map[string]Value) ([]byte, error) {
	return json.Marshal(table)
}

// FromJSON parses a JSON object into the table shape Encode expects.
func FromJSON(data []byte) (map[string]Value, error) {
	var table map[string]Value
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, err
	}
	return table, nil
}
