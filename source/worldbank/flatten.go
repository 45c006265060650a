package worldbank

import (
	"bytes"
	"encoding/json"
	"fmt"

	"worldbank-panel/models"
)

var jsonNull = []byte("null")

// flattenRecords turns the records element of the envelope into a raw table.
// Nested objects become dotted columns (country.id, country.value); columns
// appear in first-seen order across records. Null becomes an empty cell and
// arrays are kept as compact JSON text.
func flattenRecords(data json.RawMessage) (*models.RawTable, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return &models.RawTable{}, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &MalformedResponseError{Reason: "records element is not an array", Err: err}
	}

	table := &models.RawTable{}
	index := make(map[string]int)
	cells := make([]map[string]string, 0, len(records))

	for i, rec := range records {
		row := make(map[string]string)
		err := flattenObject(rec, "", func(col, val string) {
			if _, ok := index[col]; !ok {
				index[col] = len(table.Columns)
				table.Columns = append(table.Columns, col)
			}
			row[col] = val
		})
		if err != nil {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("record %d", i), Err: err}
		}
		cells = append(cells, row)
	}

	table.Rows = make([][]string, len(cells))
	for i, row := range cells {
		out := make([]string, len(table.Columns))
		for col, val := range row {
			out[index[col]] = val
		}
		table.Rows[i] = out
	}
	return table, nil
}

// flattenObject walks one JSON object in document order and emits a cell for
// every leaf.
func flattenObject(obj json.RawMessage, prefix string, emit func(col, val string)) error {
	dec := json.NewDecoder(bytes.NewReader(obj))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", keyTok)
		}
		col := key
		if prefix != "" {
			col = prefix + "." + key
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := flattenValue(raw, col, emit); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

func flattenValue(raw json.RawMessage, col string, emit func(col, val string)) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		emit(col, "")
		return nil
	}

	switch raw[0] {
	case '{':
		return flattenObject(raw, col, emit)
	case '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return err
		}
		emit(col, buf.String())
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		emit(col, s)
	case 'n':
		emit(col, "")
	default:
		// numbers and booleans keep their literal text
		emit(col, string(raw))
	}
	return nil
}
