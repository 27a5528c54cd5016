package database

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/lunagic/hermes/hermes"
)

// cachedResult is a result set in a form that survives JSON: every value is
// stored as text next to the kind needed to restore it.
type cachedResult struct {
	Rows []map[string]cachedValue `json:"rows"`
}

type cachedValue struct {
	Kind  string `json:"k"`
	Value string `json:"v,omitempty"`
}

const (
	kindNull   = "null"
	kindString = "string"
	kindBytes  = "bytes"
	kindInt    = "int"
	kindFloat  = "float"
	kindBool   = "bool"
	kindTime   = "time"
)

func encodeResult(rows []hermes.Row) cachedResult {
	result := cachedResult{Rows: make([]map[string]cachedValue, 0, len(rows))}
	for _, row := range rows {
		encoded := make(map[string]cachedValue, len(row))
		for column, value := range row {
			encoded[column] = encodeValue(value)
		}

		result.Rows = append(result.Rows, encoded)
	}

	return result
}

func encodeValue(value any) cachedValue {
	switch typed := value.(type) {
	case nil:
		return cachedValue{Kind: kindNull}
	case string:
		return cachedValue{Kind: kindString, Value: typed}
	case []byte:
		return cachedValue{Kind: kindBytes, Value: base64.StdEncoding.EncodeToString(typed)}
	case int64:
		return cachedValue{Kind: kindInt, Value: strconv.FormatInt(typed, 10)}
	case int:
		return cachedValue{Kind: kindInt, Value: strconv.Itoa(typed)}
	case float64:
		return cachedValue{Kind: kindFloat, Value: strconv.FormatFloat(typed, 'g', -1, 64)}
	case bool:
		return cachedValue{Kind: kindBool, Value: strconv.FormatBool(typed)}
	case time.Time:
		return cachedValue{Kind: kindTime, Value: typed.Format(time.RFC3339Nano)}
	}

	return cachedValue{Kind: kindString, Value: fmt.Sprint(value)}
}

func (result cachedResult) decode() ([]hermes.Row, error) {
	rows := make([]hermes.Row, 0, len(result.Rows))
	for _, encoded := range result.Rows {
		row := make(hermes.Row, len(encoded))
		for column, value := range encoded {
			decoded, err := value.decode()
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", column, err)
			}

			row[column] = decoded
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func (value cachedValue) decode() (any, error) {
	switch value.Kind {
	case kindNull:
		return nil, nil
	case kindString:
		return value.Value, nil
	case kindBytes:
		return base64.StdEncoding.DecodeString(value.Value)
	case kindInt:
		return strconv.ParseInt(value.Value, 10, 64)
	case kindFloat:
		return strconv.ParseFloat(value.Value, 64)
	case kindBool:
		return strconv.ParseBool(value.Value)
	case kindTime:
		return time.Parse(time.RFC3339Nano, value.Value)
	}

	return nil, fmt.Errorf("unknown cached kind %q", value.Kind)
}
