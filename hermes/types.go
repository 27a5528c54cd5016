package hermes

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrUnknownType = errors.New("unknown type")

const (
	TypeString     = "string"
	TypeText       = "text"
	TypeInteger    = "integer"
	TypeBigInteger = "biginteger"
	TypeFloat      = "float"
	TypeDecimal    = "decimal"
	TypeBoolean    = "boolean"
	TypeDateTime   = "datetime"
	TypeTimestamp  = "timestamp"
	TypeDate       = "date"
	TypeTime       = "time"
	TypeBinary     = "binary"
	TypeUUID       = "uuid"
	TypeJSON       = "json"
)

const (
	dateTimeLayout = "2006-01-02 15:04:05"
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
)

// Types maps field names to logical type names for a single builder call.
type Types map[string]string

type ToDriverFunc func(value any) (any, error)

type FromDriverFunc func(value any) (any, error)

type typeConverter struct {
	toDriver   ToDriverFunc
	fromDriver FromDriverFunc
}

// TypeRegistry is the single place where host values become driver values
// and back. Converters must be pure.
type TypeRegistry struct {
	mutex      sync.RWMutex
	converters map[string]typeConverter
}

var defaultTypes = NewTypeRegistry()

func DefaultTypes() *TypeRegistry {
	return defaultTypes
}

// RegisterType installs a converter on the default registry.
func RegisterType(name string, toDriver ToDriverFunc, fromDriver FromDriverFunc) {
	defaultTypes.Register(name, toDriver, fromDriver)
}

func NewTypeRegistry() *TypeRegistry {
	registry := &TypeRegistry{
		converters: map[string]typeConverter{},
	}

	registry.Register(TypeString, stringToDriver, stringFromDriver)
	registry.Register(TypeText, stringToDriver, stringFromDriver)
	registry.Register(TypeInteger, integerToDriver, integerFromDriver)
	registry.Register(TypeBigInteger, integerToDriver, integerFromDriver)
	registry.Register(TypeFloat, floatToDriver, floatFromDriver)
	registry.Register(TypeDecimal, decimalToDriver, decimalFromDriver)
	registry.Register(TypeBoolean, booleanToDriver, booleanFromDriver)
	registry.Register(TypeDateTime, timeToDriver(dateTimeLayout), timeFromDriver)
	registry.Register(TypeTimestamp, timeToDriver(dateTimeLayout), timeFromDriver)
	registry.Register(TypeDate, timeToDriver(dateLayout), timeFromDriver)
	registry.Register(TypeTime, timeToDriver(timeLayout), timeFromDriver)
	registry.Register(TypeBinary, binaryToDriver, binaryFromDriver)
	registry.Register(TypeUUID, uuidToDriver, uuidFromDriver)
	registry.Register(TypeJSON, jsonToDriver, jsonFromDriver)

	return registry
}

func (registry *TypeRegistry) Register(name string, toDriver ToDriverFunc, fromDriver FromDriverFunc) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	registry.converters[name] = typeConverter{
		toDriver:   toDriver,
		fromDriver: fromDriver,
	}
}

func (registry *TypeRegistry) Has(name string) bool {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	_, found := registry.converters[baseType(name)]

	return found
}

func (registry *TypeRegistry) lookup(name string) (typeConverter, bool) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	converter, found := registry.converters[name]

	return converter, found
}

// ToDriver converts value using the named converter. An empty name infers
// the type from the value; values with no inferable type pass through.
func (registry *TypeRegistry) ToDriver(name string, value any) (any, error) {
	if isNil(value) {
		return nil, nil
	}

	name = baseType(name)
	if name == "" {
		name = registry.Infer(value)
		if name == "" {
			return value, nil
		}
	}

	converter, found := registry.lookup(name)
	if !found {
		return nil, &TypeConversionError{Type: name, Value: value, Err: ErrUnknownType}
	}

	if converter.toDriver == nil {
		return value, nil
	}

	converted, err := converter.toDriver(value)
	if err != nil {
		return nil, &TypeConversionError{Type: name, Value: value, Err: err}
	}

	return converted, nil
}

func (registry *TypeRegistry) FromDriver(name string, value any) (any, error) {
	if isNil(value) {
		return nil, nil
	}

	name = baseType(name)
	if name == "" {
		return value, nil
	}

	converter, found := registry.lookup(name)
	if !found {
		return nil, &TypeConversionError{Type: name, Value: value, Err: ErrUnknownType}
	}

	if converter.fromDriver == nil {
		return value, nil
	}

	converted, err := converter.fromDriver(value)
	if err != nil {
		return nil, &TypeConversionError{Type: name, Value: value, Err: err}
	}

	return converted, nil
}

// Infer picks a logical type from a host value.
func (registry *TypeRegistry) Infer(value any) string {
	switch value.(type) {
	case nil:
		return ""
	case string:
		return TypeString
	case []byte:
		return TypeBinary
	case bool:
		return TypeBoolean
	case time.Time, *time.Time:
		return TypeDateTime
	case uuid.UUID:
		return TypeUUID
	}

	switch reflect.ValueOf(value).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeFloat
	case reflect.String:
		return TypeString
	case reflect.Bool:
		return TypeBoolean
	}

	return ""
}

// baseType strips the list marker from types such as "integer[]".
func baseType(name string) string {
	return strings.TrimSuffix(strings.TrimSpace(name), "[]")
}

func isNil(value any) bool {
	if value == nil {
		return true
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}

	return false
}

func stringToDriver(value any) (any, error) {
	switch typed := value.(type) {
	case string:
		return typed, nil
	case []byte:
		return string(typed), nil
	case fmt.Stringer:
		return typed.String(), nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	}

	return nil, fmt.Errorf("%T is not a scalar", value)
}

func stringFromDriver(value any) (any, error) {
	switch typed := value.(type) {
	case string:
		return typed, nil
	case []byte:
		return string(typed), nil
	}

	return stringToDriver(value)
}

func integerToDriver(value any) (any, error) {
	if text, ok := value.(string); ok {
		return strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return nil, errors.New("value overflows a signed 64 bit integer")
		}

		return int64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) {
			return nil, errors.New("value has a fractional part")
		}

		return int64(f), nil
	case reflect.Bool:
		if rv.Bool() {
			return int64(1), nil
		}

		return int64(0), nil
	case reflect.String:
		return strconv.ParseInt(strings.TrimSpace(rv.String()), 10, 64)
	}

	return nil, fmt.Errorf("%T is not numeric", value)
}

func integerFromDriver(value any) (any, error) {
	if raw, ok := value.([]byte); ok {
		return strconv.ParseInt(string(raw), 10, 64)
	}

	return integerToDriver(value)
}

func floatToDriver(value any) (any, error) {
	if text, ok := value.(string); ok {
		return strconv.ParseFloat(strings.TrimSpace(text), 64)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return strconv.ParseFloat(strings.TrimSpace(rv.String()), 64)
	}

	return nil, fmt.Errorf("%T is not numeric", value)
}

func floatFromDriver(value any) (any, error) {
	if raw, ok := value.([]byte); ok {
		return strconv.ParseFloat(string(raw), 64)
	}

	return floatToDriver(value)
}

// Decimals travel as strings so no precision is lost on the way.
func decimalToDriver(value any) (any, error) {
	switch typed := value.(type) {
	case string:
		if _, err := strconv.ParseFloat(strings.TrimSpace(typed), 64); err != nil {
			return nil, err
		}

		return strings.TrimSpace(typed), nil
	case []byte:
		return decimalToDriver(string(typed))
	}

	f, err := floatToDriver(value)
	if err != nil {
		return nil, err
	}

	return strconv.FormatFloat(f.(float64), 'f', -1, 64), nil
}

func decimalFromDriver(value any) (any, error) {
	return decimalToDriver(value)
}

func booleanToDriver(value any) (any, error) {
	switch typed := value.(type) {
	case bool:
		return typed, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(typed))
	case []byte:
		return strconv.ParseBool(string(typed))
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0, nil
	}

	return nil, fmt.Errorf("%T is not a boolean", value)
}

func booleanFromDriver(value any) (any, error) {
	return booleanToDriver(value)
}

var parseLayouts = []string{
	dateTimeLayout,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	dateLayout,
	timeLayout,
}

func parseTime(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	for _, layout := range parseLayouts {
		parsed, err := time.Parse(layout, text)
		if err == nil {
			return parsed, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format %q", text)
}

func timeToDriver(layout string) ToDriverFunc {
	return func(value any) (any, error) {
		var t time.Time
		switch typed := value.(type) {
		case time.Time:
			t = typed
		case *time.Time:
			t = *typed
		case string:
			parsed, err := parseTime(typed)
			if err != nil {
				return nil, err
			}
			t = parsed
		case int64:
			t = time.Unix(typed, 0)
		case int:
			t = time.Unix(int64(typed), 0)
		default:
			return nil, fmt.Errorf("%T is not a time", value)
		}

		return t.UTC().Format(layout), nil
	}
}

func timeFromDriver(value any) (any, error) {
	switch typed := value.(type) {
	case time.Time:
		return typed, nil
	case string:
		return parseTime(typed)
	case []byte:
		return parseTime(string(typed))
	case int64:
		return time.Unix(typed, 0).UTC(), nil
	}

	return nil, fmt.Errorf("%T is not a time", value)
}

func binaryToDriver(value any) (any, error) {
	switch typed := value.(type) {
	case []byte:
		return typed, nil
	case string:
		return []byte(typed), nil
	case uuid.UUID:
		return typed[:], nil
	}

	return nil, fmt.Errorf("%T is not binary", value)
}

func binaryFromDriver(value any) (any, error) {
	return binaryToDriver(value)
}

func uuidToDriver(value any) (any, error) {
	switch typed := value.(type) {
	case uuid.UUID:
		return typed.String(), nil
	case string:
		parsed, err := uuid.Parse(typed)
		if err != nil {
			return nil, err
		}

		return parsed.String(), nil
	case []byte:
		parsed, err := uuid.FromBytes(typed)
		if err != nil {
			return nil, err
		}

		return parsed.String(), nil
	}

	return nil, fmt.Errorf("%T is not a uuid", value)
}

func uuidFromDriver(value any) (any, error) {
	switch typed := value.(type) {
	case uuid.UUID:
		return typed, nil
	case string:
		return uuid.Parse(typed)
	case []byte:
		if len(typed) == 16 {
			return uuid.FromBytes(typed)
		}

		return uuid.ParseBytes(typed)
	}

	return nil, fmt.Errorf("%T is not a uuid", value)
}

func jsonToDriver(value any) (any, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	return string(encoded), nil
}

func jsonFromDriver(value any) (any, error) {
	var raw []byte
	switch typed := value.(type) {
	case string:
		raw = []byte(typed)
	case []byte:
		raw = typed
	default:
		return value, nil
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}

	return decoded, nil
}

// TypeMap resolves the logical type of a field when a builder call did not
// name one explicitly.
type TypeMap struct {
	defaults map[string]string
	types    map[string]string
}

func NewTypeMap(defaults map[string]string) *TypeMap {
	typeMap := &TypeMap{
		defaults: map[string]string{},
		types:    map[string]string{},
	}

	for field, typ := range defaults {
		typeMap.defaults[field] = typ
	}

	return typeMap
}

func (typeMap *TypeMap) SetDefaults(defaults map[string]string) *TypeMap {
	typeMap.defaults = map[string]string{}

	return typeMap.AddDefaults(defaults)
}

func (typeMap *TypeMap) AddDefaults(types map[string]string) *TypeMap {
	for field, typ := range types {
		typeMap.defaults[field] = typ
	}

	return typeMap
}

func (typeMap *TypeMap) SetTypes(types map[string]string) *TypeMap {
	typeMap.types = map[string]string{}
	for field, typ := range types {
		typeMap.types[field] = typ
	}

	return typeMap
}

func (typeMap *TypeMap) Defaults() map[string]string {
	return typeMap.defaults
}

func (typeMap *TypeMap) Types() map[string]string {
	return typeMap.types
}

// Type returns the type of field, trying "table.field" before "field".
func (typeMap *TypeMap) Type(field string) string {
	if typeMap == nil {
		return ""
	}

	if typ, found := typeMap.types[field]; found {
		return typ
	}

	if typ, found := typeMap.defaults[field]; found {
		return typ
	}

	if i := strings.LastIndex(field, "."); i >= 0 {
		return typeMap.Type(field[i+1:])
	}

	return ""
}

func (typeMap *TypeMap) Clone() *TypeMap {
	clone := NewTypeMap(typeMap.defaults)
	clone.SetTypes(typeMap.types)

	return clone
}
