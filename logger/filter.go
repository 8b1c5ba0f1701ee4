// Package logger provides filtering capabilities for sensitive data in log output.
package logger

import (
	"net/url"
	"reflect"
	"regexp"
	"strings"
)

const (
	// DefaultMaxDepth is the default maximum recursion depth for filtering
	DefaultMaxDepth = 8
	// DefaultMaskValue replaces sensitive values
	DefaultMaskValue = "***"
)

// FilterConfig defines the configuration for sensitive data filtering
type FilterConfig struct {
	// SensitiveFields contains field names that should be masked in logs.
	// Matching is case-insensitive and by substring.
	SensitiveFields []string
	// MaskValue is the value used to replace sensitive data (default: "***")
	MaskValue string
}

// DefaultFilterConfig returns a default configuration with common sensitive field names
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "passwd", "pwd",
			"secret", "token", "auth",
			"credential", "connectionstring", "dsn",
			"database_url", "db_url",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks sensitive fields before they reach the log output
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a new filter with the given configuration
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// keywordPassword matches password entries of keyword/value connection
// strings such as "host=db user=app password=s3cret".
var keywordPassword = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|\S+)`)

// FilterString masks value when key is sensitive. Connection URLs keep
// their structure with only the password replaced.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if !f.isSensitiveField(key) || value == "" {
		return value
	}
	if strings.Contains(value, "://") {
		return f.maskURL(value)
	}
	if keywordPassword.MatchString(value) {
		return keywordPassword.ReplaceAllString(value, "${1}"+f.config.MaskValue)
	}
	return f.config.MaskValue
}

// FilterValue masks sensitive data in value. Maps and structs are walked
// recursively up to DefaultMaxDepth; structs come back as maps keyed by
// their json names. Cyclic references are returned unfiltered.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	w := &walker{filter: f, visited: make(map[uintptr]struct{})}
	return w.value(key, value, DefaultMaxDepth)
}

// FilterFields filters a map of fields for sensitive data
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	filtered := make(map[string]any, len(fields))
	for key, value := range fields {
		filtered[key] = f.FilterValue(key, value)
	}
	return filtered
}

func (f *SensitiveDataFilter) isSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, sensitive := range f.config.SensitiveFields {
		if strings.Contains(lower, strings.ToLower(sensitive)) {
			return true
		}
	}
	return false
}

// maskURL replaces the password of a URL. Unparseable input is masked whole.
func (f *SensitiveDataFilter) maskURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return f.config.MaskValue
	}
	if parsed.User == nil {
		return raw
	}
	if _, ok := parsed.User.Password(); !ok {
		return raw
	}

	var b strings.Builder
	b.WriteString(parsed.Scheme)
	b.WriteString("://")
	b.WriteString(parsed.User.Username())
	b.WriteByte(':')
	b.WriteString(f.config.MaskValue)
	b.WriteByte('@')
	b.WriteString(parsed.Host)
	b.WriteString(parsed.EscapedPath())
	if parsed.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(parsed.RawQuery)
	}
	if parsed.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(parsed.Fragment)
	}
	return b.String()
}

// walker carries the cycle detection state of one FilterValue call.
type walker struct {
	filter  *SensitiveDataFilter
	visited map[uintptr]struct{}
}

func (w *walker) value(key string, value any, depth int) any {
	if w.filter.isSensitiveField(key) {
		if s, ok := value.(string); ok {
			return w.filter.FilterString(key, s)
		}
		return w.filter.config.MaskValue
	}
	if value == nil || depth <= 0 {
		return value
	}

	if m, ok := value.(map[string]any); ok {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = w.value(k, v, depth-1)
		}
		return out
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return w.list(key, rv, depth)
	case reflect.Struct:
		return w.structure(rv, 0, depth)
	case reflect.Pointer:
		if rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
			return value
		}
		return w.structure(rv.Elem(), rv.Pointer(), depth)
	default:
		return value
	}
}

// list filters the elements of a slice or array. The original value is
// returned when no element changed so its type is preserved.
func (w *walker) list(key string, rv reflect.Value, depth int) any {
	if rv.Kind() == reflect.Slice && !rv.IsNil() && rv.Len() > 0 {
		ptr := rv.Pointer()
		if _, seen := w.visited[ptr]; seen {
			return rv.Interface()
		}
		w.visited[ptr] = struct{}{}
		defer delete(w.visited, ptr)
	}

	out := make([]any, rv.Len())
	changed := false
	for i := range rv.Len() {
		elem := rv.Index(i)
		filtered := w.value(key, elem.Interface(), depth-1)
		if isStruct(elem.Type()) || !sameValue(filtered, elem.Interface()) {
			changed = true
		}
		out[i] = filtered
	}
	if !changed {
		return rv.Interface()
	}
	return out
}

func (w *walker) structure(sv reflect.Value, ptr uintptr, depth int) any {
	if ptr != 0 {
		if _, seen := w.visited[ptr]; seen {
			return sv.Addr().Interface()
		}
		w.visited[ptr] = struct{}{}
		defer delete(w.visited, ptr)
	}

	st := sv.Type()
	out := make(map[string]any, sv.NumField())
	for i := range sv.NumField() {
		field := st.Field(i)
		if !field.IsExported() {
			continue
		}
		name := jsonName(&field)
		if name == "" {
			continue
		}
		out[name] = w.value(name, sv.Field(i).Interface(), depth-1)
	}
	return out
}

func isStruct(t reflect.Type) bool {
	return t.Kind() == reflect.Struct || (t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct)
}

// sameValue reports whether a filtered element is unchanged. Values that
// are not comparable count as changed.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}

// jsonName returns the json name of a struct field, its Go name when
// untagged, or "" when the field is skipped with `json:"-"`.
func jsonName(field *reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}
