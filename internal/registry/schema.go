package registry

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strings"

	"pagecraft/internal/domain"
)

// FieldKind is the value kind of a props field.
type FieldKind string

const (
	KindString  FieldKind = "string"
	KindText    FieldKind = "text"
	KindNumber  FieldKind = "number"
	KindInteger FieldKind = "integer"
	KindBool    FieldKind = "bool"
	KindEnum    FieldKind = "enum"
	KindURL     FieldKind = "url"
	KindColor   FieldKind = "color"
	KindList    FieldKind = "list"
)

// Field describes one props field. Min/Max bound numbers; MaxLen bounds
// string length or list size. Item, when set, validates every list element.
type Field struct {
	Kind     FieldKind `json:"kind"`
	Label    string    `json:"label,omitempty"`
	Default  any       `json:"default,omitempty"`
	Required bool      `json:"required,omitempty"`
	Min      *float64  `json:"min,omitempty"`
	Max      *float64  `json:"max,omitempty"`
	MaxLen   int       `json:"maxLen,omitempty"`
	Enum     []string  `json:"enum,omitempty"`
	Item     *Field    `json:"item,omitempty"`
}

// Schema maps a field name to its description.
type Schema map[string]Field

var colorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Bound is a helper for building Min/Max.
func Bound(v float64) *float64 { return &v }

// Defaults returns a fresh props map holding every field's default.
func (s Schema) Defaults() domain.Props {
	p := make(domain.Props, len(s))
	for name, f := range s {
		if f.Default != nil {
			p[name] = domain.CloneValue(f.Default)
		}
	}
	return p
}

// Names returns the field names in sorted order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks every field of patch and reports all offenders at once.
// A nil value is a reset to the default and is rejected only for required
// fields without a default.
func (s Schema) Validate(patch domain.Props) error {
	var errs []domain.FieldError
	for name, v := range patch {
		f, ok := s[name]
		if !ok {
			errs = append(errs, domain.FieldError{Field: name, Reason: "unknown field"})
			continue
		}
		if v == nil {
			if f.Required && f.Default == nil {
				errs = append(errs, domain.FieldError{Field: name, Reason: "required"})
			}
			continue
		}
		if reason := f.check(v); reason != "" {
			errs = append(errs, domain.FieldError{Field: name, Reason: reason})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return &domain.ValidationError{Fields: errs}
}

// ValidateFull validates a complete props map: Validate plus every required
// field must be present.
func (s Schema) ValidateFull(props domain.Props) error {
	err := s.Validate(props)
	var errs []domain.FieldError
	if ve, ok := err.(*domain.ValidationError); ok {
		errs = ve.Fields
	}
	for _, name := range s.Names() {
		f := s[name]
		if !f.Required {
			continue
		}
		if _, ok := props[name]; !ok {
			errs = append(errs, domain.FieldError{Field: name, Reason: "required"})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return &domain.ValidationError{Fields: errs}
}

func (f Field) check(v any) string {
	switch f.Kind {
	case KindString, KindText:
		str, ok := v.(string)
		if !ok {
			return fmt.Sprintf("expected %s", f.Kind)
		}
		if f.Required && strings.TrimSpace(str) == "" {
			return "required"
		}
		if f.MaxLen > 0 && len([]rune(str)) > f.MaxLen {
			return fmt.Sprintf("longer than %d characters", f.MaxLen)
		}
	case KindURL:
		str, ok := v.(string)
		if !ok {
			return "expected url"
		}
		if str == "" {
			if f.Required {
				return "required"
			}
			return ""
		}
		if strings.HasPrefix(str, "/") || strings.HasPrefix(str, "#") {
			return ""
		}
		u, err := url.Parse(str)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "mailto") {
			return "invalid url"
		}
	case KindColor:
		str, ok := v.(string)
		if !ok || !colorRe.MatchString(str) {
			return "expected hex color"
		}
	case KindNumber, KindInteger:
		n, ok := toFloat(v)
		if !ok {
			return fmt.Sprintf("expected %s", f.Kind)
		}
		if f.Kind == KindInteger && n != math.Trunc(n) {
			return "expected integer"
		}
		if f.Min != nil && n < *f.Min {
			return fmt.Sprintf("below minimum %g", *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return fmt.Sprintf("above maximum %g", *f.Max)
		}
	case KindBool:
		if _, ok := v.(bool); !ok {
			return "expected bool"
		}
	case KindEnum:
		str, ok := v.(string)
		if !ok || !slices.Contains(f.Enum, str) {
			return fmt.Sprintf("must be one of %s", strings.Join(f.Enum, ", "))
		}
	case KindList:
		items, ok := toList(v)
		if !ok {
			return "expected list"
		}
		if f.MaxLen > 0 && len(items) > f.MaxLen {
			return fmt.Sprintf("more than %d items", f.MaxLen)
		}
		if f.Item != nil {
			for i, item := range items {
				if reason := f.Item.check(item); reason != "" {
					return fmt.Sprintf("item %d: %s", i, reason)
				}
			}
		}
	default:
		return fmt.Sprintf("unsupported kind %q", f.Kind)
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}
