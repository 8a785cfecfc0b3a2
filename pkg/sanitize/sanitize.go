package sanitize

import (
	"html"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// strict drops every tag and keeps only the text content.
var strict = bluemonday.StrictPolicy()

const maxPasses = 8

// Clean trims whitespace and strips markup from a single form value.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	// Unescaping can surface markup that was entity-encoded, so strip again
	// until the text stops changing.
	for i := 0; i < maxPasses; i++ {
		next := strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
		if next == s {
			return next
		}
		s = next
	}
	return strings.TrimSpace(strict.Sanitize(s))
}

// Struct cleans every exported string field of a struct pointer in place,
// descending into nested structs and slices of structs.
func Struct(ptr any) {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return
	}
	walk(v.Elem())
}

func walk(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			walk(v.Elem())
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				walk(v.Field(i))
			}
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			walk(v.Index(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(Clean(v.String()))
		}
	}
}

// Summary cuts s to at most max bytes on a word boundary for listings.
func Summary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	i := max
	for i > 0 && i < len(s) && s[i] != ' ' {
		i--
	}
	if i <= 0 {
		i = max
		for i > 0 && !utf8.RuneStart(s[i]) {
			i--
		}
	}
	return s[:i] + "…"
}
