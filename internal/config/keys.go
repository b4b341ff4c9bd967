package config

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// ParseConfigPath splits a dot-separated key such as "gateway.auth.token"
// and checks every segment against the settings schema. Segments below a
// map-typed setting (hotkeys.bindings.<chord>) are free-form.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config key"}
	}
	parts := strings.Split(raw, ".")
	t := reflect.TypeOf(Config{})
	for i, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: fmt.Sprintf("config key %q has an empty segment", raw)}
		}
		switch t.Kind() {
		case reflect.Struct:
			field, ok := yamlField(t, p)
			if !ok {
				return nil, &ConfigError{Message: fmt.Sprintf("unknown config key %q (known under %s: %s)",
					raw, sectionName(parts[:i]), strings.Join(yamlKeys(t), ", "))}
			}
			t = derefType(field.Type)
		case reflect.Map:
			t = derefType(t.Elem())
		default:
			return nil, &ConfigError{Message: fmt.Sprintf("config key %q: %s is not a section", raw, strings.Join(parts[:i], "."))}
		}
	}
	return parts, nil
}

func sectionName(prefix []string) string {
	if len(prefix) == 0 {
		return "the root"
	}
	return strings.Join(prefix, ".")
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func yamlName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
	if name == "" {
		return strings.ToLower(f.Name)
	}
	return name
}

func yamlField(t reflect.Type, name string) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() && yamlName(f) == name {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

func yamlKeys(t reflect.Type) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); f.IsExported() && yamlName(f) != "-" {
			keys = append(keys, yamlName(f))
		}
	}
	slices.Sort(keys)
	return keys
}

// GetValueAtPath walks nested maps along path.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	var current any = root
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[key]; !ok {
			return nil, false
		}
	}
	return current, true
}

// SetValueAtPath stores value at path, creating missing sections. It
// refuses to replace a scalar with a section.
func SetValueAtPath(root map[string]any, path []string, value any) error {
	current := root
	for i, key := range path[:len(path)-1] {
		next, ok := current[key]
		if !ok || next == nil {
			m := map[string]any{}
			current[key] = m
			current = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return &ConfigError{Message: fmt.Sprintf("%s holds %v, not a section", strings.Join(path[:i+1], "."), next)}
		}
		current = m
	}
	current[path[len(path)-1]] = value
	return nil
}

// UnsetValueAtPath deletes the value at path and drops sections it leaves
// empty. It reports whether anything was removed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	if len(path) == 0 {
		return false
	}
	key := path[0]
	if len(path) == 1 {
		if _, ok := root[key]; !ok {
			return false
		}
		delete(root, key)
		return true
	}
	child, ok := root[key].(map[string]any)
	if !ok || !UnsetValueAtPath(child, path[1:]) {
		return false
	}
	if len(child) == 0 {
		delete(root, key)
	}
	return true
}
