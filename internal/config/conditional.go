package config

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"

	"github.com/kyanite-build/kyanite/internal/rawtoml"
)

// mergeStructs merges src's non-zero fields into dst, adapted from the
// teacher's builder.mergeStructs: slices append, maps union (src wins on key
// collision), bools OR together, everything else overwrites when non-zero.
func mergeStructs(dst, src any) error {
	dstVal := reflect.ValueOf(dst)
	if dstVal.Kind() != reflect.Pointer || dstVal.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("mergeStructs: dst must be a pointer to a struct")
	}
	dstElem := dstVal.Elem()

	srcVal := reflect.ValueOf(src)
	if srcVal.Kind() == reflect.Pointer {
		srcVal = srcVal.Elem()
	}
	if srcVal.Kind() != reflect.Struct || dstElem.Type() != srcVal.Type() {
		return fmt.Errorf("mergeStructs: dst and src must share a struct type")
	}

	for i := 0; i < srcVal.NumField(); i++ {
		srcField := srcVal.Field(i)
		dstField := dstElem.Field(i)
		if !dstField.CanSet() {
			continue
		}

		switch dstField.Kind() {
		case reflect.Slice:
			if !srcField.IsNil() {
				dstField.Set(reflect.AppendSlice(dstField, srcField))
			}
		case reflect.Map:
			if !srcField.IsNil() {
				if dstField.IsNil() {
					dstField.Set(reflect.MakeMap(dstField.Type()))
				}
				for _, key := range srcField.MapKeys() {
					dstField.SetMapIndex(key, srcField.MapIndex(key))
				}
			}
		case reflect.Bool:
			dstField.SetBool(dstField.Bool() || srcField.Bool())
		default:
			if !srcField.IsZero() {
				dstField.Set(srcField)
			}
		}
	}
	return nil
}

func mustMarshal(v any) string {
	s, err := rawtoml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return s
}

// mergeConditionalTable splits elem's keys into plain fields and
// boolean-expression-keyed subtables (a key that compiles as an expr
// predicate against env is treated as conditional), unmarshals the plain
// fields into dst, then merges in every conditional subtable whose predicate
// evaluates true. This is how a single [[target]] entry picks up its
// `[target."target_os == 'linux'"]`-style overrides.
func mergeConditionalTable(elem map[string]any, dst any, env Env) error {
	base := make(map[string]any)
	var conditionalKeys []string
	conditional := make(map[string]map[string]any)

	for key, val := range elem {
		if subMap, ok := val.(map[string]any); ok {
			if _, err := expr.Compile(key, expr.Env(env)); err == nil {
				conditional[key] = subMap
				conditionalKeys = append(conditionalKeys, key)
				continue
			}
		}
		base[key] = val
	}

	if len(base) > 0 {
		if err := toml.Unmarshal([]byte(mustMarshal(base)), dst); err != nil {
			return fmt.Errorf("failed to parse base fields: %w", err)
		}
	}

	for _, expression := range conditionalKeys {
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return fmt.Errorf("failed to compile condition %q: %w", expression, err)
		}
		result, err := expr.Run(program, env)
		if err != nil {
			return fmt.Errorf("failed to evaluate condition %q: %w", expression, err)
		}
		matched, ok := result.(bool)
		if !ok || !matched {
			continue
		}

		condVal := reflect.New(reflect.TypeOf(dst).Elem()).Interface()
		if err := toml.Unmarshal([]byte(mustMarshal(conditional[expression])), condVal); err != nil {
			return fmt.Errorf("failed to parse conditional section %q: %w", expression, err)
		}
		if err := mergeStructs(dst, condVal); err != nil {
			return fmt.Errorf("failed to merge conditional section %q: %w", expression, err)
		}
	}
	return nil
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString substitutes every {{ expr }} occurrence in s with the
// result of evaluating expr against env.
func evaluateString(s string, env Env) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		expression := strings.TrimSpace(s[m[2]:m[3]])

		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}
		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("failed to run expression %q: %w", expression, err)
		}
		b.WriteString(fmt.Sprintf("%v", result))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

// processExpressions recursively walks decoded TOML data, evaluating every
// {{ }} interpolation found in a string leaf.
func processExpressions(data any, env Env) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			out, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = out
		}
		return v, nil
	case []any:
		for i, item := range v {
			out, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = out
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}
