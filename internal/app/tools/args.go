package tools

import (
	"fmt"
	"math"
	"strings"

	"nhlagent/internal/domain"
	"nhlagent/internal/infra/normalize"
)

// args reads decoded tool arguments. The first problem is kept and later
// reads become no-ops, so handlers can read every field and check once.
type args struct {
	op  string
	raw map[string]any
	err error
}

func newArgs(tool string, raw map[string]any) *args {
	if raw == nil {
		raw = map[string]any{}
	}
	return &args{op: "tool." + tool, raw: raw}
}

func (a *args) fail(format string, v ...any) {
	if a.err == nil {
		a.err = domain.E(domain.CodeInvalidArgument, a.op, fmt.Sprintf(format, v...), nil)
	}
}

func (a *args) present(key string) bool {
	value, ok := a.raw[key]
	return ok && value != nil
}

func (a *args) String(key string) string {
	if !a.present(key) {
		a.fail("%s is required", key)
		return ""
	}
	return a.OptionalString(key)
}

func (a *args) OptionalString(key string) string {
	if !a.present(key) {
		return ""
	}
	value, ok := a.raw[key].(string)
	if !ok {
		a.fail("%s must be a string", key)
		return ""
	}
	return strings.TrimSpace(value)
}

func (a *args) Int(key string) int {
	if !a.present(key) {
		a.fail("%s is required", key)
		return 0
	}
	value, _ := a.OptionalInt(key, 0)
	return value
}

// OptionalInt returns fallback when key is absent.
func (a *args) OptionalInt(key string, fallback int) (int, bool) {
	if !a.present(key) {
		return fallback, false
	}
	value, ok := integral(a.raw[key])
	if !ok {
		a.fail("%s must be an integer", key)
		return fallback, false
	}
	return value, true
}

func (a *args) OptionalFloat(key string, fallback float64) float64 {
	if !a.present(key) {
		return fallback
	}
	if _, isString := a.raw[key].(string); isString {
		a.fail("%s must be a number", key)
		return fallback
	}
	value, ok := normalize.Number(a.raw[key])
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		a.fail("%s must be a number", key)
		return fallback
	}
	return value
}

func (a *args) IntList(key string) []int {
	if !a.present(key) {
		a.fail("%s is required", key)
		return nil
	}
	items, ok := a.raw[key].([]any)
	if !ok {
		if ints, isInts := a.raw[key].([]int); isInts {
			return append([]int(nil), ints...)
		}
		a.fail("%s must be an array of integers", key)
		return nil
	}
	out := make([]int, 0, len(items))
	for i, item := range items {
		value, ok := integral(item)
		if !ok {
			a.fail("%s[%d] must be an integer", key, i)
			return nil
		}
		out = append(out, value)
	}
	return out
}

func (a *args) OptionalObject(key string) map[string]any {
	if !a.present(key) {
		return nil
	}
	value, ok := a.raw[key].(map[string]any)
	if !ok {
		a.fail("%s must be an object", key)
		return nil
	}
	return value
}

func (a *args) Err() error {
	return a.err
}

func integral(value any) (int, bool) {
	if _, isString := value.(string); isString {
		return 0, false
	}
	if _, isBool := value.(bool); isBool {
		return 0, false
	}
	number, ok := normalize.Number(value)
	if !ok || number != math.Trunc(number) || math.IsInf(number, 0) {
		return 0, false
	}
	return int(number), true
}
