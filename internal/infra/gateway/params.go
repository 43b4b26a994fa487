package gateway

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"nhlagent/internal/domain"
)

// stringifyParams coerces scalar values to their wire form. Nil values are
// dropped; nested values are rejected.
func stringifyParams(op, location string, params map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(params))
	for name, value := range params {
		if value == nil {
			continue
		}
		text, ok := stringify(value)
		if !ok {
			return nil, domain.E(domain.CodeInvalidArgument, op,
				fmt.Sprintf("%s parameter %q must be a scalar, got %T", location, name, value), nil).
				WithMeta("param", name)
		}
		out[name] = text
	}
	return out, nil
}

func stringify(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case json.Number:
		return v.String(), true
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10), true
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return stringify(float64(v))
	default:
		return "", false
	}
}

// substitute fills {token} placeholders. Tokens without a value are left in
// place so the backend reports them.
func substitute(template string, params map[string]string) string {
	path := template
	for name, value := range params {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(value))
	}
	return strings.TrimPrefix(path, "/")
}
