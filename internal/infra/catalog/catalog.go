// Package catalog holds the allow-list of NHL endpoints the gateway may reach.
package catalog

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"nhlagent/internal/domain"
)

// Catalog is an immutable, ordered table of endpoints keyed by path template.
type Catalog struct {
	entries []domain.EndpointEntry
	byPath  map[string]int
}

// Load merges overrides into base and validates the result.
func Load(base []map[string]any, overrides []any) (*Catalog, error) {
	merged := MergeOverrides(base, overrides)

	entries := make([]domain.EndpointEntry, 0, len(merged))
	byPath := make(map[string]int, len(merged))
	byName := make(map[string]struct{}, len(merged))
	var validationErrors []string

	for i, record := range merged {
		entry, errs := decodeEntry(record, i)
		if len(errs) > 0 {
			validationErrors = append(validationErrors, errs...)
			continue
		}
		if _, exists := byPath[entry.Path]; exists {
			validationErrors = append(validationErrors, fmt.Sprintf("endpoints[%d]: duplicate path %q", i, entry.Path))
			continue
		}
		if _, exists := byName[entry.Name]; exists {
			validationErrors = append(validationErrors, fmt.Sprintf("endpoints[%d]: duplicate name %q", i, entry.Name))
			continue
		}
		byPath[entry.Path] = len(entries)
		byName[entry.Name] = struct{}{}
		entries = append(entries, entry)
	}

	if len(validationErrors) > 0 {
		return nil, domain.E(domain.CodeInvalidConfig, "catalog.load", strings.Join(validationErrors, "; "), nil)
	}
	if len(entries) == 0 {
		return nil, domain.E(domain.CodeInvalidConfig, "catalog.load", "catalog is empty", errors.New("no endpoints"))
	}
	return &Catalog{entries: entries, byPath: byPath}, nil
}

// Lookup finds an entry by its path template.
func (c *Catalog) Lookup(path string) (domain.EndpointEntry, bool) {
	if c == nil {
		return domain.EndpointEntry{}, false
	}
	idx, ok := c.byPath[strings.TrimPrefix(strings.TrimSpace(path), "/")]
	if !ok {
		return domain.EndpointEntry{}, false
	}
	return copyEntry(c.entries[idx]), true
}

// List returns entries in load order, optionally filtered by category.
func (c *Catalog) List(category string) []domain.EndpointEntry {
	if c == nil {
		return nil
	}
	category = strings.TrimSpace(category)
	out := make([]domain.EndpointEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		if category != "" && !strings.EqualFold(entry.Category, category) {
			continue
		}
		out = append(out, copyEntry(entry))
	}
	return out
}

// Categories returns the sorted distinct categories.
func (c *Catalog) Categories() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, entry := range c.entries {
		seen[entry.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for category := range seen {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

type rawEntry struct {
	Name         string         `mapstructure:"name"`
	Base         string         `mapstructure:"base"`
	Path         string         `mapstructure:"path"`
	Method       string         `mapstructure:"method"`
	Category     string         `mapstructure:"category"`
	Cost         *int           `mapstructure:"cost"`
	Description  string         `mapstructure:"description"`
	ParamsSchema map[string]any `mapstructure:"params_schema"`
	ParamSchema  map[string]any `mapstructure:"param_schema"`
	DateFields   []string       `mapstructure:"date_fields"`
	DatePolicy   string         `mapstructure:"date_policy"`
}

var tokenPattern = regexp.MustCompile(`\{([^}]+)\}`)

func decodeEntry(record map[string]any, index int) (domain.EndpointEntry, []string) {
	var raw rawEntry
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Result:           &raw,
	})
	if err != nil {
		return domain.EndpointEntry{}, []string{fmt.Sprintf("endpoints[%d]: %v", index, err)}
	}
	if err := decoder.Decode(record); err != nil {
		return domain.EndpointEntry{}, []string{fmt.Sprintf("endpoints[%d]: decode: %v", index, err)}
	}
	return normalizeEntry(raw, index)
}

func normalizeEntry(raw rawEntry, index int) (domain.EndpointEntry, []string) {
	var errs []string
	path := strings.TrimPrefix(strings.TrimSpace(raw.Path), "/")
	if path == "" {
		errs = append(errs, fmt.Sprintf("endpoints[%d]: path is required", index))
	}

	baseName := raw.Base
	if strings.TrimSpace(baseName) == "" {
		baseName = string(domain.BasePrimary)
	}
	base, ok := domain.ParseBase(baseName)
	if !ok {
		errs = append(errs, fmt.Sprintf("endpoints[%d]: base must be primary or stats", index))
	}

	if method := strings.TrimSpace(raw.Method); method != "" && !strings.EqualFold(method, "GET") {
		errs = append(errs, fmt.Sprintf("endpoints[%d]: method must be GET", index))
	}

	category := strings.TrimSpace(raw.Category)
	if category == "" {
		category = defaultCategory(path)
	}

	cost := CostFor(base, category, path)
	if raw.Cost != nil {
		cost = *raw.Cost
	}
	if cost < 1 {
		errs = append(errs, fmt.Sprintf("endpoints[%d]: cost must be >= 1", index))
	}

	policy := domain.DatePolicy(strings.ToLower(strings.TrimSpace(raw.DatePolicy)))
	switch policy {
	case "":
		policy = domain.DatePolicyStrict
	case domain.DatePolicyStrict, domain.DatePolicyLenient:
	default:
		errs = append(errs, fmt.Sprintf("endpoints[%d]: date_policy must be strict or lenient", index))
	}

	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = Slugify(strings.ReplaceAll(path, "/", " "))
	}

	schemaSource := raw.ParamsSchema
	if schemaSource == nil {
		schemaSource = raw.ParamSchema
	}

	if len(errs) > 0 {
		return domain.EndpointEntry{}, errs
	}
	return domain.EndpointEntry{
		Name:        name,
		Base:        base,
		Path:        path,
		Category:    category,
		Cost:        cost,
		ParamSchema: normalizeParamSchema(schemaSource, path),
		Description: strings.TrimSpace(raw.Description),
		DateFields:  raw.DateFields,
		DatePolicy:  policy,
	}, nil
}

// normalizeParamSchema accepts {path:{}, query:{}} or a flat name->kind map.
// Template tokens missing from the schema are declared as strings.
func normalizeParamSchema(raw map[string]any, path string) domain.ParamSchema {
	schema := domain.ParamSchema{Path: map[string]string{}, Query: map[string]string{}}
	_, hasPath := raw["path"]
	_, hasQuery := raw["query"]
	if hasPath || hasQuery {
		copyKinds(schema.Path, raw["path"])
		copyKinds(schema.Query, raw["query"])
	} else {
		tokens := templateTokens(path)
		for name, kind := range raw {
			k, _ := kind.(string)
			if k == "" {
				k = domain.ParamKindString
			}
			if _, isToken := tokens[name]; isToken {
				schema.Path[name] = k
			} else {
				schema.Query[name] = k
			}
		}
	}
	for token := range templateTokens(path) {
		if _, ok := schema.Path[token]; !ok {
			schema.Path[token] = domain.ParamKindString
		}
	}
	return schema
}

func copyKinds(dst map[string]string, raw any) {
	kinds, ok := asMap(raw)
	if !ok {
		return
	}
	for name, kind := range kinds {
		k, _ := kind.(string)
		if k == "" {
			k = domain.ParamKindString
		}
		dst[name] = k
	}
}

func templateTokens(path string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, match := range tokenPattern.FindAllStringSubmatch(path, -1) {
		out[match[1]] = struct{}{}
	}
	return out
}

func defaultCategory(path string) string {
	segments := strings.Split(path, "/")
	for _, segment := range segments {
		if segment == "" || strings.HasPrefix(segment, "{") {
			continue
		}
		return Slugify(segment)
	}
	return "uncategorized"
}

func copyEntry(entry domain.EndpointEntry) domain.EndpointEntry {
	out := entry
	out.ParamSchema = domain.ParamSchema{
		Path:  copyStrings(entry.ParamSchema.Path),
		Query: copyStrings(entry.ParamSchema.Query),
	}
	out.DateFields = append([]string(nil), entry.DateFields...)
	return out
}

func copyStrings(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for key, value := range src {
		out[key] = value
	}
	return out
}
