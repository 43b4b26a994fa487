package catalog

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"nhlagent/internal/infra/envutil"
)

//go:embed data/endpoints.yaml data/overrides.yaml
var embedded embed.FS

const (
	embeddedBasePath      = "data/endpoints.yaml"
	embeddedOverridesPath = "data/overrides.yaml"
)

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("catalog")}
}

// Load builds the catalog from optional files. An empty basePath selects the
// embedded base table; an empty overridesPath selects the embedded overrides.
func (l *Loader) Load(ctx context.Context, basePath, overridesPath string) (*Catalog, error) {
	base, err := l.readBase(basePath)
	if err != nil {
		return nil, err
	}
	overrides, err := l.readOverrides(overridesPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cat, err := Load(base, overrides)
	if err != nil {
		return nil, err
	}
	l.logger.Info("endpoint catalog loaded",
		zap.Int("entries", cat.Len()),
		zap.Int("overrides", len(overrides)),
		zap.Strings("categories", cat.Categories()),
	)
	return cat, nil
}

// Default loads the embedded tables.
func (l *Loader) Default(ctx context.Context) (*Catalog, error) {
	return l.Load(ctx, "", "")
}

func (l *Loader) readBase(path string) ([]map[string]any, error) {
	items, err := l.readTable(path, embeddedBasePath, "endpoints")
	if err != nil {
		return nil, err
	}
	base := make([]map[string]any, 0, len(items))
	for i, item := range items {
		entry, ok := asMap(item)
		if !ok {
			return nil, fmt.Errorf("base table entry %d is not a mapping", i)
		}
		base = append(base, entry)
	}
	return base, nil
}

func (l *Loader) readOverrides(path string) ([]any, error) {
	items, err := l.readTable(path, embeddedOverridesPath, "overrides")
	if err != nil {
		return nil, err
	}
	for i, item := range items {
		if _, ok := asMap(item); !ok {
			l.logger.Warn("skipping malformed catalog override", zap.Int("index", i))
		}
	}
	return items, nil
}

func (l *Loader) readTable(path, fallback, key string) ([]any, error) {
	var (
		data []byte
		err  error
	)
	if strings.TrimSpace(path) == "" {
		data, err = embedded.ReadFile(fallback)
		path = fallback
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	expanded, missing, err := envutil.ExpandYAML(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	if len(missing) > 0 {
		l.logger.Warn("missing environment variables in catalog", zap.String("path", path), zap.Strings("missing", missing))
	}
	return DecodeTable([]byte(expanded), key)
}

// DecodeTable reads a YAML or JSON document holding either a bare list or a
// mapping with the list under key.
func DecodeTable(data []byte, key string) ([]any, error) {
	var root any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	switch v := root.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	case map[string]any:
		list, ok := v[key]
		if !ok || list == nil {
			return nil, nil
		}
		items, ok := list.([]any)
		if !ok {
			return nil, fmt.Errorf("catalog %q must be a list", key)
		}
		return items, nil
	default:
		return nil, errors.New("catalog document must be a list or mapping")
	}
}

// WriteTable writes a table as indented JSON, or YAML for .yaml/.yml paths.
func WriteTable(path string, table []map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(map[string]any{"endpoints": table})
	default:
		data, err = json.MarshalIndent(table, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
