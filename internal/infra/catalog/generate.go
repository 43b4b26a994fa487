package catalog

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"nhlagent/internal/domain"
)

var (
	endpointPattern = regexp.MustCompile("(https?://api-web\\.nhle\\.com[^\\s`]+" +
		"|https?://api\\.nhle\\.com/stats/rest[^\\s`]+" +
		"|/v1/[^\\s`;]+" +
		"|/model/v1/[^\\s`;]+" +
		"|/\\{lang\\}[^\\s`;]+" +
		"|/ping\\b)")
	slugPattern = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

// Slugify lowercases value and collapses non-alphanumerics to underscores.
func Slugify(value string) string {
	cleaned := slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "_")
	return strings.Trim(cleaned, "_")
}

// CostFor estimates the relative expense of an endpoint.
func CostFor(base domain.Base, category, path string) int {
	lowered := strings.ToLower(category + " " + path)
	switch {
	case strings.Contains(lowered, "edge"):
		return 4
	case strings.Contains(lowered, "gamecenter"), strings.Contains(lowered, "play-by-play"), strings.Contains(lowered, "wsc"):
		return 3
	case base == domain.BaseStats:
		return 3
	case strings.Contains(lowered, "schedule"), strings.Contains(lowered, "standings"), strings.Contains(lowered, "roster"):
		return 2
	default:
		return 1
	}
}

type discovered struct {
	base        domain.Base
	path        string
	category    string
	description string
}

// Generate builds a base table from the community NHL API README. Endpoints
// are read from lines mentioning "Endpoint" outside fenced code blocks.
func Generate(readme io.Reader) ([]map[string]any, error) {
	found, err := extractEndpoints(readme)
	if err != nil {
		return nil, err
	}

	table := make([]map[string]any, 0, len(found))
	nameCounts := make(map[string]int)
	for _, item := range found {
		path, params := normalizeTokens(item.path)
		nameBase := Slugify(strings.ReplaceAll(path, "/", " "))
		nameCounts[nameBase]++
		name := nameBase
		if n := nameCounts[nameBase]; n > 1 {
			name = fmt.Sprintf("%s_%d", nameBase, n)
		}
		pathParams := make(map[string]any, len(params))
		for _, token := range params {
			pathParams[token] = domain.ParamKindString
		}
		table = append(table, map[string]any{
			"name":        name,
			"base":        string(item.base),
			"path":        path,
			"method":      "GET",
			"category":    item.category,
			"cost":        CostFor(item.base, item.category, path),
			"description": item.description,
			"params_schema": map[string]any{
				"path":  pathParams,
				"query": map[string]any{},
			},
		})
	}
	return table, nil
}

func extractEndpoints(r io.Reader) ([]discovered, error) {
	var (
		base            domain.Base
		h2, h3, h4      string
		inCodeBlock     bool
		out             []discovered
		scanner         = bufio.NewScanner(r)
		maxLineCapacity = 1024 * 1024
	)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineCapacity)

	for scanner.Scan() {
		line := scanner.Text()
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		switch {
		case strings.HasPrefix(stripped, "# NHL Web API Documentation"):
			base = domain.BasePrimary
			continue
		case strings.HasPrefix(stripped, "# NHL Stats API Documentation"):
			base = domain.BaseStats
			continue
		case strings.HasPrefix(stripped, "## "):
			h2, h3, h4 = strings.TrimSpace(stripped[3:]), "", ""
		case strings.HasPrefix(stripped, "### "):
			h3, h4 = strings.TrimSpace(stripped[4:]), ""
		case strings.HasPrefix(stripped, "#### "):
			h4 = strings.TrimSpace(stripped[5:])
		}

		if inCodeBlock || !strings.Contains(line, "Endpoint") {
			continue
		}
		matches := endpointPattern.FindAllString(line, -1)
		if len(matches) == 0 {
			continue
		}

		category := Slugify(firstNonEmpty(h3, h2, "uncategorized"))
		description := firstNonEmpty(h4, h3, h2, "Endpoint") + " endpoint"
		for _, match := range matches {
			path, inferred := normalizeReadmePath(match, base)
			if path == "" || inferred == "" {
				continue
			}
			out = append(out, discovered{base: inferred, path: path, category: category, description: description})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read readme: %w", err)
	}
	return out, nil
}

func normalizeReadmePath(raw string, hint domain.Base) (string, domain.Base) {
	cleaned := strings.TrimRight(strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), "`")), ".,)")
	base := hint

	if strings.HasPrefix(cleaned, "http") {
		if parsed, err := url.Parse(cleaned); err == nil {
			switch {
			case strings.Contains(parsed.Host, "api-web.nhle.com"):
				base = domain.BasePrimary
				cleaned = parsed.Path
			case strings.Contains(parsed.Host, "api.nhle.com") && strings.Contains(parsed.Path, "/stats/rest"):
				base = domain.BaseStats
				cleaned = strings.Replace(parsed.Path, "/stats/rest", "", 1)
			}
		}
	}
	if base == domain.BasePrimary {
		cleaned = strings.TrimPrefix(cleaned, "/v1/")
	}
	return strings.TrimPrefix(cleaned, "/"), base
}

// normalizeTokens rewrites {game-id} style tokens to {game_id} and returns
// them in order of appearance.
func normalizeTokens(path string) (string, []string) {
	var tokens []string
	seen := make(map[string]struct{})
	normalized := tokenPattern.ReplaceAllStringFunc(path, func(match string) string {
		token := strings.ReplaceAll(match[1:len(match)-1], "-", "_")
		if _, ok := seen[token]; !ok {
			seen[token] = struct{}{}
			tokens = append(tokens, token)
		}
		return "{" + token + "}"
	})
	return normalized, tokens
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
