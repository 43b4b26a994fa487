package tools

import "github.com/google/jsonschema-go/jsonschema"

func object(required []string, properties map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: properties, Required: required}
}

func str(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

func integer(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: description}
}

func number(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number", Description: description}
}

func date(description string) *jsonschema.Schema {
	return str(description + " (YYYY-MM-DD)")
}

func scoringSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Description: "Stat weights keyed by stat name (goals, assists, shots, hits, blocked_shots, " +
			"power_play_points, wins, saves, goals_against, shutouts, ...). Omit for the default rules. " +
			"When given, unlisted stats weigh 0.",
	}
}

func paramsSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Description: description}
}

func listEndpointsSchema() *jsonschema.Schema {
	return object(nil, map[string]*jsonschema.Schema{
		"category": str("Only list endpoints in this category"),
	})
}

func callEndpointSchema() *jsonschema.Schema {
	return object([]string{"base", "path_template"}, map[string]*jsonschema.Schema{
		"base": {
			Type:        "string",
			Description: "Backend that serves the endpoint",
			Enum:        []any{"primary", "stats", "web"},
		},
		"path_template": str("Exact path template from list_endpoints, e.g. schedule/{date}"),
		"path_params":   paramsSchema("Values for the {tokens} in path_template"),
		"query_params":  paramsSchema("Query string parameters"),
	})
}

func scorePlayerSchema() *jsonschema.Schema {
	return object([]string{"player_id", "start", "end"}, map[string]*jsonschema.Schema{
		"player_id": integer("NHL player id"),
		"start":     date("First day of the window"),
		"end":       date("Last day of the window, inclusive"),
		"scoring":   scoringSchema(),
	})
}

func rankPlayersSchema() *jsonschema.Schema {
	return object([]string{"player_ids", "start", "end"}, map[string]*jsonschema.Schema{
		"player_ids": {
			Type:        "array",
			Description: "Candidate NHL player ids",
			Items:       integer(""),
		},
		"start":   date("First day of the window"),
		"end":     date("Last day of the window, inclusive"),
		"scoring": scoringSchema(),
		"top_n":   integer("How many players to return (minimum 1)"),
	})
}

func rankAllSchema() *jsonschema.Schema {
	return object([]string{"start", "end"}, map[string]*jsonschema.Schema{
		"start":           date("First day of the window"),
		"end":             date("Last day of the window, inclusive"),
		"scoring":         scoringSchema(),
		"top_n":           integer("How many players to return (minimum 1)"),
		"min_time_played": number("Per-game time-on-ice floor in minutes"),
	})
}

func gameLogsSchema() *jsonschema.Schema {
	return object([]string{"player_id", "start_date", "end_date"}, map[string]*jsonschema.Schema{
		"player_id":  integer("NHL player id"),
		"start_date": date("First day of the range"),
		"end_date":   date("Last day of the range, inclusive"),
	})
}

func teamScheduleSchema() *jsonschema.Schema {
	return object([]string{"team_abbrev", "start_date", "end_date"}, map[string]*jsonschema.Schema{
		"team_abbrev": str("Three-letter team abbreviation, e.g. TOR, or a numeric team id"),
		"start_date":  date("First day of the range"),
		"end_date":    date("Last day of the range, inclusive"),
	})
}
