package evaluate

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"nhlagent/internal/domain"
	"nhlagent/internal/infra/normalize"
)

var (
	predictedIDKeys  = []string{"player_id", "predicted_player_id", "predicted_top_scorer_id"}
	candidateKeys    = []string{"top_candidates", "candidates"}
	candidateIDLists = []string{"candidate_player_ids", "player_ids"}
)

const unranked = 9999

// LoadPrediction reads a prediction document, usually an agent run's JSON
// output.
func LoadPrediction(path string) (any, error) {
	const op = "evaluate.load_prediction"
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.E(domain.CodeInvalidArgument, op, fmt.Sprintf("read %s", path), err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, domain.E(domain.CodeInvalidArgument, op, fmt.Sprintf("decode %s", path), err)
	}
	return doc, nil
}

// Decision locates the decision object of a prediction. The lookup order is
// final.decision, then decision, then the document itself when it already
// names a player.
func Decision(doc any) map[string]any {
	root, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	if final, ok := root["final"].(map[string]any); ok {
		root = final
	}
	if decision, ok := root["decision"].(map[string]any); ok {
		return decision
	}
	for _, key := range append(append([]string(nil), predictedIDKeys...), candidateKeys...) {
		if _, ok := root[key]; ok {
			return root
		}
	}
	return nil
}

// PredictedPlayer returns the player the decision picks: an explicit id
// field first, otherwise the lowest-ranked candidate.
func PredictedPlayer(decision map[string]any) (int, bool) {
	for _, key := range predictedIDKeys {
		if id, ok := playerID(decision[key]); ok {
			return id, true
		}
	}
	candidates := candidateRecords(decision)
	sort.SliceStable(candidates, func(i, j int) bool {
		return rankOf(candidates[i]) < rankOf(candidates[j])
	})
	for _, candidate := range candidates {
		if id, ok := playerID(candidate["player_id"]); ok {
			return id, true
		}
	}
	return 0, false
}

// CandidateIDs gathers the candidate pool a decision names, deduplicated in
// first-seen order.
func CandidateIDs(decision map[string]any) []int {
	var ids []int
	for _, key := range candidateIDLists {
		items, _ := decision[key].([]any)
		for _, item := range items {
			if id, ok := playerID(item); ok {
				ids = append(ids, id)
			}
		}
	}
	for _, candidate := range candidateRecords(decision) {
		if id, ok := playerID(candidate["player_id"]); ok {
			ids = append(ids, id)
		}
	}
	return dedupe(ids)
}

func candidateRecords(decision map[string]any) []map[string]any {
	for _, key := range candidateKeys {
		items, ok := decision[key].([]any)
		if !ok || len(items) == 0 {
			continue
		}
		out := make([]map[string]any, 0, len(items))
		for _, item := range items {
			if record, ok := item.(map[string]any); ok {
				out = append(out, record)
			}
		}
		return out
	}
	return nil
}

func rankOf(candidate map[string]any) float64 {
	if rank, ok := normalize.Number(candidate["rank"]); ok {
		return rank
	}
	return unranked
}

func playerID(value any) (int, bool) {
	if value == nil {
		return 0, false
	}
	number, ok := normalize.Number(value)
	if !ok || number <= 0 || number != math.Trunc(number) {
		return 0, false
	}
	return int(number), true
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
