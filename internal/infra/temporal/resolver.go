package temporal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"nhlagent/internal/domain"
	"nhlagent/internal/infra/normalize"
)

// Game ids are ten digits (season, game type, number); team and player
// ids are shorter.
const minGameID = 1_000_000_000

// Fetcher performs an unfiltered backend read.
type Fetcher interface {
	Get(ctx context.Context, base domain.Base, path string, query map[string]string) (any, error)
}

// LookupResolver resolves game dates from the game landing payload and
// remembers every date it has seen.
type LookupResolver struct {
	fetcher Fetcher

	mu    sync.Mutex
	dates map[string]time.Time
}

func NewLookupResolver(fetcher Fetcher) *LookupResolver {
	return &LookupResolver{fetcher: fetcher, dates: make(map[string]time.Time)}
}

// ResolveGameDate returns the date a game was played.
func (r *LookupResolver) ResolveGameDate(ctx context.Context, gameID string) (time.Time, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return time.Time{}, errors.New("empty game id")
	}
	if date, ok := r.known(gameID); ok {
		return date, nil
	}
	if r.fetcher == nil {
		return time.Time{}, errors.New("no game lookup configured")
	}

	path := strings.Replace(domain.PathGameLanding, "{game_id}", gameID, 1)
	payload, err := r.fetcher.Get(ctx, domain.BasePrimary, path, nil)
	if err != nil {
		return time.Time{}, err
	}
	record, ok := payload.(map[string]any)
	if !ok {
		return time.Time{}, fmt.Errorf("unexpected landing payload %T", payload)
	}
	date, ok := recordDate(record, []string{"gameDate", "startTimeUTC"})
	if !ok {
		return time.Time{}, errors.New("landing payload has no game date")
	}
	r.remember(gameID, date)
	return date, nil
}

// Learn records game dates found in schedule-shaped payloads, such as
// schedule/{date} weeks or club schedules.
func (r *LookupResolver) Learn(payload any) int {
	learned := 0
	var visit func(value any, dayDate string)
	visit = func(value any, dayDate string) {
		switch v := value.(type) {
		case map[string]any:
			if day, ok := v["date"].(string); ok {
				if _, has := v["games"]; has {
					dayDate = day
				}
			}
			if id, ok := normalize.Number(v["id"]); ok && id >= minGameID {
				raw, _ := v["gameDate"].(string)
				if raw == "" {
					raw = dayDate
				}
				if date, err := domain.ParseDate(normalize.DateOnly(raw)); err == nil && raw != "" {
					r.remember(fmt.Sprintf("%.0f", id), date)
					learned++
				}
			}
			for _, child := range v {
				visit(child, dayDate)
			}
		case []any:
			for _, child := range v {
				visit(child, dayDate)
			}
		}
	}
	visit(payload, "")
	return learned
}

func (r *LookupResolver) known(gameID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	date, ok := r.dates[gameID]
	return date, ok
}

func (r *LookupResolver) remember(gameID string, date time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dates[gameID] = date
}
