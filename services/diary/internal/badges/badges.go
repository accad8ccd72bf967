// Package badges evaluates achievement rules over a user's diary.
package badges

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/movie-diary/services/diary/internal/store"
)

const (
	Newbie       = "NEWBIE"
	Fan          = "FAN"
	Critic       = "CRITIC"
	Marathon     = "MARATHON"
	Globetrotter = "GLOBETROTTER"
)

// Badge describes one achievement and the rule that unlocks it.
type Badge struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`

	check func(logs []store.LogWithMovie) bool
}

// Catalog is ordered for display.
var Catalog = []Badge{
	{
		Code: Newbie, Name: "Palomitas Frescas", Description: "Registra tu primera película",
		Icon: "fas fa-baby", Color: "#3498db",
		check: func(logs []store.LogWithMovie) bool { return len(logs) >= 1 },
	},
	{
		Code: Fan, Name: "Cinéfilo", Description: "10 películas registradas",
		Icon: "fas fa-video", Color: "#e67e22",
		check: func(logs []store.LogWithMovie) bool { return len(logs) >= 10 },
	},
	{
		Code: Critic, Name: "La Pluma de Oro", Description: "Escribe 3 reseñas",
		Icon: "fas fa-pen-nib", Color: "#f1c40f",
		check: func(logs []store.LogWithMovie) bool {
			n := 0
			for _, l := range logs {
				if utf8.RuneCountInString(strings.TrimSpace(l.Review)) > 10 {
					n++
				}
			}
			return n >= 3
		},
	},
	{
		Code: Marathon, Name: "Maratonista", Description: "3 películas en un mismo día",
		Icon: "fas fa-running", Color: "#e74c3c",
		check: func(logs []store.LogWithMovie) bool {
			perDay := make(map[string]int)
			for _, l := range logs {
				day := l.WatchedAt.UTC().Format("2006-01-02")
				perDay[day]++
				if perDay[day] >= 3 {
					return true
				}
			}
			return false
		},
	},
	{
		Code: Globetrotter, Name: "Trotamundos", Description: "Películas de 5 países diferentes",
		Icon: "fas fa-globe-americas", Color: "#9b59b6",
		check: func(logs []store.LogWithMovie) bool {
			countries := make(map[string]bool)
			for _, l := range logs {
				if l.Movie == nil {
					continue
				}
				for _, c := range l.Movie.ProductionCountries {
					countries[strings.ToUpper(c)] = true
				}
			}
			return len(countries) >= 5
		},
	},
}

// Earned returns the codes whose rules hold for logs.
func Earned(logs []store.LogWithMovie) []string {
	var out []string
	for _, b := range Catalog {
		if b.check(logs) {
			out = append(out, b.Code)
		}
	}
	return out
}

type Store interface {
	ListLogs(ctx context.Context, userID string) ([]store.LogWithMovie, error)
	store.BadgeStore
}

// Check awards every badge the user now qualifies for and returns the ones
// unlocked by this call.
func Check(ctx context.Context, s Store, userID string) ([]Badge, error) {
	logs, err := s.ListLogs(ctx, userID)
	if err != nil {
		return nil, err
	}
	earned := Earned(logs)
	if len(earned) == 0 {
		return []Badge{}, nil
	}
	awarded, err := s.AwardBadges(ctx, userID, earned)
	if err != nil {
		return nil, err
	}
	fresh := make(map[string]bool, len(awarded))
	for _, a := range awarded {
		fresh[a.Code] = true
	}
	out := []Badge{}
	for _, b := range Catalog {
		if fresh[b.Code] {
			out = append(out, b)
		}
	}
	return out, nil
}

// Status pairs a badge with the user's progress on it.
type Status struct {
	Badge
	Unlocked bool       `json:"unlocked"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
}

func StatusFor(ctx context.Context, s store.BadgeStore, userID string) ([]Status, error) {
	owned, err := s.UserBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	at := make(map[string]time.Time, len(owned))
	for _, o := range owned {
		at[o.Code] = o.EarnedAt
	}
	out := make([]Status, 0, len(Catalog))
	for _, b := range Catalog {
		st := Status{Badge: b}
		if t, ok := at[b.Code]; ok {
			st.Unlocked = true
			st.EarnedAt = &t
		}
		out = append(out, st)
	}
	return out, nil
}
