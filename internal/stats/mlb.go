package stats

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MLBClient queries the public MLB Stats API.
type MLBClient struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewMLBClient creates a client for the given API base URL.
func NewMLBClient(endpoint string, timeout time.Duration, logger *zap.Logger) *MLBClient {
	if endpoint == "" {
		endpoint = "https://statsapi.mlb.com/api/v1"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &MLBClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type mlbScheduleTeam struct {
	Team     struct{ Name string } `json:"team"`
	Score    *int                  `json:"score"`
	IsWinner bool                  `json:"isWinner"`
}

type mlbScheduleGame struct {
	GamePk int `json:"gamePk"`
	Status struct {
		DetailedState string `json:"detailedState"`
	} `json:"status"`
	Teams struct {
		Home mlbScheduleTeam `json:"home"`
		Away mlbScheduleTeam `json:"away"`
	} `json:"teams"`
	SeriesStatus *struct {
		Result string `json:"result"`
	} `json:"seriesStatus"`
}

type mlbSchedule struct {
	Dates []struct {
		Games []mlbScheduleGame `json:"games"`
	} `json:"dates"`
}

// MLBGame is the high-level summary of one game.
type MLBGame struct {
	GameID       string
	HomeTeam     string
	HomeScore    int
	AwayTeam     string
	AwayScore    int
	WinningTeam  string
	SeriesStatus string
	Status       string
}

// FindGame returns the first game on date whose home or away team name
// contains team (case-insensitive), or nil.
func (c *MLBClient) FindGame(ctx context.Context, date time.Time, team string) (*MLBGame, error) {
	params := url.Values{}
	params.Set("sportId", "1")
	params.Set("date", date.Format("2006-01-02"))
	params.Set("hydrate", "seriesStatus,linescore")

	var sched mlbSchedule
	if err := getJSON(ctx, c.client, "statsapi.mlb.com", c.endpoint+"/schedule?"+params.Encode(), nil, &sched); err != nil {
		return nil, fmt.Errorf("mlb schedule: %w", err)
	}

	q := strings.ToLower(strings.TrimSpace(team))
	for _, d := range sched.Dates {
		for _, g := range d.Games {
			home, away := g.Teams.Home, g.Teams.Away
			if !strings.Contains(strings.ToLower(home.Team.Name), q) && !strings.Contains(strings.ToLower(away.Team.Name), q) {
				continue
			}
			game := &MLBGame{
				GameID:   strconv.Itoa(g.GamePk),
				HomeTeam: home.Team.Name,
				AwayTeam: away.Team.Name,
				Status:   g.Status.DetailedState,
			}
			if home.Score != nil {
				game.HomeScore = *home.Score
			}
			if away.Score != nil {
				game.AwayScore = *away.Score
			}
			switch {
			case home.IsWinner:
				game.WinningTeam = home.Team.Name
			case away.IsWinner:
				game.WinningTeam = away.Team.Name
			}
			if g.SeriesStatus != nil {
				game.SeriesStatus = g.SeriesStatus.Result
			}
			c.logger.Debug("mlb game found", zap.String("game_id", game.GameID))
			return game, nil
		}
	}
	return nil, nil
}

type mlbPlayer struct {
	Person struct {
		FullName string `json:"fullName"`
	} `json:"person"`
	Position struct {
		Abbreviation string `json:"abbreviation"`
	} `json:"position"`
	Stats struct {
		Batting  map[string]interface{} `json:"batting"`
		Pitching map[string]interface{} `json:"pitching"`
	} `json:"stats"`
}

type mlbBoxTeam struct {
	Team struct {
		Name     string `json:"name"`
		TeamName string `json:"teamName"`
	} `json:"team"`
	Batters  []int                `json:"batters"`
	Pitchers []int                `json:"pitchers"`
	Players  map[string]mlbPlayer `json:"players"`
}

type mlbBoxscore struct {
	Teams struct {
		Away mlbBoxTeam `json:"away"`
		Home mlbBoxTeam `json:"home"`
	} `json:"teams"`
}

// BattingColumns and PitchingColumns name the rendered box score columns.
var (
	BattingColumns  = []string{"team_name", "fullName", "position", "ab", "r", "h", "hr", "rbi", "bb", "sb"}
	PitchingColumns = []string{"team_name", "fullName", "ip", "h", "r", "er", "bb", "k", "note"}
)

var battingFields = map[string]string{
	"ab": "atBats", "r": "runs", "h": "hits", "hr": "homeRuns",
	"rbi": "rbi", "bb": "baseOnBalls", "sb": "stolenBases",
}

var pitchingFields = map[string]string{
	"ip": "inningsPitched", "h": "hits", "r": "runs", "er": "earnedRuns",
	"bb": "baseOnBalls", "k": "strikeOuts", "note": "note",
}

func (c *MLBClient) boxscore(ctx context.Context, gameID string) (*mlbBoxscore, error) {
	var box mlbBoxscore
	u := c.endpoint + "/game/" + url.PathEscape(gameID) + "/boxscore"
	if err := getJSON(ctx, c.client, "statsapi.mlb.com", u, nil, &box); err != nil {
		return nil, fmt.Errorf("mlb boxscore: %w", err)
	}
	return &box, nil
}

// BattingStats returns batter rows, away team first.
func (c *MLBClient) BattingStats(ctx context.Context, gameID string) ([]map[string]interface{}, error) {
	box, err := c.boxscore(ctx, gameID)
	if err != nil {
		return nil, err
	}
	var rows []map[string]interface{}
	for _, t := range []mlbBoxTeam{box.Teams.Away, box.Teams.Home} {
		for _, id := range t.Batters {
			p, ok := t.Players["ID"+strconv.Itoa(id)]
			if !ok {
				continue
			}
			row := map[string]interface{}{
				"team_name": t.Team.TeamName,
				"fullName":  p.Person.FullName,
				"position":  p.Position.Abbreviation,
			}
			for col, field := range battingFields {
				row[col] = p.Stats.Batting[field]
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// PitchingStats returns pitcher rows, away team first.
func (c *MLBClient) PitchingStats(ctx context.Context, gameID string) ([]map[string]interface{}, error) {
	box, err := c.boxscore(ctx, gameID)
	if err != nil {
		return nil, err
	}
	var rows []map[string]interface{}
	for _, t := range []mlbBoxTeam{box.Teams.Away, box.Teams.Home} {
		for _, id := range t.Pitchers {
			p, ok := t.Players["ID"+strconv.Itoa(id)]
			if !ok {
				continue
			}
			row := map[string]interface{}{
				"team_name": t.Team.TeamName,
				"fullName":  p.Person.FullName,
			}
			for col, field := range pitchingFields {
				row[col] = p.Stats.Pitching[field]
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}
