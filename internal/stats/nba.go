package stats

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LeaderCategories are the stat categories supported by the all-time
// leaders lookup, in display order.
var LeaderCategories = []string{"PTS", "AST", "REB", "STL", "BLK", "FG_PCT", "FT_PCT", "FG3_PCT"}

// IsPercentage reports whether a category is a shooting percentage.
func IsPercentage(category string) bool {
	return strings.HasSuffix(category, "_PCT")
}

// ValidCategory reports whether category is a supported leaders category.
func ValidCategory(category string) bool {
	for _, c := range LeaderCategories {
		if c == category {
			return true
		}
	}
	return false
}

// stats.nba.com rejects requests without browser-like headers.
var nbaHeaders = map[string]string{
	"User-Agent":         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
	"Referer":            "https://www.nba.com/",
	"Origin":             "https://www.nba.com",
	"x-nba-stats-origin": "stats",
	"x-nba-stats-token":  "true",
}

// NBAClient queries stats.nba.com.
type NBAClient struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewNBAClient creates a client for the given stats endpoint.
func NewNBAClient(endpoint string, timeout time.Duration, logger *zap.Logger) *NBAClient {
	if endpoint == "" {
		endpoint = "https://stats.nba.com/stats"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &NBAClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// resultSet is the tabular payload every stats.nba.com endpoint returns.
type resultSet struct {
	Name    string          `json:"name"`
	Headers []string        `json:"headers"`
	RowSet  [][]interface{} `json:"rowSet"`
}

type nbaResponse struct {
	ResultSets []resultSet `json:"resultSets"`
}

func (r *nbaResponse) set(name string) (*resultSet, bool) {
	for i := range r.ResultSets {
		if r.ResultSets[i].Name == name {
			return &r.ResultSets[i], true
		}
	}
	return nil, false
}

// records zips headers with each row.
func (rs *resultSet) records() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(rs.RowSet))
	for _, row := range rs.RowSet {
		rec := make(map[string]interface{}, len(rs.Headers))
		for i, h := range rs.Headers {
			if i < len(row) {
				rec[h] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

func (c *NBAClient) get(ctx context.Context, endpoint string, params url.Values) (*nbaResponse, error) {
	u := c.endpoint + "/" + endpoint + "?" + params.Encode()
	var resp nbaResponse
	if err := getJSON(ctx, c.client, "stats.nba.com", u, nbaHeaders, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// NBAGame is one team's line from the game finder.
type NBAGame struct {
	GameID       string
	GameDate     string
	Team         string
	Matchup      string
	Result       string // W or L
	Points       int
	OpponentPts  int
	Opponent     string
	SeasonID     string
	PlusMinusSet bool
}

// Winner names the winning side of the matchup.
func (g *NBAGame) Winner() string {
	if g.Result == "W" {
		return g.Team
	}
	return g.Opponent
}

// FindGame returns the team's game on date, or nil when it did not play.
func (c *NBAClient) FindGame(ctx context.Context, date time.Time, team Team) (*NBAGame, error) {
	day := date.Format("01/02/2006")
	params := url.Values{}
	params.Set("PlayerOrTeam", "T")
	params.Set("LeagueID", "00")
	params.Set("TeamID", strconv.FormatInt(team.ID, 10))
	params.Set("DateFrom", day)
	params.Set("DateTo", day)

	resp, err := c.get(ctx, "leaguegamefinder", params)
	if err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}
	rs, ok := resp.set("LeagueGameFinderResults")
	if !ok || len(rs.RowSet) == 0 {
		return nil, nil
	}
	rec := rs.records()[0]
	g := &NBAGame{
		GameID:   asString(rec["GAME_ID"]),
		GameDate: asString(rec["GAME_DATE"]),
		Team:     asString(rec["TEAM_NAME"]),
		Matchup:  asString(rec["MATCHUP"]),
		Result:   asString(rec["WL"]),
		Points:   asInt(rec["PTS"]),
		SeasonID: asString(rec["SEASON_ID"]),
	}
	if pm, ok := rec["PLUS_MINUS"].(float64); ok {
		g.OpponentPts = g.Points - int(math.Round(pm))
		g.PlusMinusSet = true
	}
	g.Opponent = opponentFromMatchup(g.Matchup)
	c.logger.Debug("nba game found",
		zap.String("game_id", g.GameID),
		zap.String("matchup", g.Matchup))
	return g, nil
}

// opponentFromMatchup maps "LAL vs. BOS" or "LAL @ BOS" to the opponent's
// full name, falling back to the abbreviation.
func opponentFromMatchup(matchup string) string {
	fields := strings.Fields(matchup)
	if len(fields) == 0 {
		return ""
	}
	abbr := fields[len(fields)-1]
	if t, err := FindTeam(abbr); err == nil {
		return t.FullName()
	}
	return abbr
}

// BoxScoreColumns are the player box score columns rendered for the model.
var BoxScoreColumns = []string{
	"TEAM_ABBREVIATION", "PLAYER_NAME", "START_POSITION", "MIN",
	"PTS", "REB", "AST", "STL", "BLK", "TO",
	"FGM", "FGA", "FG3M", "FG3A", "FTM", "FTA", "PLUS_MINUS",
}

// PlayerStats returns the traditional box score rows for a game.
func (c *NBAClient) PlayerStats(ctx context.Context, gameID string) ([]map[string]interface{}, error) {
	params := url.Values{}
	params.Set("GameID", gameID)
	params.Set("StartPeriod", "0")
	params.Set("EndPeriod", "10")
	params.Set("StartRange", "0")
	params.Set("EndRange", "28800")
	params.Set("RangeType", "0")

	resp, err := c.get(ctx, "boxscoretraditionalv2", params)
	if err != nil {
		return nil, fmt.Errorf("player stats: %w", err)
	}
	rs, ok := resp.set("PlayerStats")
	if !ok {
		return nil, nil
	}
	return rs.records(), nil
}

// Leader is one row of an all-time leaderboard.
type Leader struct {
	PlayerName string
	Category   string
	Value      float64
	Rank       int
	Team       string
}

// AllTimeLeaders returns the top n players in category, sorted by rank.
func (c *NBAClient) AllTimeLeaders(ctx context.Context, category string, n int) ([]Leader, error) {
	params := url.Values{}
	params.Set("LeagueID", "00")
	params.Set("PerMode", "Totals")
	params.Set("SeasonType", "Regular Season")
	params.Set("TopX", strconv.Itoa(n))

	resp, err := c.get(ctx, "alltimeleadersgrids", params)
	if err != nil {
		return nil, fmt.Errorf("all-time leaders: %w", err)
	}
	rs, ok := resp.set(category + "Leaders")
	if !ok {
		return nil, fmt.Errorf("all-time leaders: result set %sLeaders missing", category)
	}

	var out []Leader
	for _, rec := range rs.records() {
		l := Leader{
			PlayerName: asString(rec["PLAYER_NAME"]),
			Category:   category,
			Value:      asFloat(rec[category]),
			Rank:       asInt(rec[category+"_RANK"]),
		}
		if team, ok := rec["TEAM"]; ok {
			l.Team = asString(team)
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func asString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func asFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	default:
		return 0
	}
}

func asInt(v interface{}) int {
	return int(math.Round(asFloat(v)))
}
