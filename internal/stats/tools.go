package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/nidhogg/statcrew/internal/agent"
	"github.com/nidhogg/statcrew/internal/provider"
)

// Tool names.
const (
	ToolNBAGameInfo     = "get_nba_game_info"
	ToolNBAPlayerStats  = "get_nba_player_stats"
	ToolNBALeaders      = "get_nba_all_time_leaders"
	ToolMLBGameInfo     = "get_mlb_game_info"
	ToolMLBBatting      = "get_mlb_batting_stats"
	ToolMLBPitching     = "get_mlb_pitching_stats"
	DefaultLeadersLimit = 10
)

var (
	nbaGameIDPattern = regexp.MustCompile(`^\d{10}$`)
	mlbGameIDPattern = regexp.MustCompile(`^\d+$`)
)

// RegisterTools adds the stat provider tools to reg. Either client may be nil
// to leave that league's tools out.
func RegisterTools(reg *agent.ToolRegistry, nba *NBAClient, mlb *MLBClient) {
	if nba != nil {
		reg.Register(provider.NewFunctionTool(ToolNBAGameInfo,
			"Gets high-level information on an NBA game: Game ID, matchup, final score and winner.",
			objectSchema(map[string]string{
				"game_date": "The date of the game, in the form YYYY-MM-DD",
				"team_name": "NBA team: full name, nickname, city or abbreviation",
			}, "game_date", "team_name"),
		), nba.gameInfoTool)

		reg.Register(provider.NewFunctionTool(ToolNBAPlayerStats,
			"Gets player box score stats for an NBA game.",
			objectSchema(map[string]string{
				"game_id": "The 10-digit NBA Game ID",
			}, "game_id"),
		), nba.playerStatsTool)

		reg.Register(provider.NewFunctionTool(ToolNBALeaders,
			"Gets the all-time leaders in an NBA statistical category. Valid categories: "+strings.Join(LeaderCategories, ", ")+".",
			map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"stat_category": map[string]interface{}{"type": "string", "enum": LeaderCategories},
					"top_n":         map[string]interface{}{"type": "integer", "description": "Number of players to return (default 10)"},
				},
				"required": []string{"stat_category"},
			},
		), nba.leadersTool)
	}

	if mlb != nil {
		reg.Register(provider.NewFunctionTool(ToolMLBGameInfo,
			"Gets high-level information on an MLB game. If multiple teams are mentioned, use the first one.",
			objectSchema(map[string]string{
				"game_date": "The date of the game, in the form YYYY-MM-DD",
				"team_name": "MLB team: full name (\"New York Yankees\") or nickname (\"Yankees\")",
			}, "game_date", "team_name"),
		), mlb.gameInfoTool)

		reg.Register(provider.NewFunctionTool(ToolMLBBatting,
			"Gets player box score batting stats for an MLB game.",
			objectSchema(map[string]string{"game_id": "The MLB Game ID"}, "game_id"),
		), mlb.battingTool)

		reg.Register(provider.NewFunctionTool(ToolMLBPitching,
			"Gets player box score pitching stats for an MLB game.",
			objectSchema(map[string]string{"game_id": "The MLB Game ID"}, "game_id"),
		), mlb.pitchingTool)
	}
}

func objectSchema(props map[string]string, required ...string) map[string]interface{} {
	p := make(map[string]interface{}, len(props))
	for name, desc := range props {
		p[name] = map[string]string{"type": "string", "description": desc}
	}
	return map[string]interface{}{"type": "object", "properties": p, "required": required}
}

type gameArgs struct {
	GameDate string `json:"game_date"`
	TeamName string `json:"team_name"`
	GameID   string `json:"game_id"`
}

func decodeArgs(args string, v interface{}) string {
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	if err := json.Unmarshal([]byte(args), v); err != nil {
		return agent.ErrorPayload(fmt.Sprintf("invalid arguments: %v", err))
	}
	return ""
}

func (c *NBAClient) gameInfoTool(ctx context.Context, args string) (string, error) {
	var a gameArgs
	if msg := decodeArgs(args, &a); msg != "" {
		return msg, nil
	}
	date, err := parseDate(a.GameDate)
	if err != nil {
		return agent.ErrorPayload(err.Error()), nil
	}
	team, err := FindTeam(a.TeamName)
	if err != nil {
		return agent.ErrorPayload(err.Error()), nil
	}
	g, err := c.FindGame(ctx, date, team)
	if err != nil {
		return "", err
	}
	if g == nil {
		return agent.ErrorPayload(fmt.Sprintf("No game found for team %s on %s.", team.FullName(), a.GameDate)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Game ID: %s\n", g.GameID)
	fmt.Fprintf(&b, "Game Date: %s\n", g.GameDate)
	fmt.Fprintf(&b, "Matchup: %s\n", g.Matchup)
	fmt.Fprintf(&b, "%s Points: %d\n", g.Team, g.Points)
	if g.PlusMinusSet {
		fmt.Fprintf(&b, "%s Points: %d\n", g.Opponent, g.OpponentPts)
	}
	fmt.Fprintf(&b, "Winning Team: %s\n", g.Winner())
	return b.String(), nil
}

func (c *NBAClient) playerStatsTool(ctx context.Context, args string) (string, error) {
	var a gameArgs
	if msg := decodeArgs(args, &a); msg != "" {
		return msg, nil
	}
	if !nbaGameIDPattern.MatchString(a.GameID) {
		return agent.ErrorPayload(fmt.Sprintf("invalid game_id %q: expected a 10-digit NBA Game ID", a.GameID)), nil
	}
	rows, err := c.PlayerStats(ctx, a.GameID)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return agent.ErrorPayload(fmt.Sprintf("no box score found for game %s", a.GameID)), nil
	}
	return renderTable(BoxScoreColumns, rows), nil
}

func (c *NBAClient) leadersTool(ctx context.Context, args string) (string, error) {
	var a struct {
		StatCategory string `json:"stat_category"`
		TopN         *int   `json:"top_n"`
	}
	if msg := decodeArgs(args, &a); msg != "" {
		return msg, nil
	}
	if !ValidCategory(a.StatCategory) {
		return agent.ErrorPayload("Invalid stat category. Valid options are: " + strings.Join(LeaderCategories, ", ")), nil
	}
	n := DefaultLeadersLimit
	if a.TopN != nil {
		n = *a.TopN
	}
	if n <= 0 {
		return agent.ErrorPayload("top_n must be a positive integer"), nil
	}
	leaders, err := c.AllTimeLeaders(ctx, a.StatCategory, n)
	if err != nil {
		return "", err
	}
	return FormatLeaders(leaders)
}

// FormatLeaders renders leaders as an indented JSON array. Each record holds
// PLAYER_NAME, the category value (integer for counts, float for
// percentages), RANK, and TEAM when known.
func FormatLeaders(leaders []Leader) (string, error) {
	if leaders == nil {
		leaders = []Leader{}
	}
	b, err := json.MarshalIndent(leaders, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format leaders: %w", err)
	}
	return string(b), nil
}

// ValueString renders the value as an integer for counts and as a float
// for percentages.
func (l Leader) ValueString() string {
	if !IsPercentage(l.Category) {
		return strconv.FormatInt(int64(math.Round(l.Value)), 10)
	}
	v := strconv.FormatFloat(l.Value, 'f', -1, 64)
	if !strings.ContainsAny(v, ".e") {
		v += ".0"
	}
	return v
}

// MarshalJSON writes the fields in a fixed order with the category as key.
func (l Leader) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	name, _ := json.Marshal(l.PlayerName)
	cat, _ := json.Marshal(l.Category)
	buf.WriteString(`{"PLAYER_NAME":`)
	buf.Write(name)
	buf.WriteByte(',')
	buf.Write(cat)
	buf.WriteByte(':')
	buf.WriteString(l.ValueString())
	buf.WriteString(`,"RANK":`)
	buf.WriteString(strconv.Itoa(l.Rank))
	if l.Team != "" {
		team, _ := json.Marshal(l.Team)
		buf.WriteString(`,"TEAM":`)
		buf.Write(team)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *MLBClient) gameInfoTool(ctx context.Context, args string) (string, error) {
	var a gameArgs
	if msg := decodeArgs(args, &a); msg != "" {
		return msg, nil
	}
	date, err := parseDate(a.GameDate)
	if err != nil {
		return agent.ErrorPayload(err.Error()), nil
	}
	if strings.TrimSpace(a.TeamName) == "" {
		return agent.ErrorPayload("team_name is required"), nil
	}
	g, err := c.FindGame(ctx, date, a.TeamName)
	if err != nil {
		return "", err
	}
	if g == nil {
		return agent.ErrorPayload(fmt.Sprintf("No game found for team %s on %s.", a.TeamName, a.GameDate)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Game ID: %s\n", g.GameID)
	fmt.Fprintf(&b, "Home Team: %s\n", g.HomeTeam)
	fmt.Fprintf(&b, "Home Score: %d\n", g.HomeScore)
	fmt.Fprintf(&b, "Away Team: %s\n", g.AwayTeam)
	fmt.Fprintf(&b, "Away Score: %d\n", g.AwayScore)
	fmt.Fprintf(&b, "Winning Team: %s\n", g.WinningTeam)
	fmt.Fprintf(&b, "Series Status: %s\n", g.SeriesStatus)
	return b.String(), nil
}

func (c *MLBClient) battingTool(ctx context.Context, args string) (string, error) {
	return c.boxTool(ctx, args, BattingColumns, c.BattingStats)
}

func (c *MLBClient) pitchingTool(ctx context.Context, args string) (string, error) {
	return c.boxTool(ctx, args, PitchingColumns, c.PitchingStats)
}

func (c *MLBClient) boxTool(ctx context.Context, args string, columns []string,
	fetch func(context.Context, string) ([]map[string]interface{}, error)) (string, error) {
	var a gameArgs
	if msg := decodeArgs(args, &a); msg != "" {
		return msg, nil
	}
	if !mlbGameIDPattern.MatchString(a.GameID) {
		return agent.ErrorPayload(fmt.Sprintf("invalid game_id %q: expected a numeric MLB Game ID", a.GameID)), nil
	}
	rows, err := fetch(ctx, a.GameID)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return agent.ErrorPayload(fmt.Sprintf("no box score found for game %s", a.GameID)), nil
	}
	return renderTable(columns, rows), nil
}
