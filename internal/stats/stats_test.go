package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nidhogg/statcrew/internal/agent"
	"go.uber.org/zap"
)

const leadersFixture = `{"resultSets":[
 {"name":"PTSLeaders","headers":["PLAYER_ID","PLAYER_NAME","PTS","PTS_RANK","IS_ACTIVE_FLAG"],
  "rowSet":[[2544,"LeBron James",40474,1,"Y"],[76003,"Kareem Abdul-Jabbar",38387,2,"N"],[252,"Karl Malone",36928,3,"N"]]},
 {"name":"ASTLeaders","headers":["PLAYER_ID","PLAYER_NAME","AST","AST_RANK","IS_ACTIVE_FLAG"],
  "rowSet":[[467,"Jason Kidd",12091,2,"N"],[304,"John Stockton",15806,1,"N"],[101108,"Chris Paul",11894,3,"Y"]]},
 {"name":"FG_PCTLeaders","headers":["PLAYER_ID","PLAYER_NAME","FG_PCT","FG_PCT_RANK","IS_ACTIVE_FLAG"],
  "rowSet":[[201599,"DeAndre Jordan",0.674,1,"Y"],[1627826,"Ivica Zubac",0.5,2,"Y"]]}
]}`

const gameFinderFixture = `{"resultSets":[{"name":"LeagueGameFinderResults",
 "headers":["SEASON_ID","TEAM_ID","TEAM_ABBREVIATION","TEAM_NAME","GAME_ID","GAME_DATE","MATCHUP","WL","PTS","PLUS_MINUS"],
 "rowSet":[["22023",1610612747,"LAL","Los Angeles Lakers","0022300500","2024-01-15","LAL vs. BOS","W",114,9.0]]}]}`

const boxFixture = `{"resultSets":[{"name":"PlayerStats",
 "headers":["GAME_ID","TEAM_ABBREVIATION","PLAYER_NAME","START_POSITION","MIN","PTS","REB","AST"],
 "rowSet":[["0022300500","LAL","LeBron James","F","36:12",30,8,11],["0022300500","BOS","Jayson Tatum","F","38:01",27,9,4]]}]}`

func newNBAServer(t *testing.T, calls *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			*calls = append(*calls, r.URL.Path+"?"+r.URL.RawQuery)
		}
		if r.Header.Get("x-nba-stats-origin") != "stats" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/alltimeleadersgrids":
			w.Write([]byte(leadersFixture))
		case "/leaguegamefinder":
			if r.URL.Query().Get("DateFrom") == "01/15/2024" {
				w.Write([]byte(gameFinderFixture))
				return
			}
			w.Write([]byte(`{"resultSets":[{"name":"LeagueGameFinderResults","headers":[],"rowSet":[]}]}`))
		case "/boxscoretraditionalv2":
			w.Write([]byte(boxFixture))
		default:
			http.NotFound(w, r)
		}
	}))
}

func newRegistry(t *testing.T, nbaURL, mlbURL string) *agent.ToolRegistry {
	t.Helper()
	reg := agent.NewToolRegistry()
	var nba *NBAClient
	var mlb *MLBClient
	if nbaURL != "" {
		nba = NewNBAClient(nbaURL, 0, zap.NewNop())
	}
	if mlbURL != "" {
		mlb = NewMLBClient(mlbURL, 0, zap.NewNop())
	}
	RegisterTools(reg, nba, mlb)
	return reg
}

func TestLeadersInvalidCategory(t *testing.T) {
	var calls []string
	srv := newNBAServer(t, &calls)
	defer srv.Close()
	reg := newRegistry(t, srv.URL, "")

	out, err := reg.Execute(context.Background(), ToolNBALeaders, `{"stat_category":"XYZ"}`)
	if err != nil {
		t.Fatalf("invalid category must not error: %v", err)
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("payload is not JSON: %s", out)
	}
	want := "Invalid stat category. Valid options are: PTS, AST, REB, STL, BLK, FG_PCT, FT_PCT, FG3_PCT"
	if payload["error"] != want {
		t.Errorf("error = %q", payload["error"])
	}
	if len(calls) != 0 {
		t.Errorf("provider was called for invalid input: %v", calls)
	}
}

func TestLeadersSortedAndTyped(t *testing.T) {
	srv := newNBAServer(t, nil)
	defer srv.Close()
	reg := newRegistry(t, srv.URL, "")

	out, err := reg.Execute(context.Background(), ToolNBALeaders, `{"stat_category":"AST","top_n":2}`)
	if err != nil {
		t.Fatal(err)
	}
	var recs []map[string]interface{}
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0]["PLAYER_NAME"] != "John Stockton" || recs[1]["PLAYER_NAME"] != "Jason Kidd" {
		t.Errorf("not sorted by rank: %v", recs)
	}
	if !strings.Contains(out, `"AST": 15806`) {
		t.Errorf("count category should be an integer:\n%s", out)
	}
	if !strings.HasPrefix(out, "[\n  {") {
		t.Errorf("expected indented JSON:\n%s", out)
	}
}

func TestLeadersDefaultTopNAndPercent(t *testing.T) {
	var calls []string
	srv := newNBAServer(t, &calls)
	defer srv.Close()
	reg := newRegistry(t, srv.URL, "")

	out, err := reg.Execute(context.Background(), ToolNBALeaders, `{"stat_category":"FG_PCT"}`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(calls[0], "TopX=10") {
		t.Errorf("default top_n not 10: %s", calls[0])
	}
	if !strings.Contains(out, `"FG_PCT": 0.674`) || !strings.Contains(out, `"FG_PCT": 0.5,`) {
		t.Errorf("percentages should be floats:\n%s", out)
	}
}

func TestLeadersNonPositiveTopN(t *testing.T) {
	srv := newNBAServer(t, nil)
	defer srv.Close()
	reg := newRegistry(t, srv.URL, "")

	out, err := reg.Execute(context.Background(), ToolNBALeaders, `{"stat_category":"PTS","top_n":0}`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "top_n must be a positive integer") {
		t.Errorf("out = %s", out)
	}
}

func TestNBAGameInfo(t *testing.T) {
	srv := newNBAServer(t, nil)
	defer srv.Close()
	reg := newRegistry(t, srv.URL, "")

	out, err := reg.Execute(context.Background(), ToolNBAGameInfo, `{"game_date":"2024-01-15","team_name":"lakers"}`)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Game ID: 0022300500",
		"Los Angeles Lakers Points: 114",
		"Boston Celtics Points: 105",
		"Winning Team: Los Angeles Lakers",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestNBAGameInfoInputErrors(t *testing.T) {
	srv := newNBAServer(t, nil)
	defer srv.Close()
	reg := newRegistry(t, srv.URL, "")

	cases := []struct {
		args string
		want string
	}{
		{`{"game_date":"15/01/2024","team_name":"Lakers"}`, "invalid game_date"},
		{`{"game_date":"2024-01-15","team_name":"Seattle SuperSonics"}`, "unknown NBA team"},
		{`{"game_date":"2024-01-15","team_name":"Los Angeles"}`, "ambiguous"},
		{`{"game_date":"2024-01-16","team_name":"LAL"}`, "No game found for team Los Angeles Lakers on 2024-01-16."},
		{`not json`, "invalid arguments"},
	}
	for _, tc := range cases {
		out, err := reg.Execute(context.Background(), ToolNBAGameInfo, tc.args)
		if err != nil {
			t.Errorf("%s: input error returned as error: %v", tc.args, err)
			continue
		}
		if !strings.Contains(out, `"error"`) || !strings.Contains(out, tc.want) {
			t.Errorf("%s: out = %s", tc.args, out)
		}
	}
}

func TestNBAPlayerStats(t *testing.T) {
	srv := newNBAServer(t, nil)
	defer srv.Close()
	reg := newRegistry(t, srv.URL, "")

	out, err := reg.Execute(context.Background(), ToolNBAPlayerStats, `{"game_id":"0022300500"}`)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("want header + 2 rows, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[0], "TEAM_ABBREVIATION") || !strings.Contains(lines[1], "LeBron James") {
		t.Errorf("table:\n%s", out)
	}

	out, err = reg.Execute(context.Background(), ToolNBAPlayerStats, `{"game_id":"123"}`)
	if err != nil || !strings.Contains(out, "invalid game_id") {
		t.Errorf("short id: %s %v", out, err)
	}
}

func TestUpstreamFailureIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("maintenance"))
	}))
	defer srv.Close()
	reg := newRegistry(t, srv.URL, srv.URL)

	_, err := reg.Execute(context.Background(), ToolNBALeaders, `{"stat_category":"PTS"}`)
	var apiErr *APIError
	if err == nil || !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("got %v, want APIError 503", err)
	}

	_, err = reg.Execute(context.Background(), ToolMLBGameInfo, `{"game_date":"2024-10-30","team_name":"Yankees"}`)
	if err == nil {
		t.Fatal("mlb upstream failure should be an error")
	}
}

const scheduleFixture = `{"dates":[{"games":[
 {"gamePk":775300,"status":{"detailedState":"Final"},
  "teams":{"away":{"team":{"name":"Los Angeles Dodgers"},"score":7,"isWinner":true},
           "home":{"team":{"name":"New York Yankees"},"score":6,"isWinner":false}},
  "seriesStatus":{"result":"LAD wins 4-1"}}]}]}`

const mlbBoxFixture = `{"teams":{
 "away":{"team":{"name":"Los Angeles Dodgers","teamName":"Dodgers"},"batters":[605141],"pitchers":[808967],
  "players":{"ID605141":{"person":{"fullName":"Mookie Betts"},"position":{"abbreviation":"RF"},
    "stats":{"batting":{"atBats":4,"runs":1,"hits":2,"homeRuns":0,"rbi":2,"baseOnBalls":1,"stolenBases":0},"pitching":{}}},
   "ID808967":{"person":{"fullName":"Walker Buehler"},"position":{"abbreviation":"P"},
    "stats":{"batting":{},"pitching":{"inningsPitched":"1.0","hits":0,"runs":0,"earnedRuns":0,"baseOnBalls":0,"strikeOuts":2,"note":"(S, 1)"}}}}},
 "home":{"team":{"name":"New York Yankees","teamName":"Yankees"},"batters":[592450],"pitchers":[],
  "players":{"ID592450":{"person":{"fullName":"Aaron Judge"},"position":{"abbreviation":"CF"},
    "stats":{"batting":{"atBats":4,"runs":1,"hits":1,"homeRuns":1,"rbi":2,"baseOnBalls":0,"stolenBases":0},"pitching":{}}}}}}}`

func newMLBServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/schedule" && r.URL.Query().Get("date") == "2024-10-30":
			w.Write([]byte(scheduleFixture))
		case r.URL.Path == "/schedule":
			w.Write([]byte(`{"dates":[]}`))
		case r.URL.Path == "/game/775300/boxscore":
			w.Write([]byte(mlbBoxFixture))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestMLBGameInfo(t *testing.T) {
	srv := newMLBServer(t)
	defer srv.Close()
	reg := newRegistry(t, "", srv.URL)

	out, err := reg.Execute(context.Background(), ToolMLBGameInfo, `{"game_date":"2024-10-30","team_name":"yankees"}`)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Game ID: 775300",
		"Home Team: New York Yankees",
		"Home Score: 6",
		"Away Score: 7",
		"Winning Team: Los Angeles Dodgers",
		"Series Status: LAD wins 4-1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}

	out, err = reg.Execute(context.Background(), ToolMLBGameInfo, `{"game_date":"2024-11-02","team_name":"Yankees"}`)
	if err != nil || out != agent.ErrorPayload("No game found for team Yankees on 2024-11-02.") {
		t.Errorf("no game: %q %v", out, err)
	}
}

func TestMLBBoxScores(t *testing.T) {
	srv := newMLBServer(t)
	defer srv.Close()
	reg := newRegistry(t, "", srv.URL)

	out, err := reg.Execute(context.Background(), ToolMLBBatting, `{"game_id":"775300"}`)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.Contains(lines[1], "Mookie Betts") || !strings.Contains(lines[2], "Aaron Judge") {
		t.Errorf("batting table (away first):\n%s", out)
	}

	out, err = reg.Execute(context.Background(), ToolMLBPitching, `{"game_id":"775300"}`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Walker Buehler") || !strings.Contains(out, "(S, 1)") {
		t.Errorf("pitching table:\n%s", out)
	}

	out, _ = reg.Execute(context.Background(), ToolMLBBatting, `{"game_id":"abc"}`)
	if !strings.Contains(out, "invalid game_id") {
		t.Errorf("bad id: %s", out)
	}
}

func TestFindTeam(t *testing.T) {
	for _, name := range []string{"Golden State Warriors", "warriors", "GSW", "Golden State"} {
		team, err := FindTeam(name)
		if err != nil || team.ID != 1610612744 {
			t.Errorf("%s: %+v %v", name, team, err)
		}
	}
}
