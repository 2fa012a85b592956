// Package crew builds and runs the task graphs that answer a stats request.
package crew

import "strings"

// GraphName identifies a task graph.
type GraphName string

const (
	GraphGameInfo     GraphName = "game_info"
	GraphPlayerStats  GraphName = "player_stats"
	GraphMLBGameRecap GraphName = "mlb_game_recap"
)

// leaderKeywords route a request to the all-time leaders graph.
var leaderKeywords = []string{"all-time", "all time", "leader", "record", "history", "career"}

// SelectGraph picks the graph for a request. Any keyword match selects
// player_stats; everything else is a game recap.
func SelectGraph(request string) GraphName {
	lower := strings.ToLower(request)
	for _, kw := range leaderKeywords {
		if strings.Contains(lower, kw) {
			return GraphPlayerStats
		}
	}
	return GraphGameInfo
}
