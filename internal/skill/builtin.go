package skill

// RegisterBuiltins adds the default built-in skills to the manager.
func RegisterBuiltins(mgr *Manager) {
	builtins := []*Skill{
		{
			ID:          "calendar",
			Name:        "calendar",
			Description: "Resolve relative dates",
			PromptFragment: "When the user says 'last night', 'yesterday' or names a weekday, " +
				"call get_current_date and convert the phrase to a YYYY-MM-DD date.",
			ToolNames: []string{"get_current_date"},
		},
		{
			ID:          "nba_games",
			Name:        "nba_games",
			Description: "Find NBA games by date and team",
			PromptFragment: "Use get_nba_game_info with a YYYY-MM-DD date and a team name " +
				"(full name, nickname, city or abbreviation) to identify a game and its Game ID.",
			ToolNames: []string{"get_nba_game_info"},
		},
		{
			ID:          "nba_boxscore",
			Name:        "nba_boxscore",
			Description: "Fetch NBA player box scores",
			PromptFragment: "Use get_nba_player_stats with the 10-digit Game ID found by the researcher " +
				"and return the table exactly as provided.",
			ToolNames: []string{"get_nba_player_stats"},
		},
		{
			ID:          "nba_leaders",
			Name:        "nba_leaders",
			Description: "Look up NBA all-time leaders",
			PromptFragment: "Use get_nba_all_time_leaders with one of PTS, AST, REB, STL, BLK, FG_PCT, " +
				"FT_PCT, FG3_PCT and top_n (default 10).",
			ToolNames: []string{"get_nba_all_time_leaders"},
		},
		{
			ID:          "mlb_games",
			Name:        "mlb_games",
			Description: "Find MLB games by date and team",
			PromptFragment: "Use get_mlb_game_info with a YYYY-MM-DD date and a team name. " +
				"If several teams are mentioned, use the first one.",
			ToolNames: []string{"get_mlb_game_info"},
		},
		{
			ID:             "mlb_boxscore",
			Name:           "mlb_boxscore",
			Description:    "Fetch MLB batting and pitching box scores",
			PromptFragment: "Use get_mlb_batting_stats and get_mlb_pitching_stats with the Game ID of the game.",
			ToolNames:      []string{"get_mlb_batting_stats", "get_mlb_pitching_stats"},
		},
		{
			ID:             "rulebook",
			Name:           "rulebook",
			Description:    "Search indexed league documents",
			PromptFragment: "Use rag_search to quote the indexed league documents. Answer only from the passages returned.",
			ToolNames:      []string{"rag_search"},
		},
	}
	for _, s := range builtins {
		s.Source = "builtin"
		mgr.Add(s)
	}
}
