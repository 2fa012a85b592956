package crew

import "testing"

func TestSelectGraph(t *testing.T) {
	cases := []struct {
		request string
		want    GraphName
	}{
		{"Who are the all-time assists leaders?", GraphPlayerStats},
		{"ALL TIME blocks", GraphPlayerStats},
		{"who holds the scoring record", GraphPlayerStats},
		{"franchise HISTORY of rebounds", GraphPlayerStats},
		{"career three point percentage", GraphPlayerStats},
		{"Leaderboard for steals", GraphPlayerStats},
		{"Lakers game last night", GraphGameInfo},
		{"How did the Celtics do on 2024-01-15?", GraphGameInfo},
		{"", GraphGameInfo},
	}
	for _, tc := range cases {
		if got := SelectGraph(tc.request); got != tc.want {
			t.Errorf("SelectGraph(%q) = %s, want %s", tc.request, got, tc.want)
		}
	}
}
