package stats

import (
	"fmt"
	"strings"
)

// Team is one NBA franchise.
type Team struct {
	ID           int64
	Abbreviation string
	City         string
	Nickname     string
}

// FullName is the city and nickname, e.g. "Los Angeles Lakers".
func (t Team) FullName() string { return t.City + " " + t.Nickname }

var nbaTeams = []Team{
	{1610612737, "ATL", "Atlanta", "Hawks"},
	{1610612738, "BOS", "Boston", "Celtics"},
	{1610612751, "BKN", "Brooklyn", "Nets"},
	{1610612766, "CHA", "Charlotte", "Hornets"},
	{1610612741, "CHI", "Chicago", "Bulls"},
	{1610612739, "CLE", "Cleveland", "Cavaliers"},
	{1610612742, "DAL", "Dallas", "Mavericks"},
	{1610612743, "DEN", "Denver", "Nuggets"},
	{1610612765, "DET", "Detroit", "Pistons"},
	{1610612744, "GSW", "Golden State", "Warriors"},
	{1610612745, "HOU", "Houston", "Rockets"},
	{1610612754, "IND", "Indiana", "Pacers"},
	{1610612746, "LAC", "Los Angeles", "Clippers"},
	{1610612747, "LAL", "Los Angeles", "Lakers"},
	{1610612763, "MEM", "Memphis", "Grizzlies"},
	{1610612748, "MIA", "Miami", "Heat"},
	{1610612749, "MIL", "Milwaukee", "Bucks"},
	{1610612750, "MIN", "Minnesota", "Timberwolves"},
	{1610612740, "NOP", "New Orleans", "Pelicans"},
	{1610612752, "NYK", "New York", "Knicks"},
	{1610612760, "OKC", "Oklahoma City", "Thunder"},
	{1610612753, "ORL", "Orlando", "Magic"},
	{1610612755, "PHI", "Philadelphia", "76ers"},
	{1610612756, "PHX", "Phoenix", "Suns"},
	{1610612757, "POR", "Portland", "Trail Blazers"},
	{1610612758, "SAC", "Sacramento", "Kings"},
	{1610612759, "SAS", "San Antonio", "Spurs"},
	{1610612761, "TOR", "Toronto", "Raptors"},
	{1610612762, "UTA", "Utah", "Jazz"},
	{1610612764, "WAS", "Washington", "Wizards"},
}

// FindTeam resolves a full name, nickname, abbreviation or city. A city
// shared by two franchises is ambiguous.
func FindTeam(name string) (Team, error) {
	q := strings.ToLower(strings.TrimSpace(name))
	if q == "" {
		return Team{}, fmt.Errorf("team_name is required")
	}
	for _, t := range nbaTeams {
		if q == strings.ToLower(t.FullName()) || q == strings.ToLower(t.Nickname) || q == strings.ToLower(t.Abbreviation) {
			return t, nil
		}
	}
	var byCity []Team
	for _, t := range nbaTeams {
		if q == strings.ToLower(t.City) {
			byCity = append(byCity, t)
		}
	}
	switch len(byCity) {
	case 1:
		return byCity[0], nil
	case 0:
		return Team{}, fmt.Errorf("unknown NBA team %q", name)
	default:
		names := make([]string, len(byCity))
		for i, t := range byCity {
			names[i] = t.FullName()
		}
		return Team{}, fmt.Errorf("team %q is ambiguous: %s", name, strings.Join(names, " or "))
	}
}
