package fetch

// teamAbbrs maps MLB Stats API full club names onto the abbreviations
// used as team ids everywhere else in the schema.
var teamAbbrs = map[string]string{
	"Arizona Diamondbacks": "ARI", "Atlanta Braves": "ATL",
	"Baltimore Orioles": "BAL", "Boston Red Sox": "BOS",
	"Chicago Cubs": "CHC", "Chicago White Sox": "CHW",
	"Cincinnati Reds": "CIN", "Cleveland Guardians": "CLE",
	"Colorado Rockies": "COL", "Detroit Tigers": "DET",
	"Houston Astros": "HOU", "Kansas City Royals": "KC",
	"Los Angeles Angels": "LAA", "Los Angeles Dodgers": "LAD",
	"Miami Marlins": "MIA", "Milwaukee Brewers": "MIL",
	"Minnesota Twins": "MIN", "New York Mets": "NYM",
	"New York Yankees": "NYY", "Oakland Athletics": "OAK",
	"Philadelphia Phillies": "PHI", "Pittsburgh Pirates": "PIT",
	"San Diego Padres": "SD", "San Francisco Giants": "SF",
	"Seattle Mariners": "SEA", "St. Louis Cardinals": "STL",
	"Tampa Bay Rays": "TB", "Texas Rangers": "TEX",
	"Toronto Blue Jays": "TOR", "Washington Nationals": "WSH",
}

// TeamAbbr resolves a full club name to its abbreviation, passing
// through anything already abbreviated or unknown.
func TeamAbbr(name string) string {
	if abbr, ok := teamAbbrs[name]; ok {
		return abbr
	}
	return name
}

// TeamFullName is the inverse lookup, used to match odds events that
// carry full club names.
func TeamFullName(abbr string) string {
	for name, a := range teamAbbrs {
		if a == abbr {
			return name
		}
	}
	return abbr
}
