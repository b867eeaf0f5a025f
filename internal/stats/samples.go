package stats

// SampleQuery is one worked reference query.
type SampleQuery struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	SQL         string `json:"sql"`
}

// SampleQueries is the static reference payload returned by the
// sample-query tool: worked queries plus usage tips.
type SampleQueries struct {
	Database string        `json:"database"`
	Queries  []SampleQuery `json:"queries"`
	Tips     []string      `json:"tips"`
}

// Samples returns the reference queries for the database at path.
func Samples(dbPath string) SampleQueries {
	return SampleQueries{
		Database: dbPath,
		Queries: []SampleQuery{
			{
				Category:    "Player Stats",
				Description: "Top 10 run scorers (all time)",
				SQL: `SELECT
    p.name,
    COUNT(DISTINCT b.match_id) as matches,
    SUM(b.runs) as total_runs,
    ROUND(AVG(b.runs), 2) as avg_runs,
    MAX(b.runs) as high_score
FROM batting b
JOIN players p ON b.player_id = p.player_id
WHERE b.runs IS NOT NULL
GROUP BY p.name
HAVING COUNT(DISTINCT b.match_id) >= 20
ORDER BY total_runs DESC
LIMIT 10`,
			},
			{
				Category:    "Matches",
				Description: "Recent matches",
				SQL: `SELECT
    start_date,
    team1,
    team2,
    winner,
    stadium,
    country
FROM matches
ORDER BY start_date DESC
LIMIT 10`,
			},
			{
				Category:    "Player Stats",
				Description: "Player career stats (example: find player_id first)",
				SQL: `-- First, find player ID
SELECT player_id, name FROM players WHERE name LIKE '%Kohli%' LIMIT 5;

-- Then get stats for that player
SELECT
    p.name,
    COUNT(DISTINCT b.match_id) as matches,
    SUM(b.runs) as total_runs,
    ROUND(AVG(b.runs), 2) as average,
    MAX(b.runs) as highest_score,
    SUM(CASE WHEN b.runs >= 100 THEN 1 ELSE 0 END) as centuries,
    SUM(CASE WHEN b.runs >= 50 AND b.runs < 100 THEN 1 ELSE 0 END) as fifties
FROM batting b
JOIN players p ON b.player_id = p.player_id
WHERE b.player_id = 253802
GROUP BY p.name`,
			},
			{
				Category:    "Partnerships",
				Description: "Best partnerships at a venue",
				SQL: `SELECT
    m.stadium,
    p1.name as player1,
    p2.name as player2,
    part.runs,
    part.balls,
    m.start_date
FROM partnerships part
JOIN matches m ON part.match_id = m.match_id
JOIN players p1 ON part.player1_id = p1.player_id
JOIN players p2 ON part.player2_id = p2.player_id
WHERE m.stadium = 'Melbourne Cricket Ground'
ORDER BY part.runs DESC
LIMIT 10`,
			},
			{
				Category:    "Head to Head",
				Description: "India vs Australia head-to-head",
				SQL: `SELECT
    winner,
    COUNT(*) as wins
FROM matches
WHERE (team1 = 'India' AND team2 = 'Australia')
   OR (team1 = 'Australia' AND team2 = 'India')
GROUP BY winner
ORDER BY wins DESC`,
			},
		},
		Tips: []string{
			"Use get_database_schema to see available tables and columns",
			"Join players table to get names from player_id",
			"Join matches table to get venue, date, and team info",
			"batting and bowling tables have match-level performance data",
			"partnerships table has partnership details with player IDs",
		},
	}
}
