// Package spacecowbot implements a cowboy-themed Discord community bot.
//
// The bot tracks "study points" per user in a SQLite or Postgres
// database, and exposes them through prefix commands: points can be
// granted directly, earned by timing study sessions or taking
// AI-generated quizzes, and spent in an interactive shop. A small
// read-only HTTP API serves the leaderboard and individual balances.
package spacecowbot

// Set at build time via ldflags.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"
)
