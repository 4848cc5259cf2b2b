package main

import "time"

// Phase represents the lifecycle of a match
type Phase int

const (
	PhaseLobby     Phase = 0
	PhaseCountdown Phase = 1
	PhasePlaying   Phase = 2
	PhaseGameOver  Phase = 3
)

// String returns the wire name of the phase
func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseCountdown:
		return "countdown"
	case PhasePlaying:
		return "playing"
	case PhaseGameOver:
		return "game_over"
	}
	return "unknown"
}

// Match timing. Variables rather than constants so tests can shrink them.
var (
	CountdownDuration     = 3 * time.Second  // Lobby -> Playing delay once everyone is ready
	AnswerTimeout         = 20 * time.Second // per-claim answer deadline
	ClaimCooldownDuration = 5 * time.Second  // re-claim lockout after a wrong answer
)

const (
	DefaultTimeLimit = 180 // seconds
	ScorePerCorrect  = 1
)
