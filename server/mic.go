package main

import (
	"time"

	"quizgrid/protocol"
)

// Microphone states
const (
	MicAvailable = "available"
	MicClaimed   = "claimed"
	MicRetired   = "retired"
)

// ClaimResult is the outcome of a claim attempt against one microphone
type ClaimResult int

const (
	ClaimOK ClaimResult = iota
	ClaimTaken
	ClaimRetired
	ClaimCooldown
)

// Microphone is a contestable quiz pickup on the grid
type Microphone struct {
	ID            string
	X, Y          int
	State         string
	HeldBy        string    // player id, set while Claimed
	CooldownUntil time.Time // re-claim lockout after a failed answer
}

// initialMics returns the fixed starting microphones
func initialMics() []*Microphone {
	return []*Microphone{
		{ID: "m1", X: 10, Y: 5, State: MicAvailable},
		{ID: "m2", X: 4, Y: 12, State: MicAvailable},
		{ID: "m3", X: 20, Y: 18, State: MicAvailable},
	}
}

// TryClaim transitions the mic to Claimed for pid. Check and transition
// happen in one step; the caller must hold the world lock, which makes
// concurrent claims on the same mic linearize to a single winner.
func (m *Microphone) TryClaim(pid string, now time.Time) ClaimResult {
	switch m.State {
	case MicRetired:
		return ClaimRetired
	case MicClaimed:
		return ClaimTaken
	}
	if now.Before(m.CooldownUntil) {
		return ClaimCooldown
	}
	m.State = MicClaimed
	m.HeldBy = pid
	return ClaimOK
}

// Release puts the mic back up for grabs, locked out until cooldownUntil
func (m *Microphone) Release(cooldownUntil time.Time) {
	m.State = MicAvailable
	m.HeldBy = ""
	m.CooldownUntil = cooldownUntil
}

// Retire takes the mic out of play permanently
func (m *Microphone) Retire() {
	m.State = MicRetired
	m.HeldBy = ""
}

// ToState converts to protocol state
func (m *Microphone) ToState() protocol.MicState {
	s := protocol.MicState{
		ID:    m.ID,
		X:     m.X,
		Y:     m.Y,
		State: m.State,
	}
	if m.State == MicClaimed {
		s.HeldBy = m.HeldBy
	}
	return s
}
