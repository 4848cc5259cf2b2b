package main

import (
	"time"

	"quizgrid/protocol"
)

// pendingQuiz is one in-flight question, owned by exactly one claim
type pendingQuiz struct {
	micID    string
	playerID string
	question *Question
	deadline time.Time
}

// HandleClaim processes a claim attempt. Contended claims on the same
// mic resolve to exactly one winner; everyone else gets an advisory
// message and no state changes.
func (g *Game) HandleClaim(playerID, micID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhasePlaying {
		return
	}
	p, ok := g.players[playerID]
	if !ok {
		return
	}
	mic, ok := g.mics[micID]
	if !ok {
		g.sendInfoLocked(playerID, "no such microphone")
		return
	}
	if mic.X != p.X || mic.Y != p.Y {
		g.sendInfoLocked(playerID, "you must stand on the microphone to claim it")
		return
	}

	switch mic.TryClaim(playerID, time.Now()) {
	case ClaimTaken:
		g.sendInfoLocked(playerID, "microphone is currently in use by another player")
		return
	case ClaimRetired:
		g.sendInfoLocked(playerID, "microphone has already been answered")
		return
	case ClaimCooldown:
		g.sendInfoLocked(playerID, "microphone is recharging, try again shortly")
		return
	}

	q, err := g.deck.Draw()
	if err != nil {
		// Deck exhausted: the claim fails and the tick loop's
		// end-of-questions check takes it from here.
		mic.Release(time.Time{})
		g.sendInfoLocked(playerID, "no questions left")
		return
	}

	deadline := time.Now().Add(AnswerTimeout)
	g.pending[micID] = &pendingQuiz{
		micID:    micID,
		playerID: playerID,
		question: q,
		deadline: deadline,
	}
	g.sendToLocked(playerID, protocol.Envelope{
		T: protocol.MsgQuestion,
		Data: protocol.QuestionMsg{
			MicID:      micID,
			QuestionID: q.ID,
			Prompt:     q.Prompt,
			Choices:    q.Choices,
			Deadline:   int(AnswerTimeout / time.Second),
		},
	})
}

// HandleAnswer grades an answer against its pending question. Answers
// referencing a stale or already-graded claim are ignored, so late and
// duplicate submissions have no effect.
func (g *Game) HandleAnswer(playerID string, msg protocol.AnswerMsg) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhasePlaying {
		return
	}
	pq, ok := g.pending[msg.MicID]
	if !ok || pq.playerID != playerID || pq.question.ID != msg.QuestionID {
		return
	}
	delete(g.pending, msg.MicID)

	mic := g.mics[msg.MicID]
	if msg.Choice == pq.question.Correct {
		g.gradeCorrectLocked(pq, mic)
		return
	}
	mic.Release(time.Now().Add(ClaimCooldownDuration))
	g.sendToLocked(playerID, protocol.Envelope{
		T:    protocol.MsgAnswerResult,
		Data: protocol.AnswerResultMsg{QuestionID: pq.question.ID, Verdict: protocol.VerdictWrong},
	})
}

func (g *Game) gradeCorrectLocked(pq *pendingQuiz, mic *Microphone) {
	if p, ok := g.players[pq.playerID]; ok {
		p.Score += ScorePerCorrect
	}
	mic.Retire()
	if g.deck.Remaining() > 0 {
		g.spawnMicLocked()
	}
	g.sendToLocked(pq.playerID, protocol.Envelope{
		T: protocol.MsgAnswerResult,
		Data: protocol.AnswerResultMsg{
			QuestionID: pq.question.ID,
			Verdict:    protocol.VerdictCorrect,
			Delta:      ScorePerCorrect,
		},
	})
}

// expirePendingLocked times out overdue questions. An expired claim is
// graded like a wrong answer: no score, mic released behind a cooldown.
func (g *Game) expirePendingLocked(now time.Time) {
	for micID, pq := range g.pending {
		if now.Before(pq.deadline) {
			continue
		}
		delete(g.pending, micID)
		if mic, ok := g.mics[micID]; ok {
			mic.Release(now.Add(ClaimCooldownDuration))
		}
		g.sendToLocked(pq.playerID, protocol.Envelope{
			T:    protocol.MsgAnswerResult,
			Data: protocol.AnswerResultMsg{QuestionID: pq.question.ID, Verdict: protocol.VerdictTimedOut},
		})
	}
}

func (g *Game) sendInfoLocked(playerID, msg string) {
	g.sendToLocked(playerID, protocol.Envelope{
		T:    protocol.MsgInfo,
		Data: protocol.InfoMsg{Message: msg},
	})
}
