package main

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizgrid/protocol"
)

const (
	TickRate       = 10 // world ticks per second
	BroadcastRate  = 5  // state broadcasts per second
	TickDuration   = time.Second / TickRate
	BroadcastEvery = TickRate / BroadcastRate
)

const maxHandleLen = 16

// Join errors, reported to the rejected client only
var (
	ErrServerFull     = errors.New("server full")
	ErrGameInProgress = errors.New("game in progress")
)

// Broadcaster is the outbound side of a session
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// Game is the authoritative world for one match: players, microphones,
// phase and clock. Every mutation goes through its methods under g.mu;
// no other component touches the entities directly.
type Game struct {
	mu        sync.RWMutex
	players   map[string]*Player
	mics      map[string]*Microphone
	clients   map[string]Broadcaster // player id -> session
	obstacles map[[2]int]bool
	deck      *QuestionDeck
	pending   map[string]*pendingQuiz // mic id -> in-flight question

	phase        Phase
	timeLimit    time.Duration
	countdownEnd time.Time
	endAt        time.Time
	lastCount    int // last countdown second announced

	tick    uint64
	joined  int // total joins, drives spawn corners and default handles
	nextMic int
	running bool
	stop    chan struct{}
}

// NewGame creates the world for one match
func NewGame(timeLimit time.Duration, deck *QuestionDeck) *Game {
	g := &Game{
		players:   make(map[string]*Player),
		mics:      make(map[string]*Microphone),
		clients:   make(map[string]Broadcaster),
		obstacles: defaultObstacles(),
		deck:      deck,
		pending:   make(map[string]*pendingQuiz),
		phase:     PhaseLobby,
		timeLimit: timeLimit,
		lastCount: -1,
		nextMic:   1,
		stop:      make(chan struct{}),
	}
	for _, m := range initialMics() {
		g.mics[m.ID] = m
		g.nextMic++
	}
	return g
}

// defaultObstacles builds the fixed wall at x=15, y=5..9
func defaultObstacles() map[[2]int]bool {
	obstacles := make(map[[2]int]bool)
	for y := 5; y < 10; y++ {
		obstacles[[2]int{15, y}] = true
	}
	return obstacles
}

// Run drives the world: phase transitions, quiz deadlines and the
// periodic state broadcast all happen on this loop.
func (g *Game) Run() {
	g.mu.Lock()
	g.running = true
	g.mu.Unlock()

	ticker := time.NewTicker(TickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.update()
		case <-g.stop:
			return
		}
	}
}

// Stop terminates the game loop
func (g *Game) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopLocked()
}

func (g *Game) stopLocked() {
	if g.running {
		g.running = false
		close(g.stop)
	}
}

// AddPlayer admits a new player during the lobby phase
func (g *Game) AddPlayer(handle string) (*Player, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseLobby {
		return nil, ErrGameInProgress
	}
	if len(g.players) >= maxPlayers {
		return nil, ErrServerFull
	}

	handle = strings.TrimSpace(handle)
	if handle == "" {
		handle = fmt.Sprintf("Player-%d", g.joined+1)
	}
	if len(handle) > maxHandleLen {
		handle = handle[:maxHandleLen]
	}

	player := NewPlayer(uuid.NewString(), handle, g.joined)
	g.joined++
	g.players[player.ID] = player
	return player, nil
}

// SetClient associates a session with a player
func (g *Game) SetClient(playerID string, client Broadcaster) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clients[playerID] = client
}

// RemovePlayer deletes a player, releasing any microphone they hold and
// discarding their pending question. Idempotent.
func (g *Game) RemovePlayer(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.players[id]; !ok {
		delete(g.clients, id)
		return
	}
	for micID, pq := range g.pending {
		if pq.playerID != id {
			continue
		}
		delete(g.pending, micID)
		if mic, ok := g.mics[micID]; ok {
			// No cooldown: nothing was graded, the holder is gone
			mic.Release(time.Time{})
		}
	}
	delete(g.players, id)
	delete(g.clients, id)

	if g.phase == PhaseLobby {
		g.broadcastLobbyLocked()
	}
}

// HandleReady records a lobby readiness toggle
func (g *Game) HandleReady(playerID string, ready bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseLobby {
		return
	}
	p, ok := g.players[playerID]
	if !ok {
		return
	}
	p.Ready = ready
	g.broadcastLobbyLocked()
}

// HandleMove applies a one-tile move. Out-of-bounds and obstacle moves
// are ignored with no state change, as are moves outside the playing
// phase.
func (g *Game) HandleMove(playerID, dir string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhasePlaying {
		return
	}
	p, ok := g.players[playerID]
	if !ok {
		return
	}
	nx, ny := stepped(p.X, p.Y, dir)
	if !inBounds(nx, ny) || g.obstacles[[2]int{nx, ny}] {
		return
	}
	p.X = nx
	p.Y = ny
}

// AnnounceLobby broadcasts the current lobby roster
func (g *Game) AnnounceLobby() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.broadcastLobbyLocked()
}

// PlayerCount returns the number of players in the world
func (g *Game) PlayerCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.players)
}

// Phase returns the current match phase
func (g *Game) Phase() Phase {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.phase
}

// Snapshot returns a read-consistent copy of the world for broadcast
func (g *Game) Snapshot() protocol.Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshotLocked(time.Now())
}

func (g *Game) snapshotLocked(now time.Time) protocol.Snapshot {
	snap := protocol.Snapshot{
		Players:  make([]protocol.PlayerState, 0, len(g.players)),
		Mics:     make([]protocol.MicState, 0, len(g.mics)),
		TimeLeft: g.timeLeftLocked(now),
		Phase:    g.phase.String(),
		Tick:     g.tick,
	}
	for _, p := range g.players {
		snap.Players = append(snap.Players, p.ToState())
	}
	for _, m := range g.mics {
		snap.Mics = append(snap.Mics, m.ToState())
	}
	return snap
}

func (g *Game) timeLeftLocked(now time.Time) int {
	switch g.phase {
	case PhasePlaying, PhaseGameOver:
		left := int(g.endAt.Sub(now).Round(time.Second) / time.Second)
		if left < 0 {
			left = 0
		}
		return left
	}
	return int(g.timeLimit / time.Second)
}

// update runs one world tick
func (g *Game) update() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	g.tick++

	switch g.phase {
	case PhaseLobby:
		if len(g.players) > 0 && g.allReadyLocked() {
			g.phase = PhaseCountdown
			g.countdownEnd = now.Add(CountdownDuration)
			g.lastCount = -1
		}
	case PhaseCountdown:
		g.tickCountdownLocked(now)
	case PhasePlaying:
		g.expirePendingLocked(now)
		if !now.Before(g.endAt) {
			g.finishLocked()
			return
		}
		if g.deck.Remaining() == 0 && len(g.pending) == 0 {
			g.finishLocked()
			return
		}
	case PhaseGameOver:
		return
	}

	if g.tick%BroadcastEvery == 0 {
		g.broadcastStateLocked(now)
	}
}

func (g *Game) allReadyLocked() bool {
	for _, p := range g.players {
		if !p.Ready {
			return false
		}
	}
	return true
}

func (g *Game) tickCountdownLocked(now time.Time) {
	if !now.Before(g.countdownEnd) {
		g.phase = PhasePlaying
		g.endAt = now.Add(g.timeLimit)
		for _, m := range g.mics {
			if m.State != MicRetired {
				m.Release(time.Time{})
			}
		}
		g.broadcastJSONLocked(protocol.Envelope{T: protocol.MsgGameStart})
		return
	}
	left := int(g.countdownEnd.Sub(now)/time.Second) + 1
	if left != g.lastCount {
		g.lastCount = left
		g.broadcastJSONLocked(protocol.Envelope{
			T:    protocol.MsgCountdown,
			Data: protocol.CountdownMsg{Seconds: left},
		})
	}
}

// finishLocked ends the match: pending claims are discarded without
// grading, final scores go out ranked, and the loop stops.
func (g *Game) finishLocked() {
	g.phase = PhaseGameOver
	g.pending = make(map[string]*pendingQuiz)

	g.broadcastStateLocked(time.Now())
	g.broadcastJSONLocked(protocol.Envelope{
		T:    protocol.MsgGameOver,
		Data: protocol.GameOverMsg{Scores: g.rankedScoresLocked()},
	})
	g.stopLocked()
}

func (g *Game) rankedScoresLocked() []protocol.FinalScore {
	scores := make([]protocol.FinalScore, 0, len(g.players))
	for _, p := range g.players {
		scores = append(scores, protocol.FinalScore{
			ID:     p.ID,
			Handle: p.Handle,
			Score:  p.Score,
		})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Handle < scores[j].Handle
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}
	return scores
}

// findFreeTileLocked picks a random tile with no obstacle, mic or player
func (g *Game) findFreeTileLocked() (int, int) {
	for i := 0; i < 1000; i++ {
		x := rand.Intn(GridWidth)
		y := rand.Intn(GridHeight)
		if g.tileFreeLocked(x, y) {
			return x, y
		}
	}
	// Dense worlds fall back to a scan
	for x := 0; x < GridWidth; x++ {
		for y := 0; y < GridHeight; y++ {
			if g.tileFreeLocked(x, y) {
				return x, y
			}
		}
	}
	return 0, 0
}

func (g *Game) tileFreeLocked(x, y int) bool {
	if g.obstacles[[2]int{x, y}] {
		return false
	}
	for _, m := range g.mics {
		if m.State != MicRetired && m.X == x && m.Y == y {
			return false
		}
	}
	for _, p := range g.players {
		if p.X == x && p.Y == y {
			return false
		}
	}
	return true
}

func (g *Game) spawnMicLocked() *Microphone {
	x, y := g.findFreeTileLocked()
	m := &Microphone{
		ID:    fmt.Sprintf("m%d", g.nextMic),
		X:     x,
		Y:     y,
		State: MicAvailable,
	}
	g.nextMic++
	g.mics[m.ID] = m
	return m
}

func (g *Game) broadcastLobbyLocked() {
	roster := make([]protocol.LobbyPlayer, 0, len(g.players))
	for _, p := range g.players {
		roster = append(roster, protocol.LobbyPlayer{ID: p.ID, Handle: p.Handle, Ready: p.Ready})
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].Handle < roster[j].Handle })
	g.broadcastJSONLocked(protocol.Envelope{
		T:    protocol.MsgLobbyState,
		Data: protocol.LobbyStateMsg{Players: roster},
	})
}

func (g *Game) broadcastStateLocked(now time.Time) {
	snap := g.snapshotLocked(now)
	data, err := protocol.EncodeSnapshot(&snap)
	if err != nil {
		return
	}
	for _, client := range g.clients {
		client.SendBinary(data)
	}
}

func (g *Game) broadcastJSONLocked(env protocol.Envelope) {
	for _, client := range g.clients {
		client.SendJSON(env)
	}
}

func (g *Game) sendToLocked(playerID string, env protocol.Envelope) {
	if client, ok := g.clients[playerID]; ok {
		client.SendJSON(env)
	}
}
