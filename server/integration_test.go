package main

import (
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quizgrid/protocol"
)

// ---------- helpers ----------

// startTestServer spins up an httptest.Server hosting one match over
// the given deck and returns its WebSocket URL plus a cleanup func.
func startTestServer(t *testing.T, qs []*Question) (string, func()) {
	t.Helper()

	prevCountdown := CountdownDuration
	CountdownDuration = 200 * time.Millisecond

	game := NewGame(time.Minute, NewDeck(qs))
	go game.Run()

	hub := NewHub(game)
	go hub.Run()

	srv := httptest.NewServer(SetupRoutes(hub))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	return wsURL, func() {
		CountdownDuration = prevCountdown
		game.Stop()
		srv.Close()
	}
}

// dialWS opens a WebSocket connection, joining as the given handle.
func dialWS(t *testing.T, wsURL, name string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?name="+url.QueryEscape(name), nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	return conn
}

// testMsg is one frame read off the wire: either a JSON control
// message (t, d set) or a binary snapshot (snap set).
type testMsg struct {
	t    string
	d    json.RawMessage
	snap *protocol.Snapshot
}

func readMsg(t *testing.T, conn *websocket.Conn) testMsg {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read WS: %v", err)
	}
	if msgType == websocket.BinaryMessage {
		snap, err := protocol.DecodeSnapshot(raw)
		if err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		return testMsg{t: protocol.MsgState, snap: snap}
	}
	env, err := protocol.DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return testMsg{t: env.T, d: env.D}
}

// waitFor reads frames until one of the wanted type arrives, skipping
// snapshots and unrelated control messages.
func waitFor(t *testing.T, conn *websocket.Conn, typ string) testMsg {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		msg := readMsg(t, conn)
		if msg.t == typ {
			return msg
		}
	}
	t.Fatalf("no %q message arrived", typ)
	return testMsg{}
}

// waitForSnapshot reads frames until a snapshot satisfies pred.
func waitForSnapshot(t *testing.T, conn *websocket.Conn, pred func(*protocol.Snapshot) bool) *protocol.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		msg := readMsg(t, conn)
		if msg.snap != nil && pred(msg.snap) {
			return msg.snap
		}
	}
	t.Fatal("no matching snapshot arrived")
	return nil
}

func decodeInto(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
}

// sendMsg sends a typed control message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	raw, _ := json.Marshal(protocol.Envelope{T: msgType, Data: data})
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// join dials in and consumes the init message, returning the
// connection and the assigned player id.
func join(t *testing.T, wsURL, name string) (*websocket.Conn, string) {
	t.Helper()
	conn := dialWS(t, wsURL, name)
	msg := waitFor(t, conn, protocol.MsgInit)
	var init protocol.InitMsg
	decodeInto(t, msg.d, &init)
	return conn, init.PlayerID
}

// ---------- handshake ----------

func TestJoinHandshake(t *testing.T) {
	wsURL, cleanup := startTestServer(t, builtinQuestions)
	defer cleanup()

	conn := dialWS(t, wsURL, "alice")
	defer conn.Close()

	msg := waitFor(t, conn, protocol.MsgInit)
	var init protocol.InitMsg
	decodeInto(t, msg.d, &init)

	if init.PlayerID == "" {
		t.Error("init missing player id")
	}
	if init.Handle != "alice" {
		t.Errorf("expected handle alice, got %q", init.Handle)
	}
	if init.GridW != GridWidth || init.GridH != GridHeight {
		t.Errorf("bad grid dimensions: %dx%d", init.GridW, init.GridH)
	}
	if init.TimeLimit != 60 {
		t.Errorf("expected 60s time limit, got %d", init.TimeLimit)
	}

	lobby := waitFor(t, conn, protocol.MsgLobbyState)
	var ls protocol.LobbyStateMsg
	decodeInto(t, lobby.d, &ls)
	if len(ls.Players) != 1 || ls.Players[0].Ready {
		t.Errorf("bad lobby roster: %+v", ls.Players)
	}
}

// ---------- admission control ----------

func TestServerFullRejection(t *testing.T) {
	wsURL, cleanup := startTestServer(t, builtinQuestions)
	defer cleanup()

	conns := make([]*websocket.Conn, 0, maxPlayers)
	for i := 0; i < maxPlayers; i++ {
		conn, _ := join(t, wsURL, "")
		conns = append(conns, conn)
	}
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	extra := dialWS(t, wsURL, "late")
	defer extra.Close()
	msg := waitFor(t, extra, protocol.MsgError)
	var em protocol.ErrorMsg
	decodeInto(t, msg.d, &em)
	if em.Code != protocol.ErrCodeServerFull {
		t.Errorf("expected %s, got %s", protocol.ErrCodeServerFull, em.Code)
	}
}

func TestMidMatchJoinRejection(t *testing.T) {
	wsURL, cleanup := startTestServer(t, builtinQuestions)
	defer cleanup()

	conn, _ := join(t, wsURL, "first")
	defer conn.Close()

	sendMsg(t, conn, protocol.MsgReady, protocol.ReadyMsg{Ready: true})
	waitFor(t, conn, protocol.MsgGameStart)

	late := dialWS(t, wsURL, "late")
	defer late.Close()
	msg := waitFor(t, late, protocol.MsgError)
	var em protocol.ErrorMsg
	decodeInto(t, msg.d, &em)
	if em.Code != protocol.ErrCodeGameInProgress {
		t.Errorf("expected %s, got %s", protocol.ErrCodeGameInProgress, em.Code)
	}
}

// ---------- full match flow ----------

func TestMatchFlow(t *testing.T) {
	// One question: answering it correctly exhausts the deck and ends
	// the match.
	deck := []*Question{
		{ID: "q1", Prompt: "only?", Choices: []string{"yes", "no"}, Correct: 1},
	}
	wsURL, cleanup := startTestServer(t, deck)
	defer cleanup()

	conn, playerID := join(t, wsURL, "solo")
	defer conn.Close()

	sendMsg(t, conn, protocol.MsgReady, protocol.ReadyMsg{Ready: true})
	waitFor(t, conn, protocol.MsgCountdown)
	waitFor(t, conn, protocol.MsgGameStart)

	// First corner spawn is (0,2); m1 sits at (10,5)
	for i := 0; i < 10; i++ {
		sendMsg(t, conn, protocol.MsgMove, protocol.MoveMsg{Direction: protocol.DirRight})
	}
	for i := 0; i < 3; i++ {
		sendMsg(t, conn, protocol.MsgMove, protocol.MoveMsg{Direction: protocol.DirDown})
	}
	waitForSnapshot(t, conn, func(s *protocol.Snapshot) bool {
		for _, p := range s.Players {
			if p.ID == playerID {
				return p.X == 10 && p.Y == 5
			}
		}
		return false
	})

	sendMsg(t, conn, protocol.MsgClaim, protocol.ClaimMsg{MicID: "m1"})
	qmsg := waitFor(t, conn, protocol.MsgQuestion)
	var q protocol.QuestionMsg
	decodeInto(t, qmsg.d, &q)
	if q.MicID != "m1" || q.Prompt != "only?" {
		t.Fatalf("bad question: %+v", q)
	}

	sendMsg(t, conn, protocol.MsgAnswer, protocol.AnswerMsg{
		QuestionID: q.QuestionID,
		MicID:      "m1",
		Choice:     1,
	})
	rmsg := waitFor(t, conn, protocol.MsgAnswerResult)
	var res protocol.AnswerResultMsg
	decodeInto(t, rmsg.d, &res)
	if res.Verdict != protocol.VerdictCorrect || res.Delta != ScorePerCorrect {
		t.Fatalf("bad answer result: %+v", res)
	}

	// Deck is now empty with no claims pending: the match ends
	over := waitFor(t, conn, protocol.MsgGameOver)
	var gom protocol.GameOverMsg
	decodeInto(t, over.d, &gom)
	if len(gom.Scores) != 1 {
		t.Fatalf("expected 1 final score, got %d", len(gom.Scores))
	}
	if gom.Scores[0].Rank != 1 || gom.Scores[0].Score != ScorePerCorrect {
		t.Errorf("bad final score: %+v", gom.Scores[0])
	}
}

// ---------- claim contention over the wire ----------

func TestClaimContentionOneWinner(t *testing.T) {
	wsURL, cleanup := startTestServer(t, builtinQuestions)
	defer cleanup()

	c1, p1 := join(t, wsURL, "a")
	defer c1.Close()
	c2, p2 := join(t, wsURL, "b")
	defer c2.Close()

	sendMsg(t, c1, protocol.MsgReady, protocol.ReadyMsg{Ready: true})
	sendMsg(t, c2, protocol.MsgReady, protocol.ReadyMsg{Ready: true})
	waitFor(t, c1, protocol.MsgGameStart)
	waitFor(t, c2, protocol.MsgGameStart)

	// Both walk to m1 at (10,5): p1 from (0,2), p2 from (49,2)
	for i := 0; i < 10; i++ {
		sendMsg(t, c1, protocol.MsgMove, protocol.MoveMsg{Direction: protocol.DirRight})
	}
	for i := 0; i < 39; i++ {
		sendMsg(t, c2, protocol.MsgMove, protocol.MoveMsg{Direction: protocol.DirLeft})
	}
	for i := 0; i < 3; i++ {
		sendMsg(t, c1, protocol.MsgMove, protocol.MoveMsg{Direction: protocol.DirDown})
		sendMsg(t, c2, protocol.MsgMove, protocol.MoveMsg{Direction: protocol.DirDown})
	}
	waitForSnapshot(t, c1, func(s *protocol.Snapshot) bool {
		onMic := 0
		for _, p := range s.Players {
			if (p.ID == p1 || p.ID == p2) && p.X == 10 && p.Y == 5 {
				onMic++
			}
		}
		return onMic == 2
	})

	sendMsg(t, c1, protocol.MsgClaim, protocol.ClaimMsg{MicID: "m1"})
	sendMsg(t, c2, protocol.MsgClaim, protocol.ClaimMsg{MicID: "m1"})

	// Exactly one question goes out; the loser gets an advisory instead
	questions, infos := 0, 0
	for _, conn := range []*websocket.Conn{c1, c2} {
		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			msg := readMsg(t, conn)
			if msg.t == protocol.MsgQuestion {
				questions++
				break
			}
			if msg.t == protocol.MsgInfo {
				infos++
				break
			}
		}
	}
	if questions != 1 || infos != 1 {
		t.Errorf("expected 1 winner and 1 advisory, got %d questions, %d infos", questions, infos)
	}
}

// ---------- disconnect frees a lobby slot ----------

func TestDisconnectFreesLobbySlot(t *testing.T) {
	wsURL, cleanup := startTestServer(t, builtinQuestions)
	defer cleanup()

	conns := make([]*websocket.Conn, 0, maxPlayers)
	for i := 0; i < maxPlayers; i++ {
		conn, _ := join(t, wsURL, "")
		conns = append(conns, conn)
	}
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	conns[0].Close()

	// The hub processes the unregister asynchronously; retry until the
	// freed slot is visible.
	deadline := time.Now().Add(3 * time.Second)
	for {
		conn := dialWS(t, wsURL, "replacement")
		msg := readMsg(t, conn)
		if msg.t == protocol.MsgInit {
			conn.Close()
			return
		}
		conn.Close()
		if !time.Now().Before(deadline) {
			t.Fatal("slot never freed after disconnect")
		}
		time.Sleep(50 * time.Millisecond)
	}
}
