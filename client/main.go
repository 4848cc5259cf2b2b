// Command client is a terminal client for a quizgrid server. It prints
// world snapshots and quiz prompts and reads one-line commands from
// stdin:
//
//	r            toggle ready
//	w/a/s/d      move
//	c <mic>      claim a microphone (e.g. "c m1")
//	1..9         answer the pending question
//	q            quit
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"quizgrid/protocol"
)

type pendingQuestion struct {
	micID      string
	questionID string
}

type session struct {
	conn *websocket.Conn

	mu       sync.Mutex
	playerID string
	ready    bool
	pending  *pendingQuestion
}

func main() {
	host := flag.String("host", "localhost", "server host")
	port := flag.Int("port", 8080, "server port")
	name := flag.String("name", "", "display name")
	flag.Parse()

	u := url.URL{
		Scheme:   "ws",
		Host:     net.JoinHostPort(*host, strconv.Itoa(*port)),
		Path:     "/ws",
		RawQuery: url.Values{"name": []string{*name}}.Encode(),
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("connect to %s: %v", u.Host, err)
	}
	defer conn.Close()

	s := &session{conn: conn}
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readLoop()
	}()
	go s.inputLoop()

	<-done
}

func (s *session) readLoop() {
	for {
		msgType, raw, err := s.conn.ReadMessage()
		if err != nil {
			fmt.Println("disconnected from server")
			return
		}
		if msgType == websocket.BinaryMessage {
			snap, err := protocol.DecodeSnapshot(raw)
			if err != nil {
				continue
			}
			s.printSnapshot(snap)
			continue
		}
		env, err := protocol.DecodeEnvelope(raw)
		if err != nil {
			continue
		}
		if !s.handleEnvelope(env) {
			return
		}
	}
}

// handleEnvelope processes one control message; returns false on game over
func (s *session) handleEnvelope(env protocol.InEnvelope) bool {
	switch env.T {
	case protocol.MsgInit:
		var msg protocol.InitMsg
		if json.Unmarshal(env.D, &msg) != nil {
			return true
		}
		s.mu.Lock()
		s.playerID = msg.PlayerID
		s.mu.Unlock()
		fmt.Printf("joined as %s (%s), grid %dx%d, %ds match\n",
			msg.Handle, msg.PlayerID, msg.GridW, msg.GridH, msg.TimeLimit)
		fmt.Println("press r when you are ready")

	case protocol.MsgLobbyState:
		var msg protocol.LobbyStateMsg
		if json.Unmarshal(env.D, &msg) != nil {
			return true
		}
		fmt.Println("lobby:")
		for _, p := range msg.Players {
			mark := " "
			if p.Ready {
				mark = "*"
			}
			fmt.Printf("  [%s] %s\n", mark, p.Handle)
		}

	case protocol.MsgCountdown:
		var msg protocol.CountdownMsg
		if json.Unmarshal(env.D, &msg) != nil {
			return true
		}
		fmt.Printf("starting in %d...\n", msg.Seconds)

	case protocol.MsgGameStart:
		fmt.Println("go! move with w/a/s/d, claim mics with c <id>")

	case protocol.MsgQuestion:
		var msg protocol.QuestionMsg
		if json.Unmarshal(env.D, &msg) != nil {
			return true
		}
		s.mu.Lock()
		s.pending = &pendingQuestion{micID: msg.MicID, questionID: msg.QuestionID}
		s.mu.Unlock()
		fmt.Printf("QUESTION (%ds): %s\n", msg.Deadline, msg.Prompt)
		for i, choice := range msg.Choices {
			fmt.Printf("  %d) %s\n", i+1, choice)
		}

	case protocol.MsgAnswerResult:
		var msg protocol.AnswerResultMsg
		if json.Unmarshal(env.D, &msg) != nil {
			return true
		}
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
		switch msg.Verdict {
		case protocol.VerdictCorrect:
			fmt.Printf("correct! +%d\n", msg.Delta)
		case protocol.VerdictTimedOut:
			fmt.Println("too slow, the microphone is back up for grabs")
		default:
			fmt.Println("wrong answer")
		}

	case protocol.MsgInfo:
		var msg protocol.InfoMsg
		if json.Unmarshal(env.D, &msg) != nil {
			return true
		}
		fmt.Printf("[info] %s\n", msg.Message)

	case protocol.MsgError:
		var msg protocol.ErrorMsg
		if json.Unmarshal(env.D, &msg) != nil {
			return true
		}
		fmt.Printf("rejected: %s\n", msg.Message)
		return false

	case protocol.MsgGameOver:
		var msg protocol.GameOverMsg
		if json.Unmarshal(env.D, &msg) != nil {
			return true
		}
		fmt.Println("game over, final scores:")
		for _, fs := range msg.Scores {
			fmt.Printf("  %d. %s — %d\n", fs.Rank, fs.Handle, fs.Score)
		}
		return false
	}
	return true
}

func (s *session) printSnapshot(snap *protocol.Snapshot) {
	s.mu.Lock()
	me := s.playerID
	inQuestion := s.pending != nil
	s.mu.Unlock()
	if inQuestion || snap.Phase != "playing" {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s %3ds]", snap.Phase, snap.TimeLeft)
	for _, p := range snap.Players {
		marker := ""
		if p.ID == me {
			marker = "*"
		}
		fmt.Fprintf(&b, " %s%s(%d,%d)=%d", marker, p.Handle, p.X, p.Y, p.Score)
	}
	for _, m := range snap.Mics {
		if m.State == "available" {
			fmt.Fprintf(&b, " %s@(%d,%d)", m.ID, m.X, m.Y)
		}
	}
	fmt.Println(b.String())
}

func (s *session) inputLoop() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case line == "q":
			s.sendEnvelope(protocol.MsgLeave, nil)
			s.conn.Close()
			return
		case line == "r":
			s.mu.Lock()
			s.ready = !s.ready
			ready := s.ready
			s.mu.Unlock()
			s.sendEnvelope(protocol.MsgReady, protocol.ReadyMsg{Ready: ready})
		case line == "w":
			s.sendEnvelope(protocol.MsgMove, protocol.MoveMsg{Direction: protocol.DirUp})
		case line == "s":
			s.sendEnvelope(protocol.MsgMove, protocol.MoveMsg{Direction: protocol.DirDown})
		case line == "a":
			s.sendEnvelope(protocol.MsgMove, protocol.MoveMsg{Direction: protocol.DirLeft})
		case line == "d":
			s.sendEnvelope(protocol.MsgMove, protocol.MoveMsg{Direction: protocol.DirRight})
		case strings.HasPrefix(line, "c "):
			s.sendEnvelope(protocol.MsgClaim, protocol.ClaimMsg{MicID: strings.TrimSpace(line[2:])})
		default:
			if n, err := strconv.Atoi(line); err == nil {
				s.answer(n - 1)
			} else {
				fmt.Println("commands: r, w/a/s/d, c <mic>, 1..9, q")
			}
		}
	}
}

func (s *session) answer(choice int) {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	if pending == nil {
		fmt.Println("no question pending")
		return
	}
	s.sendEnvelope(protocol.MsgAnswer, protocol.AnswerMsg{
		QuestionID: pending.questionID,
		MicID:      pending.micID,
		Choice:     choice,
	})
}

func (s *session) sendEnvelope(t string, data interface{}) {
	raw, err := json.Marshal(protocol.Envelope{T: t, Data: data})
	if err != nil {
		return
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		fmt.Println("send failed:", err)
	}
}
