// Package protocol defines the wire messages exchanged between the
// quizgrid server and its clients. Control messages travel as JSON text
// frames wrapped in an Envelope; world snapshots travel as msgpack
// binary frames.
package protocol

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Client -> Server message types
const (
	MsgReady  = "ready"
	MsgMove   = "move"
	MsgClaim  = "claim"
	MsgAnswer = "answer"
	MsgLeave  = "leave"
)

// Server -> Client message types
const (
	MsgInit         = "init"
	MsgLobbyState   = "lobby_state"
	MsgState        = "state"
	MsgQuestion     = "question"
	MsgAnswerResult = "answer_result"
	MsgGameOver     = "game_over"
	MsgCountdown    = "countdown"
	MsgGameStart    = "game_start"
	MsgInfo         = "info"
	MsgError        = "error"
)

// Error codes carried by ErrorMsg
const (
	ErrCodeServerFull     = "server_full"
	ErrCodeGameInProgress = "game_in_progress"
)

// Movement directions
const (
	DirUp    = "up"
	DirDown  = "down"
	DirLeft  = "left"
	DirRight = "right"
)

// Answer result verdicts
const (
	VerdictCorrect  = "correct"
	VerdictWrong    = "incorrect"
	VerdictTimedOut = "timed_out"
)

// Envelope wraps all outgoing control messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages — json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// InitMsg is sent to a player right after the handshake
type InitMsg struct {
	PlayerID  string `json:"id"`
	Handle    string `json:"n"`
	GridW     int    `json:"w"`
	GridH     int    `json:"h"`
	TileSize  int    `json:"ts"`
	TimeLimit int    `json:"tl"` // seconds
}

// LobbyPlayer is one entry in the lobby roster
type LobbyPlayer struct {
	ID     string `json:"id"`
	Handle string `json:"n"`
	Ready  bool   `json:"r"`
}

// LobbyStateMsg is broadcast whenever lobby readiness changes
type LobbyStateMsg struct {
	Players []LobbyPlayer `json:"players"`
}

// ReadyMsg toggles the sender's ready flag
type ReadyMsg struct {
	Ready bool `json:"ready"`
}

// MoveMsg moves the sender one tile
type MoveMsg struct {
	Direction string `json:"dir"`
}

// ClaimMsg attempts to claim a microphone
type ClaimMsg struct {
	MicID string `json:"mic"`
}

// QuestionMsg delivers a quiz question to the claiming player only
type QuestionMsg struct {
	MicID      string   `json:"mic"`
	QuestionID string   `json:"qid"`
	Prompt     string   `json:"q"`
	Choices    []string `json:"opts"`
	Deadline   int      `json:"dl"` // seconds to answer
}

// AnswerMsg submits an answer to a pending question
type AnswerMsg struct {
	QuestionID string `json:"qid"`
	MicID      string `json:"mic"`
	Choice     int    `json:"i"`
}

// AnswerResultMsg reports how an answer was graded
type AnswerResultMsg struct {
	QuestionID string `json:"qid"`
	Verdict    string `json:"v"`
	Delta      int    `json:"d"` // score awarded (0 unless correct)
}

// FinalScore is one ranked entry in the game-over report
type FinalScore struct {
	Rank   int    `json:"rank"`
	ID     string `json:"id"`
	Handle string `json:"n"`
	Score  int    `json:"score"`
}

// GameOverMsg is broadcast once when the match ends
type GameOverMsg struct {
	Scores []FinalScore `json:"scores"`
}

// CountdownMsg announces seconds left before the match starts
type CountdownMsg struct {
	Seconds int `json:"t"`
}

// InfoMsg carries an advisory string for one client
type InfoMsg struct {
	Message string `json:"msg"`
}

// ErrorMsg sends an error to one client
type ErrorMsg struct {
	Code    string `json:"code"`
	Message string `json:"msg"`
}

// PlayerState is the per-player slice of a snapshot
type PlayerState struct {
	ID     string `json:"id"`
	Handle string `json:"n"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Score  int    `json:"sc"`
	Ready  bool   `json:"r"`
}

// MicState is the per-microphone slice of a snapshot
type MicState struct {
	ID     string `json:"id"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	State  string `json:"st"` // "available", "claimed", "retired"
	HeldBy string `json:"by,omitempty"`
}

// Snapshot is the full world state broadcast to every client
type Snapshot struct {
	Players  []PlayerState `json:"p"`
	Mics     []MicState    `json:"m"`
	TimeLeft int           `json:"tl"` // seconds, -1 before the match starts
	Phase    string        `json:"ph"`
	Tick     uint64        `json:"tick"`
}

// EncodeSnapshot marshals a snapshot for a binary frame
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	return msgpack.Marshal(s)
}

// DecodeSnapshot unmarshals a binary frame into a snapshot
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeEnvelope parses an incoming text frame. Malformed frames yield
// an error so the caller can drop them without closing the connection.
func DecodeEnvelope(raw []byte) (InEnvelope, error) {
	var env InEnvelope
	err := json.Unmarshal(raw, &env)
	return env, err
}
