package main

import (
	"quizgrid/protocol"
)

// World grid dimensions, in tiles
const (
	GridWidth  = 50
	GridHeight = 40
	TileSize   = 20
)

const maxPlayers = 4

// spawnCorners are the fixed spawn tiles, assigned in join order
var spawnCorners = [maxPlayers][2]int{
	{0, 2},
	{GridWidth - 1, 2},
	{0, GridHeight - 1},
	{GridWidth - 1, GridHeight - 1},
}

// Player represents one connected player in the world
type Player struct {
	ID     string
	Handle string
	X, Y   int
	Score  int
	Ready  bool
}

// NewPlayer creates a player at the spawn corner for the given join index
func NewPlayer(id, handle string, joinIndex int) *Player {
	corner := spawnCorners[joinIndex%maxPlayers]
	return &Player{
		ID:     id,
		Handle: handle,
		X:      corner[0],
		Y:      corner[1],
	}
}

// stepped returns the tile one move in dir from (x, y). Unknown
// directions return the input unchanged.
func stepped(x, y int, dir string) (int, int) {
	switch dir {
	case protocol.DirUp:
		return x, y - 1
	case protocol.DirDown:
		return x, y + 1
	case protocol.DirLeft:
		return x - 1, y
	case protocol.DirRight:
		return x + 1, y
	}
	return x, y
}

// inBounds reports whether (x, y) is a valid world tile
func inBounds(x, y int) bool {
	return x >= 0 && x < GridWidth && y >= 0 && y < GridHeight
}

// ToState converts to protocol state
func (p *Player) ToState() protocol.PlayerState {
	return protocol.PlayerState{
		ID:     p.ID,
		Handle: p.Handle,
		X:      p.X,
		Y:      p.Y,
		Score:  p.Score,
		Ready:  p.Ready,
	}
}
