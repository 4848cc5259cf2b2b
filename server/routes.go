package main

import (
	"errors"
	"log"
	"net"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"quizgrid/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade error: %v", err)
			return
		}

		// Handshake: admit the player before the pumps start. Capacity
		// is enforced here, not at accept, so a rejected client still
		// learns why it was turned away.
		player, err := hub.game.AddPlayer(r.URL.Query().Get("name"))
		if err != nil {
			conn.WriteJSON(protocol.Envelope{T: protocol.MsgError, Data: rejectionMsg(err)})
			conn.Close()
			return
		}

		hub.TrackConnect(ip)

		client := NewClient(hub, conn, ip)
		client.playerID = player.ID
		hub.register <- client
		hub.game.SetClient(player.ID, client)

		client.SendJSON(protocol.Envelope{T: protocol.MsgInit, Data: protocol.InitMsg{
			PlayerID:  player.ID,
			Handle:    player.Handle,
			GridW:     GridWidth,
			GridH:     GridHeight,
			TileSize:  TileSize,
			TimeLimit: int(hub.game.timeLimit.Seconds()),
		}})

		go client.WritePump()
		go client.ReadPump()

		hub.game.AnnounceLobby()
		log.Printf("player %s (%s) connected from %s", player.Handle, player.ID, ip)
	})

	return mux
}

func rejectionMsg(err error) protocol.ErrorMsg {
	switch {
	case errors.Is(err, ErrServerFull):
		return protocol.ErrorMsg{Code: protocol.ErrCodeServerFull, Message: "server full"}
	case errors.Is(err, ErrGameInProgress):
		return protocol.ErrorMsg{Code: protocol.ErrCodeGameInProgress, Message: "match already in progress"}
	}
	return protocol.ErrorMsg{Code: "rejected", Message: err.Error()}
}
