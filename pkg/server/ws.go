package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"liaptui/pkg/game"
	"liaptui/pkg/statemachine"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer bounds a connected client's outbound queue; a client that
	// cannot drain it is dropped rather than stalling the room.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsClient is one live websocket connection bound to a player. The write
// pump is the single writer on the connection; everything outbound goes
// through the send channel.
type wsClient struct {
	srv    *Server
	conn   *websocket.Conn
	player string
	room   string

	send      chan wireFrame
	closeOnce sync.Once
	done      chan struct{}
}

// ServeWS upgrades the connection and runs the client until it drops. The
// player name comes from the query string; room membership is established
// by create_room or join_room frames.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	player := r.URL.Query().Get("player")
	if player == "" {
		http.Error(w, "missing player", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("websocket upgrade failed: %v", err)
		return
	}

	c := &wsClient{
		srv:    s,
		conn:   conn,
		player: player,
		send:   make(chan wireFrame, sendBuffer),
		done:   make(chan struct{}),
	}
	s.log.Infof("client %s connected", player)

	go c.writePump()
	c.readPump()
}

// trySend enqueues a frame without blocking. A full queue closes the
// client; its broadcasts queue server-side until it reconnects.
func (c *wsClient) trySend(frame wireFrame) {
	select {
	case c.send <- frame:
	case <-c.done:
	default:
		c.srv.log.Warnf("client %s send queue full, dropping connection", c.player)
		c.close()
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *wsClient) readPump() {
	defer c.cleanup()
	c.conn.SetReadLimit(64 << 10)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.srv.log.Debugf("client %s read error: %v", c.player, err)
			}
			return
		}
		c.handleFrame(frame.Type, frame.Payload)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// cleanup runs when the read pump exits: the seat is handed to a bot
// mid-game, or freed before start. A superseded connection skips the
// disconnect entirely; its replacement holds the seat now.
func (c *wsClient) cleanup() {
	c.close()
	wasLive := c.srv.detachClient(c)
	if c.room == "" || !wasLive {
		return
	}
	room, err := c.srv.Room(c.room)
	if err != nil {
		return
	}
	room.PlayerDisconnected(c.player)
	c.srv.removeRoomIfEmpty(room)
	c.srv.log.Infof("client %s disconnected from room %s", c.player, c.room)
}

func (c *wsClient) reply(payload map[string]any) {
	c.trySend(wireFrame{Type: "result", Payload: payload})
}

func (c *wsClient) replyError(err error) {
	c.trySend(wireFrame{Type: "error", Payload: map[string]any{"error": err.Error()}})
}

// handleFrame routes one inbound command.
func (c *wsClient) handleFrame(frameType string, payload json.RawMessage) {
	switch frameType {
	case "create_room":
		c.handleCreateRoom()
	case "list_rooms":
		c.handleListRooms()
	case "join_room":
		c.handleJoinRoom(payload)
	case "add_bot":
		c.handleAddBot(payload)
	case "start_game":
		c.handleStartGame()
	case "leave_room":
		c.handleLeaveRoom()
	case "action":
		c.handleAction(payload)
	case "snapshot":
		c.handleSnapshot()
	default:
		c.replyError(fmt.Errorf("unknown frame type %q", frameType))
	}
}

func (c *wsClient) handleCreateRoom() {
	if c.room != "" {
		c.replyError(fmt.Errorf("already in room %s", c.room))
		return
	}
	room := c.srv.CreateRoom(c.player)
	c.room = room.ID
	c.srv.attachClient(c)
	c.reply(map[string]any{"room_id": room.ID, "host": c.player})
}

func (c *wsClient) handleListRooms() {
	rooms := c.srv.Rooms()
	out := make([]map[string]any, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Summary())
	}
	c.reply(map[string]any{"rooms": out})
}

func (c *wsClient) handleJoinRoom(payload json.RawMessage) {
	var req struct {
		RoomID string `json:"room_id"`
		Seat   *int   `json:"seat"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		c.replyError(fmt.Errorf("bad join_room payload: %v", err))
		return
	}
	room, err := c.srv.Room(req.RoomID)
	if err != nil {
		c.replyError(err)
		return
	}

	// A player rejoining a started room is a reconnect: restore control,
	// flush queued broadcasts, then deliver the private snapshot.
	if room.Started() && room.HasPlayer(c.player) {
		c.room = room.ID
		c.srv.attachClient(c)
		res, err := room.PlayerReconnected(c.player)
		if err != nil {
			c.replyError(err)
			return
		}
		c.reply(map[string]any{"room_id": room.ID, "reconnected": true, "result": res})
		return
	}

	seat := -1
	if req.Seat != nil {
		seat = *req.Seat
	}
	if err := room.Join(c.player, seat); err != nil {
		c.replyError(err)
		return
	}
	c.room = room.ID
	c.srv.attachClient(c)
	c.reply(map[string]any{"room_id": room.ID, "host": room.Host()})
}

func (c *wsClient) handleAddBot(payload json.RawMessage) {
	room, err := c.currentRoom()
	if err != nil {
		c.replyError(err)
		return
	}
	var req struct {
		Seat *int `json:"seat"`
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			c.replyError(fmt.Errorf("bad add_bot payload: %v", err))
			return
		}
	}
	seat := -1
	if req.Seat != nil {
		seat = *req.Seat
	}
	name, err := room.AddBot(c.player, seat)
	if err != nil {
		c.replyError(err)
		return
	}
	c.reply(map[string]any{"bot": name})
}

func (c *wsClient) handleStartGame() {
	room, err := c.currentRoom()
	if err != nil {
		c.replyError(err)
		return
	}
	if err := room.Start(c.player); err != nil {
		c.replyError(err)
		return
	}
	c.reply(map[string]any{"started": true})
}

func (c *wsClient) handleLeaveRoom() {
	room, err := c.currentRoom()
	if err != nil {
		c.replyError(err)
		return
	}
	if err := room.Leave(c.player); err != nil {
		c.replyError(err)
		return
	}
	c.srv.detachClient(c)
	c.room = ""
	c.srv.removeRoomIfEmpty(room)
	c.reply(map[string]any{"left": true})
}

func (c *wsClient) handleAction(payload json.RawMessage) {
	room, err := c.currentRoom()
	if err != nil {
		c.replyError(err)
		return
	}
	action, err := parseAction(c.player, payload)
	if err != nil {
		c.replyError(err)
		return
	}
	res, err := room.HandleAction(action)
	if err != nil {
		c.replyError(err)
		return
	}
	c.reply(map[string]any{
		"success": res.Success,
		"error":   res.Error,
		"data":    res.Data,
	})
}

func (c *wsClient) handleSnapshot() {
	room, err := c.currentRoom()
	if err != nil {
		c.replyError(err)
		return
	}
	machine := room.Machine()
	if machine == nil {
		c.replyError(ErrRoomNotStarted)
		return
	}
	c.reply(map[string]any{"snapshot": machine.Snapshot()})
}

func (c *wsClient) currentRoom() (*Room, error) {
	if c.room == "" {
		return nil, fmt.Errorf("not in a room")
	}
	return c.srv.Room(c.room)
}

// parseAction decodes a wire action into a machine action. Connection
// lifecycle and timer action types are internal and rejected from the
// wire.
func parseAction(player string, payload json.RawMessage) (statemachine.Action, error) {
	var req struct {
		Type   string `json:"type"`
		Value  int    `json:"value"`
		Accept bool   `json:"accept"`
		Pieces []struct {
			Name  string `json:"name"`
			Color string `json:"color"`
		} `json:"pieces"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return statemachine.Action{}, fmt.Errorf("bad action payload: %v", err)
	}

	typ := statemachine.ActionType(req.Type)
	switch typ {
	case statemachine.ActionDeclare, statemachine.ActionPlayPieces,
		statemachine.ActionRedealRequest, statemachine.ActionRedealResponse,
		statemachine.ActionAdvance, statemachine.ActionNavigateToLobby:
	default:
		return statemachine.Action{}, fmt.Errorf("action type %q not accepted from clients", req.Type)
	}

	a := statemachine.NewAction(player, typ)
	a.Value = req.Value
	a.Accept = req.Accept
	for _, p := range req.Pieces {
		name, err := game.ParsePieceName(p.Name)
		if err != nil {
			return statemachine.Action{}, err
		}
		color, err := game.ParseColor(p.Color)
		if err != nil {
			return statemachine.Action{}, err
		}
		a.Pieces = append(a.Pieces, game.Piece{Name: name, Color: color})
	}
	return a, nil
}
