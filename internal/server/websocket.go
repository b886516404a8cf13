// Package server exposes the battle engine over a WebSocket gateway.
// Clients exchange small JSON frames: commands in, battle snapshots out.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/evoframe/battle-server-go/internal/battle"
	"github.com/evoframe/battle-server-go/internal/battle/entity"
	"github.com/evoframe/battle-server-go/internal/config"
)

// Frame is the wire envelope in both directions. Data carries the
// command payload (requests) or the battle snapshot (responses).
type Frame struct {
	Type     string          `json:"type"`
	BattleID string          `json:"battle_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Client command payloads.
type addCharacterRequest struct {
	Name string `json:"name"`
	Team int    `json:"team"`
}

type attackRequest struct {
	AttackerID string `json:"attacker_id"`
	TargetID   string `json:"target_id"`
	Value      int    `json:"value"`
}

type healRequest struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Value    int    `json:"value"`
}

// Client is one WebSocket connection. Writes go through the buffered send
// channel so a slow reader never blocks a broadcast.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	battleID uuid.UUID
}

// Gateway accepts WebSocket connections and routes battle commands to the
// engine. The gateway mutex serializes all engine access, which upholds the
// battles' single-threaded discipline.
type Gateway struct {
	logger *zap.Logger
	engine *battle.Engine

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*Client]bool
}

// NewGateway creates a gateway in front of the engine. logger may be nil.
func NewGateway(engine *battle.Engine, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		logger: logger,
		engine: engine,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*Client]bool),
	}
}

// ServeHTTP upgrades the connection and starts the client's pumps.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
	}
	g.mu.Lock()
	g.clients[client] = true
	g.mu.Unlock()
	g.logger.Debug("client connected", zap.String("remote", conn.RemoteAddr().String()))

	go client.writePump()
	go g.readPump(client)
}

func (g *Gateway) readPump(c *Client) {
	defer func() {
		g.mu.Lock()
		delete(g.clients, c)
		g.mu.Unlock()
		close(c.send)
		c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.sendError(fmt.Sprintf("malformed frame: %v", err))
			continue
		}
		g.handle(c, frame)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *Client) sendFrame(f Frame) {
	raw, err := json.Marshal(f)
	if err != nil {
		return
	}
	select {
	case c.send <- raw:
	default:
	}
}

func (c *Client) sendError(msg string) {
	c.sendFrame(Frame{Type: "error", Error: msg})
}

func (g *Gateway) handle(c *Client, frame Frame) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch frame.Type {
	case "create_battle":
		b := g.engine.CreateBattle()
		c.battleID = b.ID()
		c.sendFrame(g.snapshotFrame(b))

	case "join_battle":
		b, err := g.battleFor(frame)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		c.battleID = b.ID()
		c.sendFrame(g.snapshotFrame(b))

	case "add_character":
		b, err := g.clientBattle(c)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		var req addCharacterRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			c.sendError(fmt.Sprintf("bad add_character payload: %v", err))
			return
		}
		if req.Name == "" {
			c.sendError("character name must not be empty")
			return
		}
		if err := b.AddCharacter(entity.NewDefaultCharacter(req.Name, req.Team)); err != nil {
			c.sendError(err.Error())
			return
		}
		g.broadcastBattle(b)

	case "attack":
		b, err := g.clientBattle(c)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		var req attackRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			c.sendError(fmt.Sprintf("bad attack payload: %v", err))
			return
		}
		if err := b.SubmitAttack(req.AttackerID, req.TargetID, req.Value); err != nil {
			c.sendError(err.Error())
		}
		// HP may have settled even when the drain errored
		g.broadcastBattle(b)

	case "heal":
		b, err := g.clientBattle(c)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		var req healRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			c.sendError(fmt.Sprintf("bad heal payload: %v", err))
			return
		}
		if err := b.SubmitHeal(req.SourceID, req.TargetID, req.Value); err != nil {
			c.sendError(err.Error())
		}
		g.broadcastBattle(b)

	case "state":
		b, err := g.clientBattle(c)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		c.sendFrame(g.snapshotFrame(b))

	case "end_battle":
		b, err := g.clientBattle(c)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		if err := g.engine.EndBattle(b.ID()); err != nil {
			c.sendError(err.Error())
			return
		}
		c.battleID = uuid.Nil

	default:
		c.sendError(fmt.Sprintf("unknown frame type %q", frame.Type))
	}
}

func (g *Gateway) battleFor(frame Frame) (*battle.Battle, error) {
	id, err := uuid.Parse(frame.BattleID)
	if err != nil {
		return nil, fmt.Errorf("bad battle id %q", frame.BattleID)
	}
	return g.engine.GetBattle(id)
}

func (g *Gateway) clientBattle(c *Client) (*battle.Battle, error) {
	if c.battleID == uuid.Nil {
		return nil, fmt.Errorf("not in a battle; create_battle or join_battle first")
	}
	return g.engine.GetBattle(c.battleID)
}

// broadcastBattle pushes the battle snapshot to every client in it.
// Callers hold the gateway mutex.
func (g *Gateway) broadcastBattle(b *battle.Battle) {
	raw, err := json.Marshal(g.snapshotFrame(b))
	if err != nil {
		g.logger.Error("marshal battle frame failed",
			zap.String("battle_id", b.ID().String()), zap.Error(err))
		return
	}
	for client := range g.clients {
		if client.battleID != b.ID() {
			continue
		}
		select {
		case client.send <- raw:
		default:
		}
	}
}

func (g *Gateway) snapshotFrame(b *battle.Battle) Frame {
	snap := b.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		g.logger.Error("marshal battle snapshot failed",
			zap.String("battle_id", snap.BattleID), zap.Error(err))
	}
	return Frame{
		Type:     "battle_state",
		BattleID: snap.BattleID,
		Data:     data,
	}
}

// NewHTTPServer wires the gateway into an http.Server at the configured
// address and path. The caller owns startup and shutdown.
func NewHTTPServer(cfg config.WebSocketConfig, gw *Gateway) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, gw)
	return &http.Server{
		Addr:    cfg.Address,
		Handler: mux,
	}
}
