package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/evoframe/battle-server-go/internal/battle"
	"github.com/evoframe/battle-server-go/internal/config"
)

func dialGateway(t *testing.T) (*websocket.Conn, *battle.Engine) {
	t.Helper()
	engine := battle.NewEngine(nil, battle.WithSeed(7))
	gw := NewGateway(engine, nil)
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, engine
}

func sendFrame(t *testing.T, conn *websocket.Conn, f Frame) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(f))
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func readSnapshot(t *testing.T, conn *websocket.Conn) battle.Snapshot {
	t.Helper()
	f := readFrame(t, conn)
	require.Equal(t, "battle_state", f.Type, "unexpected frame: %+v", f)
	var snap battle.Snapshot
	require.NoError(t, json.Unmarshal(f.Data, &snap))
	return snap
}

func mustRaw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestCreateBattleAndFight(t *testing.T) {
	conn, engine := dialGateway(t)

	sendFrame(t, conn, Frame{Type: "create_battle"})
	snap := readSnapshot(t, conn)
	assert.NotEmpty(t, snap.BattleID)
	assert.Equal(t, 1, engine.BattleCount())

	sendFrame(t, conn, Frame{Type: "add_character",
		Data: mustRaw(t, addCharacterRequest{Name: "hero", Team: 0})})
	snap = readSnapshot(t, conn)
	require.Len(t, snap.Characters, 1)

	sendFrame(t, conn, Frame{Type: "add_character",
		Data: mustRaw(t, addCharacterRequest{Name: "ogre", Team: 1})})
	snap = readSnapshot(t, conn)
	require.Len(t, snap.Characters, 2)
	hero, ogre := snap.Characters[0], snap.Characters[1]

	sendFrame(t, conn, Frame{Type: "attack",
		Data: mustRaw(t, attackRequest{AttackerID: hero.EntityID, TargetID: ogre.EntityID, Value: 23})})
	snap = readSnapshot(t, conn)

	// 13 damage unless the roll critted or the ogre dodged
	assert.Equal(t, 100, snap.Characters[0].HP)
	assert.GreaterOrEqual(t, snap.Characters[1].HP, 74)
	assert.NotEmpty(t, snap.Log)
	assert.Equal(t, "ATTACK", snap.Log[0].Type)
}

func TestJoinBattleSeesBroadcasts(t *testing.T) {
	engine := battle.NewEngine(nil, battle.WithSeed(7))
	gw := NewGateway(engine, nil)
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { first.Close() })
	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	sendFrame(t, first, Frame{Type: "create_battle"})
	snap := readSnapshot(t, first)

	sendFrame(t, second, Frame{Type: "join_battle", BattleID: snap.BattleID})
	readSnapshot(t, second)

	// a change made by the first client reaches the second
	sendFrame(t, first, Frame{Type: "add_character",
		Data: mustRaw(t, addCharacterRequest{Name: "hero", Team: 0})})
	readSnapshot(t, first)
	snap = readSnapshot(t, second)
	require.Len(t, snap.Characters, 1)
	assert.Equal(t, "hero", snap.Characters[0].Name)
}

func TestCommandsOutsideBattleFail(t *testing.T) {
	conn, _ := dialGateway(t)

	sendFrame(t, conn, Frame{Type: "state"})
	f := readFrame(t, conn)
	assert.Equal(t, "error", f.Type)
	assert.Contains(t, f.Error, "not in a battle")

	sendFrame(t, conn, Frame{Type: "join_battle", BattleID: "not-a-uuid"})
	f = readFrame(t, conn)
	assert.Equal(t, "error", f.Type)

	sendFrame(t, conn, Frame{Type: "bogus"})
	f = readFrame(t, conn)
	assert.Equal(t, "error", f.Type)
	assert.Contains(t, f.Error, "unknown frame type")
}

func TestAttackValidationErrors(t *testing.T) {
	conn, _ := dialGateway(t)

	sendFrame(t, conn, Frame{Type: "create_battle"})
	readSnapshot(t, conn)

	sendFrame(t, conn, Frame{Type: "attack",
		Data: mustRaw(t, attackRequest{AttackerID: "nobody", TargetID: "nobody", Value: 1})})
	f := readFrame(t, conn)
	assert.Equal(t, "error", f.Type)
	// the state broadcast still follows the error
	readSnapshot(t, conn)
}

func TestEndBattle(t *testing.T) {
	conn, engine := dialGateway(t)

	sendFrame(t, conn, Frame{Type: "create_battle"})
	readSnapshot(t, conn)
	require.Equal(t, 1, engine.BattleCount())

	sendFrame(t, conn, Frame{Type: "end_battle"})
	sendFrame(t, conn, Frame{Type: "state"})
	f := readFrame(t, conn)
	assert.Equal(t, "error", f.Type)
	assert.Equal(t, 0, engine.BattleCount())
}

func TestSnapshotFrameCarriesBattleState(t *testing.T) {
	engine := battle.NewEngine(nil, battle.WithSeed(7))
	gw := NewGateway(engine, zaptest.NewLogger(t))
	b := engine.CreateBattle()

	f := gw.snapshotFrame(b)
	assert.Equal(t, "battle_state", f.Type)
	assert.Equal(t, b.ID().String(), f.BattleID)

	var snap battle.Snapshot
	require.NoError(t, json.Unmarshal(f.Data, &snap))
	assert.Equal(t, b.ID().String(), snap.BattleID)
}

func TestNewHTTPServerRoutes(t *testing.T) {
	engine := battle.NewEngine(nil)
	gw := NewGateway(engine, nil)
	srv := NewHTTPServer(config.WebSocketConfig{Address: ":0", Path: "/ws"}, gw)
	assert.Equal(t, ":0", srv.Addr)
	assert.NotNil(t, srv.Handler)
}
