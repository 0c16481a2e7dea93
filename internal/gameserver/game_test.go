package gameserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moonvale/moonmud/internal/config"
	"github.com/moonvale/moonmud/internal/crypto"
	"github.com/moonvale/moonmud/internal/db"
	"github.com/moonvale/moonmud/internal/model"
	"github.com/moonvale/moonmud/internal/packet"
	"github.com/moonvale/moonmud/internal/world"
)

const testTickRate = 20

// fixture seeds a MemStore and map files, then builds a Game the
// tests drive directly: handlers are dispatched on the test
// goroutine and outbound queues are inspected without flushing.
type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   *db.MemStore
	mapsDir string

	g        *Game
	nextConn int64
	nextID   int64
}

func newFixture(t *testing.T) *fixture {
	return &fixture{
		t:       t,
		ctx:     context.Background(),
		store:   db.NewMemStore(),
		mapsDir: t.TempDir(),
		nextID:  100,
	}
}

func (f *fixture) id() int64 {
	f.nextID++
	return f.nextID
}

// addRoom writes a map file of h×w passable tiles with the given
// solid cells and registers the room.
func (f *fixture) addRoom(id int64, name string, h, w int, solids ...[2]int32) {
	grid := make([][]string, h)
	for y := range grid {
		grid[y] = make([]string, w)
		for x := range grid[y] {
			grid[y][x] = "NOTHING"
		}
	}
	for _, s := range solids {
		grid[s[0]][s[1]] = "WALL"
	}
	doc := map[string]any{
		"size":   []int{h, w},
		"layers": map[string]any{"solid": grid},
	}
	data, err := json.Marshal(doc)
	require.NoError(f.t, err)
	file := fmt.Sprintf("room%d.json", id)
	require.NoError(f.t, os.WriteFile(filepath.Join(f.mapsDir, file), data, 0o644))
	f.store.AddRoom(&model.Room{ID: id, Name: name, FileName: file})
}

// addItemDef creates an entity plus its item extension.
func (f *fixture) addItemDef(typ model.EntityType, name string, maxStack int32) *model.Item {
	e := &model.Entity{ID: f.id(), Typename: typ, Name: name}
	require.NoError(f.t, f.store.CreateEntity(f.ctx, e))
	item := &model.Item{ID: f.id(), EntityID: e.ID, MaxStackAmt: maxStack}
	f.store.AddItem(item)
	return item
}

// addNodeDef creates a resource node entity with a droptable.
func (f *fixture) addNodeDef(typ model.EntityType, name string, dropTableID int64) *model.Entity {
	e := &model.Entity{ID: f.id(), Typename: typ, Name: name}
	require.NoError(f.t, f.store.CreateEntity(f.ctx, e))
	f.store.AddResourceNode(&model.ResourceNode{ID: f.id(), EntityID: e.ID, DropTableID: dropTableID})
	return e
}

// addPortalDef creates a portal entity.
func (f *fixture) addPortalDef(name string, linkedRoom int64, linkedY, linkedX int32) *model.Entity {
	e := &model.Entity{ID: f.id(), Typename: model.TypePortal, Name: name}
	require.NoError(f.t, f.store.CreateEntity(f.ctx, e))
	f.store.AddPortal(&model.Portal{ID: f.id(), EntityID: e.ID, LinkedRoomID: linkedRoom, LinkedY: linkedY, LinkedX: linkedX})
	return e
}

func (f *fixture) addInstance(entityID, roomID int64, y, x, amount, respawn int32) *model.Instance {
	inst := &model.Instance{ID: f.id(), EntityID: entityID, RoomID: roomID, Y: y, X: x, Amount: amount, RespawnTime: respawn}
	require.NoError(f.t, f.store.CreateInstance(f.ctx, inst))
	return inst
}

// start loads the registry and builds the game. Seed everything
// before calling.
func (f *fixture) start() *Game {
	reg := world.NewRegistry()
	require.NoError(f.t, reg.Load(f.ctx, f.store))
	f.g = NewGame(config.Server{
		TickRate: testTickRate,
		MapsDir:  f.mapsDir,
	}, f.store, reg)
	return f.g
}

// conn creates a connection already adopted by the game, without
// transport goroutines: tests dispatch into it directly.
func (f *fixture) conn() *Conn {
	f.nextConn++
	c := NewConn(f.nextConn, nil, crypto.NewSession(nil), false)
	f.g.conns[c.id] = c
	return c
}

// drain empties and returns the connection's outbound queue.
func drain(c *Conn) []packet.Message {
	out := c.outgoing
	c.outgoing = nil
	return out
}

// registerAndLogin runs the full register + login flow and drains
// both responses, leaving the connection in PLAY.
func (f *fixture) registerAndLogin(c *Conn, username, password string) {
	f.g.dispatch(f.ctx, c, packet.Register{Username: username, Password: password})
	out := drain(c)
	require.Equal(f.t, packet.Ok{}, out[len(out)-1], "register should succeed")

	f.g.dispatch(f.ctx, c, packet.Login{Username: username, Password: password})
	require.Equal(f.t, StatePlay, c.state, "login should enter PLAY")
}

// kindsOf flattens messages to their kinds for order assertions.
func kindsOf(msgs []packet.Message) []packet.Kind {
	kinds := make([]packet.Kind, len(msgs))
	for i, m := range msgs {
		kinds[i] = m.Kind()
	}
	return kinds
}

// findDeny returns the first Deny in msgs.
func findDeny(msgs []packet.Message) (packet.Deny, bool) {
	for _, m := range msgs {
		if d, ok := m.(packet.Deny); ok {
			return d, true
		}
	}
	return packet.Deny{}, false
}

// instanceModels returns every ServerModel tagged Instance.
func instanceModels(msgs []packet.Message) []packet.ServerModel {
	var out []packet.ServerModel
	for _, m := range msgs {
		if sm, ok := m.(packet.ServerModel); ok && sm.Tag == "Instance" {
			out = append(out, sm)
		}
	}
	return out
}
