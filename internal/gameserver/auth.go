package gameserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/moonvale/moonmud/internal/auth"
	"github.com/moonvale/moonmud/internal/db"
	"github.com/moonvale/moonmud/internal/model"
	"github.com/moonvale/moonmud/internal/packet"
)

// loginUser authenticates a user and, on success, binds the
// connection to its player and enters the world.
func (g *Game) loginUser(ctx context.Context, c *Conn, m packet.Login) {
	if m.Username == "" || m.Password == "" {
		c.enqueue(packet.Deny{Reason: "Username and password are required."})
		return
	}

	user, err := g.store.UserByName(ctx, m.Username)
	if err != nil {
		slog.Error("looking up user", "username", m.Username, "error", err)
		c.enqueue(packet.Deny{Reason: "Error. Please try again later."})
		return
	}
	if user == nil {
		c.enqueue(packet.Deny{Reason: "I don't know anybody by that name"})
		return
	}

	player, err := g.store.PlayerByUser(ctx, user.ID)
	if err != nil || player == nil {
		slog.Error("looking up player", "username", m.Username, "error", err)
		c.enqueue(packet.Deny{Reason: "Error. Please try again later."})
		return
	}

	if g.byPlayer[player.ID] != nil {
		c.enqueue(packet.Deny{Reason: fmt.Sprintf("%s is already inhabiting this realm.", m.Username)})
		return
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, m.Password)
	if err != nil {
		slog.Error("verifying password", "username", m.Username, "error", err)
		c.enqueue(packet.Deny{Reason: "Error. Please try again later."})
		return
	}
	if !ok {
		c.enqueue(packet.Deny{Reason: "Incorrect password"})
		return
	}

	stored, err := g.store.InstanceByEntity(ctx, player.EntityID)
	if err != nil || stored == nil {
		slog.Error("looking up player instance", "username", m.Username, "error", err)
		c.enqueue(packet.Deny{Reason: "Error. Please try again later."})
		return
	}
	inst, ok := g.reg.Instance(stored.ID)
	if !ok {
		// First sight of this avatar since startup; adopt the stored
		// placement as the live one.
		inst = stored
		g.reg.AddInstance(inst)
	}

	c.username = user.Username
	c.user = user
	c.player = player
	c.instance = inst
	g.byPlayer[player.ID] = c
	g.byEntity[player.EntityID] = c

	c.enqueue(packet.Ok{})
	slog.Info("user logged in", "username", user.Username, "conn", c.id)
	g.moveRooms(ctx, c, inst.RoomID)
}

// registerUser creates the full object graph for a new player: user,
// avatar entity, world instance in the initial room, player binding
// and bank. Partial creations are rolled back on failure.
func (g *Game) registerUser(ctx context.Context, c *Conn, m packet.Register) {
	if m.Username == "" || m.Password == "" {
		c.enqueue(packet.Deny{Reason: "Username and password are required."})
		return
	}

	existing, err := g.store.UserByName(ctx, m.Username)
	if err != nil {
		slog.Error("looking up user", "username", m.Username, "error", err)
		c.enqueue(packet.Deny{Reason: "Error. Please try again later."})
		return
	}
	if existing != nil {
		c.enqueue(packet.Deny{Reason: "Somebody else already goes by that name"})
		return
	}

	hash, err := auth.HashPassword(m.Password)
	if err != nil {
		slog.Error("hashing password", "error", err)
		c.enqueue(packet.Deny{Reason: "Error. Please try again later."})
		return
	}

	user := &model.User{Username: m.Username, PasswordHash: hash}
	if err := g.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, db.ErrValueTooLong) {
			c.enqueue(packet.Deny{Reason: "Error. Value too long."})
			return
		}
		slog.Error("creating user", "username", m.Username, "error", err)
		c.enqueue(packet.Deny{Reason: "Error. Please try again later."})
		return
	}

	entity := &model.Entity{Typename: model.TypePlayer, Name: m.Username}
	if err := g.store.CreateEntity(ctx, entity); err != nil {
		g.rollbackRegistration(ctx, user, nil, nil, nil)
		if errors.Is(err, db.ErrValueTooLong) {
			c.enqueue(packet.Deny{Reason: "Error. Value too long."})
			return
		}
		slog.Error("creating entity", "username", m.Username, "error", err)
		c.enqueue(packet.Deny{Reason: "Error. Please try again later."})
		return
	}

	rooms := g.reg.Rooms()
	if len(rooms) == 0 {
		g.rollbackRegistration(ctx, user, entity, nil, nil)
		slog.Error("registration failed: no initial room loaded")
		c.enqueue(packet.Deny{Reason: "Error. Please try again later."})
		return
	}

	inst := &model.Instance{EntityID: entity.ID, RoomID: rooms[0].ID, Y: 0, X: 0}
	if err := g.store.CreateInstance(ctx, inst); err != nil {
		g.rollbackRegistration(ctx, user, entity, nil, nil)
		slog.Error("creating instance", "username", m.Username, "error", err)
		c.enqueue(packet.Deny{Reason: "Error. Please try again later."})
		return
	}

	player := &model.Player{UserID: user.ID, EntityID: entity.ID}
	if err := g.store.CreatePlayer(ctx, player); err != nil {
		g.rollbackRegistration(ctx, user, entity, inst, nil)
		slog.Error("creating player", "username", m.Username, "error", err)
		c.enqueue(packet.Deny{Reason: "Error. Please try again later."})
		return
	}

	bank := &model.Bank{PlayerID: player.ID}
	if err := g.store.CreateBank(ctx, bank); err != nil {
		g.rollbackRegistration(ctx, user, entity, inst, player)
		slog.Error("creating bank", "username", m.Username, "error", err)
		c.enqueue(packet.Deny{Reason: "Error. Please try again later."})
		return
	}

	g.reg.AddEntity(entity)
	g.reg.AddInstance(inst)

	slog.Info("user registered", "username", m.Username)
	c.enqueue(packet.Ok{})
}

func (g *Game) rollbackRegistration(ctx context.Context, user *model.User, entity *model.Entity, inst *model.Instance, player *model.Player) {
	if player != nil {
		if err := g.store.DeletePlayer(ctx, player.ID); err != nil {
			slog.Error("rolling back player", "player", player.ID, "error", err)
		}
	}
	if inst != nil {
		if err := g.store.DeleteInstance(ctx, inst.ID); err != nil {
			slog.Error("rolling back instance", "instance", inst.ID, "error", err)
		}
	}
	if entity != nil {
		if err := g.store.DeleteEntity(ctx, entity.ID); err != nil {
			slog.Error("rolling back entity", "entity", entity.ID, "error", err)
		}
	}
	if user != nil {
		if err := g.store.DeleteUser(ctx, user.ID); err != nil {
			slog.Error("rolling back user", "user", user.ID, "error", err)
		}
	}
}

// logout ends a session on explicit request. The avatar instance
// stays in the world at its last position.
func (g *Game) logout(ctx context.Context, c *Conn, m packet.Logout) {
	if m.Username != c.username {
		return
	}
	c.enqueue(packet.Ok{})
	g.teardownSession(ctx, c)
}

// handleDisconnect treats transport loss like an explicit logout.
func (g *Game) handleDisconnect(ctx context.Context, c *Conn) {
	if c.loggedIn {
		slog.Info("connection lost, logging out", "username", c.username, "conn", c.id)
	}
	g.teardownSession(ctx, c)
	c.CloseAsync()
}

// teardownSession detaches the avatar and returns the connection to
// GET_ENTRY. Shared by logout and disconnect.
func (g *Game) teardownSession(ctx context.Context, c *Conn) {
	if c.instance != nil {
		roomID := c.instance.RoomID
		g.broadcastRoom(roomID, packet.Goodbye{InstanceID: c.instance.ID}, c)
		g.instanceKilledFromView(roomID, c.instance.ID)
		g.persistInstance(ctx, c.instance)

		c.loggedIn = false
		if c.player != nil {
			delete(g.byPlayer, c.player.ID)
			delete(g.byEntity, c.player.EntityID)
		}
		g.recomputeRoomViews(roomID)
	}

	g.sched.CancelOwner(c.id)
	c.actionLoop = nil

	c.loggedIn = false
	c.username = ""
	c.user = nil
	c.player = nil
	c.instance = nil
	c.roomMap = nil
	c.visible = make(map[int64]*model.Instance)
	c.state = StateGetEntry
}

// moveRooms switches the avatar into a room (possibly the one it is
// already in, on login) and replays the entry sequence.
func (g *Game) moveRooms(ctx context.Context, c *Conn, destRoomID int64) {
	firstEntry := !c.loggedIn

	if c.loggedIn {
		// Tell the old room we are leaving and reset the view so
		// instances don't follow us between rooms.
		oldRoom := c.instance.RoomID
		g.broadcastRoom(oldRoom, packet.Goodbye{InstanceID: c.instance.ID}, c)
		g.instanceKilledFromView(oldRoom, c.instance.ID)
		c.visible = make(map[int64]*model.Instance)
		defer g.recomputeRoomViews(oldRoom)
	}
	c.loggedIn = true

	c.enqueue(packet.MoveRooms{RoomID: destRoomID})

	g.reg.MoveRoom(c.instance, destRoomID)
	g.persistInstance(ctx, c.instance)

	roomMap, err := g.roomMap(destRoomID)
	if err != nil {
		slog.Error("loading room map", "room", destRoomID, "error", err)
		c.enqueue(packet.Deny{Reason: "Error. Please try again later."})
		g.teardownSession(ctx, c)
		return
	}
	c.roomMap = roomMap

	c.enqueue(packet.Ok{})
	g.establishPlayerInRoom(ctx, c, firstEntry)
}

// establishPlayerInRoom sends the client everything it needs to draw
// the room, announces the arrival, and recomputes views.
func (g *Game) establishPlayerInRoom(ctx context.Context, c *Conn, firstEntry bool) {
	room, _ := g.reg.Room(c.instance.RoomID)
	c.enqueue(packet.ServerModel{Tag: "Room", Model: roomDict(room)})
	c.enqueue(packet.ServerModel{Tag: "Instance", Model: g.instanceDict(c.instance)})
	c.enqueue(packet.ServerModel{Tag: "Player", Model: g.playerDict(c.player)})
	c.enqueue(packet.WeatherChange{State: g.weather})

	if firstEntry {
		rows, err := g.store.InventoryByPlayer(ctx, c.player.ID)
		if err != nil {
			slog.Error("loading inventory", "player", c.player.ID, "error", err)
		}
		for _, row := range rows {
			c.enqueue(packet.ServerModel{Tag: "InventoryItem", Model: g.inventoryItemDict(row)})
		}
	}

	c.state = StatePlay
	g.broadcastRoom(c.instance.RoomID, packet.ServerLog{Text: c.username + " has arrived."}, c)
	g.recomputeRoomViews(c.instance.RoomID)
}
