package gameserver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/moonvale/moonmud/internal/crypto"
	"github.com/moonvale/moonmud/internal/model"
	"github.com/moonvale/moonmud/internal/packet"
)

// chatLimit truncates chat message bodies.
const chatLimit = 80

// dispatch advances a connection's FSM with one inbound message.
func (g *Game) dispatch(ctx context.Context, c *Conn, msg packet.Message) {
	switch c.state {
	case StateGetEntry:
		g.dispatchGetEntry(ctx, c, msg)
	case StatePlay:
		g.dispatchPlay(ctx, c, msg)
	}
}

func (g *Game) dispatchGetEntry(ctx context.Context, c *Conn, msg packet.Message) {
	switch m := msg.(type) {
	case packet.ClientKey:
		g.handleClientKey(c, m)
	case packet.Login:
		g.loginUser(ctx, c, m)
	case packet.Register:
		g.registerUser(ctx, c, m)
	default:
		// Everything else is meaningless before entry; ignore.
	}
}

func (g *Game) dispatchPlay(ctx context.Context, c *Conn, msg packet.Message) {
	switch m := msg.(type) {
	case packet.MoveUp:
		g.move(ctx, c, -1, 0)
	case packet.MoveRight:
		g.move(ctx, c, 0, 1)
	case packet.MoveDown:
		g.move(ctx, c, 1, 0)
	case packet.MoveLeft:
		g.move(ctx, c, 0, -1)
	case packet.Chat:
		g.chat(c, m)
	case packet.GrabItem:
		g.grabItemHere(ctx, c)
	case packet.DropItem:
		g.dropItem(ctx, c, m)
	case packet.Logout:
		g.logout(ctx, c, m)
	case packet.Goodbye:
		g.departOther(c, m)
	case packet.ServerLog, packet.WeatherChange:
		// Driver-injected events echo straight back to the client.
		c.enqueue(msg)
	default:
		slog.Debug("ignoring message in PLAY", "conn", c.id, "kind", msg.Kind())
	}
}

// handleClientKey stores the peer's public key and replies with the
// server key and the initial session info.
func (g *Game) handleClientKey(c *Conn, m packet.ClientKey) {
	peer, err := crypto.PublicKeyFromParts(m.N, m.E)
	if err != nil {
		slog.Warn("rejecting bad client key", "conn", c.id, "error", err)
		return
	}
	c.session.Peer = peer
	c.handshaked.Store(true)

	n, e := crypto.PublicKeyParts(&c.session.Private.PublicKey)
	c.enqueue(packet.ClientKey{N: n, E: e})
	c.enqueue(packet.ServerTickRate{TicksPerSecond: int64(g.cfg.TickRate)})
	c.enqueue(packet.Welcome{Banner: WelcomeBanner})
}

// chat broadcasts a player's line to the whole room, self included.
func (g *Game) chat(c *Conn, m packet.Chat) {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return
	}
	body := m.Text
	if len(body) > chatLimit {
		body = body[:chatLimit]
	}
	name := c.username
	if e, ok := g.avatarEntity(c); ok {
		name = e.Name
	}
	line := name + " says: " + body
	g.broadcastRoom(c.instance.RoomID, packet.ServerLog{Text: line}, nil)
	slog.Info("chat", "room", c.instance.RoomID, "line", line)
}

// departOther handles a client acknowledging that an instance left
// its view: drop it from the server-side visible set and echo the
// goodbye, with a log line when a player departs.
func (g *Game) departOther(c *Conn, m packet.Goodbye) {
	inst, ok := g.reg.Instance(m.InstanceID)
	if !ok {
		return
	}
	delete(c.visible, inst.ID)
	if e, ok := g.reg.Entity(inst.EntityID); ok && e.Typename == model.TypePlayer {
		c.enqueue(packet.ServerLog{Text: e.Name + " has departed."})
	}
	c.enqueue(m)
}

func (g *Game) avatarEntity(c *Conn) (*model.Entity, bool) {
	if c.instance == nil {
		return nil, false
	}
	return g.reg.Entity(c.instance.EntityID)
}
