package gameserver

import (
	"context"

	"github.com/moonvale/moonmud/internal/model"
	"github.com/moonvale/moonmud/internal/packet"
)

// move resolves one movement request: portal entry, gathering
// trigger, or a plain step with bounds and collision checks.
func (g *Game) move(ctx context.Context, c *Conn, dy, dx int32) {
	// Movement interrupts whatever the avatar was doing.
	g.cancelAction(c)

	desiredY := c.instance.Y + dy
	desiredX := c.instance.X + dx

	for _, inst := range c.visibleSorted() {
		e, ok := g.reg.Entity(inst.EntityID)
		if !ok {
			continue
		}
		switch {
		case e.Typename == model.TypePortal && inst.At(desiredY, desiredX):
			portal, ok := g.reg.PortalByEntity(inst.EntityID)
			if !ok {
				continue
			}
			desiredY = portal.LinkedY
			desiredX = portal.LinkedX
			if portal.LinkedRoomID != c.instance.RoomID {
				c.instance.Y = desiredY
				c.instance.X = desiredX
				g.moveRooms(ctx, c, portal.LinkedRoomID)
				return
			}
		case e.Typename.IsResourceNode() && inst.At(desiredY, desiredX):
			g.startGather(ctx, c, inst)
			return
		}
	}

	if !c.roomMap.Passable(desiredY, desiredX) {
		c.enqueue(packet.Deny{Reason: "Can't move there"})
		return
	}

	c.instance.Y = desiredY
	c.instance.X = desiredX

	// The mover gets its authoritative record straight away; everyone
	// sharing the room rediffs their view.
	c.enqueue(packet.ServerModel{Tag: "Instance", Model: g.instanceDict(c.instance)})
	g.recomputeRoomViews(c.instance.RoomID)
}

// cancelAction stops the connection's active gather loop, if any.
func (g *Game) cancelAction(c *Conn) {
	if c.actionLoop != nil {
		g.sched.Cancel(c.actionLoop)
		c.actionLoop = nil
	}
}
