package gameserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/moonvale/moonmud/internal/model"
	"github.com/moonvale/moonmud/internal/packet"
)

// gatherSuccessOneIn is the per-attempt success odds of a gather
// tick.
const gatherSuccessOneIn = 6

// startGather begins a repeating gather attempt against a resource
// node, replacing any action already in progress.
func (g *Game) startGather(ctx context.Context, c *Conn, inst *model.Instance) {
	node, ok := g.reg.NodeByEntity(inst.EntityID)
	if !ok {
		return
	}
	if !g.canGather(ctx, c, inst) {
		return
	}

	e, _ := g.reg.Entity(inst.EntityID)
	switch e.Typename {
	case model.TypeOreNode:
		c.enqueue(packet.ServerLog{Text: "You begin to mine at the rocks."})
	case model.TypeTreeNode:
		c.enqueue(packet.ServerLog{Text: "You begin to chop at the tree."})
	}

	g.cancelAction(c)
	c.actionLoop = g.sched.ScheduleRepeating(1, c.id, func() {
		g.attemptGather(ctx, c, inst, node)
	})
}

// attemptGather is one tick of the gather loop: verify the node is
// still there and the tool still held, then roll for success.
func (g *Game) attemptGather(ctx context.Context, c *Conn, inst *model.Instance, node *model.ResourceNode) {
	// Another connection may have harvested the node under us.
	if !inst.Alive() {
		g.cancelAction(c)
		return
	}

	if !g.canGather(ctx, c, inst) {
		g.cancelAction(c)
		return
	}

	if g.rng.IntN(gatherSuccessOneIn) != 0 {
		c.enqueue(packet.ServerLog{Text: "You continue gathering."})
		return
	}

	g.cancelAction(c)

	for _, row := range g.reg.DropRows(node.DropTableID) {
		if row.Chance < 1 || g.rng.Int32N(row.Chance) != 0 {
			continue
		}
		amt := row.MinAmt + g.rng.Int32N(row.MaxAmt-row.MinAmt+1)
		item, ok := g.reg.Item(row.ItemID)
		if !ok {
			slog.Error("droptable references unknown item", "item", row.ItemID)
			continue
		}
		g.addItemToInventory(ctx, c, item, amt)
		if e, ok := g.reg.Entity(item.EntityID); ok {
			c.enqueue(packet.ServerLog{Text: fmt.Sprintf("You acquire %d %s.", amt, e.Name)})
		}
	}

	g.killInstance(ctx, inst)
}

// canGather checks the tool prerequisite for a node, telling the
// player what is missing.
func (g *Game) canGather(ctx context.Context, c *Conn, inst *model.Instance) bool {
	e, ok := g.reg.Entity(inst.EntityID)
	if !ok {
		return false
	}
	tool := e.Typename.RequiredTool()
	if tool == "" {
		return false
	}

	rows, err := g.store.InventoryByPlayer(ctx, c.player.ID)
	if err != nil {
		slog.Error("loading inventory", "player", c.player.ID, "error", err)
		return false
	}
	for _, row := range rows {
		item, ok := g.reg.Item(row.ItemID)
		if !ok {
			continue
		}
		if ie, ok := g.reg.Entity(item.EntityID); ok && ie.Typename == tool {
			return true
		}
	}

	c.enqueue(packet.ServerLog{Text: fmt.Sprintf("You do not have a %s.", tool)})
	return false
}

// killInstance retires an instance from play: the whole room says
// goodbye, then the instance either parks for respawn or is deleted
// for good.
func (g *Game) killInstance(ctx context.Context, inst *model.Instance) {
	g.broadcastRoom(inst.RoomID, packet.Goodbye{InstanceID: inst.ID}, nil)
	g.instanceKilledFromView(inst.RoomID, inst.ID)

	if inst.RespawnTime > 0 {
		inst.State = model.StateAwaitingRespawn
		instID := inst.ID
		g.sched.Schedule(int64(g.cfg.TickRate)*int64(inst.RespawnTime), 0, func() {
			g.respawnInstance(instID)
		})
		return
	}

	g.reg.RemoveInstance(inst.ID)
	if err := g.store.DeleteInstance(ctx, inst.ID); err != nil {
		slog.Error("deleting instance", "instance", inst.ID, "error", err)
	}
}

// respawnInstance restores a parked instance at its home tile.
func (g *Game) respawnInstance(instID int64) {
	inst, ok := g.reg.Instance(instID)
	if !ok {
		return
	}
	inst.State = model.StateAlive
	slog.Debug("instance respawned", "instance", inst.ID, "room", inst.RoomID, "y", inst.Y, "x", inst.X)
	g.recomputeRoomViews(inst.RoomID)
}
