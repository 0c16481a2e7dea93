package gameserver

import (
	"context"
	"log/slog"

	"github.com/moonvale/moonmud/internal/model"
	"github.com/moonvale/moonmud/internal/packet"
)

// addItemToInventory credits amt of item to the connection's player
// under the stacking rule: top up partial rows first, then open new
// rows up to the 30-row cap. Returns the leftover that did not fit;
// a full inventory also tells the client so.
func (g *Game) addItemToInventory(ctx context.Context, c *Conn, item *model.Item, amt int32) int32 {
	rows, err := g.store.InventoryByPlayer(ctx, c.player.ID)
	if err != nil {
		slog.Error("loading inventory", "player", c.player.ID, "error", err)
		return amt
	}

	emit := func(row *model.InventoryItem) {
		c.enqueue(packet.ServerModel{Tag: "InventoryItem", Model: g.inventoryItemDict(row)})
	}

	count := len(rows)
	for _, row := range rows {
		if row.ItemID != item.ID || row.Amount >= item.MaxStackAmt {
			continue
		}

		leftover := max(row.Amount+amt-item.MaxStackAmt, 0)
		row.Amount = min(item.MaxStackAmt, row.Amount+amt)
		if err := g.store.UpdateInventoryItem(ctx, row); err != nil {
			slog.Error("updating inventory row", "row", row.ID, "error", err)
		}
		emit(row)

		for leftover > 0 {
			if count == model.MaxInventoryRows {
				c.enqueue(packet.Deny{Reason: "Your inventory is full"})
				return leftover
			}
			newAmt := min(item.MaxStackAmt, leftover)
			newRow := &model.InventoryItem{PlayerID: c.player.ID, ItemID: item.ID, Amount: newAmt}
			if err := g.store.CreateInventoryItem(ctx, newRow); err != nil {
				slog.Error("creating inventory row", "player", c.player.ID, "error", err)
				return leftover
			}
			count++
			emit(newRow)
			leftover -= newAmt
		}
		return 0
	}

	for amt > 0 {
		if count == model.MaxInventoryRows {
			c.enqueue(packet.Deny{Reason: "Your inventory is full"})
			return amt
		}
		newAmt := min(item.MaxStackAmt, amt)
		newRow := &model.InventoryItem{PlayerID: c.player.ID, ItemID: item.ID, Amount: newAmt}
		if err := g.store.CreateInventoryItem(ctx, newRow); err != nil {
			slog.Error("creating inventory row", "player", c.player.ID, "error", err)
			return amt
		}
		count++
		emit(newRow)
		amt -= newAmt
	}
	return 0
}

// grabItemHere picks up the first grabbable stack sharing the
// avatar's tile.
func (g *Game) grabItemHere(ctx context.Context, c *Conn) {
	g.cancelAction(c)

	for _, inst := range c.visibleSorted() {
		e, ok := g.reg.Entity(inst.EntityID)
		if !ok || !e.Typename.IsGrabbable() {
			continue
		}
		if !inst.At(c.instance.Y, c.instance.X) {
			continue
		}

		item, ok := g.reg.ItemByEntity(inst.EntityID)
		if !ok {
			continue
		}
		leftover := g.addItemToInventory(ctx, c, item, inst.Amount)
		if leftover > 0 {
			inst.Amount = leftover
			g.persistInstance(ctx, inst)
		} else {
			g.killInstance(ctx, inst)
		}
		return
	}

	c.enqueue(packet.Deny{Reason: "There is no item here."})
}

// dropItem removes an inventory row and places its stack on the
// avatar's tile, due to despawn two minutes later.
func (g *Game) dropItem(ctx context.Context, c *Conn, m packet.DropItem) {
	g.cancelAction(c)

	rows, err := g.store.InventoryByPlayer(ctx, c.player.ID)
	if err != nil {
		slog.Error("loading inventory", "player", c.player.ID, "error", err)
		return
	}
	var row *model.InventoryItem
	for _, r := range rows {
		if r.ID == m.InventoryItemID {
			row = r
			break
		}
	}
	if row == nil {
		c.enqueue(packet.Deny{Reason: "You don't have that."})
		return
	}

	item, ok := g.reg.Item(row.ItemID)
	if !ok {
		slog.Error("dropping unknown item", "item", row.ItemID)
		return
	}

	if err := g.store.DeleteInventoryItem(ctx, row.ID); err != nil {
		slog.Error("deleting inventory row", "row", row.ID, "error", err)
		return
	}

	inst := &model.Instance{
		EntityID: item.EntityID,
		RoomID:   c.instance.RoomID,
		Y:        c.instance.Y,
		X:        c.instance.X,
		Amount:   row.Amount,
	}
	if err := g.store.CreateInstance(ctx, inst); err != nil {
		slog.Error("creating dropped instance", "item", item.ID, "error", err)
		return
	}
	g.reg.AddInstance(inst)

	// Despawn countdown. Unowned: surviving the dropper's logout is
	// intended.
	instID := inst.ID
	g.sched.Schedule(int64(g.cfg.TickRate)*despawnSeconds, 0, func() {
		g.despawnInstance(context.WithoutCancel(ctx), instID)
	})

	g.recomputeRoomViews(inst.RoomID)
}

// despawnInstance removes a dropped stack that nobody picked up.
func (g *Game) despawnInstance(ctx context.Context, instID int64) {
	inst, ok := g.reg.Instance(instID)
	if !ok {
		return
	}
	g.broadcastRoom(inst.RoomID, packet.Goodbye{InstanceID: inst.ID}, nil)
	g.instanceKilledFromView(inst.RoomID, inst.ID)
	g.reg.RemoveInstance(inst.ID)
	if err := g.store.DeleteInstance(ctx, inst.ID); err != nil {
		slog.Error("deleting despawned instance", "instance", inst.ID, "error", err)
	}
}
