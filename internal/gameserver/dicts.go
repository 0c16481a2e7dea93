package gameserver

import (
	"github.com/moonvale/moonmud/internal/model"
)

// The dict builders flatten model records into the attribute maps
// carried by ServerModel packets. Nested entity/item attributes ride
// inline, mirroring what clients expect.

func entityDict(e *model.Entity) map[string]any {
	return map[string]any{
		"id":       e.ID,
		"typename": string(e.Typename),
		"name":     e.Name,
	}
}

func (g *Game) instanceDict(inst *model.Instance) map[string]any {
	d := map[string]any{
		"id":           inst.ID,
		"room":         inst.RoomID,
		"y":            inst.WireY(),
		"x":            inst.X,
		"amount":       inst.Amount,
		"respawn_time": inst.RespawnTime,
	}
	if e, ok := g.reg.Entity(inst.EntityID); ok {
		d["entity"] = entityDict(e)
	}
	return d
}

func (g *Game) playerDict(p *model.Player) map[string]any {
	d := map[string]any{
		"id":   p.ID,
		"user": p.UserID,
	}
	if e, ok := g.reg.Entity(p.EntityID); ok {
		d["entity"] = entityDict(e)
	}
	return d
}

func roomDict(r *model.Room) map[string]any {
	return map[string]any{
		"id":        r.ID,
		"name":      r.Name,
		"file_name": r.FileName,
	}
}

func (g *Game) inventoryItemDict(ii *model.InventoryItem) map[string]any {
	d := map[string]any{
		"id":     ii.ID,
		"player": ii.PlayerID,
		"amount": ii.Amount,
	}
	if item, ok := g.reg.Item(ii.ItemID); ok {
		itemDict := map[string]any{
			"id":            item.ID,
			"max_stack_amt": item.MaxStackAmt,
		}
		if e, ok := g.reg.Entity(item.EntityID); ok {
			itemDict["entity"] = entityDict(e)
		}
		d["item"] = itemDict
	}
	return d
}
