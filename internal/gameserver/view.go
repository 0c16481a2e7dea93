package gameserver

import (
	"sort"

	"github.com/moonvale/moonmud/internal/model"
	"github.com/moonvale/moonmud/internal/packet"
)

// viewRadius is the half-width of the 21×21 visibility window
// centred on the avatar.
const viewRadius = 10

// coordInView reports whether (y, x) lies within the connection's
// visibility window.
func (c *Conn) coordInView(y, x int32) bool {
	dy := y - c.instance.Y
	dx := x - c.instance.X
	return dy >= -viewRadius && dy <= viewRadius && dx >= -viewRadius && dx <= viewRadius
}

// processVisibleInstances recomputes the connection's visible set and
// emits the diff against the previous tick: Goodbye for instances
// that left the view, a full ServerModel for instances that entered,
// and a full ServerModel for instances that stayed (full-send is the
// contract; no delta optimisation).
func (g *Game) processVisibleInstances(c *Conn) {
	if !c.loggedIn || c.instance == nil {
		return
	}

	prev := c.visible
	curr := make(map[int64]*model.Instance)

	for _, inst := range g.reg.InstancesInRoom(c.instance.RoomID) {
		if !inst.Alive() || inst == c.instance {
			continue
		}
		if !c.coordInView(inst.Y, inst.X) {
			continue
		}
		// Avatars of players who are not logged in right now stay
		// parked in the world but out of everybody's view.
		if e, ok := g.reg.Entity(inst.EntityID); ok && e.Typename == model.TypePlayer {
			owner := g.byEntity[inst.EntityID]
			if owner == nil || !owner.loggedIn {
				continue
			}
		}
		curr[inst.ID] = inst
	}

	c.visible = curr

	for _, id := range sortedKeys(prev) {
		if _, ok := curr[id]; !ok {
			c.enqueue(packet.Goodbye{InstanceID: id})
		}
	}
	for _, id := range sortedKeys(curr) {
		inst := curr[id]
		// Entered and stayed both get the full record.
		c.enqueue(packet.ServerModel{Tag: "Instance", Model: g.instanceDict(inst)})
	}
}

// visibleSorted snapshots the visible set in id order so handlers can
// iterate while it mutates.
func (c *Conn) visibleSorted() []*model.Instance {
	out := make([]*model.Instance, 0, len(c.visible))
	for _, id := range sortedKeys(c.visible) {
		out = append(out, c.visible[id])
	}
	return out
}

func sortedKeys(m map[int64]*model.Instance) []int64 {
	keys := make([]int64, 0, len(m))
	for id := range m {
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
