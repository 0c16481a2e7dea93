package world

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moonvale/moonmud/internal/db"
	"github.com/moonvale/moonmud/internal/model"
)

func seededStore(t *testing.T) *db.MemStore {
	t.Helper()
	ctx := context.Background()
	s := db.NewMemStore()
	s.AddRoom(&model.Room{ID: 1, Name: "village", FileName: "village.json"})
	s.AddRoom(&model.Room{ID: 2, Name: "forest", FileName: "forest.json"})
	require.NoError(t, s.CreateEntity(ctx, &model.Entity{ID: 1, Typename: model.TypeOreNode, Name: "Rocks"}))
	require.NoError(t, s.CreateEntity(ctx, &model.Entity{ID: 2, Typename: model.TypeOre, Name: "Ore"}))
	s.AddItem(&model.Item{ID: 1, EntityID: 2, MaxStackAmt: 30})
	s.AddResourceNode(&model.ResourceNode{ID: 1, EntityID: 1, DropTableID: 1})
	s.AddDropTableItem(&model.DropTableItem{DropTableID: 1, ItemID: 1, Chance: 1, MinAmt: 1, MaxAmt: 3})
	require.NoError(t, s.CreateInstance(ctx, &model.Instance{ID: 1, EntityID: 1, RoomID: 2, Y: 3, X: 3, RespawnTime: 30}))
	return s
}

func TestLoad(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Load(context.Background(), seededStore(t)))

	rooms := reg.Rooms()
	require.Len(t, rooms, 2)
	require.Equal(t, "village", rooms[0].Name)

	e, ok := reg.Entity(1)
	require.True(t, ok)
	require.Equal(t, model.TypeOreNode, e.Typename)

	n, ok := reg.NodeByEntity(1)
	require.True(t, ok)
	require.Len(t, reg.DropRows(n.DropTableID), 1)

	item, ok := reg.ItemByEntity(2)
	require.True(t, ok)
	require.Equal(t, int32(30), item.MaxStackAmt)

	item, ok = reg.Item(1)
	require.True(t, ok)
	require.Equal(t, int64(2), item.EntityID)

	inst, ok := reg.Instance(1)
	require.True(t, ok)
	require.Equal(t, int64(2), inst.RoomID)
}

func TestInstancePlacementAndRemoval(t *testing.T) {
	reg := NewRegistry()

	reg.AddInstance(&model.Instance{ID: 10, EntityID: 1, RoomID: 1, Y: 0, X: 0})
	reg.AddInstance(&model.Instance{ID: 11, EntityID: 2, RoomID: 1, Y: 1, X: 1})
	reg.AddInstance(&model.Instance{ID: 12, EntityID: 3, RoomID: 2, Y: 2, X: 2})

	in1 := reg.InstancesInRoom(1)
	require.Len(t, in1, 2)
	require.Equal(t, int64(10), in1[0].ID, "snapshot is id-ordered")

	reg.RemoveInstance(11)
	require.Len(t, reg.InstancesInRoom(1), 1)

	_, ok := reg.Instance(11)
	require.False(t, ok)

	// Removing twice is a no-op.
	reg.RemoveInstance(11)
}

func TestMoveRoomReindexes(t *testing.T) {
	reg := NewRegistry()
	inst := &model.Instance{ID: 10, EntityID: 1, RoomID: 1, Y: 5, X: 5}
	reg.AddInstance(inst)

	reg.MoveRoom(inst, 2)
	require.Equal(t, int64(2), inst.RoomID)
	require.Empty(t, reg.InstancesInRoom(1))
	require.Len(t, reg.InstancesInRoom(2), 1)
}
