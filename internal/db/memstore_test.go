package db

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moonvale/moonmud/internal/model"
)

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	u, err := s.UserByName(ctx, "ada")
	require.NoError(t, err)
	require.Nil(t, u)

	require.NoError(t, s.CreateUser(ctx, &model.User{Username: "ada", PasswordHash: "h"}))

	u, err = s.UserByName(ctx, "ada")
	require.NoError(t, err)
	require.NotNil(t, u)
	require.NotZero(t, u.ID)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	u, err = s.UserByName(ctx, "ada")
	require.NoError(t, err)
	require.Nil(t, u)
}

func TestCreateUserRejectsOversizeUsername(t *testing.T) {
	s := NewMemStore()
	err := s.CreateUser(context.Background(), &model.User{Username: strings.Repeat("x", 21)})
	require.ErrorIs(t, err, ErrValueTooLong)
}

func TestRoomsOrderedByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	s.AddRoom(&model.Room{ID: 2, Name: "forest"})
	s.AddRoom(&model.Room{ID: 1, Name: "village"})

	rooms, err := s.Rooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	require.Equal(t, "village", rooms[0].Name, "first room is the initial room")
}

func TestInventoryOrderedAndFiltered(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.CreateInventoryItem(ctx, &model.InventoryItem{PlayerID: 1, ItemID: 1, Amount: 3}))
	require.NoError(t, s.CreateInventoryItem(ctx, &model.InventoryItem{PlayerID: 2, ItemID: 1, Amount: 5}))
	require.NoError(t, s.CreateInventoryItem(ctx, &model.InventoryItem{PlayerID: 1, ItemID: 2, Amount: 1}))

	rows, err := s.InventoryByPlayer(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Less(t, rows[0].ID, rows[1].ID)
}

func TestInstanceUpdateIsIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	inst := &model.Instance{EntityID: 1, RoomID: 1, Y: 0, X: 0, Amount: 3}
	require.NoError(t, s.CreateInstance(ctx, inst))

	// Mutating the caller's copy must not leak into the store.
	inst.Amount = 99
	got, err := s.InstanceByEntity(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int32(3), got.Amount)

	inst.Amount = 7
	require.NoError(t, s.UpdateInstance(ctx, inst))
	got, err = s.InstanceByEntity(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int32(7), got.Amount)
}

func TestDropTableItemsFilter(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	s.AddDropTableItem(&model.DropTableItem{DropTableID: 1, ItemID: 1, Chance: 1, MinAmt: 1, MaxAmt: 3})
	s.AddDropTableItem(&model.DropTableItem{DropTableID: 2, ItemID: 2, Chance: 4, MinAmt: 1, MaxAmt: 1})

	rows, err := s.DropTableItems(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(1), rows[0].ItemID)
}
