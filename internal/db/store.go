// Package db implements the persistence layer: the Store contract
// the game core depends on, its PostgreSQL implementation over pgx,
// and an in-memory implementation for tests.
package db

import (
	"context"
	"errors"

	"github.com/moonvale/moonmud/internal/model"
)

// ErrValueTooLong is returned when a field exceeds its column size
// (e.g. an oversize username during registration).
var ErrValueTooLong = errors.New("value too long")

// Store is the CRUD contract between the game core and persistence.
// Lookups that find nothing return (nil, nil); errors are reserved
// for the backend failing.
type Store interface {
	// Users and players.
	UserByName(ctx context.Context, username string) (*model.User, error)
	CreateUser(ctx context.Context, u *model.User) error
	DeleteUser(ctx context.Context, id int64) error
	PlayerByUser(ctx context.Context, userID int64) (*model.Player, error)
	CreatePlayer(ctx context.Context, p *model.Player) error
	DeletePlayer(ctx context.Context, id int64) error
	CreateBank(ctx context.Context, b *model.Bank) error

	// World definitions. Rooms come back ordered by id; the first
	// room is where new players appear.
	Rooms(ctx context.Context) ([]*model.Room, error)
	Entities(ctx context.Context) ([]*model.Entity, error)
	CreateEntity(ctx context.Context, e *model.Entity) error
	DeleteEntity(ctx context.Context, id int64) error
	Items(ctx context.Context) ([]*model.Item, error)
	Portals(ctx context.Context) ([]*model.Portal, error)
	ResourceNodes(ctx context.Context) ([]*model.ResourceNode, error)
	DropTableItems(ctx context.Context, dropTableID int64) ([]*model.DropTableItem, error)

	// Instances.
	Instances(ctx context.Context) ([]*model.Instance, error)
	InstanceByEntity(ctx context.Context, entityID int64) (*model.Instance, error)
	CreateInstance(ctx context.Context, inst *model.Instance) error
	UpdateInstance(ctx context.Context, inst *model.Instance) error
	DeleteInstance(ctx context.Context, id int64) error

	// Inventory. Rows come back ordered by id so the stacking rule
	// visits them deterministically.
	InventoryByPlayer(ctx context.Context, playerID int64) ([]*model.InventoryItem, error)
	CreateInventoryItem(ctx context.Context, ii *model.InventoryItem) error
	UpdateInventoryItem(ctx context.Context, ii *model.InventoryItem) error
	DeleteInventoryItem(ctx context.Context, id int64) error
}
