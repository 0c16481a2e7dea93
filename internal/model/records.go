package model

// User is a login account: unique username plus a salted, stretched
// password digest produced by the KDF.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
}

// Player binds a User to its avatar Entity.
type Player struct {
	ID       int64
	UserID   int64
	EntityID int64
}

// Bank is owned 1:1 by a Player.
type Bank struct {
	ID       int64
	PlayerID int64
}

// Room is a named grid loaded from a map file.
type Room struct {
	ID       int64
	Name     string
	FileName string
}

// Item extends an Entity with stacking behaviour.
type Item struct {
	ID          int64
	EntityID    int64
	MaxStackAmt int32
}

// InventoryItem is one stack row in a player's inventory.
// Amount is always within [1, item.MaxStackAmt].
type InventoryItem struct {
	ID       int64
	PlayerID int64
	ItemID   int64
	Amount   int32
}

// MaxInventoryRows caps how many stack rows a player may hold.
const MaxInventoryRows = 30

// Portal extends an Entity with a travel target.
type Portal struct {
	ID           int64
	EntityID     int64
	LinkedRoomID int64
	LinkedY      int32
	LinkedX      int32
}

// ResourceNode extends an Entity with the droptable rolled on harvest.
type ResourceNode struct {
	ID          int64
	EntityID    int64
	DropTableID int64
}

// DropTableItem is one rollable row of a droptable: the item drops
// with probability 1-in-Chance, in a uniform amount between MinAmt
// and MaxAmt.
type DropTableItem struct {
	ID          int64
	DropTableID int64
	ItemID      int64
	Chance      int32
	MinAmt      int32
	MaxAmt      int32
}
