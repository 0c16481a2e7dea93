package model

// OOBSentinel is the y coordinate reported on the wire for instances
// that are parked awaiting respawn. Clients treat such instances as
// gone; internally aliveness is tracked by InstanceState, never by
// overwriting coordinates.
const OOBSentinel int32 = -32

// InstanceState tracks whether an instance is in play or parked
// until its respawn timer fires.
type InstanceState uint8

const (
	// StateAlive — the instance occupies its (Y, X) tile.
	StateAlive InstanceState = iota
	// StateAwaitingRespawn — harvested/consumed; (Y, X) keep the home
	// coordinates the instance will respawn at. Invisible and
	// non-interactable until restored.
	StateAwaitingRespawn
)

// Instance is a live placement of an Entity in a room.
type Instance struct {
	ID       int64
	EntityID int64
	RoomID   int64
	Y        int32
	X        int32

	// Amount is meaningful for ground item stacks.
	Amount int32

	// RespawnTime is in seconds; zero means the instance is deleted
	// outright when killed instead of parked for respawn.
	RespawnTime int32

	State InstanceState
}

// Alive reports whether the instance is currently in play.
func (i *Instance) Alive() bool {
	return i.State == StateAlive
}

// WireY is the y coordinate as exposed to clients: the real position
// while alive, the out-of-bounds sentinel while awaiting respawn.
func (i *Instance) WireY() int32 {
	if i.State == StateAwaitingRespawn {
		return OOBSentinel
	}
	return i.Y
}

// At reports whether the instance is alive and sitting on (y, x).
func (i *Instance) At(y, x int32) bool {
	return i.Alive() && i.Y == y && i.X == x
}
