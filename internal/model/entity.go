package model

// EntityType identifies what an Entity is on the grid.
type EntityType string

const (
	TypePlayer   EntityType = "Player"
	TypeItem     EntityType = "Item"
	TypePickaxe  EntityType = "Pickaxe"
	TypeAxe      EntityType = "Axe"
	TypeOre      EntityType = "Ore"
	TypeLogs     EntityType = "Logs"
	TypeOreNode  EntityType = "OreNode"
	TypeTreeNode EntityType = "TreeNode"
	TypePortal   EntityType = "Portal"
)

// IsGrabbable reports whether an entity of this type can be picked up
// off the ground.
func (t EntityType) IsGrabbable() bool {
	switch t {
	case TypeItem, TypePickaxe, TypeAxe, TypeOre, TypeLogs:
		return true
	}
	return false
}

// IsResourceNode reports whether an entity of this type is harvested
// with a tool rather than walked onto.
func (t EntityType) IsResourceNode() bool {
	return t == TypeOreNode || t == TypeTreeNode
}

// RequiredTool returns the tool entity type needed to gather from a
// resource node, or "" if the type is not a node.
func (t EntityType) RequiredTool() EntityType {
	switch t {
	case TypeOreNode:
		return TypePickaxe
	case TypeTreeNode:
		return TypeAxe
	}
	return ""
}

// Entity is a definition shared by every placement of the same thing:
// identity, type and display name.
type Entity struct {
	ID       int64
	Typename EntityType
	Name     string
}
