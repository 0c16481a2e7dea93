package db

import (
	"context"
	"sort"
	"sync"

	"github.com/moonvale/moonmud/internal/model"
)

// Column sizes mirrored from the schema so MemStore rejects the same
// oversize values Postgres would.
const (
	maxUsernameLen = 20
	maxNameLen     = 40
)

// MemStore is an in-memory Store used by tests. Safe for concurrent
// use.
type MemStore struct {
	mu     sync.Mutex
	nextID map[string]int64

	users          map[int64]*model.User
	players        map[int64]*model.Player
	banks          map[int64]*model.Bank
	rooms          map[int64]*model.Room
	entities       map[int64]*model.Entity
	items          map[int64]*model.Item
	portals        map[int64]*model.Portal
	nodes          map[int64]*model.ResourceNode
	dropItems      map[int64]*model.DropTableItem
	instances      map[int64]*model.Instance
	inventoryItems map[int64]*model.InventoryItem
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		nextID:         make(map[string]int64),
		users:          make(map[int64]*model.User),
		players:        make(map[int64]*model.Player),
		banks:          make(map[int64]*model.Bank),
		rooms:          make(map[int64]*model.Room),
		entities:       make(map[int64]*model.Entity),
		items:          make(map[int64]*model.Item),
		portals:        make(map[int64]*model.Portal),
		nodes:          make(map[int64]*model.ResourceNode),
		dropItems:      make(map[int64]*model.DropTableItem),
		instances:      make(map[int64]*model.Instance),
		inventoryItems: make(map[int64]*model.InventoryItem),
	}
}

func (m *MemStore) alloc(table string) int64 {
	m.nextID[table]++
	return m.nextID[table]
}

// claim reserves id on table's sequence when a fixture supplies its
// own id.
func (m *MemStore) claim(table string, id int64) {
	if id > m.nextID[table] {
		m.nextID[table] = id
	}
}

func sortedValues[T any](src map[int64]T, id func(T) int64) []T {
	out := make([]T, 0, len(src))
	for _, v := range src {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

func (m *MemStore) UserByName(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemStore) CreateUser(_ context.Context, u *model.User) error {
	if len(u.Username) > maxUsernameLen {
		return ErrValueTooLong
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		u.ID = m.alloc("users")
	} else {
		m.claim("users", u.ID)
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemStore) DeleteUser(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *MemStore) PlayerByUser(_ context.Context, userID int64) (*model.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.players {
		if p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemStore) CreatePlayer(_ context.Context, p *model.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.alloc("players")
	} else {
		m.claim("players", p.ID)
	}
	cp := *p
	m.players[p.ID] = &cp
	return nil
}

func (m *MemStore) DeletePlayer(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.players, id)
	return nil
}

func (m *MemStore) CreateBank(_ context.Context, b *model.Bank) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == 0 {
		b.ID = m.alloc("banks")
	}
	cp := *b
	m.banks[b.ID] = &cp
	return nil
}

func (m *MemStore) Rooms(_ context.Context) ([]*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedValues(m.rooms, func(r *model.Room) int64 { return r.ID }), nil
}

// AddRoom seeds a room definition (test fixture helper).
func (m *MemStore) AddRoom(r *model.Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		r.ID = m.alloc("rooms")
	} else {
		m.claim("rooms", r.ID)
	}
	m.rooms[r.ID] = r
}

func (m *MemStore) Entities(_ context.Context) ([]*model.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedValues(m.entities, func(e *model.Entity) int64 { return e.ID }), nil
}

func (m *MemStore) CreateEntity(_ context.Context, e *model.Entity) error {
	if len(e.Name) > maxNameLen {
		return ErrValueTooLong
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == 0 {
		e.ID = m.alloc("entities")
	} else {
		m.claim("entities", e.ID)
	}
	cp := *e
	m.entities[e.ID] = &cp
	return nil
}

func (m *MemStore) DeleteEntity(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entities, id)
	return nil
}

func (m *MemStore) Items(_ context.Context) ([]*model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedValues(m.items, func(i *model.Item) int64 { return i.ID }), nil
}

// AddItem seeds an item definition (test fixture helper).
func (m *MemStore) AddItem(i *model.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i.ID == 0 {
		i.ID = m.alloc("items")
	} else {
		m.claim("items", i.ID)
	}
	m.items[i.ID] = i
}

func (m *MemStore) Portals(_ context.Context) ([]*model.Portal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedValues(m.portals, func(p *model.Portal) int64 { return p.ID }), nil
}

// AddPortal seeds a portal definition (test fixture helper).
func (m *MemStore) AddPortal(p *model.Portal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.alloc("portals")
	}
	m.portals[p.ID] = p
}

func (m *MemStore) ResourceNodes(_ context.Context) ([]*model.ResourceNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedValues(m.nodes, func(n *model.ResourceNode) int64 { return n.ID }), nil
}

// AddResourceNode seeds a node definition (test fixture helper).
func (m *MemStore) AddResourceNode(n *model.ResourceNode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == 0 {
		n.ID = m.alloc("nodes")
	}
	m.nodes[n.ID] = n
}

func (m *MemStore) DropTableItems(_ context.Context, dropTableID int64) ([]*model.DropTableItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := sortedValues(m.dropItems, func(d *model.DropTableItem) int64 { return d.ID })
	out := all[:0]
	for _, d := range all {
		if d.DropTableID == dropTableID {
			out = append(out, d)
		}
	}
	return out, nil
}

// AddDropTableItem seeds a droptable row (test fixture helper).
func (m *MemStore) AddDropTableItem(d *model.DropTableItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == 0 {
		d.ID = m.alloc("dropitems")
	}
	m.dropItems[d.ID] = d
}

func (m *MemStore) Instances(_ context.Context) ([]*model.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := sortedValues(m.instances, func(i *model.Instance) int64 { return i.ID })
	cps := make([]*model.Instance, len(out))
	for i, inst := range out {
		cp := *inst
		cps[i] = &cp
	}
	return cps, nil
}

func (m *MemStore) InstanceByEntity(_ context.Context, entityID int64) (*model.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range m.instances {
		if i.EntityID == entityID {
			cp := *i
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemStore) CreateInstance(_ context.Context, inst *model.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst.ID == 0 {
		inst.ID = m.alloc("instances")
	} else {
		m.claim("instances", inst.ID)
	}
	cp := *inst
	m.instances[inst.ID] = &cp
	return nil
}

func (m *MemStore) UpdateInstance(_ context.Context, inst *model.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[inst.ID]; ok {
		cp := *inst
		m.instances[inst.ID] = &cp
	}
	return nil
}

func (m *MemStore) DeleteInstance(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.instances, id)
	return nil
}

func (m *MemStore) InventoryByPlayer(_ context.Context, playerID int64) ([]*model.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := sortedValues(m.inventoryItems, func(ii *model.InventoryItem) int64 { return ii.ID })
	var out []*model.InventoryItem
	for _, ii := range all {
		if ii.PlayerID == playerID {
			cp := *ii
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemStore) CreateInventoryItem(_ context.Context, ii *model.InventoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ii.ID == 0 {
		ii.ID = m.alloc("inventory")
	} else {
		m.claim("inventory", ii.ID)
	}
	cp := *ii
	m.inventoryItems[ii.ID] = &cp
	return nil
}

func (m *MemStore) UpdateInventoryItem(_ context.Context, ii *model.InventoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inventoryItems[ii.ID]; ok {
		cp := *ii
		m.inventoryItems[ii.ID] = &cp
	}
	return nil
}

func (m *MemStore) DeleteInventoryItem(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inventoryItems, id)
	return nil
}

var _ Store = (*MemStore)(nil)
