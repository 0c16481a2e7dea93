package gameserver

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/moonvale/moonmud/internal/config"
	"github.com/moonvale/moonmud/internal/db"
	"github.com/moonvale/moonmud/internal/maps"
	"github.com/moonvale/moonmud/internal/model"
	"github.com/moonvale/moonmud/internal/packet"
	"github.com/moonvale/moonmud/internal/scheduler"
	"github.com/moonvale/moonmud/internal/world"
)

// WelcomeBanner greets every client after the key exchange.
const WelcomeBanner = "Welcome to MoonvaleMUD\n ,-,-.\n/.( +.\\\n\\ {. */\n `-`-'\n     Enjoy your stay ~"

// Weather states cycled by the driver.
var weatherStates = []string{"Clear", "Rain"}

const (
	// despawnSeconds is how long a dropped stack survives on the
	// ground.
	despawnSeconds = 120
	// weatherEverySeconds is the cadence of weather rolls.
	weatherEverySeconds = 60
	// syncEverySeconds is the cadence of the authoritative
	// self-position push.
	syncEverySeconds = 1
)

// Game owns the world: registries, scheduler, connections and the
// tick loop. All world state is mutated on the tick goroutine only.
type Game struct {
	cfg   config.Server
	store db.Store
	reg   *world.Registry
	sched *scheduler.Scheduler
	rng   *rand.Rand

	tick     int64
	weather  string
	mapCache map[int64]*maps.Room

	conns    map[int64]*Conn
	byPlayer map[int64]*Conn // logged-in registry, keyed by player id
	byEntity map[int64]*Conn // avatar entity id → owning connection

	pendingMu sync.Mutex
	pending   []*Conn
}

// NewGame builds a game over an already-loaded registry.
func NewGame(cfg config.Server, store db.Store, reg *world.Registry) *Game {
	return &Game{
		cfg:      cfg,
		store:    store,
		reg:      reg,
		sched:    scheduler.New(),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		weather:  weatherStates[0],
		mapCache: make(map[int64]*maps.Room),
		conns:    make(map[int64]*Conn),
		byPlayer: make(map[int64]*Conn),
		byEntity: make(map[int64]*Conn),
	}
}

// TickRate returns the configured ticks per second.
func (g *Game) TickRate() int {
	return g.cfg.TickRate
}

// Adopt hands a freshly accepted connection to the tick goroutine.
// Called from the accept loop.
func (g *Game) Adopt(c *Conn) {
	g.pendingMu.Lock()
	g.pending = append(g.pending, c)
	g.pendingMu.Unlock()
}

// Run drives the world at the configured tick rate until ctx is
// cancelled.
func (g *Game) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(g.cfg.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("world tick driver started", "tickrate", g.cfg.TickRate)
	for {
		select {
		case <-ctx.Done():
			slog.Info("world tick driver stopping")
			return ctx.Err()
		case <-ticker.C:
			g.Step(ctx)
		}
	}
}

// Step advances the world one tick: adopt and reap connections, fire
// due deferred callbacks, advance each connection's FSM, run the
// periodic broadcasts, then flush every outbound queue.
func (g *Game) Step(ctx context.Context) {
	g.tick++

	g.adoptPending()
	g.reapClosed(ctx)

	g.sched.Advance(g.tick)

	for _, c := range g.sortedConns() {
		if msg := c.takeMailbox(); msg != nil {
			g.dispatch(ctx, c, msg)
		}
	}

	tickrate := int64(g.cfg.TickRate)
	if g.tick%(tickrate*syncEverySeconds) == 0 {
		g.syncPlayerInstances()
	}
	if g.tick%(tickrate*weatherEverySeconds) == 0 {
		g.rollWeather()
	}

	for _, c := range g.sortedConns() {
		c.flush()
	}
}

func (g *Game) adoptPending() {
	g.pendingMu.Lock()
	pending := g.pending
	g.pending = nil
	g.pendingMu.Unlock()
	for _, c := range pending {
		g.conns[c.id] = c
	}
}

func (g *Game) reapClosed(ctx context.Context) {
	for id, c := range g.conns {
		if c.Closed() {
			g.handleDisconnect(ctx, c)
			delete(g.conns, id)
		}
	}
}

func (g *Game) sortedConns() []*Conn {
	out := make([]*Conn, 0, len(g.conns))
	for _, c := range g.conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// connsInRoom snapshots the logged-in connections whose avatars
// occupy roomID.
func (g *Game) connsInRoom(roomID int64) []*Conn {
	var out []*Conn
	for _, c := range g.sortedConns() {
		if c.loggedIn && c.instance != nil && c.instance.RoomID == roomID {
			out = append(out, c)
		}
	}
	return out
}

// broadcastRoom enqueues msg to every logged-in connection in the
// room, optionally skipping one.
func (g *Game) broadcastRoom(roomID int64, msg packet.Message, except *Conn) {
	for _, c := range g.connsInRoom(roomID) {
		if c == except {
			continue
		}
		c.enqueue(msg)
	}
}

// roomMap returns the collision grid for a room, loading the map
// file on first use.
func (g *Game) roomMap(roomID int64) (*maps.Room, error) {
	if m, ok := g.mapCache[roomID]; ok {
		return m, nil
	}
	room, ok := g.reg.Room(roomID)
	if !ok {
		return nil, fmt.Errorf("loading room map: unknown room %d", roomID)
	}
	m, err := maps.Load(g.cfg.MapsDir, room.FileName, room.ID, room.Name)
	if err != nil {
		return nil, err
	}
	g.mapCache[roomID] = m
	return m, nil
}

// syncPlayerInstances pushes each avatar's authoritative record to
// its own client so position stays consistent even without motion.
func (g *Game) syncPlayerInstances() {
	for _, c := range g.sortedConns() {
		if c.loggedIn && c.instance != nil {
			c.enqueue(packet.ServerModel{Tag: "Instance", Model: g.instanceDict(c.instance)})
		}
	}
}

// rollWeather picks a random weather state and broadcasts the change
// to every connection when it differs.
func (g *Game) rollWeather() {
	next := weatherStates[g.rng.IntN(len(weatherStates))]
	if next == g.weather {
		return
	}
	g.weather = next
	slog.Info("weather changed", "state", next)
	for _, c := range g.sortedConns() {
		c.enqueue(packet.WeatherChange{State: next})
	}
}

// instanceKilledFromView removes a dead instance from every room
// member's visible set so later recomputes don't say goodbye twice.
func (g *Game) instanceKilledFromView(roomID, instanceID int64) {
	for _, c := range g.connsInRoom(roomID) {
		delete(c.visible, instanceID)
	}
}

// recomputeRoomViews re-runs the visible-set diff for every
// connection in the room.
func (g *Game) recomputeRoomViews(roomID int64) {
	for _, c := range g.connsInRoom(roomID) {
		g.processVisibleInstances(c)
	}
}

// persistInstance writes an instance's current placement through to
// the store.
func (g *Game) persistInstance(ctx context.Context, inst *model.Instance) {
	if err := g.store.UpdateInstance(ctx, inst); err != nil {
		slog.Error("persisting instance", "instance", inst.ID, "error", err)
	}
}
