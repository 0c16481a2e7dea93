package gameserver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moonvale/moonmud/internal/packet"
)

func TestStepSyncsSelfInstance(t *testing.T) {
	f := newFixture(t)
	f.addRoom(1, "village", 5, 5)
	f.start()
	c := f.conn()
	f.registerAndLogin(c, "ada", "pw")
	drain(c)

	// Walk the driver to the sync cadence boundary. flush() empties
	// the queues, so capture what Step enqueued by stepping to one
	// tick short, draining, then crossing the boundary manually.
	for range testTickRate*syncEverySeconds - 1 {
		f.g.Step(f.ctx)
	}
	c.outgoing = nil
	f.g.tick++
	f.g.sched.Advance(f.g.tick)
	f.g.syncPlayerInstances()

	models := instanceModels(c.outgoing)
	require.Len(t, models, 1)
	require.Equal(t, c.instance.ID, models[0].Model["id"])
}

func TestStepReapsClosedConnections(t *testing.T) {
	f := newFixture(t)
	f.addRoom(1, "village", 5, 5)
	f.start()

	ada := f.conn()
	f.registerAndLogin(ada, "ada", "pw")
	bob := f.conn()
	f.registerAndLogin(bob, "bob", "pw")
	drain(ada)
	drain(bob)

	adaInstance := ada.instance
	adaPlayer := ada.player
	ada.closed.Store(true)
	f.g.Step(f.ctx)

	require.NotContains(t, f.g.conns, ada.id)
	require.False(t, ada.loggedIn)

	require.Nil(t, f.g.byPlayer[adaPlayer.ID])
	_, ok := f.g.reg.Instance(adaInstance.ID)
	require.True(t, ok, "avatar stays in the world")
}

func TestWeatherBroadcastOnTransition(t *testing.T) {
	f := newFixture(t)
	f.addRoom(1, "village", 5, 5)
	f.start()
	c := f.conn()
	f.registerAndLogin(c, "ada", "pw")
	drain(c)

	before := f.g.weather
	// The roll is random; force transitions until one lands.
	changed := false
	for range 200 {
		f.g.rollWeather()
		if f.g.weather != before {
			changed = true
			break
		}
	}
	require.True(t, changed)

	var got []packet.WeatherChange
	for _, m := range drain(c) {
		if wc, ok := m.(packet.WeatherChange); ok {
			got = append(got, wc)
		}
	}
	require.Len(t, got, 1)
	require.Equal(t, f.g.weather, got[0].State)
}

func TestDeferredCallbacksRunBeforeDispatch(t *testing.T) {
	f := newFixture(t)
	f.addRoom(1, "village", 5, 5)
	f.start()
	c := f.conn()
	f.registerAndLogin(c, "ada", "pw")
	drain(c)

	// The deferred callback fires while the chat is still waiting in
	// the mailbox: callbacks run before FSM advances within a tick.
	pendingAtFire := false
	f.g.sched.Schedule(1, 0, func() {
		c.mailboxMu.Lock()
		pendingAtFire = c.mailbox != nil
		c.mailboxMu.Unlock()
	})
	c.putMailbox(packet.Chat{Text: "hi"})

	f.g.Step(f.ctx)
	require.True(t, pendingAtFire)
	require.Nil(t, c.takeMailbox(), "dispatch consumed the mailbox in the same tick")
}
