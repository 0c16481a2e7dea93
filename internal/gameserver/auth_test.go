package gameserver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moonvale/moonmud/internal/packet"
)

func TestRegisterThenLoginSequence(t *testing.T) {
	f := newFixture(t)
	f.addRoom(1, "village", 5, 5)
	f.start()
	c := f.conn()

	f.g.dispatch(f.ctx, c, packet.Register{Username: "ada", Password: "pw"})
	require.Equal(t, []packet.Message{packet.Ok{}}, drain(c))

	f.g.dispatch(f.ctx, c, packet.Login{Username: "ada", Password: "pw"})
	out := drain(c)
	require.Equal(t, []packet.Kind{
		packet.KindOk,
		packet.KindMoveRooms,
		packet.KindOk,
		packet.KindServerModel, // Room
		packet.KindServerModel, // Instance
		packet.KindServerModel, // Player
		packet.KindWeatherChange,
	}, kindsOf(out))

	require.Equal(t, "Room", out[3].(packet.ServerModel).Tag)
	inst := out[4].(packet.ServerModel)
	require.Equal(t, "Instance", inst.Tag)
	require.Equal(t, int32(0), inst.Model["y"])
	require.Equal(t, int32(0), inst.Model["x"])
	require.Equal(t, "Player", out[5].(packet.ServerModel).Tag)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	f := newFixture(t)
	f.addRoom(1, "village", 5, 5)
	f.start()

	c := f.conn()
	f.g.dispatch(f.ctx, c, packet.Register{Username: "ada", Password: "pw"})
	drain(c)

	c2 := f.conn()
	f.g.dispatch(f.ctx, c2, packet.Register{Username: "ada", Password: "other"})
	require.Equal(t, []packet.Message{packet.Deny{Reason: "Somebody else already goes by that name"}}, drain(c2))
}

func TestRegisterBlankCredentials(t *testing.T) {
	f := newFixture(t)
	f.addRoom(1, "village", 5, 5)
	f.start()
	c := f.conn()

	f.g.dispatch(f.ctx, c, packet.Register{Username: "", Password: "pw"})
	d, ok := findDeny(drain(c))
	require.True(t, ok)
	require.NotEmpty(t, d.Reason)
}

func TestRegisterOversizeUsernameRollsBack(t *testing.T) {
	f := newFixture(t)
	f.addRoom(1, "village", 5, 5)
	f.start()
	c := f.conn()

	long := "aaaaaaaaaaaaaaaaaaaaaaaaaaaa" // 28 > 20 column limit
	f.g.dispatch(f.ctx, c, packet.Register{Username: long, Password: "pw"})
	require.Equal(t, []packet.Message{packet.Deny{Reason: "Error. Value too long."}}, drain(c))

	u, err := f.store.UserByName(f.ctx, long)
	require.NoError(t, err)
	require.Nil(t, u)
}

func TestLoginUnknownUser(t *testing.T) {
	f := newFixture(t)
	f.addRoom(1, "village", 5, 5)
	f.start()
	c := f.conn()

	f.g.dispatch(f.ctx, c, packet.Login{Username: "ghost", Password: "pw"})
	require.Equal(t, []packet.Message{packet.Deny{Reason: "I don't know anybody by that name"}}, drain(c))
	require.Equal(t, StateGetEntry, c.state)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.addRoom(1, "village", 5, 5)
	f.start()
	c := f.conn()

	f.g.dispatch(f.ctx, c, packet.Register{Username: "ada", Password: "pw"})
	drain(c)

	f.g.dispatch(f.ctx, c, packet.Login{Username: "ada", Password: "nope"})
	require.Equal(t, []packet.Message{packet.Deny{Reason: "Incorrect password"}}, drain(c))
}

func TestSecondLoginDenied(t *testing.T) {
	f := newFixture(t)
	f.addRoom(1, "village", 5, 5)
	f.start()

	c1 := f.conn()
	f.registerAndLogin(c1, "ada", "pw")
	drain(c1)

	c2 := f.conn()
	f.g.dispatch(f.ctx, c2, packet.Login{Username: "ada", Password: "pw"})
	require.Equal(t, []packet.Message{packet.Deny{Reason: "ada is already inhabiting this realm."}}, drain(c2))

	// The original session is unaffected.
	require.Equal(t, StatePlay, c1.state)
	require.True(t, c1.loggedIn)
	require.Empty(t, drain(c1))
}

func TestLogoutDetachesButKeepsAvatar(t *testing.T) {
	f := newFixture(t)
	f.addRoom(1, "village", 5, 5)
	f.start()

	c1 := f.conn()
	f.registerAndLogin(c1, "ada", "pw")
	c2 := f.conn()
	f.registerAndLogin(c2, "bob", "pw")
	drain(c1)
	drain(c2)

	adaInstance := c1.instance
	f.g.dispatch(f.ctx, c1, packet.Logout{Username: "ada"})

	out := drain(c1)
	require.Equal(t, packet.Ok{}, out[0])
	require.Equal(t, StateGetEntry, c1.state)
	require.Nil(t, c1.instance)

	// Bob is told ada's avatar left.
	require.Contains(t, drain(c2), packet.Goodbye{InstanceID: adaInstance.ID})

	// The avatar instance stays in the world at its last position.
	_, ok := f.g.reg.Instance(adaInstance.ID)
	require.True(t, ok)

	// And ada can log back in on the same connection.
	f.g.dispatch(f.ctx, c1, packet.Login{Username: "ada", Password: "pw"})
	require.Equal(t, StatePlay, c1.state)
}

func TestDisconnectActsLikeLogout(t *testing.T) {
	f := newFixture(t)
	f.addRoom(1, "village", 5, 5)
	f.start()

	c1 := f.conn()
	f.registerAndLogin(c1, "ada", "pw")
	player := c1.player

	f.g.handleDisconnect(f.ctx, c1)
	require.False(t, c1.loggedIn)
	require.Nil(t, f.g.byPlayer[player.ID])
}
