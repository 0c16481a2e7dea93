// Package packet defines the closed set of typed messages exchanged
// with clients and their binary codec. A payload is a sequence of
// length-tagged slots; the first slot holds the message-kind
// discriminator, the rest follow each message's fixed slot order.
package packet

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates message types on the wire.
type Kind byte

const (
	KindClientKey Kind = iota + 1
	KindLogin
	KindRegister
	KindOk
	KindDeny
	KindWelcome
	KindServerTickRate
	KindMoveUp
	KindMoveRight
	KindMoveDown
	KindMoveLeft
	KindMoveRooms
	KindChat
	KindGrabItem
	KindDropItem
	KindLogout
	KindGoodbye
	KindServerLog
	KindServerModel
	KindWeatherChange
)

// Message is one protocol message in either direction.
type Message interface {
	Kind() Kind
}

// ClientKey announces a public key: modulus bytes (big-endian) and
// exponent. Sent unencrypted by each side during the handshake.
type ClientKey struct {
	N []byte
	E int64
}

// Login requests authentication for an existing user.
type Login struct {
	Username string
	Password string
}

// Register requests creation of a new user.
type Register struct {
	Username string
	Password string
}

// Ok acknowledges the previous request.
type Ok struct{}

// Deny rejects a request with a human-readable reason.
type Deny struct {
	Reason string
}

// Welcome carries the greeting banner shown after the key exchange.
type Welcome struct {
	Banner string
}

// ServerTickRate announces how many world ticks run per second.
type ServerTickRate struct {
	TicksPerSecond int64
}

// Movement requests, one tile in the named direction.
type (
	MoveUp    struct{}
	MoveRight struct{}
	MoveDown  struct{}
	MoveLeft  struct{}
)

// MoveRooms tells the client its avatar switched to another room.
type MoveRooms struct {
	RoomID int64
}

// Chat carries a player's chat line.
type Chat struct {
	Text string
}

// GrabItem asks to pick up whatever stack shares the avatar's tile.
type GrabItem struct{}

// DropItem asks to drop the identified inventory row at the avatar's
// feet.
type DropItem struct {
	InventoryItemID int64
}

// Logout ends the named user's session.
type Logout struct {
	Username string
}

// Goodbye removes an instance from the receiver's view.
type Goodbye struct {
	InstanceID int64
}

// ServerLog is a line for the client's message log.
type ServerLog struct {
	Text string
}

// ServerModel pushes a model record: a tag naming the record type and
// a flattened attribute map (nested entity/item attributes inline).
type ServerModel struct {
	Tag   string
	Model map[string]any
}

// WeatherChange announces the world weather state.
type WeatherChange struct {
	State string
}

func (ClientKey) Kind() Kind      { return KindClientKey }
func (Login) Kind() Kind          { return KindLogin }
func (Register) Kind() Kind       { return KindRegister }
func (Ok) Kind() Kind             { return KindOk }
func (Deny) Kind() Kind           { return KindDeny }
func (Welcome) Kind() Kind        { return KindWelcome }
func (ServerTickRate) Kind() Kind { return KindServerTickRate }
func (MoveUp) Kind() Kind         { return KindMoveUp }
func (MoveRight) Kind() Kind      { return KindMoveRight }
func (MoveDown) Kind() Kind       { return KindMoveDown }
func (MoveLeft) Kind() Kind       { return KindMoveLeft }
func (MoveRooms) Kind() Kind      { return KindMoveRooms }
func (Chat) Kind() Kind           { return KindChat }
func (GrabItem) Kind() Kind       { return KindGrabItem }
func (DropItem) Kind() Kind       { return KindDropItem }
func (Logout) Kind() Kind         { return KindLogout }
func (Goodbye) Kind() Kind        { return KindGoodbye }
func (ServerLog) Kind() Kind      { return KindServerLog }
func (ServerModel) Kind() Kind    { return KindServerModel }
func (WeatherChange) Kind() Kind  { return KindWeatherChange }

// Encode serialises a message to its wire payload.
func Encode(m Message) ([]byte, error) {
	w := NewWriter()
	w.WriteBytes([]byte{byte(m.Kind())})

	switch v := m.(type) {
	case ClientKey:
		w.WriteBytes(v.N)
		w.WriteInt(v.E)
	case Login:
		w.WriteString(v.Username)
		w.WriteString(v.Password)
	case Register:
		w.WriteString(v.Username)
		w.WriteString(v.Password)
	case Ok, MoveUp, MoveRight, MoveDown, MoveLeft, GrabItem:
		// no payload slots
	case Deny:
		w.WriteString(v.Reason)
	case Welcome:
		w.WriteString(v.Banner)
	case ServerTickRate:
		w.WriteInt(v.TicksPerSecond)
	case MoveRooms:
		w.WriteInt(v.RoomID)
	case Chat:
		w.WriteString(v.Text)
	case DropItem:
		w.WriteInt(v.InventoryItemID)
	case Logout:
		w.WriteString(v.Username)
	case Goodbye:
		w.WriteInt(v.InstanceID)
	case ServerLog:
		w.WriteString(v.Text)
	case ServerModel:
		blob, err := json.Marshal(v.Model)
		if err != nil {
			return nil, fmt.Errorf("encoding ServerModel %q: %w", v.Tag, err)
		}
		w.WriteString(v.Tag)
		w.WriteBytes(blob)
	case WeatherChange:
		w.WriteString(v.State)
	default:
		return nil, fmt.Errorf("encoding: unhandled message type %T", m)
	}
	return w.Bytes(), nil
}

// Decode parses a wire payload back into a typed message. Unknown
// discriminators are rejected.
func Decode(data []byte) (Message, error) {
	r := NewReader(data)
	tag, err := r.ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("decoding kind: %w", err)
	}
	if len(tag) != 1 {
		return nil, fmt.Errorf("decoding kind: discriminator slot is %d bytes, want 1", len(tag))
	}

	switch Kind(tag[0]) {
	case KindClientKey:
		n, err := r.ReadBytes()
		if err != nil {
			return nil, fmt.Errorf("decoding ClientKey: %w", err)
		}
		e, err := r.ReadInt()
		if err != nil {
			return nil, fmt.Errorf("decoding ClientKey: %w", err)
		}
		// Copy the modulus out of the frame buffer; the key outlives it.
		modulus := make([]byte, len(n))
		copy(modulus, n)
		return ClientKey{N: modulus, E: e}, nil
	case KindLogin:
		user, pass, err := readCredentials(r)
		if err != nil {
			return nil, fmt.Errorf("decoding Login: %w", err)
		}
		return Login{Username: user, Password: pass}, nil
	case KindRegister:
		user, pass, err := readCredentials(r)
		if err != nil {
			return nil, fmt.Errorf("decoding Register: %w", err)
		}
		return Register{Username: user, Password: pass}, nil
	case KindOk:
		return Ok{}, nil
	case KindDeny:
		reason, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("decoding Deny: %w", err)
		}
		return Deny{Reason: reason}, nil
	case KindWelcome:
		banner, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("decoding Welcome: %w", err)
		}
		return Welcome{Banner: banner}, nil
	case KindServerTickRate:
		hz, err := r.ReadInt()
		if err != nil {
			return nil, fmt.Errorf("decoding ServerTickRate: %w", err)
		}
		return ServerTickRate{TicksPerSecond: hz}, nil
	case KindMoveUp:
		return MoveUp{}, nil
	case KindMoveRight:
		return MoveRight{}, nil
	case KindMoveDown:
		return MoveDown{}, nil
	case KindMoveLeft:
		return MoveLeft{}, nil
	case KindMoveRooms:
		id, err := r.ReadInt()
		if err != nil {
			return nil, fmt.Errorf("decoding MoveRooms: %w", err)
		}
		return MoveRooms{RoomID: id}, nil
	case KindChat:
		text, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("decoding Chat: %w", err)
		}
		return Chat{Text: text}, nil
	case KindGrabItem:
		return GrabItem{}, nil
	case KindDropItem:
		id, err := r.ReadInt()
		if err != nil {
			return nil, fmt.Errorf("decoding DropItem: %w", err)
		}
		return DropItem{InventoryItemID: id}, nil
	case KindLogout:
		user, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("decoding Logout: %w", err)
		}
		return Logout{Username: user}, nil
	case KindGoodbye:
		id, err := r.ReadInt()
		if err != nil {
			return nil, fmt.Errorf("decoding Goodbye: %w", err)
		}
		return Goodbye{InstanceID: id}, nil
	case KindServerLog:
		text, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("decoding ServerLog: %w", err)
		}
		return ServerLog{Text: text}, nil
	case KindServerModel:
		modelTag, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("decoding ServerModel: %w", err)
		}
		blob, err := r.ReadBytes()
		if err != nil {
			return nil, fmt.Errorf("decoding ServerModel: %w", err)
		}
		var dict map[string]any
		if err := json.Unmarshal(blob, &dict); err != nil {
			return nil, fmt.Errorf("decoding ServerModel %q dict: %w", modelTag, err)
		}
		return ServerModel{Tag: modelTag, Model: dict}, nil
	case KindWeatherChange:
		state, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("decoding WeatherChange: %w", err)
		}
		return WeatherChange{State: state}, nil
	}
	return nil, fmt.Errorf("decoding: unknown discriminator 0x%02x", tag[0])
}

func readCredentials(r *Reader) (string, string, error) {
	user, err := r.ReadString()
	if err != nil {
		return "", "", fmt.Errorf("reading username: %w", err)
	}
	pass, err := r.ReadString()
	if err != nil {
		return "", "", fmt.Errorf("reading password: %w", err)
	}
	return user, pass, nil
}
