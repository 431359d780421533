package bridge

import (
	"encoding/json"
	"strconv"
)

// Outbound is a message raised by a running game toward the host page.
type Outbound interface {
	outboundName() string
}

type (
	// Ready is raised once the runtime can receive credentials.
	Ready struct{}
	// Hello is the runtime's startup ping; it carries nothing.
	Hello struct{}
	// Loaded means the first frame is on screen.
	Loaded  struct{}
	Balance struct{ Amount float64 }
	// NavigateLobby asks to leave the game for the lobby.
	NavigateLobby struct{}
	Logout        struct{}
	// ServerMessage is an opaque payload for the realtime socket.
	ServerMessage struct{ Payload string }
	LowBalance    struct{}
	Inactive      struct{}
	MusicVolume   struct{ Level float64 }
	SoundVolume   struct{ Level float64 }
)

func (Ready) outboundName() string         { return "ready" }
func (Hello) outboundName() string         { return "hello" }
func (Loaded) outboundName() string        { return "loaded" }
func (Balance) outboundName() string       { return "balance" }
func (NavigateLobby) outboundName() string { return "navigate_lobby" }
func (Logout) outboundName() string        { return "logout" }
func (ServerMessage) outboundName() string { return "server_message" }
func (LowBalance) outboundName() string    { return "low_balance" }
func (Inactive) outboundName() string      { return "inactive" }
func (MusicVolume) outboundName() string   { return "music_volume" }
func (SoundVolume) outboundName() string   { return "sound_volume" }

const (
	textGameReady = "GAME_READY"
	textHello     = "HelloFromUnity"
)

// ParseRuntimeText maps the free-form strings a 3D build sends through its
// JS hook. Anything that is not a control word is a socket payload.
func ParseRuntimeText(text string) Outbound {
	switch text {
	case textGameReady:
		return Ready{}
	case textHello:
		return Hello{}
	default:
		return ServerMessage{Payload: text}
	}
}

// RuntimeEvent is the JSON shape of an outbound message posted by an
// embedding page on behalf of a runtime.
type RuntimeEvent struct {
	Type    string   `json:"type"`
	Text    string   `json:"text,omitempty"`
	Amount  *float64 `json:"amount,omitempty"`
	Level   *float64 `json:"level,omitempty"`
	Payload string   `json:"payload,omitempty"`
}

// Decode converts an event into its typed form. ok is false for unknown
// types.
func (e RuntimeEvent) Decode() (Outbound, bool) {
	switch e.Type {
	case "text":
		return ParseRuntimeText(e.Text), true
	case "ready":
		return Ready{}, true
	case "hello":
		return Hello{}, true
	case "loaded":
		return Loaded{}, true
	case "balance":
		if e.Amount == nil {
			return nil, false
		}
		return Balance{Amount: *e.Amount}, true
	case "navigate_lobby":
		return NavigateLobby{}, true
	case "logout":
		return Logout{}, true
	case "server_message":
		return ServerMessage{Payload: e.Payload}, true
	case "low_balance":
		return LowBalance{}, true
	case "inactive":
		return Inactive{}, true
	case "music_volume":
		if e.Level == nil {
			return nil, false
		}
		return MusicVolume{Level: *e.Level}, true
	case "sound_volume":
		if e.Level == nil {
			return nil, false
		}
		return SoundVolume{Level: *e.Level}, true
	}
	return nil, false
}

// Inbound is a message the host pushes into a running game. Object and
// method name the receiving entry point inside the runtime.
type Inbound interface {
	Target() (object, method string)
	Value() any
}

type (
	ServerURL     struct{ URL string }
	SessionToken  struct{ Token string }
	CSRFToken     struct{ Token string }
	BetInfo       struct{ Info string }
	GameDetails   struct{ Slug, BuildURL string }
	MusicSettings struct{ Level float64 }
	SoundSettings struct{ Level float64 }
	// SocketMessage relays one realtime frame untouched.
	SocketMessage struct{ Raw json.RawMessage }
)

func (ServerURL) Target() (string, string)     { return "WebSocket", "OnServerUrlReceived" }
func (SessionToken) Target() (string, string)  { return "WebSocket", "OnJSSessionVarReceived" }
func (CSRFToken) Target() (string, string)     { return "WebSocket", "OnCrfTokenReceived" }
func (BetInfo) Target() (string, string)       { return "WebSocket", "getBetInfo" }
func (GameDetails) Target() (string, string)   { return "WebSocket", "GameDetails" }
func (MusicSettings) Target() (string, string) { return "SoundManager", "MusicSettingsFromWeb" }
func (SoundSettings) Target() (string, string) { return "SoundManager", "SoundSettingsFromWeb" }
func (SocketMessage) Target() (string, string) { return "WebSocketBridge", "ReceiveMessageFromJS" }

func (m ServerURL) Value() any     { return m.URL }
func (m SessionToken) Value() any  { return m.Token }
func (m CSRFToken) Value() any     { return m.Token }
func (m BetInfo) Value() any       { return m.Info }
func (m GameDetails) Value() any   { return m.Slug + "," + m.BuildURL }
func (m MusicSettings) Value() any { return m.Level }
func (m SoundSettings) Value() any { return m.Level }
func (m SocketMessage) Value() any { return string(m.Raw) }

type inboundWire struct {
	Object string `json:"object"`
	Method string `json:"method"`
	Value  any    `json:"value"`
}

// EncodeInbound renders msg for an embedding page.
func EncodeInbound(msg Inbound) ([]byte, error) {
	object, method := msg.Target()
	return json.Marshal(inboundWire{Object: object, Method: method, Value: msg.Value()})
}

const defaultVolume = 0.50

func parseVolume(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return defaultVolume
	}
	return v
}

func formatVolume(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
