package wire

// Type is the mandatory string discriminator every frame carries.
type Type string

const (
	TypeSignup      Type = "signup"
	TypeSignin      Type = "signin"
	TypeDisconnect  Type = "disconnect"
	TypePendingRoom Type = "pending_room"
	TypePublic      Type = "public"
	TypePrivate     Type = "private"

	TypeKick     Type = "kick"
	TypeKickIP   Type = "kick_ip"
	TypeUnkick   Type = "unkick"
	TypeUnkickIP Type = "unkick_ip"
	TypeBan      Type = "ban"
	TypeBanIP    Type = "ban_ip"
	TypeUnban    Type = "unban"
	TypeUnbanIP  Type = "unban_ip"
	TypeKill     Type = "kill"
)

// Status values used across response frames.
const (
	StatusOK    = "ok"
	StatusError = "error"
	StatusKick  = "kick"
	StatusBan   = "ban"
)

// Envelope is a frame that carries only its type tag, such as a disconnect
// request.
type Envelope struct {
	Type Type `json:"type"`
}

// SignupRequest: client -> server.
type SignupRequest struct {
	Type     Type   `json:"type"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// SigninRequest: client -> server.
type SigninRequest struct {
	Type     Type   `json:"type"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// PendingRoomRequest: client -> server.
type PendingRoomRequest struct {
	Type Type   `json:"type"`
	Room string `json:"room"`
}

// PublicRequest: client -> server.
type PublicRequest struct {
	Type    Type   `json:"type"`
	Room    string `json:"room"`
	Message string `json:"message"`
}

// PrivateRequest: client -> server.
type PrivateRequest struct {
	Type    Type   `json:"type"`
	To      string `json:"to"`
	User    string `json:"user"`
	Message string `json:"message"`
}

// AuthResponse covers both signup and signin replies.
type AuthResponse struct {
	Type     Type     `json:"type"`
	Status   string   `json:"status"`
	Reason   string   `json:"reason,omitempty"`
	AllRooms []string `json:"all_rooms,omitempty"`
	Rooms    []string `json:"rooms,omitempty"`
	Timeout  string   `json:"timeout,omitempty"`
}

// PendingRoomResponse: server -> client.
type PendingRoomResponse struct {
	Type   Type   `json:"type"`
	Status string `json:"status"`
	Room   string `json:"room,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// PublicResponse covers both the relayed broadcast and the error case.
type PublicResponse struct {
	Type    Type   `json:"type"`
	Room    string `json:"room,omitempty"`
	User    string `json:"user,omitempty"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// PrivateResponse: server -> client.
type PrivateResponse struct {
	Type   Type   `json:"type"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// DisconnectResponse: server -> client.
type DisconnectResponse struct {
	Type   Type   `json:"type"`
	Status string `json:"status"`
}

// ModerationNotice covers the unsolicited kick/kick_ip/ban/ban_ip/kill
// frames the registry pushes to affected sessions.
type ModerationNotice struct {
	Type    Type   `json:"type"`
	Timeout string `json:"timeout,omitempty"`
	Reason  string `json:"reason,omitempty"`
}
