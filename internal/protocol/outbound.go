package protocol

// Pre-built packet constructors for packets that carry no entity state.
// Entity-bearing packets (figures, bricks, bots) are encoded by the world.

// KickPrefix is prepended to every kick reason shown by the client.
const KickPrefix = "[You were kicked]\n\nReason: "

// BuildKick creates the PlayerModification packet that shows a kick dialog.
// Format: [type][string "kick"][string reason]
func BuildKick(reason string) *PacketWriter {
	return NewPacketWriter(OutPlayerModification).
		WriteString("kick").
		WriteString(KickPrefix + reason)
}

// BuildChat creates a chat line. Colour tags are converted.
func BuildChat(message string) *PacketWriter {
	return NewPacketWriter(OutChat).WriteString(FormatHex(message))
}

// BuildRawChat creates a chat line from text that is already formatted.
func BuildRawChat(message string) *PacketWriter {
	return NewPacketWriter(OutChat).WriteString(message)
}

// PrintKind selects the screen region of a timed print.
type PrintKind string

const (
	TopPrint    PrintKind = "topPrint"
	CenterPrint PrintKind = "centerPrint"
	BottomPrint PrintKind = "bottomPrint"
)

// BuildPrint creates a timed on-screen message.
// Format: [type][string kind][string message][uint32 seconds]
func BuildPrint(kind PrintKind, message string, seconds uint32) *PacketWriter {
	return NewPacketWriter(OutPlayerModification).
		WriteString(string(kind)).
		WriteString(FormatHex(message)).
		WriteUInt32(seconds)
}

// BuildPrompt creates a modal prompt.
func BuildPrompt(message string) *PacketWriter {
	return NewPacketWriter(OutPlayerModification).
		WriteString("prompt").
		WriteString(message)
}

// BuildRemovePlayer announces that a player left.
func BuildRemovePlayer(netID uint32) *PacketWriter {
	return NewPacketWriter(OutRemovePlayer).WriteUInt32(netID)
}

// BuildKill sets the death state of a player. The client reads the net id
// as a float.
func BuildKill(netID uint32, dead bool) *PacketWriter {
	return NewPacketWriter(OutKill).
		WriteFloat(float32(netID)).
		WriteBool(dead)
}

// BuildClearMap removes every brick. The client ignores empty packets, so
// a placeholder flag is written.
func BuildClearMap() *PacketWriter {
	return NewPacketWriter(OutClearMap).WriteBool(true)
}

// BuildDeleteBricks removes a batch of bricks by net id.
func BuildDeleteBricks(netIDs []uint32) *PacketWriter {
	w := NewPacketWriter(OutDeleteBrick).WriteUInt32(uint32(len(netIDs)))
	for _, id := range netIDs {
		w.WriteUInt32(id)
	}
	return w
}

// BuildDestroyBot removes a bot.
func BuildDestroyBot(netID uint32) *PacketWriter {
	return NewPacketWriter(OutDestroyBot).WriteUInt32(netID)
}

// BuildTeam defines a team.
// Format: [type][uint32 netId][string name][uint32 colour]
func BuildTeam(netID uint32, name, color string) *PacketWriter {
	return NewPacketWriter(OutTeam).
		WriteUInt32(netID).
		WriteString(name).
		WriteUInt32(HexToDec(color, false))
}

// BuildTool adds (create=true) or removes a tool from an inventory.
// Format: [type][bool create][uint32 slot][string name][uint32 model]
func BuildTool(create bool, slotID uint32, name string, model uint32) *PacketWriter {
	return NewPacketWriter(OutTool).
		WriteBool(create).
		WriteUInt32(slotID).
		WriteString(name).
		WriteUInt32(model)
}

// AuthInfo is the session summary sent after a successful login.
type AuthInfo struct {
	NetID          uint32
	BrickCount     uint32
	UserID         uint32
	Username       string
	Admin          bool
	MembershipType uint8
}

// BuildAuthInfo creates the Authentication packet.
func BuildAuthInfo(info AuthInfo) *PacketWriter {
	return NewPacketWriter(OutAuthentication).
		WriteUInt32(info.NetID).
		WriteUInt32(info.BrickCount).
		WriteUInt32(info.UserID).
		WriteString(info.Username).
		WriteBool(info.Admin).
		WriteUInt8(info.MembershipType)
}

// PlayerEntry is one row of a SendPlayers packet.
type PlayerEntry struct {
	NetID          uint32
	Username       string
	UserID         uint32
	Admin          bool
	MembershipType uint8
}

// BuildSendPlayers creates a player list packet. Lists longer than 255
// entries are truncated to fit the count byte.
// Format: [type][uint8 count]{[uint32 netId][string name][uint32 userId][uint8 admin][uint8 membership]}
func BuildSendPlayers(entries []PlayerEntry) *PacketWriter {
	if len(entries) > 255 {
		entries = entries[:255]
	}
	w := NewPacketWriter(OutSendPlayers).WriteUInt8(uint8(len(entries)))
	for _, e := range entries {
		w.WriteUInt32(e.NetID).
			WriteString(e.Username).
			WriteUInt32(e.UserID).
			WriteBool(e.Admin).
			WriteUInt8(e.MembershipType)
	}
	return w
}

// Environment keys understood by the client.
const (
	EnvAmbient  = "Ambient"
	EnvSky      = "Sky"
	EnvBaseCol  = "BaseCol"
	EnvBaseSize = "BaseSize"
	EnvSun      = "Sun"
)

// BuildEnvironmentValue sets one numeric environment property.
func BuildEnvironmentValue(key string, value uint32) *PacketWriter {
	return NewPacketWriter(OutPlayerModification).
		WriteString(key).
		WriteUInt32(value)
}

// BuildWeather switches the weather. name is the client keyword, such as
// "WeatherSnow".
func BuildWeather(name string) *PacketWriter {
	return NewPacketWriter(OutPlayerModification).WriteString(name)
}
