package protocol

// Packet types used by the netstream command.  A real session layer
// supplies its own table.
const (
	TypeHello   uint16 = 1 // 2 bytes: protocol revision
	TypeChat    uint16 = 2 // ChatLength bytes: NUL-padded text
	TypePing    uint16 = 3 // 8 bytes: sender's monotonic nanoseconds
	TypePong    uint16 = 4 // 8 bytes: echoed ping payload
	TypeGoodbye uint16 = 5 // no payload
)

// ChatLength is the fixed size of a chat payload.
const ChatLength = 128

// Revision is sent in the hello packet.
const Revision uint16 = 1

// DefaultEntries is the built-in table.
var DefaultEntries = []Entry{
	{Type: TypeHello, Name: "hello", Length: 2},
	{Type: TypeChat, Name: "chat", Length: ChatLength},
	{Type: TypePing, Name: "ping", Length: 8},
	{Type: TypePong, Name: "pong", Length: 8},
	{Type: TypeGoodbye, Name: "goodbye", Length: 0},
}

// Default returns a fresh copy of the built-in table.
func Default() *Table {
	t, err := NewTable(DefaultEntries...)
	if err != nil {
		panic(err) // DefaultEntries is static and valid
	}
	return t
}
