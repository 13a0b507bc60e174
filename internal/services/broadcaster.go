package services

// Broadcaster is the live fan-out surface the services publish into. The
// hub implements it; tests substitute an in-memory recorder.
type Broadcaster interface {
	JoinRoom(roomID, userID uint) bool
	LeaveRoom(roomID, userID uint)
	IsMember(roomID, userID uint) bool
	Members(roomID uint) []uint
	RoomsOf(userID uint) []uint
	BroadcastToRoom(roomID uint, data []byte)
	BroadcastToRoomExcept(roomID, exceptUserID uint, data []byte)
	BroadcastAll(data []byte)
}
