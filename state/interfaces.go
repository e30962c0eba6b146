// state/interfaces.go
package state

// RoomContext is what a state needs from the room that owns it.
// Defined here to break the import cycle between room and state.
type RoomContext interface {
	GetCode() string
	ChangeState(newState State) error
	Broadcast(event string, payload interface{}) error
}
