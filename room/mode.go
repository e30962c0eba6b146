package room

// Mode class names, as shown to players.
const (
	ClassWeb    = "browser/touch"
	ClassMotion = "VR"
)

// DefaultMode is used when createRoom names no mode.
const DefaultMode = "classic"

// webModes are played with touch or mouse; every other mode is motion/VR.
var webModes = map[string]bool{
	"touch": true,
}

// ModeClass returns the compatibility class a mode belongs to.
func ModeClass(mode string) string {
	if webModes[mode] {
		return ClassWeb
	}
	return ClassMotion
}

// Compatible reports whether a player declaring playerMode may join a room
// in roomMode. An undeclared player mode is always accepted.
func Compatible(roomMode, playerMode string) bool {
	if playerMode == "" {
		return true
	}
	return ModeClass(roomMode) == ModeClass(playerMode)
}
