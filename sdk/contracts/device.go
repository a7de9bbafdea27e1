package contracts

// VirtualPortName is the reserved destination name of the self-hosted output.
// Enumeration always lists it last.
const VirtualPortName = "<virtual>"

// Destination is one open output a player can send raw MIDI bytes to.
type Destination interface {
	Send(msg []byte) error // Writes one complete MIDI message.
	Close() error          // Releases the destination.
	String() string        // Destination name.
}

// DeviceDriver is the platform MIDI output layer.
type DeviceDriver interface {
	Outputs() ([]string, error)                   // Lists physical output names in driver order.
	Open(name string) (Destination, error)        // Opens a physical output by exact name.
	OpenVirtual(name string) (Destination, error) // Creates a self-hosted output announced under name.
	Close() error                                 // Releases the driver.
}
