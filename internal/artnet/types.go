package artnet

// ChannelValue defines an ArtNet Universe and the value of the DMX channel.
type ChannelValue struct {
	Universe uint16 // Universe: старший байт - SubUni, младший байт - Net.
	Channel  uint16 // Channel: номер байта (канал).
	Value    uint8  // Value: значение для канала.
}

// Universe wraps the 512 byte array for convenience.
type Universe [512]byte

// UniverseStateMap holds the state of all used universes.
type UniverseStateMap map[uint16]Universe

// Conf параметры зеркалирования.
type Conf struct {
	Network  string // Network - CIDR сети Art-Net.
	Universe uint16 // Universe: старший байт - SubUni, младший байт - Net.
}

// Node describes a discovered Art-Net node.
type Node struct {
	IP           string   `json:"ip"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Manufacturer string   `json:"manufacturer"`
	Description  string   `json:"description"`
	Inputs       []string `json:"inputs"`
	Outputs      []string `json:"outputs"`
}

// NodeSink receives the list of visible nodes.
type NodeSink interface {
	PublishNodes(nodes []Node)
}
