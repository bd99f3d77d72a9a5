package models

// PortNodeInfo is the denormalized view of a port carried by the connectivity
// graph so traversals never round-trip to the relational store.
type PortNodeInfo struct {
	PortID     string  `json:"port_id"`
	PortName   string  `json:"port_name"`
	PanelID    string  `json:"panel_id"`
	PanelName  string  `json:"panel_name"`
	CabinetID  string  `json:"cabinet_id"`
	DeviceName string  `json:"device_name,omitempty"`
	Status     string  `json:"status"`
	ShortID    ShortID `json:"short_id,omitempty"`
}

// PeerResult is the answer to "what is on the other end of this wire". For a
// point-to-point cable Peers has one element; for a branched cable it has all
// co-endpoints, and Branched is true so callers can treat it as its own case
// instead of forcing a 1:1 answer.
type PeerResult struct {
	CableID  string         `json:"cable_id"`
	Branched bool           `json:"branched"`
	Peers    []PortNodeInfo `json:"peers"`
}

// PanelConnection is one cable touching a panel: the local port plus every
// co-endpoint on the wire.
type PanelConnection struct {
	CableID     string         `json:"cable_id"`
	LocalPort   PortNodeInfo   `json:"local_port"`
	RemotePorts []PortNodeInfo `json:"remote_ports"`
}

// PanelConnectionsResponse lists every connection of one panel: the data to
// draw one box of a topology diagram.
type PanelConnectionsResponse struct {
	PanelID     string            `json:"panel_id"`
	Connections []PanelConnection `json:"connections"`
}

// TopologyPanel is a panel discovered during topology expansion, with the
// hop count at which it was first reached.
type TopologyPanel struct {
	PanelID   string `json:"panel_id"`
	PanelName string `json:"panel_name"`
	CabinetID string `json:"cabinet_id"`
	Depth     int    `json:"depth"`
}

// TopologyEdge is one cable crossing discovered during expansion.
type TopologyEdge struct {
	CableID   string         `json:"cable_id"`
	Endpoints []PortNodeInfo `json:"endpoints"`
}

// TopologyFragment is the union of everything reachable from the start panel
// within the depth bound. It is a graph, not a tree: independent partial
// expansions may converge on the same panel.
type TopologyFragment struct {
	Root     string          `json:"root"`
	MaxDepth int             `json:"max_depth"`
	Panels   []TopologyPanel `json:"panels"`
	Edges    []TopologyEdge  `json:"edges"`
}
