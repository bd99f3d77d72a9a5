package connectivity

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Source is the graph read surface the resolver traverses. *Graph implements
// it; tests substitute an in-memory wiring.
type Source interface {
	CableForPort(ctx context.Context, tenantID, portID string) (string, error)
	PortsOnCable(ctx context.Context, tenantID, cableID string) ([]models.PortNodeInfo, error)
	PortsOnPanel(ctx context.Context, tenantID, panelID string) ([]models.PortNodeInfo, error)
}

// ResolverConfig bounds topology expansion.
type ResolverConfig struct {
	DefaultDepth int
	MaxDepth     int
}

// Resolver answers the field questions: what is on the other end of this
// wire, what does this panel connect to, and what is reachable from here.
type Resolver struct {
	source Source
	logger ectologger.Logger
	cfg    ResolverConfig
}

// NewResolver creates a topology resolver.
func NewResolver(source Source, logger ectologger.Logger, cfg ResolverConfig) *Resolver {
	if cfg.DefaultDepth <= 0 {
		cfg.DefaultDepth = 3
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 10
	}
	return &Resolver{
		source: source,
		logger: logger,
		cfg:    cfg,
	}
}

// FindPeer returns the co-endpoints of the cable plugged into a port. The
// result is always a set: empty for an unconnected port, one peer for a
// point-to-point cable, several (with Branched set) for a branched cable.
func (r *Resolver) FindPeer(ctx context.Context, tenantID, portID string) (*models.PeerResult, error) {
	ctx, span := tracing.StartSpan(ctx, "connectivity.Resolver.FindPeer")
	defer span.End()

	cableID, err := r.source.CableForPort(ctx, tenantID, portID)
	if err != nil {
		return nil, err
	}
	if cableID == "" {
		return &models.PeerResult{Peers: []models.PortNodeInfo{}}, nil
	}

	ports, err := r.source.PortsOnCable(ctx, tenantID, cableID)
	if err != nil {
		return nil, err
	}

	peers := make([]models.PortNodeInfo, 0, len(ports))
	for _, p := range ports {
		if p.PortID != portID {
			peers = append(peers, p)
		}
	}

	return &models.PeerResult{
		CableID:  cableID,
		Branched: len(ports) > 2,
		Peers:    peers,
	}, nil
}

// FindPanelConnections lists every cable touching a panel with its local
// port and all remote co-endpoints.
func (r *Resolver) FindPanelConnections(ctx context.Context, tenantID, panelID string) (*models.PanelConnectionsResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "connectivity.Resolver.FindPanelConnections")
	defer span.End()

	ports, err := r.source.PortsOnPanel(ctx, tenantID, panelID)
	if err != nil {
		return nil, err
	}

	resp := &models.PanelConnectionsResponse{
		PanelID:     panelID,
		Connections: []models.PanelConnection{},
	}
	for _, local := range ports {
		cableID, err := r.source.CableForPort(ctx, tenantID, local.PortID)
		if err != nil {
			return nil, err
		}
		if cableID == "" {
			continue
		}

		endpoints, err := r.source.PortsOnCable(ctx, tenantID, cableID)
		if err != nil {
			return nil, err
		}
		remote := make([]models.PortNodeInfo, 0, len(endpoints))
		for _, p := range endpoints {
			if p.PortID != local.PortID {
				remote = append(remote, p)
			}
		}

		resp.Connections = append(resp.Connections, models.PanelConnection{
			CableID:     cableID,
			LocalPort:   local,
			RemotePorts: remote,
		})
	}

	return resp, nil
}

// FindTopology expands the cabling fragment reachable from a panel with
// breadth-first search. A hop is one cable crossing; panels at the depth
// bound are included but not expanded. The fragment is a graph, not a tree:
// a visited-panel set keeps converging paths and rings from looping.
func (r *Resolver) FindTopology(ctx context.Context, tenantID, panelID string, depth int) (*models.TopologyFragment, error) {
	ctx, span := tracing.StartSpan(ctx, "connectivity.Resolver.FindTopology")
	defer span.End()

	timer := prometheus.NewTimer(metrics.TopologyQueryDuration.WithLabelValues("find_topology"))
	defer timer.ObserveDuration()

	if depth <= 0 {
		depth = r.cfg.DefaultDepth
	}
	if depth > r.cfg.MaxDepth {
		depth = r.cfg.MaxDepth
	}

	fragment := &models.TopologyFragment{
		Root:     panelID,
		MaxDepth: depth,
		Panels:   []models.TopologyPanel{},
		Edges:    []models.TopologyEdge{},
	}

	type queued struct {
		panelID string
		depth   int
	}

	visitedPanels := map[string]bool{panelID: true}
	visitedCables := map[string]bool{}
	queue := []queued{{panelID: panelID, depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		ports, err := r.source.PortsOnPanel(ctx, tenantID, current.panelID)
		if err != nil {
			return nil, err
		}

		panel := models.TopologyPanel{PanelID: current.panelID, Depth: current.depth}
		if len(ports) > 0 {
			panel.PanelName = ports[0].PanelName
			panel.CabinetID = ports[0].CabinetID
		}
		fragment.Panels = append(fragment.Panels, panel)

		if current.depth >= depth {
			continue
		}

		for _, port := range ports {
			cableID, err := r.source.CableForPort(ctx, tenantID, port.PortID)
			if err != nil {
				return nil, err
			}
			if cableID == "" || visitedCables[cableID] {
				continue
			}
			visitedCables[cableID] = true

			endpoints, err := r.source.PortsOnCable(ctx, tenantID, cableID)
			if err != nil {
				return nil, err
			}
			fragment.Edges = append(fragment.Edges, models.TopologyEdge{
				CableID:   cableID,
				Endpoints: endpoints,
			})

			for _, ep := range endpoints {
				if ep.PanelID == "" || visitedPanels[ep.PanelID] {
					continue
				}
				visitedPanels[ep.PanelID] = true
				queue = append(queue, queued{panelID: ep.PanelID, depth: current.depth + 1})
			}
		}
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"panel_id":  panelID,
		"depth":     depth,
		"panels":    len(fragment.Panels),
		"edges":     len(fragment.Edges),
	}).Debug("Resolved topology fragment")

	return fragment, nil
}
