package connectivity

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// EndpointBinding names one port a cable end plugs into.
type EndpointBinding struct {
	PortID  string
	Role    models.EndType
	ShortID models.ShortID
}

// Graph maintains the cabling graph: one node per port, one Cable node per
// physical cable, ENDPOINT relationships from cable to port carrying the end
// role. A port has at most one incident cable; that invariant is enforced
// inside the Connect write transaction.
type Graph struct {
	client *Client
	logger ectologger.Logger
}

// NewGraph creates the connectivity graph service.
func NewGraph(client *Client, logger ectologger.Logger) *Graph {
	return &Graph{
		client: client,
		logger: logger,
	}
}

// NewPortAlreadyConnectedError reports a port that already has a cable.
func NewPortAlreadyConnectedError(portID, cableID string) error {
	return httperror.NewHTTPErrorf(http.StatusConflict, "port %s is already connected to cable %s", portID, cableID)
}

// SyncPort mirrors a port into the graph with its denormalized location
// info. Safe to call repeatedly; properties are overwritten.
func (g *Graph) SyncPort(ctx context.Context, tenantID string, info models.PortNodeInfo) error {
	ctx, span := tracing.StartSpan(ctx, "connectivity.Graph.SyncPort")
	defer span.End()

	cypher := `
		MERGE (p:Port {id: $id, tenant_id: $tenant_id})
		SET p.name = $name,
			p.panel_id = $panel_id,
			p.panel_name = $panel_name,
			p.cabinet_id = $cabinet_id,
			p.device_name = $device_name,
			p.status = $status,
			p.short_id = $short_id
		RETURN p
	`

	_, err := g.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"id":          info.PortID,
			"tenant_id":   tenantID,
			"name":        info.PortName,
			"panel_id":    info.PanelID,
			"panel_name":  info.PanelName,
			"cabinet_id":  info.CabinetID,
			"device_name": info.DeviceName,
			"status":      info.Status,
			"short_id":    int64(info.ShortID),
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).Error("Failed to sync port node")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to sync port node")
	}

	return nil
}

// SyncPanel rewrites the denormalized panel fields on every port node of a
// panel after a rename.
func (g *Graph) SyncPanel(ctx context.Context, tenantID, panelID, panelName, deviceName string) error {
	ctx, span := tracing.StartSpan(ctx, "connectivity.Graph.SyncPanel")
	defer span.End()

	cypher := `
		MATCH (p:Port {tenant_id: $tenant_id, panel_id: $panel_id})
		SET p.panel_name = $panel_name,
			p.device_name = $device_name
		RETURN count(p)
	`

	_, err := g.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"tenant_id":   tenantID,
			"panel_id":    panelID,
			"panel_name":  panelName,
			"device_name": deviceName,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).Error("Failed to sync panel nodes")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to sync panel nodes")
	}

	return nil
}

// RemovePort deletes a port node and any incident relationships.
func (g *Graph) RemovePort(ctx context.Context, tenantID, portID string) error {
	ctx, span := tracing.StartSpan(ctx, "connectivity.Graph.RemovePort")
	defer span.End()

	cypher := `
		MATCH (p:Port {id: $id, tenant_id: $tenant_id})
		DETACH DELETE p
	`

	_, err := g.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"id":        portID,
			"tenant_id": tenantID,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).Error("Failed to remove port node")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to remove port node")
	}

	return nil
}

// Connect creates the hyperedge for a cable: one Cable node plus an ENDPOINT
// relationship per bound port. The occupancy check and the edge writes run in
// one graph transaction, so two cables can never race onto the same port.
func (g *Graph) Connect(ctx context.Context, tenantID, cableID, category string, endpoints []EndpointBinding) error {
	ctx, span := tracing.StartSpan(ctx, "connectivity.Graph.Connect")
	defer span.End()
	timer := prometheus.NewTimer(metrics.GraphWriteDuration.WithLabelValues("connect"))
	defer timer.ObserveDuration()

	log := g.logger.WithContext(ctx).WithFields(map[string]any{
		"method":    "Connect",
		"tenant_id": tenantID,
		"cable_id":  cableID,
		"endpoints": len(endpoints),
	})

	if len(endpoints) < 2 {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "cable %s needs at least two endpoints, got %d", cableID, len(endpoints))
	}

	occupancyCypher := `
		MATCH (c:Cable {tenant_id: $tenant_id})-[:ENDPOINT]->(p:Port {id: $port_id, tenant_id: $tenant_id})
		WHERE c.id <> $cable_id
		RETURN c.id AS cable_id
		LIMIT 1
	`
	mergeCableCypher := `
		MERGE (c:Cable {id: $cable_id, tenant_id: $tenant_id})
		SET c.category = $category
		RETURN c
	`
	connectCypher := `
		MATCH (c:Cable {id: $cable_id, tenant_id: $tenant_id})
		MATCH (p:Port {id: $port_id, tenant_id: $tenant_id})
		MERGE (c)-[r:ENDPOINT]->(p)
		SET r.role = $role,
			r.short_id = $short_id
		RETURN r
	`

	_, err := g.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, ep := range endpoints {
			result, err := tx.Run(ctx, occupancyCypher, map[string]any{
				"tenant_id": tenantID,
				"port_id":   ep.PortID,
				"cable_id":  cableID,
			})
			if err != nil {
				return nil, err
			}
			if result.Next(ctx) {
				other, _ := result.Record().Get("cable_id")
				occupant, _ := other.(string)
				return nil, NewPortAlreadyConnectedError(ep.PortID, occupant)
			}
		}

		result, err := tx.Run(ctx, mergeCableCypher, map[string]any{
			"cable_id":  cableID,
			"tenant_id": tenantID,
			"category":  category,
		})
		if err != nil {
			return nil, err
		}
		if _, err := result.Consume(ctx); err != nil {
			return nil, err
		}

		for _, ep := range endpoints {
			result, err := tx.Run(ctx, connectCypher, map[string]any{
				"cable_id":  cableID,
				"tenant_id": tenantID,
				"port_id":   ep.PortID,
				"role":      string(ep.Role),
				"short_id":  int64(ep.ShortID),
			})
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		if httperror.IsHTTPError(err) {
			return err
		}
		log.WithError(err).Error("Failed to connect cable")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to connect cable")
	}

	log.Info("Connected cable")
	return nil
}

// Disconnect removes a cable's hyperedge. Disconnecting an unknown cable is
// a no-op.
func (g *Graph) Disconnect(ctx context.Context, tenantID, cableID string) error {
	ctx, span := tracing.StartSpan(ctx, "connectivity.Graph.Disconnect")
	defer span.End()
	timer := prometheus.NewTimer(metrics.GraphWriteDuration.WithLabelValues("disconnect"))
	defer timer.ObserveDuration()

	cypher := `
		MATCH (c:Cable {id: $cable_id, tenant_id: $tenant_id})
		DETACH DELETE c
	`

	_, err := g.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"cable_id":  cableID,
			"tenant_id": tenantID,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).Error("Failed to disconnect cable")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to disconnect cable")
	}

	g.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"cable_id":  cableID,
	}).Info("Disconnected cable")
	return nil
}
