package connectivity

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// The read queries below feed the topology resolver.

// CableForPort returns the ID of the cable plugged into a port, or "" when
// the port is unconnected.
func (g *Graph) CableForPort(ctx context.Context, tenantID, portID string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "connectivity.Graph.CableForPort")
	defer span.End()

	cypher := `
		MATCH (c:Cable {tenant_id: $tenant_id})-[:ENDPOINT]->(p:Port {id: $port_id, tenant_id: $tenant_id})
		RETURN c.id AS cable_id
		LIMIT 1
	`

	res, err := g.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"tenant_id": tenantID,
			"port_id":   portID,
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return "", nil
		}
		cableID, _ := result.Record().Get("cable_id")
		id, _ := cableID.(string)
		return id, nil
	})
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).Error("Failed to query cable for port")
		return "", httperror.NewHTTPError(http.StatusInternalServerError, "failed to query cable for port")
	}

	return res.(string), nil
}

// PortsOnCable returns every port the cable's hyperedge touches, stable by
// end role so the A end comes first.
func (g *Graph) PortsOnCable(ctx context.Context, tenantID, cableID string) ([]models.PortNodeInfo, error) {
	ctx, span := tracing.StartSpan(ctx, "connectivity.Graph.PortsOnCable")
	defer span.End()

	cypher := `
		MATCH (c:Cable {id: $cable_id, tenant_id: $tenant_id})-[r:ENDPOINT]->(p:Port)
		RETURN p
		ORDER BY r.role
	`

	return g.collectPorts(ctx, cypher, map[string]any{
		"cable_id":  cableID,
		"tenant_id": tenantID,
	})
}

// PortsOnPanel returns every port node of a panel.
func (g *Graph) PortsOnPanel(ctx context.Context, tenantID, panelID string) ([]models.PortNodeInfo, error) {
	ctx, span := tracing.StartSpan(ctx, "connectivity.Graph.PortsOnPanel")
	defer span.End()

	cypher := `
		MATCH (p:Port {tenant_id: $tenant_id, panel_id: $panel_id})
		RETURN p
		ORDER BY p.name
	`

	return g.collectPorts(ctx, cypher, map[string]any{
		"tenant_id": tenantID,
		"panel_id":  panelID,
	})
}

func (g *Graph) collectPorts(ctx context.Context, cypher string, params map[string]any) ([]models.PortNodeInfo, error) {
	res, err := g.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		var ports []models.PortNodeInfo
		for result.Next(ctx) {
			node, ok := result.Record().Get("p")
			if !ok {
				continue
			}
			if n, ok := node.(neo4j.Node); ok {
				ports = append(ports, portFromNode(n))
			}
		}
		return ports, result.Err()
	})
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).Error("Failed to collect port nodes")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to collect port nodes")
	}
	if res == nil {
		return nil, nil
	}
	return res.([]models.PortNodeInfo), nil
}

func portFromNode(n neo4j.Node) models.PortNodeInfo {
	info := models.PortNodeInfo{
		PortID:     stringProp(n, "id"),
		PortName:   stringProp(n, "name"),
		PanelID:    stringProp(n, "panel_id"),
		PanelName:  stringProp(n, "panel_name"),
		CabinetID:  stringProp(n, "cabinet_id"),
		DeviceName: stringProp(n, "device_name"),
		Status:     stringProp(n, "status"),
	}
	if v, ok := n.Props["short_id"].(int64); ok {
		info.ShortID = models.ShortID(v)
	}
	return info
}

func stringProp(n neo4j.Node, key string) string {
	if v, ok := n.Props[key].(string); ok {
		return v
	}
	return ""
}
