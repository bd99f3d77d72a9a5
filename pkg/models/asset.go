package models

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
)

// Metadata is the free-form jsonb blob carried by rooms, cabinets and
// panels (rack positions, asset tags, anything the operator records).
type Metadata = database.JSONB[map[string]any]

// PortStatus is the operational status stamped on a port row and mirrored
// onto its graph node.
type PortStatus string

const (
	PortStatusFree     PortStatus = "free"
	PortStatusOccupied PortStatus = "occupied"
	PortStatusFaulty   PortStatus = "faulty"
)

// Room is a physical machine room.
type Room struct {
	ID        string     `json:"id" db:"id"`
	TenantID  string     `json:"tenant_id" db:"tenant_id"`
	Name      string     `json:"name" db:"name"`
	ShortID   ShortID    `json:"short_id" db:"short_id"`
	Metadata  Metadata   `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Cabinet is a rack inside a room.
type Cabinet struct {
	ID        string     `json:"id" db:"id"`
	TenantID  string     `json:"tenant_id" db:"tenant_id"`
	RoomID    string     `json:"room_id" db:"room_id"`
	Name      string     `json:"name" db:"name"`
	ShortID   ShortID    `json:"short_id" db:"short_id"`
	Metadata  Metadata   `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Panel is a patch panel (or device faceplate) mounted in a cabinet. Ports
// hang off panels; topology queries expand panel to panel.
type Panel struct {
	ID         string     `json:"id" db:"id"`
	TenantID   string     `json:"tenant_id" db:"tenant_id"`
	CabinetID  string     `json:"cabinet_id" db:"cabinet_id"`
	Name       string     `json:"name" db:"name"`
	PanelType  string     `json:"panel_type" db:"panel_type"`
	DeviceName string     `json:"device_name" db:"device_name"`
	ShortID    ShortID    `json:"short_id" db:"short_id"`
	Metadata   Metadata   `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Port is a single socket on a panel. A port is plugged into at most one
// cable at a time; that invariant lives in the connectivity graph.
type Port struct {
	ID        string     `json:"id" db:"id"`
	TenantID  string     `json:"tenant_id" db:"tenant_id"`
	PanelID   string     `json:"panel_id" db:"panel_id"`
	Name      string     `json:"name" db:"name"`
	Status    PortStatus `json:"status" db:"status"`
	ShortID   ShortID    `json:"short_id" db:"short_id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// CreateRoomRequest creates a room; the ShortID is allocated server-side
// unless PinnedShortID carries a pre-existing label number.
type CreateRoomRequest struct {
	Name          string   `json:"name" validate:"required"`
	Metadata      Metadata `json:"metadata,omitempty"`
	PinnedShortID *ShortID `json:"pinned_short_id,omitempty"`
}

type UpdateRoomRequest struct {
	Name     *string   `json:"name,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

type CreateCabinetRequest struct {
	RoomID        string   `json:"room_id" validate:"required"`
	Name          string   `json:"name" validate:"required"`
	Metadata      Metadata `json:"metadata,omitempty"`
	PinnedShortID *ShortID `json:"pinned_short_id,omitempty"`
}

type UpdateCabinetRequest struct {
	Name     *string   `json:"name,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

type CreatePanelRequest struct {
	CabinetID     string   `json:"cabinet_id" validate:"required"`
	Name          string   `json:"name" validate:"required"`
	PanelType     string   `json:"panel_type,omitempty"`
	DeviceName    string   `json:"device_name,omitempty"`
	Metadata      Metadata `json:"metadata,omitempty"`
	PinnedShortID *ShortID `json:"pinned_short_id,omitempty"`
}

type UpdatePanelRequest struct {
	Name       *string   `json:"name,omitempty"`
	PanelType  *string   `json:"panel_type,omitempty"`
	DeviceName *string   `json:"device_name,omitempty"`
	Metadata   *Metadata `json:"metadata,omitempty"`
}

type CreatePortRequest struct {
	PanelID       string   `json:"panel_id" validate:"required"`
	Name          string   `json:"name" validate:"required"`
	PinnedShortID *ShortID `json:"pinned_short_id,omitempty"`
}

type UpdatePortRequest struct {
	Name   *string     `json:"name,omitempty"`
	Status *PortStatus `json:"status,omitempty"`
}

type RoomResponse struct {
	Room
	Label string `json:"label"`
}

type RoomListResponse struct {
	Items      []Room `json:"items"`
	TotalCount int    `json:"total_count"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
}

type CabinetResponse struct {
	Cabinet
	Label string `json:"label"`
}

type CabinetListResponse struct {
	Items      []Cabinet `json:"items"`
	TotalCount int       `json:"total_count"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
}

type PanelResponse struct {
	Panel
	Label string `json:"label"`
}

type PanelListResponse struct {
	Items      []Panel `json:"items"`
	TotalCount int     `json:"total_count"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
}

type PortResponse struct {
	Port
	Label string `json:"label"`
}

type PortListResponse struct {
	Items      []Port `json:"items"`
	TotalCount int    `json:"total_count"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
}
