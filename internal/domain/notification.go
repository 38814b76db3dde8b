package domain

import "time"

// NotificationChannel enumerates delivery channels understood by the
// external dispatcher.
type NotificationChannel string

const (
	ChannelEmail    NotificationChannel = "EMAIL"
	ChannelPush     NotificationChannel = "PUSH"
	ChannelWhatsApp NotificationChannel = "WHATSAPP"
)

// RecipientKind distinguishes role-addressed from user-addressed requests.
type RecipientKind string

const (
	RecipientRole RecipientKind = "ROLE"
	RecipientUser RecipientKind = "USER"
)

// Well-known recipient roles.
const (
	RoleUnitManager = "UNIT_MANAGER"
	RoleAssignee    = "ASSIGNEE"
)

// NotificationRequest is handed to the external dispatcher for
// delivery. Delivery status is owned by the dispatcher, not the engine.
type NotificationRequest struct {
	ID            string              `json:"id"`
	RecipientKind RecipientKind       `json:"recipient_kind"`
	Recipient     string              `json:"recipient"`
	Channel       NotificationChannel `json:"channel"`
	TicketID      string              `json:"ticket_id"`
	Message       string              `json:"message"`
	CreatedAt     time.Time           `json:"created_at"`
}
