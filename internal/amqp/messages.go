package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Entities named in inventory events.
const (
	EntityCategory   = "category"
	EntityStockItem  = "stock_item"
	EntityMoneyEntry = "money_entry"
	EntityInventory  = "inventory"
)

// Actions named in inventory events.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	ActionSold    = "sold"
	ActionBackup  = "backup"
)

// InventoryEvent announces a committed change. It carries identifiers only;
// consumers reload the data they need from the backend.
type InventoryEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Entity     string    `json:"entity"`
	Action     string    `json:"action"`
	EntityID   string    `json:"entity_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewInventoryEvent(userID, entity, action, entityID string) *InventoryEvent {
	return &InventoryEvent{
		ID:         uuid.NewString(),
		UserID:     userID,
		Entity:     entity,
		Action:     action,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
}

func (m *InventoryEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func InventoryEventFromJSON(data []byte) (*InventoryEvent, error) {
	var msg InventoryEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Entity == "" || msg.Action == "" {
		return nil, errors.New("inventory event missing entity or action")
	}
	return &msg, nil
}
