package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EntityJob tags ticket generation job rows in the trail.
const EntityJob = "ticket_generation_job"

// SystemLog is an append-only activity trail row. Job lifecycle operations
// (create, retry, cancel) record who did what to which entity.
type SystemLog struct {
	ID        uuid.UUID
	ActorID   uuid.NullUUID
	Action    string
	Entity    string
	EntityID  uuid.NullUUID
	Detail    json.RawMessage
	CreatedAt time.Time
}
