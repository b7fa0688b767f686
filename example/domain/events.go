package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	EventExampleCreated = "example.created"
	EventExampleUpdated = "example.updated"
	EventExampleDeleted = "example.deleted"
)

// Event é o envelope publicado no broker. Payload só carrega strings para
// que qualquer consumidor consiga ler sem conhecer os tipos.
type Event struct {
	ID        uuid.UUID
	Type      string
	Timestamp time.Time
	ExampleID uuid.UUID
	Payload   map[string]string
}

func newEvent(typ string, exampleID uuid.UUID, payload map[string]string) Event {
	if payload == nil {
		payload = map[string]string{}
	}
	payload["example_id"] = exampleID.String()
	return Event{
		ID:        uuid.New(),
		Type:      typ,
		Timestamp: time.Now().UTC(),
		ExampleID: exampleID,
		Payload:   payload,
	}
}

func ExampleCreated(e *Example) Event {
	return newEvent(EventExampleCreated, e.ID, map[string]string{
		"name":  e.Name,
		"email": e.Email,
	})
}

// ExampleUpdated leva só os campos alterados.
func ExampleUpdated(id uuid.UUID, changes map[string]string) Event {
	payload := make(map[string]string, len(changes)+1)
	for k, v := range changes {
		payload[k] = v
	}
	return newEvent(EventExampleUpdated, id, payload)
}

func ExampleDeleted(id uuid.UUID) Event {
	return newEvent(EventExampleDeleted, id, nil)
}

// Changes compara dois estados da entidade e devolve os campos diferentes.
func Changes(before, after Example) map[string]string {
	out := map[string]string{}
	if before.Name != after.Name {
		out["name"] = after.Name
	}
	if before.Email != after.Email {
		out["email"] = after.Email
	}
	if before.IsActive != after.IsActive {
		out["is_active"] = strconv.FormatBool(after.IsActive)
	}
	return out
}
