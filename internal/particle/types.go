package particle

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event names the stream subscribes to.
const (
	EventDoor   = "doorMessage"
	EventStatus = "spark/status"
)

// DoorVariable is the cloud variable holding the authoritative door state.
const DoorVariable = "doorMessage"

// Payload values published by the firmware and the cloud.
const (
	DoorOpen     = "open"
	DoorClosed   = "closed"
	StatusOnline = "online"
)

// Event is one decoded push event.
type Event struct {
	Name        string
	Data        string
	PublishedAt time.Time
	CoreID      string
}

// eventPayload mirrors the JSON carried in an SSE data field.
type eventPayload struct {
	Data        string `json:"data"`
	PublishedAt string `json:"published_at"`
	CoreID      string `json:"coreid"`
}

func parseEvent(name, data string) (Event, error) {
	var payload eventPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return Event{}, fmt.Errorf("decode %s event: %w", name, err)
	}
	ev := Event{
		Name:   name,
		Data:   strings.TrimSpace(payload.Data),
		CoreID: strings.TrimSpace(payload.CoreID),
	}
	if payload.PublishedAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, payload.PublishedAt); err == nil {
			ev.PublishedAt = ts
		}
	}
	return ev, nil
}

// DoorState is the result of a variable read.
type DoorState struct {
	DeviceID  string
	Result    string
	LastHeard time.Time
}

// Open reports whether the variable read "open".
func (d DoorState) Open() bool {
	return d.Result == DoorOpen
}

// variableResponse mirrors GET /v1/devices/{id}/{variable}.
type variableResponse struct {
	Name     string `json:"name"`
	Result   string `json:"result"`
	CoreInfo struct {
		DeviceID  string `json:"deviceID"`
		LastHeard string `json:"last_heard"`
	} `json:"coreInfo"`
}

func (v variableResponse) doorState() DoorState {
	state := DoorState{
		DeviceID: strings.TrimSpace(v.CoreInfo.DeviceID),
		Result:   strings.TrimSpace(v.Result),
	}
	if ts, err := time.Parse(time.RFC3339Nano, v.CoreInfo.LastHeard); err == nil {
		state.LastHeard = ts
	}
	return state
}
