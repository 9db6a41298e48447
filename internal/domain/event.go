package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// EventType names a committed board mutation delivered to channel subscribers.
type EventType string

const (
	EventListCreated    EventType = "listCreated"
	EventListUpdated    EventType = "listUpdated"
	EventListDeleted    EventType = "listDeleted"
	EventListsReordered EventType = "listsReordered"
	EventTaskCreated    EventType = "taskCreated"
	EventTaskUpdated    EventType = "taskUpdated"
	EventTaskDeleted    EventType = "taskDeleted"
	EventTaskMoved      EventType = "taskMoved"
)

// Channel control replies sent to a single connection. They share the event
// envelope; Data carries an error message for EventChannelError.
const (
	EventJoined       EventType = "joined"
	EventLeft         EventType = "left"
	EventChannelError EventType = "error"
)

// BoardEvent is the wire envelope for board channel messages.
//
// Data holds, per type: *List (listCreated, listUpdated), uuid.UUID
// (listDeleted, taskDeleted), []uuid.UUID (listsReordered), *TaskView
// (taskCreated, taskUpdated) and TaskMove (taskMoved). Decoders receive it as
// json.RawMessage via RawBoardEvent.
type BoardEvent struct {
	Type    EventType `json:"type"`
	BoardID uuid.UUID `json:"boardId"`
	Data    any       `json:"data"`
}

// RawBoardEvent is BoardEvent with the payload left undecoded.
type RawBoardEvent struct {
	Type    EventType       `json:"type"`
	BoardID uuid.UUID       `json:"boardId"`
	Data    json.RawMessage `json:"data"`
}

// TaskMove is the taskMoved payload.
type TaskMove struct {
	TaskID      uuid.UUID `json:"taskId"`
	NewListID   uuid.UUID `json:"newListId"`
	NewPosition int       `json:"newPosition"`
}

// TaskView is a task with its assignees resolved to summaries.
type TaskView struct {
	Task
	Assignees []UserSummary `json:"assignees"`
}

// BoardSnapshot is the full authoritative state of one board.
type BoardSnapshot struct {
	Board   *Board        `json:"board"`
	Members []UserSummary `json:"members"`
	Lists   []*List       `json:"lists"`
	Tasks   []*TaskView   `json:"tasks"`
}
