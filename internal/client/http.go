package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/gosuda/kanban/internal/domain"
)

const apiPrefix = "/api/v1"

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kanban api: %d %s", e.Status, e.Message)
}

// Session is the result of a login or registration.
type Session struct {
	User         domain.User `json:"user"`
	AccessToken  string      `json:"accessToken"`  //nolint:gosec // G117: auth response DTO
	RefreshToken string      `json:"refreshToken"` //nolint:gosec // G117: auth response DTO
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// HTTPAPI talks to the REST surface of a kanban server.
type HTTPAPI struct {
	baseURL string
	client  *http.Client

	mu    sync.RWMutex
	token string
}

// NewHTTPAPI creates a client for the server at baseURL, e.g.
// "http://localhost:8080". A nil client uses a default with a 30s timeout.
func NewHTTPAPI(baseURL string, client *http.Client) *HTTPAPI {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPAPI{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// SetToken sets the access token sent with every request.
func (h *HTTPAPI) SetToken(token string) {
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
}

func (h *HTTPAPI) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

func (h *HTTPAPI) Register(ctx context.Context, name, email, password string) (*Session, error) {
	var s Session
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := h.do(ctx, http.MethodPost, "/auth/register", body, &s); err != nil {
		return nil, fmt.Errorf("client.Register: %w", err)
	}
	h.SetToken(s.AccessToken)
	return &s, nil
}

func (h *HTTPAPI) Login(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	body := map[string]string{"email": email, "password": password}
	if err := h.do(ctx, http.MethodPost, "/auth/login", body, &s); err != nil {
		return nil, fmt.Errorf("client.Login: %w", err)
	}
	h.SetToken(s.AccessToken)
	return &s, nil
}

// Refresh exchanges a refresh token for a new access token and starts using it.
func (h *HTTPAPI) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var out struct {
		AccessToken string `json:"accessToken"`
	}
	if err := h.do(ctx, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": refreshToken}, &out); err != nil {
		return "", fmt.Errorf("client.Refresh: %w", err)
	}
	h.SetToken(out.AccessToken)
	return out.AccessToken, nil
}

func (h *HTTPAPI) ListBoards(ctx context.Context) ([]*domain.Board, error) {
	var out []*domain.Board
	if err := h.do(ctx, http.MethodGet, "/boards", nil, &out); err != nil {
		return nil, fmt.Errorf("client.ListBoards: %w", err)
	}
	return out, nil
}

func (h *HTTPAPI) CreateBoard(ctx context.Context, name string) (*domain.Board, error) {
	var out domain.Board
	if err := h.do(ctx, http.MethodPost, "/boards", map[string]string{"name": name}, &out); err != nil {
		return nil, fmt.Errorf("client.CreateBoard: %w", err)
	}
	return &out, nil
}

func (h *HTTPAPI) GetBoard(ctx context.Context, boardID uuid.UUID) (*domain.BoardSnapshot, error) {
	var out domain.BoardSnapshot
	if err := h.do(ctx, http.MethodGet, "/boards/"+boardID.String(), nil, &out); err != nil {
		return nil, fmt.Errorf("client.GetBoard: %w", err)
	}
	return &out, nil
}

func (h *HTTPAPI) DeleteBoard(ctx context.Context, boardID uuid.UUID) error {
	if err := h.do(ctx, http.MethodDelete, "/boards/"+boardID.String(), nil, nil); err != nil {
		return fmt.Errorf("client.DeleteBoard: %w", err)
	}
	return nil
}

func (h *HTTPAPI) AddMember(ctx context.Context, boardID uuid.UUID, email string) (*domain.UserSummary, error) {
	var out domain.UserSummary
	path := "/boards/" + boardID.String() + "/members"
	if err := h.do(ctx, http.MethodPut, path, map[string]string{"email": email}, &out); err != nil {
		return nil, fmt.Errorf("client.AddMember: %w", err)
	}
	return &out, nil
}

// Activity returns the most recent activity of a board. limit 0 uses the
// server default.
func (h *HTTPAPI) Activity(ctx context.Context, boardID uuid.UUID, limit int) ([]*domain.ActivityRecord, error) {
	path := "/boards/" + boardID.String() + "/activity"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []*domain.ActivityRecord
	if err := h.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("client.Activity: %w", err)
	}
	return out, nil
}

func (h *HTTPAPI) CreateList(ctx context.Context, boardID uuid.UUID, name string) (*domain.List, error) {
	var out domain.List
	body := map[string]any{"name": name, "boardId": boardID}
	if err := h.do(ctx, http.MethodPost, "/lists", body, &out); err != nil {
		return nil, fmt.Errorf("client.CreateList: %w", err)
	}
	return &out, nil
}

func (h *HTTPAPI) RenameList(ctx context.Context, listID uuid.UUID, name string) (*domain.List, error) {
	var out domain.List
	if err := h.do(ctx, http.MethodPut, "/lists/"+listID.String(), map[string]string{"name": name}, &out); err != nil {
		return nil, fmt.Errorf("client.RenameList: %w", err)
	}
	return &out, nil
}

func (h *HTTPAPI) DeleteList(ctx context.Context, listID uuid.UUID) error {
	if err := h.do(ctx, http.MethodDelete, "/lists/"+listID.String(), nil, nil); err != nil {
		return fmt.Errorf("client.DeleteList: %w", err)
	}
	return nil
}

func (h *HTTPAPI) ReorderLists(ctx context.Context, boardID uuid.UUID, listIDs []uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	body := map[string]any{"boardId": boardID, "listIds": listIDs}
	if err := h.do(ctx, http.MethodPut, "/lists/reorder", body, &out); err != nil {
		return nil, fmt.Errorf("client.ReorderLists: %w", err)
	}
	return out, nil
}

// NewTask is the input of CreateTask.
type NewTask struct {
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	ListID        uuid.UUID   `json:"listId"`
	BoardID       uuid.UUID   `json:"boardId"`
	AssignedUsers []uuid.UUID `json:"assignedUsers,omitempty"`
}

func (h *HTTPAPI) CreateTask(ctx context.Context, in NewTask) (*domain.TaskView, error) {
	var out domain.TaskView
	if err := h.do(ctx, http.MethodPost, "/tasks", in, &out); err != nil {
		return nil, fmt.Errorf("client.CreateTask: %w", err)
	}
	return &out, nil
}

type taskPatchBody struct {
	Title         *string      `json:"title,omitempty"`
	Description   *string      `json:"description,omitempty"`
	AssignedUsers *[]uuid.UUID `json:"assignedUsers,omitempty"`
	List          *uuid.UUID   `json:"list,omitempty"`
	IsCompleted   *bool        `json:"isCompleted,omitempty"`
}

// UpdateTask sends only the fields present in patch.
func (h *HTTPAPI) UpdateTask(ctx context.Context, taskID uuid.UUID, patch domain.TaskPatch) (*domain.TaskView, error) {
	body := taskPatchBody{
		Title:         patch.Title,
		Description:   patch.Description,
		AssignedUsers: patch.AssignedUsers,
		List:          patch.ListID,
		IsCompleted:   patch.IsCompleted,
	}
	var out domain.TaskView
	if err := h.do(ctx, http.MethodPut, "/tasks/"+taskID.String(), body, &out); err != nil {
		return nil, fmt.Errorf("client.UpdateTask: %w", err)
	}
	return &out, nil
}

func (h *HTTPAPI) DeleteTask(ctx context.Context, taskID uuid.UUID) error {
	if err := h.do(ctx, http.MethodDelete, "/tasks/"+taskID.String(), nil, nil); err != nil {
		return fmt.Errorf("client.DeleteTask: %w", err)
	}
	return nil
}

func (h *HTTPAPI) MoveTask(ctx context.Context, taskID, newListID uuid.UUID, newPosition int) (*domain.TaskMove, error) {
	var out domain.TaskMove
	body := map[string]any{"newListId": newListID, "newPosition": newPosition}
	if err := h.do(ctx, http.MethodPut, "/tasks/"+taskID.String()+"/move", body, &out); err != nil {
		return nil, fmt.Errorf("client.MoveTask: %w", err)
	}
	return &out, nil
}

// websocketURL returns the board channel endpoint.
func (h *HTTPAPI) websocketURL() (string, error) {
	u, err := url.Parse(h.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// authHeader carries the bearer token, if any, for requests made outside do.
func (h *HTTPAPI) authHeader() http.Header {
	hdr := http.Header{}
	if tok := h.Token(); tok != "" {
		hdr.Set("Authorization", "Bearer "+tok)
	}
	return hdr
}

func (h *HTTPAPI) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := sonic.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+apiPrefix+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := h.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
