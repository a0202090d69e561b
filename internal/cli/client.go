package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// --- Response types (дублируются из domain, CLI не импортирует internal-пакеты ядра) ---

// UserResponse — клиент из API.
type UserResponse struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	DecisionEndpoint     string `json:"decision_endpoint"`
	ActivityEndpoint     string `json:"activity_endpoint"`
	NotificationEndpoint string `json:"notification_endpoint"`
}

// WorkflowResponse — workflow из API.
type WorkflowResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Subject   string `json:"subject"`
	Decider   string `json:"decider"`
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at"`
	Created   bool   `json:"created"`
}

// NodeResponse — узел из API.
type NodeResponse struct {
	ID                  string          `json:"id"`
	WorkflowID          string          `json:"workflow_id"`
	ParentID            string          `json:"parent_id,omitempty"`
	Seq                 int64           `json:"seq"`
	Name                string          `json:"name"`
	Mode                string          `json:"mode"`
	LegacyType          string          `json:"legacy_type"`
	CurrentServerStatus string          `json:"current_server_status"`
	CurrentClientStatus string          `json:"current_client_status"`
	FiresAt             string          `json:"fires_at"`
	RetriesRemaining    int             `json:"retries_remaining"`
	ClientData          json.RawMessage `json:"client_data,omitempty"`
}

// StatusChangeResponse — запись журнала статусов.
type StatusChangeResponse struct {
	StatusType string          `json:"status_type"`
	FromStatus string          `json:"from_status"`
	ToStatus   string          `json:"to_status"`
	Response   json.RawMessage `json:"response,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

// TreeNode — вложенная проекция дерева workflow.
type TreeNode struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	CurrentServerStatus string     `json:"current_server_status,omitempty"`
	CurrentClientStatus string     `json:"current_client_status,omitempty"`
	Children            []TreeNode `json:"children"`
}

// --- Request types ---

// CreateUserRequest — регистрация клиента.
type CreateUserRequest struct {
	Name                 string `json:"name"`
	DecisionEndpoint     string `json:"decision_endpoint,omitempty"`
	ActivityEndpoint     string `json:"activity_endpoint,omitempty"`
	NotificationEndpoint string `json:"notification_endpoint,omitempty"`
}

// CreateWorkflowRequest — find-or-create workflow.
type CreateWorkflowRequest struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Decider string `json:"decider"`
}

// SignalRequest — параметры узла сигнала.
type SignalRequest struct {
	Mode       string          `json:"mode,omitempty"`
	ClientData json.RawMessage `json:"client_data,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code            string `json:"code"`
		Message         string `json:"message"`
		CurrentStatus   string `json:"current_status"`
		AttemptedStatus string `json:"attempted_status"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для backbeat API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Users ---

// CreateUser регистрирует клиента.
func (c *Client) CreateUser(req CreateUserRequest) (*UserResponse, error) {
	var user UserResponse
	err := c.post("/api/v1/users", req, &user)
	return &user, err
}

// GetUser возвращает клиента по ID.
func (c *Client) GetUser(id string) (*UserResponse, error) {
	var user UserResponse
	err := c.get("/api/v1/users/"+id, &user)
	return &user, err
}

// --- Workflows ---

// FindOrCreateWorkflow возвращает workflow по ключу, создавая его при необходимости.
func (c *Client) FindOrCreateWorkflow(req CreateWorkflowRequest) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.post("/api/v1/workflows", req, &wf)
	return &wf, err
}

// GetWorkflow возвращает workflow по ID.
func (c *Client) GetWorkflow(id string) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.get("/api/v1/workflows/"+id, &wf)
	return &wf, err
}

// GetTree возвращает дерево workflow.
func (c *Client) GetTree(id string) (*TreeNode, error) {
	var tree TreeNode
	err := c.get("/api/v1/workflows/"+id+"/tree", &tree)
	return &tree, err
}

// Signal отправляет сигнал в workflow.
func (c *Client) Signal(workflowID, name string, req SignalRequest) (*NodeResponse, error) {
	var node NodeResponse
	err := c.post("/api/v1/workflows/"+workflowID+"/signal/"+name, req, &node)
	return &node, err
}

// WorkflowAction выполняет pause, resume или complete.
func (c *Client) WorkflowAction(id, action string) error {
	return c.put("/api/v1/workflows/"+id+"/"+action, nil, nil)
}

// --- Nodes ---

// GetNode возвращает узел по ID.
func (c *Client) GetNode(id string) (*NodeResponse, error) {
	var node NodeResponse
	err := c.get("/api/v1/nodes/"+id, &node)
	return &node, err
}

// NodeHistory возвращает журнал статусов узла.
func (c *Client) NodeHistory(id string) ([]StatusChangeResponse, error) {
	var changes []StatusChangeResponse
	err := c.get("/api/v1/nodes/"+id+"/history", &changes)
	return changes, err
}

// UpdateNodeStatus сообщает статус клиента.
func (c *Client) UpdateNodeStatus(id, status string, response json.RawMessage) error {
	var body any
	if len(response) > 0 {
		body = map[string]json.RawMessage{"response": response}
	}
	return c.put("/api/v1/nodes/"+id+"/status/"+status, body, nil)
}

// NodeAction выполняет reset, retry или deactivate.
func (c *Client) NodeAction(id, action string) error {
	return c.put("/api/v1/nodes/"+id+"/"+action, nil, nil)
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	if er.Error.CurrentStatus != "" {
		return fmt.Errorf("%s: %s (current: %s, attempted: %s)",
			er.Error.Code, er.Error.Message, er.Error.CurrentStatus, er.Error.AttemptedStatus)
	}
	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
