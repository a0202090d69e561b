package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	body   string
}

// newAPI поднимает фейковый API, отвечающий reply на любой запрос.
func newAPI(t *testing.T, status int, reply string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, recorded{method: r.Method, path: r.URL.Path, body: string(body)})
		mu.Unlock()
		if status == http.StatusNoContent {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func run(t *testing.T, factory func(func() *Client, func() *Output) *cobra.Command, url string, jsonMode bool, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := factory(
		func() *Client { return NewClient(url) },
		func() *Output { return &Output{jsonMode: jsonMode, w: &stdout, errW: &stderr} },
	)
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestWorkflowTree(t *testing.T) {
	srv, calls := newAPI(t, http.StatusOK, `{"data":{
		"id":"wf-1","name":"fulfillment","children":[
			{"id":"n-1","name":"order placed","current_server_status":"processing_children","current_client_status":"complete","children":[
				{"id":"n-2","name":"charge card","current_server_status":"sent_to_client","current_client_status":"errored","children":[]}
			]}
		]}}`)

	stdout, _, err := run(t, NewWorkflowCmd, srv.URL, false, "tree", "wf-1")
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	assert.Equal(t, "/api/v1/workflows/wf-1/tree", (*calls)[0].path)
	assert.Contains(t, stdout, "fulfillment (workflow wf-1)")
	assert.Contains(t, stdout, "order placed [processing_children/complete] n-1")
	assert.Contains(t, stdout, "charge card [sent_to_client/errored] n-2")
}

func TestWorkflowSignal(t *testing.T) {
	srv, calls := newAPI(t, http.StatusCreated, `{"data":{"id":"n-1","seq":1,"name":"order_placed","legacy_type":"signal","mode":"blocking","current_server_status":"ready","current_client_status":"ready"}}`)

	stdout, stderr, err := run(t, NewWorkflowCmd, srv.URL, true, "signal", "wf-1", "order_placed", "--data", `{"order":1}`)
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	assert.Equal(t, http.MethodPost, (*calls)[0].method)
	assert.Equal(t, "/api/v1/workflows/wf-1/signal/order_placed", (*calls)[0].path)
	assert.JSONEq(t, `{"client_data":{"order":1}}`, (*calls)[0].body)

	var node NodeResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &node))
	assert.Equal(t, "n-1", node.ID)
	assert.Contains(t, stderr, "Signal n-1 accepted")
}

func TestWorkflowSignal_InvalidData(t *testing.T) {
	srv, calls := newAPI(t, http.StatusCreated, `{}`)

	_, _, err := run(t, NewWorkflowCmd, srv.URL, false, "signal", "wf-1", "x", "--data", "{oops")
	assert.Error(t, err)
	assert.Empty(t, *calls)
}

func TestNodeStatus(t *testing.T) {
	srv, calls := newAPI(t, http.StatusNoContent, ``)

	_, stderr, err := run(t, NewNodeCmd, srv.URL, false, "status", "n-1", "errored", "--response", `{"reason":"declined"}`)
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	assert.Equal(t, http.MethodPut, (*calls)[0].method)
	assert.Equal(t, "/api/v1/nodes/n-1/status/errored", (*calls)[0].path)
	assert.JSONEq(t, `{"response":{"reason":"declined"}}`, (*calls)[0].body)
	assert.Contains(t, stderr, "Node n-1 status: errored")
}

func TestNodeStatus_InvalidTransition(t *testing.T) {
	srv, _ := newAPI(t, http.StatusConflict, `{"error":{
		"code":"INVALID_STATUS_CHANGE",
		"message":"cannot transition current_client_status from ready to processing",
		"current_status":"ready","attempted_status":"processing"}}`)

	_, _, err := run(t, NewNodeCmd, srv.URL, false, "status", "n-1", "processing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_STATUS_CHANGE")
	assert.Contains(t, err.Error(), "current: ready, attempted: processing")
}

func TestNodeHistory_Table(t *testing.T) {
	srv, _ := newAPI(t, http.StatusOK, `{"data":[
		{"status_type":"current_server_status","from_status":"pending","to_status":"ready","created_at":"2024-03-01T12:00:00Z"},
		{"status_type":"current_client_status","from_status":"received","to_status":"errored","response":{"e":1},"created_at":"2024-03-01T12:01:00Z"}
	],"total":2}`)

	stdout, _, err := run(t, NewNodeCmd, srv.URL, false, "history", "n-1")
	require.NoError(t, err)

	assert.Contains(t, stdout, "DIMENSION")
	assert.Contains(t, stdout, "current_client_status")
	assert.Contains(t, stdout, `{"e":1}`)
}

func TestNodeStyle(t *testing.T) {
	assert.Equal(t, styleErrored, nodeStyle("sent_to_client", "errored"))
	assert.Equal(t, styleComplete, nodeStyle("complete", "complete"))
	assert.Equal(t, styleReady, nodeStyle("ready", "ready"))
	assert.Equal(t, styleOther, nodeStyle("started", "ready"))
}
