package asana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{
		BaseURL:     srv.URL,
		AccessToken: "secret",
		WorkspaceID: "ws1",
		ProjectID:   "p-default",
	})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(Config{})
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestCreateTaskUsesDefaultProject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/tasks", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body struct {
			Data map[string]interface{} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "Ship report", body.Data["name"])
		require.Equal(t, "2024-07-01", body.Data["due_on"])
		require.Equal(t, []interface{}{"p-default"}, body.Data["projects"])

		_, _ = w.Write([]byte(`{"data":{"gid":"t1","name":"Ship report","due_on":"2024-07-01"}}`))
	})

	task, err := c.CreateTask(context.Background(), "Ship report", "", "2024-07-01")
	require.NoError(t, err)
	require.Equal(t, "t1", task.GID)
	require.NotNil(t, task.DueOn)
	require.Equal(t, "2024-07-01", *task.DueOn)
}

func TestProjectsQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/projects", r.URL.Path)
		require.Equal(t, "ws1", r.URL.Query().Get("workspace"))
		require.Equal(t, "50", r.URL.Query().Get("limit"))
		require.Equal(t, "false", r.URL.Query().Get("archived"))
		_, _ = w.Write([]byte(`{"data":[{"gid":"p1","name":"Launch","resource_type":"project"}]}`))
	})

	projects, err := c.Projects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	require.Equal(t, "Launch", projects[0].Name)
}

func TestTasksRequiresProject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := c.Tasks(context.Background(), "")
	require.Error(t, err)
}

func TestUpdateTaskSendsOnlySetFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/tasks/t1", r.URL.Path)

		var body struct {
			Data map[string]interface{} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, map[string]interface{}{"completed": true}, body.Data)

		_, _ = w.Write([]byte(`{"data":{"gid":"t1","name":"Ship report","completed":true}}`))
	})

	done := true
	task, err := c.UpdateTask(context.Background(), "t1", TaskUpdate{Completed: &done})
	require.NoError(t, err)
	require.True(t, task.Completed)

	_, err = c.UpdateTask(context.Background(), "t1", TaskUpdate{})
	require.Error(t, err)
}

func TestAPIErrorSurfaced(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[{"message":"task: Unknown object"}]}`))
	})

	err := c.DeleteTask(context.Background(), "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.Contains(t, apiErr.Body, "Unknown object")
}
