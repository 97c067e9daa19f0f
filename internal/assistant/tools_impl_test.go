package assistant

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reinhart/taskAgent/internal/asana"
	"github.com/reinhart/taskAgent/internal/documents"
	"github.com/reinhart/taskAgent/internal/webhook"
)

func fixedNow(t *testing.T, day string) {
	t.Helper()
	d, err := time.Parse(dateLayout, day)
	require.NoError(t, err)
	orig := now
	now = func() time.Time { return d }
	t.Cleanup(func() { now = orig })
}

func asanaTools(t *testing.T, handler http.HandlerFunc) map[string]Tool {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := asana.NewClient(asana.Config{BaseURL: srv.URL, AccessToken: "secret", WorkspaceID: "ws1", ProjectID: "p-default"})
	require.NoError(t, err)

	tools := make(map[string]Tool)
	for _, tool := range TaskTools(c) {
		tools[tool.Definition().Name] = tool
	}
	return tools
}

func decodeData(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	var body struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body.Data
}

func TestCreateTaskDefaultsToToday(t *testing.T) {
	fixedNow(t, "2024-07-01")
	tools := asanaTools(t, func(w http.ResponseWriter, r *http.Request) {
		data := decodeData(t, r)
		require.Equal(t, "Ship report", data["name"])
		require.Equal(t, "2024-07-01", data["due_on"])
		_, _ = w.Write([]byte(`{"data":{"gid":"t1","name":"Ship report","due_on":"2024-07-01","completed":false}}`))
	})

	out, err := tools["create_task"].Execute(context.Background(), `{"task_name":"Ship report"}`)
	require.NoError(t, err)

	var task asana.Task
	require.NoError(t, json.Unmarshal([]byte(out), &task))
	require.Equal(t, "t1", task.GID)
}

func TestCreateTaskRequiresName(t *testing.T) {
	tools := asanaTools(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := tools["create_task"].Execute(context.Background(), `{"due_on":"today"}`)
	require.Error(t, err)
}

func TestGetTasksFallsBackToDefaultProject(t *testing.T) {
	tools := asanaTools(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "p-default", r.URL.Query().Get("project"))
		_, _ = w.Write([]byte(`{"data":[{"gid":"t1","name":"Ship report","due_on":null,"completed":false}]}`))
	})

	out, err := tools["get_tasks"].Execute(context.Background(), `{}`)
	require.NoError(t, err)
	require.Contains(t, out, `"gid": "t1"`)
}

func TestUpdateTaskReportsChanges(t *testing.T) {
	fixedNow(t, "2024-07-02")
	tools := asanaTools(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tasks/t1", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"data":{"gid":"t1","name":"Ship report","due_on":"2024-07-01","completed":false}}`))
		case http.MethodPut:
			data := decodeData(t, r)
			require.Equal(t, true, data["completed"])
			require.Equal(t, "2024-07-02", data["due_on"])
			_, _ = w.Write([]byte(`{"data":{"gid":"t1","name":"Ship report","due_on":"2024-07-02","completed":true}}`))
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})

	out, err := tools["update_task"].Execute(context.Background(), `{"task_gid":"t1","completed":true,"due_on":"today"}`)
	require.NoError(t, err)
	require.Contains(t, out, "Changes:\n")
	require.Contains(t, out, "- completed: false\n")
	require.Contains(t, out, "+ completed: true\n")
	require.Contains(t, out, "- due_on: 2024-07-01\n")
	require.Contains(t, out, "+ due_on: 2024-07-02\n")
	require.NotContains(t, out, "name: Ship report")
}

func TestTaskChangesNoop(t *testing.T) {
	task := &asana.Task{Name: "Ship report"}
	require.Equal(t, "no changes\n", taskChanges(task, task))
}

func TestDeleteTask(t *testing.T) {
	tools := asanaTools(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/tasks/t9", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{}}`))
	})

	out, err := tools["delete_task"].Execute(context.Background(), `{"task_gid":"t9"}`)
	require.NoError(t, err)
	require.Equal(t, "Task t9 deleted", out)
}

func TestAsanaFailureSurfacesAsToolError(t *testing.T) {
	tools := asanaTools(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"errors":[{"message":"Forbidden"}]}`))
	})

	_, err := tools["get_projects"].Execute(context.Background(), `{}`)
	var apiErr *asana.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestWebhookToolsOnlyForConfiguredURLs(t *testing.T) {
	c := webhook.NewClient("", 0)
	require.Empty(t, WebhookTools(c, WebhookURLs{}))
	require.Len(t, WebhookTools(c, WebhookURLs{SendSlackMessage: "http://example.invalid"}), 1)
}

func TestUploadGoogleDocPostsTitleAndText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer n8n-token", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"document_title":"Notes","document_text":"Ship it"}`, string(body))
		_, _ = w.Write([]byte(`{"id":"doc1"}`))
	}))
	defer srv.Close()

	tools := WebhookTools(webhook.NewClient("n8n-token", time.Second), WebhookURLs{
		SummarizeSlack:  srv.URL,
		UploadGoogleDoc: srv.URL,
	})
	require.Len(t, tools, 2)

	out, err := tools[1].Execute(context.Background(), `{"document_title":"Notes","document_text":"Ship it"}`)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"doc1"}`, out)

	_, err = tools[1].Execute(context.Background(), `{"document_title":"Notes"}`)
	require.Error(t, err)
}

func TestDocumentTools(t *testing.T) {
	ctx := context.Background()
	ix, err := documents.Open(":memory:")
	require.NoError(t, err)
	defer ix.Close()

	path := filepath.Join(t.TempDir(), "standup.md")
	require.NoError(t, os.WriteFile(path, []byte("The launch checklist is owned by Priya."), 0o644))

	tools := DocumentTools(ix, 3)
	add, query := tools[1], tools[0]

	out, err := add.Execute(ctx, `{"file_path":"`+filepath.ToSlash(path)+`"}`)
	require.NoError(t, err)
	require.Contains(t, out, "(1 chunks)")

	out, err = query.Execute(ctx, `{"question":"Who owns the launch checklist?"}`)
	require.NoError(t, err)
	require.Contains(t, out, "Source: "+path)
	require.Contains(t, out, "owned by Priya")

	out, err = query.Execute(ctx, `{"question":"quarterly budget"}`)
	require.NoError(t, err)
	require.Equal(t, "No matching documents found.", out)
}
