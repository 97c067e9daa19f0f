package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/reinhart/taskAgent/internal/asana"
	"github.com/reinhart/taskAgent/internal/documents"
	"github.com/reinhart/taskAgent/internal/drive"
	"github.com/reinhart/taskAgent/internal/webhook"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// now is swapped in tests.
var now = time.Now

const dateLayout = "2006-01-02"

func resolveDate(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "today") {
		return now().Format(dateLayout)
	}
	return strings.TrimSpace(s)
}

func jsonResult(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(b), nil
}

// TaskTools returns the Asana task and project tools.
func TaskTools(c *asana.Client) []Tool {
	return []Tool{
		&CreateTaskTool{Client: c},
		&GetProjectsTool{Client: c},
		&CreateProjectTool{Client: c},
		&GetTasksTool{Client: c},
		&UpdateTaskTool{Client: c},
		&DeleteTaskTool{Client: c},
	}
}

// --- Task Tools ---

type CreateTaskTool struct {
	Client *asana.Client
}

type CreateTaskArgs struct {
	TaskName   string `json:"task_name"`
	ProjectGID string `json:"project_gid"`
	DueOn      string `json:"due_on"`
}

func (t *CreateTaskTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "create_task",
		Description: "Creates a task in Asana given the name of the task and when it is due",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"task_name": {"type": "string", "description": "The name of the task in Asana"},
				"project_gid": {"type": "string", "description": "The ID of the project to add the task to. Uses the default project if omitted"},
				"due_on": {"type": "string", "description": "The date the task is due in the format YYYY-MM-DD, or 'today'. Defaults to today"}
			},
			"required": ["task_name"],
			"additionalProperties": false
		}`),
	}
}

func (t *CreateTaskTool) Execute(ctx context.Context, args string) (string, error) {
	var a CreateTaskArgs
	if err := ParseArgs(args, &a); err != nil {
		return "", err
	}
	if strings.TrimSpace(a.TaskName) == "" {
		return "", fmt.Errorf("task_name is required")
	}
	if a.DueOn == "" {
		a.DueOn = "today"
	}

	task, err := t.Client.CreateTask(ctx, a.TaskName, a.ProjectGID, resolveDate(a.DueOn))
	if err != nil {
		return "", err
	}
	return jsonResult(task)
}

type GetProjectsTool struct {
	Client *asana.Client
}

func (t *GetProjectsTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "get_projects",
		Description: "Gets all of the projects in the user's Asana workspace. Each project has a gid and a name",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {},
			"additionalProperties": false
		}`),
	}
}

func (t *GetProjectsTool) Execute(ctx context.Context, args string) (string, error) {
	projects, err := t.Client.Projects(ctx)
	if err != nil {
		return "", err
	}
	return jsonResult(projects)
}

type CreateProjectTool struct {
	Client *asana.Client
}

type CreateProjectArgs struct {
	ProjectName string `json:"project_name"`
	DueOn       string `json:"due_on"`
}

func (t *CreateProjectTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "create_project",
		Description: "Creates a project in Asana given the name of the project and optionally when it is due",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project_name": {"type": "string", "description": "The name of the project in Asana"},
				"due_on": {"type": "string", "description": "The date the project is due in the format YYYY-MM-DD. No due date if omitted"}
			},
			"required": ["project_name"],
			"additionalProperties": false
		}`),
	}
}

func (t *CreateProjectTool) Execute(ctx context.Context, args string) (string, error) {
	var a CreateProjectArgs
	if err := ParseArgs(args, &a); err != nil {
		return "", err
	}
	if strings.TrimSpace(a.ProjectName) == "" {
		return "", fmt.Errorf("project_name is required")
	}

	project, err := t.Client.CreateProject(ctx, a.ProjectName, resolveDate(a.DueOn))
	if err != nil {
		return "", err
	}
	return jsonResult(project)
}

type GetTasksTool struct {
	Client *asana.Client
}

type GetTasksArgs struct {
	ProjectGID string `json:"project_gid"`
}

func (t *GetTasksTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "get_tasks",
		Description: "Gets all the Asana tasks in a project with their gid, name, creation date, due date and completion",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project_gid": {"type": "string", "description": "The ID of the project in Asana to fetch the tasks for"}
			},
			"required": ["project_gid"],
			"additionalProperties": false
		}`),
	}
}

func (t *GetTasksTool) Execute(ctx context.Context, args string) (string, error) {
	var a GetTasksArgs
	if err := ParseArgs(args, &a); err != nil {
		return "", err
	}
	if a.ProjectGID == "" {
		a.ProjectGID = t.Client.DefaultProject()
	}

	tasks, err := t.Client.Tasks(ctx, a.ProjectGID)
	if err != nil {
		return "", err
	}
	return jsonResult(tasks)
}

type UpdateTaskTool struct {
	Client *asana.Client
}

type UpdateTaskArgs struct {
	TaskGID   string  `json:"task_gid"`
	Completed *bool   `json:"completed"`
	DueOn     *string `json:"due_on"`
}

func (t *UpdateTaskTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "update_task",
		Description: "Updates a task in Asana by changing whether it is completed and/or its due date. Returns the updated task and the changes made",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"task_gid": {"type": "string", "description": "The ID of the task to update"},
				"completed": {"type": "boolean", "description": "Whether the task is completed"},
				"due_on": {"type": "string", "description": "The new due date in the format YYYY-MM-DD, or 'today'"}
			},
			"required": ["task_gid"],
			"additionalProperties": false
		}`),
	}
}

func (t *UpdateTaskTool) Execute(ctx context.Context, args string) (string, error) {
	var a UpdateTaskArgs
	if err := ParseArgs(args, &a); err != nil {
		return "", err
	}
	if a.TaskGID == "" {
		return "", fmt.Errorf("task_gid is required")
	}
	update := asana.TaskUpdate{Completed: a.Completed}
	if a.DueOn != nil {
		due := resolveDate(*a.DueOn)
		update.DueOn = &due
	}

	before, err := t.Client.Task(ctx, a.TaskGID)
	if err != nil {
		return "", err
	}
	after, err := t.Client.UpdateTask(ctx, a.TaskGID, update)
	if err != nil {
		return "", err
	}

	out, err := jsonResult(after)
	if err != nil {
		return "", err
	}
	return out + "\n\nChanges:\n" + taskChanges(before, after), nil
}

func renderTask(t *asana.Task) string {
	due := "none"
	if t.DueOn != nil {
		due = *t.DueOn
	}
	return fmt.Sprintf("name: %s\ncompleted: %s\ndue_on: %s\n", t.Name, strconv.FormatBool(t.Completed), due)
}

// taskChanges line-diffs the fields of a task before and after an update.
func taskChanges(before, after *asana.Task) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(renderTask(before), renderTask(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := ""
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		default:
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			sb.WriteString(prefix + line + "\n")
		}
	}
	if sb.Len() == 0 {
		return "no changes\n"
	}
	return sb.String()
}

type DeleteTaskTool struct {
	Client *asana.Client
}

type DeleteTaskArgs struct {
	TaskGID string `json:"task_gid"`
}

func (t *DeleteTaskTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "delete_task",
		Description: "Deletes a task in Asana",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"task_gid": {"type": "string", "description": "The ID of the task to delete"}
			},
			"required": ["task_gid"],
			"additionalProperties": false
		}`),
	}
}

func (t *DeleteTaskTool) Execute(ctx context.Context, args string) (string, error) {
	var a DeleteTaskArgs
	if err := ParseArgs(args, &a); err != nil {
		return "", err
	}
	if a.TaskGID == "" {
		return "", fmt.Errorf("task_gid is required")
	}
	if err := t.Client.DeleteTask(ctx, a.TaskGID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Task %s deleted", a.TaskGID), nil
}

// --- Webhook Tools ---

// WebhookURLs are the n8n workflow endpoints. Tools whose URL is empty are
// not offered.
type WebhookURLs struct {
	SummarizeSlack   string
	SendSlackMessage string
	UploadGoogleDoc  string
}

func WebhookTools(c *webhook.Client, urls WebhookURLs) []Tool {
	var tools []Tool
	if urls.SummarizeSlack != "" {
		tools = append(tools, &SummarizeSlackTool{Client: c, URL: urls.SummarizeSlack})
	}
	if urls.SendSlackMessage != "" {
		tools = append(tools, &SendSlackMessageTool{Client: c, URL: urls.SendSlackMessage})
	}
	if urls.UploadGoogleDoc != "" {
		tools = append(tools, &UploadGoogleDocTool{Client: c, URL: urls.UploadGoogleDoc})
	}
	return tools
}

type SummarizeSlackTool struct {
	Client *webhook.Client
	URL    string
}

func (t *SummarizeSlackTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "summarize_slack_conversation",
		Description: "Gets the latest messages in a Slack channel and summarizes the conversation",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {},
			"additionalProperties": false
		}`),
	}
}

func (t *SummarizeSlackTool) Execute(ctx context.Context, args string) (string, error) {
	return t.Client.Get(ctx, t.URL)
}

type SendSlackMessageTool struct {
	Client *webhook.Client
	URL    string
}

type SendSlackMessageArgs struct {
	Message string `json:"message"`
}

func (t *SendSlackMessageTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "send_slack_message",
		Description: "Sends a message in a Slack channel",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"message": {"type": "string", "description": "The message to send in the Slack channel"}
			},
			"required": ["message"],
			"additionalProperties": false
		}`),
	}
}

func (t *SendSlackMessageTool) Execute(ctx context.Context, args string) (string, error) {
	var a SendSlackMessageArgs
	if err := ParseArgs(args, &a); err != nil {
		return "", err
	}
	if a.Message == "" {
		return "", fmt.Errorf("message is required")
	}
	return t.Client.Post(ctx, t.URL, a)
}

type UploadGoogleDocTool struct {
	Client *webhook.Client
	URL    string
}

type UploadGoogleDocArgs struct {
	DocumentTitle string `json:"document_title"`
	DocumentText  string `json:"document_text"`
}

func (t *UploadGoogleDocTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "upload_google_doc",
		Description: "Creates a Google Doc in Google Drive with the text specified",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"document_title": {"type": "string", "description": "The name of the Google Doc"},
				"document_text": {"type": "string", "description": "The text to put in the new Google Doc"}
			},
			"required": ["document_title", "document_text"],
			"additionalProperties": false
		}`),
	}
}

func (t *UploadGoogleDocTool) Execute(ctx context.Context, args string) (string, error) {
	var a UploadGoogleDocArgs
	if err := ParseArgs(args, &a); err != nil {
		return "", err
	}
	if a.DocumentText == "" {
		return "", fmt.Errorf("document_text is required")
	}
	return t.Client.Post(ctx, t.URL, a)
}

// --- Document Tools ---

func DocumentTools(ix *documents.Index, k int) []Tool {
	return []Tool{
		&QueryDocumentsTool{Index: ix, K: k},
		&AddDocumentTool{Index: ix},
	}
}

type QueryDocumentsTool struct {
	Index *documents.Index
	K     int
}

type QueryDocumentsArgs struct {
	Question string `json:"question"`
}

func (t *QueryDocumentsTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "query_documents",
		Description: "Searches the local knowledge base (meeting notes and other documents) for text that helps answer a question",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"question": {"type": "string", "description": "The question the user asked that might be answerable from the documents"}
			},
			"required": ["question"],
			"additionalProperties": false
		}`),
	}
}

func (t *QueryDocumentsTool) Execute(ctx context.Context, args string) (string, error) {
	var a QueryDocumentsArgs
	if err := ParseArgs(args, &a); err != nil {
		return "", err
	}
	results, err := t.Index.Search(ctx, a.Question, t.K)
	if err != nil {
		return "", err
	}
	return documents.Format(results), nil
}

type AddDocumentTool struct {
	Index *documents.Index
}

type AddDocumentArgs struct {
	FilePath string `json:"file_path"`
}

func (t *AddDocumentTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "add_doc_to_knowledgebase",
		Description: "Adds a local text or markdown file to the knowledge base searched by query_documents",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file_path": {"type": "string", "description": "The path of the file to add"}
			},
			"required": ["file_path"],
			"additionalProperties": false
		}`),
	}
}

func (t *AddDocumentTool) Execute(ctx context.Context, args string) (string, error) {
	var a AddDocumentArgs
	if err := ParseArgs(args, &a); err != nil {
		return "", err
	}
	if a.FilePath == "" {
		return "", fmt.Errorf("file_path is required")
	}
	n, err := t.Index.AddFile(ctx, a.FilePath)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Added %s to the knowledge base (%d chunks)", a.FilePath, n), nil
}

// --- Drive Tools ---

func DriveTools(c *drive.Client) []Tool {
	return []Tool{
		&SearchDriveFilesTool{Client: c},
		&ReadDriveFileTool{Client: c},
	}
}

type SearchDriveFilesTool struct {
	Client *drive.Client
}

type SearchDriveFilesArgs struct {
	Query string `json:"query"`
}

func (t *SearchDriveFilesTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: "search_drive_files",
		Description: "Searches for files in Google Drive. The query uses Drive syntax: " +
			"name contains 'example' to match file names, fullText contains 'example text' to match file contents",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Drive search query, e.g. name contains 'report'"}
			},
			"required": ["query"],
			"additionalProperties": false
		}`),
	}
}

func (t *SearchDriveFilesTool) Execute(ctx context.Context, args string) (string, error) {
	var a SearchDriveFilesArgs
	if err := ParseArgs(args, &a); err != nil {
		return "", err
	}
	files, err := t.Client.Search(ctx, a.Query)
	if err != nil {
		return "", err
	}
	return jsonResult(files)
}

type ReadDriveFileTool struct {
	Client *drive.Client
}

type ReadDriveFileArgs struct {
	FileID string `json:"file_id"`
}

func (t *ReadDriveFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "read_drive_file",
		Description: "Reads a Google Docs file from Google Drive as plain text",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file_id": {"type": "string", "description": "The ID of the file, as returned by search_drive_files"}
			},
			"required": ["file_id"],
			"additionalProperties": false
		}`),
	}
}

func (t *ReadDriveFileTool) Execute(ctx context.Context, args string) (string, error) {
	var a ReadDriveFileArgs
	if err := ParseArgs(args, &a); err != nil {
		return "", err
	}
	return t.Client.Read(ctx, a.FileID)
}
