package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"comply/internal/app/server"
	"comply/internal/domain/auth"
	"comply/internal/platform/config"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func testConfig(dbURL string) config.Config {
	return config.Config{
		Addr:                ":0",
		DatabaseURL:         dbURL,
		JWTSecret:           "test-secret",
		ConfigEncryptionKey: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		Environment:         "test",
		AppBaseURL:          "http://localhost",
		SessionTTL:          time.Hour,
		SeedWorkspaceName:   "Test Workspace",
		SeedAdminEmail:      "admin@test.local",
		SeedAdminName:       "Test Admin",
		SeedAdminPassword:   "ChangeMe123!",
		RunMigrations:       true,
		RunSeed:             true,
		MaxBodyBytes:        1048576,
		ImportPreviewLimit:  100,
	}
}

func startApp(t *testing.T) (*server.App, *httptest.Server) {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	app, err := server.New(context.Background(), testConfig(dbURL))
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	t.Cleanup(app.Close)

	ts := httptest.NewServer(app.Router)
	t.Cleanup(ts.Close)
	return app, ts
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, payload any) (int, envelope) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		t.Fatalf("decode response from %s %s: %v", method, url, err)
	}
	return resp.StatusCode, env
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) string {
	t.Helper()
	status, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if status != http.StatusOK {
		t.Fatalf("login failed with status %d", status)
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return data.Token
}

func createdID(t *testing.T, env envelope) string {
	t.Helper()
	var data struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode created id: %v", err)
	}
	return data.ID
}

func tokenFor(t *testing.T, userID, workspaceID string, role auth.Role) string {
	t.Helper()
	token, err := auth.GenerateToken("test-secret", auth.Claims{
		UserID:      userID,
		WorkspaceID: workspaceID,
		Role:        string(role),
	}, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func TestTaskLifecycleJourney(t *testing.T) {
	app, ts := startApp(t)
	client := ts.Client()
	adminToken := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")

	suffix := time.Now().UnixNano()

	// Master data.
	_, env := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/entities", adminToken, map[string]string{"name": fmt.Sprintf("Plant %d", suffix)})
	entityID := createdID(t, env)
	_, env = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/departments", adminToken, map[string]string{"name": fmt.Sprintf("Finance %d", suffix)})
	departmentID := createdID(t, env)
	_, env = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/laws", adminToken, map[string]string{"name": fmt.Sprintf("Tax Act %d", suffix)})
	lawID := createdID(t, env)

	// Owner and reviewer accounts.
	ownerEmail := fmt.Sprintf("owner-%d@example.com", suffix)
	_, env = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/users", adminToken, map[string]string{
		"email": ownerEmail, "name": "Owner", "role": "task_owner",
	})
	ownerID := createdID(t, env)
	_, env = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/users", adminToken, map[string]string{
		"email": fmt.Sprintf("reviewer-%d@example.com", suffix), "name": "Reviewer", "role": "reviewer",
	})
	reviewerID := createdID(t, env)

	// Task creation.
	due := time.Now().Add(72 * time.Hour).Format("2006-01-02")
	status, env := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/tasks", adminToken, map[string]any{
		"complianceId": fmt.Sprintf("C-%d", suffix),
		"title":        "File quarterly returns",
		"lawId":        lawID,
		"departmentId": departmentID,
		"entityId":     entityID,
		"ownerId":      ownerID,
		"reviewerId":   reviewerID,
		"dueDate":      due,
	})
	if status != http.StatusCreated {
		t.Fatalf("task create failed with status %d: %+v", status, env.Error)
	}
	taskID := createdID(t, env)

	// Same compliance id and entity is rejected.
	status, env = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/tasks", adminToken, map[string]any{
		"complianceId": fmt.Sprintf("C-%d", suffix),
		"title":        "Duplicate",
		"lawId":        lawID,
		"departmentId": departmentID,
		"entityId":     entityID,
		"ownerId":      ownerID,
		"reviewerId":   reviewerID,
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate task, got %d", status)
	}

	var workspaceID string
	if err := app.DB.QueryRow(context.Background(),
		"SELECT workspace_id FROM users WHERE id = $1", ownerID).Scan(&workspaceID); err != nil {
		t.Fatalf("load workspace: %v", err)
	}
	ownerToken := tokenFor(t, ownerID, workspaceID, auth.RoleTaskOwner)

	// Completion without evidence is blocked.
	status, env = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/tasks/"+taskID+"/complete", ownerToken, map[string]any{})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without evidence, got %d: %+v", status, env.Error)
	}
	if env.Error == nil || env.Error.Code != "evidence_required" {
		t.Fatalf("expected evidence_required, got %+v", env.Error)
	}

	// Simulate a confirmed upload. The external store is not reachable in
	// tests, so the row is written directly.
	if _, err := app.DB.Exec(context.Background(), `
    INSERT INTO evidence_files (workspace_id, task_id, uploaded_by, item_id, name)
    VALUES ($1, $2, $3, $4, 'evidence.pdf')
  `, workspaceID, taskID, ownerID, fmt.Sprintf("item-%d", suffix)); err != nil {
		t.Fatalf("insert evidence: %v", err)
	}

	status, env = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/tasks/"+taskID+"/complete", ownerToken, map[string]any{"comment": "done"})
	if status != http.StatusOK {
		t.Fatalf("complete failed with status %d: %+v", status, env.Error)
	}

	// The execution row is stamped with the task's workspace.
	var execWorkspace string
	if err := app.DB.QueryRow(context.Background(),
		"SELECT workspace_id FROM task_executions WHERE task_id = $1", taskID).Scan(&execWorkspace); err != nil {
		t.Fatalf("load execution workspace: %v", err)
	}
	if execWorkspace != workspaceID {
		t.Fatalf("execution workspace %s, want %s", execWorkspace, workspaceID)
	}

	// A terminal task cannot be completed or skipped again.
	status, _ = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/tasks/"+taskID+"/complete", ownerToken, map[string]any{})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 on double complete, got %d", status)
	}
	status, _ = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/tasks/"+taskID+"/skip", ownerToken, map[string]any{"remarks": "n/a"})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 skipping completed task, got %d", status)
	}

	// The execution trail records the completion.
	status, env = doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/tasks/"+taskID+"/executions", adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("executions failed with status %d", status)
	}
	var executions []struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(env.Data, &executions); err != nil {
		t.Fatalf("decode executions: %v", err)
	}
	if len(executions) != 1 || executions[0].Action != "COMPLETE" {
		t.Fatalf("unexpected executions: %+v", executions)
	}
}

func TestSkipRequiresRemarks(t *testing.T) {
	app, ts := startApp(t)
	client := ts.Client()
	adminToken := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")

	suffix := time.Now().UnixNano()
	taskID, ownerID, workspaceID := seedTask(t, app, ts, adminToken, suffix)
	ownerToken := tokenFor(t, ownerID, workspaceID, auth.RoleTaskOwner)

	status, _ := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/tasks/"+taskID+"/skip", ownerToken, map[string]any{"remarks": "  "})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank remarks, got %d", status)
	}

	status, _ = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/tasks/"+taskID+"/skip", ownerToken, map[string]any{"remarks": "not applicable this cycle"})
	if status != http.StatusOK {
		t.Fatalf("skip failed with status %d", status)
	}

	var taskStatus string
	if err := app.DB.QueryRow(context.Background(),
		"SELECT status FROM compliance_tasks WHERE id = $1", taskID).Scan(&taskStatus); err != nil {
		t.Fatalf("load task status: %v", err)
	}
	if taskStatus != "SKIPPED" {
		t.Fatalf("expected SKIPPED, got %s", taskStatus)
	}
}

func TestOwnerScopingAndRBAC(t *testing.T) {
	app, ts := startApp(t)
	client := ts.Client()
	adminToken := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")

	suffix := time.Now().UnixNano()
	taskID, ownerID, workspaceID := seedTask(t, app, ts, adminToken, suffix)

	// A second owner must not see or touch the first owner's task.
	_, env := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/users", adminToken, map[string]string{
		"email": fmt.Sprintf("other-%d@example.com", suffix), "name": "Other", "role": "task_owner",
	})
	otherID := createdID(t, env)
	otherToken := tokenFor(t, otherID, workspaceID, auth.RoleTaskOwner)

	status, env := doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/tasks/", otherToken, nil)
	if status != http.StatusOK {
		t.Fatalf("task list failed with status %d", status)
	}
	var listing struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := json.Unmarshal(env.Data, &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	for _, item := range listing.Items {
		if item.ID == taskID {
			t.Fatal("other owner can see a task they do not own")
		}
	}

	status, _ = doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/tasks/"+taskID, otherToken, nil)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 reading foreign task, got %d", status)
	}
	status, _ = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/tasks/"+taskID+"/skip", otherToken, map[string]any{"remarks": "mine now"})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 skipping foreign task, got %d", status)
	}

	// Complete and skip belong to the owning task_owner alone; even admins
	// are turned away.
	status, _ = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/tasks/"+taskID+"/complete", adminToken, map[string]any{})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for admin complete, got %d", status)
	}

	// Reviewers see everything but cannot administer.
	reviewerToken := tokenFor(t, ownerID, workspaceID, auth.RoleReviewer)
	status, _ = doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/tasks/"+taskID, reviewerToken, nil)
	if status != http.StatusOK {
		t.Fatalf("reviewer should read any task, got %d", status)
	}
	status, _ = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/entities", reviewerToken, map[string]string{"name": "Nope"})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for reviewer master data write, got %d", status)
	}

	// Task owners have no access to the audit log or the user directory.
	ownerToken := tokenFor(t, ownerID, workspaceID, auth.RoleTaskOwner)
	status, _ = doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/audit", ownerToken, nil)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for owner audit access, got %d", status)
	}
	status, _ = doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/users/", ownerToken, nil)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for owner user listing, got %d", status)
	}

	// Unauthenticated requests are rejected outright.
	status, _ = doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/tasks/", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 unauthenticated, got %d", status)
	}
}

// seedTask creates master data, an owner, a reviewer, and one pending task,
// returning the task, owner, and workspace ids.
func seedTask(t *testing.T, app *server.App, ts *httptest.Server, adminToken string, suffix int64) (string, string, string) {
	t.Helper()
	client := ts.Client()

	_, env := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/entities", adminToken, map[string]string{"name": fmt.Sprintf("Unit %d", suffix)})
	entityID := createdID(t, env)
	_, env = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/departments", adminToken, map[string]string{"name": fmt.Sprintf("Dept %d", suffix)})
	departmentID := createdID(t, env)
	_, env = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/laws", adminToken, map[string]string{"name": fmt.Sprintf("Law %d", suffix)})
	lawID := createdID(t, env)
	_, env = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/users", adminToken, map[string]string{
		"email": fmt.Sprintf("seed-owner-%d@example.com", suffix), "name": "Seed Owner", "role": "task_owner",
	})
	ownerID := createdID(t, env)
	_, env = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/users", adminToken, map[string]string{
		"email": fmt.Sprintf("seed-reviewer-%d@example.com", suffix), "name": "Seed Reviewer", "role": "reviewer",
	})
	reviewerID := createdID(t, env)

	status, env := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/tasks", adminToken, map[string]any{
		"complianceId": fmt.Sprintf("SEED-%d", suffix),
		"title":        "Seeded task",
		"lawId":        lawID,
		"departmentId": departmentID,
		"entityId":     entityID,
		"ownerId":      ownerID,
		"reviewerId":   reviewerID,
	})
	if status != http.StatusCreated {
		t.Fatalf("seed task create failed with status %d: %+v", status, env.Error)
	}
	taskID := createdID(t, env)

	var workspaceID string
	if err := app.DB.QueryRow(context.Background(),
		"SELECT workspace_id FROM users WHERE id = $1", ownerID).Scan(&workspaceID); err != nil {
		t.Fatalf("load workspace: %v", err)
	}
	return taskID, ownerID, workspaceID
}

func uploadCSV(t *testing.T, client *http.Client, url, token, mode, csvBody string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("mode", mode); err != nil {
		t.Fatalf("write mode field: %v", err)
	}
	part, err := mw.CreateFormFile("file", "import.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(csvBody)); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("build upload request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return resp.StatusCode, env
}

func TestCSVImportPreviewAndCommit(t *testing.T) {
	app, ts := startApp(t)
	client := ts.Client()
	adminToken := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")

	suffix := time.Now().UnixNano()
	ownerEmail := fmt.Sprintf("import-owner-%d@example.com", suffix)
	reviewerEmail := fmt.Sprintf("import-reviewer-%d@example.com", suffix)
	doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/users", adminToken, map[string]string{
		"email": ownerEmail, "name": "Import Owner", "role": "task_owner",
	})
	doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/users", adminToken, map[string]string{
		"email": reviewerEmail, "name": "Import Reviewer", "role": "reviewer",
	})

	header := "Compliance Id,Title,Name of Law,Department,Operating Unit,Owner,Reviewer,Current Due Date,Frequency,Status,Impact"
	goodRow := fmt.Sprintf("IMP-%d,Renew licence,Import Act %d,Legal %d,Branch %d,%s,%s,2027-06-30,Quarterly,Pending,High",
		suffix, suffix, suffix, suffix, ownerEmail, reviewerEmail)
	badRow := fmt.Sprintf(",No compliance id,Import Act %d,Legal %d,Branch %d,%s,%s,2027-06-30,Quarterly,Pending,High",
		suffix, suffix, suffix, ownerEmail, reviewerEmail)
	csvBody := header + "\n" + goodRow + "\n" + badRow + "\n"

	// Preview validates every row but creates no tasks.
	status, env := uploadCSV(t, client, ts.URL+"/api/v1/imports/", adminToken, "preview", csvBody)
	if status != http.StatusOK {
		t.Fatalf("preview failed with status %d: %+v", status, env.Error)
	}
	var result struct {
		JobID     string `json:"jobId"`
		Total     int    `json:"total"`
		Succeeded int    `json:"succeeded"`
		Failed    int    `json:"failed"`
	}
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode preview result: %v", err)
	}
	if result.Total != 2 || result.Succeeded != 1 || result.Failed != 1 {
		t.Fatalf("unexpected preview counts: %+v", result)
	}

	var taskCount int
	if err := app.DB.QueryRow(context.Background(),
		"SELECT count(*) FROM compliance_tasks WHERE compliance_id = $1", fmt.Sprintf("IMP-%d", suffix)).Scan(&taskCount); err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	if taskCount != 0 {
		t.Fatal("preview must not create tasks")
	}

	// A finished preview job reports PREVIEW with its counts; the RUNNING
	// state only exists while rows are in flight.
	status, env = doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/imports/"+result.JobID, adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("job fetch failed with status %d", status)
	}
	var job struct {
		Status      string `json:"status"`
		TotalRows   int    `json:"totalRows"`
		SuccessRows int    `json:"successRows"`
	}
	if err := json.Unmarshal(env.Data, &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Status != "PREVIEW" || job.TotalRows != 2 || job.SuccessRows != 1 {
		t.Fatalf("unexpected preview job record: %+v", job)
	}

	// Preview still resolves reference data, so the law now exists.
	var lawCount int
	if err := app.DB.QueryRow(context.Background(),
		"SELECT count(*) FROM laws WHERE name = $1", fmt.Sprintf("Import Act %d", suffix)).Scan(&lawCount); err != nil {
		t.Fatalf("count laws: %v", err)
	}
	if lawCount != 1 {
		t.Fatalf("expected law created during preview, found %d", lawCount)
	}

	// Every row's outcome is recorded with the job.
	status, env = doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/imports/"+result.JobID+"/rows", adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("rows fetch failed with status %d", status)
	}
	var rows []struct {
		RowNumber int    `json:"rowNumber"`
		Success   bool   `json:"success"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if len(rows) != 2 || rows[0].Success == rows[1].Success {
		t.Fatalf("unexpected row records: %+v", rows)
	}

	// Commit creates the valid task.
	status, env = uploadCSV(t, client, ts.URL+"/api/v1/imports/", adminToken, "commit", csvBody)
	if status != http.StatusOK {
		t.Fatalf("commit failed with status %d: %+v", status, env.Error)
	}
	if err := app.DB.QueryRow(context.Background(),
		"SELECT count(*) FROM compliance_tasks WHERE compliance_id = $1", fmt.Sprintf("IMP-%d", suffix)).Scan(&taskCount); err != nil {
		t.Fatalf("count tasks after commit: %v", err)
	}
	if taskCount != 1 {
		t.Fatalf("expected 1 task after commit, found %d", taskCount)
	}
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode commit result: %v", err)
	}
	var commitStatus string
	if err := app.DB.QueryRow(context.Background(),
		"SELECT status FROM csv_import_jobs WHERE id = $1", result.JobID).Scan(&commitStatus); err != nil {
		t.Fatalf("load commit job status: %v", err)
	}
	if commitStatus != "COMPLETED" {
		t.Fatalf("commit job status %s, want COMPLETED", commitStatus)
	}

	// Re-committing the same file fails the row as a duplicate.
	status, env = uploadCSV(t, client, ts.URL+"/api/v1/imports/", adminToken, "commit", header+"\n"+goodRow+"\n")
	if status != http.StatusOK {
		t.Fatalf("second commit failed with status %d", status)
	}
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode second commit: %v", err)
	}
	if result.Succeeded != 0 || result.Failed != 1 {
		t.Fatalf("expected duplicate row to fail, got %+v", result)
	}

	// A header missing columns rejects the whole file.
	status, _ = uploadCSV(t, client, ts.URL+"/api/v1/imports/", adminToken, "preview", "Compliance Id,Title\nX,Y\n")
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad header, got %d", status)
	}
}

// stubDocStore fakes the external document API: it hands out tokens and
// upload sessions, echoes item metadata, and fails every delete so the
// partial-failure tolerance is observable.
func stubDocStore(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/token":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"stub-token","expires_in":3600}`))
		case strings.HasSuffix(r.URL.Path, "createUploadSession"):
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"uploadUrl":"https://upload.example.com/session/1"}`))
		case strings.Contains(r.URL.Path, "/items/") && r.Method == http.MethodGet:
			itemID := path.Base(r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     itemID,
				"name":   "evidence.pdf",
				"webUrl": "https://docs.example.com/evidence.pdf",
				"size":   2048,
				"file":   map[string]string{"mimeType": "application/pdf"},
			})
		case strings.Contains(r.URL.Path, "/items/") && r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestEvidenceUploadConfirmAndDelete(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	stub := stubDocStore(t)
	defer stub.Close()

	cfg := testConfig(dbURL)
	cfg.OAuthClientID = "stub-client"
	cfg.OAuthClientSecret = "stub-secret"
	cfg.OAuthRedirectURL = "http://localhost/auth/oauth/callback"
	cfg.OAuthTokenURL = stub.URL + "/token"
	cfg.DocStoreBaseURL = stub.URL

	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()
	ts := httptest.NewServer(app.Router)
	defer ts.Close()

	client := ts.Client()
	adminToken := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")

	for key, value := range map[string]string{
		"sharepoint_site_id":  "site-1",
		"sharepoint_drive_id": "drive-1",
	} {
		status, _ := doJSON(t, client, http.MethodPut, ts.URL+"/api/v1/settings/"+key, adminToken, map[string]string{"value": value})
		if status != http.StatusOK {
			t.Fatalf("set %s failed with status %d", key, status)
		}
	}

	suffix := time.Now().UnixNano()
	taskID, ownerID, workspaceID := seedTask(t, app, ts, adminToken, suffix)
	ownerToken := tokenFor(t, ownerID, workspaceID, auth.RoleTaskOwner)

	// Upload session in the task's evidence folder.
	status, env := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/tasks/"+taskID+"/evidence/upload-session", ownerToken, map[string]string{"fileName": "evidence.pdf"})
	if status != http.StatusOK {
		t.Fatalf("upload session failed with status %d: %+v", status, env.Error)
	}
	var ticket struct {
		UploadURL string `json:"uploadUrl"`
		ItemPath  string `json:"itemPath"`
	}
	if err := json.Unmarshal(env.Data, &ticket); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	if ticket.UploadURL == "" || !strings.Contains(ticket.ItemPath, "evidence.pdf") {
		t.Fatalf("unexpected ticket: %+v", ticket)
	}

	// Confirming the upload records the file; confirming again returns the
	// same row instead of duplicating it.
	itemID := fmt.Sprintf("item-%d", suffix)
	status, env = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/tasks/"+taskID+"/evidence/confirm", ownerToken, map[string]string{"itemId": itemID})
	if status != http.StatusCreated {
		t.Fatalf("confirm failed with status %d: %+v", status, env.Error)
	}
	fileID := createdID(t, env)

	status, env = doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/tasks/"+taskID+"/evidence/confirm", ownerToken, map[string]string{"itemId": itemID})
	if status != http.StatusCreated {
		t.Fatalf("repeat confirm failed with status %d: %+v", status, env.Error)
	}
	if repeat := createdID(t, env); repeat != fileID {
		t.Fatalf("repeat confirm returned %s, want %s", repeat, fileID)
	}

	var fileCount int
	if err := app.DB.QueryRow(context.Background(),
		"SELECT count(*) FROM evidence_files WHERE task_id = $1", taskID).Scan(&fileCount); err != nil {
		t.Fatalf("count evidence: %v", err)
	}
	if fileCount != 1 {
		t.Fatalf("expected 1 evidence row after double confirm, found %d", fileCount)
	}

	// The stub rejects every external delete; the local row must go anyway.
	status, env = doJSON(t, client, http.MethodDelete, ts.URL+"/api/v1/evidence/"+fileID, ownerToken, nil)
	if status != http.StatusOK {
		t.Fatalf("delete failed with status %d: %+v", status, env.Error)
	}
	if err := app.DB.QueryRow(context.Background(),
		"SELECT count(*) FROM evidence_files WHERE task_id = $1", taskID).Scan(&fileCount); err != nil {
		t.Fatalf("count evidence after delete: %v", err)
	}
	if fileCount != 0 {
		t.Fatalf("expected no evidence rows after delete, found %d", fileCount)
	}
}

func TestMasterDataDeleteInUse(t *testing.T) {
	app, ts := startApp(t)
	client := ts.Client()
	adminToken := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")

	suffix := time.Now().UnixNano()
	taskID, _, _ := seedTask(t, app, ts, adminToken, suffix)

	var entityID string
	if err := app.DB.QueryRow(context.Background(),
		"SELECT entity_id FROM compliance_tasks WHERE id = $1", taskID).Scan(&entityID); err != nil {
		t.Fatalf("load entity: %v", err)
	}

	status, env := doJSON(t, client, http.MethodDelete, ts.URL+"/api/v1/entities/"+entityID, adminToken, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 deleting in-use entity, got %d: %+v", status, env.Error)
	}
}

func TestSettingsEncryptionAndMasking(t *testing.T) {
	app, ts := startApp(t)
	client := ts.Client()
	adminToken := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")

	secretURL := "https://hooks.example.com/services/secret-path"
	status, _ := doJSON(t, client, http.MethodPut, ts.URL+"/api/v1/settings/webhook_url", adminToken, map[string]string{"value": secretURL})
	if status != http.StatusOK {
		t.Fatalf("set webhook url failed with status %d", status)
	}

	status, env := doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/settings/", adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("settings list failed with status %d", status)
	}
	var entries []struct {
		Key       string `json:"key"`
		Value     string `json:"value"`
		Encrypted bool   `json:"encrypted"`
	}
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	found := false
	for _, entry := range entries {
		if entry.Key == "webhook_url" {
			found = true
			if !entry.Encrypted || entry.Value == secretURL {
				t.Fatalf("webhook url not masked: %+v", entry)
			}
		}
	}
	if !found {
		t.Fatal("webhook_url setting missing from listing")
	}

	// The stored row holds ciphertext, not the URL.
	var stored []byte
	var workspaceID string
	if err := app.DB.QueryRow(context.Background(),
		"SELECT workspace_id, value_enc FROM workspace_config WHERE key = 'webhook_url' LIMIT 1").Scan(&workspaceID, &stored); err != nil {
		t.Fatalf("load stored config: %v", err)
	}
	if string(stored) == secretURL {
		t.Fatal("webhook url stored in plaintext")
	}
	_ = workspaceID
}

func TestDashboardAndReports(t *testing.T) {
	app, ts := startApp(t)
	client := ts.Client()
	adminToken := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")

	suffix := time.Now().UnixNano()
	seedTask(t, app, ts, adminToken, suffix)

	status, env := doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/dashboard", adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("dashboard failed with status %d", status)
	}
	var summary struct {
		Snapshot struct {
			Pending int `json:"pending"`
		} `json:"snapshot"`
	}
	if err := json.Unmarshal(env.Data, &summary); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if summary.Snapshot.Pending < 1 {
		t.Fatalf("expected at least one pending task, got %d", summary.Snapshot.Pending)
	}

	status, _ = doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/reports/summary", adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("report summary failed with status %d", status)
	}

	// CSV export streams with the template's header.
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/reports/export.csv", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export failed with status %d", resp.StatusCode)
	}
	if !bytes.HasPrefix(body, []byte("Compliance Id,")) {
		t.Fatalf("unexpected export header: %q", body[:min(len(body), 40)])
	}
}

func TestWeeklyDigestRecordsRun(t *testing.T) {
	app, ts := startApp(t)
	client := ts.Client()
	adminToken := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")

	// Webhook receiver standing in for the chat service.
	var received atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	status, _ := doJSON(t, client, http.MethodPut, ts.URL+"/api/v1/settings/webhook_url", adminToken, map[string]string{"value": hook.URL})
	if status != http.StatusOK {
		t.Fatalf("set webhook failed with status %d", status)
	}

	status, env := doJSON(t, client, http.MethodPost, ts.URL+"/api/v1/reports/digest/run", adminToken, map[string]any{})
	if status != http.StatusOK {
		t.Fatalf("digest run failed with status %d: %+v", status, env.Error)
	}
	if received.Load() == 0 {
		t.Fatal("webhook never received the digest")
	}

	var runs int
	if err := app.DB.QueryRow(context.Background(),
		"SELECT count(*) FROM report_runs WHERE report_type = 'WEEKLY_DIGEST' AND success = true").Scan(&runs); err != nil {
		t.Fatalf("count report runs: %v", err)
	}
	if runs == 0 {
		t.Fatal("digest run was not recorded")
	}
}

