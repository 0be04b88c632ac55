package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paygrid/payflow/pkg/models"
	"github.com/paygrid/payflow/pkg/persistence/file"
)

func setupTestApp(t *testing.T) (*fiber.App, *file.Store) {
	t.Helper()

	store := file.NewStore(t.TempDir())
	api := NewAPI(slog.Default(), store)

	return api.App(), store
}

func storeWorkflow(t *testing.T, store *file.Store, id, owner string, state models.State) {
	t.Helper()

	now := time.Now().UTC()

	err := store.Store(t.Context(), &models.Workflow{
		ID:      id,
		Owner:   owner,
		Type:    models.KindOutgoingCheque,
		State:   state,
		Version: 1,
		Source: []models.SourceSnapshot{
			{ID: "src-" + id, Revision: 1, Raw: []byte(`{}`)},
		},
		Events: []models.Event{
			{Version: 1, Type: models.EventCreate, Method: models.TransportOutOfBand, Time: now, Success: true},
		},
		Accounts:  []string{"acct-1"},
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
}

func doRequest(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := resp.Body.Close(); err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	})

	return resp
}

func TestAPI_RootEndpoint(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doRequest(t, app, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Payflow API", string(body))
}

func TestAPI_HealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doRequest(t, app, "/livez")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_GetWorkflow(t *testing.T) {
	app, store := setupTestApp(t)
	storeWorkflow(t, store, "wf-1", "alice", models.StateUnsent)

	resp := doRequest(t, app, "/workflows/wf-1?owner=alice")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var workflow models.Workflow

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&workflow))
	assert.Equal(t, "wf-1", workflow.ID)
	assert.Equal(t, models.StateUnsent, workflow.State)
}

func TestAPI_GetWorkflow_MissingOwner(t *testing.T) {
	app, store := setupTestApp(t)
	storeWorkflow(t, store, "wf-1", "alice", models.StateUnsent)

	resp := doRequest(t, app, "/workflows/wf-1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_GetWorkflow_NotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doRequest(t, app, "/workflows/missing?owner=alice")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_ListWorkflowsByState(t *testing.T) {
	app, store := setupTestApp(t)
	storeWorkflow(t, store, "wf-1", "alice", models.StateUnsent)
	storeWorkflow(t, store, "wf-2", "alice", models.StateConveyed)

	resp := doRequest(t, app, "/workflows?owner=alice&type=outgoing_cheque&state=unsent")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		WorkflowIDs []string `json:"workflow_ids"`
		TotalCount  int      `json:"total_count"`
	}

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, []string{"wf-1"}, payload.WorkflowIDs)
	assert.Equal(t, 1, payload.TotalCount)
}

func TestAPI_ListWorkflowsByState_UnknownType(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := doRequest(t, app, "/workflows?owner=alice&type=bogus&state=unsent")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_ListWorkflowsByAccount(t *testing.T) {
	app, store := setupTestApp(t)
	storeWorkflow(t, store, "wf-1", "alice", models.StateUnsent)

	resp := doRequest(t, app, "/accounts/acct-1/workflows?owner=alice")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		WorkflowIDs []string `json:"workflow_ids"`
		TotalCount  int      `json:"total_count"`
	}

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, []string{"wf-1"}, payload.WorkflowIDs)

	resp = doRequest(t, app, "/accounts/acct-none/workflows?owner=alice")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
