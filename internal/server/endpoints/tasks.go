package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/docfield/docfield/internal/api"
	"github.com/docfield/docfield/internal/svcctx"
	"github.com/docfield/docfield/internal/tasks"
	"github.com/docfield/docfield/internal/types"
)

// AdmissionResponse is the synchronous reply to a task submission. Code 0
// means the task was accepted and will complete via callback; code 1 means
// the request was rejected and no callback will ever arrive for it.
type AdmissionResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// TasksSubmitEndpoint handles POST /v1/tasks/extract.
type TasksSubmitEndpoint struct{}

func (e *TasksSubmitEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/v1/tasks/extract", e.handler
}

func (e *TasksSubmitEndpoint) RequiresInit() bool { return true }

func (e *TasksSubmitEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var task types.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
			logger.Warn("rejecting malformed task submission", "error", err)
		}
		writeJSON(w, http.StatusOK, AdmissionResponse{
			Message: fmt.Sprintf("task %s parameter parsing failed", task.TaskNo),
			Code:    1,
		})
		return
	}

	orch := svcctx.OrchestratorFrom(r.Context())
	if err := orch.Submit(&task); err != nil {
		if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
			logger.Warn("rejecting task submission", "taskNo", task.TaskNo, "error", err)
		}
		writeJSON(w, http.StatusOK, AdmissionResponse{
			Message: fmt.Sprintf("task %s parameter parsing failed", task.TaskNo),
			Code:    1,
		})
		return
	}

	writeJSON(w, http.StatusOK, AdmissionResponse{
		Message: fmt.Sprintf("task %s accepted", task.TaskNo),
		Code:    0,
	})
}

func (e *TasksSubmitEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <task.json>",
		Short: "Submit an extraction task from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read task file: %w", err)
			}
			var task types.Task
			if err := json.Unmarshal(data, &task); err != nil {
				return fmt.Errorf("failed to parse task file: %w", err)
			}

			client := api.NewClient(getServerURL())
			var resp AdmissionResponse
			if err := client.Post(cmd.Context(), "/v1/tasks/extract", task, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// TaskStatusEndpoint handles GET /v1/tasks/{taskNo}/status.
type TaskStatusEndpoint struct{}

func (e *TaskStatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/tasks/{taskNo}/status", e.handler
}

func (e *TaskStatusEndpoint) RequiresInit() bool { return true }

func (e *TaskStatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	taskNo := r.PathValue("taskNo")
	orch := svcctx.OrchestratorFrom(r.Context())

	st, ok := orch.Status(taskNo)
	if !ok {
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: tasks.ErrUnknownTask.Error()})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (e *TaskStatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <taskNo>",
		Short: "Show the lifecycle state of one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp tasks.Status
			if err := client.Get(cmd.Context(), "/v1/tasks/"+args[0]+"/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// TaskListEndpoint handles GET /v1/tasks.
type TaskListEndpoint struct{}

func (e *TaskListEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/v1/tasks", e.handler
}

func (e *TaskListEndpoint) RequiresInit() bool { return true }

func (e *TaskListEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	orch := svcctx.OrchestratorFrom(r.Context())
	writeJSON(w, http.StatusOK, orch.List())
}

func (e *TaskListEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all known tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp []tasks.Status
			if err := client.Get(cmd.Context(), "/v1/tasks", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// All returns every endpoint the server exposes.
func All() []api.Endpoint {
	return []api.Endpoint{
		&HealthEndpoint{},
		&TasksSubmitEndpoint{},
		&TaskStatusEndpoint{},
		&TaskListEndpoint{},
		&FileInfoEndpoint{},
	}
}
