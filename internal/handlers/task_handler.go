package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskflow/internal/export"
	"taskflow/internal/models"
	"taskflow/internal/pdf"
	"taskflow/internal/services"
)

// UserDirectory resolves user ids to display names for reports.
type UserDirectory interface {
	ListByIDs(ctx context.Context, ids []int64) ([]models.User, error)
}

type TaskHandler struct {
	tasks  services.TaskService
	assign services.AssignmentService
	users  UserDirectory
	pdfGen pdf.Generator
	log    *zap.Logger
}

func NewTaskHandler(tasks services.TaskService, assign services.AssignmentService, users UserDirectory, pdfGen pdf.Generator, log *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, assign: assign, users: users, pdfGen: pdfGen, log: log}
}

// @Summary      Create a task
// @Description  Admin creates a task for a role pool or for named users
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        task  body      services.CreateTaskInput  true  "Task"
// @Success      201   {object}  models.Task
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /tasks/ [post]
func (h *TaskHandler) Create(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	var req services.CreateTaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	task, err := h.tasks.Create(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, h.log, "[task][create]", err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// @Summary  Get a task
// @Tags     Tasks
// @Produce  json
// @Param    id   path      int  true  "Task ID"
// @Success  200  {object}  models.Task
// @Failure  403  {object}  map[string]string
// @Failure  404  {object}  map[string]string
// @Router   /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, _ := getUserAndRole(c)
	task, err := h.tasks.GetByID(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, h.log, "[task][get]", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func parseFilter(c *gin.Context) (models.TaskFilter, error) {
	var f models.TaskFilter
	if v := c.Query("status"); v != "" {
		s := models.TaskStatus(v)
		f.Status = &s
	}
	if v := c.Query("priority"); v != "" {
		p := models.TaskPriority(v)
		f.Priority = &p
	}
	if v := c.Query("role"); v != "" {
		f.Role = &v
	}
	if v := c.Query("assignee"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, models.ValidationError("assignee", "invalid assignee")
		}
		f.AssigneeID = &id
	}
	f.Query = strings.TrimSpace(c.Query("q"))
	for key, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := c.Query(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return f, models.ValidationError(key, "invalid %s", key)
			}
			*dst = n
		}
	}
	return f, nil
}

// @Summary  List tasks
// @Tags     Tasks
// @Produce  json
// @Param    status    query     string  false  "pending|in-progress|completed"
// @Param    priority  query     string  false  "low|medium|high|urgent"
// @Param    role      query     string  false  "Assigned role"
// @Param    assignee  query     int     false  "Assigned user id"
// @Param    q         query     string  false  "Search in title and description"
// @Param    limit     query     int     false  "Page size"
// @Param    offset    query     int     false  "Offset"
// @Success  200       {array}   models.Task
// @Router   /tasks/ [get]
func (h *TaskHandler) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		writeError(c, h.log, "[task][list]", err)
		return
	}
	tasks, err := h.tasks.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.log, "[task][list]", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(tasks))
}

// @Summary  Update a task
// @Tags     Tasks
// @Accept   json
// @Produce  json
// @Param    id    path      int                       true  "Task ID"
// @Param    task  body      services.UpdateTaskInput  true  "Changed fields"
// @Success  200   {object}  models.Task
// @Router   /tasks/{id} [patch]
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, _ := getUserAndRole(c)
	var req services.UpdateTaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	task, err := h.tasks.Update(c.Request.Context(), userID, id, req)
	if err != nil {
		writeError(c, h.log, "[task][update]", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// @Summary  Delete a task
// @Tags     Tasks
// @Param    id  path  int  true  "Task ID"
// @Success  204
// @Router   /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, _ := getUserAndRole(c)
	if err := h.tasks.Delete(c.Request.Context(), userID, id); err != nil {
		writeError(c, h.log, "[task][delete]", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary  Tasks assigned to the caller by id
// @Tags     Tasks
// @Produce  json
// @Success  200  {array}  models.Task
// @Router   /tasks/my-tasks [get]
func (h *TaskHandler) MyTasks(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	tasks, err := h.tasks.MyTasks(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, "[task][my]", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(tasks))
}

// @Summary  Tasks awaiting the caller's decision
// @Tags     Tasks
// @Produce  json
// @Success  200  {array}  models.Task
// @Router   /tasks/pending [get]
func (h *TaskHandler) Pending(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	h.pendingFor(c, userID)
}

func (h *TaskHandler) pendingFor(c *gin.Context, userID int64) {
	tasks, err := h.assign.PendingFor(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, "[task][pending]", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(tasks))
}

// @Summary  Pending tasks of a user
// @Tags     Users
// @Produce  json
// @Param    id   path     int  true  "User ID"
// @Success  200  {array}  models.Task
// @Router   /users/{id}/pending-tasks [get]
func (h *TaskHandler) UserPending(c *gin.Context) {
	id, ok := h.selfOrAdmin(c)
	if !ok {
		return
	}
	h.pendingFor(c, id)
}

// @Summary  Tasks a user has accepted
// @Tags     Users
// @Produce  json
// @Param    id   path     int  true  "User ID"
// @Success  200  {array}  models.Task
// @Router   /users/{id}/assigned-tasks [get]
func (h *TaskHandler) UserAccepted(c *gin.Context) {
	id, ok := h.selfOrAdmin(c)
	if !ok {
		return
	}
	tasks, err := h.tasks.AcceptedTasks(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, "[task][accepted]", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(tasks))
}

func (h *TaskHandler) selfOrAdmin(c *gin.Context) (int64, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return 0, false
	}
	userID, _ := getUserAndRole(c)
	if id != userID && !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return 0, false
	}
	return id, true
}

// @Summary  Accept a task
// @Tags     Assignment
// @Produce  json
// @Param    id   path      int  true  "Task ID"
// @Success  200  {object}  models.Task
// @Failure  409  {object}  map[string]string
// @Router   /tasks/{id}/accept [post]
func (h *TaskHandler) Accept(c *gin.Context) {
	h.transition(c, "[task][accept]", h.assign.Accept)
}

// @Summary  Reject or release a task
// @Tags     Assignment
// @Produce  json
// @Param    id   path      int  true  "Task ID"
// @Success  200  {object}  models.Task
// @Router   /tasks/{id}/reject [post]
func (h *TaskHandler) Reject(c *gin.Context) {
	h.transition(c, "[task][reject]", h.assign.Reject)
}

func (h *TaskHandler) transition(c *gin.Context, tag string, fn func(ctx context.Context, userID, taskID int64) (*models.Task, error)) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, _ := getUserAndRole(c)
	task, err := fn(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, h.log, tag, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// @Summary  Submit field values
// @Tags     Assignment
// @Accept   json
// @Produce  json
// @Param    id          path      int                   true  "Task ID"
// @Param    submission  body      services.SubmitInput  true  "Field values"
// @Success  200         {object}  models.Task
// @Router   /tasks/{id}/submit [post]
func (h *TaskHandler) Submit(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, _ := getUserAndRole(c)
	var req services.SubmitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	task, err := h.assign.Submit(c.Request.Context(), userID, id, req)
	if err != nil {
		writeError(c, h.log, "[task][submit]", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

type statusRequest struct {
	Status models.TaskStatus `json:"status" binding:"required"`
}

// @Summary  Change work status
// @Tags     Assignment
// @Accept   json
// @Produce  json
// @Param    id      path      int            true  "Task ID"
// @Param    status  body      statusRequest  true  "Target status"
// @Success  200     {object}  models.Task
// @Router   /tasks/{id}/status [post]
func (h *TaskHandler) ChangeStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, _ := getUserAndRole(c)
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	task, err := h.assign.ChangeStatus(c.Request.Context(), userID, id, req.Status)
	if err != nil {
		writeError(c, h.log, "[task][status]", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// @Summary  Task totals by status
// @Tags     Stats
// @Produce  json
// @Success  200  {object}  models.TaskStats
// @Router   /tasks/stats [get]
func (h *TaskHandler) Stats(c *gin.Context) {
	stats, err := h.tasks.Stats(c.Request.Context(), nil)
	if err != nil {
		writeError(c, h.log, "[task][stats]", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary  Caller's task totals
// @Tags     Stats
// @Produce  json
// @Success  200  {object}  models.TaskStats
// @Router   /users/me/stats [get]
func (h *TaskHandler) MyStats(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	stats, err := h.tasks.Stats(c.Request.Context(), &userID)
	if err != nil {
		writeError(c, h.log, "[task][stats]", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary  Task totals per assignee
// @Tags     Stats
// @Produce  json
// @Success  200  {array}  models.AssigneeStats
// @Router   /tasks/stats/users [get]
func (h *TaskHandler) StatsByUser(c *gin.Context) {
	stats, err := h.tasks.StatsByAssignee(c.Request.Context())
	if err != nil {
		writeError(c, h.log, "[task][stats]", err)
		return
	}
	if stats == nil {
		stats = []models.AssigneeStats{}
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary  Export tasks as xlsx
// @Tags     Reports
// @Produce  application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success  200
// @Router   /tasks/export [get]
func (h *TaskHandler) Export(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		writeError(c, h.log, "[task][export]", err)
		return
	}
	tasks, err := h.tasks.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.log, "[task][export]", err)
		return
	}
	names := h.userNames(c.Request.Context(), tasks...)

	var buf bytes.Buffer
	if err := export.TasksXLSX(&buf, tasks, names); err != nil {
		writeError(c, h.log, "[task][export]", models.StorageError("render xlsx", err))
		return
	}
	fileName := fmt.Sprintf("tasks-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// @Summary  Task report as PDF
// @Tags     Reports
// @Produce  application/pdf
// @Param    id  path  int  true  "Task ID"
// @Success  200
// @Router   /tasks/{id}/report [get]
func (h *TaskHandler) Report(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, _ := getUserAndRole(c)
	task, err := h.tasks.GetByID(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, h.log, "[task][report]", err)
		return
	}

	var buf bytes.Buffer
	err = h.pdfGen.TaskReport(&buf, pdf.TaskReportData{
		Task:        task,
		UserNames:   h.userNames(c.Request.Context(), *task),
		GeneratedAt: time.Now(),
	})
	if err != nil {
		writeError(c, h.log, "[task][report]", models.StorageError("render pdf", err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="task-%d.pdf"`, task.ID))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// userNames maps every user referenced by tasks to a username. Lookup
// failures degrade to ids in the rendered output.
func (h *TaskHandler) userNames(ctx context.Context, tasks ...models.Task) map[int64]string {
	seen := map[int64]bool{}
	var ids []int64
	add := func(id int64) {
		if id != 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, t := range tasks {
		add(t.CreatedBy)
		for _, id := range t.AssignedTo {
			add(id)
		}
		for _, e := range t.History {
			add(e.PerformedBy)
		}
	}
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 || h.users == nil {
		return names
	}
	users, err := h.users.ListByIDs(ctx, ids)
	if err != nil {
		h.log.Warn("[task][names][err]", zap.Error(err))
		return names
	}
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names
}

func nonNil(tasks []models.Task) []models.Task {
	if tasks == nil {
		return []models.Task{}
	}
	return tasks
}
