package server

import (
	"net/http"

	"taskboard/internal/domain/errors"
	"taskboard/internal/domain/models"

	"github.com/gin-gonic/gin"
)

func (api *BoardAPI) getTasks(ctx *gin.Context) {
	caller, allowed := actingUser(ctx, ctx.Param("userId"))
	if !allowed {
		return
	}

	tasks, err := api.repo.GetTasksByUser(ctx.Request.Context(), caller)
	if err != nil {
		respondError(ctx, "get tasks", err)
		return
	}
	ok(ctx, gin.H{"tasks": tasks})
}

func (api *BoardAPI) addTask(ctx *gin.Context) {
	var req models.CreateTaskRequest
	if !api.bind(ctx, &req) {
		return
	}
	if !allowedTaskStatuses[req.Status] {
		fail(ctx, http.StatusBadRequest, errors.ErrInvalidStatus.Error())
		return
	}
	caller, allowed := actingUser(ctx, req.UserID)
	if !allowed {
		return
	}

	task := models.Task{
		UserID:          caller,
		Name:            req.Name,
		Description:     req.Description,
		TimeUntilFinish: req.TimeUntilFinish,
		RemindMe:        req.RemindMe,
		Status:          req.Status,
		Category:        req.Category,
	}
	if err := api.repo.CreateTask(ctx.Request.Context(), &task); err != nil {
		respondError(ctx, "add task", err)
		return
	}
	ok(ctx, gin.H{"taskId": task.ID})
}

// ownTask loads a personal task and answers 404 or 403 itself when the
// caller cannot touch it.
func (api *BoardAPI) ownTask(ctx *gin.Context, id string) (*models.Task, bool) {
	task, err := api.repo.GetTaskByID(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, "get task", err)
		return nil, false
	}
	if task.UserID != callerID(ctx) {
		fail(ctx, http.StatusForbidden, errors.ErrForbidden.Error())
		return nil, false
	}
	return task, true
}

func (api *BoardAPI) updateTask(ctx *gin.Context) {
	var req models.UpdateTaskRequest
	if !api.bind(ctx, &req) {
		return
	}
	if req.Status != nil && !allowedTaskStatuses[*req.Status] {
		fail(ctx, http.StatusBadRequest, errors.ErrInvalidStatus.Error())
		return
	}

	task, found := api.ownTask(ctx, req.ID)
	if !found {
		return
	}

	if req.Name != nil {
		task.Name = *req.Name
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.TimeUntilFinish != nil {
		task.TimeUntilFinish = *req.TimeUntilFinish
	}
	if req.RemindMe != nil {
		task.RemindMe = *req.RemindMe
	}
	if req.Status != nil {
		task.Status = *req.Status
	}
	if req.Category != nil {
		task.Category = *req.Category
	}

	if err := api.repo.UpdateTask(ctx.Request.Context(), task); err != nil {
		respondError(ctx, "update task", err)
		return
	}
	ok(ctx, nil)
}

func (api *BoardAPI) deleteTask(ctx *gin.Context) {
	var req models.DeleteTaskRequest
	if !api.bind(ctx, &req) {
		return
	}

	if _, found := api.ownTask(ctx, req.TaskID); !found {
		return
	}
	if err := api.repo.DeleteTask(ctx.Request.Context(), req.TaskID); err != nil {
		respondError(ctx, "delete task", err)
		return
	}
	ok(ctx, nil)
}
