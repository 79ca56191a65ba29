package server

import (
	stderrors "errors"
	"log"
	"net/http"

	"taskboard/internal/access"
	"taskboard/internal/cascade"
	"taskboard/internal/domain/errors"
	"taskboard/internal/domain/models"
	"taskboard/internal/realtime"

	"github.com/gin-gonic/gin"
)

// authorize runs the access check for the caller and answers 404/403/500
// itself when it fails.
func (api *BoardAPI) authorize(ctx *gin.Context, groupID string, level access.Level) (*models.Group, bool) {
	group, _, err := access.Authorize(ctx.Request.Context(), api.repo, groupID, callerID(ctx), level)
	if err != nil {
		respondError(ctx, "authorize "+level.String(), err)
		return nil, false
	}
	return group, true
}

func uniqueMembers(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (api *BoardAPI) getUserGroups(ctx *gin.Context) {
	caller, allowed := actingUser(ctx, ctx.Param("userId"))
	if !allowed {
		return
	}
	groups, err := api.repo.GetGroupsByCreator(ctx.Request.Context(), caller)
	if err != nil {
		respondError(ctx, "get created groups", err)
		return
	}
	ok(ctx, gin.H{"groups": groups})
}

func (api *BoardAPI) getGroupsByUser(ctx *gin.Context) {
	caller, allowed := actingUser(ctx, ctx.Param("userId"))
	if !allowed {
		return
	}
	groups, err := api.repo.GetGroupsByMember(ctx.Request.Context(), caller)
	if err != nil {
		respondError(ctx, "get member groups", err)
		return
	}
	ok(ctx, gin.H{"groups": groups})
}

func (api *BoardAPI) addGroup(ctx *gin.Context) {
	var req models.CreateGroupRequest
	if !api.bind(ctx, &req) {
		return
	}
	caller, allowed := actingUser(ctx, req.UserID)
	if !allowed {
		return
	}

	group := models.Group{
		Name:        req.Name,
		Description: req.Description,
		UserID:      caller,
		Members:     uniqueMembers(req.Members),
		Status:      models.GroupStatusActive,
	}
	if err := api.repo.CreateGroup(ctx.Request.Context(), &group); err != nil {
		respondError(ctx, "add group", err)
		return
	}
	ok(ctx, gin.H{"groupId": group.ID})
}

func (api *BoardAPI) updateGroup(ctx *gin.Context) {
	var req models.UpdateGroupRequest
	if !api.bind(ctx, &req) {
		return
	}
	if req.Status != nil && *req.Status != "" && !allowedGroupStatuses[*req.Status] {
		fail(ctx, http.StatusBadRequest, errors.ErrInvalidStatus.Error())
		return
	}
	group, allowed := api.authorize(ctx, req.ID, access.Write)
	if !allowed {
		return
	}

	if req.Name != nil {
		group.Name = *req.Name
	}
	if req.Description != nil {
		group.Description = *req.Description
	}
	if req.Members != nil {
		group.Members = uniqueMembers(*req.Members)
	}
	if req.Status != nil && *req.Status != "" {
		group.Status = *req.Status
	}

	if err := api.repo.UpdateGroup(ctx.Request.Context(), group); err != nil {
		respondError(ctx, "update group", err)
		return
	}

	if req.Members != nil {
		closed := api.hub.Prune(group.ID, func(userID string) bool {
			return access.Evaluate(group, userID).CanRead()
		})
		if closed > 0 {
			log.Printf("[INFO] Group %s: closed %d board connections of removed members", group.ID, closed)
		}
	}
	ok(ctx, nil)
}

func (api *BoardAPI) deleteGroup(ctx *gin.Context) {
	var req models.DeleteGroupRequest
	if !api.bind(ctx, &req) {
		return
	}
	if _, allowed := api.authorize(ctx, req.GroupID, access.Write); !allowed {
		return
	}

	if _, err := cascade.DeleteGroup(ctx.Request.Context(), api.repo, req.GroupID, cascade.Options{
		BatchSize:  api.cfg.DeleteBatchSize,
		MaxBatches: api.cfg.DeleteMaxBatches,
	}); err != nil {
		respondError(ctx, "delete group "+req.GroupID, err)
		return
	}

	api.hub.Broadcast(realtime.Event{Event: realtime.EventGroupDeleted, GroupID: req.GroupID})
	ok(ctx, nil)
}

// getGroupMembers lists the creator first and then the members, each once.
// Ids whose user no longer exists are skipped.
func (api *BoardAPI) getGroupMembers(ctx *gin.Context) {
	group, allowed := api.authorize(ctx, ctx.Param("groupId"), access.Read)
	if !allowed {
		return
	}

	ids := uniqueMembers(append([]string{group.UserID}, group.Members...))
	members := make([]models.Member, 0, len(ids))
	for _, id := range ids {
		user, err := api.repo.GetUserByID(ctx.Request.Context(), id)
		if err != nil {
			if stderrors.Is(err, errors.ErrUserNotFound) {
				log.Printf("[WARN] Group %s lists unknown user %s", group.ID, id)
				continue
			}
			respondError(ctx, "get group members", err)
			return
		}
		members = append(members, models.Member{ID: user.ID, Username: user.Username})
	}
	ok(ctx, gin.H{"members": members})
}

func (api *BoardAPI) getGroupTasks(ctx *gin.Context) {
	if _, allowed := actingUser(ctx, ctx.Query("userId")); !allowed {
		return
	}
	group, allowed := api.authorize(ctx, ctx.Param("groupId"), access.Read)
	if !allowed {
		return
	}

	tasks, err := api.repo.ListGroupTasks(ctx.Request.Context(), group.ID)
	if err != nil {
		respondError(ctx, "get group tasks", err)
		return
	}
	ok(ctx, gin.H{"tasks": tasks})
}

func (api *BoardAPI) getGroupCreator(ctx *gin.Context) {
	group, allowed := api.authorize(ctx, ctx.Param("groupId"), access.Read)
	if !allowed {
		return
	}
	ok(ctx, gin.H{"creatorId": group.UserID})
}

func (api *BoardAPI) addTaskGroup(ctx *gin.Context) {
	var req models.CreateGroupTaskRequest
	if !api.bind(ctx, &req) {
		return
	}
	status := req.Status
	if status == "" {
		status = models.GroupTaskPending
	}
	if !allowedGroupTaskStatuses[status] {
		fail(ctx, http.StatusBadRequest, errors.ErrInvalidStatus.Error())
		return
	}
	if _, allowed := actingUser(ctx, req.UserID); !allowed {
		return
	}
	if _, allowed := api.authorize(ctx, req.GroupID, access.Write); !allowed {
		return
	}

	task := models.GroupTask{
		GroupID:     req.GroupID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		AssignedTo:  req.AssignedTo,
		Status:      status,
	}
	if err := api.repo.CreateGroupTask(ctx.Request.Context(), &task); err != nil {
		respondError(ctx, "add group task", err)
		return
	}

	api.hub.Broadcast(realtime.Event{Event: realtime.EventTaskCreated, GroupID: task.GroupID, TaskID: task.ID, Task: &task})
	ok(ctx, gin.H{"taskId": task.ID})
}

func (api *BoardAPI) updateTaskGroup(ctx *gin.Context) {
	var req models.UpdateGroupTaskRequest
	if !api.bind(ctx, &req) {
		return
	}
	if req.Status != nil && !allowedGroupTaskStatuses[*req.Status] {
		fail(ctx, http.StatusBadRequest, errors.ErrInvalidStatus.Error())
		return
	}
	if _, allowed := actingUser(ctx, req.UserID); !allowed {
		return
	}
	if _, allowed := api.authorize(ctx, req.GroupID, access.Write); !allowed {
		return
	}

	task, err := api.repo.GetGroupTask(ctx.Request.Context(), req.GroupID, req.TaskID)
	if err != nil {
		respondError(ctx, "get group task", err)
		return
	}
	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.DueDate != nil {
		task.DueDate = *req.DueDate
	}
	if req.AssignedTo != nil {
		task.AssignedTo = *req.AssignedTo
	}
	if req.Status != nil {
		task.Status = *req.Status
	}

	if err := api.repo.UpdateGroupTask(ctx.Request.Context(), task); err != nil {
		respondError(ctx, "update group task", err)
		return
	}

	api.hub.Broadcast(realtime.Event{Event: realtime.EventTaskUpdated, GroupID: task.GroupID, TaskID: task.ID, Task: task})
	ok(ctx, nil)
}

func (api *BoardAPI) deleteTaskGroup(ctx *gin.Context) {
	var req models.DeleteGroupTaskRequest
	if !api.bind(ctx, &req) {
		return
	}
	if _, allowed := actingUser(ctx, req.UserID); !allowed {
		return
	}
	if _, allowed := api.authorize(ctx, req.GroupID, access.Write); !allowed {
		return
	}

	if err := api.repo.DeleteGroupTask(ctx.Request.Context(), req.GroupID, req.TaskID); err != nil {
		respondError(ctx, "delete group task", err)
		return
	}

	api.hub.Broadcast(realtime.Event{Event: realtime.EventTaskDeleted, GroupID: req.GroupID, TaskID: req.TaskID})
	ok(ctx, nil)
}

func (api *BoardAPI) updateTaskStatus(ctx *gin.Context) {
	var req models.UpdateGroupTaskStatusRequest
	if !api.bind(ctx, &req) {
		return
	}
	if !allowedGroupTaskStatuses[req.Status] {
		fail(ctx, http.StatusBadRequest, errors.ErrInvalidStatus.Error())
		return
	}
	if _, allowed := actingUser(ctx, req.UserID); !allowed {
		return
	}
	if _, allowed := api.authorize(ctx, req.GroupID, access.Write); !allowed {
		return
	}

	task, err := api.repo.GetGroupTask(ctx.Request.Context(), req.GroupID, req.TaskID)
	if err != nil {
		respondError(ctx, "get group task", err)
		return
	}
	task.Status = req.Status
	if err := api.repo.UpdateGroupTask(ctx.Request.Context(), task); err != nil {
		respondError(ctx, "update group task status", err)
		return
	}

	api.hub.Broadcast(realtime.Event{Event: realtime.EventStatusChanged, GroupID: task.GroupID, TaskID: task.ID, Task: task})
	ok(ctx, nil)
}

// groupBoard upgrades to a websocket that receives the group's task events
// until the client disconnects, the group is deleted, the caller loses read
// access or the token expires or is revoked.
func (api *BoardAPI) groupBoard(ctx *gin.Context) {
	group, allowed := api.authorize(ctx, ctx.Param("groupId"), access.Read)
	if !allowed {
		return
	}

	conn, err := api.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		log.Println("[WARN] Websocket upgrade failed:", err)
		return
	}
	sub := realtime.Subscriber{UserID: callerID(ctx)}
	if claims := callerClaims(ctx); claims != nil {
		sub.TokenID = claims.ID
		if claims.ExpiresAt != nil {
			sub.Expires = claims.ExpiresAt.Time
		}
	}
	api.hub.Subscribe(group.ID, conn, sub)
	defer api.hub.Unsubscribe(group.ID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
