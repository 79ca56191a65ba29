package server

import (
	stderrors "errors"
	"log"
	"net/http"
	"time"

	"taskboard/internal/auth"
	"taskboard/internal/domain/errors"
	"taskboard/internal/domain/models"

	"github.com/gin-gonic/gin"
)

func publicUser(u *models.User) gin.H {
	return gin.H{
		"id":        u.ID,
		"username":  u.Username,
		"email":     u.Email,
		"role":      u.Role,
		"createdAt": u.CreatedAt,
	}
}

// checkAvailable reports a taken username or email before any write so a
// rejected registration leaves nothing behind.
func (api *BoardAPI) checkAvailable(ctx *gin.Context, username, email, selfID string) error {
	if username != "" {
		u, err := api.repo.GetUserByUsername(ctx.Request.Context(), username)
		if err == nil && u.ID != selfID {
			return errors.ErrUserAlreadyExists
		}
		if err != nil && !stderrors.Is(err, errors.ErrUserNotFound) {
			return err
		}
	}
	if email != "" {
		u, err := api.repo.GetUserByEmail(ctx.Request.Context(), email)
		if err == nil && u.ID != selfID {
			return errors.ErrEmailAlreadyExists
		}
		if err != nil && !stderrors.Is(err, errors.ErrUserNotFound) {
			return err
		}
	}
	return nil
}

func (api *BoardAPI) register(ctx *gin.Context) {
	var req models.RegisterRequest
	if !api.bind(ctx, &req) {
		return
	}

	if err := api.checkAvailable(ctx, req.Username, req.Email, ""); err != nil {
		respondError(ctx, "register lookup", err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(ctx, "register hash", err)
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if err := api.repo.CreateUser(ctx.Request.Context(), &user); err != nil {
		respondError(ctx, "register", err)
		return
	}

	log.Println("[SUCCESS] User registered:", user.ID)
	ok(ctx, gin.H{"message": "user registered successfully"})
}

func (api *BoardAPI) login(ctx *gin.Context) {
	var req models.LoginRequest
	if !api.bind(ctx, &req) {
		return
	}

	user, err := api.repo.GetUserByUsername(ctx.Request.Context(), req.Username)
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			fail(ctx, http.StatusBadRequest, errors.ErrInvalidCredentials.Error())
			return
		}
		respondError(ctx, "login lookup", err)
		return
	}
	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		fail(ctx, http.StatusBadRequest, errors.ErrInvalidCredentials.Error())
		return
	}

	token, _, err := api.tokens.Issue(user.ID)
	if err != nil {
		respondError(ctx, "login token", err)
		return
	}

	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(tokenCookie, token, int(api.tokens.TTL().Seconds()), "/", "", false, true)
	ok(ctx, gin.H{
		"token":   token,
		"userId":  user.ID,
		"role":    user.Role,
		"message": "login successful",
	})
}

func (api *BoardAPI) logout(ctx *gin.Context) {
	claims := callerClaims(ctx)
	if claims == nil {
		fail(ctx, http.StatusUnauthorized, errors.ErrUnauthorized.Error())
		return
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if err := api.revoker.Revoke(ctx.Request.Context(), claims.ID, ttl); err != nil {
		respondError(ctx, "logout", err)
		return
	}
	api.hub.DropToken(claims.ID)

	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(tokenCookie, "", -1, "/", "", false, true)
	ok(ctx, gin.H{"message": "logged out"})
}

func (api *BoardAPI) me(ctx *gin.Context) {
	user, err := api.repo.GetUserByID(ctx.Request.Context(), callerID(ctx))
	if err != nil {
		respondError(ctx, "me", err)
		return
	}
	ok(ctx, gin.H{"user": publicUser(user)})
}

// adminRequired lets the request through only when the token's user currently
// holds the admin role.
func (api *BoardAPI) adminRequired(ctx *gin.Context) {
	user, err := api.repo.GetUserByID(ctx.Request.Context(), callerID(ctx))
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			abortWith(ctx, http.StatusForbidden, errors.ErrForbidden.Error())
			return
		}
		log.Println("[ERROR] Admin lookup failed:", err)
		abortWith(ctx, http.StatusInternalServerError, errors.ErrInternalServer.Error())
		return
	}
	if user.Role != models.RoleAdmin {
		abortWith(ctx, http.StatusForbidden, errors.ErrForbidden.Error())
		return
	}
	ctx.Next()
}

func (api *BoardAPI) getUsers(ctx *gin.Context) {
	users, err := api.repo.ListUsers(ctx.Request.Context())
	if err != nil {
		respondError(ctx, "list users", err)
		return
	}
	out := make([]gin.H, 0, len(users))
	for i := range users {
		out = append(out, publicUser(&users[i]))
	}
	ok(ctx, gin.H{"users": out})
}

func (api *BoardAPI) updateUserRole(ctx *gin.Context) {
	var req models.UpdateUserRoleRequest
	if !api.bind(ctx, &req) {
		return
	}
	if _, allowed := actingUser(ctx, req.AdminID); !allowed {
		return
	}

	user, err := api.repo.GetUserByID(ctx.Request.Context(), req.UserID)
	if err != nil {
		respondError(ctx, "update role lookup", err)
		return
	}
	user.Role = req.NewRole
	if err := api.repo.UpdateUser(ctx.Request.Context(), user); err != nil {
		respondError(ctx, "update role", err)
		return
	}
	ok(ctx, gin.H{"message": "user role updated"})
}

func (api *BoardAPI) editUser(ctx *gin.Context) {
	var req models.EditUserRequest
	if !api.bind(ctx, &req) {
		return
	}
	if _, allowed := actingUser(ctx, req.AdminID); !allowed {
		return
	}

	user, err := api.repo.GetUserByID(ctx.Request.Context(), req.UserID)
	if err != nil {
		respondError(ctx, "edit user lookup", err)
		return
	}

	var username, email string
	if req.Username != nil {
		username = *req.Username
	}
	if req.Email != nil {
		email = *req.Email
	}
	if err := api.checkAvailable(ctx, username, email, user.ID); err != nil {
		respondError(ctx, "edit user lookup", err)
		return
	}

	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			respondError(ctx, "edit user hash", err)
			return
		}
		user.PasswordHash = hash
	}

	if err := api.repo.UpdateUser(ctx.Request.Context(), user); err != nil {
		respondError(ctx, "edit user", err)
		return
	}
	ok(ctx, gin.H{"message": "user updated"})
}

func (api *BoardAPI) deleteUser(ctx *gin.Context) {
	var req models.DeleteUserRequest
	if !api.bind(ctx, &req) {
		return
	}
	caller, allowed := actingUser(ctx, req.AdminID)
	if !allowed {
		return
	}
	if req.UserID == caller {
		fail(ctx, http.StatusBadRequest, errors.ErrSelfDelete.Error())
		return
	}

	if err := api.repo.DeleteUser(ctx.Request.Context(), req.UserID); err != nil {
		respondError(ctx, "delete user", err)
		return
	}
	log.Println("[SUCCESS] User deleted:", req.UserID)
	ok(ctx, gin.H{"message": "user deleted"})
}

func (api *BoardAPI) addUser(ctx *gin.Context) {
	var req models.AddUserRequest
	if !api.bind(ctx, &req) {
		return
	}
	if _, allowed := actingUser(ctx, req.AdminID); !allowed {
		return
	}

	if err := api.checkAvailable(ctx, req.Username, req.Email, ""); err != nil {
		respondError(ctx, "add user lookup", err)
		return
	}

	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(ctx, "add user hash", err)
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := api.repo.CreateUser(ctx.Request.Context(), &user); err != nil {
		respondError(ctx, "add user", err)
		return
	}
	ok(ctx, gin.H{"userId": user.ID, "message": "user created"})
}
