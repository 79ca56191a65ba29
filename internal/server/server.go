package server

import (
	"context"
	stderrors "errors"
	"log"
	"net/http"
	"time"

	"taskboard/internal/auth"
	"taskboard/internal/domain/errors"
	"taskboard/internal/domain/models"
	"taskboard/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator"
	"github.com/gorilla/websocket"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error
}

type TaskRepository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTaskByID(ctx context.Context, id string) (*models.Task, error)
	GetTasksByUser(ctx context.Context, userID string) ([]models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error
}

type GroupRepository interface {
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroupByID(ctx context.Context, id string) (*models.Group, error)
	GetGroupsByCreator(ctx context.Context, userID string) ([]models.Group, error)
	GetGroupsByMember(ctx context.Context, userID string) ([]models.Group, error)
	UpdateGroup(ctx context.Context, group *models.Group) error
	DeleteGroup(ctx context.Context, id string) error

	CreateGroupTask(ctx context.Context, task *models.GroupTask) error
	GetGroupTask(ctx context.Context, groupID, taskID string) (*models.GroupTask, error)
	ListGroupTasks(ctx context.Context, groupID string) ([]models.GroupTask, error)
	UpdateGroupTask(ctx context.Context, task *models.GroupTask) error
	DeleteGroupTask(ctx context.Context, groupID, taskID string) error
	ListGroupTaskIDs(ctx context.Context, groupID string, limit int) ([]string, error)
	DeleteGroupTasks(ctx context.Context, groupID string, ids []string) error
}

type Repository interface {
	UserRepository
	TaskRepository
	GroupRepository
}

type BoardAPI struct {
	httpSrv  *http.Server
	repo     Repository
	tokens   *auth.Tokens
	revoker  auth.Revoker
	hub      *realtime.Hub
	cfg      *Config
	validate *validator.Validate
	upgrader websocket.Upgrader
}

func NewBoardAPI(repo Repository, tokens *auth.Tokens, revoker auth.Revoker, cfg *Config) *BoardAPI {
	if repo == nil || tokens == nil {
		return nil
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if revoker == nil {
		revoker = auth.NewMemoryRevoker()
	}

	api := &BoardAPI{
		httpSrv: &http.Server{
			Addr:              cfg.ListenAddr(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		repo:     repo,
		tokens:   tokens,
		revoker:  revoker,
		hub:      realtime.NewHub(),
		cfg:      cfg,
		validate: newValidator(),
	}
	api.upgrader = websocket.Upgrader{CheckOrigin: api.checkOrigin}

	api.configRoutes()

	return api
}

func (api *BoardAPI) Start() error {
	if api.httpSrv == nil {
		return errors.ErrInternalServer
	}
	if api.httpSrv.Addr == "" {
		api.httpSrv.Addr = ":8080"
	}
	log.Println("[INFO] Listening on", api.httpSrv.Addr)
	return api.httpSrv.ListenAndServe()
}

func (api *BoardAPI) Shutdown(ctx context.Context) error {
	return api.httpSrv.Shutdown(ctx)
}

func (api *BoardAPI) Handler() http.Handler {
	return api.httpSrv.Handler
}

func (api *BoardAPI) Hub() *realtime.Hub {
	return api.hub
}

func (api *BoardAPI) configRoutes() {
	router := gin.Default()
	router.HandleMethodNotAllowed = true
	router.Use(BodyLimit(maxBodyBytes), GzipRequestDecompress(maxBodyBytes), GzipResponseCompress())

	router.NoMethod(func(ctx *gin.Context) {
		fail(ctx, http.StatusMethodNotAllowed, "method not allowed")
	})
	router.NoRoute(func(ctx *gin.Context) {
		fail(ctx, http.StatusNotFound, errors.ErrNotFound.Error())
	})

	public := router.Group("/api")
	{
		public.GET("/health", api.health)
		public.POST("/register", api.register)
		public.POST("/login", api.login)
	}

	protected := router.Group("/api", AuthRequired(api.tokens, api.revoker))
	{
		protected.POST("/logout", api.logout)
		protected.GET("/me", api.me)

		protected.GET("/getTasks/:userId", api.getTasks)
		protected.POST("/addTask", api.addTask)
		protected.POST("/updateTask", api.updateTask)
		protected.POST("/deleteTask", api.deleteTask)

		protected.GET("/getUserGroups/:userId", api.getUserGroups)
		protected.GET("/getGroupsByUser/:userId", api.getGroupsByUser)
		protected.POST("/addGroup", api.addGroup)
		protected.POST("/updateGroup", api.updateGroup)
		protected.POST("/deleteGroup", api.deleteGroup)

		protected.POST("/addTaskGroup", api.addTaskGroup)
		protected.POST("/updateTaskGroup", api.updateTaskGroup)
		protected.POST("/deleteTaskGroup", api.deleteTaskGroup)
		protected.POST("/updateTaskStatus", api.updateTaskStatus)
		protected.GET("/getGroupMembers/:groupId", api.getGroupMembers)
		protected.GET("/getGroupTasks/:groupId", api.getGroupTasks)
		protected.GET("/getGroupCreator/:groupId", api.getGroupCreator)

		protected.GET("/ws/groups/:groupId", api.groupBoard)
	}

	admin := protected.Group("", api.adminRequired)
	{
		admin.GET("/getUsers", api.getUsers)
		admin.POST("/updateUserRole", api.updateUserRole)
		admin.POST("/editUser", api.editUser)
		admin.POST("/deleteUser", api.deleteUser)
		admin.POST("/addUser", api.addUser)
	}

	api.httpSrv.Handler = cors.Handler(cors.Options{
		AllowedOrigins:   api.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Encoding"},
		AllowCredentials: true,
		MaxAge:           300,
	})(router)
}

func (api *BoardAPI) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range api.cfg.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (api *BoardAPI) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bind decodes and validates a JSON body, answering 400 on failure.
func (api *BoardAPI) bind(ctx *gin.Context, req interface{}) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			fail(ctx, http.StatusRequestEntityTooLarge, errors.ErrRequestTooLarge.Error())
			return false
		}
		fail(ctx, http.StatusBadRequest, errors.ErrBadRequest.Error())
		return false
	}
	if err := api.validate.Struct(req); err != nil {
		fail(ctx, http.StatusBadRequest, validationErrorToErrorResponse(err).Error())
		return false
	}
	return true
}

// actingUser returns the token identity. A non-empty hint naming someone else
// is rejected with 403.
func actingUser(ctx *gin.Context, hint string) (string, bool) {
	caller := callerID(ctx)
	if hint != "" && hint != caller {
		fail(ctx, http.StatusForbidden, errors.ErrForbidden.Error())
		return "", false
	}
	return caller, true
}
