package db

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"time"

	"taskboard/internal/domain/errors"
	"taskboard/internal/domain/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opTimeout = 15 * time.Second

	uniqueViolation = "23505"
)

const (
	userColumns      = `id, username, email, password_hash, role, created_at`
	taskColumns      = `id, user_id, name, description, time_until_finish, remind_me, status, category, created_at`
	groupColumns     = `id, name, description, user_id, members, status, created_at`
	groupTaskColumns = `id, group_id, title, description, due_date, assigned_to, status, created_at`
)

// Storage is the PostgreSQL backend. Personal task deletes are soft: the row
// is flagged and purged in bulk once enough deletes have queued up.
type Storage struct {
	pool *pgxpool.Pool

	qCreateUser        string
	qGetUserByID       string
	qGetUserByUsername string
	qGetUserByEmail    string
	qListUsers         string
	qUpdateUser        string
	qDeleteUser        string

	qCreateTask     string
	qGetTaskByID    string
	qGetTasksByUser string
	qUpdateTask     string
	qDeleteTask     string

	qCreateGroup        string
	qGetGroupByID       string
	qGetGroupsByCreator string
	qGetGroupsByMember  string
	qUpdateGroup        string
	qDeleteGroup        string

	qCreateGroupTask    string
	qGetGroupTask       string
	qListGroupTasks     string
	qUpdateGroupTask    string
	qDeleteGroupTask    string
	qListGroupTaskIDs   string
	qDeleteGroupTaskSet string

	deleteQueue chan struct{}
}

func NewStorage(connStr string) (*Storage, error) {
	if connStr == "" {
		return nil, fmt.Errorf("postgres: %w", errors.ErrDatabaseConnection)
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Println("[ERROR] Failed to connect to the database:", err)
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Println("[ERROR] Database ping failed:", err)
		return nil, err
	}

	s := &Storage{
		pool: pool,

		qCreateUser:        `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`,
		qGetUserByID:       `SELECT ` + userColumns + ` FROM users WHERE id = $1`,
		qGetUserByUsername: `SELECT ` + userColumns + ` FROM users WHERE username = $1`,
		qGetUserByEmail:    `SELECT ` + userColumns + ` FROM users WHERE email = $1`,
		qListUsers:         `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id`,
		qUpdateUser:        `UPDATE users SET username = $1, email = $2, password_hash = $3, role = $4 WHERE id = $5`,
		qDeleteUser:        `DELETE FROM users WHERE id = $1`,

		qCreateTask:     `INSERT INTO tasks (` + taskColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		qGetTaskByID:    `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND deleted = false`,
		qGetTasksByUser: `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 AND deleted = false ORDER BY created_at, id`,
		qUpdateTask:     `UPDATE tasks SET name = $1, description = $2, time_until_finish = $3, remind_me = $4, status = $5, category = $6 WHERE id = $7 AND deleted = false`,
		qDeleteTask:     `UPDATE tasks SET deleted = true WHERE id = $1 AND deleted = false`,

		qCreateGroup:        `INSERT INTO groups (` + groupColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		qGetGroupByID:       `SELECT ` + groupColumns + ` FROM groups WHERE id = $1`,
		qGetGroupsByCreator: `SELECT ` + groupColumns + ` FROM groups WHERE user_id = $1 ORDER BY created_at, id`,
		qGetGroupsByMember:  `SELECT ` + groupColumns + ` FROM groups WHERE $1 = ANY(members) ORDER BY created_at, id`,
		qUpdateGroup:        `UPDATE groups SET name = $1, description = $2, members = $3, status = $4 WHERE id = $5`,
		qDeleteGroup:        `DELETE FROM groups WHERE id = $1`,

		qCreateGroupTask:    `INSERT INTO group_tasks (` + groupTaskColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		qGetGroupTask:       `SELECT ` + groupTaskColumns + ` FROM group_tasks WHERE id = $1 AND group_id = $2`,
		qListGroupTasks:     `SELECT ` + groupTaskColumns + ` FROM group_tasks WHERE group_id = $1 ORDER BY created_at, id`,
		qUpdateGroupTask:    `UPDATE group_tasks SET title = $1, description = $2, due_date = $3, assigned_to = $4, status = $5 WHERE id = $6 AND group_id = $7`,
		qDeleteGroupTask:    `DELETE FROM group_tasks WHERE id = $1 AND group_id = $2`,
		qListGroupTaskIDs:   `SELECT id FROM group_tasks WHERE group_id = $1 ORDER BY created_at, id LIMIT $2`,
		qDeleteGroupTaskSet: `DELETE FROM group_tasks WHERE group_id = $1 AND id = ANY($2)`,

		deleteQueue: make(chan struct{}, 10),
	}
	log.Println("[SUCCESS] Database connection established")
	return s, nil
}

func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

func stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.New().String()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC().Truncate(time.Microsecond)
	}
}

// userConflict translates unique violations on users into sentinels.
func userConflict(err error) error {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == "users_email_key" {
			return errors.ErrEmailAlreadyExists
		}
		return errors.ErrUserAlreadyExists
	}
	return nil
}

func (s *Storage) exec(ctx context.Context, query string, missing error, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ct, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if missing != nil && ct.RowsAffected() == 0 {
		return missing
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	return user, err
}

func scanTask(row pgx.Row) (*models.Task, error) {
	task := &models.Task{}
	err := row.Scan(&task.ID, &task.UserID, &task.Name, &task.Description, &task.TimeUntilFinish,
		&task.RemindMe, &task.Status, &task.Category, &task.CreatedAt)
	return task, err
}

func scanGroup(row pgx.Row) (*models.Group, error) {
	group := &models.Group{}
	err := row.Scan(&group.ID, &group.Name, &group.Description, &group.UserID, &group.Members,
		&group.Status, &group.CreatedAt)
	if group.Members == nil {
		group.Members = []string{}
	}
	return group, err
}

func scanGroupTask(row pgx.Row) (*models.GroupTask, error) {
	task := &models.GroupTask{}
	err := row.Scan(&task.ID, &task.GroupID, &task.Title, &task.Description, &task.DueDate,
		&task.AssignedTo, &task.Status, &task.CreatedAt)
	return task, err
}

func queryOne[T any](ctx context.Context, s *Storage, query string, scan func(pgx.Row) (*T, error), missing error, args ...any) (*T, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	v, err := scan(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, missing
		}
		log.Println("[ERROR] Query failed:", err)
		return nil, err
	}
	return v, nil
}

func queryAll[T any](ctx context.Context, s *Storage, query string, scan func(pgx.Row) (*T, error), args ...any) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		log.Println("[ERROR] Query failed:", err)
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			log.Println("[ERROR] Failed to read row:", err)
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	stamp(&user.ID, &user.CreatedAt)
	err := s.exec(ctx, s.qCreateUser, nil,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Role, user.CreatedAt)
	if err != nil {
		if conflict := userConflict(err); conflict != nil {
			return conflict
		}
		log.Println("[ERROR] Failed to create user:", err)
		return err
	}
	log.Println("[SUCCESS] User created:", user.ID)
	return nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return queryOne(ctx, s, s.qGetUserByID, scanUser, errors.ErrUserNotFound, id)
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return queryOne(ctx, s, s.qGetUserByUsername, scanUser, errors.ErrUserNotFound, username)
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return queryOne(ctx, s, s.qGetUserByEmail, scanUser, errors.ErrUserNotFound, email)
}

func (s *Storage) ListUsers(ctx context.Context) ([]models.User, error) {
	return queryAll(ctx, s, s.qListUsers, scanUser)
}

func (s *Storage) UpdateUser(ctx context.Context, user *models.User) error {
	err := s.exec(ctx, s.qUpdateUser, errors.ErrUserNotFound,
		user.Username, user.Email, user.PasswordHash, user.Role, user.ID)
	if conflict := userConflict(err); conflict != nil {
		return conflict
	}
	return err
}

func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	return s.exec(ctx, s.qDeleteUser, errors.ErrUserNotFound, id)
}

func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	stamp(&task.ID, &task.CreatedAt)
	err := s.exec(ctx, s.qCreateTask, nil, task.ID, task.UserID, task.Name, task.Description,
		task.TimeUntilFinish, task.RemindMe, task.Status, task.Category, task.CreatedAt)
	if err != nil {
		log.Println("[ERROR] Failed to create task:", err)
		return err
	}
	return nil
}

func (s *Storage) GetTaskByID(ctx context.Context, id string) (*models.Task, error) {
	return queryOne(ctx, s, s.qGetTaskByID, scanTask, errors.ErrTaskNotFound, id)
}

func (s *Storage) GetTasksByUser(ctx context.Context, userID string) ([]models.Task, error) {
	return queryAll(ctx, s, s.qGetTasksByUser, scanTask, userID)
}

func (s *Storage) UpdateTask(ctx context.Context, task *models.Task) error {
	return s.exec(ctx, s.qUpdateTask, errors.ErrTaskNotFound, task.Name, task.Description,
		task.TimeUntilFinish, task.RemindMe, task.Status, task.Category, task.ID)
}

func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	if err := s.exec(ctx, s.qDeleteTask, errors.ErrTaskNotFound, id); err != nil {
		return err
	}
	s.tryEnqueueOrFlush()
	return nil
}

func (s *Storage) CreateGroup(ctx context.Context, group *models.Group) error {
	stamp(&group.ID, &group.CreatedAt)
	if group.Members == nil {
		group.Members = []string{}
	}
	err := s.exec(ctx, s.qCreateGroup, nil, group.ID, group.Name, group.Description,
		group.UserID, group.Members, group.Status, group.CreatedAt)
	if err != nil {
		log.Println("[ERROR] Failed to create group:", err)
		return err
	}
	return nil
}

func (s *Storage) GetGroupByID(ctx context.Context, id string) (*models.Group, error) {
	return queryOne(ctx, s, s.qGetGroupByID, scanGroup, errors.ErrGroupNotFound, id)
}

func (s *Storage) GetGroupsByCreator(ctx context.Context, userID string) ([]models.Group, error) {
	return queryAll(ctx, s, s.qGetGroupsByCreator, scanGroup, userID)
}

func (s *Storage) GetGroupsByMember(ctx context.Context, userID string) ([]models.Group, error) {
	return queryAll(ctx, s, s.qGetGroupsByMember, scanGroup, userID)
}

func (s *Storage) UpdateGroup(ctx context.Context, group *models.Group) error {
	if group.Members == nil {
		group.Members = []string{}
	}
	return s.exec(ctx, s.qUpdateGroup, errors.ErrGroupNotFound,
		group.Name, group.Description, group.Members, group.Status, group.ID)
}

func (s *Storage) DeleteGroup(ctx context.Context, id string) error {
	return s.exec(ctx, s.qDeleteGroup, errors.ErrGroupNotFound, id)
}

func (s *Storage) CreateGroupTask(ctx context.Context, task *models.GroupTask) error {
	stamp(&task.ID, &task.CreatedAt)
	err := s.exec(ctx, s.qCreateGroupTask, nil, task.ID, task.GroupID, task.Title, task.Description,
		task.DueDate, task.AssignedTo, task.Status, task.CreatedAt)
	if err != nil {
		log.Println("[ERROR] Failed to create group task:", err)
		return err
	}
	return nil
}

func (s *Storage) GetGroupTask(ctx context.Context, groupID, taskID string) (*models.GroupTask, error) {
	return queryOne(ctx, s, s.qGetGroupTask, scanGroupTask, errors.ErrTaskNotFound, taskID, groupID)
}

func (s *Storage) ListGroupTasks(ctx context.Context, groupID string) ([]models.GroupTask, error) {
	return queryAll(ctx, s, s.qListGroupTasks, scanGroupTask, groupID)
}

func (s *Storage) UpdateGroupTask(ctx context.Context, task *models.GroupTask) error {
	return s.exec(ctx, s.qUpdateGroupTask, errors.ErrTaskNotFound, task.Title, task.Description,
		task.DueDate, task.AssignedTo, task.Status, task.ID, task.GroupID)
}

func (s *Storage) DeleteGroupTask(ctx context.Context, groupID, taskID string) error {
	return s.exec(ctx, s.qDeleteGroupTask, errors.ErrTaskNotFound, taskID, groupID)
}

func (s *Storage) ListGroupTaskIDs(ctx context.Context, groupID string, limit int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx, s.qListGroupTaskIDs, groupID, lim)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteGroupTasks commits one batch in its own transaction.
func (s *Storage) DeleteGroupTasks(ctx context.Context, groupID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, s.qDeleteGroupTaskSet, groupID, ids); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (s *Storage) tryEnqueueOrFlush() {
	if s.deleteQueue == nil {
		return
	}
	select {
	case s.deleteQueue <- struct{}{}:
	default:
		s.drainDeleteQueue()
		if affected, err := s.hardDeleteAllFlagged(context.Background()); err != nil {
			log.Println("[ERROR] Failed to purge deleted tasks:", err)
		} else if affected > 0 {
			log.Println("[SUCCESS] Purged deleted tasks:", affected)
		}
	}
}

func (s *Storage) drainDeleteQueue() {
	for {
		select {
		case <-s.deleteQueue:
		default:
			return
		}
	}
}

func (s *Storage) hardDeleteAllFlagged(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ct, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE deleted = true`)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
