package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"taskboard/internal/domain/errors"
	"taskboard/internal/domain/models"

	"github.com/google/uuid"
)

// Storage keeps every collection in process memory. Listing order is
// insertion order.
type Storage struct {
	mu         sync.RWMutex
	users      map[string]models.User
	tasks      map[string]models.Task
	groups     map[string]models.Group
	groupTasks map[string]models.GroupTask
	order      map[string]uint64
	seq        uint64
}

func NewStorage() *Storage {
	return &Storage{
		users:      make(map[string]models.User),
		tasks:      make(map[string]models.Task),
		groups:     make(map[string]models.Group),
		groupTasks: make(map[string]models.GroupTask),
		order:      make(map[string]uint64),
	}
}

func (s *Storage) Close() error { return nil }

func (s *Storage) track(id string) {
	s.seq++
	s.order[id] = s.seq
}

func (s *Storage) byOrder(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return s.order[ids[i]] < s.order[ids[j]] })
}

func stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.New().String()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
}

func (s *Storage) uniqueUser(user *models.User) error {
	for _, existing := range s.users {
		if existing.ID == user.ID {
			continue
		}
		if existing.Username == user.Username {
			return errors.ErrUserAlreadyExists
		}
		if existing.Email == user.Email {
			return errors.ErrEmailAlreadyExists
		}
	}
	return nil
}

func (s *Storage) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.uniqueUser(user); err != nil {
		return err
	}
	stamp(&user.ID, &user.CreatedAt)
	s.users[user.ID] = *user
	s.track(user.ID)
	return nil
}

func (s *Storage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, errors.ErrUserNotFound
	}
	return &user, nil
}

func (s *Storage) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			return &user, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (s *Storage) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	s.byOrder(ids)

	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, s.users[id])
	}
	return users, nil
}

func (s *Storage) UpdateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; !exists {
		return errors.ErrUserNotFound
	}
	if err := s.uniqueUser(user); err != nil {
		return err
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Storage) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[id]; !exists {
		return errors.ErrUserNotFound
	}
	delete(s.users, id)
	delete(s.order, id)
	return nil
}

func (s *Storage) CreateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(&task.ID, &task.CreatedAt)
	s.tasks[task.ID] = *task
	s.track(task.ID)
	return nil
}

func (s *Storage) GetTaskByID(_ context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[id]
	if !exists {
		return nil, errors.ErrTaskNotFound
	}
	return &task, nil
}

func (s *Storage) GetTasksByUser(_ context.Context, userID string) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, t := range s.tasks {
		if t.UserID == userID {
			ids = append(ids, id)
		}
	}
	s.byOrder(ids)

	tasks := make([]models.Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, s.tasks[id])
	}
	return tasks, nil
}

func (s *Storage) UpdateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; !exists {
		return errors.ErrTaskNotFound
	}
	s.tasks[task.ID] = *task
	return nil
}

func (s *Storage) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; !exists {
		return errors.ErrTaskNotFound
	}
	delete(s.tasks, id)
	delete(s.order, id)
	return nil
}

func (s *Storage) CreateGroup(_ context.Context, group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(&group.ID, &group.CreatedAt)
	g := *group
	g.Members = append([]string(nil), group.Members...)
	s.groups[g.ID] = g
	s.track(g.ID)
	return nil
}

func (s *Storage) GetGroupByID(_ context.Context, id string) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, exists := s.groups[id]
	if !exists {
		return nil, errors.ErrGroupNotFound
	}
	group.Members = append([]string(nil), group.Members...)
	return &group, nil
}

func (s *Storage) listGroups(match func(models.Group) bool) []models.Group {
	var ids []string
	for id, g := range s.groups {
		if match(g) {
			ids = append(ids, id)
		}
	}
	s.byOrder(ids)

	groups := make([]models.Group, 0, len(ids))
	for _, id := range ids {
		g := s.groups[id]
		g.Members = append([]string(nil), g.Members...)
		groups = append(groups, g)
	}
	return groups
}

func (s *Storage) GetGroupsByCreator(_ context.Context, userID string) ([]models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listGroups(func(g models.Group) bool { return g.UserID == userID }), nil
}

func (s *Storage) GetGroupsByMember(_ context.Context, userID string) ([]models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listGroups(func(g models.Group) bool {
		for _, m := range g.Members {
			if m == userID {
				return true
			}
		}
		return false
	}), nil
}

func (s *Storage) UpdateGroup(_ context.Context, group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[group.ID]; !exists {
		return errors.ErrGroupNotFound
	}
	g := *group
	g.Members = append([]string(nil), group.Members...)
	s.groups[g.ID] = g
	return nil
}

// DeleteGroup removes only the group record. Group tasks are drained
// beforehand by the cascade.
func (s *Storage) DeleteGroup(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[id]; !exists {
		return errors.ErrGroupNotFound
	}
	delete(s.groups, id)
	delete(s.order, id)
	return nil
}

func (s *Storage) CreateGroupTask(_ context.Context, task *models.GroupTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(&task.ID, &task.CreatedAt)
	s.groupTasks[task.ID] = *task
	s.track(task.ID)
	return nil
}

func (s *Storage) GetGroupTask(_ context.Context, groupID, taskID string) (*models.GroupTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.groupTasks[taskID]
	if !exists || task.GroupID != groupID {
		return nil, errors.ErrTaskNotFound
	}
	return &task, nil
}

func (s *Storage) groupTaskIDs(groupID string) []string {
	var ids []string
	for id, t := range s.groupTasks {
		if t.GroupID == groupID {
			ids = append(ids, id)
		}
	}
	s.byOrder(ids)
	return ids
}

func (s *Storage) ListGroupTasks(_ context.Context, groupID string) ([]models.GroupTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.groupTaskIDs(groupID)
	tasks := make([]models.GroupTask, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, s.groupTasks[id])
	}
	return tasks, nil
}

func (s *Storage) UpdateGroupTask(_ context.Context, task *models.GroupTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.groupTasks[task.ID]
	if !exists || existing.GroupID != task.GroupID {
		return errors.ErrTaskNotFound
	}
	s.groupTasks[task.ID] = *task
	return nil
}

func (s *Storage) DeleteGroupTask(_ context.Context, groupID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.groupTasks[taskID]
	if !exists || existing.GroupID != groupID {
		return errors.ErrTaskNotFound
	}
	delete(s.groupTasks, taskID)
	delete(s.order, taskID)
	return nil
}

func (s *Storage) ListGroupTaskIDs(_ context.Context, groupID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.groupTaskIDs(groupID)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// DeleteGroupTasks removes the listed tasks of one group under a single
// lock. Ids belonging to other groups are ignored.
func (s *Storage) DeleteGroupTasks(_ context.Context, groupID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if t, exists := s.groupTasks[id]; exists && t.GroupID == groupID {
			delete(s.groupTasks, id)
			delete(s.order, id)
		}
	}
	return nil
}
