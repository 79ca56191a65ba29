package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"taskboard/internal/domain/errors"
	"taskboard/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorage(t *testing.T) {
	storage := NewStorage()

	require.NotNil(t, storage)
	assert.NotNil(t, storage.users)
	assert.NotNil(t, storage.tasks)
	assert.NotNil(t, storage.groups)
	assert.NotNil(t, storage.groupTasks)
	assert.Empty(t, storage.users)
	assert.Empty(t, storage.groupTasks)
	assert.NoError(t, storage.Close())
}

func TestStorageCreateUser(t *testing.T) {
	tests := []struct {
		name  string
		user  *models.User
		setup func(*Storage)
		want  struct {
			err error
		}
	}{
		{
			name: "successful user creation",
			user: &models.User{Username: "testuser", Email: "test@example.com", Role: models.RoleUser},
			setup: func(s *Storage) {
			},
			want: struct {
				err error
			}{err: nil},
		},
		{
			name: "duplicate username",
			user: &models.User{Username: "testuser", Email: "other@example.com", Role: models.RoleUser},
			setup: func(s *Storage) {
				s.users["user1"] = models.User{ID: "user1", Username: "testuser", Email: "test@example.com"}
			},
			want: struct {
				err error
			}{err: errors.ErrUserAlreadyExists},
		},
		{
			name: "duplicate email",
			user: &models.User{Username: "testuser2", Email: "test@example.com", Role: models.RoleUser},
			setup: func(s *Storage) {
				s.users["user1"] = models.User{ID: "user1", Username: "existinguser", Email: "test@example.com"}
			},
			want: struct {
				err error
			}{err: errors.ErrEmailAlreadyExists},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			storage := NewStorage()
			tt.setup(storage)
			before := len(storage.users)

			err := storage.CreateUser(ctx, tt.user)

			if tt.want.err != nil {
				assert.ErrorIs(t, err, tt.want.err)
				assert.Len(t, storage.users, before)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, tt.user.ID)
			assert.False(t, tt.user.CreatedAt.IsZero())

			got, err := storage.GetUserByID(ctx, tt.user.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.user.Username, got.Username)
		})
	}
}

func TestStorageUserLookups(t *testing.T) {
	ctx := context.Background()
	storage := NewStorage()
	user := &models.User{Username: "testuser", Email: "test@example.com", Role: models.RoleUser}
	require.NoError(t, storage.CreateUser(ctx, user))

	tests := []struct {
		name   string
		lookup func() (*models.User, error)
		want   struct {
			err error
		}
	}{
		{
			name:   "by id",
			lookup: func() (*models.User, error) { return storage.GetUserByID(ctx, user.ID) },
		},
		{
			name:   "by username",
			lookup: func() (*models.User, error) { return storage.GetUserByUsername(ctx, "testuser") },
		},
		{
			name:   "by email",
			lookup: func() (*models.User, error) { return storage.GetUserByEmail(ctx, "test@example.com") },
		},
		{
			name:   "unknown id",
			lookup: func() (*models.User, error) { return storage.GetUserByID(ctx, "nonexistent") },
			want: struct {
				err error
			}{err: errors.ErrUserNotFound},
		},
		{
			name:   "unknown username",
			lookup: func() (*models.User, error) { return storage.GetUserByUsername(ctx, "nobody") },
			want: struct {
				err error
			}{err: errors.ErrUserNotFound},
		},
		{
			name:   "unknown email",
			lookup: func() (*models.User, error) { return storage.GetUserByEmail(ctx, "nobody@example.com") },
			want: struct {
				err error
			}{err: errors.ErrUserNotFound},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.lookup()
			if tt.want.err != nil {
				assert.ErrorIs(t, err, tt.want.err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user.ID, got.ID)
		})
	}
}

func TestStorageUpdateUser(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		update func(a, b *models.User) *models.User
		want   struct {
			err error
		}
	}{
		{
			name: "rename",
			update: func(a, b *models.User) *models.User {
				u := *a
				u.Username = "renamed"
				return &u
			},
		},
		{
			name: "keep own username and email",
			update: func(a, b *models.User) *models.User {
				u := *a
				u.Role = models.RoleAdmin
				return &u
			},
		},
		{
			name: "username taken by another user",
			update: func(a, b *models.User) *models.User {
				u := *a
				u.Username = b.Username
				return &u
			},
			want: struct {
				err error
			}{err: errors.ErrUserAlreadyExists},
		},
		{
			name: "email taken by another user",
			update: func(a, b *models.User) *models.User {
				u := *a
				u.Email = b.Email
				return &u
			},
			want: struct {
				err error
			}{err: errors.ErrEmailAlreadyExists},
		},
		{
			name: "user not found",
			update: func(a, b *models.User) *models.User {
				return &models.User{ID: "nonexistent", Username: "ghost", Email: "ghost@example.com"}
			},
			want: struct {
				err error
			}{err: errors.ErrUserNotFound},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := NewStorage()
			a := &models.User{Username: "alice", Email: "alice@example.com", Role: models.RoleUser}
			b := &models.User{Username: "bob", Email: "bob@example.com", Role: models.RoleUser}
			require.NoError(t, storage.CreateUser(ctx, a))
			require.NoError(t, storage.CreateUser(ctx, b))

			updated := tt.update(a, b)
			err := storage.UpdateUser(ctx, updated)

			if tt.want.err != nil {
				assert.ErrorIs(t, err, tt.want.err)
				return
			}
			require.NoError(t, err)
			got, err := storage.GetUserByID(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, *updated, *got)
		})
	}
}

func TestStorageDeleteUserAndList(t *testing.T) {
	ctx := context.Background()
	storage := NewStorage()

	var ids []string
	for i := 0; i < 3; i++ {
		u := &models.User{Username: fmt.Sprintf("user%d", i), Email: fmt.Sprintf("user%d@example.com", i)}
		require.NoError(t, storage.CreateUser(ctx, u))
		ids = append(ids, u.ID)
	}

	users, err := storage.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	for i, u := range users {
		assert.Equal(t, ids[i], u.ID, "users listed in creation order")
	}

	require.NoError(t, storage.DeleteUser(ctx, ids[1]))
	assert.ErrorIs(t, storage.DeleteUser(ctx, ids[1]), errors.ErrUserNotFound)

	users, err = storage.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestStorageTasks(t *testing.T) {
	ctx := context.Background()
	storage := NewStorage()

	first := &models.Task{UserID: "u1", Name: "Write report", Status: models.TaskStatusInProgress}
	second := &models.Task{UserID: "u1", Name: "Review", Status: models.TaskStatusPaused}
	foreign := &models.Task{UserID: "u2", Name: "Other", Status: models.TaskStatusDone}
	for _, task := range []*models.Task{first, second, foreign} {
		require.NoError(t, storage.CreateTask(ctx, task))
		assert.NotEmpty(t, task.ID)
	}

	tasks, err := storage.GetTasksByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, first.ID, tasks[0].ID)
	assert.Equal(t, second.ID, tasks[1].ID)

	none, err := storage.GetTasksByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	first.Status = models.TaskStatusDone
	require.NoError(t, storage.UpdateTask(ctx, first))
	got, err := storage.GetTaskByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDone, got.Status)

	assert.ErrorIs(t, storage.UpdateTask(ctx, &models.Task{ID: "missing"}), errors.ErrTaskNotFound)

	require.NoError(t, storage.DeleteTask(ctx, first.ID))
	assert.ErrorIs(t, storage.DeleteTask(ctx, first.ID), errors.ErrTaskNotFound)
	_, err = storage.GetTaskByID(ctx, first.ID)
	assert.ErrorIs(t, err, errors.ErrTaskNotFound)
}

func TestStorageGroups(t *testing.T) {
	ctx := context.Background()
	storage := NewStorage()

	members := []string{"m1", "m2"}
	group := &models.Group{Name: "Team", UserID: "creator", Members: members, Status: models.GroupStatusActive}
	require.NoError(t, storage.CreateGroup(ctx, group))
	other := &models.Group{Name: "Other", UserID: "m1", Members: []string{"creator"}}
	require.NoError(t, storage.CreateGroup(ctx, other))

	members[0] = "mutated"
	got, err := storage.GetGroupByID(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, got.Members, "stored members do not alias the caller slice")

	tests := []struct {
		name string
		list func() ([]models.Group, error)
		want []string
	}{
		{
			name: "created by creator",
			list: func() ([]models.Group, error) { return storage.GetGroupsByCreator(ctx, "creator") },
			want: []string{group.ID},
		},
		{
			name: "member of for m1",
			list: func() ([]models.Group, error) { return storage.GetGroupsByMember(ctx, "m1") },
			want: []string{group.ID},
		},
		{
			name: "member of for creator",
			list: func() ([]models.Group, error) { return storage.GetGroupsByMember(ctx, "creator") },
			want: []string{other.ID},
		},
		{
			name: "nothing for stranger",
			list: func() ([]models.Group, error) { return storage.GetGroupsByMember(ctx, "stranger") },
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups, err := tt.list()
			require.NoError(t, err)
			ids := make([]string, 0, len(groups))
			for _, g := range groups {
				ids = append(ids, g.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	got.Name = "Renamed"
	got.Members = []string{"m2"}
	require.NoError(t, storage.UpdateGroup(ctx, got))
	byMember, err := storage.GetGroupsByMember(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, byMember)

	assert.ErrorIs(t, storage.UpdateGroup(ctx, &models.Group{ID: "missing"}), errors.ErrGroupNotFound)

	require.NoError(t, storage.DeleteGroup(ctx, group.ID))
	assert.ErrorIs(t, storage.DeleteGroup(ctx, group.ID), errors.ErrGroupNotFound)
	_, err = storage.GetGroupByID(ctx, group.ID)
	assert.ErrorIs(t, err, errors.ErrGroupNotFound)
}

func TestStorageGroupTasks(t *testing.T) {
	ctx := context.Background()
	storage := NewStorage()

	task := &models.GroupTask{GroupID: "g1", Title: "Plan", Status: models.GroupTaskPending}
	require.NoError(t, storage.CreateGroupTask(ctx, task))
	require.NoError(t, storage.CreateGroupTask(ctx, &models.GroupTask{GroupID: "g2", Title: "Elsewhere"}))

	got, err := storage.GetGroupTask(ctx, "g1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Plan", got.Title)

	_, err = storage.GetGroupTask(ctx, "g2", task.ID)
	assert.ErrorIs(t, err, errors.ErrTaskNotFound, "task is scoped to its group")

	task.Status = models.GroupTaskCompleted
	require.NoError(t, storage.UpdateGroupTask(ctx, task))
	moved := *task
	moved.GroupID = "g2"
	assert.ErrorIs(t, storage.UpdateGroupTask(ctx, &moved), errors.ErrTaskNotFound)

	tasks, err := storage.ListGroupTasks(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.GroupTaskCompleted, tasks[0].Status)

	assert.ErrorIs(t, storage.DeleteGroupTask(ctx, "g2", task.ID), errors.ErrTaskNotFound)
	require.NoError(t, storage.DeleteGroupTask(ctx, "g1", task.ID))
	assert.ErrorIs(t, storage.DeleteGroupTask(ctx, "g1", task.ID), errors.ErrTaskNotFound)
}

func TestStorageGroupTaskBatches(t *testing.T) {
	ctx := context.Background()
	storage := NewStorage()

	var ids []string
	for i := 0; i < 5; i++ {
		task := &models.GroupTask{GroupID: "g1", Title: fmt.Sprintf("task %d", i)}
		require.NoError(t, storage.CreateGroupTask(ctx, task))
		ids = append(ids, task.ID)
	}
	keep := &models.GroupTask{GroupID: "g2", Title: "keep"}
	require.NoError(t, storage.CreateGroupTask(ctx, keep))

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{name: "limit below size", limit: 2, want: ids[:2]},
		{name: "limit above size", limit: 10, want: ids},
		{name: "no limit", limit: 0, want: ids},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := storage.ListGroupTaskIDs(ctx, "g1", tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	require.NoError(t, storage.DeleteGroupTasks(ctx, "g1", append(ids[:3:3], keep.ID)))

	rest, err := storage.ListGroupTaskIDs(ctx, "g1", 10)
	require.NoError(t, err)
	assert.Equal(t, ids[3:], rest)

	_, err = storage.GetGroupTask(ctx, "g2", keep.ID)
	assert.NoError(t, err, "ids of other groups are ignored")
}

func TestStorageConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	storage := NewStorage()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = storage.CreateGroupTask(ctx, &models.GroupTask{GroupID: "g1", Title: "t"})
		}()
		go func() {
			defer wg.Done()
			_, _ = storage.ListGroupTasks(ctx, "g1")
		}()
	}
	wg.Wait()

	tasks, err := storage.ListGroupTasks(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, tasks, 50)
}
