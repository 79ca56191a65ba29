package cascade

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"testing"

	"taskboard/internal/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeStore keeps task ids in insertion order, like a document store's
// default ordering.
type fakeStore struct {
	tasks        map[string][]string
	groups       map[string]bool
	listCalls    int
	batchSizes   []int
	failOnBatch  int
	refillOnList bool
}

func newFakeStore(groupID string, n int) *fakeStore {
	s := &fakeStore{
		tasks:  map[string][]string{},
		groups: map[string]bool{groupID: true},
	}
	for i := 0; i < n; i++ {
		s.tasks[groupID] = append(s.tasks[groupID], fmt.Sprintf("task-%04d", i))
	}
	return s
}

func (s *fakeStore) ListGroupTaskIDs(_ context.Context, groupID string, limit int) ([]string, error) {
	s.listCalls++
	if s.refillOnList {
		s.tasks[groupID] = append(s.tasks[groupID], fmt.Sprintf("late-%d", s.listCalls))
	}
	ids := s.tasks[groupID]
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return append([]string(nil), ids...), nil
}

func (s *fakeStore) DeleteGroupTasks(_ context.Context, groupID string, ids []string) error {
	if s.failOnBatch > 0 && len(s.batchSizes)+1 == s.failOnBatch {
		return errors.ErrDatabaseConnection
	}
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.tasks[groupID][:0]
	for _, id := range s.tasks[groupID] {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	s.tasks[groupID] = kept
	s.batchSizes = append(s.batchSizes, len(ids))
	return nil
}

func (s *fakeStore) DeleteGroup(_ context.Context, groupID string) error {
	if !s.groups[groupID] {
		return errors.ErrGroupNotFound
	}
	delete(s.groups, groupID)
	return nil
}

func TestDeleteGroup(t *testing.T) {
	tests := []struct {
		name      string
		tasks     int
		batchSize int
		want      struct {
			batches   []int
			listCalls int
			deleted   int
			groupGone bool
		}
	}{
		{
			name:      "no tasks",
			tasks:     0,
			batchSize: 100,
			want: struct {
				batches   []int
				listCalls int
				deleted   int
				groupGone bool
			}{batches: nil, listCalls: 1, deleted: 0, groupGone: true},
		},
		{
			name:      "exactly one full batch",
			tasks:     100,
			batchSize: 100,
			want: struct {
				batches   []int
				listCalls int
				deleted   int
				groupGone bool
			}{batches: []int{100}, listCalls: 2, deleted: 100, groupGone: true},
		},
		{
			name:      "several batches",
			tasks:     250,
			batchSize: 100,
			want: struct {
				batches   []int
				listCalls int
				deleted   int
				groupGone bool
			}{batches: []int{100, 100, 50}, listCalls: 4, deleted: 250, groupGone: true},
		},
		{
			name:      "default batch size",
			tasks:     101,
			batchSize: 0,
			want: struct {
				batches   []int
				listCalls int
				deleted   int
				groupGone bool
			}{batches: []int{100, 1}, listCalls: 3, deleted: 101, groupGone: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore("g1", tt.tasks)

			res, err := DeleteGroup(context.Background(), store, "g1", Options{BatchSize: tt.batchSize})

			require.NoError(t, err)
			assert.Equal(t, tt.want.batches, store.batchSizes)
			assert.Equal(t, tt.want.listCalls, store.listCalls)
			assert.Equal(t, tt.want.deleted, res.TasksDeleted)
			assert.Equal(t, len(tt.want.batches), res.Batches)
			assert.Empty(t, store.tasks["g1"])
			assert.Equal(t, tt.want.groupGone, !store.groups["g1"])
		})
	}
}

func TestDeleteGroupLeavesOtherGroups(t *testing.T) {
	store := newFakeStore("g1", 30)
	store.groups["g2"] = true
	store.tasks["g2"] = []string{"x", "y"}

	_, err := DeleteGroup(context.Background(), store, "g1", Options{BatchSize: 7})
	require.NoError(t, err)

	assert.True(t, store.groups["g2"])
	assert.Equal(t, []string{"x", "y"}, store.tasks["g2"])
}

func TestDeleteGroupBatchFailureAborts(t *testing.T) {
	store := newFakeStore("g1", 250)
	store.failOnBatch = 2

	res, err := DeleteGroup(context.Background(), store, "g1", Options{BatchSize: 100})

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrDatabaseConnection))
	assert.Equal(t, 1, res.Batches)
	assert.Equal(t, 100, res.TasksDeleted)
	assert.Len(t, store.tasks["g1"], 150, "first batch stays deleted")
	assert.True(t, store.groups["g1"], "group document is kept when the drain fails")
}

func TestDeleteGroupBatchLimit(t *testing.T) {
	tests := []struct {
		name   string
		tasks  int
		refill bool
		opts   Options
		want   struct {
			err         error
			batches     int
			deleted     int
			remaining   int
			groupExists bool
		}
	}{
		{
			name:  "drained exactly at the limit",
			tasks: 20,
			opts:  Options{BatchSize: 10, MaxBatches: 2},
			want: struct {
				err         error
				batches     int
				deleted     int
				remaining   int
				groupExists bool
			}{batches: 2, deleted: 20},
		},
		{
			name:  "tasks left after the limit",
			tasks: 25,
			opts:  Options{BatchSize: 10, MaxBatches: 2},
			want: struct {
				err         error
				batches     int
				deleted     int
				remaining   int
				groupExists bool
			}{err: errors.ErrCascadeIncomplete, batches: 2, deleted: 20, remaining: 5, groupExists: true},
		},
		{
			name:   "concurrent inserts never drain",
			tasks:  5,
			refill: true,
			opts:   Options{BatchSize: 100, MaxBatches: 3},
			want: struct {
				err         error
				batches     int
				deleted     int
				remaining   int
				groupExists bool
			}{err: errors.ErrCascadeIncomplete, batches: 3, deleted: 8, remaining: 1, groupExists: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore("g1", tt.tasks)
			store.refillOnList = tt.refill

			res, err := DeleteGroup(context.Background(), store, "g1", tt.opts)

			if tt.want.err != nil {
				assert.ErrorIs(t, err, tt.want.err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want.batches, res.Batches)
			assert.Equal(t, tt.want.deleted, res.TasksDeleted)
			assert.Len(t, store.tasks["g1"], tt.want.remaining)
			assert.Equal(t, tt.want.groupExists, store.groups["g1"])
		})
	}
}

func TestDeleteGroupCancelledContext(t *testing.T) {
	store := newFakeStore("g1", 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DeleteGroup(ctx, store, "g1", Options{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.listCalls)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListGroupTaskIDs(ctx context.Context, groupID string, limit int) ([]string, error) {
	args := m.Called(ctx, groupID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) DeleteGroupTasks(ctx context.Context, groupID string, ids []string) error {
	args := m.Called(ctx, groupID, ids)
	return args.Error(0)
}

func (m *MockStore) DeleteGroup(ctx context.Context, groupID string) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

func TestDeleteGroupErrors(t *testing.T) {
	tests := []struct {
		name      string
		mockSetup func(*MockStore)
		want      error
	}{
		{
			name: "list failure",
			mockSetup: func(m *MockStore) {
				m.On("ListGroupTaskIDs", mock.Anything, "g1", 2).Return(nil, errors.ErrDatabaseConnection)
			},
			want: errors.ErrDatabaseConnection,
		},
		{
			name: "group delete failure",
			mockSetup: func(m *MockStore) {
				m.On("ListGroupTaskIDs", mock.Anything, "g1", 2).Return([]string{}, nil)
				m.On("DeleteGroup", mock.Anything, "g1").Return(errors.ErrGroupNotFound)
			},
			want: errors.ErrGroupNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockStore{}
			tt.mockSetup(store)

			_, err := DeleteGroup(context.Background(), store, "g1", Options{BatchSize: 2})

			assert.ErrorIs(t, err, tt.want)
			store.AssertExpectations(t)
		})
	}
}

func TestDeleteGroupRequeriesFromStart(t *testing.T) {
	store := &MockStore{}
	store.On("ListGroupTaskIDs", mock.Anything, "g1", 2).Return([]string{"a", "b"}, nil).Once()
	store.On("ListGroupTaskIDs", mock.Anything, "g1", 2).Return([]string{"c"}, nil).Once()
	store.On("ListGroupTaskIDs", mock.Anything, "g1", 2).Return([]string{}, nil).Once()
	store.On("DeleteGroupTasks", mock.Anything, "g1", mock.Anything).Return(nil)
	store.On("DeleteGroup", mock.Anything, "g1").Return(nil)

	res, err := DeleteGroup(context.Background(), store, "g1", Options{BatchSize: 2})
	require.NoError(t, err)

	var deleted []string
	for _, call := range store.Calls {
		if call.Method == "DeleteGroupTasks" {
			deleted = append(deleted, call.Arguments.Get(2).([]string)...)
		}
	}
	sort.Strings(deleted)
	assert.Equal(t, []string{"a", "b", "c"}, deleted)
	assert.Equal(t, 2, res.Batches)
	store.AssertExpectations(t)
}
