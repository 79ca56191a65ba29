package mongodb

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"strings"
	"time"

	"taskboard/internal/domain/errors"
	"taskboard/internal/domain/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection      = "users"
	tasksCollection      = "tasks"
	groupsCollection     = "groups"
	groupTasksCollection = "group_tasks"

	opTimeout = 15 * time.Second
)

type Storage struct {
	client     *mongo.Client
	users      *mongo.Collection
	tasks      *mongo.Collection
	groups     *mongo.Collection
	groupTasks *mongo.Collection
}

// NewStorage connects, pings and prepares the indexes of database dbName.
func NewStorage(ctx context.Context, uri, dbName string) (*Storage, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Println("[ERROR] Failed to connect to MongoDB:", err)
		return nil, fmt.Errorf("mongo connect: %w", errors.ErrDatabaseConnection)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		log.Println("[ERROR] MongoDB ping failed:", err)
		return nil, fmt.Errorf("mongo ping: %w", errors.ErrDatabaseConnection)
	}

	s := New(client, client.Database(dbName))
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Println("[SUCCESS] MongoDB connection established:", dbName)
	return s, nil
}

func New(client *mongo.Client, db *mongo.Database) *Storage {
	return &Storage{
		client:     client,
		users:      db.Collection(usersCollection),
		tasks:      db.Collection(tasksCollection),
		groups:     db.Collection(groupsCollection),
		groupTasks: db.Collection(groupTasksCollection),
	}
}

func (s *Storage) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique user indexes and the lookup indexes used
// by list queries. It is idempotent.
func (s *Storage) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		col    *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.users, []mongo.IndexModel{
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{s.tasks, []mongo.IndexModel{{Keys: bson.D{{Key: "user_id", Value: 1}}}}},
		{s.groups, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "members", Value: 1}}},
		}},
		{s.groupTasks, []mongo.IndexModel{{Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "created_at", Value: 1}}}}},
	}
	for _, idx := range indexes {
		if _, err := idx.col.Indexes().CreateMany(ctx, idx.models); err != nil {
			return fmt.Errorf("mongo indexes on %s: %w", idx.col.Name(), err)
		}
	}
	return nil
}

func stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.New().String()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC().Truncate(time.Millisecond)
	}
}

// notFound maps mongo.ErrNoDocuments to sentinel and wraps everything else.
func notFound(err error, sentinel error, op string) error {
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return sentinel
	}
	return fmt.Errorf("mongo %s: %w", op, err)
}

// duplicateUser tells which unique user index rejected the write.
func duplicateUser(err error) error {
	var we mongo.WriteException
	if stderrors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				if strings.Contains(e.Message, "email") {
					return errors.ErrEmailAlreadyExists
				}
				return errors.ErrUserAlreadyExists
			}
		}
	}
	if mongo.IsDuplicateKeyError(err) {
		return errors.ErrUserAlreadyExists
	}
	return nil
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	stamp(&user.ID, &user.CreatedAt)
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if dup := duplicateUser(err); dup != nil {
			return dup
		}
		log.Println("[ERROR] Failed to create user:", err)
		return fmt.Errorf("mongo insert user: %w", err)
	}
	return nil
}

func (s *Storage) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var user models.User
	if err := s.users.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, notFound(err, errors.ErrUserNotFound, "find user")
	}
	return &user, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *Storage) ListUsers(ctx context.Context) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	users := []models.User{}
	if err := s.findAll(ctx, s.users, bson.M{}, &users); err != nil {
		return nil, fmt.Errorf("mongo list users: %w", err)
	}
	return users, nil
}

func (s *Storage) UpdateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.users.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		if dup := duplicateUser(err); dup != nil {
			return dup
		}
		return fmt.Errorf("mongo update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return errors.ErrUserNotFound
	}
	return nil
}

func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	return s.deleteOne(ctx, s.users, bson.M{"_id": id}, errors.ErrUserNotFound)
}

func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	stamp(&task.ID, &task.CreatedAt)
	return s.insert(ctx, s.tasks, task)
}

func (s *Storage) GetTaskByID(ctx context.Context, id string) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var task models.Task
	if err := s.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&task); err != nil {
		return nil, notFound(err, errors.ErrTaskNotFound, "find task")
	}
	return &task, nil
}

func (s *Storage) GetTasksByUser(ctx context.Context, userID string) ([]models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tasks := []models.Task{}
	if err := s.findAll(ctx, s.tasks, bson.M{"user_id": userID}, &tasks); err != nil {
		return nil, fmt.Errorf("mongo list tasks: %w", err)
	}
	return tasks, nil
}

func (s *Storage) UpdateTask(ctx context.Context, task *models.Task) error {
	return s.replace(ctx, s.tasks, bson.M{"_id": task.ID}, task, errors.ErrTaskNotFound)
}

func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	return s.deleteOne(ctx, s.tasks, bson.M{"_id": id}, errors.ErrTaskNotFound)
}

func (s *Storage) CreateGroup(ctx context.Context, group *models.Group) error {
	stamp(&group.ID, &group.CreatedAt)
	if group.Members == nil {
		group.Members = []string{}
	}
	return s.insert(ctx, s.groups, group)
}

func (s *Storage) GetGroupByID(ctx context.Context, id string) (*models.Group, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var group models.Group
	if err := s.groups.FindOne(ctx, bson.M{"_id": id}).Decode(&group); err != nil {
		return nil, notFound(err, errors.ErrGroupNotFound, "find group")
	}
	return &group, nil
}

func (s *Storage) GetGroupsByCreator(ctx context.Context, userID string) ([]models.Group, error) {
	return s.listGroups(ctx, bson.M{"user_id": userID})
}

// GetGroupsByMember relies on Mongo matching a scalar against array fields.
func (s *Storage) GetGroupsByMember(ctx context.Context, userID string) ([]models.Group, error) {
	return s.listGroups(ctx, bson.M{"members": userID})
}

func (s *Storage) listGroups(ctx context.Context, filter bson.M) ([]models.Group, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	groups := []models.Group{}
	if err := s.findAll(ctx, s.groups, filter, &groups); err != nil {
		return nil, fmt.Errorf("mongo list groups: %w", err)
	}
	return groups, nil
}

func (s *Storage) UpdateGroup(ctx context.Context, group *models.Group) error {
	if group.Members == nil {
		group.Members = []string{}
	}
	return s.replace(ctx, s.groups, bson.M{"_id": group.ID}, group, errors.ErrGroupNotFound)
}

func (s *Storage) DeleteGroup(ctx context.Context, id string) error {
	return s.deleteOne(ctx, s.groups, bson.M{"_id": id}, errors.ErrGroupNotFound)
}

func (s *Storage) CreateGroupTask(ctx context.Context, task *models.GroupTask) error {
	stamp(&task.ID, &task.CreatedAt)
	return s.insert(ctx, s.groupTasks, task)
}

func (s *Storage) GetGroupTask(ctx context.Context, groupID, taskID string) (*models.GroupTask, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var task models.GroupTask
	if err := s.groupTasks.FindOne(ctx, bson.M{"_id": taskID, "group_id": groupID}).Decode(&task); err != nil {
		return nil, notFound(err, errors.ErrTaskNotFound, "find group task")
	}
	return &task, nil
}

func (s *Storage) ListGroupTasks(ctx context.Context, groupID string) ([]models.GroupTask, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tasks := []models.GroupTask{}
	if err := s.findAll(ctx, s.groupTasks, bson.M{"group_id": groupID}, &tasks); err != nil {
		return nil, fmt.Errorf("mongo list group tasks: %w", err)
	}
	return tasks, nil
}

func (s *Storage) UpdateGroupTask(ctx context.Context, task *models.GroupTask) error {
	return s.replace(ctx, s.groupTasks, bson.M{"_id": task.ID, "group_id": task.GroupID}, task, errors.ErrTaskNotFound)
}

func (s *Storage) DeleteGroupTask(ctx context.Context, groupID, taskID string) error {
	return s.deleteOne(ctx, s.groupTasks, bson.M{"_id": taskID, "group_id": groupID}, errors.ErrTaskNotFound)
}

// ListGroupTaskIDs returns at most limit ids of the group's tasks, oldest
// first. Only the _id field is fetched.
func (s *Storage) ListGroupTaskIDs(ctx context.Context, groupID string, limit int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.groupTasks.Find(ctx, bson.M{"group_id": groupID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo list group task ids: %w", err)
	}
	defer cur.Close(ctx)

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode group task ids: %w", err)
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// DeleteGroupTasks removes one batch with a single DeleteMany. The group_id
// term keeps a stray id from touching another group's tasks.
func (s *Storage) DeleteGroupTasks(ctx context.Context, groupID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.groupTasks.DeleteMany(ctx, bson.M{"group_id": groupID, "_id": bson.M{"$in": ids}})
	if err != nil {
		return fmt.Errorf("mongo delete group tasks: %w", err)
	}
	return nil
}

func (s *Storage) insert(ctx context.Context, col *mongo.Collection, doc interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := col.InsertOne(ctx, doc); err != nil {
		log.Printf("[ERROR] Failed to insert into %s: %v", col.Name(), err)
		return fmt.Errorf("mongo insert %s: %w", col.Name(), err)
	}
	return nil
}

func (s *Storage) replace(ctx context.Context, col *mongo.Collection, filter bson.M, doc interface{}, missing error) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := col.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return fmt.Errorf("mongo update %s: %w", col.Name(), err)
	}
	if res.MatchedCount == 0 {
		return missing
	}
	return nil
}

func (s *Storage) deleteOne(ctx context.Context, col *mongo.Collection, filter bson.M, missing error) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := col.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("mongo delete %s: %w", col.Name(), err)
	}
	if res.DeletedCount == 0 {
		return missing
	}
	return nil
}

func (s *Storage) findAll(ctx context.Context, col *mongo.Collection, filter bson.M, out interface{}) error {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := col.Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	return cur.All(ctx, out)
}
