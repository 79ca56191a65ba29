package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	GroupStatusActive = "Active"

	TaskStatusInProgress = "In Progress"
	TaskStatusDone       = "Done"
	TaskStatusPaused     = "Paused"
	TaskStatusRevision   = "Revision"

	GroupTaskPending    = "Pending"
	GroupTaskInProgress = "InProgress"
	GroupTaskCompleted  = "Completed"
)

type User struct {
	ID           string    `json:"id" bson:"_id"`
	Username     string    `json:"username" bson:"username"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Role         string    `json:"role" bson:"role"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
}

// Task is a personal task owned by exactly one user.
type Task struct {
	ID              string    `json:"id" bson:"_id"`
	UserID          string    `json:"userId" bson:"user_id"`
	Name            string    `json:"name" bson:"name"`
	Description     string    `json:"description" bson:"description"`
	TimeUntilFinish string    `json:"timeUntilFinish" bson:"time_until_finish"`
	RemindMe        bool      `json:"remindMe" bson:"remind_me"`
	Status          string    `json:"status" bson:"status"`
	Category        string    `json:"category" bson:"category"`
	CreatedAt       time.Time `json:"createdAt" bson:"created_at"`
}

// Group is owned by its creator (UserID). Members get read access only.
type Group struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description" bson:"description"`
	UserID      string    `json:"userId" bson:"user_id"`
	Members     []string  `json:"members" bson:"members"`
	Status      string    `json:"status" bson:"status"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
}

// GroupTask lives under a group and is removed together with it.
// AssignedTo holds a username, not a user id.
type GroupTask struct {
	ID          string    `json:"id" bson:"_id"`
	GroupID     string    `json:"groupId" bson:"group_id"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	DueDate     string    `json:"dueDate" bson:"due_date"`
	AssignedTo  string    `json:"assignedTo" bson:"assigned_to"`
	Status      string    `json:"status" bson:"status"`
	CreatedAt   time.Time `json:"createdAt" bson:"created_at"`
}

type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,simpleemail"`
	Password string `json:"password" validate:"required,min=6,max=100"`
}

type AddUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,simpleemail"`
	Password string `json:"password" validate:"required,min=6,max=100"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
	AdminID  string `json:"adminId"`
}

type EditUserRequest struct {
	UserID   string  `json:"userId" validate:"required"`
	Username *string `json:"username" validate:"omitempty,min=3,max=50"`
	Email    *string `json:"email" validate:"omitempty,simpleemail"`
	Password *string `json:"password" validate:"omitempty,min=6,max=100"`
	Role     *string `json:"role" validate:"omitempty,oneof=user admin"`
	AdminID  string  `json:"adminId"`
}

type UpdateUserRoleRequest struct {
	UserID  string `json:"userId" validate:"required"`
	NewRole string `json:"newRole" validate:"required,oneof=user admin"`
	AdminID string `json:"adminId"`
}

type DeleteUserRequest struct {
	UserID  string `json:"userId" validate:"required"`
	AdminID string `json:"adminId"`
}

type CreateTaskRequest struct {
	UserID          string `json:"userId"`
	Name            string `json:"name" validate:"required,max=200"`
	Description     string `json:"description" validate:"omitempty,max=2000"`
	TimeUntilFinish string `json:"timeUntilFinish"`
	RemindMe        bool   `json:"remindMe"`
	Status          string `json:"status" validate:"required"`
	Category        string `json:"category" validate:"omitempty,max=100"`
}

type UpdateTaskRequest struct {
	ID              string  `json:"id" validate:"required"`
	Name            *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description     *string `json:"description" validate:"omitempty,max=2000"`
	TimeUntilFinish *string `json:"timeUntilFinish"`
	RemindMe        *bool   `json:"remindMe"`
	Status          *string `json:"status"`
	Category        *string `json:"category" validate:"omitempty,max=100"`
}

type DeleteTaskRequest struct {
	TaskID string `json:"taskId" validate:"required"`
}

type CreateGroupRequest struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Description string   `json:"description" validate:"omitempty,max=1000"`
	UserID      string   `json:"userId"`
	Members     []string `json:"members"`
}

type UpdateGroupRequest struct {
	ID          string    `json:"id" validate:"required"`
	Name        *string   `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string   `json:"description" validate:"omitempty,max=1000"`
	Members     *[]string `json:"members"`
	Status      *string   `json:"status"`
}

type DeleteGroupRequest struct {
	GroupID string `json:"groupId" validate:"required"`
}

type CreateGroupTaskRequest struct {
	GroupID     string `json:"groupId" validate:"required"`
	UserID      string `json:"userId"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	DueDate     string `json:"dueDate"`
	AssignedTo  string `json:"assignedTo"`
	Status      string `json:"status"`
}

type UpdateGroupTaskRequest struct {
	GroupID     string  `json:"groupId" validate:"required"`
	UserID      string  `json:"userId"`
	TaskID      string  `json:"taskId" validate:"required"`
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	DueDate     *string `json:"dueDate"`
	AssignedTo  *string `json:"assignedTo"`
	Status      *string `json:"status"`
}

type DeleteGroupTaskRequest struct {
	GroupID string `json:"groupId" validate:"required"`
	UserID  string `json:"userId"`
	TaskID  string `json:"taskId" validate:"required"`
}

type UpdateGroupTaskStatusRequest struct {
	GroupID string `json:"groupId" validate:"required"`
	UserID  string `json:"userId"`
	TaskID  string `json:"taskId" validate:"required"`
	Status  string `json:"status" validate:"required"`
}
