// Package access decides what a caller may do with a group and its tasks.
//
// The decision is always derived from a freshly fetched group document: tokens
// carry only a user id, so creatorship and membership are looked up on every
// request and a caller removed from a group loses access on the next call.
package access

import (
	"context"
	stderrors "errors"

	"taskboard/internal/domain/errors"
	"taskboard/internal/domain/models"
)

type Level int

const (
	Read Level = iota
	Write
)

func (l Level) String() string {
	if l == Write {
		return "write"
	}
	return "read"
}

type Decision struct {
	IsCreator bool
	IsMember  bool
}

// CanRead is true for the creator and for every listed member.
func (d Decision) CanRead() bool { return d.IsCreator || d.IsMember }

// CanWrite is true for the creator only.
func (d Decision) CanWrite() bool { return d.IsCreator }

func (d Decision) Allows(level Level) bool {
	if level == Write {
		return d.CanWrite()
	}
	return d.CanRead()
}

// Evaluate has no side effects. A nil group or an empty caller yields no rights.
func Evaluate(group *models.Group, callerID string) Decision {
	if group == nil || callerID == "" {
		return Decision{}
	}
	d := Decision{IsCreator: group.UserID == callerID}
	for _, member := range group.Members {
		if member == callerID {
			d.IsMember = true
			break
		}
	}
	return d
}

type GroupFetcher interface {
	GetGroupByID(ctx context.Context, id string) (*models.Group, error)
}

// Authorize fetches the group and checks the caller against the requested level.
// It returns errors.ErrGroupNotFound when the group is absent and
// errors.ErrForbidden when the decision denies access; the group and the
// decision are returned in both the allowed and the forbidden case.
func Authorize(ctx context.Context, groups GroupFetcher, groupID, callerID string, level Level) (*models.Group, Decision, error) {
	group, err := groups.GetGroupByID(ctx, groupID)
	if err != nil {
		if stderrors.Is(err, errors.ErrGroupNotFound) || stderrors.Is(err, errors.ErrNotFound) {
			return nil, Decision{}, errors.ErrGroupNotFound
		}
		return nil, Decision{}, err
	}
	d := Evaluate(group, callerID)
	if !d.Allows(level) {
		return group, d, errors.ErrForbidden
	}
	return group, d, nil
}
