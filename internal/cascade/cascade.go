// Package cascade removes a group together with its task sub-collection.
package cascade

import (
	"context"
	"fmt"
	"log"

	"taskboard/internal/domain/errors"
)

const DefaultBatchSize = 100

// Store is the slice of a repository the cascade needs.
type Store interface {
	// ListGroupTaskIDs returns up to limit task ids of the group in the
	// store's default order.
	ListGroupTaskIDs(ctx context.Context, groupID string, limit int) ([]string, error)
	// DeleteGroupTasks removes the given tasks as one batch write.
	DeleteGroupTasks(ctx context.Context, groupID string, ids []string) error
	DeleteGroup(ctx context.Context, groupID string) error
}

type Options struct {
	BatchSize int
	// MaxBatches bounds the drain loop. Zero means no bound. Tasks inserted
	// while the drain runs can keep the loop from ever seeing an empty batch.
	MaxBatches int
}

type Result struct {
	Batches      int
	TasksDeleted int
}

// DeleteGroup drains the group's tasks batch by batch and then deletes the
// group document. Every iteration re-queries the first BatchSize remaining
// tasks instead of paging with an offset, since the previous batch is gone.
//
// The procedure is not atomic: an error aborts it and leaves whatever was
// already deleted deleted.
func DeleteGroup(ctx context.Context, store Store, groupID string, opts Options) (Result, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var res Result
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		ids, err := store.ListGroupTaskIDs(ctx, groupID, batchSize)
		if err != nil {
			return res, fmt.Errorf("list group tasks: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		// the limit only trips when tasks are still left after MaxBatches
		if opts.MaxBatches > 0 && res.Batches >= opts.MaxBatches {
			log.Printf("[ERROR] Group %s: batch limit %d reached, %d tasks deleted", groupID, opts.MaxBatches, res.TasksDeleted)
			return res, errors.ErrCascadeIncomplete
		}

		if err := store.DeleteGroupTasks(ctx, groupID, ids); err != nil {
			return res, fmt.Errorf("delete group tasks batch %d: %w", res.Batches+1, err)
		}
		res.Batches++
		res.TasksDeleted += len(ids)
		log.Printf("[INFO] Group %s: batch %d removed %d tasks", groupID, res.Batches, len(ids))
	}

	if err := store.DeleteGroup(ctx, groupID); err != nil {
		return res, fmt.Errorf("delete group: %w", err)
	}
	log.Printf("[SUCCESS] Group %s deleted with %d tasks", groupID, res.TasksDeleted)
	return res, nil
}
