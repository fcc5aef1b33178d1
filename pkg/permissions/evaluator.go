package permissions

import (
	"context"

	"github.com/google/uuid"

	"github.com/stchstepan/passbolt/pkg/model"
	"github.com/stchstepan/passbolt/pkg/principal"
)

// Evaluator answers access-control questions for a principal. The absence of
// a permission is a value, never an error; the only errors it returns are
// storage failures bubbling up from the underlying Reader.
type Evaluator struct {
	reader Reader
}

// NewEvaluator creates an evaluator over the given permission reader.
func NewEvaluator(reader Reader) *Evaluator {
	return &Evaluator{reader: reader}
}

// CanSee reports whether the caller holds any permission on the resource.
func (e *Evaluator) CanSee(ctx context.Context, pc *principal.Context, resourceID uuid.UUID) (bool, error) {
	_, ok, err := e.LevelOf(ctx, pc, resourceID)
	return ok, err
}

// LevelOf returns the caller's effective level on the resource. The boolean
// is false when the caller holds no permission at all.
func (e *Evaluator) LevelOf(ctx context.Context, pc *principal.Context, resourceID uuid.UUID) (model.PermissionLevel, bool, error) {
	levels, err := e.reader.LevelsFor(ctx, pc.UserID(), []uuid.UUID{resourceID})
	if err != nil {
		return 0, false, err
	}
	level, ok := levels[resourceID]
	return level, ok, nil
}

// FilterVisible returns the subset of ids the caller can see, preserving the
// input order.
func (e *Evaluator) FilterVisible(ctx context.Context, pc *principal.Context, resourceIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}

	levels, err := e.reader.LevelsFor(ctx, pc.UserID(), resourceIDs)
	if err != nil {
		return nil, err
	}

	visible := make([]uuid.UUID, 0, len(levels))
	for _, id := range resourceIDs {
		if _, ok := levels[id]; ok {
			visible = append(visible, id)
		}
	}
	return visible, nil
}
