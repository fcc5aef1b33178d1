package permissions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stchstepan/passbolt/pkg/model"
	"github.com/stchstepan/passbolt/pkg/principal"
)

// fakeReader serves levels from a fixed map.
type fakeReader struct {
	levels map[uuid.UUID]model.PermissionLevel
}

func (f *fakeReader) LevelsFor(_ context.Context, _ uuid.UUID, resourceIDs []uuid.UUID) (map[uuid.UUID]model.PermissionLevel, error) {
	out := make(map[uuid.UUID]model.PermissionLevel)
	for _, id := range resourceIDs {
		if level, ok := f.levels[id]; ok {
			out[id] = level
		}
	}
	return out, nil
}

func (f *fakeReader) VisibleResourceIDs(context.Context, uuid.UUID, int, int) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeReader) SharedWithGroup(context.Context, uuid.UUID) (map[uuid.UUID]struct{}, error) {
	return nil, nil
}

func (f *fakeReader) SharedWithMe(context.Context, uuid.UUID) (map[uuid.UUID]struct{}, error) {
	return nil, nil
}

func (f *fakeReader) GroupIDsFor(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func testPrincipal() *principal.Context {
	return principal.New(uuid.New(), model.RoleUser, nil, time.Now())
}

func TestEvaluator_LevelOf(t *testing.T) {
	visible := uuid.New()
	hidden := uuid.New()

	eval := NewEvaluator(&fakeReader{levels: map[uuid.UUID]model.PermissionLevel{
		visible: model.LevelUpdate,
	}})
	pc := testPrincipal()

	level, ok, err := eval.LevelOf(context.Background(), pc, visible)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.LevelUpdate, level)

	_, ok, err = eval.LevelOf(context.Background(), pc, hidden)
	require.NoError(t, err)
	assert.False(t, ok, "no permission is a value, not an error")
}

func TestEvaluator_CanSee(t *testing.T) {
	visible := uuid.New()

	eval := NewEvaluator(&fakeReader{levels: map[uuid.UUID]model.PermissionLevel{
		visible: model.LevelRead,
	}})
	pc := testPrincipal()

	ok, err := eval.CanSee(context.Background(), pc, visible)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = eval.CanSee(context.Background(), pc, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluator_FilterVisible_PreservesOrder(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	eval := NewEvaluator(&fakeReader{levels: map[uuid.UUID]model.PermissionLevel{
		a: model.LevelRead,
		c: model.LevelOwner,
		d: model.LevelRead,
	}})
	pc := testPrincipal()

	visible, err := eval.FilterVisible(context.Background(), pc, []uuid.UUID{d, b, c, a})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{d, c, a}, visible)
}
