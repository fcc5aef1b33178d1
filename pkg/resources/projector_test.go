package resources

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stchstepan/passbolt/pkg/model"
)

func baseEntry(creatorID, modifierID uuid.UUID) *Entry {
	return &Entry{
		Resource: model.Resource{
			ID:         uuid.New(),
			Name:       "apache",
			CreatedBy:  creatorID,
			ModifiedBy: modifierID,
		},
	}
}

func TestProjector_CreatorAndModifier(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	creatorID, modifierID := uuid.New(), uuid.New()
	entry := baseEntry(creatorID, modifierID)

	userRows := sqlmock.NewRows([]string{"id", "username", "first_name", "last_name"}).
		AddRow(creatorID.String(), "ada@passbolt.com", "Ada", "Lovelace").
		AddRow(modifierID.String(), "betty@passbolt.com", "Betty", "Holberton")
	mock.ExpectQuery(`SELECT u\.id, u\.username, p\.first_name, p\.last_name`).
		WillReturnRows(userRows)

	projector := NewProjector(NewStore(db))
	pc := testPrincipal(uuid.New())

	err = projector.Project(context.Background(), pc, []*Entry{entry},
		ContainSet{Creator: true, Modifier: true})

	require.NoError(t, err)
	require.NotNil(t, entry.Creator)
	assert.Equal(t, "ada@passbolt.com", entry.Creator.Username)
	require.NotNil(t, entry.Creator.Profile)
	assert.Equal(t, "Ada", entry.Creator.Profile.FirstName)
	require.NotNil(t, entry.Modifier)
	assert.Equal(t, "betty@passbolt.com", entry.Modifier.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjector_SecretsAreScopedToCaller(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	callerID := uuid.New()
	entry := baseEntry(uuid.New(), uuid.New())
	now := time.Now()

	secretRows := sqlmock.NewRows([]string{"id", "user_id", "resource_id", "data", "created", "modified"}).
		AddRow(uuid.NewString(), callerID.String(), entry.ID.String(), "-----BEGIN PGP MESSAGE-----", now, now)
	mock.ExpectQuery(`SELECT id, user_id, resource_id, data, created, modified`).
		WithArgs(callerID, sqlmock.AnyArg()).
		WillReturnRows(secretRows)

	projector := NewProjector(NewStore(db))
	pc := testPrincipal(callerID)

	err = projector.Project(context.Background(), pc, []*Entry{entry}, ContainSet{Secret: true})

	require.NoError(t, err)
	require.Len(t, entry.Secrets, 1)
	assert.Equal(t, callerID, entry.Secrets[0].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjector_FavoritePresenceConveysTheBoolean(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	callerID := uuid.New()
	favorited := baseEntry(uuid.New(), uuid.New())
	plain := baseEntry(uuid.New(), uuid.New())

	favoriteRows := sqlmock.NewRows([]string{"id", "user_id", "foreign_key", "created"}).
		AddRow(uuid.NewString(), callerID.String(), favorited.ID.String(), time.Now())
	mock.ExpectQuery(`SELECT id, user_id, foreign_key, created`).
		WithArgs(callerID, sqlmock.AnyArg()).
		WillReturnRows(favoriteRows)

	projector := NewProjector(NewStore(db))
	pc := testPrincipal(callerID)

	err = projector.Project(context.Background(), pc, []*Entry{favorited, plain}, ContainSet{Favorite: true})

	require.NoError(t, err)
	assert.NotNil(t, favorited.Favorite)
	assert.Nil(t, plain.Favorite)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjector_PermissionsWithPrincipals(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	entry := baseEntry(uuid.New(), uuid.New())
	memberID, groupID := uuid.New(), uuid.New()
	now := time.Now()

	permColumns := []string{
		"id", "aco", "aco_foreign_key", "aro", "aro_foreign_key", "type",
		"created", "modified",
		"user_id", "username", "first_name", "last_name",
		"group_id", "group_name",
	}
	permRows := sqlmock.NewRows(permColumns).
		AddRow(uuid.NewString(), "Resource", entry.ID.String(), "User", memberID.String(), 15,
			now, now, memberID.String(), "ada@passbolt.com", "Ada", "Lovelace", nil, nil).
		AddRow(uuid.NewString(), "Resource", entry.ID.String(), "Group", groupID.String(), 1,
			now, now, nil, nil, nil, nil, groupID.String(), "developer")
	mock.ExpectQuery(`SELECT p\.id, p\.aco, p\.aco_foreign_key`).
		WillReturnRows(permRows)

	projector := NewProjector(NewStore(db))
	pc := testPrincipal(uuid.New())

	err = projector.Project(context.Background(), pc, []*Entry{entry},
		ContainSet{Permissions: true, PermissionsUserProfile: true, PermissionsGroup: true})

	require.NoError(t, err)
	require.Len(t, entry.Permissions, 2)

	userPerm, groupPerm := entry.Permissions[0], entry.Permissions[1]
	assert.Equal(t, model.PrincipalUser, userPerm.ARO)
	require.NotNil(t, userPerm.User)
	assert.Equal(t, "ada@passbolt.com", userPerm.User.Username)
	require.NotNil(t, userPerm.User.Profile)
	assert.Nil(t, userPerm.Group)

	assert.Equal(t, model.PrincipalGroup, groupPerm.ARO)
	require.NotNil(t, groupPerm.Group)
	assert.Equal(t, "developer", groupPerm.Group.Name)
	assert.Nil(t, groupPerm.User)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjector_PermissionsAlwaysPresentWhenRequested(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	entry := baseEntry(uuid.New(), uuid.New())

	permColumns := []string{
		"id", "aco", "aco_foreign_key", "aro", "aro_foreign_key", "type",
		"created", "modified",
		"user_id", "username", "first_name", "last_name",
		"group_id", "group_name",
	}
	mock.ExpectQuery(`SELECT p\.id, p\.aco, p\.aco_foreign_key`).
		WillReturnRows(sqlmock.NewRows(permColumns))

	projector := NewProjector(NewStore(db))

	err = projector.Project(context.Background(), testPrincipal(uuid.New()), []*Entry{entry},
		ContainSet{Permissions: true})

	require.NoError(t, err)
	assert.NotNil(t, entry.Permissions)
	assert.Empty(t, entry.Permissions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEffectivePermission_MaxOverPrincipalFacets(t *testing.T) {
	callerID, groupID := uuid.New(), uuid.New()
	resourceID := uuid.New()
	pc := testPrincipal(callerID, groupID)

	rows := []*PermissionView{
		{ID: uuid.New(), ACOForeignKey: resourceID, ARO: model.PrincipalUser, AROForeignKey: callerID, Type: model.LevelRead},
		{ID: uuid.New(), ACOForeignKey: resourceID, ARO: model.PrincipalGroup, AROForeignKey: groupID, Type: model.LevelUpdate,
			Group: &GroupView{ID: groupID, Name: "developer"}},
		{ID: uuid.New(), ACOForeignKey: resourceID, ARO: model.PrincipalUser, AROForeignKey: uuid.New(), Type: model.LevelOwner},
	}

	summary := effectivePermission(pc, rows)

	require.NotNil(t, summary)
	assert.Equal(t, model.LevelUpdate, summary.Type)
	assert.Equal(t, model.PrincipalGroup, summary.ARO)
	assert.Equal(t, groupID, summary.AROForeignKey)
	assert.Nil(t, summary.Group, "the summary describes the caller's access, not the principal row")
}

func TestEffectivePermission_NoFacetMatches(t *testing.T) {
	pc := testPrincipal(uuid.New())

	summary := effectivePermission(pc, []*PermissionView{
		{ARO: model.PrincipalUser, AROForeignKey: uuid.New(), Type: model.LevelOwner},
	})

	assert.Nil(t, summary)
}

func TestProjector_NothingRequestedIsANoOp(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	entry := baseEntry(uuid.New(), uuid.New())

	projector := NewProjector(NewStore(db))
	err = projector.Project(context.Background(), testPrincipal(uuid.New()), []*Entry{entry}, ContainSet{})

	require.NoError(t, err)
	assert.Nil(t, entry.Creator)
	assert.NoError(t, mock.ExpectationsWereMet())
}
