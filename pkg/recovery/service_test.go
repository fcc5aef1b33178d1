package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stchstepan/passbolt/pkg/model"
	"github.com/stchstepan/passbolt/pkg/users"
)

type fakeUserFinder struct {
	user *model.User
}

func (f *fakeUserFinder) ByUsername(_ context.Context, username string) (*model.User, error) {
	if f.user == nil || f.user.Username != username {
		return nil, users.ErrNotFound
	}
	return f.user, nil
}

func tokenColumns() []string {
	return []string{"id", "token", "user_id", "type", "active", "created", "modified"}
}

func activeAccount(username string) *model.User {
	return &model.User{
		ID:       uuid.New(),
		Username: username,
		Role:     model.RoleUser,
		Active:   true,
	}
}

func TestService_Recover_ReusesActiveToken(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	account := activeAccount("ada@passbolt.com")
	tokenID, tokenValue := uuid.New(), uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows(tokenColumns()).
		AddRow(tokenID.String(), tokenValue.String(), account.ID.String(), TypeRecover, true,
			now.Add(-time.Minute), now.Add(-time.Minute))
	mock.ExpectQuery(`FROM authentication_tokens`).
		WithArgs(account.ID, TypeRecover).
		WillReturnRows(rows)

	service := NewService(NewStore(db), &fakeUserFinder{user: account}, 10*time.Minute)
	user, token, err := service.Recover(context.Background(), "ada@passbolt.com")

	require.NoError(t, err)
	assert.Equal(t, account.ID, user.ID)
	assert.Equal(t, tokenValue, token.Token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Recover_CreatesTokenWhenNoneActive(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	account := activeAccount("dame@passbolt.com")
	now := time.Now()

	mock.ExpectQuery(`FROM authentication_tokens`).
		WithArgs(account.ID, TypeRecover).
		WillReturnRows(sqlmock.NewRows(tokenColumns()))
	mock.ExpectQuery(`INSERT INTO authentication_tokens`).
		WillReturnRows(sqlmock.NewRows([]string{"created", "modified"}).AddRow(now, now))

	service := NewService(NewStore(db), &fakeUserFinder{user: account}, 10*time.Minute)
	_, token, err := service.Recover(context.Background(), "dame@passbolt.com")

	require.NoError(t, err)
	assert.Equal(t, account.ID, token.UserID)
	assert.Equal(t, TypeRecover, token.Type)
	assert.True(t, token.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Recover_ReplacesExpiredToken(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	account := activeAccount("irene@passbolt.com")
	staleID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows(tokenColumns()).
		AddRow(staleID.String(), uuid.NewString(), account.ID.String(), TypeRecover, true,
			now.Add(-time.Hour), now.Add(-time.Hour))
	mock.ExpectQuery(`FROM authentication_tokens`).
		WithArgs(account.ID, TypeRecover).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE authentication_tokens SET active = FALSE`).
		WithArgs(staleID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO authentication_tokens`).
		WillReturnRows(sqlmock.NewRows([]string{"created", "modified"}).AddRow(now, now))

	service := NewService(NewStore(db), &fakeUserFinder{user: account}, 10*time.Minute)
	_, token, err := service.Recover(context.Background(), "irene@passbolt.com")

	require.NoError(t, err)
	assert.NotEqual(t, staleID, token.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Recover_AccountStateErrors(t *testing.T) {
	inactive := activeAccount("marlyn@passbolt.com")
	inactive.Active = false

	deleted := activeAccount("sofia@passbolt.com")
	deleted.Deleted = true

	disabledAt := time.Now().Add(-time.Hour)
	disabled := activeAccount("ruth@passbolt.com")
	disabled.Disabled = &disabledAt

	tests := []struct {
		name     string
		username string
		user     *model.User
		want     error
	}{
		{name: "unknown user", username: "nobody@passbolt.com", user: nil, want: ErrUserNotFound},
		{name: "deleted user", username: "sofia@passbolt.com", user: deleted, want: ErrUserNotFound},
		{name: "inactive user", username: "marlyn@passbolt.com", user: inactive, want: ErrUserInactive},
		{name: "disabled user", username: "ruth@passbolt.com", user: disabled, want: ErrUserDisabled},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, _, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
			require.NoError(t, err)
			defer db.Close()

			service := NewService(NewStore(db), &fakeUserFinder{user: tc.user}, 10*time.Minute)
			_, _, err = service.Recover(context.Background(), tc.username)

			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestStartURL(t *testing.T) {
	userID := uuid.MustParse("e97b14ba-8957-57c9-a357-f78a6e1e1a46")
	token := uuid.MustParse("a0559bb5-050b-50a3-ad39-c6756a46dbb7")

	url := StartURL("https://passbolt.local/", userID, token)

	assert.Equal(t,
		"https://passbolt.local/setup/recover/start/e97b14ba-8957-57c9-a357-f78a6e1e1a46/a0559bb5-050b-50a3-ad39-c6756a46dbb7",
		url)
}

func TestStore_DeactivateExpired(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE authentication_tokens`).
		WithArgs(TypeRecover, "600 seconds").
		WillReturnResult(sqlmock.NewResult(0, 3))

	store := NewStore(db)
	count, err := store.DeactivateExpired(context.Background(), TypeRecover, 10*time.Minute)

	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
