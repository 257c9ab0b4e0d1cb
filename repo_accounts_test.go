package onboard_test

import (
	"context"
	"database/sql"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	onboard "github.com/venlock/go-onboard"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	// unique per test, otherwise shared cache leaks tables between tests
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)

	// one connection keeps concurrent statements serialized on the shared cache
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	applyMigrations(t, db)

	return db
}

// applyMigrations runs the embedded up migrations in lexical order.
func applyMigrations(t *testing.T, db *bun.DB) {
	t.Helper()

	migrations := onboard.GetMigrationsFS()

	var files []string
	err := fs.WalkDir(migrations, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".up.sql") {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)

	for _, file := range files {
		content, err := fs.ReadFile(migrations, file)
		require.NoError(t, err)

		for _, stmt := range strings.Split(string(content), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			_, err := db.Exec(stmt)
			require.NoError(t, err, "migration %s", file)
		}
	}
}

func TestRepositoryManager(t *testing.T) {
	ctx := context.Background()

	t.Run("save and find round trip", func(t *testing.T) {
		db := setupTestDB(t)
		repo := onboard.NewRepositoryManager(db)
		require.NoError(t, repo.Validate())

		account := &onboard.Account{
			Username:    "ada123456",
			DisplayName: "Ada Lovelace",
			Email:       "ada@example.com",
			BirthDate:   "1815-12-10",
		}

		saved, err := repo.Save(ctx, account)
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.Contains(t, saved.Authorities, "USER")

		byUsername, err := repo.FindByUsername(ctx, "ada123456")
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", byUsername.Email)

		byEmail, err := repo.FindByEmail(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, "ada123456", byEmail.Username)
	})

	t.Run("missing records come back as not found", func(t *testing.T) {
		db := setupTestDB(t)
		repo := onboard.NewRepositoryManager(db)

		_, err := repo.FindByUsername(ctx, "ghost")
		assert.Error(t, err)

		_, err = repo.FindByEmail(ctx, "ghost@example.com")
		assert.Error(t, err)
	})

	t.Run("duplicate email is translated to the domain conflict", func(t *testing.T) {
		db := setupTestDB(t)
		repo := onboard.NewRepositoryManager(db)

		first := &onboard.Account{Username: "ada123456", DisplayName: "Ada", Email: "ada@example.com"}
		_, err := repo.Save(ctx, first)
		require.NoError(t, err)

		second := &onboard.Account{Username: "ada654321", DisplayName: "Ada", Email: "ada@example.com"}
		_, err = repo.Save(ctx, second)
		assert.ErrorIs(t, err, onboard.ErrEmailAlreadyTaken)
	})

	t.Run("new account with a taken username is rejected, not merged", func(t *testing.T) {
		db := setupTestDB(t)
		repo := onboard.NewRepositoryManager(db)

		victim := &onboard.Account{
			Username:     "ada123456",
			DisplayName:  "Ada",
			Email:        "ada@example.com",
			PasswordHash: "victim-hash",
		}
		_, err := repo.Save(ctx, victim)
		require.NoError(t, err)

		impostor := &onboard.Account{
			Username:    "ada123456",
			DisplayName: "Eve",
			Email:       "eve@example.com",
		}
		_, err = repo.Save(ctx, impostor)
		assert.ErrorIs(t, err, onboard.ErrUsernameTaken)

		// victim row untouched
		found, err := repo.FindByUsername(ctx, "ada123456")
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", found.Email)
		assert.Equal(t, "victim-hash", found.PasswordHash)
	})

	t.Run("preassigned id with no row yet inserts", func(t *testing.T) {
		db := setupTestDB(t)
		repo := onboard.NewRepositoryManager(db)

		id := uuid.New()
		account := &onboard.Account{
			ID:          id,
			Username:    "ada123456",
			DisplayName: "Ada",
			Email:       "ada@example.com",
		}

		saved, err := repo.Save(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, id, saved.ID)

		found, err := repo.FindByUsername(ctx, "ada123456")
		require.NoError(t, err)
		assert.Equal(t, id, found.ID)
	})

	t.Run("save updates an existing username in place", func(t *testing.T) {
		db := setupTestDB(t)
		repo := onboard.NewRepositoryManager(db)

		account := &onboard.Account{Username: "ada123456", DisplayName: "Ada", Email: "ada@example.com"}
		saved, err := repo.Save(ctx, account)
		require.NoError(t, err)

		saved.PhoneNumber = "+14155552671"
		updated, err := repo.Save(ctx, saved)
		require.NoError(t, err)
		assert.Equal(t, "+14155552671", updated.PhoneNumber)

		found, err := repo.FindByUsername(ctx, "ada123456")
		require.NoError(t, err)
		assert.Equal(t, "+14155552671", found.PhoneNumber)
	})

	t.Run("concurrent registrations agree on a single email owner", func(t *testing.T) {
		db := setupTestDB(t)
		repo := onboard.NewRepositoryManager(db)

		flow := onboard.NewRegistrar(repo, &MockNotifier{}, testConfig{signingKey: "race-test-key"}).
			WithLogger(nopLogger{})

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < len(errs); i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _, err := flow.Register(ctx, onboard.RegisterInput{
					DisplayName: "Ada Lovelace",
					Email:       "race@example.com",
					BirthDate:   "1815-12-10",
				})
				errs[i] = err
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
			} else {
				assert.ErrorIs(t, err, onboard.ErrEmailAlreadyTaken)
			}
		}
		assert.Equal(t, 1, winners)

		owner, err := repo.FindByEmail(ctx, "race@example.com")
		require.NoError(t, err)
		assert.NotEmpty(t, owner.Username)
	})

	t.Run("migrations seed the USER role", func(t *testing.T) {
		db := setupTestDB(t)
		repo := onboard.NewRepositoryManager(db)

		role, err := repo.FindRoleByAuthority(ctx, "USER")
		require.NoError(t, err)
		assert.Equal(t, "USER", role.Authority)

		_, err = repo.FindRoleByAuthority(ctx, "ADMIN")
		assert.Error(t, err)
	})
}
