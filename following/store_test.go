package following

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/Luismorlan/insighthub/apperr"
	"github.com/Luismorlan/insighthub/model"
	"github.com/Luismorlan/insighthub/utils"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB, *miniredis.Miniredis) {
	t.Helper()
	db := utils.CreateTempDB(t)
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(db, NewRedisMirror(client, DefaultMirrorTTL)), db, s
}

func createCompany(t *testing.T, db *gorm.DB, name string) string {
	t.Helper()
	c := model.Company{Name: name, Industry: "tech", IsActive: true}
	require.NoError(t, db.Create(&c).Error)
	return c.Id
}

func sorted(ids []string) []string {
	out := append([]string{}, ids...)
	sort.Strings(out)
	return out
}

func TestAddFollowing_DuplicateRejected(t *testing.T) {
	store, db, _ := newTestStore(t)
	ctx := context.Background()
	c := createCompany(t, db, "Acme")

	res, err := store.AddFollowing(ctx, "u1", c, DefaultFollowOptions())
	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, res)

	res, err = store.AddFollowing(ctx, "u1", c, DefaultFollowOptions())
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadyFollowing, res)

	var count int64
	db.Model(&model.UserFollowing{}).Where("user_id = ? AND company_id = ?", "u1", c).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestAddFollowing_Validation(t *testing.T) {
	store, db, _ := newTestStore(t)
	ctx := context.Background()
	c := createCompany(t, db, "Acme")

	_, err := store.AddFollowing(ctx, "u1", c, FollowOptions{Priority: 6, AutoSummarize: true})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = store.AddFollowing(ctx, "u1", c, FollowOptions{Priority: 0, AutoSummarize: true})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = store.AddFollowing(ctx, "u1", "missing", DefaultFollowOptions())
	assert.True(t, apperr.IsNotFound(err))
}

func TestGetFollowingCompanies_OnlyAutoSummarize(t *testing.T) {
	store, db, _ := newTestStore(t)
	ctx := context.Background()
	a := createCompany(t, db, "Acme")
	b := createCompany(t, db, "Beta")

	_, err := store.AddFollowing(ctx, "u1", a, DefaultFollowOptions())
	require.NoError(t, err)
	_, err = store.AddFollowing(ctx, "u1", b, FollowOptions{Priority: 2, AutoSummarize: false})
	require.NoError(t, err)

	ids, err := store.GetFollowingCompanies(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{a}, ids)

	info, err := store.GetFollowingInfo(ctx, "u1", b)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Priority)
	assert.False(t, info.AutoSummarize)
}

func TestRemoveFollowing(t *testing.T) {
	store, db, _ := newTestStore(t)
	ctx := context.Background()
	a := createCompany(t, db, "Acme")

	res, err := store.RemoveFollowing(ctx, "u1", a)
	require.NoError(t, err)
	assert.Equal(t, ResultNotFollowing, res)

	_, err = store.AddFollowing(ctx, "u1", a, DefaultFollowOptions())
	require.NoError(t, err)
	res, err = store.RemoveFollowing(ctx, "u1", a)
	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, res)

	ids, err := store.GetFollowingCompanies(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = store.GetFollowingInfo(ctx, "u1", a)
	assert.True(t, apperr.IsNotFound(err))

	// Following again after removal is allowed.
	res, err = store.AddFollowing(ctx, "u1", a, DefaultFollowOptions())
	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, res)
}

func TestColdMirrorIsRebuiltFromDatabase(t *testing.T) {
	store, db, s := newTestStore(t)
	ctx := context.Background()
	a := createCompany(t, db, "Acme")
	b := createCompany(t, db, "Beta")

	// Rows written behind the mirror's back, as after a cache flush.
	require.NoError(t, db.Create(&model.UserFollowing{UserId: "u1", CompanyId: a, Priority: 4, AutoSummarize: true}).Error)
	require.NoError(t, db.Create(&model.UserFollowing{UserId: "u1", CompanyId: b, Priority: 1, AutoSummarize: true}).Error)
	s.FlushAll()

	ids, err := store.GetFollowingCompanies(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, sorted([]string{a, b}), sorted(ids))
	assert.True(t, s.Exists("following_synced:u1"))
}

func TestColdMirrorConcurrentReaders(t *testing.T) {
	store, db, s := newTestStore(t)
	ctx := context.Background()
	a := createCompany(t, db, "Acme")
	require.NoError(t, db.Create(&model.UserFollowing{UserId: "u1", CompanyId: a, Priority: 3, AutoSummarize: true}).Error)

	for round := 0; round < 5; round++ {
		s.FlushAll()

		var wg sync.WaitGroup
		results := make([][]string, 8)
		errs := make([]error, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = store.GetFollowingCompanies(ctx, "u1")
			}(i)
		}
		wg.Wait()

		for i := range results {
			require.NoError(t, errs[i])
			assert.Equal(t, []string{a}, results[i])
		}
	}
}

type replaceFailingMirror struct {
	*RedisMirror
}

func (m replaceFailingMirror) Replace(ctx context.Context, userId string, snapshot []Info) error {
	return redis.TxFailedErr
}

func TestColdMirrorServesDatabaseWhenRebuildFails(t *testing.T) {
	db := utils.CreateTempDB(t)
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewStore(db, replaceFailingMirror{NewRedisMirror(client, DefaultMirrorTTL)})

	a := createCompany(t, db, "Acme")
	require.NoError(t, db.Create(&model.UserFollowing{UserId: "u1", CompanyId: a, Priority: 3, AutoSummarize: true}).Error)

	ids, err := store.GetFollowingCompanies(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{a}, ids)
	assert.False(t, s.Exists("following_synced:u1"))
}

func TestEmptyFollowingStaysWarm(t *testing.T) {
	store, _, s := newTestStore(t)
	ctx := context.Background()

	ids, err := store.GetFollowingCompanies(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.True(t, s.Exists("following_synced:nobody"))
}

func TestUnavailableMirrorFailsClosed(t *testing.T) {
	store, db, s := newTestStore(t)
	ctx := context.Background()
	a := createCompany(t, db, "Acme")
	_, err := store.AddFollowing(ctx, "u1", a, DefaultFollowOptions())
	require.NoError(t, err)

	s.Close()

	ids, err := store.GetFollowingCompanies(ctx, "u1")
	assert.Nil(t, ids)
	assert.True(t, apperr.IsTransient(err))

	// Info still resolves from the durable rows.
	info, err := store.GetFollowingInfo(ctx, "u1", a)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPriority, info.Priority)
}

func TestSyncFromDurableReplacesDrift(t *testing.T) {
	store, db, s := newTestStore(t)
	ctx := context.Background()
	a := createCompany(t, db, "Acme")
	b := createCompany(t, db, "Beta")

	_, err := store.AddFollowing(ctx, "u1", a, DefaultFollowOptions())
	require.NoError(t, err)
	_, err = store.GetFollowingCompanies(ctx, "u1")
	require.NoError(t, err)

	// Drift: mirror claims b, database says a only.
	_, err = s.SAdd("following:u1", b)
	require.NoError(t, err)
	_, err = s.SAdd("following_all:u1", b)
	require.NoError(t, err)
	require.NoError(t, s.Set("following_info:u1:"+b, `{"company_id":"`+b+`","priority":5}`))

	snapshot, err := store.SyncFromDurable(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, snapshot, 1)

	ids, err := store.GetFollowingCompanies(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{a}, ids)
	assert.False(t, s.Exists("following_info:u1:"+b))

	// Idempotent.
	_, err = store.SyncFromDurable(ctx, "u1")
	require.NoError(t, err)
	ids, err = store.GetFollowingCompanies(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{a}, ids)
}

func TestListFollowing(t *testing.T) {
	store, db, _ := newTestStore(t)
	ctx := context.Background()
	a := createCompany(t, db, "Acme")
	b := createCompany(t, db, "Beta")

	_, err := store.AddFollowing(ctx, "u1", a, FollowOptions{Priority: 2, AutoSummarize: true})
	require.NoError(t, err)
	_, err = store.AddFollowing(ctx, "u1", b, FollowOptions{Priority: 5, AutoSummarize: true})
	require.NoError(t, err)

	list, err := store.ListFollowing(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Beta", list[0].Name)
	assert.Equal(t, 5, list[0].Priority)
	assert.Equal(t, "Acme", list[1].Name)
}
