package following

import (
	"context"
	"time"

	"github.com/Luismorlan/insighthub/apperr"
	"github.com/Luismorlan/insighthub/model"
	. "github.com/Luismorlan/insighthub/utils/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Bounds a cold mirror rebuild, which runs detached from the reader that
// started it.
const rebuildTimeout = 10 * time.Second

type Result string

const (
	ResultSuccess          Result = "success"
	ResultAlreadyFollowing Result = "already_following"
	ResultNotFollowing     Result = "not_following"
)

// Info is the per (user, company) following detail served from the mirror.
type Info struct {
	CompanyId           string    `json:"company_id"`
	Priority            int       `json:"priority"`
	NotificationEnabled bool      `json:"notification_enabled"`
	AutoSummarize       bool      `json:"auto_summarize"`
	FollowedAt          time.Time `json:"followed_at"`
}

func infoFromRow(row model.UserFollowing) Info {
	return Info{
		CompanyId:           row.CompanyId,
		Priority:            row.Priority,
		NotificationEnabled: row.NotificationEnabled,
		AutoSummarize:       row.AutoSummarize,
		FollowedAt:          row.CreatedAt,
	}
}

type FollowOptions struct {
	Priority            int
	NotificationEnabled bool
	AutoSummarize       bool
}

func DefaultFollowOptions() FollowOptions {
	return FollowOptions{
		Priority:            model.DefaultPriority,
		NotificationEnabled: true,
		AutoSummarize:       true,
	}
}

// FollowedCompany is a following joined with its company, used by listings.
type FollowedCompany struct {
	Info
	Name     string `json:"name"`
	Industry string `json:"industry"`
}

// Store owns the durable following rows and keeps the mirror in step. Writes
// always land in the database first, the mirror is best effort and is
// invalidated whenever it could not be updated.
type Store struct {
	db       *gorm.DB
	mirror   Mirror
	rebuilds singleflight.Group
}

func NewStore(db *gorm.DB, mirror Mirror) *Store {
	return &Store{db: db, mirror: mirror}
}

func (s *Store) AddFollowing(ctx context.Context, userId string, companyId string, opts FollowOptions) (Result, error) {
	if !model.IsValidPriority(opts.Priority) {
		return "", apperr.InvalidArgumentf("priority %d out of range [%d,%d]", opts.Priority, model.MinPriority, model.MaxPriority)
	}

	var company model.Company
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", companyId, true).First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperr.NotFoundf("company %s", companyId)
	}
	if err != nil {
		return "", apperr.Transient(err, "load company")
	}

	row := model.UserFollowing{
		UserId:              userId,
		CompanyId:           companyId,
		Priority:            opts.Priority,
		NotificationEnabled: opts.NotificationEnabled,
		AutoSummarize:       opts.AutoSummarize,
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "company_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return "", apperr.Transient(res.Error, "insert following")
	}
	if res.RowsAffected == 0 {
		return ResultAlreadyFollowing, nil
	}

	if err := s.mirror.Put(ctx, userId, infoFromRow(row)); err != nil {
		s.invalidate(ctx, userId, err)
	}
	return ResultSuccess, nil
}

func (s *Store) RemoveFollowing(ctx context.Context, userId string, companyId string) (Result, error) {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND company_id = ?", userId, companyId).
		Delete(&model.UserFollowing{})
	if res.Error != nil {
		return "", apperr.Transient(res.Error, "delete following")
	}
	if res.RowsAffected == 0 {
		return ResultNotFollowing, nil
	}

	if err := s.mirror.Remove(ctx, userId, companyId); err != nil {
		s.invalidate(ctx, userId, err)
	}
	return ResultSuccess, nil
}

// GetFollowingCompanies returns the ids of followed companies with auto
// summarize on. A cold mirror is rebuilt from the database, an unreachable
// mirror is reported as a transient failure and never read around.
// Once the database snapshot is read it is served even if writing it back
// to the mirror fails.
func (s *Store) GetFollowingCompanies(ctx context.Context, userId string) ([]string, error) {
	ids, warm, err := s.mirror.Companies(ctx, userId)
	if err != nil {
		return nil, apperr.Transient(err, "following mirror")
	}
	if warm {
		return ids, nil
	}

	snapshot, err := s.rebuild(ctx, userId)
	if err != nil {
		return nil, err
	}
	ids = []string{}
	for _, info := range snapshot {
		if info.AutoSummarize {
			ids = append(ids, info.CompanyId)
		}
	}
	return ids, nil
}

// GetFollowingInfo reads one following, preferring the mirror. Returns
// apperr.ErrNotFound when the user does not follow the company.
func (s *Store) GetFollowingInfo(ctx context.Context, userId string, companyId string) (*Info, error) {
	info, ok, err := s.mirror.Info(ctx, userId, companyId)
	if err != nil {
		Log.WithFields(logrus.Fields{"user_id": userId, "company_id": companyId}).
			Warnf("following mirror read failed, falling back to database: %v", err)
	}
	if ok {
		return info, nil
	}

	var row model.UserFollowing
	err = s.db.WithContext(ctx).Where("user_id = ? AND company_id = ?", userId, companyId).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundf("following %s/%s", userId, companyId)
	}
	if err != nil {
		return nil, apperr.Transient(err, "load following")
	}
	durable := infoFromRow(row)
	return &durable, nil
}

// SyncFromDurable overwrites the user's mirror with the database rows and
// returns the snapshot it wrote.
func (s *Store) SyncFromDurable(ctx context.Context, userId string) ([]Info, error) {
	snapshot, err := s.durableSnapshot(ctx, userId)
	if err != nil {
		return nil, err
	}
	if err := s.mirror.Replace(ctx, userId, snapshot); err != nil {
		return nil, apperr.Transient(err, "replace following mirror")
	}
	return snapshot, nil
}

// rebuild reads the durable snapshot for a cold mirror and writes it back.
// Concurrent readers of the same user share one rebuild.
func (s *Store) rebuild(ctx context.Context, userId string) ([]Info, error) {
	ch := s.rebuilds.DoChan(userId, func() (interface{}, error) {
		rebuildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rebuildTimeout)
		defer cancel()

		snapshot, err := s.durableSnapshot(rebuildCtx, userId)
		if err != nil {
			return nil, err
		}
		if err := s.mirror.Replace(rebuildCtx, userId, snapshot); err != nil {
			Log.WithFields(logrus.Fields{"user_id": userId}).
				Warnf("fail to rebuild following mirror, serving database snapshot: %v", err)
		}
		return snapshot, nil
	})

	select {
	case <-ctx.Done():
		return nil, apperr.Transient(ctx.Err(), "waiting for following mirror rebuild")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Info), nil
	}
}

// ListFollowing returns every following of the user from the database, highest
// priority first.
func (s *Store) ListFollowing(ctx context.Context, userId string) ([]FollowedCompany, error) {
	var rows []struct {
		model.UserFollowing
		Name     string
		Industry string
	}
	err := s.db.WithContext(ctx).
		Table("user_followings").
		Select("user_followings.*, companies.name AS name, companies.industry AS industry").
		Joins("JOIN companies ON companies.id = user_followings.company_id").
		Where("user_followings.user_id = ?", userId).
		Order("user_followings.priority DESC, companies.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Transient(err, "list following")
	}

	res := make([]FollowedCompany, 0, len(rows))
	for _, r := range rows {
		res = append(res, FollowedCompany{Info: infoFromRow(r.UserFollowing), Name: r.Name, Industry: r.Industry})
	}
	return res, nil
}

func (s *Store) durableSnapshot(ctx context.Context, userId string) ([]Info, error) {
	var rows []model.UserFollowing
	if err := s.db.WithContext(ctx).Where("user_id = ?", userId).Order("created_at").Find(&rows).Error; err != nil {
		return nil, apperr.Transient(err, "load following rows")
	}
	snapshot := make([]Info, 0, len(rows))
	for _, row := range rows {
		snapshot = append(snapshot, infoFromRow(row))
	}
	return snapshot, nil
}

func (s *Store) invalidate(ctx context.Context, userId string, cause error) {
	logger := Log.WithFields(logrus.Fields{"user_id": userId})
	logger.Warnf("following mirror write failed: %v", cause)
	if err := s.mirror.Invalidate(ctx, userId); err != nil {
		logger.Errorf("fail to invalidate following mirror: %v", err)
	}
}
