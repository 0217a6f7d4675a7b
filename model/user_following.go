package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Priority is a user assigned weight on a followed company, 5 is the highest.
const (
	MinPriority     = 1
	MaxPriority     = 5
	DefaultPriority = 3
)

/*

UserFollowing is a user's subscription to a company

UserID: user id, opaque string from auth layer
CompanyId: followed company
CreatedAt: time when the user followed the company
UpdatedAt: time when the row is last updated

Priority: [MinPriority, MaxPriority]
NotificationEnabled: whether the user wants notification on new mentions
AutoSummarize: whether content mentioning the company gets summarized eagerly

*/

type UserFollowing struct {
	Id                  string `gorm:"primaryKey"`
	UserId              string `gorm:"uniqueIndex:idx_following_user_company;not null"`
	CompanyId           string `gorm:"uniqueIndex:idx_following_user_company;not null"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Priority            int
	NotificationEnabled bool
	AutoSummarize       bool
}

func (f *UserFollowing) BeforeCreate(db *gorm.DB) error {
	if f.Id == "" {
		f.Id = uuid.New().String()
	}
	return nil
}

func IsValidPriority(p int) bool {
	return p >= MinPriority && p <= MaxPriority
}
