package utils

import (
	"testing"

	"github.com/Luismorlan/insighthub/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateTempDB(t *testing.T) {
	db := CreateTempDB(t)

	for _, m := range model.AllModels() {
		assert.True(t, db.Migrator().HasTable(m))
	}
}

func TestContentHashIsUnique(t *testing.T) {
	db := CreateTempDB(t)

	require.NoError(t, db.Create(&model.Content{Title: "a", Hash: "h1"}).Error)
	assert.Error(t, db.Create(&model.Content{Title: "b", Hash: "h1"}).Error)

	var count int64
	db.Model(&model.Content{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestGormTransactionRollback(t *testing.T) {
	db := CreateTempDB(t)

	var fn GormTransaction = func(tx *gorm.DB) error {
		if err := tx.Create(&model.Company{Name: "Acme", IsActive: true}).Error; err != nil {
			return err
		}
		return tx.Create(&model.Company{Name: "Acme", IsActive: true}).Error
	}
	assert.Error(t, db.Transaction(fn))

	var count int64
	db.Model(&model.Company{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestContentDefaults(t *testing.T) {
	db := CreateTempDB(t)

	c := model.Content{Title: "t", Hash: "h2", Labels: []string{"english"}}
	require.NoError(t, db.Create(&c).Error)
	assert.NotEmpty(t, c.Id)

	var got model.Content
	require.NoError(t, db.First(&got, "id = ?", c.Id).Error)
	assert.Equal(t, model.StatePendingSummary, got.State)
	assert.Equal(t, []string{"english"}, got.Labels)
	assert.False(t, got.HasSummary())
}
