// database_utils should be the canonical place to put shared DB utils.
// It should not include:
// 1. Any util that doesn't manipulate DB
// 2. Any util that contains business logic
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Luismorlan/insighthub/model"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormTransaction is the callback function used during db.Transaction in Gorm.
type GormTransaction func(tx *gorm.DB) error

// GetDBConnection get a connection to the database specified by env
func GetDBConnection() (*gorm.DB, error) {
	return GetCustomizedConnection(os.Getenv("DB_NAME"))
}

// GetCustomizedConnection connect to any db on the configured postgres host
func GetCustomizedConnection(dbName string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable", os.Getenv("DB_HOST"), os.Getenv("DB_USER"), os.Getenv("DB_PASS"), dbName, os.Getenv("DB_PORT"))
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connect to database %s", dbName)
	}
	return db, nil
}

// Create a temp DB for testing, note that this function should only be called
// in a testing environment with test state manager testing.T
// The database is a sqlite file under t.TempDir(), it is removed together with
// the directory after the test case, user will not need to drop it explicitly.
func CreateTempDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "testonlydb.sqlite")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_journal_mode=WAL"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("fail to create temp DB %s: %v", path, err)
	}

	// sqlite allows a single writer, serialize everything through one
	// connection so concurrent tests never see SQLITE_BUSY.
	conn, err := db.DB()
	if err != nil {
		t.Fatalf("fail to get sql DB: %v", err)
	}
	conn.SetMaxOpenConns(1)

	if err := DatabaseSetupAndMigration(db); err != nil {
		t.Fatalf("fail to migrate temp DB: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
	})
	return db
}

func DatabaseSetupAndMigration(db *gorm.DB) error {
	return errors.Wrap(db.AutoMigrate(model.AllModels()...), "auto migrate")
}
