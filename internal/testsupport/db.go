// Package testsupport builds isolated sqlite databases and fixtures for package tests.
package testsupport

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/tutordesk-api/internal/database"
	"github.com/noah-isme/tutordesk-api/internal/models"
)

// NewDB opens a private in-memory database with the full schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

// CreateUser inserts an active user holding roles.
func CreateUser(t *testing.T, db *gorm.DB, username string, roles ...models.Role) models.User {
	t.Helper()

	user := models.User{Username: username, RealName: username, IsActive: true}
	user.SetRoles(roles)
	require.NoError(t, db.Create(&user).Error)
	return user
}

// CreateStudent inserts a joined student and lets the store assign its business id.
func CreateStudent(t *testing.T, db *gorm.DB, externalID, name string) models.Student {
	t.Helper()

	student := models.Student{
		BusinessID:     "tmp-" + uuid.NewString(),
		ExternalUserID: externalID,
		Name:           name,
		Status:         models.StudentStatusJoined,
		LearningStatus: models.LearningStatusNew,
	}
	student.SetGroups([]string{models.GroupBasic})
	student.SetProgress(nil)
	require.NoError(t, db.Create(&student).Error)

	student.BusinessID = models.FormatBusinessID(student.ID)
	require.NoError(t, db.Model(&student).Update("business_id", student.BusinessID).Error)
	return student
}
