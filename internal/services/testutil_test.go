package services

import (
	"fmt"
	"sync/atomic"
	"testing"

	"darktales/internal/db"
	"darktales/internal/models"
	"darktales/internal/utils"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int64

// setupTestDB 建一个独立的内存库并接管全局 db.DB。
// 每个测试用独立的命名库，互不串数据。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:svctest%d?mode=memory&cache=shared", n)

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// 连接全关时内存库会消失，钉住一条
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(gdb))

	// 浏览量自增等 fire-and-forget goroutine 可能在测试收尾后才跑，
	// 不回收连接、不把 db.DB 置回 nil，避免它们撞上空指针。
	db.DB = gdb

	return gdb
}

func createTestUser(t *testing.T, username, role string) *models.Profile {
	t.Helper()
	user := &models.Profile{
		Username: username,
		Email:    username + "@example.com",
		Password: "x",
		Role:     role,
	}
	require.NoError(t, db.DB.Create(user).Error)
	return user
}

func createTestStory(t *testing.T, authorID uint, title string, published bool) *models.Story {
	t.Helper()
	story := &models.Story{
		Sid:       utils.RandStringBytesMaskImpr(8),
		AuthorID:  authorID,
		Title:     title,
		Content:   "<p>" + title + " body</p>",
		Excerpt:   title + " excerpt",
		Published: published,
	}
	require.NoError(t, db.DB.Create(story).Error)
	return story
}

func createTestCategory(t *testing.T, name string) *models.Category {
	t.Helper()
	category := &models.Category{Name: name, Slug: utils.Slugify(name)}
	require.NoError(t, db.DB.Create(category).Error)
	return category
}

func linkCategory(t *testing.T, storyID, categoryID uint) {
	t.Helper()
	require.NoError(t, db.DB.Create(&models.StoryCategory{StoryID: storyID, CategoryID: categoryID}).Error)
}
