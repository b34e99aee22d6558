package db

import (
	"log"
	"os"

	"darktales/internal/models"
	"darktales/internal/utils"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		// 缺少配置属于致命错误，直接终止，不做本地猜测
		log.Fatal("DATABASE_URL is not set; refusing to start without a database")
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Database connection established")

	if err := Migrate(DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed")

	seedCategories(DB)
}

// Migrate 建表。测试用的临时库也走同一份迁移。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.Profile{},
		&models.Category{},
		&models.Story{},
		&models.StoryCategory{},
		&models.Comment{},
		&models.Like{},
	)
}

func seedCategories(gdb *gorm.DB) {
	var count int64
	gdb.Model(&models.Category{}).Count(&count)
	if count > 0 {
		log.Println("Categories already seeded, skipping")
		return
	}

	categories := []models.Category{
		{Name: "Ghost Stories", Description: "Hauntings, apparitions and things that linger"},
		{Name: "Psychological", Description: "Horror that lives inside the narrator's head"},
		{Name: "Creature Feature", Description: "Monsters, cryptids and what waits in the woods"},
		{Name: "Urban Legends", Description: "Stories everyone swears happened to a friend"},
	}

	for _, category := range categories {
		category.Slug = utils.Slugify(category.Name)
		if err := gdb.Create(&category).Error; err != nil {
			log.Printf("Failed to create category %s: %v", category.Name, err)
		}
	}
	log.Println("Initial categories created successfully")
}
