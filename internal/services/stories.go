package services

import (
	"errors"
	"log"
	"math"

	"darktales/internal/db"
	"darktales/internal/models"

	"gorm.io/gorm"
)

// ErrStoryNotFound 故事不存在或未发布
var ErrStoryNotFound = errors.New("story not found")

// 瞬时查询失败最多额外重试 2 次
const maxQueryRetries = 2

// StoryQueryOptions 列表查询参数。Featured 为 nil 时不过滤。
type StoryQueryOptions struct {
	Page       int
	PageSize   int
	Featured   *bool
	CategoryID uint
	Query      string
}

// StoryPage 一页故事及分页信息
type StoryPage struct {
	Stories    []models.Story
	Total      int64
	TotalPages int
}

// storyFilter 把同一组过滤条件同时用于计数查询和数据查询。
// 两条查询必须共用这一个函数，否则报告的页数和实际可取的行会发散。
func storyFilter(opts StoryQueryOptions, storyIDs []uint) func(tx *gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where("published = ?", true)
		if opts.Featured != nil {
			tx = tx.Where("featured = ?", *opts.Featured)
		}
		if opts.CategoryID != 0 {
			tx = tx.Where("id IN ?", storyIDs)
		}
		if opts.Query != "" {
			pattern := "%" + opts.Query + "%"
			tx = tx.Where(
				"LOWER(title) LIKE LOWER(?) OR LOWER(content) LIKE LOWER(?) OR LOWER(excerpt) LIKE LOWER(?)",
				pattern, pattern, pattern,
			)
		}
		return tx
	}
}

// FetchStories 分页查询已发布故事。
// 分类过滤先通过关联表解析出故事 ID，命中为空时直接短路返回空页。
func FetchStories(opts StoryQueryOptions) (*StoryPage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 10
	}

	var storyIDs []uint
	if opts.CategoryID != 0 {
		err := db.DB.Model(&models.StoryCategory{}).
			Where("category_id = ?", opts.CategoryID).
			Pluck("story_id", &storyIDs).Error
		if err != nil {
			return nil, err
		}
		if len(storyIDs) == 0 {
			return &StoryPage{Stories: []models.Story{}, Total: 0, TotalPages: 1}, nil
		}
	}

	filter := storyFilter(opts, storyIDs)

	var total int64
	if err := withRetry(func() error {
		return filter(db.DB.Model(&models.Story{})).Count(&total).Error
	}); err != nil {
		return nil, err
	}

	totalPages := int(math.Ceil(float64(total) / float64(opts.PageSize)))
	if totalPages == 0 {
		totalPages = 1
	}

	offset := (opts.Page - 1) * opts.PageSize
	var stories []models.Story
	if err := withRetry(func() error {
		return filter(db.DB.Preload("Author")).
			Order("created_at DESC").
			Limit(opts.PageSize).
			Offset(offset).
			Find(&stories).Error
	}); err != nil {
		return nil, err
	}

	fillEngagementCounts(stories)

	return &StoryPage{Stories: stories, Total: total, TotalPages: totalPages}, nil
}

// FetchStory 按公开 ID 取单个已发布故事，连同作者、分类、评论和点赞数。
// 浏览量自增是 fire-and-forget：失败只记日志，绝不中断读路径。
func FetchStory(sid string) (*models.Story, []models.Comment, error) {
	var story models.Story
	err := db.DB.Preload("Author").
		Where("sid = ? AND published = ?", sid, true).
		First(&story).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrStoryNotFound
		}
		return nil, nil, err
	}

	go func(id uint) {
		if err := db.DB.Model(&models.Story{}).Where("id = ?", id).
			UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
			log.Printf("failed to increment view count for story %d: %v", id, err)
		}
		GetTrendingService().ScheduleUpdate(id)
	}(story.ID)
	story.ViewCount++

	story.Categories = fetchStoryCategories(story.ID)

	var comments []models.Comment
	db.DB.Preload("User").
		Where("story_id = ?", story.ID).
		Order("created_at DESC").
		Find(&comments)
	story.CommentsCount = len(comments)

	var likes int64
	db.DB.Model(&models.Like{}).Where("story_id = ? AND value = 1", story.ID).Count(&likes)
	story.LikesCount = int(likes)

	return &story, comments, nil
}

// FetchRelatedStories 按共享分类查相关故事，永不包含种子故事本身。
func FetchRelatedStories(storyID uint, limit int) ([]models.Story, error) {
	if limit < 1 {
		limit = 3
	}

	var categoryIDs []uint
	if err := db.DB.Model(&models.StoryCategory{}).
		Where("story_id = ?", storyID).
		Pluck("category_id", &categoryIDs).Error; err != nil {
		return nil, err
	}
	if len(categoryIDs) == 0 {
		return []models.Story{}, nil
	}

	// 多取一些，去重和过滤未发布后再截断
	var candidateIDs []uint
	if err := db.DB.Model(&models.StoryCategory{}).
		Where("category_id IN ? AND story_id <> ?", categoryIDs, storyID).
		Pluck("story_id", &candidateIDs).Error; err != nil {
		return nil, err
	}
	if len(candidateIDs) == 0 {
		return []models.Story{}, nil
	}

	seen := make(map[uint]bool)
	uniqueIDs := make([]uint, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		if !seen[id] {
			seen[id] = true
			uniqueIDs = append(uniqueIDs, id)
		}
	}

	var stories []models.Story
	if err := db.DB.Preload("Author").
		Where("id IN ? AND published = ?", uniqueIDs, true).
		Order("created_at DESC").
		Limit(limit).
		Find(&stories).Error; err != nil {
		return nil, err
	}

	fillEngagementCounts(stories)
	return stories, nil
}

// StoryStatistics 单篇故事的互动统计
type StoryStatistics struct {
	Views            int     `json:"views"`
	Likes            int     `json:"likes"`
	Dislikes         int     `json:"dislikes"`
	Comments         int     `json:"comments"`
	TotalEngagements int     `json:"total_engagements"`
	EngagementRate   float64 `json:"engagement_rate"` // per 100 views
	LikeRatio        float64 `json:"like_ratio"`
}

// FetchStoryStatistics 汇总浏览、点赞、点踩和评论数
func FetchStoryStatistics(storyID uint) (*StoryStatistics, error) {
	var story models.Story
	if err := db.DB.Select("id, view_count").First(&story, storyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStoryNotFound
		}
		return nil, err
	}

	var likes, dislikes, comments int64
	db.DB.Model(&models.Like{}).Where("story_id = ? AND value = 1", storyID).Count(&likes)
	db.DB.Model(&models.Like{}).Where("story_id = ? AND value = -1", storyID).Count(&dislikes)
	db.DB.Model(&models.Comment{}).Where("story_id = ?", storyID).Count(&comments)

	stats := &StoryStatistics{
		Views:            story.ViewCount,
		Likes:            int(likes),
		Dislikes:         int(dislikes),
		Comments:         int(comments),
		TotalEngagements: int(likes + dislikes + comments),
	}
	if story.ViewCount > 0 {
		stats.EngagementRate = round2(float64(stats.TotalEngagements) / float64(story.ViewCount) * 100)
	}
	if stats.TotalEngagements > 0 {
		stats.LikeRatio = round2(float64(stats.Likes) / float64(stats.TotalEngagements) * 100)
	}
	return stats, nil
}

// fillEngagementCounts 批量填充故事的点赞和评论数量
func fillEngagementCounts(stories []models.Story) {
	if len(stories) == 0 {
		return
	}

	storyIDs := make([]uint, len(stories))
	for i, s := range stories {
		storyIDs[i] = s.ID
	}

	type CountResult struct {
		StoryID uint
		Count   int
	}

	var likeResults []CountResult
	db.DB.Model(&models.Like{}).
		Select("story_id, COUNT(*) as count").
		Where("story_id IN ? AND value = 1", storyIDs).
		Group("story_id").
		Scan(&likeResults)

	likeMap := make(map[uint]int)
	for _, r := range likeResults {
		likeMap[r.StoryID] = r.Count
	}

	var commentResults []CountResult
	db.DB.Model(&models.Comment{}).
		Select("story_id, COUNT(*) as count").
		Where("story_id IN ?", storyIDs).
		Group("story_id").
		Scan(&commentResults)

	commentMap := make(map[uint]int)
	for _, r := range commentResults {
		commentMap[r.StoryID] = r.Count
	}

	for i := range stories {
		stories[i].LikesCount = likeMap[stories[i].ID]
		stories[i].CommentsCount = commentMap[stories[i].ID]
	}
}

func fetchStoryCategories(storyID uint) []models.Category {
	var categoryIDs []uint
	db.DB.Model(&models.StoryCategory{}).
		Where("story_id = ?", storyID).
		Pluck("category_id", &categoryIDs)
	if len(categoryIDs) == 0 {
		return []models.Category{}
	}

	var categories []models.Category
	db.DB.Where("id IN ?", categoryIDs).Order("name ASC").Find(&categories)
	return categories
}

func withRetry(query func() error) error {
	var err error
	for attempt := 0; attempt <= maxQueryRetries; attempt++ {
		if err = query(); err == nil {
			return nil
		}
		log.Printf("story query failed (attempt %d/%d): %v", attempt+1, maxQueryRetries+1, err)
	}
	return err
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
