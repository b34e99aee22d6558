package services

import (
	"log"
	"math"
	"sync"
	"time"

	"darktales/internal/db"
	"darktales/internal/models"
)

// 互动权重沿用线上版本：浏览 1、点赞 5、评论 10，点踩减分
type EngagementConfig struct {
	WeightView    float64
	WeightLike    float64
	WeightComment float64
	WeightDislike float64
	Gravity       float64 // 时间重力
	ScaleFactor   float64
}

var DefaultEngagement = EngagementConfig{
	WeightView:    1.0,
	WeightLike:    5.0,
	WeightComment: 10.0,
	WeightDislike: 2.0,
	Gravity:       1.5,
	ScaleFactor:   100.0,
}

// CalculateEngagementScore 加权互动值做对数平滑后按时间衰减
func CalculateEngagementScore(createdAt time.Time, views, likes, dislikes, comments int) float64 {
	hours := time.Since(createdAt).Hours()

	weightedSum := float64(views)*DefaultEngagement.WeightView +
		float64(likes)*DefaultEngagement.WeightLike +
		float64(comments)*DefaultEngagement.WeightComment -
		float64(dislikes)*DefaultEngagement.WeightDislike

	if weightedSum < 0 {
		weightedSum = 0 // 防止负数无法取对数
	}

	logScore := math.Log10(weightedSum + 1)
	numerator := logScore * DefaultEngagement.ScaleFactor
	decay := math.Pow(hours+2, DefaultEngagement.Gravity)

	return numerator / decay
}

// TrendingService 异步刷新故事 TrendingScore 的后台服务
type TrendingService struct {
	queue   chan uint // 待更新的故事 ID 队列
	pending map[uint]bool
	mu      sync.Mutex
}

var (
	trendingService *TrendingService
	once            sync.Once
)

// GetTrendingService 获取单例服务并启动后台 worker
func GetTrendingService() *TrendingService {
	once.Do(func() {
		trendingService = &TrendingService{
			queue:   make(chan uint, 1000), // 缓冲队列，防止阻塞
			pending: make(map[uint]bool),
		}
		go trendingService.worker()
	})
	return trendingService
}

// ScheduleUpdate 将故事加入更新队列（异步）
// 去重机制避免短时间内重复计算同一故事
func (s *TrendingService) ScheduleUpdate(storyID uint) {
	s.mu.Lock()
	if s.pending[storyID] {
		s.mu.Unlock()
		return
	}
	s.pending[storyID] = true
	s.mu.Unlock()

	select {
	case s.queue <- storyID:
	default:
		// 队列满了，移除 pending 标记
		s.mu.Lock()
		delete(s.pending, storyID)
		s.mu.Unlock()
		log.Printf("trending queue full, skipping story %d", storyID)
	}
}

func (s *TrendingService) worker() {
	batch := make([]uint, 0, 50)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case storyID := <-s.queue:
			batch = append(batch, storyID)
			if len(batch) >= 50 {
				s.processBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *TrendingService) processBatch(storyIDs []uint) {
	for _, storyID := range storyIDs {
		s.updateStoryScore(storyID)

		s.mu.Lock()
		delete(s.pending, storyID)
		s.mu.Unlock()
	}
}

func (s *TrendingService) updateStoryScore(storyID uint) {
	var story models.Story
	if err := db.DB.First(&story, storyID).Error; err != nil {
		log.Printf("trending update: story %d not found", storyID)
		return
	}

	var likes, dislikes, comments int64
	db.DB.Model(&models.Like{}).Where("story_id = ? AND value = 1", storyID).Count(&likes)
	db.DB.Model(&models.Like{}).Where("story_id = ? AND value = -1", storyID).Count(&dislikes)
	db.DB.Model(&models.Comment{}).Where("story_id = ?", storyID).Count(&comments)

	score := CalculateEngagementScore(story.CreatedAt, story.ViewCount, int(likes), int(dislikes), int(comments))

	if err := db.DB.Model(&story).UpdateColumn("trending_score", score).Error; err != nil {
		log.Printf("failed to update trending score for story %d: %v", storyID, err)
	}
}

// UpdateStoryScoreSync 同步刷新单篇分数（需要立即生效的场景）
func UpdateStoryScoreSync(storyID uint) {
	GetTrendingService().updateStoryScore(storyID)
}

// FetchTrendingStories 取最近 days 天内互动分最高的已发布故事
func FetchTrendingStories(days, limit int) ([]models.Story, error) {
	if days < 1 {
		days = 7
	}
	if limit < 1 {
		limit = 5
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	var stories []models.Story
	err := db.DB.Preload("Author").
		Where("published = ? AND created_at >= ?", true, cutoff).
		Order("trending_score DESC, view_count DESC, created_at DESC").
		Limit(limit).
		Find(&stories).Error
	if err != nil {
		return nil, err
	}

	fillEngagementCounts(stories)
	return stories, nil
}
