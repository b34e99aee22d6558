package services

import (
	"fmt"
	"log"

	"darktales/internal/db"
	"darktales/internal/models"
)

// OpResult 单个维护操作的结果
type OpResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MaintenanceResult 批量维护的聚合结果。部分失败不掩盖已成功的操作。
type MaintenanceResult struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Details map[string]OpResult `json:"details"`
}

// 维护操作只跑业务表，不碰系统表
var maintainedTables = []string{"stories", "profiles", "categories", "story_categories", "comments", "likes"}

// RunVacuum 回收死元组占用的空间
func RunVacuum() OpResult {
	if err := db.DB.Exec("VACUUM").Error; err != nil {
		log.Printf("VACUUM failed: %v", err)
		return OpResult{Success: false, Message: fmt.Sprintf("VACUUM failed: %v", err)}
	}
	return OpResult{Success: true, Message: "VACUUM operation completed successfully"}
}

// RunAnalyze 刷新查询计划统计
func RunAnalyze() OpResult {
	if err := db.DB.Exec("ANALYZE").Error; err != nil {
		log.Printf("ANALYZE failed: %v", err)
		return OpResult{Success: false, Message: fmt.Sprintf("ANALYZE failed: %v", err)}
	}
	return OpResult{Success: true, Message: "ANALYZE operation completed successfully"}
}

// RunReindex 逐表重建索引，单表失败不阻断其余表
func RunReindex() OpResult {
	var failed []string
	for _, table := range maintainedTables {
		if err := db.DB.Exec("REINDEX TABLE " + table).Error; err != nil {
			log.Printf("REINDEX %s failed: %v", table, err)
			failed = append(failed, table)
		}
	}
	if len(failed) > 0 {
		return OpResult{Success: false, Message: fmt.Sprintf("REINDEX failed for tables: %v", failed)}
	}
	return OpResult{Success: true, Message: "REINDEX operation completed successfully"}
}

// RunAllMaintenance 顺序执行全部维护操作并汇总结果
func RunAllMaintenance() MaintenanceResult {
	details := map[string]OpResult{
		"vacuum":  RunVacuum(),
		"analyze": RunAnalyze(),
		"reindex": RunReindex(),
	}

	allOK := true
	for _, r := range details {
		if !r.Success {
			allOK = false
		}
	}

	message := "Database optimizations completed"
	if !allOK {
		message = "Some optimizations could not be applied"
	}

	return MaintenanceResult{Success: allOK, Message: message, Details: details}
}

// TableStat 每张业务表的行数
type TableStat struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// DatabaseStatistics 返回各业务表的行数概览
func DatabaseStatistics() []TableStat {
	counts := []struct {
		name  string
		model interface{}
	}{
		{"stories", &models.Story{}},
		{"profiles", &models.Profile{}},
		{"categories", &models.Category{}},
		{"story_categories", &models.StoryCategory{}},
		{"comments", &models.Comment{}},
		{"likes", &models.Like{}},
	}

	stats := make([]TableStat, 0, len(counts))
	for _, c := range counts {
		var n int64
		if err := db.DB.Model(c.model).Count(&n).Error; err != nil {
			log.Printf("failed to count %s: %v", c.name, err)
			n = -1
		}
		stats = append(stats, TableStat{Table: c.name, Rows: n})
	}
	return stats
}
