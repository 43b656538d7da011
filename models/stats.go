package models

import "time"

// Stats is the aggregate view over every report, recomputed on each read
type Stats struct {
	TotalReports   int64            `json:"totalReports"`
	StatusCounts   map[string]int64 `json:"statusCounts"`
	CategoryCounts map[string]int64 `json:"categoryCounts"`
	RecentReports  int64            `json:"recentReports"`
	GeneratedAt    time.Time        `json:"generatedAt"`
}
