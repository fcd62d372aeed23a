package memory

import (
	"fraud_scorer/internal/repository"
)

var (
	_ repository.DetectionRepository = (*DetectionRepository)(nil)
	_ repository.ReportRepository    = (*ReportRepository)(nil)
)
