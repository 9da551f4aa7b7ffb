package service

import (
	"context"
	"fmt"
	"time"

	"devbot/internal/sysinfo"
)

// Collector produces a host snapshot.
type Collector interface {
	Collect(ctx context.Context) *sysinfo.Info
}

// ReportService renders the host telemetry report sent by /system and the scheduled job.
type ReportService struct {
	collector Collector
	chunkSize int
}

func NewReportService(collector Collector) *ReportService {
	return &ReportService{collector: collector, chunkSize: sysinfo.DefaultChunkSize}
}

// SystemReport collects a fresh snapshot and returns it as message-sized HTML pieces.
func (s *ReportService) SystemReport(ctx context.Context) []string {
	info := s.collector.Collect(ctx)
	return sysinfo.Chunk(sysinfo.Format(info), s.chunkSize)
}

// ScheduledReport prefixes the report with a header naming the report time.
func (s *ReportService) ScheduledReport(ctx context.Context, now time.Time) []string {
	info := s.collector.Collect(ctx)
	text := fmt.Sprintf("📊 <b>Плановый отчёт</b>\n🗓 %s\n\n%s", now.Format("02.01.2006 15:04"), sysinfo.Format(info))
	return sysinfo.Chunk(text, s.chunkSize)
}
