package geocode

import (
	"context"
	"strings"
	"time"

	"geoman-h3/internal/logger"
	"geoman-h3/internal/metrics"
)

// 文档注释：地理编码服务（错误边界）
// 背景：任何一步网络或解析失败都降级为零结果，只记录日志与指标，不向界面传播
// 约束：空查询直接返回空结果，不发起请求
type Service struct {
	p Provider
}

func NewService(p Provider) *Service { return &Service{p: p} }

func (s *Service) Name() string { return s.p.Name() }

func (s *Service) Forward(ctx context.Context, query string) []Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}
	}
	name := s.p.Name()
	t0 := time.Now()
	metrics.GeocodeRequestsTotal.WithLabelValues(name).Inc()
	res, err := s.p.Forward(ctx, query)
	dur := time.Since(t0).Milliseconds()
	metrics.GeocodeDurationMs.WithLabelValues(name).Observe(float64(dur))
	if err != nil {
		metrics.GeocodeFailTotal.WithLabelValues(name).Inc()
		logger.L().Warn("geocode_failure", "provider", name, "query", query, "duration_ms", dur, "err", err)
		return []Result{}
	}
	if res == nil {
		res = []Result{}
	}
	logger.L().Debug("geocode_ok", "provider", name, "query", query, "results", len(res), "duration_ms", dur)
	return res
}
