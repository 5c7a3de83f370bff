// 包 locate：按访客 IP 估算位置，用于会话建立时的初始视野
package locate

import (
	"errors"
	"net"
	"os"

	"geoman-h3/internal/logger"

	"github.com/oschwald/geoip2-golang"
	"github.com/paulmach/orb"
)

// 初始视野缩放级别
const FlyZoom = 8

// 文档注释：GeoLite2-City 定位器
// 约束：数据库路径为空或文件不存在时返回禁用的定位器（Lookup 恒为未命中），不视为错误
type Locator struct {
	db *geoip2.Reader
}

func Open(path string) (*Locator, error) {
	if path == "" {
		return &Locator{}, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.L().Warn("geoip_db_missing", "path", path)
		return &Locator{}, nil
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	logger.L().Info("geoip_db_open", "path", path, "type", db.Metadata().DatabaseType)
	return &Locator{db: db}, nil
}

func (l *Locator) Enabled() bool { return l != nil && l.db != nil }

// Lookup：返回 [lon, lat]；私网地址、未收录地址或坐标缺失时 ok=false
func (l *Locator) Lookup(ip string) (orb.Point, bool) {
	if !l.Enabled() {
		return orb.Point{}, false
	}
	addr := net.ParseIP(ip)
	if addr == nil || addr.IsLoopback() || addr.IsPrivate() {
		return orb.Point{}, false
	}
	rec, err := l.db.City(addr)
	if err != nil {
		logger.L().Debug("geoip_lookup_error", "ip", ip, "err", err)
		return orb.Point{}, false
	}
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
		return orb.Point{}, false
	}
	return orb.Point{rec.Location.Longitude, rec.Location.Latitude}, true
}

func (l *Locator) Close() error {
	if !l.Enabled() {
		return nil
	}
	return l.db.Close()
}
