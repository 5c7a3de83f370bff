// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"geoman-h3/internal/api"
	"geoman-h3/internal/config"
	"geoman-h3/internal/geocode"
	"geoman-h3/internal/geometry"
	"geoman-h3/internal/locate"
	"geoman-h3/internal/logger"
	"geoman-h3/internal/metrics"
	"geoman-h3/internal/router"
	"geoman-h3/internal/store"
	"geoman-h3/internal/tessellate"
	"geoman-h3/internal/utils"
)

func main() {
	config.LoadDotEnv()
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok")
	cfg := config.Load()
	l.Debug("config_api_base", "base", cfg.APIBase)
	l.Debug("config_ui_dir", "dir", cfg.UIDir)

	format, err := geometry.ParseFormat(cfg.DefaultFormat)
	if err != nil {
		l.Error("config_format_error", "format", cfg.DefaultFormat, "err", err)
		os.Exit(1)
	}
	if _, err := store.NewContext(cfg.DefaultResolution, format); err != nil {
		l.Error("config_resolution_error", "resolution", cfg.DefaultResolution, "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 背景：Redis 可用时地理编码结果跨进程共享；否则回退到进程内 LRU
	var cache geocode.Cache
	if rc := utils.OpenRedis(ctx, cfg); rc != nil {
		defer rc.Close()
		cache = geocode.NewRedisCache(rc, cfg.GeocodeCacheTTL)
	} else {
		l.Info("redis_disabled")
		cache = geocode.NewLRU(cfg.GeocodeCacheSize, cfg.GeocodeCacheTTL)
	}

	// 文档注释：地理编码提供方注册
	// 背景：GEOCODER_PROVIDER 选择其一；未知名称时关闭地理编码，其余功能不受影响
	reg := geocode.NewRegistry()
	reg.Register(geocode.NewNominatim(cfg.NominatimURL, cfg.GeocoderUserAgent, cfg.GeocoderTimeout))
	reg.Register(geocode.NewFlatZone(cfg.FlatZoneURL, cfg.GeocoderTimeout))
	var gc *geocode.Service
	if p, ok := reg.Get(cfg.GeocoderProvider); ok {
		gc = geocode.NewService(geocode.NewCached(p, cache))
		l.Info("geocoder_ready", "provider", p.Name())
	} else {
		l.Warn("geocoder_unknown", "provider", cfg.GeocoderProvider, "available", reg.Names())
	}

	loc, err := locate.Open(cfg.GeoIPPath)
	if err != nil {
		l.Error("geoip_open_error", "path", cfg.GeoIPPath, "err", err)
		loc = &locate.Locator{}
	}
	defer loc.Close()

	tess := tessellate.Tessellator{Dedupe: cfg.DedupeCells}
	l.Debug("config_h3", "resolution", cfg.DefaultResolution, "format", format, "dedupe", cfg.DedupeCells)

	mux := http.NewServeMux()
	// 文档注释：构建路由
	apiMux := api.BuildRoutes(api.Deps{
		Resolution:   cfg.DefaultResolution,
		Format:       format,
		Tessellator:  tess,
		Camera:       router.CameraOptions{MaxZoom: cfg.CameraMaxZoom, Padding: cfg.CameraPadding},
		Geocoder:     gc,
		Locator:      loc,
		RateLimitQPS: cfg.RateLimitQPS,
		BaseCtx:      ctx,
	})
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())

	fs := http.FileServer(http.Dir(cfg.UIDir))
	mux.Handle("/", fs)

	// NOTE: 向前端暴露 API 基础路径与分辨率范围，避免硬编码
	mux.HandleFunc("/config.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("window.__API_BASE__='" + cfg.APIBase + "'\n"))
		_, _ = w.Write([]byte("window.__H3_RESOLUTION__=" + strconv.Itoa(cfg.DefaultResolution) + "\n"))
		_, _ = w.Write([]byte("window.__H3_MIN_RESOLUTION__=" + strconv.Itoa(store.MinResolution) + "\n"))
		_, _ = w.Write([]byte("window.__H3_MAX_RESOLUTION__=" + strconv.Itoa(store.MaxResolution) + "\n"))
		_, _ = w.Write([]byte("window.__H3_FORMAT__='" + string(format) + "'"))
	})

	handler := logger.AccessMiddleware(l)(mux)
	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	// 背景：ctx 取消时 websocket 会话随之结束；Shutdown 只等待普通请求
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			l.Error("shutdown_error", "err", err)
		}
	}()
	if cfg.TLSEnable {
		if err := utils.EnsureSelfSignedCert(cfg.TLSCertPath, cfg.TLSKeyPath, "geoman-h3.local"); err != nil {
			l.Error("tls_cert_error", "cert", cfg.TLSCertPath, "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLSCertPath)
		err = s.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
	} else {
		l.Info("listening", "addr", cfg.Addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("listen_error", "addr", cfg.Addr, "err", err)
		os.Exit(1)
	}
	l.Info("shutdown_ok")
}
