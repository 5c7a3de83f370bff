// 包 logger：统一初始化与获取日志器；通过环境变量控制日志级别、输出格式与源码位置
package logger

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// 默认日志器：进程级复用；会话与地理编码协程并发读取
var defaultLogger atomic.Pointer[slog.Logger]

// Setup：按环境变量初始化默认日志器，输出到标准错误
// LOG_LEVEL 取 debug/info/warn/error（可带偏移，如 info+2），无法解析时为 info
// LOG_FORMAT=json 时输出 JSON，否则为 key=value 文本；LOG_SOURCE=true 时附带源码位置
func Setup() *slog.Logger {
	return setup(os.Stderr, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), os.Getenv("LOG_SOURCE"))
}

func setup(w io.Writer, level, format, source string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	opts.AddSource, _ = strconv.ParseBool(source)
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	l := slog.New(h)
	defaultLogger.Store(l)
	return l
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// L：获取默认日志器，未初始化时回退到 Setup
func L() *slog.Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	return Setup()
}

// Session：携带会话 ID 的子日志器，用于事件循环内的日志
func Session(id string) *slog.Logger {
	return L().With("session", id)
}
