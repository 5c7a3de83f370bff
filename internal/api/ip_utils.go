package api

import (
	"net"
	"net/http"
	"strings"
)

// 文档注释：获取访问者 IP（用于 GeoIP 估算初始视野）
// 背景：多层代理环境下，优先常见反向代理头，最后回退远端地址
// 约束：头部可被伪造；结果只影响地图初始位置，不参与任何鉴权
func visitorIP(r *http.Request) string {
	h := r.Header
	if x := h.Get("x-forwarded-for"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	for _, k := range []string{"cf-connecting-ip", "x-real-ip", "x-client-ip", "x-edge-client-ip", "x-edgeone-ip"} {
		if x := h.Get(k); x != "" {
			return strings.TrimSpace(x)
		}
	}
	if x := h.Get("forwarded"); x != "" {
		if y, ok := forwardedFor(x); ok {
			return y
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// forwardedFor：RFC 7239 Forwarded 头中第一个 for= 的值
func forwardedFor(v string) (string, bool) {
	i := strings.Index(strings.ToLower(v), "for=")
	if i < 0 {
		return "", false
	}
	y := v[i+4:]
	if p := strings.IndexAny(y, ";,"); p >= 0 {
		y = y[:p]
	}
	y = strings.Trim(y, "\" ")
	// IPv6 形如 "[2001:db8::1]:4711"
	if strings.HasPrefix(y, "[") {
		if p := strings.IndexByte(y, ']'); p > 0 {
			y = y[1:p]
		}
	}
	return y, y != ""
}
