package geocode

import (
	"sort"
	"sync"

	"geoman-h3/internal/logger"
)

// 文档注释：数据源注册表
// 背景：各数据源以统一的 Provider 接口注册，服务启动时按 GEOCODER_PROVIDER 选择当前使用的一个
// 约束：同名注册覆盖旧值；读写并发安全
type Registry struct {
	mu sync.RWMutex
	ps map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{ps: make(map[string]Provider)}
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ps[p.Name()] = p
	logger.L().Info("geocoder_registered", "name", p.Name())
}

func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.ps[name]
	return p, ok
}

// Names：已注册名称，字典序
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ps))
	for k := range r.ps {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
