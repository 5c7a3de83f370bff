package store

import (
	"fmt"
	"strconv"

	"geoman-h3/internal/geometry"
)

// 界面允许的分辨率范围
const (
	MinResolution = 5
	MaxResolution = 10
)

// TempPrefix：临时要素 ID 前缀
const TempPrefix = "temp-"

// 文档注释：会话上下文
// 持有当前分辨率、单元格展示格式与临时要素计数器；新会话对应新上下文，不使用全局可变状态
// 约束：计数器只增不减，删除临时要素后 ID 不复用
type Context struct {
	resolution int
	format     geometry.Format
	tempSeq    uint64
}

func NewContext(resolution int, format geometry.Format) (*Context, error) {
	if err := checkResolution(resolution); err != nil {
		return nil, err
	}
	if _, err := geometry.ParseFormat(string(format)); err != nil {
		return nil, err
	}
	return &Context{resolution: resolution, format: format}, nil
}

func (c *Context) Resolution() int         { return c.resolution }
func (c *Context) Format() geometry.Format { return c.format }

func (c *Context) nextTempID() string {
	c.tempSeq++
	return TempPrefix + strconv.FormatUint(c.tempSeq, 10)
}

func checkResolution(r int) error {
	if r < MinResolution || r > MaxResolution {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidResolution, r, MinResolution, MaxResolution)
	}
	return nil
}
