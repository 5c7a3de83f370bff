package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Format：单元格 ID 的展示格式
type Format string

const (
	FormatString Format = "string"
	FormatNumber Format = "number"
)

var (
	ErrInvalidFormat = errors.New("geometry: format must be \"string\" or \"number\"")
	ErrInvalidCell   = errors.New("geometry: cell token is not hexadecimal")
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatString, FormatNumber:
		return Format(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
}

// Round6：保留 6 位小数，0.5 远离零方向舍入；负零归一为零
// 约束：按十进制字面值取舍（1.0000005 -> 1.000001），不按二进制精确值
func Round6(v float64) float64 {
	r := math.Round(v*1e6) / 1e6
	if r == 0 {
		return 0
	}
	return r
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(Round6(v), 'f', -1, 64)
}

// Serialize：两空格缩进的结构化文本，坐标对单行输出为 [ lon, lat ]
// 约束：仅用于展示与调试，不参与计算
func Serialize(g orb.Geometry) (string, error) {
	n, err := Normalize(g)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("{\n")
	sb.WriteString(`  "type": "` + n.GeoJSONType() + "\",\n")
	sb.WriteString(`  "coordinates": `)
	switch v := n.(type) {
	case orb.Polygon:
		writePolygon(&sb, v, 1)
	case orb.MultiPolygon:
		writeList(&sb, len(v), 1, func(i int) { writePolygon(&sb, v[i], 2) })
	}
	sb.WriteString("\n}")
	return sb.String(), nil
}

func writePolygon(sb *strings.Builder, p orb.Polygon, depth int) {
	writeList(sb, len(p), depth, func(i int) {
		ring := p[i]
		writeList(sb, len(ring), depth+1, func(j int) {
			sb.WriteString("[ " + formatCoord(ring[j][0]) + ", " + formatCoord(ring[j][1]) + " ]")
		})
	})
}

// writeList：写出一个 JSON 数组；depth 为数组自身所在的缩进层级
func writeList(sb *strings.Builder, n, depth int, item func(int)) {
	if n == 0 {
		sb.WriteString("[]")
		return
	}
	inner := strings.Repeat("  ", depth+1)
	sb.WriteString("[\n")
	for i := 0; i < n; i++ {
		sb.WriteString(inner)
		item(i)
		if i < n-1 {
			sb.WriteByte(',')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(strings.Repeat("  ", depth) + "]")
}

// SerializeCells：按格式输出单元格列表，保持输入顺序且不去重
// number 格式把十六进制 token 解析为无符号 64 位整数，输出不带引号
func SerializeCells(cells []string, f Format) (string, error) {
	var v any
	switch f {
	case FormatString:
		out := make([]string, len(cells))
		copy(out, cells)
		v = out
	case FormatNumber:
		out := make([]uint64, len(cells))
		for i, c := range cells {
			n, err := strconv.ParseUint(c, 16, 64)
			if err != nil {
				return "", fmt.Errorf("%w: %q", ErrInvalidCell, c)
			}
			out[i] = n
		}
		v = out
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, string(f))
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
