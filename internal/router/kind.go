package router

import "fmt"

// Kind：入站事件类型
type Kind int

const (
	KindCreate Kind = iota + 1
	KindRemove
	KindCut
	KindDragStart
	KindEditStart
	KindRotateStart
	KindDragEnd
	KindEditEnd
	KindRotateEnd
	KindGeocodeResult
	KindGeocodeQuery
	KindGeocodeResults
	KindLayerToggle
	KindResolution
	KindFormat
	KindFocus
	KindTempAdd
	KindTempDrop
	KindInspect
	KindReset
)

// 线上名称：gm 为绘图工具事件，gc 为地理编码，sb 为侧栏控制
var kindNames = map[Kind]string{
	KindCreate:         "gm:create",
	KindRemove:         "gm:remove",
	KindCut:            "gm:cut",
	KindDragStart:      "gm:dragstart",
	KindEditStart:      "gm:editstart",
	KindRotateStart:    "gm:rotatestart",
	KindDragEnd:        "gm:dragend",
	KindEditEnd:        "gm:editend",
	KindRotateEnd:      "gm:rotateend",
	KindGeocodeResult:  "gc:result",
	KindGeocodeQuery:   "gc:query",
	KindGeocodeResults: "gc:results",
	KindLayerToggle:    "sb:h3layer",
	KindResolution:     "sb:h3resolution",
	KindFormat:         "sb:h3format",
	KindFocus:          "sb:idclick",
	KindTempAdd:        "sb:tempadd",
	KindTempDrop:       "sb:tempdrop",
	KindInspect:        "sb:inspect",
	KindReset:          "sb:reset",
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind：线上名称转事件类型，未知名称返回 ErrMalformedEvent
func ParseKind(s string) (Kind, error) {
	if k, ok := kindByName[s]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: unknown event type %q", ErrMalformedEvent, s)
}

// Kinds：全部事件类型，按声明顺序
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames))
	for k := KindCreate; k <= KindReset; k++ {
		out = append(out, k)
	}
	return out
}
