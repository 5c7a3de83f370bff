package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"geoman-h3/internal/config"
	"geoman-h3/internal/geometry"
	"geoman-h3/internal/logger"
	"geoman-h3/internal/tessellate"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/uber/h3-go/v4"
)

// 文档注释：离线覆盖工具
// 背景：读取 GeoJSON（几何、Feature 或 FeatureCollection），输出与侧栏一致的单元格列表文本
// 约束：FeatureCollection 中的非面要素跳过并记录日志；-outline 时改为输出单元格外轮廓 GeoJSON
func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	in := flag.String("in", "-", "GeoJSON input file, - for stdin")
	res := flag.Int("res", cfg.DefaultResolution, "H3 resolution (0-15)")
	format := flag.String("format", cfg.DefaultFormat, "cell format: string or number")
	dedupe := flag.Bool("dedupe", cfg.DedupeCells, "drop duplicate cells across polygon parts")
	outline := flag.Bool("outline", false, "print the cell outline as GeoJSON instead of the cell list")
	flag.Parse()

	l := logger.Setup()
	f, err := geometry.ParseFormat(*format)
	if err != nil {
		l.Error("format_invalid", "format", *format, "err", err)
		os.Exit(2)
	}
	data, err := readInput(*in)
	if err != nil {
		l.Error("input_read_error", "in", *in, "err", err)
		os.Exit(1)
	}
	geoms, err := decodeAreas(data)
	if err != nil {
		l.Error("input_decode_error", "in", *in, "err", err)
		os.Exit(1)
	}

	t := tessellate.Tessellator{Dedupe: *dedupe}
	var cells []h3.Cell
	for i, g := range geoms {
		c, err := t.Cover(g, *res)
		if err != nil {
			l.Error("cover_error", "index", i, "err", err)
			os.Exit(1)
		}
		cells = append(cells, c...)
	}
	l.Debug("cover_ok", "features", len(geoms), "cells", len(cells), "resolution", *res)

	if *outline {
		mp, err := tessellate.Outline(cells)
		if err != nil {
			l.Error("outline_error", "err", err)
			os.Exit(1)
		}
		b, err := json.MarshalIndent(geojson.NewFeature(mp), "", "  ")
		if err != nil {
			l.Error("encode_error", "err", err)
			os.Exit(1)
		}
		fmt.Println(string(b))
		return
	}
	text, err := geometry.SerializeCells(tessellate.Tokens(cells), f)
	if err != nil {
		l.Error("encode_error", "err", err)
		os.Exit(1)
	}
	fmt.Println(text)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// decodeAreas：FeatureCollection 展开为各要素的面几何，其余输入按单个几何解析
func decodeAreas(data []byte) ([]orb.Geometry, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	if probe.Type != "FeatureCollection" {
		g, err := geometry.Decode(data)
		if err != nil {
			return nil, err
		}
		return []orb.Geometry{g}, nil
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}
	out := make([]orb.Geometry, 0, len(fc.Features))
	for i, feat := range fc.Features {
		g, err := geometry.Normalize(feat.Geometry)
		if err != nil {
			logger.L().Warn("feature_skipped", "index", i, "id", feat.ID, "err", err)
			continue
		}
		out = append(out, g)
	}
	return out, nil
}
