package document

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// imageSize 读取图片头部得到像素尺寸；dpi 大于 0 时按 96dpi 换算。
func imageSize(path string, dpi int) (float64, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("打开图片 %s 失败: %w", path, err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("读取图片 %s 尺寸失败: %w", path, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return 0, 0, fmt.Errorf("图片 %s 尺寸为 0", path)
	}
	scale := 1.0
	if dpi > 0 {
		scale = DPI / float64(dpi)
	}
	return float64(cfg.Width) * scale, float64(cfg.Height) * scale, nil
}
