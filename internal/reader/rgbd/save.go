package rgbd

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// FrameFileName names the i-th frame file inside a modality folder.
func FrameFileName(i int) string {
	return fmt.Sprintf("%06d.png", i)
}

// SaveColor writes each color frame as an RGBA PNG.
func SaveColor(dir string, data any) error {
	frames, ok := data.([]*image.RGBA)
	if !ok {
		return fmt.Errorf("color payload has type %T", data)
	}
	return saveFrames(dir, len(frames), func(i int) image.Image { return frames[i] })
}

// SaveDepth writes each depth frame as a 16-bit grayscale PNG.
func SaveDepth(dir string, data any) error {
	frames, ok := data.([]*image.Gray16)
	if !ok {
		return fmt.Errorf("depth payload has type %T", data)
	}
	return saveFrames(dir, len(frames), func(i int) image.Image { return frames[i] })
}

func saveFrames(dir string, n int, frame func(int) image.Image) error {
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, FrameFileName(i))
		if err := writePNG(&encoder, path, frame(i)); err != nil {
			return err
		}
	}
	return nil
}

func writePNG(encoder *png.Encoder, path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := encoder.Encode(file, img); err != nil {
		_ = file.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
