package artwork

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func stripes(w, h int, fills ...color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	band := w / len(fills)
	for x := 0; x < w; x++ {
		c := fills[min(x/band, len(fills)-1)]
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestExtractPalette_NilImage(t *testing.T) {
	require.Equal(t, DefaultPalette(), ExtractPalette(nil))
}

func TestExtractPalette_Shape(t *testing.T) {
	img := stripes(300, 200,
		color.RGBA{220, 40, 60, 255},
		color.RGBA{40, 180, 90, 255},
		color.RGBA{50, 80, 220, 255},
		color.RGBA{230, 200, 40, 255},
		color.RGBA{160, 60, 200, 255},
	)

	p := ExtractPalette(img)
	require.NotNil(t, p)
	require.Len(t, p.Gradient, gradientSteps)
	require.Equal(t, dimColor, p.Dim)
	for _, hex := range []string{p.Primary, p.Secondary, p.Accent} {
		require.Regexp(t, `^#[0-9A-F]{6}$`, hex)
	}
}

func TestSmoothestPair(t *testing.T) {
	start, end := smoothestPair("#8BA4E8", "#E8A4C8", "#B8A8E8")
	require.NotEqual(t, start, end)

	start, end = smoothestPair("#123456")
	require.Equal(t, "#123456", start)
	require.Equal(t, "#123456", end)
}

func TestBoost(t *testing.T) {
	require.Equal(t, "#321900", boost(20, 10, 0, 20.0/255), "dark colors are lifted, capped at 2.5x")
	require.Equal(t, "#808080", boost(128, 128, 128, 0.5))
	require.Equal(t, "#000000", boost(0, 0, 0, 0))
}

func TestFetch_HTTP(t *testing.T) {
	body := encodePNG(t, stripes(8, 8, color.RGBA{255, 0, 0, 255}))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	img, err := Fetch(context.Background(), srv.Client(), srv.URL+"/cover.png")
	require.NoError(t, err)
	require.Equal(t, 8, img.Bounds().Dx())

	_, err = Fetch(context.Background(), srv.Client(), srv.URL+"/missing")
	require.ErrorContains(t, err, "status 404")
}

func TestFetch_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, stripes(4, 6, color.RGBA{0, 0, 255, 255})), 0o644))

	img, err := Fetch(context.Background(), nil, "file://"+filepath.ToSlash(path))
	require.NoError(t, err)
	require.Equal(t, 6, img.Bounds().Dy())

	_, err = Fetch(context.Background(), nil, "")
	require.ErrorIs(t, err, ErrNoArtwork)

	_, err = Fetch(context.Background(), nil, "file:///does/not/exist.png")
	require.Error(t, err)
}

func TestHalfBlocks(t *testing.T) {
	img := stripes(40, 40, color.RGBA{255, 0, 0, 255}, color.RGBA{0, 255, 0, 255})

	lines := HalfBlocks(img, 10, 5)
	require.Len(t, lines, 5)
	for _, line := range lines {
		require.Contains(t, line, "▀")
	}

	require.Nil(t, HalfBlocks(nil, 10, 5))
	require.Nil(t, HalfBlocks(img, 2, 5))
}
