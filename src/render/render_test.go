package render

import (
	"KycInsight/src/datasource/file"
	"KycInsight/src/processor"
	"bytes"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var testStages = []string{"Document Scan", "Face Match", "KYC Check", "Account Opening"}

func sampleSummary() processor.Summary {
	nan := math.NaN()
	records := []file.Record{
		{Stage: "Document Scan", Failure: 0, Time: 12, Attempt: 1},
		{Stage: "Document Scan", Failure: 0.5, Time: 28, Attempt: 2, Error: "Blurry image"},
		{Stage: "Document Scan", Failure: 0, Time: 15, Attempt: 1},
		{Stage: "Face Match", Failure: 1, Time: 42, Attempt: 4, Error: "Customer already exists"},
		{Stage: "Face Match", Failure: 0.25, Time: 19, Attempt: 3, Error: "Blurry image"},
		{Stage: "KYC Check", Failure: 0, Time: nan, Attempt: 1},
		{Stage: "KYC Check", Failure: nan, Time: 8, Attempt: nan},
		{Stage: "", Failure: 0, Time: 90, Attempt: 1, Error: "A very long error message that certainly exceeds the fifty character limit"},
	}
	return processor.Summarize(records, processor.Options{
		TargetSeconds:      20,
		TopErrors:          10,
		DashboardTopErrors: 5,
		Stages:             testStages,
	})
}

func testRenderer() *Renderer {
	return New(DefaultTheme(), Options{DPI: 40, Stages: testStages, TopErrors: 10, DashboardTopErrors: 5})
}

func TestRenderAll(t *testing.T) {
	dir := t.TempDir()
	paths, err := testRenderer().RenderAll(dir, sampleSummary())
	require.NoError(t, err)
	require.Len(t, paths, len(FileNames))

	for i, p := range paths {
		assert.Equal(t, filepath.Join(dir, FileNames[i]), p)
		data, err := os.ReadFile(p)
		require.NoError(t, err)

		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err, p)
		assert.Greater(t, img.Bounds().Dx(), 0)
		assert.Greater(t, img.Bounds().Dy(), 0)

		dpi, ok := ReadDPI(data)
		require.True(t, ok, p)
		assert.Equal(t, 40.0, dpi)
	}
}

func TestRenderEmptySummary(t *testing.T) {
	s := processor.Summarize(nil, processor.Options{TargetSeconds: 20, TopErrors: 10, DashboardTopErrors: 5, Stages: testStages})
	paths, err := testRenderer().RenderAll(t.TempDir(), s)
	require.NoError(t, err)
	assert.Len(t, paths, len(FileNames))
}

func TestRenderSingleStage(t *testing.T) {
	records := []file.Record{
		{Stage: "Document Scan", Failure: 0, Time: 10, Attempt: 1},
		{Stage: "Document Scan", Failure: 0, Time: 10, Attempt: 1},
	}
	s := processor.Summarize(records, processor.Options{TargetSeconds: 20, TopErrors: 10, DashboardTopErrors: 5, Stages: testStages})
	_, err := testRenderer().RenderAll(t.TempDir(), s)
	require.NoError(t, err)
}

func TestRenderUnknownChart(t *testing.T) {
	_, err := testRenderer().Render(t.TempDir(), "9_unknown.png", sampleSummary())
	assert.Error(t, err)
}

func TestRenderSingleChart(t *testing.T) {
	dir := t.TempDir()
	path, err := testRenderer().Render(dir, FileJourneyFlow, sampleSummary())
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, filepath.Join(dir, FileJourneyFlow), path)
}

func TestRenderIntoMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	_, err := testRenderer().RenderAll(dir, sampleSummary())
	assert.Error(t, err)
}

func TestTightCrop(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 80))
	white := drawing.ColorWhite
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = white.R, white.G, white.B, white.A
	}
	for y := 20; y < 30; y++ {
		for x := 40; x < 60; x++ {
			img.Set(x, y, drawing.ColorBlack)
		}
	}
	out := TightCrop(img, white, 5)
	assert.Equal(t, 30, out.Bounds().Dx())
	assert.Equal(t, 20, out.Bounds().Dy())

	blank := image.NewRGBA(image.Rect(0, 0, 10, 10))
	assert.Same(t, blank, TightCrop(blank, drawing.ColorTransparent, 2))
}

func TestEncodePNGWritesDPI(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, img, 300))

	dpi, ok := ReadDPI(buf.Bytes())
	require.True(t, ok)
	assert.Equal(t, 300.0, dpi)

	decoded, err := png.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	_, ok = ReadDPI([]byte("not a png"))
	assert.False(t, ok)
}

func TestNiceTicks(t *testing.T) {
	ticks := niceTicks(0, 97, 6)
	require.NotEmpty(t, ticks)
	lo, hi := tickRange(ticks)
	assert.Equal(t, 0.0, lo)
	assert.GreaterOrEqual(t, hi, 97.0)
	assert.Equal(t, "0", ticks[0].Label)
	assert.Equal(t, "20", ticks[1].Label)

	small := niceTicks(0, 0.9, 5)
	assert.Equal(t, "0.2", small[1].Label)

	assert.NotEmpty(t, niceTicks(5, 5, 6))
	assert.Nil(t, niceTicks(math.NaN(), 1, 6))
}

func TestTruncateAndWrap(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 50))
	assert.Equal(t, "abcde...", truncate("abcdefgh", 5))
	assert.Equal(t, "验证失...", truncate("验证失败次数过多", 3))

	assert.Equal(t, "Document\nScan", wrap("Document Scan", 10))
	assert.Equal(t, "Account Opening", wrap("Account Opening", 20))
	assert.Equal(t, "", wrap("   ", 10))
}

func TestFlowPositions(t *testing.T) {
	assert.Equal(t, []float64{0.9}, flowPositions(1))
	ys := flowPositions(5)
	require.Len(t, ys, 5)
	assert.InDelta(t, 0.9, ys[0], 1e-9)
	assert.InDelta(t, 0.7, ys[1], 1e-9)
	assert.InDelta(t, 0.1, ys[4], 1e-9)
	assert.Empty(t, flowPositions(0))
}

func TestTheme(t *testing.T) {
	th := DefaultTheme()
	assert.Equal(t, th.Danger, th.AttemptColor(4))
	assert.Equal(t, th.Palette[1], th.AttemptColor(2))
	assert.Equal(t, th.Palette[0], th.AttemptColor(7))

	greens := th.Greens(3)
	require.Len(t, greens, 3)
	assert.Equal(t, th.GreensLow, greens[0])
	assert.Equal(t, th.GreensHigh, greens[2])
	assert.Equal(t, []drawing.Color{th.GreensLow}, th.Greens(1))
}

func TestBandSeriesValidate(t *testing.T) {
	ok := bandSeries{XValues: []float64{1, 2}, Lower: []float64{0, 0}, Upper: []float64{1, 1}}
	assert.NoError(t, ok.Validate())
	x, y1, y2 := ok.GetBoundedValues(1)
	assert.Equal(t, []float64{2, 1, 0}, []float64{x, y1, y2})

	bad := bandSeries{XValues: []float64{1, 2}, Lower: []float64{0}, Upper: []float64{1, 1}}
	assert.Error(t, bad.Validate())
}
