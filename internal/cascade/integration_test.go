package cascade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/detect"
	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

// These tests run the cascade against the real gozxing backend on
// synthetic fixtures.

const fixturePayload = "https://example.com/qrscan/fixture?id=12345"

func TestRunDecodesCleanImage(t *testing.T) {
	img, _ := testutil.RenderQRAt(t, fixturePayload, 240, 400, 400, 80, 80)

	out, err := New(detect.NewZXing()).Run(img)
	require.NoError(t, err)
	require.True(t, out.Detected)
	assert.Equal(t, fixturePayload, out.Payload)
	// A clean render decodes at the baseline attempt.
	assert.Equal(t, 1, out.Attempts)
	assert.Empty(t, out.Variant)
	assert.NotEmpty(t, out.Corners)
}

func TestRunRecoversInvertedPolarity(t *testing.T) {
	img, _ := testutil.RenderQRAt(t, fixturePayload, 240, 400, 400, 80, 80)
	inverted := testutil.Invert(img)

	out, err := New(detect.NewZXing()).Run(inverted)
	require.NoError(t, err)
	require.True(t, out.Detected)
	assert.Equal(t, fixturePayload, out.Payload)
	// Polarity-preserving variants cannot recover an inverted code; the
	// inverted Otsu step is the first that can.
	assert.Equal(t, "otsu_inverted", out.Variant)
	assert.Greater(t, out.Attempts, 1)
}

func TestRunRecoversLowContrast(t *testing.T) {
	img, _ := testutil.RenderQRAt(t, fixturePayload, 240, 400, 400, 80, 80)
	faint := testutil.CrushContrast(img, 105, 150)

	out, err := New(detect.NewZXing()).Run(faint)
	require.NoError(t, err)
	assert.True(t, out.Detected)
	assert.Equal(t, fixturePayload, out.Payload)
}

func TestRunBlankImage(t *testing.T) {
	blank := grayTestImage(200, 200)
	out, err := New(detect.NewZXing()).Run(blank)
	require.NoError(t, err)
	assert.False(t, out.Detected)
}

func TestRunThenExtractRegion(t *testing.T) {
	img, codeBox := testutil.RenderQRAt(t, fixturePayload, 240, 400, 400, 80, 80)

	out, err := New(detect.NewZXing()).Run(img)
	require.NoError(t, err)
	require.True(t, out.Detected)

	// A code this size carries an alignment pattern, so the detector
	// reports four result points.
	require.GreaterOrEqual(t, len(out.Corners), 4)
	region, ok := ExtractRegion(img, out.Corners, DefaultPadding)
	require.True(t, ok)
	// The region lies inside the image and overlaps the rendered code.
	assert.True(t, region.Box.In(img.Bounds()))
	assert.True(t, region.Box.Overlaps(codeBox))

	data, err := EncodePNG(region.Image)
	require.NoError(t, err)
	assert.NotEmpty(t, DataURI(data))
}

func TestRunDeterministicAcrossCalls(t *testing.T) {
	img, _ := testutil.RenderQRAt(t, fixturePayload, 240, 400, 400, 80, 80)
	degraded := testutil.AddNoise(testutil.CrushContrast(img, 90, 170), 42, 12)

	ctrl := New(detect.NewZXing())
	first, err := ctrl.Run(degraded)
	require.NoError(t, err)
	second, err := ctrl.Run(degraded)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestHasCodeOnCleanImage(t *testing.T) {
	img, _ := testutil.RenderQRAt(t, fixturePayload, 240, 400, 400, 80, 80)
	found, corners, err := New(detect.NewZXing()).HasCode(img)
	require.NoError(t, err)
	assert.True(t, found)
	assert.NotEmpty(t, corners)
}
