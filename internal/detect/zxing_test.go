package detect

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

func TestZXingLocateAndDecode(t *testing.T) {
	const payload = "https://example.com/zxing-roundtrip"
	img := testutil.RenderQR(t, payload, 256)

	att, err := NewZXing().LocateAndDecode(img)
	require.NoError(t, err)
	assert.True(t, att.Found)
	assert.Equal(t, payload, att.Payload)
	assert.GreaterOrEqual(t, len(att.Corners), 3)
}

func TestZXingLocateAndDecodeBlank(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, 200, 200))
	for i := range blank.Pix {
		blank.Pix[i] = 255
	}
	att, err := NewZXing().LocateAndDecode(blank)
	require.NoError(t, err)
	assert.False(t, att.Found)
	assert.Empty(t, att.Payload)
	assert.Empty(t, att.Corners)
}

func TestZXingLocate(t *testing.T) {
	img := testutil.RenderQR(t, "locate-only", 256)
	corners, err := NewZXing().Locate(img)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(corners), 3)
	for _, p := range corners {
		assert.GreaterOrEqual(t, p.X, 0.0)
		assert.GreaterOrEqual(t, p.Y, 0.0)
		assert.LessOrEqual(t, p.X, 256.0)
		assert.LessOrEqual(t, p.Y, 256.0)
	}
}

func TestZXingLocateBlank(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, 120, 120))
	corners, err := NewZXing().Locate(blank)
	require.NoError(t, err)
	assert.Empty(t, corners)
}
