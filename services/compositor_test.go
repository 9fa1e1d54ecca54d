package services_test

import (
	"bytes"
	"image"
	"image/color"
	_ "image/png"
	"testing"

	"fitmixapi/services"
	"fitmixapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineGarmentImagesProducesDecodablePNG(t *testing.T) {
	topBytes := test.TinyPNG(color.RGBA{R: 200, G: 30, B: 30, A: 255})
	bottomBytes := test.TinyPNG(color.RGBA{R: 30, G: 30, B: 200, A: 255})

	result, err := services.CombineGarmentImages(topBytes, bottomBytes)
	require.NoError(t, err)
	require.NotEmpty(t, result)

	img, format, err := image.Decode(bytes.NewReader(result))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 768, img.Bounds().Dy())
	assert.Greater(t, img.Bounds().Dx(), 0)
}

func TestCombineGarmentImagesRejectsGarbage(t *testing.T) {
	_, err := services.CombineGarmentImages([]byte("not an image"), test.TinyPNG(color.White))
	assert.Error(t, err)
}

func TestComposeOnReferenceKeepsCanvasSize(t *testing.T) {
	reference := test.TinyPNG(color.RGBA{R: 240, G: 240, B: 240, A: 255})
	top := test.TinyPNG(color.RGBA{R: 200, G: 30, B: 30, A: 255})
	bottom := test.TinyPNG(color.RGBA{R: 30, G: 30, B: 200, A: 255})

	result, err := services.ComposeOnReference(reference, top, bottom)
	require.NoError(t, err)

	refImg, _, err := image.Decode(bytes.NewReader(reference))
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(result))
	require.NoError(t, err)
	assert.Equal(t, refImg.Bounds(), img.Bounds())
}

func TestWhitenBackgroundFeatheredValidation(t *testing.T) {
	input := test.TinyPNG(color.White)

	_, err := services.WhitenBackgroundFeathered(input, 240, 190, 0.4)
	assert.Error(t, err, "lower threshold above upper must be rejected")

	_, err = services.WhitenBackgroundFeathered(input, 190, 240, 1.5)
	assert.Error(t, err, "protection ratio outside [0,1] must be rejected")

	out, err := services.WhitenBackgroundFeathered(input, 190, 240, 0.4)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
