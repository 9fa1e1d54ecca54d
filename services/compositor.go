package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"math"
)

// The degraded compositor works at the same canvas height the model passes
// target.
const compositeHeight = 768

// WhitenBackgroundFeathered applies a soft threshold to whiten the background.
// It uses a transition range to smoothly blend pixels towards white, avoiding hard edges.
// It also protects a central area of the image.
// - imageBytes: The input image as a byte slice.
// - lowerThreshold: The brightness value (0-255) at which the whitening effect begins.
// - upperThreshold: The brightness value (0-255) at which pixels become pure white.
// - centralProtectionRatio: The central area (0.0-1.0) to protect from any changes.
func WhitenBackgroundFeathered(imageBytes []byte, lowerThreshold, upperThreshold uint8, centralProtectionRatio float64) ([]byte, error) {
	if lowerThreshold >= upperThreshold {
		return nil, fmt.Errorf("lowerThreshold must be less than upperThreshold")
	}
	if centralProtectionRatio < 0.0 || centralProtectionRatio > 1.0 {
		return nil, fmt.Errorf("centralProtectionRatio must be between 0.0 and 1.0")
	}

	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Max.X, bounds.Max.Y
	newImg := image.NewRGBA(bounds)

	// Calculate the protected rectangle
	protectedWidth := int(float64(width) * centralProtectionRatio)
	protectedHeight := int(float64(height) * centralProtectionRatio)
	x0 := (width - protectedWidth) / 2
	y0 := (height - protectedHeight) / 2
	x1 := x0 + protectedWidth
	y1 := y0 + protectedHeight

	// Pre-calculate the transition range to avoid division in the loop
	transitionRange := float64(upperThreshold - lowerThreshold)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			originalColor := img.At(x, y)

			// If inside the protected area, just copy the pixel
			if x >= x0 && x < x1 && y >= y0 && y < y1 {
				newImg.Set(x, y, originalColor)
				continue
			}

			r, g, b, a := originalColor.RGBA()
			r8 := uint8(r >> 8)
			g8 := uint8(g >> 8)
			b8 := uint8(b >> 8)
			a8 := uint8(a >> 8)

			// Use luminance for a more accurate measure of brightness
			luminance := 0.299*float64(r8) + 0.587*float64(g8) + 0.114*float64(b8)

			if luminance <= float64(lowerThreshold) {
				newImg.Set(x, y, originalColor)
			} else if luminance >= float64(upperThreshold) {
				newImg.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: a8})
			} else {
				// Transition zone: linearly interpolate each channel towards white
				blendFactor := (luminance - float64(lowerThreshold)) / transitionRange

				newR := uint8(math.Round(float64(r8)*(1.0-blendFactor) + 255.0*blendFactor))
				newG := uint8(math.Round(float64(g8)*(1.0-blendFactor) + 255.0*blendFactor))
				newB := uint8(math.Round(float64(b8)*(1.0-blendFactor) + 255.0*blendFactor))

				newImg.Set(x, y, color.RGBA{R: newR, G: newG, B: newB, A: a8})
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, newImg); err != nil {
		return nil, fmt.Errorf("failed to encode image to png: %w", err)
	}
	return buf.Bytes(), nil
}

// scaleToHeight is a plain nearest-neighbor resize keeping aspect ratio.
func scaleToHeight(img image.Image, targetHeight int) *image.RGBA {
	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()
	if srcHeight == 0 || srcWidth == 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, targetHeight))
	}
	targetWidth := int(float64(srcWidth) * float64(targetHeight) / float64(srcHeight))
	if targetWidth < 1 {
		targetWidth = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	for y := 0; y < targetHeight; y++ {
		srcY := bounds.Min.Y + y*srcHeight/targetHeight
		for x := 0; x < targetWidth; x++ {
			srcX := bounds.Min.X + x*srcWidth/targetWidth
			scaled.Set(x, y, img.At(srcX, srcY))
		}
	}
	return scaled
}

// CombineGarmentImages builds the degraded render: both garments side by
// side at a fixed height on a white canvas, backgrounds whitened so the
// cutouts blend. Pure and total apart from undecodable input.
func CombineGarmentImages(topBytes []byte, bottomBytes []byte) ([]byte, error) {
	whitenedTop, err := WhitenBackgroundFeathered(topBytes, 190, 240, 0.4)
	if err != nil {
		// whitening is cosmetic, fall through with the original bytes
		fmt.Printf("[Composite] top whitening failed: %v\n", err)
		whitenedTop = topBytes
	}
	whitenedBottom, err := WhitenBackgroundFeathered(bottomBytes, 190, 240, 0.4)
	if err != nil {
		fmt.Printf("[Composite] bottom whitening failed: %v\n", err)
		whitenedBottom = bottomBytes
	}

	topImg, _, err := image.Decode(bytes.NewReader(whitenedTop))
	if err != nil {
		return nil, fmt.Errorf("failed to decode top image: %w", err)
	}
	bottomImg, _, err := image.Decode(bytes.NewReader(whitenedBottom))
	if err != nil {
		return nil, fmt.Errorf("failed to decode bottom image: %w", err)
	}

	topScaled := scaleToHeight(topImg, compositeHeight)
	bottomScaled := scaleToHeight(bottomImg, compositeHeight)

	totalWidth := topScaled.Bounds().Dx() + bottomScaled.Bounds().Dx()
	canvas := image.NewRGBA(image.Rect(0, 0, totalWidth, compositeHeight))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	draw.Draw(canvas, topScaled.Bounds(), topScaled, image.Point{}, draw.Over)
	bottomRect := bottomScaled.Bounds().Add(image.Point{X: topScaled.Bounds().Dx()})
	draw.Draw(canvas, bottomRect, bottomScaled, image.Point{}, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode composite: %w", err)
	}
	return buf.Bytes(), nil
}

// ComposeOnReference overlays garment cutouts onto the reference image at
// fixed anchors: the top over the torso band, the bottom over the leg band.
func ComposeOnReference(referenceBytes []byte, topBytes []byte, bottomBytes []byte) ([]byte, error) {
	refImg, _, err := image.Decode(bytes.NewReader(referenceBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode reference image: %w", err)
	}

	bounds := refImg.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, refImg, bounds.Min, draw.Src)

	height := bounds.Dy()
	width := bounds.Dx()

	overlay := func(garmentBytes []byte, anchorY int, bandHeight int) error {
		whitened, err := WhitenBackgroundFeathered(garmentBytes, 190, 240, 0.4)
		if err != nil {
			whitened = garmentBytes
		}
		garmentImg, _, err := image.Decode(bytes.NewReader(whitened))
		if err != nil {
			return fmt.Errorf("failed to decode garment image: %w", err)
		}
		scaled := scaleToHeight(garmentImg, bandHeight)
		offsetX := (width - scaled.Bounds().Dx()) / 2
		rect := scaled.Bounds().Add(image.Point{X: bounds.Min.X + offsetX, Y: bounds.Min.Y + anchorY})
		draw.Draw(canvas, rect, scaled, image.Point{}, draw.Over)
		return nil
	}

	// torso band starts below the head, leg band below the waist
	if err := overlay(topBytes, height/5, height*2/5); err != nil {
		return nil, err
	}
	if err := overlay(bottomBytes, height*3/5, height*2/5); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode composite: %w", err)
	}
	return buf.Bytes(), nil
}
