// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package autorefill

import (
	"image"
	"image/draw"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

var fontOnce struct {
	sync.Once
	face font.Face
	err  error
}

func statusFace() (font.Face, error) {
	fontOnce.Do(func() {
		f, err := truetype.Parse(goregular.TTF)
		if err != nil {
			fontOnce.err = err
			return
		}
		fontOnce.face = truetype.NewFace(f, &truetype.Options{Size: 13})
	})
	return fontOnce.face, fontOnce.err
}

// drawStatus renders the state name and the cartridge ROM, when one is
// present, to an SSD1306-class monochrome display. White on black; the text
// goes through a 1-bit buffer so the dithering is deterministic.
func drawStatus(d display.Drawer, s State, rom string) error {
	face, err := statusFace()
	if err != nil {
		return err
	}
	bounds := d.Bounds()
	dc := gg.NewContext(bounds.Dx(), bounds.Dy())
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	dc.SetRGB(1, 1, 1)
	dc.SetFontFace(face)
	_, th := dc.MeasureString(s.String())
	dc.DrawString(s.String(), 2, 2+th)
	if rom != "" {
		dc.DrawString(rom, 2, 2*(2+th))
	}
	img := image1bit.NewVerticalLSB(bounds)
	draw.Draw(img, bounds, dc.Image(), image.Point{}, draw.Src)
	return d.Draw(bounds, img, image.Point{})
}
