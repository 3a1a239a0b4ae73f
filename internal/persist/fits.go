/*
DESCRIPTION
  fits.go writes a Frame to a single-HDU FITS file (spec §6 frame files),
  via astrogo/fitsio, tagging each file with the observer/target/comment
  and exposure metadata a night log needs.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package persist

import (
	"fmt"
	"os"

	"github.com/astrogo/fitsio"

	"github.com/ausocean/aoctl/internal/frame"
)

// FrameMeta is the night-log metadata stamped into a FITS header
// alongside the pixel data.
type FrameMeta struct {
	Observer string
	Target   string
	Comment  string
	Exposure float64
	Gain     float64
	Offset   float64
}

// WriteFITS writes f as a single-HDU FITS image file at path, with its
// bit depth as BITPIX and meta's fields as header cards.
func WriteFITS(path string, f *frame.Frame, meta FrameMeta) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("persist: creating %s: %w", path, err)
	}
	defer out.Close()

	fits, err := fitsio.Create(out)
	if err != nil {
		return fmt.Errorf("persist: creating FITS writer for %s: %w", path, err)
	}
	defer fits.Close()

	img := fitsio.NewImage(int(f.Depth), []int{f.W, f.H})
	defer img.Close()

	cards := []fitsio.Card{
		{Name: "OBSERVER", Value: meta.Observer, Comment: "observer name"},
		{Name: "OBJECT", Value: meta.Target, Comment: "target designation"},
		{Name: "COMMENT1", Value: meta.Comment, Comment: "free-text comment"},
		{Name: "EXPTIME", Value: meta.Exposure, Comment: "exposure time"},
		{Name: "GAIN", Value: meta.Gain, Comment: "camera gain"},
		{Name: "OFFSET", Value: meta.Offset, Comment: "camera offset"},
		{Name: "FRAMEID", Value: int64(f.ID), Comment: "frame ring sequence number"},
		{Name: "DATE-OBS", Value: f.Time.UTC().Format("2006-01-02T15:04:05.000"), Comment: "UTC acquisition time"},
	}
	for _, c := range cards {
		if err := img.Header().Append(c); err != nil {
			return fmt.Errorf("persist: writing header card %s for %s: %w", c.Name, path, err)
		}
	}

	data := make([]int32, f.W*f.H)
	for i := range data {
		data[i] = int32(f.At(i%f.W, i/f.W))
	}
	if err := img.Write(data); err != nil {
		return fmt.Errorf("persist: writing pixel data for %s: %w", path, err)
	}
	if err := fits.Write(img); err != nil {
		return fmt.Errorf("persist: writing HDU for %s: %w", path, err)
	}
	return nil
}
