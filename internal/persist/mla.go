/*
DESCRIPTION
  mla.go reads and writes the MLA subimage geometry (spec §4.5.1's
  rectangle list) as CSV, for "mla store" and start-of-day geometry load.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package persist implements the on-disk formats of spec §6: MLA
// geometry CSV, reference-vector/SVD-diagnostic CSV, and FITS frame
// files.
package persist

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/ausocean/aoctl/internal/shiftengine"
)

// WriteMLA writes rects to path as one "lx,ly,tx,ty" row per subimage.
func WriteMLA(path string, rects []shiftengine.Rect) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("persist: creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, r := range rects {
		row := []string{
			strconv.Itoa(r.LX), strconv.Itoa(r.LY),
			strconv.Itoa(r.TX), strconv.Itoa(r.TY),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("persist: writing %s: %w", path, err)
		}
	}
	w.Flush()
	return w.Error()
}

// ReadMLA reads the subimage rectangles written by WriteMLA.
func ReadMLA(path string) ([]shiftengine.Rect, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("persist: opening %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("persist: reading %s: %w", path, err)
	}

	rects := make([]shiftengine.Rect, len(rows))
	for i, row := range rows {
		if len(row) != 4 {
			return nil, fmt.Errorf("persist: %s row %d: want 4 fields, got %d", path, i, len(row))
		}
		vals := make([]int, 4)
		for j, field := range row {
			v, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("persist: %s row %d field %d: %w", path, i, j, err)
			}
			vals[j] = v
		}
		rects[i] = shiftengine.Rect{LX: vals[0], LY: vals[1], TX: vals[2], TY: vals[3]}
	}
	return rects, nil
}
