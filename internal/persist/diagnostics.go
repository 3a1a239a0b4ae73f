/*
DESCRIPTION
  diagnostics.go writes the reference vector and SVD diagnostics exposed
  over "get refvec|singvals|svdcondition|svdusage" to CSV for offline
  analysis, per spec §6.

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
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/ausocean/aoctl/internal/reconstruct"
)

// WriteVector writes a single-column CSV of a named float64 vector, used
// for both the reference vector and a raw shift dump.
func WriteVector(path string, v []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("persist: creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, x := range v {
		if err := w.Write([]string{strconv.FormatFloat(x, 'g', -1, 64)}); err != nil {
			return fmt.Errorf("persist: writing %s: %w", path, err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteSVDDiagnostics writes a reconstructor's singular values and summary
// statistics (modes used, power fraction, condition number) as CSV: one
// singular-value row per line, trailed by the three summary fields.
func WriteSVDDiagnostics(path string, r *reconstruct.Reconstructor) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("persist: creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, sv := range r.SingularValues {
		if err := w.Write([]string{strconv.FormatFloat(sv, 'g', -1, 64)}); err != nil {
			return fmt.Errorf("persist: writing %s: %w", path, err)
		}
	}
	summary := []string{
		"summary",
		strconv.Itoa(r.ModesUsed),
		strconv.FormatFloat(r.PowerFraction, 'g', -1, 64),
		strconv.FormatFloat(r.Condition, 'g', -1, 64),
	}
	if err := w.Write(summary); err != nil {
		return fmt.Errorf("persist: writing %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}
