/*
DESCRIPTION
  actmap.go loads the virtual-mode -> real-actuator actuation map
  (Config.ActMapPath) from CSV: one row per virtual mode, the real
  actuator indices it fans out to.

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
	"io"
	"os"
	"strconv"

	"github.com/ausocean/aoctl/internal/device/wfc"
)

// LoadActMap reads an actuation map from path: row i (0-based) lists the
// real actuator indices virtual mode i drives. A missing file is not an
// error; it simply means no map is configured, and the caller should
// treat Nvirt == Nreal.
func LoadActMap(path string) (wfc.ActMap, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("persist: opening act map %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	m := make(wfc.ActMap)
	for virt := 0; ; virt++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("persist: reading act map %s: %w", path, err)
		}
		reals := make([]int, len(row))
		for i, s := range row {
			v, err := strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("persist: act map %s row %d: %w", path, virt, err)
			}
			reals[i] = v
		}
		m[virt] = reals
	}
	return m, nil
}
