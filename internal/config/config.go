/*
DESCRIPTION
  config.go provides Config, the flat settings struct for an aoloopd
  instance (camera, WFC, WFS, telescope, loop, and network settings), and
  the live Update/Validate machinery generalised from revid's config
  package.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config provides the configuration settings for aoloopd.
package config

import (
	"path/filepath"

	"github.com/ausocean/utils/logging"
)

// Config provides the parameters for one aoloopd instance. Zero value is
// not ready to use; set its fields (directly or via Update) and call
// Validate, which defaults any unset field, before use.
type Config struct {
	Logger logging.Logger

	// Camera.
	CameraWidth, CameraHeight int
	CameraDepth               int
	RingSize                  int
	Exposure, Interval        float64
	Gain, Offset              float64

	// WFC.
	WFCMaxAct            float64
	WFCGainP             float64
	WFCRetain            float64
	WaffleEven, WaffleOdd []int
	ActMapPath           string

	// WFS.
	SubW, SubH     int
	PitchX, PitchY int
	ShiftMini      float64
	MaxShift       float64
	Basis          string
	NumModes       int
	CalibCutoff    float64
	CalibAmp       float64
	MLAPath        string

	// Telescope.
	CCDAngle       float64
	TelScaleX      float64
	TelScaleY      float64
	TTGainP        float64
	TTGainI        float64
	TTGainD        float64

	// Loop.
	ShiftWorkers int
	PerfLogSize  int

	// Network.
	ListenAddr string

	// Persistence.
	OutputDir string
	Observer  string
	Target    string
	Comment   string

	// ConfigPath is the file this Config was loaded from, used to resolve
	// other relative paths (ActMapPath, MLAPath) and by the reload watcher.
	ConfigPath string
}

// ResolvePath returns p resolved relative to the directory containing
// ConfigPath, unless p is already absolute.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(c.ConfigPath), p)
}

// Validate runs every Variable's Validate function against c, filling in
// defaults and logging what it changed.
func (c *Config) Validate() error {
	for _, v := range Variables {
		if v.Validate != nil {
			v.Validate(c)
		}
	}
	return nil
}

// Update applies a map of variable name -> string value to c, used both by
// the session layer's "set" commands and by the file-reload watcher.
func (c *Config) Update(vars map[string]string) {
	for _, v := range Variables {
		if val, ok := vars[v.Name]; ok && v.Update != nil {
			v.Update(c, val)
		}
	}
}

// LogInvalidField logs that a field was bad or unset and defaulted.
func (c *Config) LogInvalidField(name string, def interface{}) {
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}
