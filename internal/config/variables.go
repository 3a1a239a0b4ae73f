/*
DESCRIPTION
  variables.go lists, for every live-tunable Config field, a Name, a
  Type in string form, an Update function that parses a string into the
  field, and a Validate function that defaults the field if it is unset
  or out of range.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config map keys, used by the session layer's "set"/"get" commands.
const (
	KeyCameraWidth  = "CameraWidth"
	KeyCameraHeight = "CameraHeight"
	KeyCameraDepth  = "CameraDepth"
	KeyRingSize     = "RingSize"
	KeyExposure     = "Exposure"
	KeyInterval     = "Interval"
	KeyGain         = "Gain"
	KeyOffset       = "Offset"

	KeyWFCMaxAct  = "WFCMaxAct"
	KeyWFCGainP   = "WFCGainP"
	KeyWFCRetain  = "WFCRetain"
	KeyWaffleEven = "WaffleEven"
	KeyWaffleOdd  = "WaffleOdd"
	KeyActMapPath = "ActMapPath"

	KeySubW       = "SubW"
	KeySubH       = "SubH"
	KeyPitchX     = "PitchX"
	KeyPitchY     = "PitchY"
	KeyShiftMini  = "ShiftMini"
	KeyMaxShift   = "MaxShift"
	KeyBasis      = "Basis"
	KeyNumModes   = "NumModes"
	KeyCalibCutoff = "CalibCutoff"
	KeyCalibAmp   = "CalibAmp"
	KeyMLAPath    = "MLAPath"

	KeyCCDAngle  = "CCDAngle"
	KeyTelScaleX = "TelScaleX"
	KeyTelScaleY = "TelScaleY"
	KeyTTGainP   = "TTGainP"
	KeyTTGainI   = "TTGainI"
	KeyTTGainD   = "TTGainD"

	KeyShiftWorkers = "ShiftWorkers"
	KeyPerfLogSize  = "PerfLogSize"

	KeyListenAddr = "ListenAddr"

	KeyOutputDir = "OutputDir"
	KeyObserver  = "Observer"
	KeyTarget    = "Target"
	KeyComment   = "Comment"
)

// Variables describes every live-tunable Config field: its name and type
// for protocol introspection, an Update function that parses a string
// value into the field, and an optional Validate function that defaults
// the field when it is unset or out of range.
var Variables = []struct {
	Name     string
	Type     string
	Update   func(*Config, string)
	Validate func(*Config)
}{
	{
		Name:   KeyCameraWidth,
		Type:   "int",
		Update: func(c *Config, v string) { c.CameraWidth = parseInt(KeyCameraWidth, v, c) },
		Validate: func(c *Config) {
			if c.CameraWidth <= 0 {
				c.LogInvalidField(KeyCameraWidth, defaultCameraWidth)
				c.CameraWidth = defaultCameraWidth
			}
		},
	},
	{
		Name:   KeyCameraHeight,
		Type:   "int",
		Update: func(c *Config, v string) { c.CameraHeight = parseInt(KeyCameraHeight, v, c) },
		Validate: func(c *Config) {
			if c.CameraHeight <= 0 {
				c.LogInvalidField(KeyCameraHeight, defaultCameraHeight)
				c.CameraHeight = defaultCameraHeight
			}
		},
	},
	{
		Name:   KeyCameraDepth,
		Type:   "int",
		Update: func(c *Config, v string) { c.CameraDepth = parseInt(KeyCameraDepth, v, c) },
		Validate: func(c *Config) {
			switch c.CameraDepth {
			case 8, 16, 32:
			default:
				c.LogInvalidField(KeyCameraDepth, defaultCameraDepth)
				c.CameraDepth = defaultCameraDepth
			}
		},
	},
	{
		Name:   KeyRingSize,
		Type:   "int",
		Update: func(c *Config, v string) { c.RingSize = parseInt(KeyRingSize, v, c) },
		Validate: func(c *Config) {
			if c.RingSize <= 0 {
				c.LogInvalidField(KeyRingSize, defaultRingSize)
				c.RingSize = defaultRingSize
			}
		},
	},
	{
		Name:   KeyExposure,
		Type:   "float",
		Update: func(c *Config, v string) { c.Exposure = parseFloat(KeyExposure, v, c) },
	},
	{
		Name:   KeyInterval,
		Type:   "float",
		Update: func(c *Config, v string) { c.Interval = parseFloat(KeyInterval, v, c) },
	},
	{
		Name:   KeyGain,
		Type:   "float",
		Update: func(c *Config, v string) { c.Gain = parseFloat(KeyGain, v, c) },
	},
	{
		Name:   KeyOffset,
		Type:   "float",
		Update: func(c *Config, v string) { c.Offset = parseFloat(KeyOffset, v, c) },
	},
	{
		Name:   KeyWFCMaxAct,
		Type:   "float",
		Update: func(c *Config, v string) { c.WFCMaxAct = parseFloat(KeyWFCMaxAct, v, c) },
		Validate: func(c *Config) {
			if c.WFCMaxAct <= 0 {
				c.LogInvalidField(KeyWFCMaxAct, defaultWFCMaxAct)
				c.WFCMaxAct = defaultWFCMaxAct
			}
		},
	},
	{
		Name:   KeyWFCGainP,
		Type:   "float",
		Update: func(c *Config, v string) { c.WFCGainP = parseFloat(KeyWFCGainP, v, c) },
	},
	{
		Name:   KeyWFCRetain,
		Type:   "float",
		Update: func(c *Config, v string) { c.WFCRetain = parseFloat(KeyWFCRetain, v, c) },
		Validate: func(c *Config) {
			if c.WFCRetain <= 0 || c.WFCRetain > 1 {
				c.LogInvalidField(KeyWFCRetain, defaultWFCRetain)
				c.WFCRetain = defaultWFCRetain
			}
		},
	},
	{
		Name:   KeyWaffleEven,
		Type:   "intlist",
		Update: func(c *Config, v string) { c.WaffleEven = parseIntList(KeyWaffleEven, v, c) },
	},
	{
		Name:   KeyWaffleOdd,
		Type:   "intlist",
		Update: func(c *Config, v string) { c.WaffleOdd = parseIntList(KeyWaffleOdd, v, c) },
	},
	{
		Name:   KeyActMapPath,
		Type:   "string",
		Update: func(c *Config, v string) { c.ActMapPath = v },
	},
	{
		Name:   KeySubW,
		Type:   "int",
		Update: func(c *Config, v string) { c.SubW = parseInt(KeySubW, v, c) },
		Validate: func(c *Config) {
			if c.SubW <= 0 {
				c.LogInvalidField(KeySubW, defaultSubSize)
				c.SubW = defaultSubSize
			}
		},
	},
	{
		Name:   KeySubH,
		Type:   "int",
		Update: func(c *Config, v string) { c.SubH = parseInt(KeySubH, v, c) },
		Validate: func(c *Config) {
			if c.SubH <= 0 {
				c.LogInvalidField(KeySubH, defaultSubSize)
				c.SubH = defaultSubSize
			}
		},
	},
	{
		Name:   KeyPitchX,
		Type:   "int",
		Update: func(c *Config, v string) { c.PitchX = parseInt(KeyPitchX, v, c) },
	},
	{
		Name:   KeyPitchY,
		Type:   "int",
		Update: func(c *Config, v string) { c.PitchY = parseInt(KeyPitchY, v, c) },
	},
	{
		Name:   KeyShiftMini,
		Type:   "float",
		Update: func(c *Config, v string) { c.ShiftMini = parseFloat(KeyShiftMini, v, c) },
	},
	{
		Name:   KeyMaxShift,
		Type:   "float",
		Update: func(c *Config, v string) { c.MaxShift = parseFloat(KeyMaxShift, v, c) },
		Validate: func(c *Config) {
			if c.MaxShift <= 0 {
				c.LogInvalidField(KeyMaxShift, defaultMaxShift)
				c.MaxShift = defaultMaxShift
			}
		},
	},
	{
		Name:   KeyBasis,
		Type:   "enum:sensor,zernike,kl,mirror",
		Update: func(c *Config, v string) { c.Basis = v },
		Validate: func(c *Config) {
			switch c.Basis {
			case "sensor", "zernike", "kl", "mirror":
			default:
				c.LogInvalidField(KeyBasis, defaultBasis)
				c.Basis = defaultBasis
			}
		},
	},
	{
		Name:   KeyNumModes,
		Type:   "int",
		Update: func(c *Config, v string) { c.NumModes = parseInt(KeyNumModes, v, c) },
	},
	{
		Name:   KeyCalibCutoff,
		Type:   "float",
		Update: func(c *Config, v string) { c.CalibCutoff = parseFloat(KeyCalibCutoff, v, c) },
	},
	{
		Name:   KeyCalibAmp,
		Type:   "float",
		Update: func(c *Config, v string) { c.CalibAmp = parseFloat(KeyCalibAmp, v, c) },
	},
	{
		Name:   KeyMLAPath,
		Type:   "string",
		Update: func(c *Config, v string) { c.MLAPath = v },
	},
	{
		Name:   KeyCCDAngle,
		Type:   "float",
		Update: func(c *Config, v string) { c.CCDAngle = parseFloat(KeyCCDAngle, v, c) },
	},
	{
		Name:   KeyTelScaleX,
		Type:   "float",
		Update: func(c *Config, v string) { c.TelScaleX = parseFloat(KeyTelScaleX, v, c) },
		Validate: func(c *Config) {
			if c.TelScaleX == 0 {
				c.TelScaleX = 1
			}
		},
	},
	{
		Name:   KeyTelScaleY,
		Type:   "float",
		Update: func(c *Config, v string) { c.TelScaleY = parseFloat(KeyTelScaleY, v, c) },
		Validate: func(c *Config) {
			if c.TelScaleY == 0 {
				c.TelScaleY = 1
			}
		},
	},
	{
		Name:   KeyTTGainP,
		Type:   "float",
		Update: func(c *Config, v string) { c.TTGainP = parseFloat(KeyTTGainP, v, c) },
	},
	{
		Name:   KeyTTGainI,
		Type:   "float",
		Update: func(c *Config, v string) { c.TTGainI = parseFloat(KeyTTGainI, v, c) },
	},
	{
		Name:   KeyTTGainD,
		Type:   "float",
		Update: func(c *Config, v string) { c.TTGainD = parseFloat(KeyTTGainD, v, c) },
	},
	{
		Name:   KeyShiftWorkers,
		Type:   "int",
		Update: func(c *Config, v string) { c.ShiftWorkers = parseInt(KeyShiftWorkers, v, c) },
		Validate: func(c *Config) {
			if c.ShiftWorkers <= 0 {
				c.LogInvalidField(KeyShiftWorkers, defaultShiftWorkers)
				c.ShiftWorkers = defaultShiftWorkers
			}
		},
	},
	{
		Name:   KeyPerfLogSize,
		Type:   "int",
		Update: func(c *Config, v string) { c.PerfLogSize = parseInt(KeyPerfLogSize, v, c) },
	},
	{
		Name:   KeyListenAddr,
		Type:   "string",
		Update: func(c *Config, v string) { c.ListenAddr = v },
		Validate: func(c *Config) {
			if c.ListenAddr == "" {
				c.LogInvalidField(KeyListenAddr, defaultListenAddr)
				c.ListenAddr = defaultListenAddr
			}
		},
	},
	{
		Name:   KeyOutputDir,
		Type:   "string",
		Update: func(c *Config, v string) { c.OutputDir = v },
		Validate: func(c *Config) {
			if c.OutputDir == "" {
				c.LogInvalidField(KeyOutputDir, defaultOutputDir)
				c.OutputDir = defaultOutputDir
			}
		},
	},
	{
		Name:   KeyObserver,
		Type:   "string",
		Update: func(c *Config, v string) { c.Observer = v },
	},
	{
		Name:   KeyTarget,
		Type:   "string",
		Update: func(c *Config, v string) { c.Target = v },
	},
	{
		Name:   KeyComment,
		Type:   "string",
		Update: func(c *Config, v string) { c.Comment = v },
	},
}

// Defaults for fields that must not be left unset.
const (
	defaultCameraWidth  = 640
	defaultCameraHeight = 480
	defaultCameraDepth  = 16
	defaultRingSize     = 16
	defaultWFCMaxAct    = 1.0
	defaultWFCRetain    = 1.0
	defaultSubSize      = 16
	defaultMaxShift     = 8.0
	defaultBasis        = "zernike"
	defaultShiftWorkers = 4
	defaultListenAddr   = ":7443"
	defaultOutputDir    = "."
)

func parseInt(n, v string, c *Config) int {
	_v, err := strconv.Atoi(v)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected integer for param %s", n), "value", v)
	}
	return _v
}

func parseFloat(n, v string, c *Config) float64 {
	_v, err := strconv.ParseFloat(v, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected float for param %s", n), "value", v)
	}
	return _v
}

// parseIntList parses a comma-separated list of actuator indices, as used
// by the waffle/random pattern actuator sets (Config.WaffleEven/WaffleOdd).
func parseIntList(n, v string, c *Config) []int {
	if v == "" {
		return nil
	}
	fields := strings.Split(v, ",")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		i, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			c.Logger.Warning(fmt.Sprintf("expected int list for param %s", n), "value", v)
			continue
		}
		out = append(out, i)
	}
	return out
}

func parseBool(n, v string, c *Config) (b bool) {
	switch strings.ToLower(v) {
	case "true":
		b = true
	case "false":
		b = false
	default:
		c.Logger.Warning(fmt.Sprintf("expected bool for param %s", n), "value", v)
	}
	return b
}
