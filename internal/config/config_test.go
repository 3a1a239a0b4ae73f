/*
DESCRIPTION
  config_test.go provides testing for the Config struct methods (Validate
  and Update).

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
	"testing"

	"github.com/google/go-cmp/cmp"
)

type dumbLogger struct{}

func (dl *dumbLogger) Log(l int8, m string, a ...interface{})  {}
func (dl *dumbLogger) SetLevel(l int8)                         {}
func (dl *dumbLogger) Debug(msg string, args ...interface{})   {}
func (dl *dumbLogger) Info(msg string, args ...interface{})    {}
func (dl *dumbLogger) Warning(msg string, args ...interface{}) {}
func (dl *dumbLogger) Error(msg string, args ...interface{})   {}
func (dl *dumbLogger) Fatal(msg string, args ...interface{})   {}

func TestValidateDefaults(t *testing.T) {
	dl := &dumbLogger{}
	c := &Config{Logger: dl}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	want := Config{
		Logger:       dl,
		CameraWidth:  defaultCameraWidth,
		CameraHeight: defaultCameraHeight,
		CameraDepth:  defaultCameraDepth,
		RingSize:     defaultRingSize,
		WFCMaxAct:    defaultWFCMaxAct,
		WFCRetain:    defaultWFCRetain,
		SubW:         defaultSubSize,
		SubH:         defaultSubSize,
		MaxShift:     defaultMaxShift,
		Basis:        defaultBasis,
		ShiftWorkers: defaultShiftWorkers,
		ListenAddr:   defaultListenAddr,
		OutputDir:    defaultOutputDir,
		TelScaleX:    1,
		TelScaleY:    1,
	}

	if diff := cmp.Diff(want, *c); diff != "" {
		t.Errorf("Validate() mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateAppliesKnownFields(t *testing.T) {
	c := &Config{Logger: &dumbLogger{}}
	c.Update(map[string]string{
		KeyCameraWidth: "128",
		KeyBasis:       "zernike",
		KeyExposure:    "0.5",
	})

	if c.CameraWidth != 128 {
		t.Errorf("CameraWidth = %d, want 128", c.CameraWidth)
	}
	if c.Basis != "zernike" {
		t.Errorf("Basis = %q, want zernike", c.Basis)
	}
	if c.Exposure != 0.5 {
		t.Errorf("Exposure = %v, want 0.5", c.Exposure)
	}
}

func TestUpdateIgnoresUnknownFields(t *testing.T) {
	c := &Config{Logger: &dumbLogger{}}
	c.Update(map[string]string{"NotARealField": "123"})
	if c.CameraWidth != 0 {
		t.Errorf("expected untouched zero value, got %d", c.CameraWidth)
	}
}

func TestValidateRejectsOutOfRangeBasis(t *testing.T) {
	c := &Config{Logger: &dumbLogger{}, Basis: "nonsense"}
	c.Validate()
	if c.Basis != defaultBasis {
		t.Errorf("Basis = %q, want default %q", c.Basis, defaultBasis)
	}
}
