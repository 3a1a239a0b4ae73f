/*
DESCRIPTION
  handlers.go implements the per-device Handlers of spec §6: the global
  command set and the camera/WFC/WFS/telescope command surfaces, each
  adapting a device's Go method set onto the line-oriented protocol.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package session

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"github.com/ausocean/aoctl/internal/device"
	"github.com/ausocean/aoctl/internal/device/camera"
	"github.com/ausocean/aoctl/internal/device/telescope"
	"github.com/ausocean/aoctl/internal/device/wfc"
	"github.com/ausocean/aoctl/internal/device/wfs"
	"github.com/ausocean/aoctl/internal/frame"
	"github.com/ausocean/aoctl/internal/loopengine"
	"github.com/ausocean/aoctl/internal/persist"
	"github.com/ausocean/aoctl/internal/shiftengine"
)

func parseFloatArg(v string) (float64, error) { return strconv.ParseFloat(v, 64) }
func parseIntArg(v string) (int, error)        { return strconv.Atoi(v) }

func floatsToString(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return strings.Join(parts, " ")
}

func parseFloatsArg(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := parseFloatArg(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// commandsPayload formats a device's command descriptors for "get
// commands": a count followed by semicolon-separated entries, per spec
// §4.8.
func commandsPayload(cmds []string) string {
	return fmt.Sprintf("%d;%s", len(cmds), strings.Join(cmds, ";"))
}

// statusPayload formats a device.Status for "get status".
func statusPayload(st device.Status) string {
	return fmt.Sprintf("online=%t name=%s type=%s errors=%d", st.Online, st.Name, st.Type, st.ErrorCount)
}

// GlobalHandler implements the commands common to every client: help,
// session control, mode changes, verbosity, and the device registry.
type GlobalHandler struct {
	Registry *device.Registry
	Engine   *loopengine.Engine

	// Level is the logger's initial verbosity (threaded from the -v/-q
	// flags), adjusted by "verb" and applied via the session's logger.
	Level int8

	mu sync.Mutex
}

func (g *GlobalHandler) Handle(s *Session, args []string) (verb, payload string, err error) {
	if len(args) == 0 {
		return "", "", fmt.Errorf("empty command")
	}
	verb = args[0]
	rest := args[1:]

	switch verb {
	case "help":
		return verb, "see section 6 of the protocol reference", nil
	case "quit", "bye", "exit":
		defer s.Close()
		return verb, "goodbye", nil
	case "shutdown":
		g.Engine.SetMode(loopengine.Shutdown)
		return verb, "", nil
	case "broadcast":
		msg := strings.Join(rest, " ")
		s.srv.Broadcast("broadcast", "broadcast", msg)
		return verb, "", nil
	case "tag":
		if len(rest) != 1 {
			return verb, "", fmt.Errorf("usage: tag <name>")
		}
		s.Tag(rest[0])
		return verb, rest[0], nil
	case "untag":
		if len(rest) != 1 {
			return verb, "", fmt.Errorf("usage: untag <name>")
		}
		s.Untag(rest[0])
		return verb, rest[0], nil
	case "get":
		if len(rest) == 0 {
			return verb, "", fmt.Errorf("usage: get mode|devices")
		}
		switch rest[0] {
		case "mode":
			return verb, g.Engine.Mode().String(), nil
		case "devices":
			return verb, strings.Join(g.Registry.Names(), ","), nil
		}
		return verb, "", fmt.Errorf("unknown get target %q", rest[0])
	case "mode":
		if len(rest) != 1 {
			return verb, "", fmt.Errorf("usage: mode open|closed|listen|calib")
		}
		m, err := parseMode(rest[0])
		if err != nil {
			return verb, "", err
		}
		g.Engine.SetMode(m)
		return verb, rest[0], nil
	case "verb":
		if len(rest) != 1 {
			return verb, "", fmt.Errorf("usage: verb +|-|<n>")
		}
		g.mu.Lock()
		switch rest[0] {
		case "+":
			g.Level--
		case "-":
			g.Level++
		default:
			n, err := parseIntArg(rest[0])
			if err != nil {
				g.mu.Unlock()
				return verb, "", err
			}
			g.Level = int8(n)
		}
		lvl := g.Level
		g.mu.Unlock()
		s.srv.log.SetLevel(lvl)
		payload = fmt.Sprintf("%d", lvl)
		s.srv.Broadcast("verb", "verb", payload)
		return verb, payload, nil
	}
	return verb, "", fmt.Errorf("unknown command %q", verb)
}

func parseMode(s string) (loopengine.Mode, error) {
	switch s {
	case "listen":
		return loopengine.Listen, nil
	case "open":
		return loopengine.Open, nil
	case "closed":
		return loopengine.Closed, nil
	case "calib":
		return loopengine.Cal, nil
	}
	return loopengine.Listen, fmt.Errorf("unknown mode %q", s)
}

func parseCameraMode(s string) (camera.Mode, error) {
	switch s {
	case "off":
		return camera.Off, nil
	case "waiting":
		return camera.Waiting, nil
	case "single":
		return camera.Single, nil
	case "running":
		return camera.Running, nil
	case "config":
		return camera.Config, nil
	}
	return camera.Off, fmt.Errorf("unknown camera mode %q", s)
}

// cameraCommands lists CameraHandler's command descriptors for "get
// commands", per spec §6.
var cameraCommands = []string{
	"set mode <OFF|WAITING|SINGLE|RUNNING|CONFIG>",
	"set exposure <f>", "set interval <f>", "set gain <f>", "set offset <f>",
	"set filename <s>", "set fits observer,target,comment", "set store <n>",
	"get mode|exposure|interval|gain|offset|width|height|depth|resolution|filename|fits",
	"thumbnail", "grab x1 y1 x2 y2 step [darkflat]", "dark [n]", "flat [n]",
	"get commands", "get calib", "get status",
}

// CameraHandler adapts a *camera.Camera to the protocol's camera command
// surface: mode and settings get/set, store-N arming, thumbnail, grab,
// and dark/flat accumulation.
type CameraHandler struct {
	Cam *camera.Camera
	Srv *Server

	mu       sync.Mutex
	filename string
	meta     persist.FrameMeta
}

// storeCallback builds the Camera.SetStore callback that writes each
// stored frame to a FITS file (spec §4.3 store-N, scenario S4) and
// broadcasts the remaining count.
func (h *CameraHandler) storeCallback() func(f *frame.Frame, s camera.Settings, n int) {
	return func(f *frame.Frame, s camera.Settings, n int) {
		h.mu.Lock()
		filename := h.filename
		meta := h.meta
		h.mu.Unlock()

		meta.Exposure = s.Exposure
		meta.Gain = s.Gain
		meta.Offset = s.Offset

		path := fmt.Sprintf("frame-%d.fits", f.ID)
		if filename != "" {
			path = fmt.Sprintf("%s-%d.fits", filename, f.ID)
		}
		if err := persist.WriteFITS(path, f, meta); err != nil {
			h.Srv.log.Error("store: writing fits failed", "path", path, "error", err.Error())
		}
		h.Srv.Broadcast("store", "store", strconv.Itoa(n))
	}
}

func (h *CameraHandler) Handle(s *Session, args []string) (verb, payload string, err error) {
	if len(args) == 0 {
		return "", "", fmt.Errorf("empty command")
	}
	verb = args[0]
	rest := args[1:]

	switch verb {
	case "set":
		return h.handleSet(rest)
	case "get":
		return h.handleGet(rest)
	case "thumbnail":
		f := h.Cam.Ring().Latest()
		if f == nil {
			return verb, "", fmt.Errorf("no frame available")
		}
		pix := camera.Thumbnail(f, 64, 64)
		if err := s.WriteBinary(pix); err != nil {
			return verb, "", err
		}
		return verb, fmt.Sprintf("%d bytes", len(pix)), nil
	case "grab":
		return h.handleGrab(s, rest)
	case "dark":
		n := 16
		if len(rest) == 1 {
			n, err = parseIntArg(rest[0])
			if err != nil {
				return verb, "", err
			}
		}
		if err := h.Cam.AccumulateDark(n); err != nil {
			return verb, "", err
		}
		return verb, "", nil
	case "flat":
		n := 16
		if len(rest) == 1 {
			n, err = parseIntArg(rest[0])
			if err != nil {
				return verb, "", err
			}
		}
		if err := h.Cam.AccumulateFlat(n); err != nil {
			return verb, "", err
		}
		return verb, "", nil
	}
	return verb, "", fmt.Errorf("unknown camera command %q", verb)
}

func (h *CameraHandler) handleSet(rest []string) (verb, payload string, err error) {
	verb = "set"
	if len(rest) < 2 {
		return verb, "", fmt.Errorf("usage: set mode|exposure|interval|gain|offset|filename|fits|store <value>")
	}
	target, rest := rest[0], rest[1:]
	switch target {
	case "filename":
		h.mu.Lock()
		h.filename = rest[0]
		h.mu.Unlock()
		return verb, rest[0], nil
	case "fits":
		parts := strings.SplitN(rest[0], ",", 3)
		for len(parts) < 3 {
			parts = append(parts, "")
		}
		h.mu.Lock()
		h.meta.Observer, h.meta.Target, h.meta.Comment = parts[0], parts[1], parts[2]
		h.mu.Unlock()
		return verb, rest[0], nil
	case "mode":
		m, err := parseCameraMode(rest[0])
		if err != nil {
			return verb, "", err
		}
		h.Cam.SetMode(m)
		return verb, rest[0], nil
	case "exposure", "interval", "gain", "offset":
		v, err := parseFloatArg(rest[0])
		if err != nil {
			return verb, "", err
		}
		s := h.Cam.Settings()
		switch target {
		case "exposure":
			s.Exposure = v
		case "interval":
			s.Interval = v
		case "gain":
			s.Gain = v
		case "offset":
			s.Offset = v
		}
		h.Cam.SetSettings(s)
		return verb, rest[0], nil
	case "store":
		n, err := parseIntArg(rest[0])
		if err != nil {
			return verb, "", err
		}
		h.Cam.SetStore(n, h.storeCallback())
		return verb, rest[0], nil
	}
	return verb, "", fmt.Errorf("unknown set target %q", target)
}

func (h *CameraHandler) handleGet(rest []string) (verb, payload string, err error) {
	verb = "get"
	if len(rest) == 0 {
		return verb, "", fmt.Errorf("usage: get mode|exposure|interval|gain|offset|width|height|depth|resolution")
	}
	s := h.Cam.Settings()
	switch rest[0] {
	case "mode":
		return verb, h.Cam.Mode().String(), nil
	case "exposure":
		return verb, fmt.Sprintf("%g", s.Exposure), nil
	case "interval":
		return verb, fmt.Sprintf("%g", s.Interval), nil
	case "gain":
		return verb, fmt.Sprintf("%g", s.Gain), nil
	case "offset":
		return verb, fmt.Sprintf("%g", s.Offset), nil
	case "resolution":
		f := h.Cam.Ring().Latest()
		if f == nil {
			return verb, "", fmt.Errorf("no frame available")
		}
		return verb, fmt.Sprintf("%d %d", f.W, f.H), nil
	case "width", "height", "depth":
		f := h.Cam.Ring().Latest()
		if f == nil {
			return verb, "", fmt.Errorf("no frame available")
		}
		switch rest[0] {
		case "width":
			return verb, fmt.Sprintf("%d", f.W), nil
		case "height":
			return verb, fmt.Sprintf("%d", f.H), nil
		}
		return verb, fmt.Sprintf("%d", int(f.Depth)), nil
	case "filename":
		h.mu.Lock()
		defer h.mu.Unlock()
		return verb, h.filename, nil
	case "fits":
		h.mu.Lock()
		m := h.meta
		h.mu.Unlock()
		return verb, fmt.Sprintf("%s,%s,%s", m.Observer, m.Target, m.Comment), nil
	case "commands":
		return verb, commandsPayload(cameraCommands), nil
	case "calib":
		hasDark, hasFlat := h.Cam.DarkFlatStatus()
		return verb, fmt.Sprintf("dark=%t flat=%t", hasDark, hasFlat), nil
	case "status":
		return verb, statusPayload(h.Cam.Status()), nil
	}
	return verb, "", fmt.Errorf("unknown get target %q", rest[0])
}

func (h *CameraHandler) handleGrab(s *Session, rest []string) (verb, payload string, err error) {
	verb = "grab"
	if len(rest) < 4 {
		return verb, "", fmt.Errorf("usage: grab x1 y1 x2 y2 [step] [darkflat]")
	}
	coords, err := parseFloatsArg(rest[:4])
	if err != nil {
		return verb, "", err
	}
	step := 1
	correct := false
	for _, a := range rest[4:] {
		switch a {
		case "darkflat":
			correct = true
		default:
			step, err = parseIntArg(a)
			if err != nil {
				return verb, "", err
			}
		}
	}
	f := h.Cam.Ring().Latest()
	if f == nil {
		return verb, "", fmt.Errorf("no frame available")
	}
	w, hgt, pix := h.Cam.Grab(f, int(coords[0]), int(coords[1]), int(coords[2]), int(coords[3]), step, correct)
	out := make([]byte, len(pix))
	for i, v := range pix {
		out[i] = byte(v)
	}
	if err := s.WriteBinary(out); err != nil {
		return verb, "", err
	}
	return verb, fmt.Sprintf("%d %d", w, hgt), nil
}

// wfcCommands lists WFCHandler's command descriptors for "get commands",
// per spec §6.
var wfcCommands = []string{
	"set gain <p> <i> <d>", "set maxact <f>", "set offset <n> <v0>...<v_{n-1}>",
	"get gain|nact|ctrl|maxact|offset",
	"act all <f>", "act one <idx> <f>", "act vec <v0>...", "act waffle <f>", "act random <f>",
	"get commands", "get calib", "get status",
}

// WFCHandler adapts a *wfc.WFC to the protocol's "set maxact|offset|gain",
// "get nact|ctrl|maxact|gain|offset", and "act waffle|all|one|vec|random"
// commands.
type WFCHandler struct {
	WFC *wfc.WFC
	Rng *rand.Rand
}

func (h *WFCHandler) Handle(s *Session, args []string) (verb, payload string, err error) {
	if len(args) == 0 {
		return "", "", fmt.Errorf("empty command")
	}
	verb = args[0]
	rest := args[1:]

	switch verb {
	case "set":
		return h.handleSet(rest)
	case "get":
		return h.handleGet(rest)
	case "act":
		return h.handleAct(rest)
	}
	return verb, "", fmt.Errorf("unknown wfc command %q", verb)
}

func (h *WFCHandler) handleSet(rest []string) (verb, payload string, err error) {
	verb = "set"
	if len(rest) == 0 {
		return verb, "", fmt.Errorf("usage: set maxact|offset|gain ...")
	}
	switch rest[0] {
	case "maxact":
		if len(rest) != 2 {
			return verb, "", fmt.Errorf("usage: set maxact <f>")
		}
		v, err := parseFloatArg(rest[1])
		if err != nil {
			return verb, "", err
		}
		h.WFC.SetMaxAct(v)
		return verb, rest[1], nil
	case "offset":
		if len(rest) < 2 {
			return verb, "", fmt.Errorf("usage: set offset <n> <v0>...<v_{n-1}>")
		}
		n, err := parseIntArg(rest[1])
		if err != nil {
			return verb, "", err
		}
		vals, err := parseFloatsArg(rest[2:])
		if err != nil {
			return verb, "", err
		}
		if err := h.WFC.SetOffset(n, vals); err != nil {
			return verb, "", err
		}
		return verb, "", nil
	case "gain":
		if len(rest) != 4 {
			return verb, "", fmt.Errorf("usage: set gain <p> <i> <d>")
		}
		g, err := parseFloatsArg(rest[1:])
		if err != nil {
			return verb, "", err
		}
		h.WFC.SetGain(wfc.Gain{P: g[0], I: g[1], D: g[2]})
		return verb, "", nil
	}
	return verb, "", fmt.Errorf("unknown set target %q", rest[0])
}

func (h *WFCHandler) handleGet(rest []string) (verb, payload string, err error) {
	verb = "get"
	if len(rest) == 0 {
		return verb, "", fmt.Errorf("usage: get nact|ctrl|maxact|gain|offset")
	}
	switch rest[0] {
	case "nact":
		nvirt, nreal := h.WFC.NactBoth()
		return verb, fmt.Sprintf("%d %d", nvirt, nreal), nil
	case "ctrl":
		return verb, floatsToString(h.WFC.Ctrl()), nil
	case "maxact":
		return verb, fmt.Sprintf("%g", h.WFC.MaxAct()), nil
	case "gain":
		g := h.WFC.Gain()
		return verb, fmt.Sprintf("%g %g %g", g.P, g.I, g.D), nil
	case "offset":
		return verb, floatsToString(h.WFC.Offset()), nil
	case "commands":
		return verb, commandsPayload(wfcCommands), nil
	case "calib":
		return verb, "offset:" + floatsToString(h.WFC.Offset()), nil
	case "status":
		return verb, statusPayload(h.WFC.Status()), nil
	}
	return verb, "", fmt.Errorf("unknown get target %q", rest[0])
}

func (h *WFCHandler) handleAct(rest []string) (verb, payload string, err error) {
	verb = "act"
	if len(rest) == 0 {
		return verb, "", fmt.Errorf("usage: act waffle|all|one|vec|random ...")
	}
	switch rest[0] {
	case "waffle":
		if len(rest) != 2 {
			return verb, "", fmt.Errorf("usage: act waffle <f>")
		}
		v, err := parseFloatArg(rest[1])
		if err != nil {
			return verb, "", err
		}
		if err := h.WFC.SetWafflePattern(v); err != nil {
			return verb, "", err
		}
		return verb, "", nil
	case "all":
		if len(rest) != 2 {
			return verb, "", fmt.Errorf("usage: act all <f>")
		}
		v, err := parseFloatArg(rest[1])
		if err != nil {
			return verb, "", err
		}
		nvirt, _ := h.WFC.NactBoth()
		for i := 0; i < nvirt; i++ {
			if err := h.WFC.SetActuator(i, v); err != nil {
				return verb, "", err
			}
		}
		return verb, "", nil
	case "one":
		if len(rest) != 3 {
			return verb, "", fmt.Errorf("usage: act one <idx> <f>")
		}
		idx, err := parseIntArg(rest[1])
		if err != nil {
			return verb, "", err
		}
		v, err := parseFloatArg(rest[2])
		if err != nil {
			return verb, "", err
		}
		if err := h.WFC.SetActuator(idx, v); err != nil {
			return verb, "", err
		}
		return verb, "", nil
	case "vec":
		vals, err := parseFloatsArg(rest[1:])
		if err != nil {
			return verb, "", err
		}
		for i, v := range vals {
			if err := h.WFC.SetActuator(i, v); err != nil {
				return verb, "", err
			}
		}
		return verb, "", nil
	case "random":
		if len(rest) != 2 {
			return verb, "", fmt.Errorf("usage: act random <f>")
		}
		a, err := parseFloatArg(rest[1])
		if err != nil {
			return verb, "", err
		}
		h.WFC.SetRandomPattern(a, h.Rng)
		if err := h.WFC.Actuate(); err != nil {
			return verb, "", err
		}
		return verb, "", nil
	}
	return verb, "", fmt.Errorf("unknown act target %q", rest[0])
}

// wfsCommands lists WFSHandler's command descriptors for "get commands".
// These are the commands the handler implements; it has no mla
// generate|find|store, set mla, get modes|camera|shifts, or get
// singvals|svdcondition|svdusage.
var wfsCommands = []string{
	"get basis|mla|refvec",
	"mla del <idx>", "mla add lx ly tx ty",
	"calibrate", "calib zero|influence [amp] [cutoff]|offsetvec x y|svd [cutoff]",
	"get commands", "get calib", "get status",
}

// WFSHandler adapts a *wfs.WFS to the protocol's MLA geometry, reference,
// and calibration command surface. "calibrate" runs the composed
// zero->influence->svd pipeline through the loop engine's Cal mode
// (Engine.SetMode), since it needs the full camera/WFC/simulator
// orchestration of CalibParams; the individually addressable "calib
// zero|influence|svd" sub-verbs instead call WFS's own Zero/CalibInfluence
// /RebuildSVD directly, each running in its own goroutine and reporting
// completion by broadcast per spec §4.8's non-blocking-listener rule.
type WFSHandler struct {
	WFS    *wfs.WFS
	Engine *loopengine.Engine

	Cam      wfs.Camera
	WFC      wfs.ActuatorDriver
	WFCReset func() error
	Sim      wfs.SimControl
	Srv      *Server

	// CalibAmp and CalibCutoff are the defaults used when "calib
	// influence"/"calib svd" are issued without explicit arguments.
	CalibAmp    float64
	CalibCutoff float64
}

func (h *WFSHandler) Handle(s *Session, args []string) (verb, payload string, err error) {
	if len(args) == 0 {
		return "", "", fmt.Errorf("empty command")
	}
	verb = args[0]
	rest := args[1:]

	switch verb {
	case "get":
		return h.handleGet(rest)
	case "mla":
		return h.handleMLA(rest)
	case "calibrate":
		h.Engine.SetMode(loopengine.Cal)
		s.srv.Broadcast("calib", "calib", "started")
		return verb, "started", nil
	case "calib":
		return h.handleCalib(rest)
	}
	return verb, "", fmt.Errorf("unknown wfs command %q", verb)
}

func (h *WFSHandler) handleGet(rest []string) (verb, payload string, err error) {
	verb = "get"
	if len(rest) == 0 {
		return verb, "", fmt.Errorf("usage: get refvec|basis|mla")
	}
	switch rest[0] {
	case "refvec":
		return verb, floatsToString(h.WFS.Reference()), nil
	case "basis":
		return verb, fmt.Sprintf("%d", h.WFS.Basis()), nil
	case "mla":
		rects := h.WFS.Geometry()
		parts := make([]string, len(rects))
		for i, r := range rects {
			parts[i] = fmt.Sprintf("%d,%d,%d,%d", r.LX, r.LY, r.TX, r.TY)
		}
		return verb, strings.Join(parts, " "), nil
	case "commands":
		return verb, commandsPayload(wfsCommands), nil
	case "calib":
		return verb, h.WFS.LastCalibStep().String(), nil
	case "status":
		return verb, statusPayload(h.WFS.Status()), nil
	}
	return verb, "", fmt.Errorf("unknown get target %q", rest[0])
}

func (h *WFSHandler) handleMLA(rest []string) (verb, payload string, err error) {
	verb = "mla"
	if len(rest) == 0 {
		return verb, "", fmt.Errorf("usage: mla add|del ...")
	}
	switch rest[0] {
	case "add":
		if len(rest) != 5 {
			return verb, "", fmt.Errorf("usage: mla add <lx> <ly> <tx> <ty>")
		}
		coords, err := parseFloatsArg(rest[1:])
		if err != nil {
			return verb, "", err
		}
		r := shiftengine.Rect{LX: int(coords[0]), LY: int(coords[1]), TX: int(coords[2]), TY: int(coords[3])}
		if err := h.WFS.AddSubimage(r); err != nil {
			return verb, "", err
		}
		return verb, "", nil
	case "del":
		if len(rest) != 2 {
			return verb, "", fmt.Errorf("usage: mla del <idx>")
		}
		idx, err := parseIntArg(rest[1])
		if err != nil {
			return verb, "", err
		}
		if err := h.WFS.DelSubimage(idx); err != nil {
			return verb, "", err
		}
		return verb, "", nil
	}
	return verb, "", fmt.Errorf("unknown mla command %q", rest[0])
}

func (h *WFSHandler) handleCalib(rest []string) (verb, payload string, err error) {
	verb = "calib"
	if len(rest) == 0 {
		return verb, "", fmt.Errorf("usage: calib zero|influence [amp] [cutoff]|offsetvec x y|svd [cutoff]")
	}
	switch rest[0] {
	case "offsetvec":
		if len(rest) != 3 {
			return verb, "", fmt.Errorf("usage: calib offsetvec <x> <y>")
		}
		xy, err := parseFloatsArg(rest[1:])
		if err != nil {
			return verb, "", err
		}
		h.WFS.CalibOffset(xy[0], xy[1])
		return verb, "", nil
	case "zero":
		go func() {
			ref, err := h.WFS.Zero(context.Background(), h.Cam, h.WFCReset, h.Sim)
			if err != nil {
				h.Srv.Broadcast("calib", "calib", fmt.Sprintf("zero failed :%s", err))
				return
			}
			h.Srv.Broadcast("calib", "calib", fmt.Sprintf("zero :%s", floatsToString(ref)))
		}()
		return verb, "started", nil
	case "influence":
		amp, cutoff := h.CalibAmp, h.CalibCutoff
		if len(rest) >= 2 {
			if amp, err = parseFloatArg(rest[1]); err != nil {
				return verb, "", err
			}
		}
		if len(rest) >= 3 {
			if cutoff, err = parseFloatArg(rest[2]); err != nil {
				return verb, "", err
			}
		}
		go func() {
			r, err := h.WFS.CalibInfluence(context.Background(), h.Cam, h.WFC, []float64{-amp, amp}, cutoff)
			if err != nil {
				h.Srv.Broadcast("calib", "calib", fmt.Sprintf("influence failed :%s", err))
				return
			}
			h.Srv.Broadcast("calib", "calib", fmt.Sprintf("svd singvals :%s", floatsToString(r.SingularValues)))
		}()
		return verb, "started", nil
	case "svd":
		cutoff := h.CalibCutoff
		if len(rest) >= 2 {
			if cutoff, err = parseFloatArg(rest[1]); err != nil {
				return verb, "", err
			}
		}
		go func() {
			r, err := h.WFS.RebuildSVD(h.WFC.Name(), cutoff)
			if err != nil {
				h.Srv.Broadcast("calib", "calib", fmt.Sprintf("svd failed :%s", err))
				return
			}
			h.Srv.Broadcast("calib", "calib", fmt.Sprintf("svd singvals :%s", floatsToString(r.SingularValues)))
		}()
		return verb, "started", nil
	}
	return verb, "", fmt.Errorf("unknown calib command %q", rest[0])
}

// telescopeCommands lists TelescopeHandler's command descriptors for "get
// commands", per spec §6.
var telescopeCommands = []string{
	"get tel_track|tel_units|pixshift", "set ccd_ang <f>", "set scalefac <fx> <fy>", "set ttgain <p> <i> <d>",
	"get commands", "get calib", "get status",
}

// TelescopeHandler adapts a *telescope.Telescope to the protocol's
// "get tel_track|pixshift|tel_units|ttgain" and
// "set ccd_ang|scalefac|ttgain" commands.
type TelescopeHandler struct {
	Tel *telescope.Telescope
}

func (h *TelescopeHandler) Handle(s *Session, args []string) (verb, payload string, err error) {
	if len(args) == 0 {
		return "", "", fmt.Errorf("empty command")
	}
	verb = args[0]
	rest := args[1:]

	switch verb {
	case "get":
		return h.handleGet(rest)
	case "set":
		return h.handleSet(rest)
	}
	return verb, "", fmt.Errorf("unknown telescope command %q", verb)
}

func (h *TelescopeHandler) handleGet(rest []string) (verb, payload string, err error) {
	verb = "get"
	if len(rest) == 0 {
		return verb, "", fmt.Errorf("usage: get tel_track|pixshift|tel_units|ttgain")
	}
	switch rest[0] {
	case "tel_track":
		x, y := h.Tel.Track()
		return verb, fmt.Sprintf("%g %g", x, y), nil
	case "pixshift":
		x, y := h.Tel.PixShift()
		return verb, fmt.Sprintf("%g %g", x, y), nil
	case "tel_units":
		sx, sy := h.Tel.Units()
		return verb, fmt.Sprintf("%g %g", sx, sy), nil
	case "ttgain":
		g := h.Tel.Gain()
		return verb, fmt.Sprintf("%g %g %g", g.P, g.I, g.D), nil
	case "commands":
		return verb, commandsPayload(telescopeCommands), nil
	case "calib":
		sx, sy := h.Tel.Units()
		return verb, fmt.Sprintf("ccd_ang=%g scalefac=%g,%g", h.Tel.CCDAngle(), sx, sy), nil
	case "status":
		return verb, statusPayload(h.Tel.Status()), nil
	}
	return verb, "", fmt.Errorf("unknown get target %q", rest[0])
}

func (h *TelescopeHandler) handleSet(rest []string) (verb, payload string, err error) {
	verb = "set"
	if len(rest) == 0 {
		return verb, "", fmt.Errorf("usage: set ccd_ang|scalefac|ttgain ...")
	}
	switch rest[0] {
	case "ccd_ang":
		if len(rest) != 2 {
			return verb, "", fmt.Errorf("usage: set ccd_ang <f>")
		}
		v, err := parseFloatArg(rest[1])
		if err != nil {
			return verb, "", err
		}
		h.Tel.SetCCDAngle(v)
		return verb, rest[1], nil
	case "scalefac":
		if len(rest) != 3 {
			return verb, "", fmt.Errorf("usage: set scalefac <fx> <fy>")
		}
		fxy, err := parseFloatsArg(rest[1:])
		if err != nil {
			return verb, "", err
		}
		h.Tel.SetScaleFactor(fxy[0], fxy[1])
		return verb, "", nil
	case "ttgain":
		if len(rest) != 4 {
			return verb, "", fmt.Errorf("usage: set ttgain <p> <i> <d>")
		}
		g, err := parseFloatsArg(rest[1:])
		if err != nil {
			return verb, "", err
		}
		h.Tel.SetGain(telescope.Gain{P: g[0], I: g[1], D: g[2]})
		return verb, "", nil
	}
	return verb, "", fmt.Errorf("unknown set target %q", rest[0])
}
