/*
DESCRIPTION
  aoloopd is the adaptive-optics control daemon: it loads a Config, wires
  up a camera, wavefront corrector, wavefront sensor, and telescope mount
  (against the optical simulator in the absence of real hardware), starts
  the loop engine and the network session server, and runs until signalled
  to stop.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package main is the aoloopd daemon entrypoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/aoctl/internal/config"
	"github.com/ausocean/aoctl/internal/device"
	"github.com/ausocean/aoctl/internal/device/camera"
	"github.com/ausocean/aoctl/internal/device/telescope"
	"github.com/ausocean/aoctl/internal/device/wfc"
	"github.com/ausocean/aoctl/internal/device/wfs"
	"github.com/ausocean/aoctl/internal/loopengine"
	"github.com/ausocean/aoctl/internal/persist"
	"github.com/ausocean/aoctl/internal/reconstruct"
	"github.com/ausocean/aoctl/internal/session"
	"github.com/ausocean/aoctl/internal/shiftengine"
	"github.com/ausocean/aoctl/internal/simulator"
	"github.com/ausocean/utils/logging"
)

// Current software version.
const version = "v0.1.0"

// Logging configuration.
const (
	logPath      = "/var/log/aoloopd/aoloopd.log"
	logMaxSize   = 100 // MB
	logMaxBackup = 5
	logMaxAge    = 28 // days
)

const pkg = "aoloopd: "

func main() {
	configPath := flag.String("c", "aoloopd.conf", "path to config file")
	verbose := flag.Bool("v", false, "verbose (debug) logging")
	quiet := flag.Bool("q", false, "quiet (warning and above only)")
	noDaemon := flag.Bool("nodaemon", false, "run in the foreground, skipping systemd readiness notification")
	simFlag := flag.Bool("s", true, "run against the optical simulator (the only backend this build supports)")
	port := flag.String("p", "", "override the configured listen address (host:port)")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}
	if !*simFlag {
		fmt.Fprintln(os.Stderr, pkg+"no hardware backend is built into this binary; rerun with -s")
		os.Exit(1)
	}

	level := logging.Info
	switch {
	case *verbose:
		level = logging.Debug
	case *quiet:
		level = logging.Warning
	}

	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(level, io.MultiWriter(fileLog, os.Stderr), true)
	log.Info("starting aoloopd", "version", version, "config", *configPath)

	cfg := &config.Config{Logger: log, ConfigPath: *configPath}
	vars, err := config.ParseFile(*configPath)
	if err != nil {
		log.Warning(pkg+"could not read config file, using defaults", "error", err.Error())
	} else {
		cfg.Update(vars)
	}
	if *port != "" {
		cfg.ListenAddr = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(pkg+"config validation failed", "error", err.Error())
	}

	watcher, err := config.WatchReload(cfg)
	if err != nil {
		log.Warning(pkg+"config reload watcher not started", "error", err.Error())
	} else {
		defer watcher.Close()
	}

	registry := device.NewRegistry()

	cam, simCam := newSimCamera(cfg, log)
	wfcDev := newWFC(cfg, log)
	wfsDev := newWFS(cfg, wfcDev, log)
	telDev := telescope.New("telescope0", &simulator.TelescopeDriver{}, log)
	telDev.SetCCDAngle(cfg.CCDAngle)
	telDev.SetScaleFactor(cfg.TelScaleX, cfg.TelScaleY)
	telDev.SetGain(telescope.Gain{P: cfg.TTGainP, I: cfg.TTGainI, D: cfg.TTGainD})

	simCam.Correction = simulator.WFCSurface{WFC: wfcDev, Grid: actuatorGrid(wfcDev.Nact())}
	simControl := simulator.SimControl{Seeing: simCam.Seeing, Err: simCam.ErrSource}

	for _, d := range []device.Device{cam, wfcDev, wfsDev, telDev} {
		if err := registry.Register(d); err != nil {
			log.Fatal(pkg+"device registration failed", "error", err.Error())
		}
		if err := d.Start(); err != nil {
			log.Fatal(pkg+"device start failed", "name", d.Name(), "error", err.Error())
		}
	}

	calibrate := func(ctx context.Context) error {
		_, err := wfsDev.Calibrate(ctx, cam, wfcDev, wfcDev.Reset, simControl, wfs.CalibParams{
			Amplitudes: []float64{-cfg.CalibAmp, cfg.CalibAmp},
			Cutoff:     cfg.CalibCutoff,
		})
		return err
	}

	eng := loopengine.New(cam, wfsDev, wfcDev, telDev, calibrate, cfg.WFCRetain, log)

	srv := session.NewServer(&session.GlobalHandler{Registry: registry, Engine: eng, Level: int8(level)}, log)
	srv.Register(cam.Name(), &session.CameraHandler{Cam: cam, Srv: srv})
	srv.Register(wfcDev.Name(), &session.WFCHandler{WFC: wfcDev, Rng: rand.New(rand.NewSource(1))})
	srv.Register(wfsDev.Name(), &session.WFSHandler{
		WFS: wfsDev, Engine: eng,
		Cam: cam, WFC: wfcDev, WFCReset: wfcDev.Reset, Sim: simControl, Srv: srv,
		CalibAmp: cfg.CalibAmp, CalibCutoff: cfg.CalibCutoff,
	})
	srv.Register(telDev.Name(), &session.TelescopeHandler{Tel: telDev})

	ctx, cancel := context.WithCancel(context.Background())
	go eng.Run(ctx)

	go func() {
		if err := srv.ListenAndServe(cfg.ListenAddr); err != nil {
			log.Error(pkg+"session server stopped", "error", err.Error())
		}
	}()

	if !*noDaemon {
		if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
			log.Warning(pkg+"systemd notify failed", "error", err.Error())
		} else if ok {
			log.Debug("notified systemd readiness")
		}
	}

	log.Info("aoloopd running", "addr", cfg.ListenAddr)
	run(ctx, cancel, srv, cam, wfcDev, wfsDev, telDev, log)
}

// run blocks until SIGINT/SIGTERM, then stops the server, the loop engine,
// and every device in turn.
func run(ctx context.Context, cancel context.CancelFunc, srv *session.Server, devices ...interface{}) {
	log := devices[len(devices)-1].(logging.Logger)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	cancel()
	if err := srv.Close(); err != nil {
		log.Warning(pkg+"session server close failed", "error", err.Error())
	}
	for _, d := range devices[:len(devices)-1] {
		if dev, ok := d.(device.Device); ok {
			if err := dev.Stop(); err != nil {
				log.Warning(pkg+"device stop failed", "name", dev.Name(), "error", err.Error())
			}
		}
	}
	time.Sleep(100 * time.Millisecond)
}

// newSimCamera builds the camera device and its backing simulator.Camera,
// returning both since later wiring (the WFC correction surface) needs to
// mutate the simulator camera's Correction field after the WFC exists.
func newSimCamera(cfg *config.Config, log logging.Logger) (*camera.Camera, *simulator.Camera) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	source := simulator.GenerateSource(cfg.CameraWidth*2, cfg.CameraHeight*2, rng)
	seeing := simulator.NewSeeing(source, cfg.CameraWidth, cfg.CameraHeight, 0.3, 0.1, 1, simulator.Linear)

	subs := subimages(cfg)
	errSrc := simulator.NewErrorSource(actuatorGrid(len(subs)), 0.1)

	mla := simulator.MLAParams{TelRadius: float64(min(cfg.CameraWidth, cfg.CameraHeight)) / 2, TelAptFillMin: 0.5, MLAFac: 1}
	ccd := simulator.CCDParams{NoiseAmp: 2}

	simCam := simulator.NewCamera(cfg.CameraWidth, cfg.CameraHeight, subs, mla, ccd, seeing, errSrc, nil, rand.NewSource(time.Now().UnixNano()))
	cam := camera.New("camera0", simCam, cfg.RingSize, log)
	cam.SetSettings(camera.Settings{Exposure: cfg.Exposure, Interval: cfg.Interval, Gain: cfg.Gain, Offset: cfg.Offset})
	return cam, simCam
}

// subimages builds the simulator's microlens-array rectangle list from
// the same lattice parameters as the WFS geometry, so the simulated
// optics and the measurement geometry agree.
func subimages(cfg *config.Config) []simulator.Subimage {
	rects := wfs.GenerateGrid(wfs.GridParams{
		FrameW: cfg.CameraWidth, FrameH: cfg.CameraHeight,
		SubW: cfg.SubW, SubH: cfg.SubH,
		PitchX: cfg.PitchX, PitchY: cfg.PitchY,
		Shape:   wfs.Circular,
		Overlap: 0.8,
	})
	out := make([]simulator.Subimage, len(rects))
	for i, r := range rects {
		out[i] = simulator.Subimage{LX: r.LX, LY: r.LY, TX: r.TX, TY: r.TY}
	}
	return out
}

// actuatorGrid lays n virtual actuators on a square lattice spanning
// [-1,1]^2, the simplest layout consistent with the simulator's
// normalised Gaussian-sum mirror surface.
func actuatorGrid(n int) simulator.ActuatorGrid {
	side := int(math.Ceil(math.Sqrt(float64(n))))
	if side < 1 {
		side = 1
	}
	positions := make([][2]float64, 0, n)
	for i := 0; i < n; i++ {
		row, col := i/side, i%side
		var x, y float64
		if side > 1 {
			x = -1 + 2*float64(col)/float64(side-1)
			y = -1 + 2*float64(row)/float64(side-1)
		}
		positions = append(positions, [2]float64{x, y})
	}
	return simulator.ActuatorGrid{Positions: positions, ActSize: 1.0 / float64(side)}
}

// newWFC builds the WFC device against the simulator driver, loading its
// actuation map from Config.ActMapPath if one is configured.
func newWFC(cfg *config.Config, log logging.Logger) *wfc.WFC {
	actMap, err := persist.LoadActMap(cfg.ResolvePath(cfg.ActMapPath))
	if err != nil {
		log.Warning(pkg+"could not load actuation map, using identity", "error", err.Error())
		actMap = nil
	}
	nvirt := len(subimages(cfg))
	if nvirt == 0 {
		nvirt = 1
	}
	w := wfc.New("wfc0", nvirt, nvirt, actMap, simulator.WFCDriver{}, log)
	w.SetMaxAct(cfg.WFCMaxAct)
	w.SetGain(wfc.Gain{P: cfg.WFCGainP})
	w.SetWaffleSets(cfg.WaffleEven, cfg.WaffleOdd)
	return w
}

// newWFS builds the WFS device, its MLA geometry (from Config.MLAPath if
// present, otherwise generated from the lattice parameters), and its
// modal basis transform.
func newWFS(cfg *config.Config, wfcDev *wfc.WFC, log logging.Logger) *wfs.WFS {
	eng := shiftengine.New(cfg.ShiftWorkers)
	w := wfs.New("wfs0", eng, log)

	rects, err := persist.ReadMLA(cfg.ResolvePath(cfg.MLAPath))
	if err != nil {
		rects = wfs.GenerateGrid(wfs.GridParams{
			FrameW: cfg.CameraWidth, FrameH: cfg.CameraHeight,
			SubW: cfg.SubW, SubH: cfg.SubH,
			PitchX: cfg.PitchX, PitchY: cfg.PitchY,
			Shape:   wfs.Circular,
			Overlap: 0.8,
		})
	}
	w.SetGeometry(rects)

	basis, transform := resolveBasis(cfg, rects)
	w.SetBasis(basis, transform)
	return w
}

// resolveBasis maps Config.Basis onto a reconstruct.Basis and, for
// ZERNIKE, precomputes its Transform from the subaperture centres. Every
// other value resolves to SENSOR with no transform.
func resolveBasis(cfg *config.Config, rects []shiftengine.Rect) (reconstruct.Basis, *reconstruct.Transform) {
	positions := make([][2]float64, len(rects))
	for i, r := range rects {
		cx := float64(r.LX+r.TX) / 2
		cy := float64(r.LY+r.TY) / 2
		positions[i] = [2]float64{
			2*cx/float64(cfg.CameraWidth) - 1,
			2*cy/float64(cfg.CameraHeight) - 1,
		}
	}
	switch cfg.Basis {
	case "zernike":
		return reconstruct.Zernike, reconstruct.BuildZernikeTransform(cfg.NumModes, positions)
	case "kl", "mirror":
		// KL and mirror bases both need an empirically derived transform
		// (from a statistics-of-turbulence fit or the WFC's own influence
		// matrix respectively); neither has a closed form like Zernike's
		// polynomials, so until one is fit and persisted, fall back to
		// sensor coordinates rather than fabricate a transform.
		return reconstruct.Sensor, nil
	default:
		return reconstruct.Sensor, nil
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
