// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

// Package app wires the device wrappers, hot-plug watcher and Charlieplex
// scheduler into a controller running on a shared reactor.
//
// All controller state, the device registry and the LED array, is confined
// to a single reactor.Strand.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/warthog618/gpioplex"
	"github.com/warthog618/gpioplex/charlie"
	"github.com/warthog618/gpioplex/events"
	"github.com/warthog618/gpioplex/hotplug"
	"github.com/warthog618/gpioplex/metrics"
	"github.com/warthog618/gpioplex/reactor"
	"github.com/warthog618/gpioplex/record"
	"github.com/warthog618/gpioplex/registry"
	"github.com/warthog618/gpioplex/uapi"
	"golang.org/x/sys/unix"
)

// Config is the static configuration of an App.
type Config struct {
	// Dir is the directory watched for joystick device nodes.
	Dir string

	// Chip is the name or path of the GPIO chip.
	//
	// An empty Chip disables GPIO.
	Chip string

	// Consumer is the label applied to requested lines.
	Consumer string

	// Inputs are the offsets of the edge detecting input lines.
	Inputs []int

	// Edges selects the input edges detected: "both", "rising" or
	// "falling".
	Edges string

	// Bias selects the input bias: "pull-up", "pull-down", "disabled", or
	// "as-is" to leave the bias unchanged.
	Bias string

	// ActiveLow inverts the inputs, so a button pulling a line low reports
	// a rising edge when pressed.
	ActiveLow bool

	// EventBufferSize is the number of edge events the kernel buffers for
	// the inputs. Zero selects the kernel default.
	EventBufferSize int

	// Outputs are the offsets of the lines driving the LED matrix.
	Outputs []int

	// Pairs locates each LED on the Outputs, by index.
	Pairs []charlie.Pair

	Bindings Bindings

	// Workers is the number of goroutines pumping the reactor.
	//
	// Zero selects one per CPU.
	Workers int
}

// DefaultConfig returns the configuration for a 20 LED matrix on a
// Raspberry Pi.
func DefaultConfig() Config {
	return Config{
		Dir:      "/dev/input",
		Chip:     "/dev/gpiochip0",
		Consumer: "gpioplex",
		Inputs:   []int{17, 22, 23, 27},
		Edges:    "both",
		Bias:     "pull-up",
		Outputs:  []int{13, 19, 26, 20, 21},
		Pairs:    append([]charlie.Pair(nil), charlie.DefaultPairs...),
		Bindings: DefaultBindings(),
	}
}

// ErrInvalidConfig indicates the Config cannot be used.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks the Config is usable.
func (c Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("no device directory: %w", ErrInvalidConfig)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers %d: %w", c.Workers, ErrInvalidConfig)
	}
	if _, err := c.inputOptions(); err != nil {
		return err
	}
	if c.Chip != "" {
		if err := charlie.Validate(c.Pairs, len(c.Outputs)); err != nil {
			return err
		}
	}
	return c.Bindings.Validate(len(c.Pairs))
}

var (
	edgeOptions = map[string]gpioplex.LineOption{
		"":        gpioplex.WithBothEdges,
		"both":    gpioplex.WithBothEdges,
		"rising":  gpioplex.WithRisingEdge,
		"falling": gpioplex.WithFallingEdge,
	}
	biasOptions = map[string]gpioplex.LineOption{
		"":          gpioplex.WithPullUp,
		"pull-up":   gpioplex.WithPullUp,
		"pull-down": gpioplex.WithPullDown,
		"disabled":  gpioplex.WithBiasDisabled,
		"as-is":     nil,
	}
)

// inputOptions returns the options used to request the input lines.
func (c Config) inputOptions() ([]gpioplex.LineOption, error) {
	edge, ok := edgeOptions[c.Edges]
	if !ok {
		return nil, fmt.Errorf("edges %q: %w", c.Edges, ErrInvalidConfig)
	}
	bias, ok := biasOptions[c.Bias]
	if !ok {
		return nil, fmt.Errorf("bias %q: %w", c.Bias, ErrInvalidConfig)
	}
	if c.EventBufferSize < 0 {
		return nil, fmt.Errorf("event buffer size %d: %w", c.EventBufferSize, ErrInvalidConfig)
	}
	oo := []gpioplex.LineOption{edge}
	if bias != nil {
		oo = append(oo, bias)
	}
	if c.ActiveLow {
		oo = append(oo, gpioplex.AsActiveLow)
	}
	if c.EventBufferSize > 0 {
		oo = append(oo, gpioplex.WithEventBufferSize(c.EventBufferSize))
	}
	return oo, nil
}

// Joystick is an open joystick that may be registered.
//
// It is satisfied by *gpioplex.Joystick.
type Joystick interface {
	registry.Handle

	// Key identifies the device node that was opened.
	Key() registry.Key
	AsyncReadEvents(r gpioplex.AsyncReader, buf []byte, h func(gpioplex.JoystickEvents, error)) error
}

// Opener opens the joystick at path.
type Opener func(path string) (Joystick, error)

const (
	joystickBufferEvents = 64
	edgeBufferEvents     = 16
)

// App is the controller.
type App struct {
	cfg     Config
	logger  *slog.Logger
	bus     *events.Bus
	metrics *metrics.Metrics
	open    Opener

	r      *reactor.Reactor
	strand *reactor.Strand
	reg    *registry.Registry[*device]
	leds   *charlie.Array
	watch  *gpioplex.Inotify
	hp     *hotplug.Watcher

	chip    *gpioplex.Chip
	inputs  *gpioplex.Lines
	outputs *gpioplex.Lines
	sched   *charlie.Scheduler
	edges   *EdgeDispatcher
	edgeBuf []byte
	edgeRdr gpioplex.AsyncReader

	// mu covers err
	mu  sync.Mutex
	err error
}

// device is a registered joystick and the state of its read loop.
type device struct {
	Joystick
	key  registry.Key
	path string
	buf  []byte
}

// New creates an App, opens its devices and starts following the device
// directory.
//
// GPIO is optional. If the chip cannot be opened the App runs without it and
// the LEDs are tracked but never driven. Failure to request lines from a chip
// that is present is an error.
func New(cfg Config, options ...Option) (a *App, err error) {
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	ao := Options{
		logger: slog.Default(),
		open:   openJoystick,
	}
	for _, o := range options {
		o.applyOption(&ao)
	}
	a = &App{
		cfg:     cfg,
		logger:  ao.logger,
		bus:     ao.bus,
		metrics: ao.metrics,
		open:    ao.open,
		leds:    charlie.NewArray(cfg.Pairs),
	}
	if a.r, err = reactor.New(); err != nil {
		return nil, err
	}
	a.edgeRdr = a.r
	if ao.edgeReader != nil {
		a.edgeRdr = ao.edgeReader(a.r)
	}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()
	a.strand = reactor.NewStrand(a.r)
	a.reg = registry.New[*device](
		registry.WithLogger(a.logger),
		registry.WithObserver(deviceObserver{a.bus}))
	if a.watch, err = gpioplex.NewInotify(); err != nil {
		return
	}
	hopts := []hotplug.Option{
		hotplug.WithLogger(a.logger),
		hotplug.WithResyncHook(a.resynced),
	}
	a.hp = hotplug.New(cfg.Dir, a.watch, a.r, a.strand, a.insert, a.fail,
		append(hopts, ao.hotplug...)...)
	if err = a.openGPIO(); err != nil {
		return
	}
	// no workers are running yet, so the strand is trivially held
	if err = a.hp.Start(); err != nil {
		return
	}
	if a.inputs != nil {
		if err = a.readEdges(); err != nil {
			return
		}
	}
	if a.sched != nil {
		a.sched.Start()
	}
	return a, nil
}

func openJoystick(path string) (Joystick, error) {
	j, err := gpioplex.OpenJoystick(path)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (a *App) openGPIO() error {
	if a.cfg.Chip == "" {
		a.logger.Info("GPIO disabled")
		return nil
	}
	c, err := gpioplex.OpenChip(a.cfg.Chip, gpioplex.WithConsumer(a.cfg.Consumer))
	if err != nil {
		a.logger.Warn("GPIO unavailable, LEDs will not be driven", "chip", a.cfg.Chip, "err", err)
		return nil
	}
	a.chip = c
	if len(a.cfg.Inputs) > 0 {
		// validated by New
		oo, _ := a.cfg.inputOptions()
		a.inputs, err = a.requestLines(a.cfg.Inputs, oo...)
		if err != nil {
			return err
		}
		a.edges = NewEdgeDispatcher(a.edgeHooks(), a.bus, a.metrics)
		a.edgeBuf = record.NewBuffer(edgeBufferEvents * uapi.SizeofLineEvent)
	}
	if a.outputs, err = a.requestLines(a.cfg.Outputs, gpioplex.AsInput); err != nil {
		return err
	}
	a.sched = charlie.NewScheduler(a.leds, a.outputs, a.strand, a.fail,
		charlie.WithPassHook(a.metrics.Pass))
	a.logger.Info("GPIO ready", "chip", c.Name, "inputs", a.cfg.Inputs, "outputs", a.cfg.Outputs)
	return nil
}

// requestLines requests the lines from the chip, identifying the holders of
// any lines that are already in use.
func (a *App) requestLines(offsets []int, options ...gpioplex.LineOption) (*gpioplex.Lines, error) {
	l, err := a.chip.RequestLines(offsets, options...)
	if errors.Is(err, unix.EBUSY) {
		for _, o := range offsets {
			if li, lerr := a.chip.LineInfo(o); lerr == nil && li.Flags.IsUsed() {
				a.logger.Error("line busy", "chip", a.chip.Name, "offset", o, "consumer", li.Consumer)
			}
		}
	}
	return l, err
}

// edgeHooks binds the first two inputs to brightness control.
//
// Brightness control is not implemented so the hooks only report the request.
func (a *App) edgeHooks() map[int]EdgeHook {
	hooks := map[int]EdgeHook{}
	if len(a.cfg.Inputs) > 0 {
		hooks[a.cfg.Inputs[0]] = func(e *uapi.LineEvent) {
			a.logger.Info("brightness up", "offset", e.Offset, "seqno", e.Seqno)
		}
	}
	if len(a.cfg.Inputs) > 1 {
		hooks[a.cfg.Inputs[1]] = func(e *uapi.LineEvent) {
			a.logger.Info("brightness down", "offset", e.Offset, "seqno", e.Seqno)
		}
	}
	return hooks
}

// Run pumps the reactor until ctx is done or a fatal error occurs.
//
// Returns the fatal error, if any.
func (a *App) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, a.r.Stop)
	defer stop()
	workers := a.cfg.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	a.logger.Info("running", "dir", a.cfg.Dir, "workers", workers, "gpio", a.chip != nil)
	err := a.r.Run(workers)
	if a.sched != nil {
		a.sched.Stop()
	}
	if err != nil {
		return err
	}
	return a.Err()
}

// Err returns the fatal error that stopped the App, if any.
func (a *App) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Close releases all devices.
//
// Must not be called while Run is active.
func (a *App) Close() error {
	a.r.Stop()
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.reg != nil {
		a.reg.Close()
	}
	if a.watch != nil {
		a.watch.Close()
	}
	if a.inputs != nil {
		a.inputs.Close()
	}
	if a.outputs != nil {
		a.outputs.Close()
	}
	if a.chip != nil {
		a.chip.Close()
	}
	return a.r.Close()
}

// fail stops the App, recording the first error reported.
func (a *App) fail(err error) {
	a.mu.Lock()
	if a.err == nil {
		a.err = err
		a.logger.Error("fatal", "err", err)
	}
	a.mu.Unlock()
	a.r.Stop()
}

func (a *App) resynced() {
	events.Publish(a.bus, events.Resynced{Dir: a.cfg.Dir})
}

// insert registers the joystick at path, if not already registered, and
// starts its read loop.
//
// The device is identified by the node actually opened, as the node at path
// may be replaced at any time. Nodes that cannot be opened are skipped, as
// they may have been removed since being listed.
func (a *App) insert(path string) {
	j, err := a.open(path)
	if err != nil {
		a.logger.Debug("skipping device", "path", path, "err", err)
		return
	}
	k := j.Key()
	d, isNew, _ := a.reg.LookupOrRegister(k, func() (*device, error) {
		return &device{
			Joystick: j,
			key:      k,
			path:     path,
			buf:      record.NewBuffer(joystickBufferEvents * uapi.SizeofJSEvent),
		}, nil
	})
	if !isNew {
		j.Close()
		return
	}
	a.readJoystick(d)
}

// readJoystick issues the next read of the device.
//
// The next read is not issued until the events from the previous read have
// been applied, so events from one device are handled in order.
func (a *App) readJoystick(d *device) {
	err := d.AsyncReadEvents(a.r, d.buf, func(evts gpioplex.JoystickEvents, err error) {
		if errors.Is(err, reactor.ErrCanceled) {
			return
		}
		a.strand.Dispatch(func() {
			if err != nil {
				a.disconnect(d, err)
				return
			}
			a.handleJoystick(d, evts)
			a.readJoystick(d)
		})
	})
	if err != nil {
		a.disconnect(d, err)
	}
}

func (a *App) disconnect(d *device, err error) {
	a.logger.Debug("joystick read ended", "path", d.path, "err", err)
	// the key may have been reused by a later registration
	if cur, ok := a.reg.Get(d.key); ok && cur == d {
		a.reg.Remove(d.key)
	}
}

func (a *App) handleJoystick(d *device, evts gpioplex.JoystickEvents) {
	a.metrics.Records(metrics.StreamJoystick, record.Len(evts))
	changed := false
	for e := range evts.All() {
		if e.Type.IsInit() {
			a.logger.Debug("joystick initial state",
				"path", d.path,
				"type", e.Type.Kind(),
				"number", e.Number,
				"value", e.Value)
			continue
		}
		if a.cfg.Bindings.Apply(a.leds, e) {
			changed = true
		}
	}
	if changed {
		events.Publish(a.bus, events.LEDsChanged{States: a.leds.Snapshot()})
	}
}

func (a *App) readEdges() error {
	return a.inputs.AsyncReadEvents(a.edgeRdr, a.edgeBuf, func(evts gpioplex.EdgeEvents, err error) {
		if err != nil {
			if !errors.Is(err, reactor.ErrCanceled) {
				a.fail(fmt.Errorf("read edge events: %w", err))
			}
			return
		}
		a.strand.Dispatch(func() {
			a.metrics.Records(metrics.StreamGPIO, record.Len(evts))
			a.edges.Dispatch(evts)
			if err := a.readEdges(); err != nil {
				a.fail(err)
			}
		})
	})
}

// deviceObserver publishes registry membership changes.
type deviceObserver struct {
	bus *events.Bus
}

func (o deviceObserver) Connected(k registry.Key, h registry.Handle) {
	events.Publish(o.bus, events.DeviceConnected{Key: k.String(), Path: pathOf(h)})
}

func (o deviceObserver) Disconnected(k registry.Key, h registry.Handle) {
	events.Publish(o.bus, events.DeviceDisconnected{Key: k.String(), Path: pathOf(h)})
}

func pathOf(h registry.Handle) string {
	if d, ok := h.(*device); ok {
		return d.path
	}
	return ""
}
