// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux

// Package mockup provides GPIO chips for testing, using the Linux gpio-mockup
// kernel module.
//
// Lines on mocked chips can be pulled from the test side, which generates
// edge events on requested inputs, and read back to observe driven outputs.
package mockup

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"
	"golang.org/x/sys/unix"
)

// Mockup represents a number of GPIO chips being mocked.
type Mockup struct {
	mu sync.Mutex
	cc []Chip
}

// Chip represents a single mocked GPIO chip.
type Chip struct {
	Name      string
	Label     string
	Lines     int
	DevPath   string
	DbgfsPath string
}

// New creates a new Mockup.
//
// A number of GPIO chips can be mocked, with the number of lines on each
// specified in lines. e.g. []int{4,6} would create two chips, the first with 4
// lines and the second with 6.
//
// Requires root, the gpio-mockup kernel module and Linux 5.10 or later. Only
// one Mockup can be present on a system at any time, so this unloads the
// gpio-mockup module if it is already loaded.
func New(lines []int, namedLines bool) (*Mockup, error) {
	if len(lines) == 0 {
		return nil, unix.EINVAL
	}
	if err := IsSupported(); err != nil {
		return nil, err
	}
	// remove any existing mockup setup
	exec.Command("rmmod", "gpio-mockup").Run()

	args := []string{"gpio-mockup"}
	if namedLines {
		args = append(args, "gpio_mockup_named_lines")
	}
	ranges := make([]string, 0, 2*len(lines))
	for _, l := range lines {
		ranges = append(ranges, "-1", strconv.Itoa(l))
	}
	args = append(args, "gpio_mockup_ranges="+strings.Join(ranges, ","))

	um, err := newUdevMonitor()
	if err != nil {
		return nil, fmt.Errorf("failed to start udev monitor: %w", err)
	}
	defer um.close()

	if err = exec.Command("modprobe", args...).Run(); err != nil {
		return nil, fmt.Errorf("failed to load gpio-mockup: %w", err)
	}
	if err = unix.Access("/sys/kernel/debug/gpio-mockup", unix.R_OK|unix.W_OK); err != nil {
		return nil, err
	}
	cc, err := um.chips(lines)
	if err != nil {
		return nil, err
	}
	return &Mockup{cc: cc}, nil
}

// Chip returns the mocked chip indicated by num.
func (m *Mockup) Chip(num int) (*Chip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if num < 0 || num >= len(m.cc) {
		return nil, ErrorIndexRange{num, len(m.cc)}
	}
	return &m.cc[num], nil
}

// Chips returns the number of chips mocked.
func (m *Mockup) Chips() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cc)
}

// Close unloads the gpio-mockup module.
func (m *Mockup) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cc = nil
	return exec.Command("rmmod", "gpio-mockup").Run()
}

// Value returns the current level of the line.
//
// For an output this is the driven level. For an input it is the pull.
func (c *Chip) Value(line int) (int, error) {
	if line < 0 || line >= c.Lines {
		return 0, ErrorIndexRange{line, c.Lines}
	}
	v, err := os.ReadFile(fmt.Sprintf("%s%d", c.DbgfsPath, line))
	if err != nil {
		return 0, err
	}
	if len(v) > 0 && v[0] == '1' {
		return 1, nil
	}
	return 0, nil
}

// SetValue sets the pull of the line, generating an edge on inputs if the
// level changes.
func (c *Chip) SetValue(line int, value int) error {
	if line < 0 || line >= c.Lines {
		return ErrorIndexRange{line, c.Lines}
	}
	v := []byte{'0'}
	if value != 0 {
		v[0] = '1'
	}
	return os.WriteFile(fmt.Sprintf("%s%d", c.DbgfsPath, line), v, 0)
}

// IsSupported returns an error if this package cannot run on this platform.
func IsSupported() error {
	if os.Geteuid() != 0 {
		return ErrNotRoot
	}
	return CheckKernelVersion(Semver{5, 10})
}

// KernelVersion returns the running kernel version.
func KernelVersion() (Semver, error) {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return nil, err
	}
	release := unix.ByteSliceToString(uname.Release[:])
	vers := kernelRE.FindStringSubmatch(release)
	if len(vers) != 4 {
		return nil, fmt.Errorf("can't parse kernel release: %s", release)
	}
	v := Semver{}
	for _, vf := range vers[1:] {
		n, err := strconv.ParseUint(vf, 10, 8)
		if err != nil {
			return nil, err
		}
		v = append(v, byte(n))
	}
	return v, nil
}

var kernelRE = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)

// CheckKernelVersion returns an error if the kernel version is less than the
// min.
func CheckKernelVersion(min Semver) error {
	kv, err := KernelVersion()
	if err != nil {
		return err
	}
	if kv.Compare(min) < 0 {
		return ErrorBadVersion{Need: min, Have: kv}
	}
	return nil
}

// Semver is a version, Major, Minor, Patch.
type Semver []byte

// Compare returns -1, 0 or 1 as v is less than, equal to, or greater than o.
//
// Missing trailing fields are treated as zero.
func (v Semver) Compare(o Semver) int {
	for i := 0; i < len(v) || i < len(o); i++ {
		var a, b byte
		if i < len(v) {
			a = v[i]
		}
		if i < len(o) {
			b = o[i]
		}
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (v Semver) String() string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.Itoa(int(f))
	}
	return strings.Join(parts, ".")
}

// ErrNotRoot indicates the mockup requires root to load the kernel module.
var ErrNotRoot = errors.New("mockup requires root")

// ErrorIndexRange indicates the requested index is beyond the limit of the array.
type ErrorIndexRange struct {
	Req   int
	Limit int
}

func (e ErrorIndexRange) Error() string {
	return fmt.Sprintf("index out of range - got %d, limit is %d.", e.Req, e.Limit)
}

// ErrorBadVersion indicates the kernel version is insufficient.
type ErrorBadVersion struct {
	Need Semver
	Have Semver
}

func (e ErrorBadVersion) Error() string {
	return fmt.Sprintf("require kernel %s or later, but running %s", e.Need, e.Have)
}

// udevMonitor collects the udev add events for mocked chips, which provide
// the device node names.
type udevMonitor struct {
	conn  *netlink.UEventConn
	queue chan netlink.UEvent
	quit  chan struct{}
	done  chan struct{}
}

func newUdevMonitor() (*udevMonitor, error) {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return nil, fmt.Errorf("unable to connect to netlink kobject uevent socket: %w", err)
	}
	action := "add"
	matcher := &netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "gpio",
			"DEVPATH":   `/devices/platform/gpio-mockup\.\d+/gpiochip\d+`,
		},
	}
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	quit := conn.Monitor(queue, errs, matcher)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case err := <-errs:
				slog.Warn("udev monitor", "err", err)
			case <-done:
				return
			}
		}
	}()
	return &udevMonitor{conn: conn, queue: queue, quit: quit, done: done}, nil
}

func (m *udevMonitor) chips(lines []int) ([]Chip, error) {
	evts := make([]netlink.UEvent, len(lines))
	for i := range evts {
		select {
		case evts[i] = <-m.queue:
		case <-time.After(time.Second):
			return nil, errors.New("timeout waiting for udev events")
		}
	}
	sort.Slice(evts, func(i, j int) bool {
		return evts[i].Env["DEVNAME"] < evts[j].Env["DEVNAME"]
	})
	cc := make([]Chip, len(lines))
	for i, l := range lines {
		devpath := evts[i].Env["DEVNAME"]
		if !strings.HasPrefix(devpath, "/dev/") {
			devpath = "/dev/" + devpath
		}
		name := strings.TrimPrefix(devpath, "/dev/")
		var num int
		if _, err := fmt.Sscanf(name, "gpiochip%d", &num); err != nil {
			return nil, fmt.Errorf("failed to parse chip num: %w", err)
		}
		cc[i] = Chip{
			Name:      name,
			Label:     fmt.Sprintf("gpio-mockup-%c", 'A'+i),
			Lines:     l,
			DevPath:   devpath,
			DbgfsPath: fmt.Sprintf("/sys/kernel/debug/gpio-mockup/gpiochip%d/", num),
		}
	}
	return cc, nil
}

func (m *udevMonitor) close() {
	m.quit <- struct{}{}
	close(m.done)
	m.conn.Close()
}
