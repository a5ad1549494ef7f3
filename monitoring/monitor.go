// Package monitoring turns a running simulation into an HTTP server. An
// external controller uses it to pause, step, lock and inspect the
// simulation.
package monitoring

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/pkg/errors"

	"github.com/sarchlab/vpsim/monitoring/web"
	"github.com/sarchlab/vpsim/sim/clock"
	"github.com/sarchlab/vpsim/sim/modeling"
	"github.com/sarchlab/vpsim/sim/timing"
)

// Monitor exposes a simulation over HTTP.
type Monitor struct {
	engine     *timing.Engine
	clocks     []*clock.Engine
	components []modeling.Component
	portNumber int
	assetDir   string

	// held is true while a controller holds the engine through /api/lock.
	lockState sync.Mutex
	held      bool

	runLock    sync.Mutex
	lastResult string

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	listener net.Listener
	server   *http.Server
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port the server listens on. Ports below 1000 are
// refused and a random port is used instead.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithAssetDir makes the monitor serve the dashboard pages from dir instead
// of the ones built into the binary. A dir that is not a directory is
// ignored.
func (m *Monitor) WithAssetDir(dir string) *Monitor {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr,
			"Monitor asset directory %q is not usable, "+
				"serving the built-in pages instead.\n", dir)
		dir = ""
	}

	m.assetDir = dir

	return m
}

// RegisterEngine registers the time engine of the simulation.
func (m *Monitor) RegisterEngine(e *timing.Engine) {
	m.engine = e
}

// RegisterClock registers a clock domain.
func (m *Monitor) RegisterClock(c *clock.Engine) {
	m.clocks = append(m.clocks, c)
}

// RegisterComponent registers a component to be inspected.
func (m *Monitor) RegisterComponent(c modeling.Component) {
	m.components = append(m.components, c)
}

// CreateProgressBar creates a progress bar shown by /api/progress.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := newProgressBar(name, total)

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a progress bar.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the HTTP handler of the monitor.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/pause", m.pauseEngine).Methods(http.MethodPost, http.MethodGet)
	api.HandleFunc("/continue", m.continueEngine).Methods(http.MethodPost, http.MethodGet)
	api.HandleFunc("/step/{ps:[0-9]+}", m.stepEngine).Methods(http.MethodPost, http.MethodGet)
	api.HandleFunc("/stop", m.stopEngine).Methods(http.MethodPost, http.MethodGet)
	api.HandleFunc("/lock", m.lockEngine).Methods(http.MethodPost, http.MethodGet)
	api.HandleFunc("/unlock", m.unlockEngine).Methods(http.MethodPost, http.MethodGet)
	api.HandleFunc("/run", m.run).Methods(http.MethodPost, http.MethodGet)
	api.HandleFunc("/now", m.now)
	api.HandleFunc("/status", m.status)
	api.HandleFunc("/clocks", m.listClocks)
	api.HandleFunc("/bindings", m.listBindings)
	api.HandleFunc("/list_components", m.listComponents)
	api.HandleFunc("/component/{name}", m.listComponentDetails)
	api.HandleFunc("/field/{json}", m.listFieldValue)
	api.HandleFunc("/progress", m.listProgressBars)
	api.HandleFunc("/resource", m.listResources)
	api.HandleFunc("/profile", m.collectProfile)

	r.PathPrefix("/").Handler(web.Handler(m.assetDir))

	return r
}

// StartServer starts serving in the background and returns the URL.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.listener = listener
	m.server = &http.Server{Handler: m.Router()}

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", m.URL())

	go func() {
		err := m.server.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			log.Panic(err)
		}
	}()

	return m.URL()
}

// StopServer closes the server.
func (m *Monitor) StopServer() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

// URL returns the address of the server, or "" if it is not started.
func (m *Monitor) URL() string {
	if m.listener == nil {
		return ""
	}

	return fmt.Sprintf("http://localhost:%d",
		m.listener.Addr().(*net.TCPAddr).Port)
}

// OpenInBrowser opens the monitor in the default browser.
func (m *Monitor) OpenInBrowser() error {
	if m.listener == nil {
		return errors.New("monitor server is not started")
	}

	return browser.OpenURL(m.URL())
}

// withEngineHeld runs fn while the simulation is parked between two
// activations. An /api/unlock arriving meanwhile waits until fn returns.
func (m *Monitor) withEngineHeld(fn func()) {
	m.lockState.Lock()
	defer m.lockState.Unlock()

	if !m.held {
		m.engine.Lock()
		defer m.engine.Unlock()
	}

	fn()
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
