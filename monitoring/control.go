package monitoring

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/sarchlab/vpsim/sim/timing"
)

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) stepEngine(w http.ResponseWriter, r *http.Request) {
	ps, err := strconv.ParseInt(mux.Vars(r)["ps"], 10, 64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.engine.StepFor(timing.VTimeInPS(ps))
	_, err = w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) stopEngine(w http.ResponseWriter, r *http.Request) {
	statusStr := r.URL.Query().Get("status")
	if statusStr == "" {
		m.engine.Stop()
		return
	}

	status, err := strconv.Atoi(statusStr)
	if err != nil {
		http.Error(w, "status must be an integer", http.StatusBadRequest)
		return
	}

	m.engine.StopWithStatus(status)
}

// lockEngine returns once the simulation is parked. It stays parked until
// /api/unlock.
func (m *Monitor) lockEngine(w http.ResponseWriter, _ *http.Request) {
	m.lockState.Lock()
	defer m.lockState.Unlock()

	if m.held {
		http.Error(w, "engine already locked", http.StatusConflict)
		return
	}

	m.engine.Lock()
	m.held = true

	fmt.Fprintf(w, "{\"now\":%d}", m.engine.CurrentTime())
}

func (m *Monitor) unlockEngine(w http.ResponseWriter, _ *http.Request) {
	m.lockState.Lock()
	defer m.lockState.Unlock()

	if !m.held {
		http.Error(w, "engine not locked", http.StatusConflict)
		return
	}

	m.held = false
	m.engine.Unlock()
}

func (m *Monitor) run(w http.ResponseWriter, _ *http.Request) {
	if m.engine.IsRunning() {
		http.Error(w, "simulation already running", http.StatusConflict)
		return
	}

	go func() {
		result := m.engine.Run()

		m.runLock.Lock()
		m.lastResult = result.String()
		m.runLock.Unlock()
	}()
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"now\":%d}", m.engine.CurrentTime())
}

type statusRsp struct {
	Now        int64  `json:"now"`
	Running    bool   `json:"running"`
	Paused     bool   `json:"paused"`
	Locked     bool   `json:"locked"`
	RunStatus  int    `json:"run_status"`
	LastResult string `json:"last_result,omitempty"`
}

func (m *Monitor) status(w http.ResponseWriter, _ *http.Request) {
	m.runLock.Lock()
	lastResult := m.lastResult
	m.runLock.Unlock()

	rsp := statusRsp{
		Now:        int64(m.engine.CurrentTime()),
		Running:    m.engine.IsRunning(),
		Paused:     m.engine.IsPaused(),
		Locked:     m.engine.IsLocked(),
		RunStatus:  m.engine.RunStatus(),
		LastResult: lastResult,
	}

	writeJSON(w, rsp)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}
