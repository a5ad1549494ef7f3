package monitoring

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/vpsim/sim/modeling"
	"github.com/sarchlab/vpsim/sim/wiring"
)

type clockRsp struct {
	Name     string  `json:"name"`
	Freq     float64 `json:"freq"`
	Period   int64   `json:"period"`
	Cycles   int64   `json:"cycles"`
	Pending  int     `json:"pending"`
	Delayed  int     `json:"delayed"`
	RingSize int     `json:"ring_size"`
}

func (m *Monitor) listClocks(w http.ResponseWriter, _ *http.Request) {
	rsp := make([]clockRsp, 0, len(m.clocks))

	m.withEngineHeld(func() {
		for _, c := range m.clocks {
			c.Sync()
			rsp = append(rsp, clockRsp{
				Name:     c.Name(),
				Freq:     float64(c.Freq()),
				Period:   int64(c.Period()),
				Cycles:   c.Cycles(),
				Pending:  c.NumPending(),
				Delayed:  c.NumDelayed(),
				RingSize: c.RingSize(),
			})
		}
	})

	writeJSON(w, rsp)
}

type bindingRsp struct {
	Master string `json:"master"`
	Slave  string `json:"slave"`
	Kind   string `json:"kind"`
	MuxID  int    `json:"mux_id"`
}

func (m *Monitor) listBindings(w http.ResponseWriter, _ *http.Request) {
	rsp := []bindingRsp{}

	for _, c := range m.components {
		for _, p := range c.Ports() {
			master, ok := p.(wiring.MasterPort)
			if !ok {
				continue
			}

			for _, b := range master.Bindings() {
				rsp = append(rsp, bindingRsp{
					Master: b.Master,
					Slave:  b.Slave,
					Kind:   b.Kind.String(),
					MuxID:  b.MuxID,
				})
			}
		}
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, len(m.components))
	for i, c := range m.components {
		names[i] = c.Name()
	}

	writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	var err error
	m.withEngineHeld(func() {
		err = serializer.Serialize(w)
	})
	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.withEngineHeld(func() {
		err = serializer.Serialize(w)
	})
	dieOnErr(err)
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) modeling.Component {
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Component not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]*ProgressBar, len(m.progressBars))
	copy(bars, m.progressBars)
	m.progressBarsLock.Unlock()

	type barRsp struct {
		ID         string    `json:"id"`
		Name       string    `json:"name"`
		StartTime  time.Time `json:"start_time"`
		Total      uint64    `json:"total"`
		Finished   uint64    `json:"finished"`
		InProgress uint64    `json:"in_progress"`
	}

	rsp := make([]barRsp, len(bars))
	for i, b := range bars {
		finished, inProgress, total := b.Snapshot()
		rsp[i] = barRsp{
			ID:         b.ID,
			Name:       b.Name,
			StartTime:  b.StartTime,
			Total:      total,
			Finished:   finished,
			InProgress: inProgress,
		}
	}

	writeJSON(w, rsp)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memoryInfo, err := proc.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}
