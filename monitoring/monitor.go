// Package monitoring serves a read-only view of resolved fabrics over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/axifabric/addrmap"
	"github.com/sarchlab/axifabric/driver"
	"github.com/sarchlab/axifabric/fabric"
)

// Monitor turns the builds of a driver into a web server. It is a driver
// consumer, so every build that the driver completes shows up here. The most
// recent build is the one that the endpoint, region and plan routes show.
type Monitor struct {
	portNumber    int
	openBrowser   bool
	profileLength time.Duration

	lock    sync.RWMutex
	builds  []driver.Build
	decoder *addrmap.TreeDecoder
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		profileLength: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor.
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

// WithBrowser makes StartServer open the monitor in the default browser.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// WithProfileLength sets how long the profile route samples the CPU.
func (m *Monitor) WithProfileLength(d time.Duration) *Monitor {
	m.profileLength = d
	return m
}

// Consume registers a build to be shown.
func (m *Monitor) Consume(b driver.Build) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.builds = append(m.builds, b)
	m.decoder = b.Descriptor.Decoder()

	return nil
}

func (m *Monitor) current() (driver.Build, *addrmap.TreeDecoder, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	if len(m.builds) == 0 {
		return driver.Build{}, nil, false
	}

	return m.builds[len(m.builds)-1], m.decoder, true
}

// Router returns the handler of all the routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/builds", m.listBuilds)
	r.HandleFunc("/api/endpoints", m.listEndpoints)
	r.HandleFunc("/api/endpoint/{name}", m.listEndpointDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/regions", m.listRegions)
	r.HandleFunc("/api/decode/{addr}", m.decode)
	r.HandleFunc("/api/plans", m.listPlans)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	return r
}

// StartServer starts the monitor as a web server in the background and
// returns its URL.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring fabric with %s\n", url)

	server := &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := server.Serve(listener)
		dieOnErr(err)
	}()

	if m.openBrowser {
		err = browser.OpenURL(url + "/api/endpoints")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %s\n", err)
		}
	}

	return url, nil
}

func (m *Monitor) listBuilds(w http.ResponseWriter, _ *http.Request) {
	m.lock.RLock()
	ids := make([]string, 0, len(m.builds))
	for _, b := range m.builds {
		ids = append(ids, b.ID)
	}
	m.lock.RUnlock()

	writeJSON(w, ids)
}

func (m *Monitor) listEndpoints(w http.ResponseWriter, _ *http.Request) {
	b, _, ok := m.currentOr404(w)
	if !ok {
		return
	}

	names := []string{}
	for _, e := range b.Descriptor.Endpoints() {
		names = append(names, e.Name)
	}

	writeJSON(w, names)
}

func (m *Monitor) listEndpointDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	endpoint := m.findEndpointOr404(w, name)
	if endpoint == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(endpoint)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	EndpointName string `json:"endpoint_name,omitempty"`
	FieldName    string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	endpoint := m.findEndpointOr404(w, req.EndpointName)
	if endpoint == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(endpoint)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

type regionRsp struct {
	Name   string `json:"name"`
	Base   string `json:"base"`
	Size   string `json:"size"`
	Parent string `json:"parent,omitempty"`
}

func makeRegionRsp(r addrmap.Region, parent string) regionRsp {
	return regionRsp{
		Name:   r.Name,
		Base:   fmt.Sprintf("0x%x", r.Base),
		Size:   fmt.Sprintf("0x%x", r.Size),
		Parent: parent,
	}
}

func (m *Monitor) listRegions(w http.ResponseWriter, _ *http.Request) {
	b, _, ok := m.currentOr404(w)
	if !ok {
		return
	}

	rsp := []regionRsp{}
	for _, r := range b.Descriptor.Regions().Sorted() {
		rsp = append(rsp, makeRegionRsp(r, ""))

		h, _ := b.Descriptor.Lookup(r.Name)
		for _, sub := range b.Descriptor.SubRegions(h) {
			rsp = append(rsp, makeRegionRsp(sub, r.Name))
		}
	}

	writeJSON(w, rsp)
}

func (m *Monitor) decode(w http.ResponseWriter, r *http.Request) {
	addrStr := mux.Vars(r)["addr"]

	addr, err := strconv.ParseUint(addrStr, 0, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: invalid address %q", addrStr)

		return
	}

	_, decoder, ok := m.currentOr404(w)
	if !ok {
		return
	}

	path, complete := decoder.FindPath(addr)
	if !complete {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "Address 0x%x is not mapped", addr)

		return
	}

	parent := ""
	if len(path) > 1 {
		parent = path[len(path)-2].Name
	}

	writeJSON(w, makeRegionRsp(path[len(path)-1], parent))
}

type planRsp struct {
	Master string   `json:"master"`
	Slave  string   `json:"slave"`
	Steps  []string `json:"steps"`
}

type plansRsp struct {
	Plans  []planRsp `json:"plans"`
	Failed []string  `json:"failed"`
}

func (m *Monitor) listPlans(w http.ResponseWriter, _ *http.Request) {
	b, _, ok := m.currentOr404(w)
	if !ok {
		return
	}

	rsp := plansRsp{Plans: []planRsp{}, Failed: []string{}}

	for _, p := range b.Plan.Plans {
		steps := []string{}
		for _, s := range p.Steps {
			steps = append(steps, s.String())
		}

		rsp.Plans = append(rsp.Plans, planRsp{
			Master: p.Master,
			Slave:  p.Slave,
			Steps:  steps,
		})
	}

	for _, f := range b.Plan.Failed {
		rsp.Failed = append(rsp.Failed, f.Error())
	}

	writeJSON(w, rsp)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	time.Sleep(m.profileLength)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func (m *Monitor) currentOr404(
	w http.ResponseWriter,
) (driver.Build, *addrmap.TreeDecoder, bool) {
	b, decoder, ok := m.current()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("No fabric has been built"))
		dieOnErr(err)
	}

	return b, decoder, ok
}

func (m *Monitor) findEndpointOr404(
	w http.ResponseWriter,
	name string,
) *fabric.Endpoint {
	b, _, ok := m.currentOr404(w)
	if !ok {
		return nil
	}

	h, found := b.Descriptor.Lookup(name)
	if !found {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Endpoint not found"))
		dieOnErr(err)

		return nil
	}

	endpoint := b.Descriptor.Endpoint(h)

	return &endpoint
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
