package explorer

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/liamzebedee/pogsim/core"
	"github.com/liamzebedee/pogsim/core/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed templates/*.html
var embedFS embed.FS

// ResultsExplorerServer serves stored simulation runs over HTTP.
type ResultsExplorerServer struct {
	router *mux.Router
	log    *log.Logger

	host        string
	port        int
	environment string

	db       *sql.DB
	registry *prometheus.Registry
}

func formatTimestamp(ts int64) string {
	t := time.UnixMilli(ts)
	return t.Format("02 Jan 2006 15:04:05 MST")
}

func (expl *ResultsExplorerServer) getTemplates(patterns ...string) *template.Template {
	funcMap := template.FuncMap{
		"formatTimestamp": formatTimestamp,
	}
	return template.Must(template.New("").Funcs(funcMap).ParseFS(embedFS, patterns...))
}

// NewResultsExplorerServer creates an explorer over the runs in db. Metrics of
// registry, if not nil, are exposed at /metrics.
func NewResultsExplorerServer(db *sql.DB, registry *prometheus.Registry, port int) *ResultsExplorerServer {
	log := core.NewLogger("explorer", "")
	environment := os.Getenv("ENV")
	if environment == "" {
		environment = "dev"
	}
	if !(environment == "dev" || environment == "test" || environment == "live") {
		log.Printf("Invalid environment %s, falling back to dev\n", environment)
		environment = "dev"
	}

	host := map[string]string{
		"dev":  "127.0.0.1",
		"test": "0.0.0.0",
		"live": "0.0.0.0",
	}[environment]

	expl := &ResultsExplorerServer{
		router:      mux.NewRouter(),
		log:         log,
		host:        host,
		port:        port,
		environment: environment,
		db:          db,
		registry:    registry,
	}

	expl.router.HandleFunc("/", expl.homePage).Methods(http.MethodGet)
	expl.router.HandleFunc("/runs/", expl.getRuns).Methods(http.MethodGet)
	expl.router.HandleFunc("/runs/{id}", expl.getRun).Methods(http.MethodGet)
	expl.router.HandleFunc("/runs/{id}/pin", expl.pinRun).Methods(http.MethodPost)
	expl.router.HandleFunc("/runs/{id}/epochs", expl.getEpochs).Methods(http.MethodGet)
	expl.router.HandleFunc("/runs/{id}/epochs/{epoch}/nodes", expl.getEpochNodes).Methods(http.MethodGet)
	if registry != nil {
		expl.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return expl
}

// Handler returns the router, for embedding or testing.
func (expl *ResultsExplorerServer) Handler() http.Handler {
	return expl.router
}

func (expl *ResultsExplorerServer) Start() error {
	listenAddr := fmt.Sprintf("%s:%d", expl.host, expl.port)
	expl.log.Printf("Environment: %s\n", expl.environment)
	expl.log.Printf("Listening on http://%s\n", listenAddr)
	return http.ListenAndServe(listenAddr, expl.router)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// lookupRun writes a 404 and returns false if the run does not exist.
func (expl *ResultsExplorerServer) lookupRun(w http.ResponseWriter, id string) (store.Run, bool) {
	run, err := store.GetRun(expl.db, id)
	if err == store.ErrRunNotFound {
		http.Error(w, err.Error(), http.StatusNotFound)
		return run, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return run, false
	}
	return run, true
}

func (expl *ResultsExplorerServer) homePage(w http.ResponseWriter, r *http.Request) {
	runs, err := store.GetRuns(expl.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	settings, err := store.LoadDataStore[store.ExplorerStore](expl.db, store.ExplorerStoreKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	tmpl := expl.getTemplates("templates/index.html", "templates/_base_layout.html")
	err = tmpl.ExecuteTemplate(w, "index.html", map[string]interface{}{
		"Title":     "Runs",
		"Runs":      runs,
		"PinnedRun": settings.PinnedRun,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (expl *ResultsExplorerServer) getRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := store.GetRuns(expl.db)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func (expl *ResultsExplorerServer) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := expl.lookupRun(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	writeJSON(w, run)
}

func (expl *ResultsExplorerServer) pinRun(w http.ResponseWriter, r *http.Request) {
	run, ok := expl.lookupRun(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	err := store.SaveDataStore(expl.db, store.ExplorerStoreKey, store.ExplorerStore{PinnedRun: run.ID})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (expl *ResultsExplorerServer) getEpochs(w http.ResponseWriter, r *http.Request) {
	run, ok := expl.lookupRun(w, mux.Vars(r)["id"])
	if !ok {
		return
	}
	epochs, err := store.GetEpochs(expl.db, run.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, epochs)
}

func (expl *ResultsExplorerServer) getEpochNodes(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	epoch, err := strconv.ParseInt(vars["epoch"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid epoch", http.StatusBadRequest)
		return
	}
	run, ok := expl.lookupRun(w, vars["id"])
	if !ok {
		return
	}

	nodes, err := store.GetEpochNodes(expl.db, run.ID, epoch)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(nodes) == 0 {
		http.Error(w, fmt.Sprintf("epoch %d not found", epoch), http.StatusNotFound)
		return
	}
	writeJSON(w, nodes)
}
