package explorer

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/liamzebedee/pogsim/core/pog"
	"github.com/liamzebedee/pogsim/core/sim"
	"github.com/liamzebedee/pogsim/core/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExplorer(t *testing.T) (*ResultsExplorerServer, *sql.DB, store.Run) {
	db, err := store.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	nodes := []pog.Node{
		{ID: "A", Stake: 10},
		{ID: "B", Stake: 20},
		{ID: "C", Stake: 30},
	}
	paths := []pog.Path{
		{Epoch: 0, Relayers: []pog.NodeID{"A", "B"}, Proposer: "C"},
		{Epoch: 1, Relayers: []pog.NodeID{"C"}, Proposer: "A"},
	}

	telemetry := sim.NewTelemetry(prometheus.NewRegistry())
	d, err := sim.NewDriver(pog.DefaultConfig(), nodes, sim.WithTelemetry(telemetry))
	require.NoError(t, err)
	reports, err := d.Run(paths)
	require.NoError(t, err)

	run, err := store.SaveRun(db, "test", pog.DefaultConfig(), len(nodes), reports)
	require.NoError(t, err)

	return NewResultsExplorerServer(db, telemetry.Registry, 0), db, run
}

func get(t *testing.T, h http.Handler, method string, url string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestExplorerRuns(t *testing.T) {
	assert := assert.New(t)
	expl, _, run := newTestExplorer(t)

	rec := get(t, expl.Handler(), http.MethodGet, "/runs/")
	assert.Equal(http.StatusOK, rec.Code)
	runs := []store.Run{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(runs, 1)
	assert.Equal(run.ID, runs[0].ID)

	rec = get(t, expl.Handler(), http.MethodGet, "/runs/"+run.ID)
	assert.Equal(http.StatusOK, rec.Code)

	rec = get(t, expl.Handler(), http.MethodGet, "/runs/missing")
	assert.Equal(http.StatusNotFound, rec.Code)
}

func TestExplorerEpochs(t *testing.T) {
	assert := assert.New(t)
	expl, _, run := newTestExplorer(t)

	rec := get(t, expl.Handler(), http.MethodGet, "/runs/"+run.ID+"/epochs")
	assert.Equal(http.StatusOK, rec.Code)
	epochs := []sim.EpochReport{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &epochs))
	assert.Len(epochs, 2)

	rec = get(t, expl.Handler(), http.MethodGet, "/runs/"+run.ID+"/epochs/1/nodes")
	assert.Equal(http.StatusOK, rec.Code)
	nodes := []sim.NodeRow{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &nodes))
	assert.Len(nodes, 3)
	assert.Equal(pog.NodeID("A"), nodes[0].Node)

	rec = get(t, expl.Handler(), http.MethodGet, "/runs/"+run.ID+"/epochs/7/nodes")
	assert.Equal(http.StatusNotFound, rec.Code)

	rec = get(t, expl.Handler(), http.MethodGet, "/runs/"+run.ID+"/epochs/x/nodes")
	assert.Equal(http.StatusBadRequest, rec.Code)
}

func TestExplorerPinAndHome(t *testing.T) {
	assert := assert.New(t)
	expl, db, run := newTestExplorer(t)

	rec := get(t, expl.Handler(), http.MethodPost, "/runs/"+run.ID+"/pin")
	assert.Equal(http.StatusNoContent, rec.Code)

	settings, err := store.LoadDataStore[store.ExplorerStore](db, store.ExplorerStoreKey)
	require.NoError(t, err)
	assert.Equal(run.ID, settings.PinnedRun)

	rec = get(t, expl.Handler(), http.MethodGet, "/")
	assert.Equal(http.StatusOK, rec.Code)
	assert.True(strings.Contains(rec.Body.String(), `class="pinned"`))
}

func TestExplorerMetrics(t *testing.T) {
	assert := assert.New(t)
	expl, _, _ := newTestExplorer(t)

	rec := get(t, expl.Handler(), http.MethodGet, "/metrics")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), "pogsim_epochs_total 2")
}
