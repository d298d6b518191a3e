package store

import (
	"database/sql"
	"sort"
	"strings"
	"testing"

	"github.com/liamzebedee/pogsim/core/pog"
	"github.com/liamzebedee/pogsim/core/sim"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func runTestSimulation(t *testing.T) (pog.Config, []pog.Node, []sim.EpochReport) {
	conf := pog.DefaultConfig()
	nodes := sim.NodesFromStakes(sim.ZipfStakes(5, 1.0))
	params := sim.DefaultTrafficParams()
	params.Epochs = 4
	params.PathsPerEpoch = 10

	paths, err := sim.GenerateTraffic(nodes, params)
	require.NoError(t, err)
	d, err := sim.NewDriver(conf, nodes)
	require.NoError(t, err)
	reports, err := d.Run(paths)
	require.NoError(t, err)
	return conf, nodes, reports
}

func TestOpenDBIsIdempotent(t *testing.T) {
	assert := assert.New(t)

	db := openTestDB(t)
	version, err := dbGetVersion(db)
	assert.Nil(err)
	assert.Equal(2, version)

	// Migrations already applied are skipped.
	assert.Nil(dbMigrate(db, 1, func(tx *sql.Tx) error {
		t.Fatal("migration 1 ran twice")
		return nil
	}))
}

func TestSaveAndLoadRun(t *testing.T) {
	assert := assert.New(t)

	db := openTestDB(t)
	conf, nodes, reports := runTestSimulation(t)

	run, err := SaveRun(db, "zipf", conf, len(nodes), reports)
	require.NoError(t, err)
	assert.NotEmpty(run.ID)
	assert.Equal(4, run.Epochs)

	loaded, err := GetRun(db, run.ID)
	require.NoError(t, err)
	assert.Equal(run, loaded)

	runs, err := GetRuns(db)
	require.NoError(t, err)
	assert.Len(runs, 1)
	assert.Equal(run.ID, runs[0].ID)

	epochs, err := GetEpochs(db, run.ID)
	require.NoError(t, err)
	assert.Len(epochs, len(reports))
	for i, e := range epochs {
		expected := reports[i]
		expected.Nodes = nil
		assert.Equal(expected, e)
	}

	rows, err := GetEpochNodes(db, run.ID, reports[2].Epoch)
	require.NoError(t, err)
	assert.Equal(reports[2].Nodes, rows)
}

func TestGetRunNotFound(t *testing.T) {
	assert := assert.New(t)

	db := openTestDB(t)
	_, err := GetRun(db, "missing")
	assert.Equal(ErrRunNotFound, err)

	epochs, err := GetEpochs(db, "missing")
	assert.Nil(err)
	assert.Empty(epochs)
}

func gatherValues(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := []string{mf.GetName()}
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			sort.Strings(labels[1:])
			key := strings.Join(labels, ",")
			if m.GetCounter() != nil {
				values[key] = m.GetCounter().GetValue()
			}
			if m.GetGauge() != nil {
				values[key] = m.GetGauge().GetValue()
			}
		}
	}
	return values
}

func TestReplayRun(t *testing.T) {
	assert := assert.New(t)

	db := openTestDB(t)
	conf, nodes, reports := runTestSimulation(t)
	run, err := SaveRun(db, "zipf", conf, len(nodes), reports)
	require.NoError(t, err)

	live := sim.NewTelemetry(nil)
	for _, r := range reports {
		live.ObserveEpoch(r)
	}

	replayed := sim.NewTelemetry(nil)
	require.NoError(t, ReplayRun(db, run.ID, replayed))

	values := gatherValues(t, replayed.Registry)
	assert.Equal(4.0, values["pogsim_epochs_total"])
	assert.Equal(gatherValues(t, live.Registry), values)

	assert.Equal(ErrRunNotFound, ReplayRun(db, "missing", sim.NewTelemetry(nil)))
}
