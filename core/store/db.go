// Package store persists simulation runs to SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/liamzebedee/pogsim/core"
	"github.com/liamzebedee/pogsim/core/pog"
	"github.com/liamzebedee/pogsim/core/sim"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

var ErrRunNotFound = errors.New("store: run not found")

var dbLog = core.NewLogger("store", "db")

func dbGetVersion(db *sql.DB) (int, error) {
	// Check the database version.
	row := db.QueryRow("SELECT version FROM pogsim_version ORDER BY version DESC LIMIT 1")
	if err := row.Err(); err != nil {
		return -1, errors.Wrap(err, "checking database version")
	}

	databaseVersion := -1
	row.Scan(&databaseVersion)

	return databaseVersion, nil
}

func dbMigrate(db *sql.DB, migrationIndex int, migrateFn func(tx *sql.Tx) error) error {
	version, err := dbGetVersion(db)
	if err != nil {
		return err
	}

	// Skip migration if the database is already at the target version.
	if migrationIndex <= version {
		return nil
	}

	// Perform the migration.
	dbLog.Printf("Running migration: %d\n", migrationIndex)
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	err = migrateFn(tx)
	if err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "migration %d", migrationIndex)
	}

	// Update the database version.
	_, err = tx.Exec("insert into pogsim_version (version) values (?)", migrationIndex)
	if err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// OpenDB opens the results database at dbPath, creating and migrating it as
// needed. Use ":memory:" for a throwaway database.
func OpenDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	// Check to perform migrations.
	_, err = db.Exec("create table if not exists pogsim_version (version int)")
	if err != nil {
		return nil, errors.Wrap(err, "creating version table")
	}
	databaseVersion, err := dbGetVersion(db)
	if err != nil {
		return nil, err
	}
	dbLog.Printf("Database version: %d\n", databaseVersion)

	// Migration: v0.
	err = dbMigrate(db, 0, func(tx *sql.Tx) error {
		// runs
		_, err := tx.Exec(`create table runs (
			id TEXT PRIMARY KEY,
			name TEXT,
			created_at integer,
			config blob,
			node_count integer,
			epoch_count integer
		)`)
		if err != nil {
			return errors.Wrap(err, "creating 'runs' table")
		}

		// epochs
		_, err = tx.Exec(`create table epochs (
			run_id TEXT,
			epoch integer,
			ntd_current real,
			ntd_target real,
			ntd_applied real,
			avg_path_length real,
			penalty real,
			attack_detected integer,
			proposer TEXT,
			total_fees integer,
			block_reward integer,
			miner_fee_income integer,
			miner_total_revenue integer,
			network_pool integer,
			paths integer,
			dropped integer,

			primary key (run_id, epoch),
			foreign key (run_id) references runs (id)
		)`)
		if err != nil {
			return errors.Wrap(err, "creating 'epochs' table")
		}

		// epoch_nodes
		_, err = tx.Exec(`create table epoch_nodes (
			run_id TEXT,
			epoch integer,
			node TEXT,
			raw_score real,
			normalized_contribution real,
			virtual_stake real,
			selection_probability real,

			primary key (run_id, epoch, node),
			foreign key (run_id, epoch) references epochs (run_id, epoch)
		)`)
		if err != nil {
			return errors.Wrap(err, "creating 'epoch_nodes' table")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = dbMigrate(db, 1, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`CREATE INDEX idx_runs_created_at ON runs (created_at);
			CREATE INDEX idx_epochs_proposer ON epochs (run_id, proposer);
		`)
		return errors.Wrap(err, "creating indexes")
	})
	if err != nil {
		return nil, err
	}

	err = dbMigrate(db, 2, func(tx *sql.Tx) error {
		_, err := tx.Exec(`create table datastores (
			-- use k,v instead of key,value to avoid reserved word conflicts
			k TEXT PRIMARY KEY,
			v blob
		)`)
		return errors.Wrap(err, "creating 'datastores' table")
	})
	if err != nil {
		return nil, err
	}

	return db, nil
}

// A stored simulation run.
type Run struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt int64      `json:"created_at"`
	Config    pog.Config `json:"config"`
	Nodes     int        `json:"nodes"`
	Epochs    int        `json:"epochs"`
}

// SaveRun stores the reports of one run under a fresh id.
func SaveRun(db *sql.DB, name string, cfg pog.Config, nodes int, reports []sim.EpochReport) (Run, error) {
	run := Run{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UnixMilli(),
		Config:    cfg,
		Nodes:     nodes,
		Epochs:    len(reports),
	}

	conf, err := json.Marshal(cfg)
	if err != nil {
		return Run{}, errors.Wrap(err, "encoding config")
	}

	tx, err := db.Begin()
	if err != nil {
		return Run{}, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"insert into runs (id, name, created_at, config, node_count, epoch_count) values (?, ?, ?, ?, ?, ?)",
		run.ID, run.Name, run.CreatedAt, conf, run.Nodes, run.Epochs,
	)
	if err != nil {
		return Run{}, errors.Wrap(err, "inserting run")
	}

	epochStmt, err := tx.Prepare(`insert into epochs (
		run_id, epoch, ntd_current, ntd_target, ntd_applied, avg_path_length, penalty, attack_detected, proposer,
		total_fees, block_reward, miner_fee_income, miner_total_revenue, network_pool, paths, dropped
	) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Run{}, err
	}
	defer epochStmt.Close()

	nodeStmt, err := tx.Prepare(`insert into epoch_nodes (
		run_id, epoch, node, raw_score, normalized_contribution, virtual_stake, selection_probability
	) values (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Run{}, err
	}
	defer nodeStmt.Close()

	for _, r := range reports {
		_, err = epochStmt.Exec(
			run.ID, r.Epoch, r.NTDCurrent, r.NTDTarget, r.NTDApplied, r.AvgPathLength, r.Penalty, r.AttackDetected, r.Proposer,
			int64(r.TotalFees), int64(r.BlockReward), int64(r.Reward.MinerFeeIncome), int64(r.Reward.MinerTotalRevenue), int64(r.Reward.NetworkPool),
			r.Paths, r.Dropped,
		)
		if err != nil {
			return Run{}, errors.Wrapf(err, "inserting epoch %d", r.Epoch)
		}

		for _, n := range r.Nodes {
			_, err = nodeStmt.Exec(run.ID, n.Epoch, n.Node, n.RawScore, n.NormalizedContribution, n.VirtualStake, n.SelectionProbability)
			if err != nil {
				return Run{}, errors.Wrapf(err, "inserting node %s at epoch %d", n.Node, n.Epoch)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, err
	}

	dbLog.Printf("run id=%s name=%s epochs=%d saved\n", run.ID, run.Name, run.Epochs)
	return run, nil
}

func scanRun(row interface{ Scan(...interface{}) error }) (Run, error) {
	run := Run{}
	conf := []byte{}
	err := row.Scan(&run.ID, &run.Name, &run.CreatedAt, &conf, &run.Nodes, &run.Epochs)
	if err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal(conf, &run.Config); err != nil {
		return Run{}, errors.Wrapf(err, "decoding config of run %s", run.ID)
	}
	return run, nil
}

// GetRuns returns all runs, newest first.
func GetRuns(db *sql.DB) ([]Run, error) {
	rows, err := db.Query("select id, name, created_at, config, node_count, epoch_count from runs order by created_at desc, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func GetRun(db *sql.DB, id string) (Run, error) {
	row := db.QueryRow("select id, name, created_at, config, node_count, epoch_count from runs where id = ?", id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

// GetEpochs returns the epoch summaries of a run, without node rows.
func GetEpochs(db *sql.DB, runID string) ([]sim.EpochReport, error) {
	rows, err := db.Query(`select
		epoch, ntd_current, ntd_target, ntd_applied, avg_path_length, penalty, attack_detected, proposer,
		total_fees, block_reward, miner_fee_income, miner_total_revenue, network_pool, paths, dropped
		from epochs where run_id = ? order by epoch`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []sim.EpochReport{}
	for rows.Next() {
		r := sim.EpochReport{}
		err := rows.Scan(
			&r.Epoch, &r.NTDCurrent, &r.NTDTarget, &r.NTDApplied, &r.AvgPathLength, &r.Penalty, &r.AttackDetected, &r.Proposer,
			&r.TotalFees, &r.BlockReward, &r.Reward.MinerFeeIncome, &r.Reward.MinerTotalRevenue, &r.Reward.NetworkPool,
			&r.Paths, &r.Dropped,
		)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// GetEpochNodes returns the node rows of one epoch of a run.
func GetEpochNodes(db *sql.DB, runID string, epoch int64) ([]sim.NodeRow, error) {
	rows, err := db.Query(`select
		epoch, node, raw_score, normalized_contribution, virtual_stake, selection_probability
		from epoch_nodes where run_id = ? and epoch = ? order by node`, runID, epoch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := []sim.NodeRow{}
	for rows.Next() {
		n := sim.NodeRow{}
		err := rows.Scan(&n.Epoch, &n.Node, &n.RawScore, &n.NormalizedContribution, &n.VirtualStake, &n.SelectionProbability)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// ReplayRun feeds the epochs of a stored run into telemetry, in order. Node
// rows are loaded for the final epoch only, which is what the selection
// gauges end up holding.
func ReplayRun(db *sql.DB, runID string, telemetry *sim.Telemetry) error {
	if _, err := GetRun(db, runID); err != nil {
		return err
	}
	reports, err := GetEpochs(db, runID)
	if err != nil {
		return err
	}
	if len(reports) > 0 {
		last := &reports[len(reports)-1]
		last.Nodes, err = GetEpochNodes(db, runID, last.Epoch)
		if err != nil {
			return err
		}
	}
	for _, r := range reports {
		telemetry.ObserveEpoch(r)
	}
	dbLog.Printf("replayed run %s (%d epochs)\n", runID, len(reports))
	return nil
}
