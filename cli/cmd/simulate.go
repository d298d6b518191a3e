package cmd

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/liamzebedee/pogsim/core/pog"
	"github.com/liamzebedee/pogsim/core/sim"
	"github.com/liamzebedee/pogsim/core/store"
	"github.com/liamzebedee/pogsim/core/trace"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func openStore(dbPath string) (*sql.DB, error) {
	db, err := store.OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	if dbPath != ":memory:" {
		_, err = db.Exec("PRAGMA journal_mode = WAL;")
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

func newProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		max,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
		progressbar.OptionSetDescription(description),
	)
}

// SimulateFlags configure the node table and the path source of a run.
func SimulateFlags() []cli.Flag {
	traffic := sim.DefaultTrafficParams()
	flags := []cli.Flag{
		&cli.StringFlag{Name: "db", Usage: "Results database, empty to skip saving", Value: "pogsim.db"},
		&cli.StringFlag{Name: "name", Usage: "Name of the stored run"},
		&cli.StringFlag{Name: "nodes", Usage: "Node table CSV (node,stake[,hash_power])"},
		&cli.StringFlag{Name: "paths", Usage: "Path trace, CSV or bencode (.bencode)"},
		&cli.IntFlag{Name: "n", Usage: "Number of generated nodes", Value: 20},
		&cli.Float64Flag{Name: "gini", Usage: "Stake Gini of the generated nodes", Value: 0.5},
		&cli.IntFlag{Name: "epochs", Usage: "Epochs of generated traffic", Value: traffic.Epochs},
		&cli.IntFlag{Name: "paths-per-epoch", Usage: "Paths per epoch of generated traffic", Value: traffic.PathsPerEpoch},
		&cli.IntFlag{Name: "min-length", Usage: "Minimum generated path length", Value: traffic.MinLength},
		&cli.IntFlag{Name: "max-length", Usage: "Maximum generated path length", Value: traffic.MaxLength},
		&cli.IntFlag{Name: "attack-start", Usage: "First epoch of long-range traffic", Value: traffic.AttackStart},
		&cli.IntFlag{Name: "attack-end", Usage: "Last epoch of long-range traffic", Value: traffic.AttackEnd},
		&cli.Float64Flag{Name: "attack-ratio", Usage: "Share of long-range paths during the attack", Value: 0.1},
		&cli.IntFlag{Name: "attack-length", Usage: "Length of long-range paths", Value: 15},
		&cli.StringFlag{Name: "out-nodes", Usage: "Write the node table CSV here"},
		&cli.StringFlag{Name: "out-epochs", Usage: "Write the epoch table CSV here"},
		&cli.StringFlag{Name: "out-trace", Usage: "Write the paths used to a trace file"},
		&cli.StringFlag{Name: "out-node-table", Usage: "Write the node table used (node,stake,hash_power)"},
	}
	return append(flags, ConfigFlags()...)
}

func isBencode(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".bencode" || ext == ".torrent"
}

func loadNodes(cmdCtx *cli.Context) ([]pog.Node, error) {
	if path := cmdCtx.String("nodes"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return trace.ReadNodesCSV(f)
	}
	stakes := sim.StakesByGini(cmdCtx.Int("n"), cmdCtx.Float64("gini"))
	return sim.NodesFromStakes(stakes), nil
}

func loadPaths(cmdCtx *cli.Context, nodes []pog.Node) ([]pog.Path, error) {
	if path := cmdCtx.String("paths"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if isBencode(path) {
			return trace.ReadPathsBencode(f)
		}
		return trace.ReadPathsCSV(f)
	}

	params := sim.DefaultTrafficParams()
	params.Epochs = cmdCtx.Int("epochs")
	params.PathsPerEpoch = cmdCtx.Int("paths-per-epoch")
	params.MinLength = cmdCtx.Int("min-length")
	params.MaxLength = cmdCtx.Int("max-length")
	params.AttackStart = cmdCtx.Int("attack-start")
	params.AttackEnd = cmdCtx.Int("attack-end")
	params.AttackRatio = cmdCtx.Float64("attack-ratio")
	params.AttackLength = cmdCtx.Int("attack-length")
	if cmdCtx.IsSet("seed") {
		params.Seed = cmdCtx.Int64("seed")
	}
	return sim.GenerateTraffic(nodes, params)
}

func writeTrace(path string, paths []pog.Path) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if isBencode(path) {
		return trace.WritePathsBencode(f, paths)
	}
	return trace.WritePathsCSV(f, paths)
}

func epochSpan(paths []pog.Path) int {
	if len(paths) == 0 {
		return 0
	}
	lo, hi := paths[0].Epoch, paths[0].Epoch
	for _, p := range paths {
		if p.Epoch < lo {
			lo = p.Epoch
		}
		if p.Epoch > hi {
			hi = p.Epoch
		}
	}
	return int(hi-lo) + 1
}

func RunSimulate(cmdCtx *cli.Context) error {
	var db *sql.DB
	if dbPath := cmdCtx.String("db"); dbPath != "" {
		var err error
		db, err = openStore(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	conf, err := LoadConfig(cmdCtx, db)
	if err != nil {
		return err
	}
	nodes, err := loadNodes(cmdCtx)
	if err != nil {
		return err
	}
	paths, err := loadPaths(cmdCtx, nodes)
	if err != nil {
		return err
	}
	cliLog.Printf("simulating mode=%s model=%s nodes=%d paths=%d\n", conf.Mode, conf.Model, len(nodes), len(paths))

	driver, err := sim.NewDriver(conf, nodes)
	if err != nil {
		return err
	}

	bar := newProgressBar(epochSpan(paths), "epochs")
	driver.OnEpoch = func(r sim.EpochReport) {
		bar.Add(1)
	}
	reports, err := driver.Run(paths)
	if err != nil {
		return err
	}
	bar.Finish()

	if out := cmdCtx.String("out-nodes"); out != "" {
		if err := writeTable(sim.NodeTable(reports), out); err != nil {
			return err
		}
	}
	if out := cmdCtx.String("out-epochs"); out != "" {
		if err := writeTable(sim.EpochTable(reports), out); err != nil {
			return err
		}
	}
	if out := cmdCtx.String("out-trace"); out != "" {
		if err := writeTrace(out, paths); err != nil {
			return err
		}
	}

	if out := cmdCtx.String("out-node-table"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		err = trace.WriteNodesCSV(f, nodes)
		f.Close()
		if err != nil {
			return err
		}
	}

	if db != nil {
		name := cmdCtx.String("name")
		if name == "" {
			name = fmt.Sprintf("%s-%s", conf.Mode, cmdCtx.String("preset"))
		}
		run, err := store.SaveRun(db, name, conf, len(nodes), reports)
		if err != nil {
			return err
		}
		cliLog.Printf("saved run %s\n", color.HiYellowString(run.ID))
	}

	lengths := make([]int, 0, len(paths))
	for _, path := range paths {
		if !path.Degenerate() {
			lengths = append(lengths, path.Len())
		}
	}
	printSummary(os.Stdout, nodes, reports, driver.Proposals(), pog.PathStatistics(lengths))
	return nil
}

func printSummary(w io.Writer, nodes []pog.Node, reports []sim.EpochReport, proposals map[pog.NodeID]int, stats pog.PathStats) {
	p := message.NewPrinter(language.English)

	var accepted, dropped, attacks int
	var minerFees, pool pog.Amount
	for _, r := range reports {
		accepted += r.Paths
		dropped += r.Dropped
		if r.AttackDetected {
			attacks++
		}
		minerFees += r.Reward.MinerFeeIncome
		pool += r.Reward.NetworkPool
	}

	stakes := make([]float64, len(nodes))
	counts := make([]float64, len(nodes))
	for i, n := range nodes {
		stakes[i] = n.Stake
		counts[i] = float64(proposals[n.ID])
	}

	bold := color.New(color.Bold)
	bold.Fprintln(w, "Summary")
	p.Fprintf(w, "  epochs             %d\n", len(reports))
	p.Fprintf(w, "  paths              %d accepted, %d dropped\n", accepted, dropped)
	p.Fprintf(w, "  path length        mean %.2f, median %.1f, range %d..%d\n", stats.Mean, stats.Median, stats.Min, stats.Max)
	p.Fprintf(w, "  long-range epochs  %d\n", attacks)
	p.Fprintf(w, "  miner fee income   %.8f coins\n", pog.AmountToCoins(minerFees))
	p.Fprintf(w, "  network pool       %.8f coins\n", pog.AmountToCoins(pool))
	p.Fprintf(w, "  stake gini         %.4f\n", pog.Gini(stakes))
	p.Fprintf(w, "  proposer gini      %.4f\n", pog.Gini(counts))
	p.Fprintf(w, "  nakamoto coeff.    %d\n", pog.NakamotoCoefficient(counts, pog.DefaultNakamotoThreshold))

	// Top proposers.
	ids := make([]pog.NodeID, 0, len(proposals))
	for id := range proposals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if proposals[ids[i]] != proposals[ids[j]] {
			return proposals[ids[i]] > proposals[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > 5 {
		ids = ids[:5]
	}
	bold.Fprintln(w, "Top proposers")
	if len(reports) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	for _, id := range ids {
		share := float64(proposals[id]) / float64(len(reports))
		p.Fprintf(w, "  %-16s %d blocks (%s)\n", color.HiGreenString(string(id)), proposals[id], color.HiYellowString("%.1f%%", share*100))
	}
}
