package cmd

import (
	"io"
	"log"

	"github.com/liamzebedee/pogsim/core/pog"
	"github.com/liamzebedee/pogsim/core/sim"
	"github.com/urfave/cli/v2"
)

func GiniFlags() []cli.Flag {
	return append([]cli.Flag{
		outFlag(),
		&cli.IntFlag{Name: "n", Usage: "Number of nodes", Value: 50},
		&cli.Float64SliceFlag{
			Name:  "targets",
			Usage: "Stake Gini coefficients to compare",
			Value: cli.NewFloat64Slice(0.2, 0.4, 0.6, 0.8),
		},
		&cli.IntFlag{Name: "epochs", Value: 200},
		&cli.IntFlag{Name: "paths-per-epoch", Value: 100},
		&cli.StringFlag{Name: "out-lorenz", Usage: "Write the Lorenz curves of block production here"},
	}, ConfigFlags()...)
}

var giniModes = []pog.Mode{pog.ModePoG, pog.ModePoS, pog.ModePoW}

// DecentralizationRow compares how concentrated block production gets under
// one consensus mode for one stake distribution.
type DecentralizationRow struct {
	TargetGini   float64
	Mode         pog.Mode
	StakeGini    float64
	ProposerGini float64
	Herfindahl   float64
	Nakamoto     int

	// Blocks proposed by each node, in node table order.
	Proposals []float64
}

// Decentralization runs the same traffic over a stake table under every
// consensus mode and measures the resulting proposer distribution.
func Decentralization(conf pog.Config, nodes []pog.Node, paths []pog.Path, targetGini float64) ([]DecentralizationRow, error) {
	stakes := make([]float64, len(nodes))
	for i, n := range nodes {
		stakes[i] = n.Stake
	}

	rows := make([]DecentralizationRow, 0, len(giniModes))
	for _, mode := range giniModes {
		c := conf
		c.Mode = mode
		d, err := sim.NewDriver(c, nodes, sim.WithLogger(log.New(io.Discard, "", 0)))
		if err != nil {
			return nil, err
		}
		if _, err := d.Run(paths); err != nil {
			return nil, err
		}

		proposals := d.Proposals()
		counts := make([]float64, len(nodes))
		for i, n := range nodes {
			counts[i] = float64(proposals[n.ID])
		}
		rows = append(rows, DecentralizationRow{
			TargetGini:   targetGini,
			Mode:         mode,
			StakeGini:    pog.Gini(stakes),
			ProposerGini: pog.Gini(counts),
			Herfindahl:   pog.Herfindahl(counts),
			Nakamoto:     pog.NakamotoCoefficient(counts, pog.DefaultNakamotoThreshold),
			Proposals:    counts,
		})
	}
	return rows, nil
}

func RunGini(cmdCtx *cli.Context) error {
	conf, err := LoadConfig(cmdCtx, nil)
	if err != nil {
		return err
	}

	targets := cmdCtx.Float64Slice("targets")
	bar := newProgressBar(len(targets), "stake distributions")

	t := sim.NewTable("target_gini", "mode", "stake_gini", "proposer_gini", "herfindahl", "nakamoto_coefficient")
	lorenz := sim.NewTable("target_gini", "mode", "population_share", "block_share")
	for _, target := range targets {
		nodes := sim.NodesFromStakes(sim.StakesByGini(cmdCtx.Int("n"), target))

		traffic := sim.DefaultTrafficParams()
		traffic.Epochs = cmdCtx.Int("epochs")
		traffic.PathsPerEpoch = cmdCtx.Int("paths-per-epoch")
		traffic.Seed = conf.Seed
		paths, err := sim.GenerateTraffic(nodes, traffic)
		if err != nil {
			return err
		}

		rows, err := Decentralization(conf, nodes, paths, target)
		if err != nil {
			return err
		}
		for _, r := range rows {
			t.Append(r.TargetGini, string(r.Mode), r.StakeGini, r.ProposerGini, r.Herfindahl, r.Nakamoto)

			xs, ys := pog.LorenzCurve(r.Proposals)
			for i := range xs {
				lorenz.Append(r.TargetGini, string(r.Mode), xs[i], ys[i])
			}
		}
		bar.Add(1)
	}
	bar.Finish()

	if out := cmdCtx.String("out-lorenz"); out != "" {
		if err := writeTable(lorenz, out); err != nil {
			return err
		}
	}
	return writeTable(t, cmdCtx.String("out"))
}
