package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/liamzebedee/pogsim/core/pog"
	"github.com/liamzebedee/pogsim/core/sim"
	"github.com/urfave/cli/v2"
)

func AdversaryFlags() []cli.Flag {
	d := pog.DefaultConfig()
	return []cli.Flag{
		outFlag(),
		&cli.Float64Flag{Name: "k", Usage: "Aggression multiplier", Value: d.K},
		&cli.IntFlag{Name: "min", Usage: "Fewest participants the rest may split into", Value: d.SearchMin},
		&cli.IntFlag{Name: "max", Usage: "Most participants the rest may split into", Value: d.SearchMax},
		&cli.StringFlag{Name: "strategy", Usage: "equal-sharing, collusive-maximization or both", Value: "both"},
		&cli.IntFlag{Name: "points", Usage: "Grid points per axis", Value: 50},
		&cli.IntFlag{Name: "workers", Usage: "Search workers, 0 for one per CPU"},
		&cli.Float64Flag{Name: "stake", Usage: "Evaluate a single point with this stake share"},
		&cli.Float64Flag{Name: "contribution", Usage: "Contribution share of the single point"},
	}
}

func parseStrategies(name string) ([]pog.Strategy, error) {
	if name == "both" {
		return []pog.Strategy{pog.EqualSharing, pog.CollusiveMaximization}, nil
	}
	s, err := pog.ParseStrategy(name)
	if err != nil {
		return nil, err
	}
	return []pog.Strategy{s}, nil
}

func allocationTable() *sim.Table {
	return sim.NewTable("strategy", "stake", "contribution", "participants", "fixed_virtual_stake", "rest_virtual_stake", "share")
}

func appendAllocation(t *sim.Table, r pog.AllocationResult) {
	t.Append(r.Strategy.String(), r.Stake, r.Contribution, r.Participants, r.FixedVirtualStake, r.RestVirtualStake, r.Share)
}

func RunAdversary(cmdCtx *cli.Context) error {
	search, err := pog.NewAllocationSearch(cmdCtx.Float64("k"), cmdCtx.Int("min"), cmdCtx.Int("max"))
	if err != nil {
		return err
	}
	search.Workers = cmdCtx.Int("workers")

	strategies, err := parseStrategies(cmdCtx.String("strategy"))
	if err != nil {
		return err
	}

	// Single point.
	if cmdCtx.IsSet("stake") || cmdCtx.IsSet("contribution") {
		for _, strategy := range strategies {
			r, err := search.Search(cmdCtx.Float64("stake"), cmdCtx.Float64("contribution"), strategy)
			if err != nil {
				return err
			}
			fmt.Printf("%s participants=%d share=%s\n",
				color.HiGreenString(r.Strategy.String()), r.Participants, color.HiYellowString("%.6f", r.Share))
		}
		return nil
	}

	points := cmdCtx.Int("points")
	if points < 1 {
		return fmt.Errorf("--points must be positive")
	}
	axis := pog.Linspace(0, 1, points)

	bar := newProgressBar(points*points*len(strategies), "allocation search")
	search.OnPoint = func() {
		bar.Add(1)
	}

	t := allocationTable()
	for _, strategy := range strategies {
		grid, err := search.Surface(axis, axis, strategy)
		if err != nil {
			return err
		}
		for _, row := range grid {
			for _, r := range row {
				appendAllocation(t, r)
			}
		}
	}
	bar.Finish()

	return writeTable(t, cmdCtx.String("out"))
}
