package main

import (
	"log"
	"os"

	"github.com/liamzebedee/pogsim/cli/cmd"
	"github.com/urfave/cli/v2"
)

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "db",
		Usage: "The path to the results database",
		Value: "pogsim.db",
	}
}

func main() {
	app := &cli.App{
		Name:                 "pogsim",
		Usage:                "a proof-of-graph proposer selection simulator",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:   "simulate",
				Usage:  "runs the epoch pipeline over a path trace or generated traffic",
				Action: cmd.RunSimulate,
				Flags:  cmd.SimulateFlags(),
			},
			{
				Name:   "ntd",
				Usage:  "NTD dynamics under a long-range attack",
				Action: cmd.RunNTD,
				Flags:  cmd.NTDFlags(),
			},
			{
				Name:   "sybil",
				Usage:  "propagation score of a Sybil chain against the NTD penalty",
				Action: cmd.RunSybil,
				Flags:  cmd.SybilFlags(),
			},
			{
				Name:   "spam",
				Usage:  "attacker share under contribution saturation",
				Action: cmd.RunSpam,
				Flags:  cmd.SpamFlags(),
			},
			{
				Name:   "revenue",
				Usage:  "proposer revenue against average path length",
				Action: cmd.RunRevenue,
				Flags:  cmd.RevenueFlags(),
			},
			{
				Name:   "adversary",
				Usage:  "bounds the selection share of a node against the rest of the network",
				Action: cmd.RunAdversary,
				Flags:  cmd.AdversaryFlags(),
			},
			{
				Name:   "gini",
				Usage:  "compares proposer concentration of pog, pos and pow across stake distributions",
				Action: cmd.RunGini,
				Flags:  cmd.GiniFlags(),
			},
			{
				Name:  "presets",
				Usage: "lists and saves parameter presets",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "prints the built-in and saved presets",
						Action: cmd.ListPresets,
						Flags:  []cli.Flag{dbFlag()},
					},
					{
						Name:   "save",
						Usage:  "saves the resolved configuration as a preset",
						Action: cmd.SavePreset,
						Flags: append([]cli.Flag{
							dbFlag(),
							&cli.StringFlag{Name: "name", Usage: "Preset name"},
							&cli.StringFlag{Name: "description", Usage: "Preset description"},
						}, cmd.ConfigFlags()...),
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "runs the results explorer",
				Action: cmd.RunExplorer,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "port",
						Usage: "The port to run the explorer on",
						Value: 8080,
					},
					&cli.StringFlag{
						Name:  "replay",
						Usage: "The run to expose on /metrics, defaults to the pinned run",
					},
					dbFlag(),
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
