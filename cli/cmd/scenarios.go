package cmd

import (
	"github.com/liamzebedee/pogsim/core/pog"
	"github.com/liamzebedee/pogsim/core/sim"
	"github.com/urfave/cli/v2"
)

func outFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "out",
		Usage: "CSV output file, - for stdout",
		Value: "-",
	}
}

func NTDFlags() []cli.Flag {
	d := sim.DefaultNTDDynamicsParams()
	return []cli.Flag{
		outFlag(),
		&cli.IntFlag{Name: "epochs", Value: d.Epochs},
		&cli.IntFlag{Name: "attack-start", Value: d.AttackStart},
		&cli.IntFlag{Name: "attack-end", Usage: "Last attack epoch, inclusive", Value: d.AttackEnd},
		&cli.IntFlag{Name: "tx-per-epoch", Value: d.TxPerEpoch},
		&cli.Float64Flag{Name: "true-diameter", Value: d.TrueDiameter},
		&cli.Float64Flag{Name: "honest-mean", Value: d.HonestMean},
		&cli.Float64Flag{Name: "honest-std", Value: d.HonestStd},
		&cli.Float64Flag{Name: "attack-min", Usage: "Shortest attack path", Value: d.AttackLenMin},
		&cli.Float64Flag{Name: "attack-max", Usage: "Longest attack path", Value: d.AttackLenMax},
		&cli.Float64Flag{Name: "attack-ratio", Value: d.AttackRatio},
		&cli.Float64Flag{Name: "step", Usage: "NTD adaptation rate per epoch", Value: d.Step},
		&cli.Int64Flag{Name: "seed", Value: d.Seed},
	}
}

func RunNTD(cmdCtx *cli.Context) error {
	rows, err := sim.NTDDynamics(sim.NTDDynamicsParams{
		Epochs:       cmdCtx.Int("epochs"),
		AttackStart:  cmdCtx.Int("attack-start"),
		AttackEnd:    cmdCtx.Int("attack-end"),
		TxPerEpoch:   cmdCtx.Int("tx-per-epoch"),
		TrueDiameter: cmdCtx.Float64("true-diameter"),
		HonestMean:   cmdCtx.Float64("honest-mean"),
		HonestStd:    cmdCtx.Float64("honest-std"),
		AttackLenMin: cmdCtx.Float64("attack-min"),
		AttackLenMax: cmdCtx.Float64("attack-max"),
		AttackRatio:  cmdCtx.Float64("attack-ratio"),
		Step:         cmdCtx.Float64("step"),
		Seed:         cmdCtx.Int64("seed"),
	})
	if err != nil {
		return err
	}
	return writeTable(sim.NTDDynamicsTable(rows), cmdCtx.String("out"))
}

func SybilFlags() []cli.Flag {
	return []cli.Flag{
		outFlag(),
		&cli.IntFlag{Name: "honest", Usage: "Honest relayers ahead of the Sybil chain", Value: 3},
		&cli.IntFlag{Name: "max-sybils", Value: 20},
		&cli.Float64Flag{Name: "ntd", Value: 6},
	}
}

func RunSybil(cmdCtx *cli.Context) error {
	rows, err := sim.SybilPropagation(cmdCtx.Int("honest"), cmdCtx.Int("max-sybils"), cmdCtx.Float64("ntd"))
	if err != nil {
		return err
	}
	return writeTable(sim.SybilTable(rows), cmdCtx.String("out"))
}

func SpamFlags() []cli.Flag {
	d := sim.DefaultSpamParams()
	return []cli.Flag{
		outFlag(),
		&cli.IntFlag{Name: "honest", Value: d.Honest},
		&cli.Float64Flag{Name: "base", Usage: "Raw score of an honest node", Value: d.BaseRawScore},
		&cli.Float64Flag{Name: "k-sat", Value: d.KSat},
		&cli.Float64Flag{Name: "k-base", Value: d.KBase},
		&cli.Float64Flag{Name: "omega", Value: d.Omega},
		&cli.Float64Flag{Name: "block-reward", Usage: "Block reward in coins", Value: d.BlockReward},
		&cli.Float64Flag{Name: "fee-rate", Usage: "Cost in coins per unit of relayed volume", Value: d.FeeRate},
		&cli.Float64Flag{Name: "max-multiplier", Value: 50},
		&cli.IntFlag{Name: "points", Value: len(d.Multipliers)},
	}
}

func RunSpam(cmdCtx *cli.Context) error {
	rows, err := sim.SpamSaturation(sim.SpamParams{
		Honest:       cmdCtx.Int("honest"),
		BaseRawScore: cmdCtx.Float64("base"),
		KSat:         cmdCtx.Float64("k-sat"),
		KBase:        cmdCtx.Float64("k-base"),
		Omega:        cmdCtx.Float64("omega"),
		BlockReward:  cmdCtx.Float64("block-reward"),
		FeeRate:      cmdCtx.Float64("fee-rate"),
		Multipliers:  pog.Linspace(1, cmdCtx.Float64("max-multiplier"), cmdCtx.Int("points")),
	})
	if err != nil {
		return err
	}
	return writeTable(sim.SpamTable(rows), cmdCtx.String("out"))
}

func RevenueFlags() []cli.Flag {
	d := sim.DefaultRevenueParams()
	return []cli.Flag{
		outFlag(),
		&cli.Float64Flag{Name: "ntd", Value: d.NTD},
		&cli.IntFlag{Name: "max-length", Value: d.MaxLength},
		&cli.IntFlag{Name: "tx-count", Value: d.TxCount},
		&cli.Uint64Flag{Name: "tx-fee", Usage: "Fee per transaction in base units", Value: d.TxFee},
		&cli.Float64Flag{Name: "block-reward", Usage: "Block reward in coins", Value: pog.AmountToCoins(d.BlockReward)},
		&cli.Float64Flag{Name: "fee-share", Value: d.FeeShare},
	}
}

func RunRevenue(cmdCtx *cli.Context) error {
	rows, err := sim.ProposerRevenue(sim.RevenueParams{
		NTD:         cmdCtx.Float64("ntd"),
		MaxLength:   cmdCtx.Int("max-length"),
		TxCount:     cmdCtx.Int("tx-count"),
		TxFee:       cmdCtx.Uint64("tx-fee"),
		BlockReward: pog.CoinsToAmount(cmdCtx.Float64("block-reward")),
		FeeShare:    cmdCtx.Float64("fee-share"),
	})
	if err != nil {
		return err
	}
	return writeTable(sim.RevenueTable(rows), cmdCtx.String("out"))
}
