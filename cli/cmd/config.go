package cmd

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/liamzebedee/pogsim/core"
	"github.com/liamzebedee/pogsim/core/pog"
	"github.com/liamzebedee/pogsim/core/sim"
	"github.com/liamzebedee/pogsim/core/store"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

var cliLog = core.NewLogger("pogsim", "")

// ConfigFlags are shared by every command that builds a pog.Config. Flags
// override the YAML file, which overrides the preset.
func ConfigFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "preset",
			Usage: "Named parameter set to start from",
			Value: "default",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "YAML file with parameter overrides",
		},
		&cli.StringFlag{Name: "mode", Usage: "Consensus mode (pog, pos, pow)"},
		&cli.StringFlag{Name: "model", Usage: "Virtual stake model (mix, boost)"},
		&cli.StringFlag{Name: "path-discount", Usage: "Long-path discount (none, quadratic, hyperbolic)"},
		&cli.Float64Flag{Name: "omega", Usage: "Contribution weight of the mix model, in [0, 1]"},
		&cli.Float64Flag{Name: "k", Usage: "Aggression multiplier of the boost model"},
		&cli.Float64Flag{Name: "k-sat", Usage: "Saturation scale"},
		&cli.Float64Flag{Name: "k-base", Usage: "Saturation base"},
		&cli.Float64Flag{Name: "ntd-step", Usage: "NTD adaptation rate per epoch"},
		&cli.Float64Flag{Name: "fee-share", Usage: "Share of the fees paid to the proposer"},
		&cli.Int64Flag{Name: "seed", Usage: "Seed for proposer sampling"},
	}
}

func readConfigFile(path string, conf *pog.Config) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(buf, conf); err != nil {
		return errors.Wrapf(err, "parsing config file %s", path)
	}
	return nil
}

// LoadConfig resolves the configuration of a command. Presets saved in db
// are available when db is not nil.
func LoadConfig(cmdCtx *cli.Context, db *sql.DB) (pog.Config, error) {
	presets := pog.GetPresets()
	if db != nil {
		var err error
		presets, err = store.GetPresets(db)
		if err != nil {
			return pog.Config{}, err
		}
	}

	name := cmdCtx.String("preset")
	if name == "" {
		name = "default"
	}
	preset, ok := presets[name]
	if !ok {
		return pog.Config{}, fmt.Errorf("unknown preset %q", name)
	}
	conf := preset.Config

	if path := cmdCtx.String("config"); path != "" {
		if err := readConfigFile(path, &conf); err != nil {
			return pog.Config{}, err
		}
	}

	if cmdCtx.IsSet("mode") {
		conf.Mode = pog.Mode(cmdCtx.String("mode"))
	}
	if cmdCtx.IsSet("model") {
		conf.Model = pog.Model(cmdCtx.String("model"))
	}
	if cmdCtx.IsSet("path-discount") {
		conf.PathDiscount = pog.Discount(cmdCtx.String("path-discount"))
	}
	if cmdCtx.IsSet("omega") {
		conf.Omega = cmdCtx.Float64("omega")
	}
	if cmdCtx.IsSet("k") {
		conf.K = cmdCtx.Float64("k")
	}
	if cmdCtx.IsSet("k-sat") {
		conf.KSat = cmdCtx.Float64("k-sat")
	}
	if cmdCtx.IsSet("k-base") {
		conf.KBase = cmdCtx.Float64("k-base")
	}
	if cmdCtx.IsSet("ntd-step") {
		conf.NTDStep = cmdCtx.Float64("ntd-step")
	}
	if cmdCtx.IsSet("fee-share") {
		conf.FeeShareRatio = cmdCtx.Float64("fee-share")
	}
	if cmdCtx.IsSet("seed") {
		conf.Seed = cmdCtx.Int64("seed")
	}

	if err := conf.Validate(); err != nil {
		return pog.Config{}, err
	}
	return conf, nil
}

// writeTable writes t as CSV to path, or to stdout when path is "-".
func writeTable(t *sim.Table, path string) error {
	if path == "" || path == "-" {
		return t.WriteCSV(os.Stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := t.WriteCSV(f); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	cliLog.Printf("wrote %d rows to %s\n", len(t.Rows), path)
	return nil
}

func ListPresets(cmdCtx *cli.Context) error {
	db, err := openStore(cmdCtx.String("db"))
	if err != nil {
		return err
	}
	defer db.Close()

	presets, err := store.GetPresets(db)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	return enc.Encode(presets)
}

func SavePreset(cmdCtx *cli.Context) error {
	db, err := openStore(cmdCtx.String("db"))
	if err != nil {
		return err
	}
	defer db.Close()

	name := cmdCtx.String("name")
	if name == "" {
		return fmt.Errorf("--name is required")
	}
	conf, err := LoadConfig(cmdCtx, db)
	if err != nil {
		return err
	}

	preset := pog.Preset{Name: name, Description: cmdCtx.String("description"), Config: conf}
	if err := store.SavePreset(db, preset); err != nil {
		return err
	}
	cliLog.Printf("preset %s saved\n", name)
	return nil
}
