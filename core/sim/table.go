package sim

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// A Table is a header plus rows of formatted cells, ready to be written as
// CSV for the plotting layer.
type Table struct {
	Columns []string
	Rows    [][]string
}

func NewTable(columns ...string) *Table {
	return &Table{Columns: columns, Rows: [][]string{}}
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		if x {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", x)
	}
}

// Append adds one row. Values are formatted in their shortest exact form.
func (t *Table) Append(values ...interface{}) {
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = formatCell(v)
	}
	t.Rows = append(t.Rows, row)
}

func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

var (
	NodeTableColumns  = []string{"epoch", "node", "raw_score", "normalized_contribution", "virtual_stake", "selection_probability"}
	EpochTableColumns = []string{"epoch", "ntd_current", "ntd_target", "avg_path_length", "penalty", "proposer", "miner_fee_income", "network_pool", "paths"}
)

// NodeTable flattens the per-node rows of the reports.
func NodeTable(reports []EpochReport) *Table {
	t := NewTable(NodeTableColumns...)
	for _, r := range reports {
		for _, n := range r.Nodes {
			t.Append(n.Epoch, n.Node, n.RawScore, n.NormalizedContribution, n.VirtualStake, n.SelectionProbability)
		}
	}
	return t
}

// EpochTable has one row per epoch.
func EpochTable(reports []EpochReport) *Table {
	t := NewTable(EpochTableColumns...)
	for _, r := range reports {
		t.Append(r.Epoch, r.NTDCurrent, r.NTDTarget, r.AvgPathLength, r.Penalty, r.Proposer, r.Reward.MinerFeeIncome, r.Reward.NetworkPool, r.Paths)
	}
	return t
}
