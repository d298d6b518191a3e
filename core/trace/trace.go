// Package trace reads and writes the inputs of a simulation: relay path
// traces and node tables.
//
// Path traces come as CSV:
//
//	epoch,proposer,relayers
//	0,D,A>B>C
//
// or as a bencoded dictionary, the format used for compact trace dumps.
package trace

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/jackpal/bencode-go"
	"github.com/liamzebedee/pogsim/core/pog"
	"github.com/pkg/errors"
)

// Separates relayers inside the relayers column.
const RelayerSeparator = ">"

const traceVersion = 1

var (
	PathColumns = []string{"epoch", "proposer", "relayers"}
	NodeColumns = []string{"node", "stake", "hash_power"}
)

func readHeader(r *csv.Reader, expected []string) (map[string]int, error) {
	header, err := r.Read()
	if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}
	for _, col := range expected {
		if _, ok := index[col]; !ok {
			return nil, errors.Errorf("missing column %q", col)
		}
	}
	return index, nil
}

// checkColumns reports the first required column a ragged record is missing.
func checkColumns(record []string, index map[string]int, required []string, line int) error {
	for _, col := range required {
		if index[col] >= len(record) {
			return errors.Errorf("line %d: missing %s, got %d columns", line, col, len(record))
		}
	}
	return nil
}

func splitRelayers(s string) []pog.NodeID {
	relayers := []pog.NodeID{}
	s = strings.TrimSpace(s)
	if s == "" {
		return relayers
	}
	for _, id := range strings.Split(s, RelayerSeparator) {
		relayers = append(relayers, strings.TrimSpace(id))
	}
	return relayers
}

// ReadPathsCSV reads a path trace. An optional base_score column overrides
// the default per-path base score.
func ReadPathsCSV(r io.Reader) ([]pog.Path, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	index, err := readHeader(cr, PathColumns)
	if err != nil {
		return nil, err
	}
	baseCol, hasBase := index["base_score"]

	paths := []pog.Path{}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading line %d", line)
		}
		if err := checkColumns(record, index, PathColumns, line); err != nil {
			return nil, err
		}

		epoch, err := strconv.ParseInt(strings.TrimSpace(record[index["epoch"]]), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: epoch", line)
		}
		p := pog.Path{
			Epoch:    epoch,
			Proposer: strings.TrimSpace(record[index["proposer"]]),
			Relayers: splitRelayers(record[index["relayers"]]),
		}
		if hasBase && baseCol < len(record) && strings.TrimSpace(record[baseCol]) != "" {
			p.BaseScore, err = strconv.ParseFloat(strings.TrimSpace(record[baseCol]), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: base_score", line)
			}
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func WritePathsCSV(w io.Writer, paths []pog.Path) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"epoch", "proposer", "relayers", "base_score"}); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for _, p := range paths {
		base := ""
		if p.BaseScore != 0 {
			base = strconv.FormatFloat(p.BaseScore, 'f', -1, 64)
		}
		record := []string{
			strconv.FormatInt(p.Epoch, 10),
			p.Proposer,
			strings.Join(p.Relayers, RelayerSeparator),
			base,
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "writing path")
		}
	}
	cw.Flush()
	return cw.Error()
}

type pathRecord struct {
	Epoch     int64    `bencode:"epoch"`
	Proposer  string   `bencode:"proposer"`
	Relayers  []string `bencode:"relayers"`
	BaseScore string   `bencode:"base_score"`
}

type traceFile struct {
	Version int64        `bencode:"version"`
	Paths   []pathRecord `bencode:"paths"`
}

// WritePathsBencode writes a trace as a bencoded dictionary. Bencode has no
// floats, so base scores are stored as decimal strings.
func WritePathsBencode(w io.Writer, paths []pog.Path) error {
	file := traceFile{
		Version: traceVersion,
		Paths:   make([]pathRecord, len(paths)),
	}
	for i, p := range paths {
		rec := pathRecord{
			Epoch:    p.Epoch,
			Proposer: p.Proposer,
			Relayers: p.Relayers,
		}
		if rec.Relayers == nil {
			rec.Relayers = []string{}
		}
		if p.BaseScore != 0 {
			rec.BaseScore = strconv.FormatFloat(p.BaseScore, 'g', -1, 64)
		}
		file.Paths[i] = rec
	}
	return errors.Wrap(bencode.Marshal(w, file), "encoding trace")
}

func ReadPathsBencode(r io.Reader) ([]pog.Path, error) {
	var file traceFile
	if err := bencode.Unmarshal(r, &file); err != nil {
		return nil, errors.Wrap(err, "decoding trace")
	}
	if file.Version != traceVersion {
		return nil, errors.Errorf("unsupported trace version %d", file.Version)
	}

	paths := make([]pog.Path, len(file.Paths))
	for i, rec := range file.Paths {
		p := pog.Path{
			Epoch:    rec.Epoch,
			Proposer: rec.Proposer,
			Relayers: rec.Relayers,
		}
		if p.Relayers == nil {
			p.Relayers = []pog.NodeID{}
		}
		if rec.BaseScore != "" {
			base, err := strconv.ParseFloat(rec.BaseScore, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "path %d: base_score", i)
			}
			p.BaseScore = base
		}
		paths[i] = p
	}
	return paths, nil
}

// ReadNodesCSV reads a node table. The hash_power column is optional.
func ReadNodesCSV(r io.Reader) ([]pog.Node, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	index, err := readHeader(cr, NodeColumns[:2])
	if err != nil {
		return nil, err
	}
	powerCol, hasPower := index["hash_power"]

	nodes := []pog.Node{}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading line %d", line)
		}
		if err := checkColumns(record, index, NodeColumns[:2], line); err != nil {
			return nil, err
		}

		n := pog.Node{ID: strings.TrimSpace(record[index["node"]])}
		n.Stake, err = strconv.ParseFloat(strings.TrimSpace(record[index["stake"]]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: stake", line)
		}
		if hasPower && powerCol < len(record) {
			n.HashPower, err = strconv.ParseFloat(strings.TrimSpace(record[powerCol]), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: hash_power", line)
			}
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func WriteNodesCSV(w io.Writer, nodes []pog.Node) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(NodeColumns); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for _, n := range nodes {
		record := []string{
			n.ID,
			strconv.FormatFloat(n.Stake, 'f', -1, 64),
			strconv.FormatFloat(n.HashPower, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "writing node")
		}
	}
	cw.Flush()
	return cw.Error()
}
