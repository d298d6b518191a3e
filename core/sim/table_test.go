package sim

import (
	"bytes"
	"strings"
	"testing"

	"github.com/liamzebedee/pogsim/core/pog"
	"github.com/stretchr/testify/assert"
)

func TestEpochTableCSV(t *testing.T) {
	assert := assert.New(t)

	d := newTestDriver(t, pog.DefaultConfig(), testNodes())
	reports, err := d.Run([]pog.Path{
		{Epoch: 0, Relayers: []pog.NodeID{"A", "B"}, Proposer: "C"},
		{Epoch: 1, Relayers: []pog.NodeID{"B"}, Proposer: "D"},
	})
	assert.Nil(err)

	buf := new(bytes.Buffer)
	assert.Nil(EpochTable(reports).WriteCSV(buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(lines, 3)
	assert.Equal("epoch,ntd_current,ntd_target,avg_path_length,penalty,proposer,miner_fee_income,network_pool,paths", lines[0])
	assert.True(strings.HasPrefix(lines[1], "0,1,2,2,1,"), lines[1])
	assert.True(strings.HasSuffix(lines[1], ",25000,25000,1"), lines[1])

	buf.Reset()
	assert.Nil(NodeTable(reports).WriteCSV(buf))
	lines = strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(lines, 1+2*4)
	assert.Equal("epoch,node,raw_score,normalized_contribution,virtual_stake,selection_probability", lines[0])
	assert.True(strings.HasPrefix(lines[1], "0,A,"), lines[1])
}

func TestTableFormatting(t *testing.T) {
	assert := assert.New(t)

	table := NewTable("a", "b", "c", "d", "e")
	table.Append(0.25, int64(3), uint64(7), true, "x,y")

	buf := new(bytes.Buffer)
	assert.Nil(table.WriteCSV(buf))
	assert.Equal("a,b,c,d,e\n0.25,3,7,1,\"x,y\"\n", buf.String())
}
