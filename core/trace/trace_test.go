package trace

import (
	"bytes"
	"strings"
	"testing"

	"github.com/liamzebedee/pogsim/core/pog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePaths() []pog.Path {
	return []pog.Path{
		{Epoch: 0, Relayers: []pog.NodeID{"A", "B", "C"}, Proposer: "D"},
		{Epoch: 0, Relayers: []pog.NodeID{"B"}, Proposer: "A", BaseScore: 0.75},
		{Epoch: 3, Relayers: []pog.NodeID{"C", "A"}, Proposer: ""},
	}
}

func TestReadPathsCSV(t *testing.T) {
	assert := assert.New(t)

	input := "epoch,proposer,relayers\n0,D,A>B>C\n2, A , B > C\n5,B,\n"
	paths, err := ReadPathsCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(paths, 3)

	assert.Equal(pog.Path{Epoch: 0, Relayers: []pog.NodeID{"A", "B", "C"}, Proposer: "D"}, paths[0])
	assert.Equal(pog.Path{Epoch: 2, Relayers: []pog.NodeID{"B", "C"}, Proposer: "A"}, paths[1])
	assert.True(paths[2].Degenerate())
}

func TestPathsCSVRoundTrip(t *testing.T) {
	assert := assert.New(t)

	buf := new(bytes.Buffer)
	require.NoError(t, WritePathsCSV(buf, samplePaths()))

	paths, err := ReadPathsCSV(buf)
	require.NoError(t, err)
	assert.Equal(samplePaths(), paths)
}

func TestReadPathsCSVErrors(t *testing.T) {
	assert := assert.New(t)

	_, err := ReadPathsCSV(strings.NewReader("epoch,relayers\n0,A\n"))
	assert.NotNil(err)

	_, err = ReadPathsCSV(strings.NewReader("epoch,proposer,relayers\nx,A,B\n"))
	assert.NotNil(err)

	_, err = ReadPathsCSV(strings.NewReader(""))
	assert.NotNil(err)

	// Reordered header with a short row.
	_, err = ReadPathsCSV(strings.NewReader("note,epoch,proposer,relayers\nx,0,D\n"))
	assert.ErrorContains(err, "missing relayers")

	paths, err := ReadPathsCSV(strings.NewReader("note,relayers,epoch,proposer\nx,A>B,2,D\n"))
	require.NoError(t, err)
	assert.Equal([]pog.Path{{Epoch: 2, Relayers: []pog.NodeID{"A", "B"}, Proposer: "D"}}, paths)
}

func TestPathsBencodeRoundTrip(t *testing.T) {
	assert := assert.New(t)

	buf := new(bytes.Buffer)
	require.NoError(t, WritePathsBencode(buf, samplePaths()))
	assert.True(strings.HasPrefix(buf.String(), "d"))

	paths, err := ReadPathsBencode(buf)
	require.NoError(t, err)
	assert.Equal(samplePaths(), paths)
}

func TestReadPathsBencodeRejectsVersion(t *testing.T) {
	assert := assert.New(t)

	_, err := ReadPathsBencode(strings.NewReader("d5:pathsle7:versioni9ee"))
	assert.NotNil(err)
}

func TestNodesCSVRoundTrip(t *testing.T) {
	assert := assert.New(t)

	nodes := []pog.Node{
		{ID: "A", Stake: 10.5, HashPower: 1},
		{ID: "B", Stake: 0, HashPower: 0.25},
	}
	buf := new(bytes.Buffer)
	require.NoError(t, WriteNodesCSV(buf, nodes))
	assert.True(strings.HasPrefix(buf.String(), "node,stake,hash_power\n"))

	read, err := ReadNodesCSV(buf)
	require.NoError(t, err)
	assert.Equal(nodes, read)
}

func TestReadNodesCSVWithoutHashPower(t *testing.T) {
	assert := assert.New(t)

	nodes, err := ReadNodesCSV(strings.NewReader("node,stake\nA,3\nB,1\n"))
	require.NoError(t, err)
	assert.Equal([]pog.Node{{ID: "A", Stake: 3}, {ID: "B", Stake: 1}}, nodes)

	_, err = ReadNodesCSV(strings.NewReader("node,stake\nA,lots\n"))
	assert.NotNil(err)

	_, err = ReadNodesCSV(strings.NewReader("region,hash_power,node,stake\neu,1,A\n"))
	assert.ErrorContains(err, "missing stake")
}
