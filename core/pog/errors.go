package pog

import (
	"errors"
)

var (
	ErrInvalidParameter = errors.New("pog: invalid parameter")
	ErrNodeSetMismatch  = errors.New("pog: node sets do not match")
	ErrUnknownNode      = errors.New("pog: unknown node")
	ErrDuplicateNode    = errors.New("pog: duplicate node")
	ErrEpochRegression  = errors.New("pog: path epoch precedes current epoch")
	ErrNoProposer       = errors.New("pog: no proposer with positive weight")
)
