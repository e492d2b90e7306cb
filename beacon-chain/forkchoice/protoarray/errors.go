package protoarray

import "github.com/pkg/errors"

var (
	errUnknownJustifiedRoot  = errors.New("unknown justified root")
	errInvalidJustifiedIndex = errors.New("node index does not exist in node list")
	errInvalidNodeIndex      = errors.New("node index out of range")
	errInvalidDeltaLength    = errors.New("wrong number of deltas for number of nodes in store")
	errInvalidNodeWeight     = errors.New("node weight would underflow below zero")
	errUnknownParentRoot     = errors.New("unknown parent root")
	errInvalidBestDescendant = errors.New("best descendant index out of range")
	errNotViableForHead      = errors.New("head returned a node not viable for head")
)
