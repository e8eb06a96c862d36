// Package fmtt prints an error chain the way afltriage shows a fatal
// startup failure: one line per wrapped layer, with a full spew dump
// of the innermost cause when --debug is set.
package fmtt

import (
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// PrintErrChain walks err's Unwrap() chain and prints each layer with
// its type, outermost first.
func PrintErrChain(err error) {
	if err == nil {
		fmt.Println("<nil>")
		return
	}
	for i, e := 0, err; e != nil; i, e = i+1, errors.Unwrap(e) {
		fmt.Printf("[%d] %T: %v\n", i, e, e)
	}
}

// PrintErrChainDebug is PrintErrChain plus a spew dump of the
// innermost (root-cause) error in the chain.
func PrintErrChainDebug(err error) {
	PrintErrChain(err)
	root := err
	for e := err; e != nil; e = errors.Unwrap(e) {
		root = e
	}
	if root != nil {
		spew.Dump(root)
	}
}
