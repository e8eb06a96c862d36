// Package triagescript embeds the gdb-side instrumentation script that
// the debugger driver loads to extract structured crash context. The
// script's internals are an opaque artifact; this package is only
// responsible for shipping its bytes and materializing them to disk
// once per driver instance.
package triagescript

import _ "embed"

// Source is the embedded gdb Python triage script.
//
//go:embed script.py
var Source []byte
