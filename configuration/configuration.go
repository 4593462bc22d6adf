// Package configuration holds the engine's tunable parameters, read via
// github.com/fulldump/goconfig (flags + environment variables) the same
// way the teacher's configuration.Configuration is populated. Per
// spec.md §6 this configuration never governs the interactive command
// surface's pid/value prompts — only engine-internal knobs.
package configuration

import "github.com/fulldump/memscan/dumpstore"

// Configuration is the set of engine tunables a memscan binary may
// expose via flags/env, mirroring the teacher's flat, tag-driven struct
// (configuration.Configuration in inceptiondb).
type Configuration struct {
	DumpDir         string `usage:"directory for the region/result scratch dump files"`
	DumpBufferSize  int    `usage:"RAM write buffer size, in bytes, for each dump store"`
	SearchWorkers   int    `usage:"intra-region parallel search pool size; not read by the engine, which always uses scanresult.SearchWorkers"`
	JoinWorkers     int    `usage:"worker pool size for next-pass join dispatch"`
	IntrospectAddr  string `usage:"HTTP address for the optional read-only introspection API, empty disables it"`
	ShowConfig      bool   `usage:"print the resolved configuration and exit"`
}

// Default returns a Configuration pre-populated with the values the
// spec recommends, for goconfig.Read to then override.
func Default() Configuration {
	return Configuration{
		DumpDir:        ".",
		DumpBufferSize: dumpstore.BufferSize,
		SearchWorkers:  4,
		JoinWorkers:    8,
		IntrospectAddr: "",
	}
}
