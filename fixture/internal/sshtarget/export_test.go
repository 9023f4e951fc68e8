package sshtarget

// Exported for tests in sshtarget_test.
var (
	KnownHostPaths   = knownHostPaths
	GlobalKnownHosts = globalKnownHosts
)
