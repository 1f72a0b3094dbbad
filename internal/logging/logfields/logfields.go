// Package logfields defines common logging fields which are used across packages
package logfields

const (
	// LogSubsys is the field denoting the subsystem when logging
	LogSubsys = "subsys"

	// Module is the directory of the build module being processed
	Module = "module"

	// Upstream is the server-side module a client phase consumes
	Upstream = "upstream"

	// Phase is the pipeline phase (server or client)
	Phase = "phase"

	// Namespace is the cache namespace key
	Namespace = "namespace"

	// Fingerprint is the hash of the tracked settings
	Fingerprint = "fingerprint"

	// EntryPoint is the entry point reference of a generator launcher
	EntryPoint = "entryPoint"

	// Launcher is the path of a launcher artifact
	Launcher = "launcher"

	// Package is the destination package of a generator
	Package = "package"

	// Path is a filesystem path
	Path = "path"

	// Directory is a destination directory
	Directory = "dir"

	// Count is a generic count
	Count = "count"

	// ExitCode is the exit code of an external process
	ExitCode = "exitCode"

	// Duration is the time an operation took
	Duration = "duration"

	// Backend is the cache store backend name
	Backend = "backend"
)
