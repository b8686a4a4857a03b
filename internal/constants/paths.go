package constants

// Log file names.
const (
	// CLILogFileName is the name of the global CLI log file for host operations.
	// This file is located in ~/.foreman/logs/foreman.log
	CLILogFileName = "foreman.log"
)

// Log rotation settings for the global CLI log (lumberjack).
const (
	// LogMaxSizeMB is the maximum size in megabytes before rotation.
	LogMaxSizeMB = 10

	// LogMaxBackups is the number of rotated files to retain.
	LogMaxBackups = 3

	// LogMaxAgeDays is the maximum age in days of a rotated file.
	LogMaxAgeDays = 30

	// LogCompress controls gzip compression of rotated files.
	LogCompress = true
)

// Configuration file names.
const (
	// GlobalConfigName is the name of the global foreman configuration file.
	// This file is located in the foreman home directory.
	GlobalConfigName = "config.yaml"

	// ProjectConfigName is the name of the project-specific configuration file.
	// This file is located in the project root directory.
	ProjectConfigName = ".foreman.yaml"
)

// EnvHome is the environment variable that overrides the foreman home directory.
const EnvHome = "FOREMAN_HOME"
