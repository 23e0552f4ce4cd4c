package main

// Flag names for Viper binding
const (
	// Global flags
	FlagVerbose    = "verbose"
	FlagConfig     = "config"
	FlagLogFile    = "log-file"
	FlagSocketPath = "socket-path"
	FlagProfiles   = "profiles"

	// Console flags
	FlagLocal = "local"

	// Deploy command flags
	FlagBranch    = "branch"
	FlagStartOnly = "start-only"

	// Output format flags
	FlagJSON = "json"
)
