// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a validated Config:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# CLI Flags

	-u         Base URL of the result files
	-c         Cache directory
	-m         Participating parties CSV
	-workers   Parallel downloads
	-e         Election type (RD, RF, KF)
	-l         Region level of the votes table
	-s         Region level of the collection district table
	-w         Add the 2018 Wednesday count
	-f         Keep refreshing
	-delay     Seconds between refreshes
	-p         HTTP API port
	-d         Database URL or sqlite file
	-t         Database type (sqlite, postgres)
	-log-level Log level

The optional positional argument is the counting occasion, preliminär or
slutlig.

# Environment Variables

Flags fall back to environment variables read through viper, then to
defaults:

	RESULTS_URL      → -u
	CACHE_DIR        → -c
	ELECTION         → -e
	OCCASION         → positional
	FOLLOW           → -f
	DELAY            → -delay
	PORT             → -p
	DATABASE_URL     → -d
	DATABASE_TYPE    → -t

CLI flags take precedence over environment variables.

# Validation

  - the results URL must be http or https; a trailing slash is added
  - levels must be between -1 and 3
  - following requires a positive delay
  - postgres requires a database URL; sqlite defaults to a file in the cache
*/
package cliparse
