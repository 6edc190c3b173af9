// Package config loads runtime configuration for the commissioning client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the document server
//	-i int      online status check interval (seconds)
//	-f string   local database file
//	-t string   access token file
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "350ms" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "database_path": "commissionsync.db",
//	  "autosave_interval": "350ms",
//	  "pull_debounce_interval": "400ms",
//	  "drift_tolerance": "250ms",
//	  "token_file": ""
//	}
package config
