// Package config assembles runtime settings for inboxcal.
//
// Values are layered in this order, later layers winning: built-in
// defaults, the TOML config file, a .env file, process environment and
// finally command line overrides. A CalDAV password may be kept in AWS
// SSM Parameter Store instead of the environment; it is resolved during
// Load when no plain password is configured.
//
// Missing CalDAV credentials are not an error. The calendar feature is
// simply reported as disabled.
package config
