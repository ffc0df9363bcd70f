// Package config loads and validates the signalbridge configuration.
//
// Configuration is a single JSON file merged over built-in defaults, with
// SIGNALBRIDGE_* environment variables overriding the fields operators most
// often change (broker address, NATS URLs, credentials, log level, ports).
// The file is read once at startup; the resulting Config is immutable.
//
//	cfg, err := config.Load("/etc/signalbridge/config.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Durations accept Go duration strings ("2s", "500ms") in the file. Route
// entries are validated up front: exact signal path, NATS subject, optional
// decode kind, optional request subject for on-demand reads.
package config
