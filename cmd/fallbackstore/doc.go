// Package main (cmd/fallbackstore) is the command line front end of the
// fallback storage.
//
// Backends are given as location URIs, most preferred first, either with
// repeated --backend flags, the FALLBACK_STORAGES environment variable
// (comma separated) or the backends list of a YAML config file. Reads fall
// back through the list, writes go to the first backend that accepts them.
//
// The serve command exposes the storage over HTTP together with health,
// drain and Prometheus metrics endpoints. The remaining commands run a
// single operation and print its result to stdout.
//
// Example usage:
//
//	fallbackstore -b file:///srv/media -b s3://media-archive/?region=eu-west-1 \
//	    serve --listen-addr=0.0.0.0:8080
//
//	fallbackstore -c config.yaml put photos/cat.jpg ./cat.jpg
//	fallbackstore -c config.yaml cat photos/cat.jpg > cat.jpg
//	fallbackstore -c config.yaml url photos/cat.jpg
package main
