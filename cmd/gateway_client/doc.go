// Package main (cmd/gateway_client) is a command line client for the gateway.
//
// Example usage:
//
//	gateway_client upload-file ./report.csv
//	echo '{"name":"alice"}' | gateway_client upload-record -
//	gateway_client get-file --out report.csv <cid>
//	gateway_client get-records <cid> <cid>
package main
