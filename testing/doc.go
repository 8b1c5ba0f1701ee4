// Package testing holds constants shared by the go-sqltx test suites.
//
// The containers subpackage starts disposable database servers for the
// integration tests, which are built with the "integration" tag:
//
//	go test -tags integration ./...
package testing
