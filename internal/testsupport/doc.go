// Package testsupport provides shared fixtures for package tests: temp-dir
// configs, opened libraries, and a fake registry server.
package testsupport
