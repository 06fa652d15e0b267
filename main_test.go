package main

import (
	"testing"
)

// TestMain_Imports verifies that the main package compiles.
// main() exits through cmd.Execute, so behaviour is tested in cmd.
func TestMain_Imports(t *testing.T) {
}
