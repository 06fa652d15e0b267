package main

import (
	"github.com/ColonelBlimp/morsevision/cmd"
	"github.com/ColonelBlimp/morsevision/internal/recovery"
)

func main() {
	defer recovery.HandlePanic(nil)
	cmd.Execute()
}
