package main

import (
	"os"

	"github.com/ThatCatDev/ggufdeck/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
