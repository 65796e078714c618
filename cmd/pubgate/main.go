package main

import (
	"os"

	"estate-backend/cmd/pubgate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
