package main

import (
	"context"
	"os"

	"github.com/soundprediction/go-tabgraph/cmd/tabgraph"
)

func main() {
	if err := tabgraph.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
