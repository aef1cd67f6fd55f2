package main

import (
	"fmt"
	"os"

	"github.com/open-teleop/robobag/pkg/genbag"
	customlog "github.com/open-teleop/robobag/pkg/log"
)

func main() {
	logger, err := customlog.NewLogrusLogger("info", "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "genbag-string: %v\n", err)
		os.Exit(1)
	}

	path := genbag.ObjectiveStringBag
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	if err := genbag.WriteObjectiveString(path); err != nil {
		logger.Fatalf("Failed to write %s: %v", path, err)
	}
	logger.Infof("Wrote objective bag %s", path)
}
