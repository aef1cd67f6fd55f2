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
		fmt.Fprintf(os.Stderr, "genbag-twist: %v\n", err)
		os.Exit(1)
	}

	path := genbag.TwistCircleBag
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	if err := genbag.WriteTwistCircle(path); err != nil {
		logger.Fatalf("Failed to write %s: %v", path, err)
	}
	logger.Infof("Wrote twist bag %s (%d commands)", path, genbag.CircleCommandCount+2)
}
