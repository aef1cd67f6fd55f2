package main

import (
	"fmt"
	"os"

	"github.com/open-teleop/robobag/pkg/rosbag"
	"github.com/open-teleop/robobag/pkg/rosmsg"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: bagcat <file.bag> [<file.bag> ...]")
		os.Exit(2)
	}

	for _, path := range os.Args[1:] {
		if err := catBag(path); err != nil {
			fmt.Fprintf(os.Stderr, "bagcat: %s: %v\n", path, err)
			os.Exit(1)
		}
	}
}

func catBag(path string) error {
	bag, err := rosbag.Open(path)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d connection(s), %d message(s)\n", path, len(bag.Connections), len(bag.Messages))

	types := make(map[string]string)
	for _, c := range bag.Connections {
		fmt.Printf("  conn %d: %s [%s]\n", c.ID, c.Topic, c.Type)
		types[c.Topic] = c.Type
	}

	for _, m := range bag.Messages {
		fmt.Printf("  %12.9f %-20s %s\n", m.Time.ToSec(), m.Topic, render(types[m.Topic], m.Data))
	}
	return nil
}

// render decodes the payloads bagcat knows about; anything else is
// shown by size only.
func render(msgType string, data []byte) string {
	switch msgType {
	case rosmsg.StringType:
		if s, err := rosmsg.UnmarshalString(data); err == nil {
			return fmt.Sprintf("%q", s.Data)
		}
	case rosmsg.TwistType:
		if tw, err := rosmsg.UnmarshalTwist(data); err == nil {
			return fmt.Sprintf("linear=(%g, %g, %g) angular=(%g, %g, %g)",
				tw.Linear.X, tw.Linear.Y, tw.Linear.Z,
				tw.Angular.X, tw.Angular.Y, tw.Angular.Z)
		}
	}
	return fmt.Sprintf("<%d bytes>", len(data))
}
