// Package genbag writes the canned turtle command bags used for
// liability demo playback.
package genbag

import (
	"github.com/open-teleop/robobag/pkg/rosbag"
	"github.com/open-teleop/robobag/pkg/rosmsg"
)

// Default output paths, matching the historical script names.
const (
	ObjectiveStringBag = "objective_string.bag"
	TwistCircleBag     = "twist.bag"
)

// Topics the turtle listens on.
const (
	CommandTopic  = "/turtle1/cmd"
	VelocityTopic = "/turtle1/cmd_vel"
)

// ObjectivePayload is the objective text written by WriteObjectiveString.
const ObjectivePayload = "Dear turtle, please make a circle. Thanks!" // let's be polite with a turtle

// Shape of the twist circle scenario: a zero command, a fixed circle
// command repeated at 100 Hz, and a final zero command.
const (
	CircleCommandCount = 239
	circleStartSec     = 1.0
	circleStepSec      = 0.01
	circleEndStopSec   = 5.0
)

// circleCommand drives the turtle in a circle: forward along x while
// rotating about z.
var circleCommand = rosmsg.Twist{
	Linear:  rosmsg.Vector3{X: 2},
	Angular: rosmsg.Vector3{Z: 2},
}

// WriteObjectiveString writes a bag holding the single objective
// message at t=0.1s.
func WriteObjectiveString(path string) (err error) {
	bag, err := rosbag.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := bag.Close(); err == nil {
			err = closeErr
		}
	}()

	msg := rosmsg.String{Data: ObjectivePayload}
	return bag.WriteMessage(CommandTopic, rosmsg.TimeFromSec(0.1), msg)
}

// WriteTwistCircle writes a bag holding the circle maneuver: a zero
// velocity at t=0, the circle command at t=1+0.01i for each of the 239
// steps, and a zero velocity at t=5 to stop the turtle.
func WriteTwistCircle(path string) (err error) {
	bag, err := rosbag.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := bag.Close(); err == nil {
			err = closeErr
		}
	}()

	stop := rosmsg.Twist{}

	if err := bag.WriteMessage(VelocityTopic, rosmsg.TimeFromSec(0), stop); err != nil {
		return err
	}
	for i := 0; i < CircleCommandCount; i++ {
		t := rosmsg.TimeFromSec(circleStartSec + circleStepSec*float64(i))
		if err := bag.WriteMessage(VelocityTopic, t, circleCommand); err != nil {
			return err
		}
	}
	return bag.WriteMessage(VelocityTopic, rosmsg.TimeFromSec(circleEndStopSec), stop)
}
