package rosmsg

// Time represents a ROS timestamp as seconds and nanoseconds since the
// Unix epoch.
type Time struct {
	Sec  uint32
	Nsec uint32
}

// TimeFromSec converts a floating-point number of seconds into a Time.
// The fractional part is truncated to whole nanoseconds, matching the
// conversion the rospy tooling performs, so bag files produced here
// carry the same timestamps the reference scripts produced.
func TimeFromSec(t float64) Time {
	sec := uint32(t)
	nsec := uint32((t - float64(sec)) * 1e9)
	return Time{Sec: sec, Nsec: nsec}
}

// ToSec returns the timestamp as floating-point seconds.
func (t Time) ToSec() float64 {
	return float64(t.Sec) + float64(t.Nsec)*1e-9
}

// Before reports whether t is strictly earlier than u.
func (t Time) Before(u Time) bool {
	if t.Sec != u.Sec {
		return t.Sec < u.Sec
	}
	return t.Nsec < u.Nsec
}

// IsZero reports whether the timestamp is the zero time.
func (t Time) IsZero() bool {
	return t.Sec == 0 && t.Nsec == 0
}
