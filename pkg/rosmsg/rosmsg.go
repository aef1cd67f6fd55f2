// Package rosmsg implements the ROS1 wire encoding for the message
// types the bag generators and the bag inspector need.
package rosmsg

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Message is implemented by all ROS message types in this package.
type Message interface {
	// Type returns the full ROS type name (e.g., "std_msgs/String")
	Type() string

	// MD5Sum returns the canonical md5 of the message definition
	MD5Sum() string

	// Definition returns the full message definition text, including
	// the definitions of any embedded types
	Definition() string

	// Marshal serializes the message to the ROS1 wire format
	Marshal() ([]byte, error)
}

// Canonical md5sums, as produced by the ROS message generators.
const (
	StringType  = "std_msgs/String"
	StringMD5   = "992ce8a1687cec8c8bd883ec73ca41d1"
	Vector3Type = "geometry_msgs/Vector3"
	Vector3MD5  = "4a842b65f413084dc2b10fb484ea7f17"
	TwistType   = "geometry_msgs/Twist"
	TwistMD5    = "9f195f881246fdfa2798d1d3eebca84a"
)

const stringDefinition = "string data\n"

const vector3Definition = `# This represents a vector in free space.
# It is only meant to represent a direction. Therefore, it does not
# make sense to apply a translation to it (e.g., when applying a
# generic rigid transformation to a Vector3, tf2 will only apply the
# rotation). If you want your data to be translatable too, use the
# geometry_msgs/Point message instead.

float64 x
float64 y
float64 z
`

const twistDefinition = `# This expresses velocity in free space broken into its linear and angular parts.
Vector3  linear
Vector3  angular

================================================================================
MSG: geometry_msgs/Vector3
` + vector3Definition

// String corresponds to std_msgs/String.
type String struct {
	Data string
}

func (String) Type() string       { return StringType }
func (String) MD5Sum() string     { return StringMD5 }
func (String) Definition() string { return stringDefinition }

// Marshal serializes the string as a uint32 length prefix followed by
// the raw bytes, per the ROS1 wire format.
func (m String) Marshal() ([]byte, error) {
	buf := make([]byte, 4+len(m.Data))
	binary.LittleEndian.PutUint32(buf, uint32(len(m.Data)))
	copy(buf[4:], m.Data)
	return buf, nil
}

// UnmarshalString decodes a std_msgs/String payload.
func UnmarshalString(data []byte) (String, error) {
	if len(data) < 4 {
		return String{}, fmt.Errorf("string payload too short: %d bytes", len(data))
	}
	n := binary.LittleEndian.Uint32(data)
	if uint32(len(data)-4) < n {
		return String{}, fmt.Errorf("string payload truncated: want %d bytes, have %d", n, len(data)-4)
	}
	return String{Data: string(data[4 : 4+n])}, nil
}

// Vector3 corresponds to geometry_msgs/Vector3.
type Vector3 struct {
	X, Y, Z float64
}

func (Vector3) Type() string       { return Vector3Type }
func (Vector3) MD5Sum() string     { return Vector3MD5 }
func (Vector3) Definition() string { return vector3Definition }

func (m Vector3) Marshal() ([]byte, error) {
	buf := make([]byte, 24)
	m.put(buf)
	return buf, nil
}

func (m Vector3) put(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:], math.Float64bits(m.X))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(m.Y))
	binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(m.Z))
}

func vector3At(data []byte) Vector3 {
	return Vector3{
		X: math.Float64frombits(binary.LittleEndian.Uint64(data[0:])),
		Y: math.Float64frombits(binary.LittleEndian.Uint64(data[8:])),
		Z: math.Float64frombits(binary.LittleEndian.Uint64(data[16:])),
	}
}

// Twist corresponds to geometry_msgs/Twist: linear and angular velocity.
type Twist struct {
	Linear  Vector3
	Angular Vector3
}

func (Twist) Type() string       { return TwistType }
func (Twist) MD5Sum() string     { return TwistMD5 }
func (Twist) Definition() string { return twistDefinition }

func (m Twist) Marshal() ([]byte, error) {
	buf := make([]byte, 48)
	m.Linear.put(buf[0:24])
	m.Angular.put(buf[24:48])
	return buf, nil
}

// UnmarshalTwist decodes a geometry_msgs/Twist payload.
func UnmarshalTwist(data []byte) (Twist, error) {
	if len(data) != 48 {
		return Twist{}, fmt.Errorf("twist payload must be 48 bytes, got %d", len(data))
	}
	return Twist{
		Linear:  vector3At(data[0:24]),
		Angular: vector3At(data[24:48]),
	}, nil
}

// IsZero reports whether all six velocity components are zero.
func (m Twist) IsZero() bool {
	return m.Linear == (Vector3{}) && m.Angular == (Vector3{})
}
