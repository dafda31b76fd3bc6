package message

import "encoding/binary"

// MechStatusSize is the encoded size of a mechanism status record.
const MechStatusSize = 7

// Flag bits of the last byte of the mechanism status record.
const (
	mechClutchFailed = 1 << iota
	mechLockRange
	mechUnlockRange
	mechCritical
	mechStop
	mechLowBattery
	mechClockwise
)

// MechStatus is the lock's mechanism state as published on change.
//
// Wire layout (7 bytes, little-endian):
//
//	battery u16 | target i16 | position i16 | flags u8
type MechStatus struct {
	Battery  uint16 // Raw battery reading
	Target   int16  // Angle the motor is driving to
	Position int16  // Latest sensed angle

	ClutchFailed bool
	LockRange    bool // Handle is in the locked range
	UnlockRange  bool // Handle is in the unlocked range
	Critical     bool // Motor timed out and stopped
	Stop         bool // Handle angle is not changing
	LowBattery   bool
	Clockwise    bool
}

// DecodeMechStatus parses the 7-byte record.
func DecodeMechStatus(b []byte) (MechStatus, error) {
	if len(b) < MechStatusSize {
		return MechStatus{}, ErrMechStatusSize
	}
	flags := b[6]
	return MechStatus{
		Battery:      binary.LittleEndian.Uint16(b[0:2]),
		Target:       int16(binary.LittleEndian.Uint16(b[2:4])),
		Position:     int16(binary.LittleEndian.Uint16(b[4:6])),
		ClutchFailed: flags&mechClutchFailed != 0,
		LockRange:    flags&mechLockRange != 0,
		UnlockRange:  flags&mechUnlockRange != 0,
		Critical:     flags&mechCritical != 0,
		Stop:         flags&mechStop != 0,
		LowBattery:   flags&mechLowBattery != 0,
		Clockwise:    flags&mechClockwise != 0,
	}, nil
}

// Encode returns the 7-byte record.
func (s MechStatus) Encode() [MechStatusSize]byte {
	var out [MechStatusSize]byte
	binary.LittleEndian.PutUint16(out[0:2], s.Battery)
	binary.LittleEndian.PutUint16(out[2:4], uint16(s.Target))
	binary.LittleEndian.PutUint16(out[4:6], uint16(s.Position))

	var flags byte
	setFlag := func(on bool, bit byte) {
		if on {
			flags |= bit
		}
	}
	setFlag(s.ClutchFailed, mechClutchFailed)
	setFlag(s.LockRange, mechLockRange)
	setFlag(s.UnlockRange, mechUnlockRange)
	setFlag(s.Critical, mechCritical)
	setFlag(s.Stop, mechStop)
	setFlag(s.LowBattery, mechLowBattery)
	setFlag(s.Clockwise, mechClockwise)
	out[6] = flags
	return out
}

// BatteryVoltage converts the raw reading to volts.
func (s MechStatus) BatteryVoltage() float64 {
	return float64(s.Battery) * 2 / 1000
}
