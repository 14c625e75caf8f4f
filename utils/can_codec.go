package utils

import (
	"fmt"

	"go.einride.tech/can"
)

// EncodeFrame packs physical signal values into a frame. Signals missing from
// values take their default.
func (m *CANMap) EncodeFrame(frameName string, values map[string]float64) (can.Frame, error) {
	fd, err := m.FrameByName(frameName)
	if err != nil {
		return can.Frame{}, err
	}
	if fd.DLC <= 0 || fd.DLC > 8 {
		return can.Frame{}, fmt.Errorf("frame %s has invalid DLC %d", fd.Name, fd.DLC)
	}

	f := can.Frame{
		ID:     fd.ID,
		Length: uint8(fd.DLC),
	}
	for _, s := range fd.Signals {
		v, ok := values[s.Name]
		if !ok {
			v = s.Default
		}
		raw := physToRaw(s, v)
		start, length := uint8(s.StartBit), uint8(s.BitLength)
		if s.Signed {
			f.Data.SetSignedBitsLittleEndian(start, length, raw)
		} else {
			f.Data.SetUnsignedBitsLittleEndian(start, length, uint64(raw))
		}
	}

	if err := f.Validate(); err != nil {
		return can.Frame{}, fmt.Errorf("frame %s: %w", fd.Name, err)
	}
	return f, nil
}

// DecodeFrame unpacks every signal of a known frame into physical units.
func (m *CANMap) DecodeFrame(frame can.Frame) (*FrameDef, map[string]float64, error) {
	fd, err := m.FrameByID(frame.ID)
	if err != nil {
		return nil, nil, err
	}
	if int(frame.Length) < fd.DLC {
		return nil, nil, fmt.Errorf("frame 0x%X expects DLC %d, got %d", frame.ID, fd.DLC, frame.Length)
	}

	out := make(map[string]float64, len(fd.Signals))
	for _, s := range fd.Signals {
		start, length := uint8(s.StartBit), uint8(s.BitLength)
		var raw int64
		if s.Signed {
			raw = frame.Data.SignedBitsLittleEndian(start, length)
		} else {
			raw = int64(frame.Data.UnsignedBitsLittleEndian(start, length))
		}
		out[s.Name] = rawToPhys(s, raw)
	}
	return fd, out, nil
}
