package utils

import (
	"strings"
	"testing"
)

func TestParseCANMapGroupsSignalsByFrame(t *testing.T) {
	m := mustParseMap(t, testMap)

	if got := m.FrameNames(); len(got) != 4 {
		t.Fatalf("FrameNames = %v", got)
	}
	fd, err := m.FrameByName("GPS_POSITION")
	if err != nil {
		t.Fatal(err)
	}
	if fd.ID != 0x101 || fd.DLC != 6 || fd.Direction != DirectionRX || fd.CycleMS != 8 {
		t.Errorf("frame = %+v", fd)
	}
	var order []string
	for _, s := range fd.Signals {
		order = append(order, s.Name)
	}
	if strings.Join(order, ",") != "x,y,z" {
		t.Errorf("signals not sorted by start bit: %v", order)
	}
	if byID, err := m.FrameByID(0x101); err != nil || byID != fd {
		t.Errorf("FrameByID = %v, %v", byID, err)
	}
	if _, err := m.FrameByID(0x7FF); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestParseCANMapRejects(t *testing.T) {
	row := func(r string) string { return testHeader + r + "\n" }
	tests := map[string]string{
		"missing column": "direction,frame_id,frame_name\nrx,0x1,A\n",
		"bad direction":  row("both,0x100,A,8,2,s,0,16,little,true,1,0,0,1,0,,"),
		"big endian":     row("rx,0x100,A,8,2,s,0,16,big,true,1,0,0,1,0,,"),
		"bits past dlc":  row("rx,0x100,A,8,2,s,8,16,little,true,1,0,0,1,0,,"),
		"zero factor":    row("rx,0x100,A,8,2,s,0,16,little,true,0,0,0,1,0,,"),
		"bad dlc":        row("rx,0x100,A,8,9,s,0,16,little,true,1,0,0,1,0,,"),
		"bad id":         row("rx,0xZZ,A,8,2,s,0,16,little,true,1,0,0,1,0,,"),
		"duplicate name": row("rx,0x100,A,8,2,s,0,16,little,true,1,0,0,1,0,,\nrx,0x101,A,8,2,s,0,16,little,true,1,0,0,1,0,,"),
		"dlc mismatch":   row("rx,0x100,A,8,2,s,0,8,little,true,1,0,0,1,0,,\nrx,0x100,A,8,4,t,8,8,little,true,1,0,0,1,0,,"),
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCANMap(strings.NewReader(doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRequireFrames(t *testing.T) {
	m := mustParseMap(t, testMap)

	if err := m.RequireFrames(DirectionTX, map[string][]string{
		"MOTOR_CMD_FRONT": {"front_left", "front_right"},
		"LED_CMD":         {"led_front_left"},
	}); err != nil {
		t.Fatalf("RequireFrames: %v", err)
	}

	tests := []struct {
		name      string
		direction string
		frames    map[string][]string
		want      string
	}{
		{"absent frame", DirectionTX, map[string][]string{"GIMBAL_CMD": nil}, "GIMBAL_CMD not defined"},
		{"wrong direction", DirectionRX, map[string][]string{"LED_CMD": nil}, "direction tx"},
		{"absent signal", DirectionRX, map[string][]string{"GPS_POSITION": {"alt"}}, "lacks signal alt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.RequireFrames(tt.direction, tt.frames)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadBundledCANMap(t *testing.T) {
	m, err := LoadCANMap("../config/can/can_map.csv")
	if err != nil {
		t.Fatalf("LoadCANMap: %v", err)
	}
	keys, err := m.FrameByName("PILOT_KEYS")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys.Signals) != 8 {
		t.Errorf("PILOT_KEYS has %d slots, want 8", len(keys.Signals))
	}
}
