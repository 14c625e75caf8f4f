package utils

import (
	"strings"
	"testing"
)

const testHeader = "direction,frame_id,frame_name,cycle_ms,dlc,signal_name,start_bit,bit_length,endianness,signed,factor,offset,min,max,default,unit,comment\n"

const testMap = testHeader + `# test frames
tx,0x200,MOTOR_CMD_FRONT,8,4,front_left,0,16,little,true,0.01,0,-327.67,327.67,0,rad/s,
tx,0x200,MOTOR_CMD_FRONT,8,4,front_right,16,16,little,true,0.01,0,-327.67,327.67,0,rad/s,
tx,0x203,LED_CMD,8,1,led_front_left,0,1,little,false,1,0,0,1,0,bool,
tx,0x203,LED_CMD,8,1,led_front_right,1,1,little,false,1,0,0,1,0,bool,
rx,0x101,GPS_POSITION,8,6,z,32,16,little,true,0.001,0,-32.767,32.767,0,m,
rx,0x101,GPS_POSITION,8,6,x,0,16,little,true,0.001,0,-32.767,32.767,0,m,
rx,0x101,GPS_POSITION,8,6,y,16,16,little,true,0.001,0,-32.767,32.767,0,m,
rx,0x104,SIM_CLOCK,8,4,time_s,0,32,little,false,0.001,0,0,4294967.295,0,s,
`

func mustParseMap(t *testing.T, doc string) *CANMap {
	t.Helper()
	m, err := ParseCANMap(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseCANMap: %v", err)
	}
	return m
}
