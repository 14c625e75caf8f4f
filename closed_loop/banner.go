package main

import (
	control "quad-stabilizer-core/closed_loop/attitude_control"
	"quad-stabilizer-core/utils"
)

var pilotHelp = []string{
	"You can control the drone with your computer keyboard:",
	"- 'up': move forward.",
	"- 'down': move backward.",
	"- 'right': turn right.",
	"- 'left': turn left.",
	"- 'shift + up': increase the target altitude.",
	"- 'shift + down': decrease the target altitude.",
	"- 'shift + right': strafe right.",
	"- 'shift + left': strafe left.",
}

// announcePhase logs operator-facing messages on phase changes.
func announcePhase(log *utils.Logger, prev, next control.Phase) {
	if prev == next {
		return
	}
	switch next {
	case control.PhaseRunning:
		for _, line := range pilotHelp {
			log.Info("%s", line)
		}
	case control.PhaseLanded:
		log.Info("Drone has landed.")
	}
}
