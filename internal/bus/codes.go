package bus

// Event codes. Grouped roughly as spec.md groups them across the main
// supervisor (§4.7), Wi-Fi manager (§4.3), button logic (§4.4),
// monitoring pipeline (§4.5), broker client (§4.6) and slideshow
// sequencer (§4.8). Values are unexported implementation detail; only
// the Code type is part of any external contract.
const (
	_ Code = iota

	// Main supervisor cycle (§4.7).
	StartCycle
	CommStart
	CommActivity
	CommActivityExpired
	PostComm
	SleepStart
	PostSleep
	MonitorStart
	MonitorStop

	// Button logic (§4.4).
	ButtonDown
	ButtonUp
	ButtonPress
	ButtonLongPress

	// Wi-Fi manager (§4.3).
	CommWifiClientUp
	CommWifiClientFailed
	CommWifiClientRetry

	// Time service.
	CommNTPWork
	ClockSynchronized

	// Broker client (§4.6).
	CommMQTTWork

	// Monitoring pipeline (§4.5).
	WarmupWork
	GoToWork
	SamplePIR
	SampleMEMS
	MonitorData

	// Slideshow sequencer (§4.8).
	SlideshowWork

	// Inbound control (§4.6).
	EnableDevice
	DisableDevice
	SetInterval
)

// String renders human-readable names for logging, in the spirit of
// seedhammer.com/gui's Event.String.
func (c Code) String() string {
	switch c {
	case StartCycle:
		return "START_CYCLE"
	case CommStart:
		return "COMM_START"
	case CommActivity:
		return "COMM_ACTIVITY"
	case CommActivityExpired:
		return "COMM_ACTIVITY_EXPIRED"
	case PostComm:
		return "POST_COMM"
	case SleepStart:
		return "SLEEP_START"
	case PostSleep:
		return "POST_SLEEP"
	case MonitorStart:
		return "MONITOR_START"
	case MonitorStop:
		return "MONITOR_STOP"
	case ButtonDown:
		return "BUTTON_DOWN"
	case ButtonUp:
		return "BUTTON_UP"
	case ButtonPress:
		return "BUTTON_PRESS"
	case ButtonLongPress:
		return "BUTTON_LONG_PRESS"
	case CommWifiClientUp:
		return "COMM_WIFI_CLIENT_UP"
	case CommWifiClientFailed:
		return "COMM_WIFI_CLIENT_FAILED"
	case CommWifiClientRetry:
		return "COMM_WIFI_CLIENT_RETRY"
	case CommNTPWork:
		return "COMM_NTP_WORK"
	case ClockSynchronized:
		return "CLOCK_SYNCHRONIZED"
	case CommMQTTWork:
		return "COMM_MQTT_WORK"
	case WarmupWork:
		return "WARMUP_WORK"
	case GoToWork:
		return "GO_TO_WORK"
	case SamplePIR:
		return "SAMPLE_PIR"
	case SampleMEMS:
		return "SAMPLE_MEMS"
	case MonitorData:
		return "MONITOR_DATA"
	case SlideshowWork:
		return "SLIDESHOW_WORK"
	case EnableDevice:
		return "ENABLE_DEVICE"
	case DisableDevice:
		return "DISABLE_DEVICE"
	case SetInterval:
		return "SET_INTERVAL"
	default:
		return "UNKNOWN"
	}
}
