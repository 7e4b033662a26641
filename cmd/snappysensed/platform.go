package main

import (
	"snappysense.dev/firmware/internal/broker"
	"snappysense.dev/firmware/internal/button"
	"snappysense.dev/firmware/internal/display"
	"snappysense.dev/firmware/internal/sensors"
	"snappysense.dev/firmware/internal/supervisor"
	"snappysense.dev/firmware/internal/timeservice"
	"snappysense.dev/firmware/internal/wifi"
)

// platform bundles every subsystem that differs between a real device
// and a development build. newPlatform is implemented once per build
// tag (platform_hardware.go, platform_fake.go).
type platform struct {
	sensors    sensors.Facade
	display    display.Facade
	power      supervisor.PeripheralPower
	wifiRadio  wifi.Radio
	apRadio    wifi.APRadio
	transport  broker.Transport
	button     *button.Monitor
	timeSource timeservice.Source
	clock      timeservice.Clock
}
