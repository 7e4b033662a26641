// command snappysensed runs the SnappySense firmware's event loop.
// Built with -tags hardware it drives a real sensor board over
// periph.io; without that tag it runs the same supervisor against
// in-memory fakes, for development runs.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"snappysense.dev/firmware/internal/broker"
	"snappysense.dev/firmware/internal/bus"
	"snappysense.dev/firmware/internal/monitor"
	"snappysense.dev/firmware/internal/nvs"
	"snappysense.dev/firmware/internal/prefs"
	"snappysense.dev/firmware/internal/provision"
	"snappysense.dev/firmware/internal/slideshow"
	"snappysense.dev/firmware/internal/supervisor"
	"snappysense.dev/firmware/internal/timeservice"
	"snappysense.dev/firmware/internal/wifi"
)

var nvsPath = flag.String("nvs", "snappysense.nvs", "path to the non-volatile preference store")

// Intervals (defaults, in production), per spec.md §6.
const (
	commActivityTimeout   = 60 * time.Second
	commRelaxationTimeout = 60 * time.Second
	monitoringModeSleep   = 3600 * time.Second
	slideshowModeSleep    = 300 * time.Second
	warmupTime            = 15 * time.Second
	monitoringWindow      = warmupTime + 15*time.Second
	wifiRetry             = 500 * time.Millisecond
	monitoringUpload      = 4 * time.Hour
	maxUnconnectedTime    = 4 * time.Hour
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "snappysensed: %v\n", err)
		os.Exit(2)
	}
}

func run() error {
	flag.Parse()
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	log.Println("snappysensed: starting")

	store, err := nvs.Open(*nvsPath)
	if err != nil {
		return fmt.Errorf("open nvs store: %w", err)
	}
	scratch := nvs.NewScratch(store)

	prefStore := prefs.NewStore()
	prefStore.LoadFromNonvolatile(store)

	b := bus.New(bus.DefaultCapacity)

	inbound := make(chan broker.InboundMessage, 8)
	plat, err := newPlatform(b, inbound)
	if err != nil {
		return fmt.Errorf("platform: %w", err)
	}

	mon := monitor.New(b, plat.sensors, warmupTime)

	wifiMgr := wifi.New(b, scratch, plat.wifiRadio, accessPoints(prefStore), wifiRetry)

	brokerCfg := brokerConfig(prefStore)
	enabled, _ := prefStore.Get("enabled")
	brokerClient := broker.New(b, plat.transport, brokerCfg, inbound, enabled.IntValue != 0)

	timeSvc := timeservice.New(b, plat.timeSource, plat.clock, scratch)

	slideshowSeq := slideshow.New(plat.display, b)

	sup := supervisor.New(b, supervisor.Deps{
		Wifi:       wifiMgr,
		Time:       timeSvc,
		Broker:     brokerClient,
		BrokerSink: brokerClient,
		Slideshow:  slideshowSeq,
		Monitor:    mon,
		Power:      plat.power,
		Scratch:    scratch,
	}, supervisor.Config{
		CommActivityTimeout:   commActivityTimeout,
		CommRelaxationTimeout: commRelaxationTimeout,
		MonitoringModeSleep:   monitoringModeSleep,
		SlideshowModeSleep:    slideshowModeSleep,
		MonitoringWindow:      monitoringWindow,
		WifiEnabled:           true,
		EnterProvisioning: func() {
			enterProvisioning(prefStore, store, plat)
		},
	})

	sup.Boot()
	sup.Run()
	return nil
}

// enterProvisioning brings up the access-point web form and blocks
// forever, matching §4.7's "the only exit is a device reset" once a
// long press is handled.
func enterProvisioning(prefStore *prefs.Store, nv *nvs.Store, plat *platform) {
	prov := provision.New(prefStore, nv, plat.display, plat.apRadio)
	ssid, ip, err := prov.Start()
	if err != nil {
		log.Fatalf("snappysensed: provisioning: %v", err)
	}
	log.Printf("snappysensed: provisioning access point %q up at %s", ssid, ip)

	srv := &http.Server{Addr: provision.Addr, Handler: prov.Handler()}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("snappysensed: provisioning server: %v", err)
	}
}

// accessPoints reads the up-to-three configured station-mode
// credentials out of prefStore, in ssid1/password1..ssid3/password3 order.
func accessPoints(prefStore *prefs.Store) []wifi.AccessPoint {
	aps := make([]wifi.AccessPoint, 3)
	for i := range aps {
		n := i + 1
		ssid, _ := prefStore.Get(fmt.Sprintf("ssid%d", n))
		pass, _ := prefStore.Get(fmt.Sprintf("password%d", n))
		aps[i] = wifi.AccessPoint{SSID: ssid.StrValue, Password: pass.StrValue}
	}
	return aps
}

// brokerConfig resolves a broker.Config from the preference schema
// described in spec.md §6.
func brokerConfig(prefStore *prefs.Store) broker.Config {
	get := func(key string) string {
		p, _ := prefStore.Get(key)
		return p.StrValue
	}
	useTLS, _ := prefStore.Get("mqtt-use-tls")

	return broker.Config{
		DeviceID:    get("mqtt-id"),
		DeviceClass: get("mqtt-class"),
		Host:        get("mqtt-endpoint-host"),
		Port:        prefStore.MQTTEndpointPort(),
		UseTLS:      useTLS.IntValue != 0,
		Auth:        get("mqtt-auth"),
		Username:    get("mqtt-username"),
		Password:    get("mqtt-password"),
		RootCert:    get("mqtt-root-cert"),
		DeviceCert:  get("mqtt-device-cert"),
		PrivateKey:  get("mqtt-private-key"),

		UploadInterval:     monitoringUpload,
		CaptureInterval:    monitoringModeSleep,
		MaxUnconnectedTime: maxUnconnectedTime,
	}
}
