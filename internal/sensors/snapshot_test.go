package sensors

import "testing"

func TestTemperatureValidityGate(t *testing.T) {
	s := NewBuilder(1, 1000).SetTemperature(-45.0).Build()
	if v, ok := s.Float(Temperature); ok || v != -45.0 {
		t.Fatalf("sentinel temperature should be invalid, got %v valid=%v", v, ok)
	}
	s2 := NewBuilder(1, 1000).SetTemperature(21.0).Build()
	if v, ok := s2.Float(Temperature); !ok || v != 21.0 {
		t.Fatalf("got %v, %v, want 21.0, true", v, ok)
	}
}

func TestHumidityValidityGate(t *testing.T) {
	s := NewBuilder(1, 1000).SetHumidity(0).Build()
	if _, ok := s.Float(Humidity); ok {
		t.Fatal("zero humidity should be invalid")
	}
}

func TestPressureValidityGate(t *testing.T) {
	s := NewBuilder(1, 1000).SetPressure(0).Build()
	if _, ok := s.Float(Pressure); ok {
		t.Fatal("zero pressure should be invalid")
	}
	s2 := NewBuilder(1, 1000).SetPressure(1013).Build()
	if _, ok := s2.Float(Pressure); !ok {
		t.Fatal("1013 hPa should be valid")
	}
}

func TestAirQualitySuppressedWhenInvalid(t *testing.T) {
	s := NewBuilder(1, 1000).SetAirQuality(AirInvalid, 3, 100, 500).Build()
	if _, ok := s.Float(AirQuality); ok {
		t.Fatal("AirInvalid status should suppress AQI")
	}
	if _, ok := s.Float(TVOC); ok {
		t.Fatal("AirInvalid status should suppress tVOC")
	}
	if _, ok := s.Float(ECO2); ok {
		t.Fatal("AirInvalid status should suppress eCO2")
	}
}

func TestAirQualityGatesWhenNormal(t *testing.T) {
	s := NewBuilder(1, 1000).SetAirQuality(AirNormal, 6, 0, 0).Build()
	if _, ok := s.Float(AirQuality); ok {
		t.Fatal("AQI 6 is out of 1-5 range, should be invalid")
	}
	s2 := NewBuilder(1, 1000).SetAirQuality(AirNormal, 3, 100, 500).Build()
	if v, ok := s2.Float(AirQuality); !ok || v != 3 {
		t.Fatalf("AQI = %v, %v, want 3, true", v, ok)
	}
	if v, ok := s2.Float(TVOC); !ok || v != 100 {
		t.Fatalf("tVOC = %v, %v, want 100, true", v, ok)
	}
	if v, ok := s2.Float(ECO2); !ok || v != 500 {
		t.Fatalf("eCO2 = %v, %v, want 500, true", v, ok)
	}
}

func TestTVOCBoundary(t *testing.T) {
	cases := []struct {
		ppb   int
		valid bool
	}{{0, false}, {1, true}, {65000, true}, {65001, false}}
	for _, c := range cases {
		s := NewBuilder(1, 1000).SetAirQuality(AirNormal, 3, c.ppb, 500).Build()
		if _, ok := s.Float(TVOC); ok != c.valid {
			t.Fatalf("tVOC %d: valid=%v, want %v", c.ppb, ok, c.valid)
		}
	}
}

func TestECO2Boundary(t *testing.T) {
	cases := []struct {
		ppm   int
		valid bool
	}{{400, false}, {401, true}}
	for _, c := range cases {
		s := NewBuilder(1, 1000).SetAirQuality(AirNormal, 3, 100, c.ppm).Build()
		if _, ok := s.Float(ECO2); ok != c.valid {
			t.Fatalf("eCO2 %d: valid=%v, want %v", c.ppm, ok, c.valid)
		}
	}
}

func TestUVIndexFromVoltage(t *testing.T) {
	if got := UVIndexFromVoltage(0.5); got != 0 {
		t.Fatalf("below range = %v, want 0", got)
	}
	if got := UVIndexFromVoltage(3.5); got != 15 {
		t.Fatalf("above range = %v, want 15", got)
	}
	mid := UVIndexFromVoltage((0.99 + 2.9) / 2)
	if mid < 7 || mid > 8 {
		t.Fatalf("midpoint = %v, want ~7.5", mid)
	}
}

func TestIlluminanceFromRawNonNegative(t *testing.T) {
	if got := IlluminanceFromRaw(0); got < 0 {
		t.Fatalf("got %v, want >= 0", got)
	}
	if got := IlluminanceFromRaw(1000); got < 0 {
		t.Fatalf("got %v, want >= 0", got)
	}
}

func TestFakeRequiresPowerOn(t *testing.T) {
	f := NewFake()
	if _, err := f.Read(); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	f.PowerOn()
	if _, err := f.Read(); err != nil {
		t.Fatalf("unexpected error after PowerOn: %v", err)
	}
}

func TestFakeCalibration(t *testing.T) {
	f := NewFake()
	f.PowerOn()
	if err := f.Calibrate(20.0, 0.5); err != nil {
		t.Fatal(err)
	}
	calibrated, temp, humid := f.Calibrated()
	if !calibrated || temp != 20.0 || humid != 0.5 {
		t.Fatalf("got %v %v %v", calibrated, temp, humid)
	}
}
