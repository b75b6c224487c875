package simulator

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Generator produces device telemetry frames in every wire format the
// firmware ever shipped, so the decoder can be exercised end to end
// against a live broker.
type Generator struct {
	mu      sync.Mutex
	counter int
	rng     *rand.Rand
	mode    string

	irrigationOn bool
	suctionOn    bool
}

func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed)), mode: "AUTO"}
}

// SetPumps mirrors a received command into the simulated pump state, so
// subsequent telemetry confirms it the way the real firmware does.
func (g *Generator) SetPumps(irrigation, suction bool) {
	g.mu.Lock()
	g.irrigationOn, g.suctionOn = irrigation, suction
	g.mu.Unlock()
}

// SetMode records the operating mode the next nested frame reports. The
// command handler runs on paho's goroutine, so this shares the pump mutex.
func (g *Generator) SetMode(mode string) {
	g.mu.Lock()
	g.mode = mode
	g.mu.Unlock()
}

type sample struct {
	airTemp, airHum, pressure float64
	soilTemps                 [3]float64
	soilMoist                 [3]float64
	water                     [2]float64
	irrigation, suction       bool
	mode                      string
	counter                   int
}

func (g *Generator) next() sample {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++

	s := sample{
		airTemp:    round2(24 + 4*g.rng.Float64()),
		airHum:     round1(50 + 20*g.rng.Float64()),
		pressure:   float64(995 + g.rng.Intn(11)),
		irrigation: g.irrigationOn,
		suction:    g.suctionOn,
		mode:       g.mode,
		counter:    g.counter,
	}
	// probe 1 is chronically disconnected on the real device
	s.soilTemps = [3]float64{-127.00, round2(22 + 3*g.rng.Float64()), round2(22 + 3*g.rng.Float64())}
	for i := range s.soilMoist {
		s.soilMoist[i] = float64(60 + g.rng.Intn(41))
	}
	s.water = [2]float64{round1(0.1 + 1.9*g.rng.Float64()), round1(0.1 + 1.9*g.rng.Float64())}
	return s
}

// NextNested emits the current firmware JSON shape.
func (g *Generator) NextNested() string {
	s := g.next()
	payload := map[string]any{
		"ts":      time.Now().UnixMilli() % 10000000,
		"mode":    s.mode,
		"bme":     map[string]any{"t": s.airTemp, "p": s.pressure, "h": s.airHum},
		"ds18b20": s.soilTemps[:],
		"soil":    s.soilMoist[:],
		"water":   s.water[:],
		"valve":   []int{0, 0, 0},
		"pump":    []int{boolInt(s.irrigation), boolInt(s.suction)},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

// NextFlatLegacy emits the hosted-broker era flat JSON shape.
func (g *Generator) NextFlatLegacy() string {
	s := g.next()
	payload := map[string]any{
		"pressure":     s.pressure,
		"soilTemp":     s.soilTemps[1],
		"soilHumidity": s.soilMoist[0],
		"waterLevel":   math.Round(s.water[0] * 10),
		"airTemp":      s.airTemp,
		"airHumidity":  s.airHum,
		"timestamp":    fmt.Sprintf("%d", s.counter),
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

// NextCompact emits the st=..,at=.. key=value frame.
func (g *Generator) NextCompact() string {
	s := g.next()
	return fmt.Sprintf("st=%d,at=%d,sh=%d,ah=%d,p=%d,wl=%d,c=%d",
		int(s.soilTemps[1]), int(s.airTemp), int(s.soilMoist[0]), int(s.airHum),
		int(s.pressure), int(math.Round(s.water[0]*10)), s.counter)
}

// NextSummary emits the pipe-delimited human-readable frame.
func (g *Generator) NextSummary() string {
	s := g.next()
	return fmt.Sprintf("ENV:%.1f,%.1f,%.0f|SOIL:%.1f,%.1f,%.1f|WATER:%.1f,%.1f|PUMP:%d,%d",
		s.airTemp, s.airHum, s.pressure,
		s.soilTemps[1], s.soilTemps[2], round1(s.soilTemps[1]+0.2),
		s.water[0], s.water[1],
		boolInt(s.irrigation), boolInt(s.suction))
}

// NextCoded emits the STM32_-prefixed underscore frame.
func (g *Generator) NextCoded() string {
	s := g.next()
	parts := []string{
		"STM32",
		fmt.Sprintf("p%d", int(s.pressure)),
		fmt.Sprintf("s%d", int(s.soilTemps[1])),
		fmt.Sprintf("h%d", int(s.soilMoist[0])),
		fmt.Sprintf("w%d", int(math.Round(s.water[0]*10))),
		fmt.Sprintf("t%d", int(s.airTemp)),
		fmt.Sprintf("a%d", int(s.airHum)),
		fmt.Sprintf("c%d", s.counter),
	}
	return strings.Join(parts, "_")
}

// NextStatus emits the status heartbeat.
func (g *Generator) NextStatus() string {
	g.mu.Lock()
	c := g.counter
	g.mu.Unlock()
	return fmt.Sprintf("status=ONLINE,uptime=%d", c*10)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
