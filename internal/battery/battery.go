package battery

import (
	"context"
	"errors"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Status is the battery level shown in the mobile info bar and /api/battery.
type Status struct {
	Percent   int  `json:"percent"`
	VoltageMv int  `json:"voltage_mv"`
	Simulated bool `json:"simulated,omitempty"`
}

// Reader obtains the current battery status.
type Reader interface {
	Read(ctx context.Context) (Status, error)
}

// PiSugar-style controller registers.
const (
	DefaultAddr  = 0x57
	regVoltageHi = 0x22
	regVoltageLo = 0x23
	regPercent   = 0x2A
)

type mockReader struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMockReader returns a Reader producing a plausible 20–100% level, for
// development machines without the controller.
func NewMockReader(seed int64) Reader {
	return &mockReader{rnd: rand.New(rand.NewSource(seed))}
}

func (m *mockReader) Read(context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{Percent: 20 + m.rnd.Intn(81), Simulated: true}, nil
}

type i2cReader struct {
	bus  string
	addr uint16
}

// NewI2CReader talks to a controller at addr on the named bus ("" picks the
// first available). The bus is opened on every Read.
func NewI2CReader(bus string, addr uint16) Reader {
	return &i2cReader{bus: bus, addr: addr}
}

func (r *i2cReader) Read(context.Context) (Status, error) {
	if runtime.GOOS != "linux" {
		return Status{}, errors.New("battery: i2c unavailable on " + runtime.GOOS)
	}
	if _, err := host.Init(); err != nil {
		return Status{}, err
	}
	bus, err := i2creg.Open(r.bus)
	if err != nil {
		return Status{}, err
	}
	defer bus.Close()

	dev := &i2c.Dev{Bus: bus, Addr: r.addr}
	reg := func(addr byte) (byte, error) {
		buf := []byte{0}
		if err := dev.Tx([]byte{addr}, buf); err != nil {
			return 0, err
		}
		return buf[0], nil
	}

	hi, err := reg(regVoltageHi)
	if err != nil {
		return Status{}, err
	}
	lo, err := reg(regVoltageLo)
	if err != nil {
		return Status{}, err
	}
	pct, err := reg(regPercent)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Percent:   int(min(pct, 100)),
		VoltageMv: int(uint16(hi)<<8 | uint16(lo)),
	}, nil
}

// Detect returns the I2C reader when a probe read succeeds and the mock
// reader otherwise.
func Detect(ctx context.Context) Reader {
	if runtime.GOOS == "linux" {
		r := NewI2CReader("", DefaultAddr)
		if _, err := r.Read(ctx); err == nil {
			return r
		}
	}
	return NewMockReader(time.Now().UnixNano())
}

// Cached wraps a Reader and reuses a successful result for ttl.
type Cached struct {
	next Reader
	ttl  time.Duration
	now  func() time.Time

	mu     sync.Mutex
	last   Status
	readAt time.Time
}

func NewCached(next Reader, ttl time.Duration) *Cached {
	return &Cached{next: next, ttl: ttl, now: time.Now}
}

func (c *Cached) Read(ctx context.Context) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.readAt.IsZero() && c.now().Sub(c.readAt) < c.ttl {
		return c.last, nil
	}
	st, err := c.next.Read(ctx)
	if err != nil {
		return Status{}, err
	}
	c.last, c.readAt = st, c.now()
	return st, nil
}
