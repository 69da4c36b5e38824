package i2c

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/irsensors"
	"github.com/sigurn/crc8"
)

var _ irsensors.SMBus = &SimBus{}
var _ irsensors.PowerSwitch = &SimBus{}

const (
	simCmdRAM    = 0x00
	simCmdEEPROM = 0x20
	simCmdMask   = 0xE0
	// EEPROM cell holding the SMBus address
	simAddrCell = 0x0E
	// high byte observed on factory parts
	simCellHigh = 0xBE
)

var simPEC = crc8.MakeTable(crc8.CRC8)

// SimDevice is an in-memory MLX90614: 32 RAM words, 32 EEPROM words and the
// address it currently answers at.
type SimDevice struct {
	ram     [32]uint16
	eeprom  [32]uint16
	address byte
}

// NewSimDevice creates a device whose EEPROM address cell holds address.
func NewSimDevice(address byte) *SimDevice {
	d := &SimDevice{address: address}
	d.eeprom[simAddrCell] = simCellHigh<<8 | uint16(address)
	return d
}

// SetRaw sets a RAM word, e.g. 0x07 for object 1 temperature.
func (d *SimDevice) SetRaw(ram byte, raw uint16) {
	d.ram[ram&0x1F] = raw
}

// Cell returns an EEPROM word.
func (d *SimDevice) Cell(eeprom byte) uint16 {
	return d.eeprom[eeprom&0x1F]
}

// SimFrame is a write recorded by SimBus.
type SimFrame struct {
	Address byte
	Data    []byte
}

// SimBus is an in-memory bus with MLX90614 devices on it. Address 0x00
// reaches the first powered device, as the universal address does on a real
// bus. Switching power off and on reloads every device address from EEPROM.
type SimBus struct {
	mx      sync.Mutex
	devices []*SimDevice
	powered bool
	writes  []SimFrame
	// Busy makes every transaction fail with ErrBusBusy.
	Busy bool
}

func NewSimBus(devices ...*SimDevice) *SimBus {
	return &SimBus{devices: devices, powered: true}
}

func (b *SimBus) find(address byte) (*SimDevice, error) {
	if b.Busy {
		return nil, irsensors.ErrBusBusy
	}
	if !b.powered || len(b.devices) == 0 {
		return nil, fmt.Errorf("no answer from %#x: %w", address, irsensors.ErrBusTimeout)
	}
	if address == 0x00 {
		return b.devices[0], nil
	}
	for _, d := range b.devices {
		if d.address == address {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no answer from %#x: %w", address, irsensors.ErrBusTimeout)
}

func (b *SimBus) Probe(ctx context.Context, address byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	_, err := b.find(address)
	return err
}

// Tx answers word reads: w holds the command, r receives lo, hi and the PEC
// when three bytes are requested.
func (b *SimBus) Tx(ctx context.Context, address byte, w, r []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(r) == 0 {
		return b.WriteToAddr(ctx, address, w)
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	d, err := b.find(address)
	if err != nil {
		return err
	}
	if len(w) != 1 || len(r) < 2 || len(r) > 3 {
		return fmt.Errorf("sim: unsupported read of %d bytes with %d byte command", len(r), len(w))
	}
	word, err := d.word(w[0])
	if err != nil {
		return err
	}
	r[0], r[1] = byte(word), byte(word>>8)
	if len(r) == 3 {
		r[2] = crc8.Checksum([]byte{address << 1, w[0], address<<1 | 1, r[0], r[1]}, simPEC)
	}
	return nil
}

func (b *SimBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	if _, err := b.find(address); err != nil {
		return err
	}
	clear(buffer)
	return nil
}

// WriteToAddr accepts EEPROM word writes: command, lo, hi, pec.
func (b *SimBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	d, err := b.find(address)
	if err != nil {
		return err
	}
	b.writes = append(b.writes, SimFrame{Address: address, Data: append([]byte(nil), buffer...)})
	if len(buffer) != 4 {
		return fmt.Errorf("sim: unsupported write of %d bytes", len(buffer))
	}
	cmd := buffer[0]
	if cmd&simCmdMask != simCmdEEPROM {
		return fmt.Errorf("sim: command %#x is not writable", cmd)
	}
	pec := crc8.Checksum(append([]byte{address << 1}, buffer[:3]...), simPEC)
	if pec != buffer[3] {
		return fmt.Errorf("sim: pec mismatch: expected %#x, got %#x", pec, buffer[3])
	}
	d.eeprom[cmd&0x1F] = uint16(buffer[2])<<8 | uint16(buffer[1])
	return nil
}

func (d *SimDevice) word(cmd byte) (uint16, error) {
	switch cmd & simCmdMask {
	case simCmdRAM:
		return d.ram[cmd&0x1F], nil
	case simCmdEEPROM:
		return d.eeprom[cmd&0x1F], nil
	default:
		return 0, fmt.Errorf("sim: unsupported command %#x", cmd)
	}
}

// Writes returns the frames written so far.
func (b *SimBus) Writes() []SimFrame {
	b.mx.Lock()
	defer b.mx.Unlock()
	return append([]SimFrame(nil), b.writes...)
}

// SetPower switches the supply of every device; power-up reloads addresses.
func (b *SimBus) SetPower(ctx context.Context, on bool) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if on && !b.powered {
		for _, d := range b.devices {
			d.address = byte(d.eeprom[simAddrCell]) & 0x7F
		}
	}
	b.powered = on
	return nil
}

func (b *SimBus) Release(ctx context.Context) error {
	return nil
}
