package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/irsensors"
	"github.com/mklimuk/irsensors/snsctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

var ErrCommandUnsupported = errors.New("unsupported command")
var ErrCommandFailed = errors.New("command failed")

var _ irsensors.SMBus = &MCP2221{}

// HID commands
const (
	cmdStatus          byte = 0x10
	cmdGetGPIO         byte = 0x51
	cmdSetGPIO         byte = 0x50
	cmdI2CWrite        byte = 0x90
	cmdI2CRead         byte = 0x91
	cmdI2CReadRepStart byte = 0x93
	cmdI2CWriteNoStop  byte = 0x94
	cmdI2CGetData      byte = 0x40
	cmdReadFlash       byte = 0xB0
	cmdWriteFlash      byte = 0xB1
)

const (
	// status response byte 20, bit 6: address not acknowledged
	statusAddrNACK = 0x40
	// internal clock used for the I2C speed divider
	clockHz = 12_000_000
	// SMBus devices like the MLX90614 are limited to 100 kHz
	DefaultSpeedHz = 100_000
)

type MCP2221 struct {
	mx           sync.Mutex
	request      []byte
	response     []byte
	responseWait time.Duration
	open         func(id ...int) (io.ReadWriteCloser, error)
}

type MCP2221Status struct {
	I2CDataBufferCounter   int
	I2CSpeedDivider        int
	I2CTimeout             int
	CurrentAddress         string
	LastWriteRequestedSize uint16
	LastWriteSentSize      uint16
	ReadPending            int
	AddressNACK            bool
}

type GPIOMode byte

const (
	GPIOModeOut         GPIOMode = 0b00000000
	GPIOModeIn          GPIOMode = 0b00001000
	GPIOModeNoOperation GPIOMode = 0xEF
)

func (m GPIOMode) String() string {
	switch m {
	case GPIOModeIn:
		return "INPUT"
	case GPIOModeOut:
		return "OUTPUT"
	default:
		return "NOOP"
	}
}

type GPIODesignation byte

const (
	GPIOOperation GPIODesignation = 0b00000000
	// This is alternate function of GPIO0
	GPIO0LedUartRx GPIODesignation = 0b00000001
	// This is the dedicated function of GPIO1
	GPIO1ClockOutput GPIODesignation = 0b00000001
	// This is the alternate function 0 of GPIO2
	GPIO2ADC2 GPIODesignation = 0b00000010
	// This is the alternate function 1 of GPIO3
	GPIO3DAC2 GPIODesignation = 0b00000011
)

const gpioModeMask = 0b00001000
const gpioOperationMask = 0b00000111

// GPIOPinCount is the number of general purpose pins (GP0..GP3).
const GPIOPinCount = 4

type MCP2221GPIOValues struct {
	GPIO0Mode  GPIOMode `yaml:"GP0_mode"`
	GPIO0Value byte     `yaml:"GPIO0"`
	GPIO1Mode  GPIOMode `yaml:"GP1_mode"`
	GPIO1Value byte     `yaml:"GPIO1"`
	GPIO2Mode  GPIOMode `yaml:"GP2_mode"`
	GPIO2Value byte     `yaml:"GPIO2"`
	GPIO3Mode  GPIOMode `yaml:"GP3_mode"`
	GPIO3Value byte     `yaml:"GPIO3"`
}

type MCP2221GPIOParameters struct {
	GPIO0Mode        GPIOMode        `yaml:"GP0_mode"`
	GPIO0Designation GPIODesignation `yaml:"GP0_designation"`
	GPIO1Mode        GPIOMode        `yaml:"GP1_mode"`
	GPIO1Designation GPIODesignation `yaml:"GP1_designation"`
	GPIO2Mode        GPIOMode        `yaml:"GP2_mode"`
	GPIO2Designation GPIODesignation `yaml:"GP2_designation"`
	GPIO3Mode        GPIOMode        `yaml:"GP3_mode"`
	GPIO3Designation GPIODesignation `yaml:"GP3_designation"`
}

// SetPin changes the mode and designation of a single GP pin.
func (p *MCP2221GPIOParameters) SetPin(pin int, mode GPIOMode, designation GPIODesignation) {
	switch pin {
	case 0:
		p.GPIO0Mode, p.GPIO0Designation = mode, designation
	case 1:
		p.GPIO1Mode, p.GPIO1Designation = mode, designation
	case 2:
		p.GPIO2Mode, p.GPIO2Designation = mode, designation
	case 3:
		p.GPIO3Mode, p.GPIO3Designation = mode, designation
	}
}

func NewMCP2221() *MCP2221 {
	return &MCP2221{
		request:      make([]byte, 64),
		response:     make([]byte, 64),
		responseWait: 10 * time.Millisecond,
		open:         openHID,
	}
}

// Init cancels any transfer left pending by a previous process and sets the
// I2C clock.
func (d *MCP2221) Init(ctx context.Context, speedHz int) error {
	if speedHz <= 0 {
		speedHz = DefaultSpeedHz
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	if _, err := d.releaseBus(ctx); err != nil {
		return fmt.Errorf("could not cancel pending transfer: %w", err)
	}
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[3] = 0x20
	d.request[4] = byte(clockHz/speedHz - 3)
	if err := d.send(ctx, true); err != nil {
		return fmt.Errorf("could not set i2c speed: %w", err)
	}
	if d.response[3] != 0x20 {
		return fmt.Errorf("i2c speed %d Hz rejected: %w", speedHz, ErrCommandFailed)
	}
	return nil
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.write(ctx, cmdI2CWrite, address, buffer); err != nil {
		return fmt.Errorf("write to %#x failed: %w", address, err)
	}
	return d.checkAck(ctx, address)
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.read(ctx, cmdI2CRead, address, buffer); err != nil {
		return fmt.Errorf("bus read from %#x failed: %w", address, err)
	}
	return nil
}

// Tx writes w without a stop condition and reads r after a repeated start.
func (d *MCP2221) Tx(ctx context.Context, address byte, w, r []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if len(r) == 0 {
		if err := d.write(ctx, cmdI2CWrite, address, w); err != nil {
			return fmt.Errorf("write to %#x failed: %w", address, err)
		}
		return d.checkAck(ctx, address)
	}
	if len(w) == 0 {
		if err := d.read(ctx, cmdI2CRead, address, r); err != nil {
			return fmt.Errorf("bus read from %#x failed: %w", address, err)
		}
		return nil
	}
	if err := d.write(ctx, cmdI2CWriteNoStop, address, w); err != nil {
		return fmt.Errorf("register write to %#x failed: %w", address, err)
	}
	if err := d.checkAck(ctx, address); err != nil {
		return err
	}
	if err := d.read(ctx, cmdI2CReadRepStart, address, r); err != nil {
		return fmt.Errorf("register read from %#x failed: %w", address, err)
	}
	return nil
}

// Probe reads a single byte; an address nobody acknowledges clocks in no
// data. Nothing is written so devices sharing the bus keep their register
// pointers.
func (d *MCP2221) Probe(ctx context.Context, address byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if err := d.read(ctx, cmdI2CRead, address, make([]byte, 1)); err != nil {
		return fmt.Errorf("probe of %#x failed: %w", address, err)
	}
	return nil
}

func (d *MCP2221) write(ctx context.Context, cmd byte, address byte, buffer []byte) error {
	if len(buffer) > 60 {
		return fmt.Errorf("%d bytes exceed a single report", len(buffer))
	}
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	copy(d.request[4:], buffer)
	if err := d.send(ctx, true); err != nil {
		return err
	}
	// engine could not take the command
	if d.response[1] == 0x01 {
		snsctx.Logger(ctx).Debug("adapter busy", "command", fmt.Sprintf("%#x", cmd))
		return irsensors.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) read(ctx context.Context, cmd byte, address byte, buffer []byte) error {
	d.resetBuffers()
	d.request[0] = cmd
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	if err := d.send(ctx, true); err != nil {
		return err
	}
	if d.response[1] == 0x01 {
		return irsensors.ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdI2CGetData
	if err := d.send(ctx, true); err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == 0x41 || d.response[3] == 127 {
		// nothing was clocked in, the device did not answer
		_, _ = d.releaseBus(ctx)
		return fmt.Errorf("no data from %#x: %w", address, irsensors.ErrBusTimeout)
	}
	if int(d.response[3]) != len(buffer) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), d.response[3])
	}
	copy(buffer, d.response[4:])
	return nil
}

// checkAck reads the engine status after a write; a NACKed address is
// reported as ErrBusTimeout and the engine is released.
func (d *MCP2221) checkAck(ctx context.Context, address byte) error {
	status, err := d.status(ctx)
	if err != nil {
		return fmt.Errorf("could not read engine status: %w", err)
	}
	if status.AddressNACK {
		_, _ = d.releaseBus(ctx)
		return fmt.Errorf("address %#x not acknowledged: %w", address, irsensors.ErrBusTimeout)
	}
	return nil
}

func (d *MCP2221) SetGPIOParameters(ctx context.Context, params MCP2221GPIOParameters) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdWriteFlash
	d.request[1] = 0x01
	d.request[2] = byte(params.GPIO0Designation) | byte(params.GPIO0Mode)
	d.request[3] = byte(params.GPIO1Designation) | byte(params.GPIO1Mode)
	d.request[4] = byte(params.GPIO2Designation) | byte(params.GPIO2Mode)
	d.request[5] = byte(params.GPIO3Designation) | byte(params.GPIO3Mode)
	err := d.send(ctx, true)
	if err != nil {
		return fmt.Errorf("set GP parameters command write failed: %w", err)
	}
	if d.response[1] == 0x01 {
		return ErrCommandFailed
	}
	return nil
}

// SetGPIOOutput switches pin to output and drives it to value.
func (d *MCP2221) SetGPIOOutput(ctx context.Context, pin int, value bool) error {
	if pin < 0 || pin >= GPIOPinCount {
		return fmt.Errorf("invalid GPIO pin: %d", pin)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdSetGPIO
	i := 2 + 4*pin
	d.request[i] = 0x01 // alter output value
	if value {
		d.request[i+1] = 0x01
	}
	d.request[i+2] = 0x01 // alter direction
	d.request[i+3] = byte(GPIOModeOut)
	if err := d.send(ctx, true); err != nil {
		return fmt.Errorf("set GPIO command write failed: %w", err)
	}
	if d.response[1] != 0x00 || d.response[i] == 0xEE {
		return fmt.Errorf("GP%d is not configured for GPIO operation: %w", pin, ErrCommandFailed)
	}
	return nil
}

func (d *MCP2221) ReadGPIO(ctx context.Context, id ...int) (MCP2221GPIOValues, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdGetGPIO
	err := d.send(ctx, true, id...)
	var res MCP2221GPIOValues
	if err != nil {
		return res, fmt.Errorf("read GPIO values command write failed: %w", err)
	}
	if d.response[1] == 0x01 {
		return res, ErrCommandFailed
	}
	mode := func(b byte) GPIOMode {
		if b == byte(GPIOModeNoOperation) {
			return GPIOModeNoOperation
		}
		return GPIOMode(b << 3)
	}
	res.GPIO0Value, res.GPIO0Mode = d.response[2], mode(d.response[3])
	res.GPIO1Value, res.GPIO1Mode = d.response[4], mode(d.response[5])
	res.GPIO2Value, res.GPIO2Mode = d.response[6], mode(d.response[7])
	res.GPIO3Value, res.GPIO3Mode = d.response[8], mode(d.response[9])
	return res, nil
}

func (d *MCP2221) GetGPIOParameters(ctx context.Context) (MCP2221GPIOParameters, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdReadFlash
	d.request[1] = 0x01
	err := d.send(ctx, true)
	if err != nil {
		return MCP2221GPIOParameters{}, fmt.Errorf("get GP parameters command write failed: %w", err)
	}
	if d.response[1] == 0x01 {
		return MCP2221GPIOParameters{}, ErrCommandUnsupported
	}
	return MCP2221GPIOParameters{
		GPIO0Mode:        GPIOMode(d.response[4] & gpioModeMask),
		GPIO0Designation: GPIODesignation(d.response[4] & gpioOperationMask),
		GPIO1Mode:        GPIOMode(d.response[5] & gpioModeMask),
		GPIO1Designation: GPIODesignation(d.response[5] & gpioOperationMask),
		GPIO2Mode:        GPIOMode(d.response[6] & gpioModeMask),
		GPIO2Designation: GPIODesignation(d.response[6] & gpioOperationMask),
		GPIO3Mode:        GPIOMode(d.response[7] & gpioModeMask),
		GPIO3Designation: GPIODesignation(d.response[7] & gpioOperationMask),
	}, nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.status(ctx)
}

func (d *MCP2221) status(ctx context.Context) (*MCP2221Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatus
	err := d.send(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		17:	Higher byte (16-bit value) of the I2C address being used
		20: ACK status, bit 6 set when the address was not acknowledged
	*/
	status := &MCP2221Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
		AddressNACK:          buffer[20]&statusAddrNACK != 0,
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

func (d *MCP2221) Release(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	_, err := d.releaseBus(ctx)
	return err
}

func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.releaseBus(ctx)
}

func (d *MCP2221) releaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = 0x10
	err := d.send(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("cancel request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) send(ctx context.Context, response bool, id ...int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dev, err := d.open(id...)
	if err != nil {
		return err
	}
	defer func() { _ = dev.Close() }()
	log := snsctx.Logger(ctx)
	verbose := snsctx.IsVerbose(ctx)
	if verbose {
		log.Debug("sending message to adapter", "frame", hex.EncodeToString(d.request))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short write: %d", n)
	}
	if !response {
		return nil
	}
	timer := time.NewTimer(d.responseWait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short read: %d", n)
	}
	if verbose {
		log.Debug("read message from adapter", "frame", hex.EncodeToString(d.response))
	}
	return nil
}

func openHID(id ...int) (io.ReadWriteCloser, error) {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) > 1 && len(id) == 0 {
		return nil, fmt.Errorf("ambiguous device identification")
	}
	if len(devs) == 0 {
		return nil, fmt.Errorf("MCP2221 device not found")
	}
	idx := 0
	if len(id) > 0 {
		if id[0] < 0 || id[0] >= len(devs) {
			return nil, fmt.Errorf("no device with id %d", id[0])
		}
		idx = id[0]
	}
	dev, err := devs[idx].Open()
	if err != nil {
		return nil, fmt.Errorf("error opening device: %w", err)
	}
	return dev, nil
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}

// PowerPin drives a load switch powering a sensor from one of the GP pins.
type PowerPin struct {
	dev       *MCP2221
	pin       int
	activeLow bool
}

var _ irsensors.PowerSwitch = &PowerPin{}

func (d *MCP2221) PowerPin(pin int, activeLow bool) *PowerPin {
	return &PowerPin{dev: d, pin: pin, activeLow: activeLow}
}

func (p *PowerPin) SetPower(ctx context.Context, on bool) error {
	return p.dev.SetGPIOOutput(ctx, p.pin, on != p.activeLow)
}
