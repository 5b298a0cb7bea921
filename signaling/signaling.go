package signaling

import (
	"bufio"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/tarm/serial"
)

// SignalHandler processes short motion-sensor codes
type SignalHandler interface {
	HandleSignal(signal string) error
}

// SerialTrigger listens for motion signals on a serial port. Sensor boards
// send each code terminated by a semicolon; every complete code is handed
// to the callback.
type SerialTrigger struct {
	port     *serial.Port
	portName string
	baud     int
	mutex    sync.Mutex
	callback func(string) error
}

// NewSerialTrigger creates a serial trigger handler
func NewSerialTrigger(portName string, baud int, callback func(string) error) *SerialTrigger {
	return &SerialTrigger{
		portName: portName,
		baud:     baud,
		callback: callback,
	}
}

// Connect opens the serial port and starts listening
func (s *SerialTrigger) Connect() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.port != nil {
		return nil
	}

	port, err := serial.OpenPort(&serial.Config{
		Name: s.portName,
		Baud: s.baud,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port: %v", err)
	}
	s.port = port

	go s.listen()
	return nil
}

// listen continuously reads from the serial port
func (s *SerialTrigger) listen() {
	reader := bufio.NewReader(s.port)
	var buffer strings.Builder

	for {
		b, err := reader.ReadByte()
		if err != nil {
			log.Printf("Error reading from serial port: %v", err)
			break
		}

		if b == '\r' || b == '\n' {
			continue
		}
		if b == ';' {
			if buffer.Len() > 0 {
				code := buffer.String()
				if s.callback != nil {
					if err := s.callback(code); err != nil {
						log.Printf("Error handling signal %q: %v", code, err)
					}
				}
				buffer.Reset()
			}
		} else {
			buffer.WriteByte(b)
		}
	}
}

// HandleSignal processes a code as if it arrived on the port
func (s *SerialTrigger) HandleSignal(signal string) error {
	if s.callback != nil {
		return s.callback(signal)
	}
	return nil
}

// Close closes the serial port connection
func (s *SerialTrigger) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.port != nil {
		err := s.port.Close()
		s.port = nil
		return err
	}
	return nil
}
