// Command reon-device simulates a REON turnstile.
//
// It dials a controller, presents a card at a configurable interval,
// and plays out the rotation cycle for every grant it receives. Status
// queries from the controller are echoed back, so the simulated device
// stays reachable.
//
// Usage:
//
//	reon-device [flags]
//
// Flags:
//
//	-address string    Controller address (default "localhost:7030")
//	-device int        Device id, 1-99 (default 1)
//	-card string       Card number to present (default "12345678")
//	-direction string  Passage direction: entry, exit (default "entry")
//	-reader string     Reader type: card, biometric, keypad (default "card")
//	-interval duration Interval between swipes; 0 swipes once (default 0)
//	-rotate duration   Delay before reporting rotation complete (default 1s)
//	-no-rotate         Never rotate after a grant (exercises the timeout)
//
// Examples:
//
//	# One swipe, rotate, exit
//	reon-device -card 12345678
//
//	# Keep swiping every 10 seconds
//	reon-device -card 12345678 -interval 10s
//
//	# Swipe and walk away without rotating
//	reon-device -card 12345678 -no-rotate
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"github.com/reon-protocol/reon-go/pkg/protocol"
	"github.com/reon-protocol/reon-go/pkg/transport"
)

var (
	address   = flag.String("address", "localhost:7030", "Controller address")
	deviceID  = flag.Int("device", 1, "Device id, 1-99")
	card      = flag.String("card", "12345678", "Card number to present")
	direction = flag.String("direction", "entry", "Passage direction: entry, exit")
	reader    = flag.String("reader", "card", "Reader type: card, biometric, keypad")
	interval  = flag.Duration("interval", 0, "Interval between swipes; 0 swipes once")
	rotate    = flag.Duration("rotate", time.Second, "Delay before reporting rotation complete")
	noRotate  = flag.Bool("no-rotate", false, "Never rotate after a grant")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	device, err := protocol.NewDeviceID(*deviceID)
	if err != nil {
		log.Fatalf("Invalid device id: %v", err)
	}
	dir, err := parseDirection(*direction)
	if err != nil {
		log.Fatal(err)
	}
	rdr, err := parseReader(*reader)
	if err != nil {
		log.Fatal(err)
	}

	client, err := transport.NewClient(transport.ClientConfig{})
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	sim := &simulator{
		device: device,
		card:   *card,
		dir:    dir,
		reader: rdr,
	}
	sim.run(client)
}

type simulator struct {
	device protocol.DeviceID
	card   string
	dir    protocol.Direction
	reader protocol.ReaderType

	conn *transport.ClientConn
}

func (s *simulator) run(client *transport.Client) {
	conn, err := client.Connect(context.Background(), *address)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *address, err)
	}
	defer conn.Close()
	s.conn = conn
	log.Printf("Connected to controller at %s as device %s", *address, s.device)

	s.swipe()

	var ticker *time.Ticker
	var tick <-chan time.Time
	if *interval > 0 {
		ticker = time.NewTicker(*interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			msg, err := conn.Receive(0)
			if err != nil {
				if !errors.Is(err, transport.ErrConnectionClosed) {
					log.Printf("Receive: %v", err)
				}
				return
			}
			if finished := s.handle(msg); finished && *interval == 0 {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			if *interval == 0 {
				return
			}
			log.Println("Connection lost")
			os.Exit(1)
		case <-tick:
			s.swipe()
		}
	}
}

// swipe presents the configured card.
func (s *simulator) swipe() {
	msg, err := protocol.NewAccessRequest(s.device, s.card, time.Now(), s.dir, s.reader)
	if err != nil {
		log.Fatalf("Failed to build access request: %v", err)
	}
	if err := s.conn.Send(msg); err != nil {
		log.Printf("Send failed: %v", err)
		return
	}
	log.Printf("Presented card %s (%s, %s)", s.card, s.dir, s.reader)
}

// handle reacts to a controller message the way the hardware would.
// It reports true once the current swipe's outcome is settled.
func (s *simulator) handle(msg *protocol.Message) bool {
	switch {
	case msg.Command.IsGrant():
		log.Printf("Access granted: %q (release %ss)", msg.Field(1), msg.Field(0))
		if *noRotate {
			log.Println("Not rotating; the release window will expire")
			return false
		}
		s.performRotation()
		return true

	case msg.Command == protocol.CommandDeny:
		log.Printf("Access denied: %q", msg.Field(0))
		return true

	case msg.Command == protocol.CommandStatusQuery:
		// Echo it back as the liveness reply.
		if reply, err := protocol.NewStatusQuery(s.device); err == nil {
			s.conn.Send(reply)
		}

	case msg.Command == protocol.CommandSetClock:
		log.Printf("Clock set to %s", msg.Field(0))

	default:
		log.Printf("Controller sent %s", msg.Command)
	}
	return false
}

// performRotation reports the rotation cycle for a grant.
func (s *simulator) performRotation() {
	s.report(protocol.CommandRotationWait)
	time.Sleep(*rotate)
	s.report(protocol.CommandRotationComplete)
	log.Println("Rotation complete")
}

func (s *simulator) report(cmd protocol.Command) {
	msg, err := protocol.NewMessage(s.device, cmd)
	if err != nil {
		log.Printf("Failed to build %s: %v", cmd, err)
		return
	}
	if err := s.conn.Send(msg); err != nil {
		log.Printf("Send failed: %v", err)
	}
}

func parseDirection(s string) (protocol.Direction, error) {
	switch s {
	case "entry":
		return protocol.DirectionEntry, nil
	case "exit":
		return protocol.DirectionExit, nil
	default:
		return 0, errors.New("direction must be entry or exit")
	}
}

func parseReader(s string) (protocol.ReaderType, error) {
	switch s {
	case "card":
		return protocol.ReaderCard, nil
	case "biometric":
		return protocol.ReaderBiometric, nil
	case "keypad":
		return protocol.ReaderKeypad, nil
	default:
		return 0, errors.New("reader must be card, biometric, or keypad")
	}
}
