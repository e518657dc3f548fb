package console

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Jon-Bright/estufa/command"
	"github.com/Jon-Bright/estufa/logs"
	"github.com/Jon-Bright/estufa/plant"
)

const DEFAULT_REPLY_WAIT = 3 * time.Second

// SyncWriter serialises writes from the menu loop and from paho's
// callback goroutine so their lines don't interleave.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewSyncWriter(w io.Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type Config struct {
	In        io.Reader
	Out       io.Writer
	Log       *logs.Loggers
	Catalog   command.Catalog
	Sender    *Sender
	ReplyWait time.Duration
}

type Console struct {
	in      io.Reader
	out     io.Writer
	log     *logs.Loggers
	catalog command.Catalog
	sender  *Sender
	wait    time.Duration
}

func New(cfg Config) *Console {
	c := &Console{
		in:      cfg.In,
		out:     cfg.Out,
		log:     cfg.Log,
		catalog: cfg.Catalog,
		sender:  cfg.Sender,
		wait:    cfg.ReplyWait,
	}
	if c.catalog == nil {
		c.catalog = command.Default()
	}
	if c.wait <= 0 {
		c.wait = DEFAULT_REPLY_WAIT
	}
	return c
}

func (c *Console) printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}

func ruler() string {
	return strings.Repeat("=", plant.RULER_WIDTH)
}

func (c *Console) showMenu() {
	var b bytes.Buffer
	fmt.Fprintf(&b, "\n%s\n  AVAILABLE COMMANDS\n%s\n", ruler(), ruler())
	for _, e := range c.catalog {
		fmt.Fprintf(&b, "  %s. %s\n", e.Key, e.Name)
	}
	fmt.Fprintf(&b, "  0. Exit\n%s\n", ruler())
	c.out.Write(b.Bytes())
}

// readLines feeds lines from r until EOF or until done is closed.
func readLines(r io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		s := bufio.NewScanner(r)
		for s.Scan() {
			select {
			case lines <- s.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}

func (c *Console) execute(ctx context.Context, e *command.Entry) error {
	c.printf("\nExecuting: %s\n", e.Name)
	sent, err := c.sender.Prepare(*e)
	if err == nil {
		c.printf("\nSending command to '%s':\n   Payload: %s\n", sent.Topic, sent.Payload)
		err = c.sender.Publish(sent)
	}
	if err != nil {
		c.log.Error.Printf("Command '%s' failed: %v", e.Name, err)
		c.printf("Error: %v\n", err)
		return nil
	}
	c.log.Info.Printf("Sent '%s' as %s: %s", e.Name, sent.ID, sent.Payload)
	c.printf("Command sent (id=%s)\n", sent.ID)

	c.printf("Waiting for reply (%v)...\n", c.wait)
	select {
	case <-time.After(c.wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run shows the menu and executes choices until the user picks 0, the
// input ends or ctx is cancelled. Only cancellation produces an error.
func (c *Console) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	lines := readLines(c.in, done)

	for {
		c.showMenu()
		c.printf("\nChoose a command (0-%d): ", c.catalog.MaxKey())
		var choice string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				c.printf("\nExiting...\n")
				return nil
			}
			choice = strings.TrimSpace(line)
		}
		if choice == "0" {
			c.printf("\nExiting...\n")
			return nil
		}
		e, ok := c.catalog.Lookup(choice)
		if !ok {
			c.printf("Invalid option!\n")
			continue
		}
		err := c.execute(ctx, e)
		if err != nil {
			return err
		}
	}
}
