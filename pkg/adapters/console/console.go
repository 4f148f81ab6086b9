// Package console is a stdin/stdout transport for local conversations.
// It is both the inbound stream and the Sender of a single identity.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/ports"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// DefaultIdentity is the phone number used when none is given.
const DefaultIdentity = "50400000000"

// HandleFunc processes one inbound message.
type HandleFunc func(ctx context.Context, msg domain.Message) error

// Console reads lines from in and prints replies to out.
type Console struct {
	in       io.Reader
	out      *termenv.Output
	identity string
	prompt   bool
	render   func(string) (string, error)

	mu sync.Mutex
}

var _ ports.Sender = (*Console)(nil)

// Option configures a Console.
type Option func(*Console)

// WithIdentity sets the phone number the conversation runs as.
func WithIdentity(identity string) Option {
	return func(c *Console) {
		if identity = strings.TrimSpace(identity); identity != "" {
			c.identity = identity
		}
	}
}

// WithMarkdown renders replies through glamour.
func WithMarkdown(enabled bool) Option {
	return func(c *Console) {
		if !enabled {
			c.render = nil
			return
		}
		style := "notty"
		if c.prompt {
			style = "auto"
		}
		r, err := glamour.NewTermRenderer(glamour.WithStandardStyle(style), glamour.WithWordWrap(80))
		if err != nil {
			return
		}
		c.render = r.Render
	}
}

// New creates a console over in and out. Prompts and colors are enabled only
// when both are terminals.
func New(in io.Reader, out io.Writer, opts ...Option) *Console {
	interactive := isTerminal(in) && isTerminal(out)
	profile := termenv.Ascii
	if interactive {
		profile = termenv.EnvColorProfile()
	}
	c := &Console{
		in:       in,
		out:      termenv.NewOutput(out, termenv.WithProfile(profile)),
		identity: DefaultIdentity,
		prompt:   interactive,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Identity returns the phone number the console speaks as.
func (c *Console) Identity() string {
	return c.identity
}

// Send implements ports.Sender. Messages for other identities are printed
// with their recipient.
func (c *Console) Send(ctx context.Context, identity, text string) error {
	if c.render != nil {
		if md, err := c.render(text); err == nil {
			text = strings.Trim(md, "\n")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	label := "bot"
	if identity != c.identity {
		label = "bot → " + identity
	}
	head := c.out.String(label + ">").Foreground(c.out.Color("#a78bfa")).Bold()
	_, err := fmt.Fprintf(c.out, "%s %s\n\n", head, text)
	return err
}

// Run feeds each line of input to handle until input ends or ctx is done.
// Throttled and degraded turns are reported and the loop goes on.
func (c *Console) Run(ctx context.Context, handle HandleFunc) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		c.showPrompt()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := handle(ctx, domain.Message{From: c.identity, Text: line}); err != nil {
				c.warn(err)
			}
		}
	}
}

func (c *Console) showPrompt() {
	if !c.prompt {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, c.out.String("tú> ").Foreground(c.out.Color("#f472b6")))
}

func (c *Console) warn(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := err.Error()
	var werr *domain.WriteError
	if errors.As(err, &werr) {
		msg = werr.Op + " falló"
	}
	fmt.Fprintln(c.out, c.out.String("! "+msg).Foreground(c.out.Color("#fb7185")))
}
