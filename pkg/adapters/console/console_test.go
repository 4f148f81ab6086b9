package console_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/coperacha/pkg/adapters/console"
	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_EchoesEachLine(t *testing.T) {
	var out bytes.Buffer
	c := console.New(strings.NewReader("hola\n\n  \nsi\n"), &out, console.WithIdentity("504"))

	var got []domain.Message
	err := c.Run(context.Background(), func(ctx context.Context, msg domain.Message) error {
		got = append(got, msg)
		return c.Send(ctx, msg.From, "eco: "+msg.Text)
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.Message{{From: "504", Text: "hola"}, {From: "504", Text: "si"}}, got)
	assert.Equal(t, "bot> eco: hola\n\nbot> eco: si\n\n", out.String())
}

func TestRun_ReportsErrors(t *testing.T) {
	var out bytes.Buffer
	c := console.New(strings.NewReader("a\nb\n"), &out)

	calls := 0
	err := c.Run(context.Background(), func(context.Context, domain.Message) error {
		calls++
		if calls == 1 {
			return errors.New("boom")
		}
		return &domain.WriteError{Op: "create wallet", Err: errors.New("reverted")}
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, out.String(), "! boom\n")
	assert.Contains(t, out.String(), "! create wallet falló\n")
}

func TestRun_StopsOnCancel(t *testing.T) {
	r, w := io.Pipe()
	t.Cleanup(func() { _ = w.Close() })

	c := console.New(r, io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(context.Context, domain.Message) error { return nil })
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSend_OtherIdentity(t *testing.T) {
	var out bytes.Buffer
	c := console.New(strings.NewReader(""), &out)
	assert.Equal(t, console.DefaultIdentity, c.Identity())

	require.NoError(t, c.Send(context.Background(), "999", "aviso"))
	assert.Equal(t, "bot → 999> aviso\n\n", out.String())
}

func TestSend_Markdown(t *testing.T) {
	var out bytes.Buffer
	c := console.New(strings.NewReader(""), &out, console.WithMarkdown(true))

	require.NoError(t, c.Send(context.Background(), console.DefaultIdentity, "hola"))
	assert.Contains(t, out.String(), "hola")
	assert.True(t, strings.HasPrefix(out.String(), "bot> "))
}

func TestPrintBanner(t *testing.T) {
	var out bytes.Buffer
	console.New(strings.NewReader(""), &out).PrintBanner("v1.2.3\n")
	assert.Contains(t, out.String(), "v1.2.3")
	assert.NotContains(t, out.String(), "\x1b[")
}
