package console

import (
	"fmt"
	"strings"
)

// PrintBanner prints the application banner and version.
func (c *Console) PrintBanner(version string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := []struct{ text, color string }{
		{"   ___                           _          ", "#818cf8"},
		{"  / __|___ _ __  ___ _ _ __ _ __| |_  __ _  ", "#a78bfa"},
		{" | (__/ _ \\ '_ \\/ -_) '_/ _` / _| ' \\/ _` | ", "#c084fc"},
		{"  \\___\\___/ .__/\\___|_| \\__,_\\__|_||_\\__,_| ", "#e879f9"},
		{"          |_|                               ", "#f472b6"},
	}
	fmt.Fprintln(c.out)
	for _, l := range lines {
		fmt.Fprintln(c.out, c.out.String(l.text).Foreground(c.out.Color(l.color)))
	}
	if v := strings.TrimSpace(version); v != "" {
		fmt.Fprintln(c.out, c.out.String("  "+v).Faint())
	}
	fmt.Fprintln(c.out)
}
