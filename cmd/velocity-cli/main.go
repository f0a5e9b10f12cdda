// velocity-cli sends commands to a velocity server and prints the replies.
//
// Usage:
//
//	velocity-cli [--addr host:port] COMMAND [ARG...]
//	velocity-cli [--addr host:port]            read commands from stdin
package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/velocitykv/velocity/internal/protocol"
	"github.com/velocitykv/velocity/internal/version"
)

func main() {
	app := &cli.App{
		Name:      "velocity-cli",
		Usage:     "send commands to a velocity server",
		UsageText: "velocity-cli [options] [COMMAND [ARG...]]",
		Version:   version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "server address",
				EnvVars: []string{"VELOCITY_ADDR"},
				Value:   "127.0.0.1:6379",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "dial and reply timeout",
				Value: 5 * time.Second,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type client struct {
	conn    net.Conn
	reader  *protocol.Reader
	writer  *protocol.Writer
	timeout time.Duration
}

func (c *client) do(argv ...string) (protocol.Value, error) {
	if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
	if err := c.writer.WriteRequest(argv...); err != nil {
		return protocol.Value{}, err
	}
	return c.reader.ReadValue()
}

func run(c *cli.Context) error {
	timeout := c.Duration("timeout")
	conn, err := net.DialTimeout("tcp", c.String("addr"), timeout)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	cl := &client{
		conn:    conn,
		reader:  protocol.NewReader(conn),
		writer:  protocol.NewWriter(conn),
		timeout: timeout,
	}
	out := c.App.Writer

	if c.NArg() > 0 {
		v, err := cl.do(c.Args().Slice()...)
		if err != nil {
			return err
		}
		fmt.Fprint(out, formatReply(v, ""))
		return nil
	}

	return repl(cl, os.Stdin, out, c.String("addr"))
}

func repl(cl *client, in io.Reader, out io.Writer, prompt string) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "%s> ", prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		argv := strings.Fields(scanner.Text())
		if len(argv) == 0 {
			continue
		}
		if strings.EqualFold(argv[0], "quit") || strings.EqualFold(argv[0], "exit") {
			return nil
		}
		v, err := cl.do(argv...)
		if err != nil {
			return err
		}
		fmt.Fprint(out, formatReply(v, ""))
	}
}
