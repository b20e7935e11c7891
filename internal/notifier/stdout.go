package notifier

import (
	"context"
	"fmt"
	"io"
	"os"
)

type StdoutNotifier struct {
	name string
	out  io.Writer
}

func NewStdoutNotifier(name string) (*StdoutNotifier, error) {
	return &StdoutNotifier{
		name: name,
		out:  os.Stdout,
	}, nil
}

func (sout *StdoutNotifier) Name() string {
	return sout.name
}

func (sout *StdoutNotifier) Send(_ context.Context, msg Message) error {
	_, err := fmt.Fprintf(sout.out, "[%s] (priority %d)\n%s\n", msg.Title, msg.Priority, msg.Body)
	return err
}
