package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"tether/internal/client"
	"tether/internal/types"
)

type SendCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	newRuntime runtimeFactory
}

func NewSendCommand(stdout, stderr io.Writer, newRuntime runtimeFactory) *SendCommand {
	return &SendCommand{
		stdout:     stdout,
		stderr:     stderr,
		newRuntime: newRuntime,
	}
}

type fileList []string

func (f *fileList) String() string {
	return strings.Join(*f, ",")
}

func (f *fileList) Set(value string) error {
	*f = append(*f, value)
	return nil
}

func (c *SendCommand) Run(args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	var files fileList
	fs.Var(&files, "file", "attach a file (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("send requires a thread id")
	}
	id := fs.Arg(0)
	text := strings.Join(fs.Args()[1:], " ")
	if strings.TrimSpace(text) == "" && len(files) == 0 {
		return errors.New("send requires message text or at least one --file")
	}

	ctx := context.Background()
	rt, err := c.newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	var refs []types.PreparedRef
	for _, path := range files {
		att, err := readAttachment(path)
		if err != nil {
			return err
		}
		ref, err := rt.gateway.UploadAttachment(ctx, id, att)
		if err != nil {
			return fmt.Errorf("upload %s: %w", path, err)
		}
		refs = append(refs, ref)
	}

	ack, err := rt.gateway.SendMessage(ctx, id, client.SendMessageRequest{
		Text:           text,
		Attachments:    refs,
		ClientActionID: uuid.NewString(),
	})
	if err != nil {
		return err
	}
	if !ack.Accepted {
		return errors.New("server did not accept the message")
	}
	fmt.Fprintf(c.stdout, "sent (trace %s)\n", ack.TraceID)
	return nil
}

func readAttachment(path string) (types.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Attachment{}, err
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return types.Attachment{
		Filename: filepath.Base(path),
		MimeType: mimeType,
		Data:     data,
	}, nil
}
