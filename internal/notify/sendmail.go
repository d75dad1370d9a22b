package notify

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/me/cyclelaunch/pkg/model"
)

// DefaultSendmailPath is the usual location of the local MTA entry point.
const DefaultSendmailPath = "/usr/sbin/sendmail"

// SendmailNotifier hands a plain-text message to the local MTA with
// `sendmail -t`, which reads recipients from the headers.
type SendmailNotifier struct {
	path string
	from string
}

// NewSendmailNotifier creates a SendmailNotifier. An empty path uses
// DefaultSendmailPath.
func NewSendmailNotifier(path, from string) *SendmailNotifier {
	if path == "" {
		path = DefaultSendmailPath
	}
	return &SendmailNotifier{path: path, from: from}
}

// Name returns "sendmail".
func (n *SendmailNotifier) Name() string { return "sendmail" }

// Notify pipes the rendered message to sendmail. Events without recipients
// are skipped.
func (n *SendmailNotifier) Notify(ctx context.Context, event model.NotificationEvent) error {
	if len(event.Recipients) == 0 {
		return nil
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, n.path, "-t")
	cmd.Stdin = bytes.NewReader(n.message(event))
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("sendmail: %w: %s", err, msg)
		}
		return fmt.Errorf("sendmail: %w", err)
	}
	return nil
}

func (n *SendmailNotifier) message(event model.NotificationEvent) []byte {
	var b bytes.Buffer
	if n.from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", n.from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(event.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", event.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(event.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.Bytes()
}
