package ui

import (
	"fmt"
	"html"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"ctpull/pkg/collector"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// commandSender runs a platform notification command
type commandSender struct {
	build func(title, message string) *exec.Cmd
}

func (s commandSender) Send(title, message string) error {
	return s.build(title, message).Run()
}

// senderFor returns the desktop sender of an OS, or nil where none exists
func senderFor(goos string) NotificationSender {
	switch goos {
	case "linux":
		return commandSender{build: func(title, message string) *exec.Cmd {
			return exec.Command("notify-send", "--app-name=ctpull", title, message)
		}}
	case "darwin":
		return commandSender{build: func(title, message string) *exec.Cmd {
			return exec.Command("osascript", "-e", appleScript(title, message))
		}}
	case "windows":
		return commandSender{build: func(title, message string) *exec.Cmd {
			return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", toastScript(title, message))
		}}
	}
	return nil
}

// appleScript quotes title and message as AppleScript string literals
func appleScript(title, message string) string {
	quote := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return fmt.Sprintf(`display notification "%s" with title "%s"`, quote.Replace(message), quote.Replace(title))
}

// toastScript builds a PowerShell toast. The text goes into XML, so it is
// escaped, and the here-string ends only at a line starting with "@.
func toastScript(title, message string) string {
	return fmt.Sprintf(`[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
$doc.LoadXml(@"
<toast><visual><binding template="ToastText02"><text id="1">%s</text><text id="2">%s</text></binding></visual></toast>
"@)
[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("ctpull").Show([Windows.UI.Notifications.ToastNotification]::new($doc))`,
		html.EscapeString(title), html.EscapeString(message))
}

// Notifier reports the end of a collection on the terminal and, where the
// platform supports it, on the desktop
type Notifier struct {
	sender NotificationSender
	out    io.Writer
}

// NewNotifier creates a notifier for the current platform
func NewNotifier() *Notifier {
	return &Notifier{sender: senderFor(runtime.GOOS), out: Out}
}

// NewNotifierWithSender creates a notifier with an explicit sender and output
func NewNotifierWithSender(sender NotificationSender, out io.Writer) *Notifier {
	return &Notifier{sender: sender, out: out}
}

// Outcome is what a finished collection run amounts to for the user
type Outcome struct {
	Title   string
	Message string
	Failed  bool
}

// Describe turns a collection result into a notification
func Describe(res *collector.Result, err error) Outcome {
	switch {
	case res == nil:
		return Outcome{Title: "ctpull failed", Message: fmt.Sprintf("collection failed: %v", err), Failed: true}
	case err != nil:
		return Outcome{
			Title:   "ctpull interrupted",
			Message: fmt.Sprintf("stopped after %d posts in %d pages, resume to continue", len(res.Records), res.Calls),
			Failed:  true,
		}
	case res.StopReason == collector.StopRetriesExhausted:
		return Outcome{
			Title:   "ctpull gave up",
			Message: fmt.Sprintf("retries exhausted after %d posts in %d pages", len(res.Records), res.Calls),
			Failed:  true,
		}
	case res.StopReason == collector.StopMaxCalls:
		return Outcome{
			Title:   "ctpull paused",
			Message: fmt.Sprintf("call budget used: %d posts in %d pages, more are available", len(res.Records), res.Calls),
		}
	}
	return Outcome{
		Title:   "ctpull finished",
		Message: fmt.Sprintf("collected %d posts in %d pages", len(res.Records), res.Calls),
	}
}

// NotifyResult prints how a collection ended and sends it to the desktop.
// Desktop delivery is best effort.
func (n *Notifier) NotifyResult(res *collector.Result, err error) Outcome {
	o := Describe(res, err)

	color := Green
	if o.Failed {
		color = Red
	}
	fmt.Fprintf(n.out, "\n%s: %s\n", color(o.Title), o.Message)

	if n.sender != nil {
		_ = n.sender.Send(o.Title, o.Message)
	}
	return o
}
