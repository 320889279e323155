package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Out receives all command output. Tests replace it.
var Out io.Writer = os.Stdout

// Header prints the target of a command before it runs.
func Header(product, action, sid, instance, remote string) {
	fmt.Fprintf(Out, "=== sapsteward / %s (%s) ===\n", strings.ToUpper(product), action)
	fmt.Fprintf(Out, "SID: %s\n", strings.ToUpper(sid))
	fmt.Fprintf(Out, "Instance: %s\n", instance)
	if remote != "" {
		fmt.Fprintf(Out, "Host: %s\n", remote)
	}
	fmt.Fprintf(Out, "Timestamp: %s\n", time.Now().UTC().Format(time.RFC3339))
}

// Field prints a labeled value.
func Field(label, value string) {
	fmt.Fprintf(Out, "%s: %s\n", label, value)
}

// Raw prints tool output unchanged, adding a final newline when missing.
func Raw(text string) {
	if text == "" {
		return
	}
	fmt.Fprint(Out, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(Out)
	}
}

// Info prints an informational line prefixed with >> (recommendation style).
func Info(format string, args ...any) {
	fmt.Fprintf(Out, "  >> %s\n", fmt.Sprintf(format, args...))
}

// Success prints a success message.
func Success(format string, args ...any) {
	fmt.Fprintf(Out, "[OK] %s\n", fmt.Sprintf(format, args...))
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	fmt.Fprintf(Out, "[WARN] %s\n", fmt.Sprintf(format, args...))
}

// Fail prints a failure message.
func Fail(format string, args ...any) {
	fmt.Fprintf(Out, "[FAIL] %s\n", fmt.Sprintf(format, args...))
}

// Complete prints a completion message.
func Complete(msg string) {
	fmt.Fprintf(Out, "=== %s ===\n", msg)
}
