// Command redact-check reads lines from stdin and prints them with
// credentials redacted, using the same rules the server applies to error
// logs. Useful for verifying that a log line or error message is safe to
// ship before wiring it into an alert.
//
//	echo "dial postgres://user:secret@db:5432" | redact-check
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/phrazzld/render-api/internal/redact"
)

func main() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		fmt.Println(redact.String(scanner.Text()))
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "redact-check: %v\n", err)
		os.Exit(1)
	}
}
