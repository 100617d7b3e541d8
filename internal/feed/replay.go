package feed

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Replay routes a stream of newline-delimited envelopes to the handler.
// Blank and unparseable lines are skipped, matching the listener's noise
// tolerance; an I/O failure on the stream itself is returned.
func Replay(r io.Reader, handler Handler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			continue
		}
		if !env.Valid() {
			continue
		}
		handler(env)
	}
	return scanner.Err()
}

// ReplayFile replays a recorded envelope file.
func ReplayFile(path string, handler Handler) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()
	return Replay(f, handler)
}
