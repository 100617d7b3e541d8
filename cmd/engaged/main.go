// engaged - Notebook engagement tracking daemon
//
// engaged watches open notebooks, aggregates cell executions and errors
// into a per-document engagement summary, and keeps that summary durably
// persisted inside the notebook itself: as structured metadata and as a
// rendered summary cell at the top of the document.
//
//	engaged daemon            Run the tracking daemon
//	engaged replay <nb> <ev>  Apply a recorded event stream to a notebook
//	engaged render <nb>       Print a notebook's current summary block
//	engaged status            Show configuration and daemon state
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "daemon":
		cmdDaemon()
	case "replay":
		cmdReplay()
	case "render":
		cmdRender()
	case "status":
		cmdStatus()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`engaged - Notebook engagement tracking

USAGE:
    engaged <command> [options]

COMMANDS:
    daemon              Run the tracking daemon
    replay <nb> <ev>    Apply a recorded event stream (JSONL) to a notebook
    render <nb>         Print a notebook's current summary block
    status              Show configuration and daemon state
    help                Show this help message

The daemon watches configured notebook directories and listens on a unix
socket for editor-plugin traffic: kernel messages, focus changes, and
document lifecycle. Engagement summaries are written back into each
notebook, debounced, with a forced flush on close and on shutdown.`)
}
