package sinks

import (
	"fmt"
	"io"
	"os"

	"github.com/OEOTYAN/BedrockServerClientInterface/logging"
)

// Open builds the sinks named in cfg.EnabledSinks. Console output and a JSON
// sink without a file path both go to stdout. The returned release function
// closes any file Open created and must run after the router is closed.
func Open(cfg logging.Config, stdout io.Writer) ([]logging.NamedSink, func(), error) {
	if stdout == nil {
		stdout = os.Stdout
	}
	var files []*os.File
	release := func() {
		for _, f := range files {
			f.Close()
		}
	}

	var named []logging.NamedSink
	for _, name := range cfg.EnabledSinks {
		switch name {
		case logging.SinkConsole:
			named = append(named, logging.NamedSink{Name: name, Sink: NewConsoleSink(stdout, cfg.Console)})
		case logging.SinkJSON:
			var w io.Writer = stdout
			if cfg.JSON.FilePath != "" {
				file, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					release()
					return nil, nil, fmt.Errorf("open json log: %w", err)
				}
				files = append(files, file)
				w = file
			}
			named = append(named, logging.NamedSink{Name: name, Sink: NewJSON(w, cfg.JSON.FlushInterval)})
		case "":
		default:
			release()
			return nil, nil, fmt.Errorf("unknown log sink %q", name)
		}
	}
	return named, release, nil
}
