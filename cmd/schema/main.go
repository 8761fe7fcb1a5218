package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/OEOTYAN/BedrockServerClientInterface/internal/config"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/net/proto"
)

func main() {
	var outPath, kind string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.StringVar(&kind, "kind", "config", "schema to emit: config or frames")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	schema, err := buildSchema(kind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if err := writeSchema(outPath, schema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

// frameCatalog groups every wire frame so one document describes them all.
type frameCatalog struct {
	Hello     proto.HelloFrame     `json:"hello"`
	Cell      proto.CellFrame      `json:"cell"`
	Shape     proto.ShapeFrame     `json:"shape"`
	Effect    proto.EffectFrame    `json:"effect"`
	Heartbeat proto.HeartbeatFrame `json:"heartbeat"`
	Client    proto.ClientMessage  `json:"client"`
}

func buildSchema(kind string) (*jsonschema.Schema, error) {
	switch kind {
	case "config":
		reflector := jsonschema.Reflector{
			AllowAdditionalProperties: true,
		}
		schema := reflector.Reflect(new(config.Config))
		schema.Title = "BSCI Server Configuration"
		schema.Description = "Validates the JSON form of the server settings file"
		return schema, nil
	case "frames":
		reflector := jsonschema.Reflector{
			ExpandedStruct: true,
		}
		schema := reflector.Reflect(new(frameCatalog))
		schema.Title = "BSCI Viewer Frames"
		schema.Description = "Websocket frames exchanged between the server and annotation viewers, keyed by frame type"
		return schema, nil
	default:
		return nil, fmt.Errorf("unknown schema kind %q", kind)
	}
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}

	return nil
}
