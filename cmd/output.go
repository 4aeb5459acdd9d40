package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// writeJSON prints v as indented JSON to stdout or to outputPath.
func writeJSON(v any, outputPath string, log zerolog.Logger) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal output to JSON")
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	return writeOutput(append(jsonData, '\n'), outputPath, log)
}

// writeOutput writes data to outputPath, or to stdout when the path is empty.
func writeOutput(data []byte, outputPath string, log zerolog.Logger) error {
	if outputPath == "" {
		if _, err := os.Stdout.Write(data); err != nil {
			log.Error().Err(err).Msg("Failed to write to stdout")
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(data)).
		Msg("Output written to file")
	return nil
}
