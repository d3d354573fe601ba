package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

func writeOutput(path string, payload []byte) error {
	if path == "" {
		if _, err := os.Stdout.Write(payload); err != nil {
			return err
		}
		_, err := fmt.Fprintln(os.Stdout)
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

func writeJSON(path string, value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(path, payload)
}

// readInput reads a file, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
