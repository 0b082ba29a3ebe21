package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"travelmcp/internal/domain"
)

func printResult(out, errOut io.Writer, result domain.Result) error {
	if result.IsError {
		fmt.Fprintln(errOut, result.Text())
		return exitSilent(1)
	}
	fmt.Fprintln(out, result.Text())
	return nil
}

func printTools(out io.Writer, tools []domain.ToolSpec) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, tool := range tools {
		description, _, _ := strings.Cut(strings.TrimSpace(tool.Description), "\n")
		fmt.Fprintf(w, "%s\t%s\n", tool.Name, description)
	}
	return w.Flush()
}

func writeYAML(out io.Writer, value any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(value); err != nil {
		return err
	}
	return enc.Close()
}
