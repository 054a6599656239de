// Command symptomlog-snapshot exports, imports and converts snapshots of the
// symptomlog database without starting the server.
//
//	symptomlog-snapshot export [-o file]
//	symptomlog-snapshot import [-policy replace|merge] file
//	symptomlog-snapshot csv [-layout wide|long] [-o file]
//
// A file name of "-" means stdin or stdout.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"symptomlog/internal/cli"
	"symptomlog/internal/core"
	"symptomlog/internal/csvexport"
	applog "symptomlog/internal/log"
	"symptomlog/internal/services"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: symptomlog-snapshot <export|import|csv> [flags]")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cli.LoadEnvFile()
	logger := cli.SetupLoggerTo(applog.ComponentCLI, os.Stderr)
	cfg := cli.LoadAndValidateConfig(logger)

	cmd, args := os.Args[1], os.Args[2:]
	var run func(context.Context, *services.ImportExportService, []string) error
	switch cmd {
	case "export":
		run = runExport
	case "import":
		run = runImport
	case "csv":
		run = runCSV
	default:
		usage()
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	err := run(context.Background(), services.NewImportExportService(repo), args)
	closeErr := repo.Close()
	if err != nil {
		cli.Fatal(logger, cmd+" failed", err)
	}
	if closeErr != nil {
		cli.Fatal(logger, "close database", closeErr)
	}
}

func runExport(ctx context.Context, svc *services.ImportExportService, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("o", "-", "output file")
	_ = fs.Parse(args)

	snap, err := svc.ExportAll(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return writeOutput(*out, append(data, '\n'))
}

func runImport(ctx context.Context, svc *services.ImportExportService, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	policyFlag := fs.String("policy", "replace", "replace or merge")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return &core.ValidationError{Field: "file", Reason: "exactly one snapshot file is required"}
	}
	policy, err := services.ParseMergePolicy(*policyFlag)
	if err != nil {
		return err
	}

	data, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}

	result, err := svc.ImportAll(ctx, data, policy)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runCSV(ctx context.Context, svc *services.ImportExportService, args []string) error {
	fs := flag.NewFlagSet("csv", flag.ExitOnError)
	layoutFlag := fs.String("layout", "wide", "wide or long")
	out := fs.String("o", "-", "output file")
	_ = fs.Parse(args)

	layout, err := csvexport.ParseLayout(*layoutFlag)
	if err != nil {
		return err
	}

	snap, err := svc.ExportAll(ctx)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := csvexport.Write(&buf, snap, layout); err != nil {
		return fmt.Errorf("render csv: %w", err)
	}
	return writeOutput(*out, buf.Bytes())
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func writeOutput(name string, data []byte) error {
	if name == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
