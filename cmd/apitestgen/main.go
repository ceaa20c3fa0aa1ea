package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yourorg/apitestgen/internal/config"
	"github.com/yourorg/apitestgen/internal/generator"
	"github.com/yourorg/apitestgen/internal/server"
	"github.com/yourorg/apitestgen/internal/store"
)

const defaultConfigContent = `llm:
  provider: "openai"
  api_key: ""
  base_url: "https://api.openai.com/v1"
  model: "gpt-4o"
  max_tokens: 4096
  temperature: 0.2
  timeout_seconds: 120
  max_retries: 0

store:
  path: %q

output:
  dir: ""

server:
  host: "127.0.0.1"
  port: 5000
  max_upload_bytes: 16777216
  cors_origin: ""

log:
  level: "info"
  format: "text"
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "apitestgen",
		Short:         "Generate JUnit 5 test suites from OpenAPI specifications",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.cfgPath, "config", "", "config file path")
	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "enable verbose output")

	root.AddCommand(newInitCmd())
	root.AddCommand(newGenerateCmd(opts))
	root.AddCommand(newRefineCmd(opts))
	root.AddCommand(newPromptCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newLintCmd())
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newListCmd(opts))
	root.AddCommand(newShowCmd(opts))
	root.AddCommand(newDeleteCmd(opts))
	root.AddCommand(newHealthCmd(opts))

	return root
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize ~/.apitestgen directory and default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, err := config.DefaultPath()
			if err != nil {
				return err
			}
			baseDir := filepath.Dir(cfgFile)
			if err := os.MkdirAll(baseDir, 0o755); err != nil {
				return err
			}

			dbPath := filepath.Join(baseDir, "apitestgen.db")
			if _, err := os.Stat(cfgFile); errors.Is(err, os.ErrNotExist) {
				if err := os.WriteFile(cfgFile, []byte(fmt.Sprintf(defaultConfigContent, dbPath)), 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "created", cfgFile)
			} else if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "exists", cfgFile)
			} else {
				return err
			}

			s, err := store.NewSQLiteStore(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "database ready", dbPath)
			fmt.Fprintln(cmd.OutOrStdout(), "please update llm.api_key in", cfgFile)
			return nil
		},
	}
}

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var specPath, outDir string
	var printCode bool
	cmd := &cobra.Command{Use: "generate", Short: "Generate tests from a spec file", RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readSpec(specPath)
		if err != nil {
			return err
		}
		var extra []generator.Option
		if outDir != "" {
			extra = append(extra, generator.WithOutputDir(outDir))
		}
		a, err := opts.open(cmd.ErrOrStderr(), true, extra...)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.Generate(cmd.Context(), filepath.Base(specPath), content)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if printCode {
			fmt.Fprintln(out, res.Code)
			return nil
		}
		fmt.Fprintf(out, "generated %s for %q (%d endpoints, revision %d)\n", res.Filename, res.Title, res.EndpointsCount, res.Revision)
		for _, w := range res.Warnings {
			fmt.Fprintln(out, "warning:", w)
		}
		return nil
	}}
	cmd.Flags().StringVar(&specPath, "spec", "", "OpenAPI spec file (json, yaml, yml)")
	cmd.Flags().StringVar(&outDir, "out", "", "also write the artifact into this directory")
	cmd.Flags().BoolVar(&printCode, "print", false, "print generated code instead of a summary")
	_ = cmd.MarkFlagRequired("spec")
	return cmd
}

func newRefineCmd(opts *rootOptions) *cobra.Command {
	var file, feedback string
	var printCode bool
	cmd := &cobra.Command{Use: "refine", Short: "Regenerate a test file with feedback", RunE: func(cmd *cobra.Command, args []string) error {
		a, err := opts.open(cmd.ErrOrStderr(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.Refine(cmd.Context(), file, feedback)
		if err != nil {
			return err
		}
		if printCode {
			fmt.Fprintln(cmd.OutOrStdout(), res.Code)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "refined %s (revision %d)\n", res.Filename, res.Revision)
		return nil
	}}
	cmd.Flags().StringVar(&file, "file", "", "artifact filename, e.g. Pet_Store_Tests.java")
	cmd.Flags().StringVar(&feedback, "feedback", "", "what to change")
	cmd.Flags().BoolVar(&printCode, "print", false, "print refined code instead of a summary")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("feedback")
	return cmd
}

func newPromptCmd() *cobra.Command {
	var specPath string
	cmd := &cobra.Command{Use: "prompt", Short: "Print the generation prompt without calling the LLM", RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readSpec(specPath)
		if err != nil {
			return err
		}
		api, _, err := generator.Describe(cmd.Context(), specPath, content)
		if err != nil {
			return err
		}
		prompt := generator.RenderPrompt(api)
		fmt.Fprintln(cmd.OutOrStdout(), prompt)
		fmt.Fprintf(cmd.ErrOrStderr(), "~%d tokens\n", generator.EstimateTokens(prompt))
		return nil
	}}
	cmd.Flags().StringVar(&specPath, "spec", "", "OpenAPI spec file (json, yaml, yml)")
	_ = cmd.MarkFlagRequired("spec")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var specPath, format string
	cmd := &cobra.Command{Use: "inspect", Short: "Show the extracted API description", RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readSpec(specPath)
		if err != nil {
			return err
		}
		api, _, err := generator.Describe(cmd.Context(), specPath, content)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		switch format {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(api)
		case "yaml":
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(api)
		default:
			return fmt.Errorf("unknown output format %q (want yaml or json)", format)
		}
	}}
	cmd.Flags().StringVar(&specPath, "spec", "", "OpenAPI spec file (json, yaml, yml)")
	cmd.Flags().StringVar(&format, "output", "yaml", "output format: yaml or json")
	_ = cmd.MarkFlagRequired("spec")
	return cmd
}

func newLintCmd() *cobra.Command {
	var specPath string
	cmd := &cobra.Command{Use: "lint", Short: "Report OpenAPI validation warnings", RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readSpec(specPath)
		if err != nil {
			return err
		}
		_, warnings, err := generator.Describe(cmd.Context(), specPath, content)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(warnings) == 0 {
			fmt.Fprintln(out, "no issues found")
			return nil
		}
		for _, w := range warnings {
			fmt.Fprintln(out, "warning:", w)
		}
		return nil
	}}
	cmd.Flags().StringVar(&specPath, "spec", "", "OpenAPI spec file (json, yaml, yml)")
	_ = cmd.MarkFlagRequired("spec")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var host string
	var port int
	var trace bool
	cmd := &cobra.Command{Use: "serve", Short: "Start HTTP service", RunE: func(cmd *cobra.Command, args []string) error {
		a, err := opts.open(cmd.ErrOrStderr(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		if trace {
			tp, err := initTracer(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(ctx)
			}()
		}

		if cmd.Flags().Changed("host") {
			a.cfg.Server.Host = host
		}
		if cmd.Flags().Changed("port") {
			a.cfg.Server.Port = port
		}
		srv, err := server.New(a.cfg, a.svc, a.store, a.logger)
		if err != nil {
			return err
		}
		httpSrv := srv.HTTPServer(net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(a.cfg.Server.Port)))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			a.logger.Info("server listening", "addr", httpSrv.Addr, "model", a.cfg.LLM.Model)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		a.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	}}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "server host")
	cmd.Flags().IntVar(&port, "port", 5000, "server port")
	cmd.Flags().BoolVar(&trace, "trace", false, "print OpenTelemetry spans to stderr")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{Use: "list", Short: "List generated test files", RunE: func(cmd *cobra.Command, args []string) error {
		a, err := opts.open(cmd.ErrOrStderr(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		artifacts, err := a.store.ListArtifacts()
		if err != nil {
			return err
		}
		if len(artifacts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no artifacts")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tTITLE\tREVISION\tUPDATED")
		for _, art := range artifacts {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", art.Filename, art.Title, art.Revision, art.UpdatedAt.Local().Format(time.DateTime))
		}
		return tw.Flush()
	}}
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var file string
	var history bool
	cmd := &cobra.Command{Use: "show", Short: "Show a generated test file", RunE: func(cmd *cobra.Command, args []string) error {
		a, err := opts.open(cmd.ErrOrStderr(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		art, err := a.store.GetArtifact(file)
		if err != nil {
			return fmt.Errorf("artifact %s: %w", file, err)
		}
		out := cmd.OutOrStdout()
		if !history {
			fmt.Fprintln(out, art.Content)
			return nil
		}
		refinements, err := a.store.ListRefinements(file)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s (%s), revision %d\n", art.Filename, art.Title, art.Revision)
		for i, r := range refinements {
			fmt.Fprintf(out, "%d. [%s] %s\n", i+1, r.CreatedAt.Local().Format(time.DateTime), r.Feedback)
		}
		return nil
	}}
	cmd.Flags().StringVar(&file, "file", "", "artifact filename")
	cmd.Flags().BoolVar(&history, "history", false, "show refinement history instead of code")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{Use: "delete", Short: "Delete a generated test file and its history", RunE: func(cmd *cobra.Command, args []string) error {
		a, err := opts.open(cmd.ErrOrStderr(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.DeleteArtifact(file); err != nil {
			return fmt.Errorf("artifact %s: %w", file, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "deleted", file)
		return nil
	}}
	cmd.Flags().StringVar(&file, "file", "", "artifact filename")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{Use: "health", Short: "Check that the LLM endpoint answers", RunE: func(cmd *cobra.Command, args []string) error {
		a, err := opts.open(cmd.ErrOrStderr(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		reply, err := a.svc.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("unhealthy: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "healthy (model %s): %s\n", a.cfg.LLM.Model, reply)
		return nil
	}}
}
