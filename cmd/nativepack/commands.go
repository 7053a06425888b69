package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/animus-labs/nativepack/internal/config"
	"github.com/animus-labs/nativepack/internal/credentials"
	"github.com/animus-labs/nativepack/internal/descriptor"
)

func newInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter project file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(a.configPath); err == nil && !force {
				return configError(fmt.Errorf("%s already exists (use --force to overwrite)", a.configPath))
			}
			if dir := filepath.Dir(a.configPath); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return runtimeError(err)
				}
			}
			if err := os.WriteFile(a.configPath, []byte(config.DefaultProjectYAML), 0o644); err != nil {
				return runtimeError(err)
			}
			fmt.Fprintf(a.stdout, "wrote %s\n", a.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing project file")
	return cmd
}

func newRunCmd(a *app) *cobra.Command {
	var allowPartial bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build, assemble, describe, and publish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := a.loadProject()
			if err != nil {
				return err
			}
			p, cleanup, err := a.newPipeline(cmd.Context(), project)
			defer cleanup()
			if err != nil {
				return err
			}
			report, runErr := p.Run(cmd.Context())
			fmt.Fprint(a.stdout, renderReport(report))
			if runErr != nil {
				return runtimeError(runErr)
			}
			if failed := report.Failed(); len(failed) > 0 && !allowPartial {
				return runtimeError(fmt.Errorf("%d of %d endpoints failed", len(failed), len(report.Endpoints)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&allowPartial, "allow-partial", false, "exit 0 when the run completed but some endpoints failed")
	return cmd
}

func newBuildCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Run the native build for every declared architecture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := a.loadProject()
			if err != nil {
				return err
			}
			p, cleanup, err := a.newPipeline(cmd.Context(), project)
			defer cleanup()
			if err != nil {
				return err
			}
			outcome, err := p.Build(cmd.Context())
			if err != nil {
				return runtimeError(err)
			}
			fmt.Fprintf(a.stdout, "%s\nstaged in %s (%s)\n", outcome.Command.String(), outcome.StagingDir, outcome.Result.Duration)
			return nil
		},
	}
}

func newAssembleCmd(a *app) *cobra.Command {
	var skipBuild bool
	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Build and collect one binary per architecture into the payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := a.loadProject()
			if err != nil {
				return err
			}
			p, cleanup, err := a.newPipeline(cmd.Context(), project)
			defer cleanup()
			if err != nil {
				return err
			}
			staging := p.StagingDir()
			if !skipBuild {
				outcome, err := p.Build(cmd.Context())
				if err != nil {
					return runtimeError(err)
				}
				staging = outcome.StagingDir
			}
			pkg, err := p.Assemble(staging)
			if err != nil {
				return runtimeError(err)
			}
			fmt.Fprint(a.stdout, renderPackage(pkg))
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipBuild, "skip-build", false, "assemble from the existing staging directory")
	return cmd
}

func newDescriptorCmd(a *app) *cobra.Command {
	var pom bool
	cmd := &cobra.Command{
		Use:   "descriptor",
		Short: "Print the canonical publication descriptor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := a.loadProject()
			if err != nil {
				return err
			}
			d, err := descriptor.Build(project)
			if err != nil {
				return configError(err)
			}
			var out []byte
			if pom {
				out, err = descriptor.RenderPOM(d)
			} else {
				out, err = descriptor.Marshal(d)
			}
			if err != nil {
				return runtimeError(err)
			}
			_, err = a.stdout.Write(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&pom, "pom", false, "render a Maven POM instead of JSON")
	return cmd
}

func newCredentialsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "credentials",
		Short: "Show which credential keys resolve and from where (values masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := a.loadProject()
			if err != nil {
				return err
			}
			resolver, err := credentials.FromProject(project, nil)
			if err != nil {
				return configError(err)
			}
			rows := resolver.Describe(project.Endpoints())
			if project.Signing.Enabled {
				for _, key := range []string{project.Signing.KeyKey, project.Signing.PassphraseKey} {
					v, src, ok := resolver.Lookup(key)
					res := credentials.Resolution{Endpoint: "signing", Key: key, Source: src, Found: ok}
					if ok {
						res.Masked = credentials.Mask(v)
					}
					rows = append(rows, res)
				}
			}
			fmt.Fprint(a.stdout, renderCredentials(rows))
			return nil
		},
	}
}

func newEndpointsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints",
		Short: "List publish endpoints and their auth requirements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := a.loadProject()
			if err != nil {
				return err
			}
			endpoints := project.Endpoints()
			if len(endpoints) == 0 {
				return runtimeError(errors.New("no endpoints configured"))
			}
			fmt.Fprint(a.stdout, renderEndpoints(endpoints))
			return nil
		},
	}
}
