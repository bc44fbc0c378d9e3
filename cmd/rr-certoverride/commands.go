package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/haukened/rr-certoverride/internal/certs/common/utils"
	"github.com/haukened/rr-certoverride/internal/certs/domain"
	"github.com/haukened/rr-certoverride/internal/certs/gateways/verifier"
)

// appLoader builds the application on first use so that --help and
// argument errors never touch the store.
type appLoader func() (*Application, error)

// newRootCmd assembles the command tree around load.
func newRootCmd(load appLoader) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Certificate override policy for automation sessions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newDecideCmd(load),
		newProbeCmd(load),
		newOverridesCmd(load),
	)
	return rootCmd
}

// withApp builds the application, runs fn and closes it again.
func withApp(load appLoader, fn func(app *Application) error) error {
	app, err := load()
	if err != nil {
		return err
	}
	runErr := fn(app)
	if err := app.Close(); err != nil && runErr == nil {
		return fmt.Errorf("failed to close application: %w", err)
	}
	return runErr
}

func newDecideCmd(load appLoader) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "decide --host HOST [--port PORT] CERT_FILE",
		Short: "Decide whether a certificate would be accepted for a host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(app *Application) error {
				cert, err := app.readCertificate(args[0])
				if err != nil {
					return err
				}
				return app.decide(cmd.OutOrStdout(), host, port, cert)
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "requested host name")
	cmd.Flags().IntVar(&port, "port", -1, "requested port (-1 means 443)")
	_ = cmd.MarkFlagRequired("host")
	return cmd
}

func newProbeCmd(load appLoader) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "probe HOST:PORT",
		Short: "Fetch a server's certificate chain and decide on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, port, err := utils.SplitHostPort(args[0])
			if err != nil {
				return err
			}
			return withApp(load, func(app *Application) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()
				chain, err := app.prober.Chain(ctx, utils.HostPort(host, port), host)
				if err != nil {
					return err
				}
				cert, err := app.verifier.Certificate(chain)
				if err != nil {
					return err
				}
				return app.decide(cmd.OutOrStdout(), host, port, cert)
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "connect and handshake timeout")
	return cmd
}

func newOverridesCmd(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overrides",
		Short: "Manage stored certificate overrides",
	}
	cmd.AddCommand(
		newOverridesListCmd(load),
		newOverridesAddCmd(load),
		newOverridesClearCmd(load),
		newOverridesGetCmd(load),
		newOverridesUsedCmd(load),
		newOverridesStatsCmd(load),
	)
	return cmd
}

func newOverridesListCmd(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every host:port with an override",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(app *Application) error {
				hosts, err := app.service.GetAllOverrideHostsWithPorts()
				if err != nil {
					return err
				}
				for _, h := range hosts {
					fmt.Fprintln(cmd.OutOrStdout(), h)
				}
				return nil
			})
		},
	}
}

func newOverridesAddCmd(load appLoader) *cobra.Command {
	var (
		host      string
		port      int
		bits      string
		temporary bool
	)
	cmd := &cobra.Command{
		Use:   "add --host HOST [--port PORT] --bits BITS [--temporary] CERT_FILE",
		Short: "Remember an override for a certificate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := domain.ParseOverrideBits(bits)
			if err != nil {
				return err
			}
			return withApp(load, func(app *Application) error {
				cert, err := app.readCertificate(args[0])
				if err != nil {
					return err
				}
				host := utils.CanonicalHost(host)
				if err := app.service.RememberValidityOverride(host, port, cert, b, temporary); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s bits=%s temporary=%t\n", utils.HostPort(host, port), b, temporary)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "host name")
	cmd.Flags().IntVar(&port, "port", -1, "port (-1 means 443)")
	cmd.Flags().StringVar(&bits, "bits", "", "waived categories, e.g. untrusted|mismatch|time or a decimal mask")
	cmd.Flags().BoolVar(&temporary, "temporary", false, "keep the override for this process only")
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("bits")
	return cmd
}

func newOverridesClearCmd(load appLoader) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "clear --host HOST [--port PORT]",
		Short: "Remove the override for host:port",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(app *Application) error {
				host := utils.CanonicalHost(host)
				if err := app.service.ClearValidityOverride(host, port); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", utils.HostPort(host, port))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "host name")
	cmd.Flags().IntVar(&port, "port", -1, "port (-1 means 443)")
	_ = cmd.MarkFlagRequired("host")
	return cmd
}

func newOverridesGetCmd(load appLoader) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "get --host HOST [--port PORT]",
		Short: "Show the override stored for host:port",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(app *Application) error {
				host := utils.CanonicalHost(host)
				o, ok, err := app.service.GetValidityOverride(host, port)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no override for %s", utils.HostPort(host, port))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s bits=%s temporary=%t fingerprint=%s\n",
					o.Key(), o.Bits, o.Temporary, o.Fingerprint)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "host name")
	cmd.Flags().IntVar(&port, "port", -1, "port (-1 means 443)")
	_ = cmd.MarkFlagRequired("host")
	return cmd
}

func newOverridesUsedCmd(load appLoader) *cobra.Command {
	var temporaries, permanents bool
	cmd := &cobra.Command{
		Use:   "used CERT_FILE",
		Short: "Count overrides made for a certificate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(app *Application) error {
				cert, err := app.readCertificate(args[0])
				if err != nil {
					return err
				}
				n, err := app.service.IsCertUsedForOverrides(cert, temporaries, permanents)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&temporaries, "temporaries", true, "count temporary overrides")
	cmd.Flags().BoolVar(&permanents, "permanents", true, "count permanent overrides")
	return cmd
}

func newOverridesStatsCmd(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show override repository counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(load, func(app *Application) error {
				st := app.repo.RepoStats()
				_, err := fmt.Fprintf(cmd.OutOrStdout(),
					"overrides=%d temporary=%d version=%d cache_hits=%d cache_misses=%d evictions=%d filter_skips=%d\n",
					st.Store.Overrides, st.Temporary, st.Store.Version,
					st.CacheHits, st.CacheMisses, st.Evictions, st.FilterSkips)
				return err
			})
		},
	}
}

// readCertificate decodes a PEM, DER or PKCS#7 file into a certificate
// bound to the application's verifier.
func (app *Application) readCertificate(path string) (domain.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}
	chain, err := verifier.DecodeChain(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode certificate: %w", err)
	}
	return app.verifier.Certificate(chain)
}

// decide asks the service about cert and prints one line.
func (app *Application) decide(w io.Writer, host string, port int, cert domain.Certificate) error {
	host = utils.CanonicalHost(host)
	dec, temporary, err := app.service.HasMatchingOverride(host, port, cert)
	if err != nil {
		return err
	}
	if !dec.Accept {
		_, err = fmt.Fprintf(w, "reject %s\n", utils.HostPort(host, port))
		return err
	}
	_, err = fmt.Fprintf(w, "accept %s bits=%s temporary=%t\n", utils.HostPort(host, port), dec.Bits, temporary)
	return err
}
