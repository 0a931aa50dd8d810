package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/access"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/profile/memstore"
	"github.com/MrEthical07/goSession/provider/providertest"
)

// simulateConfig holds flags for the simulate command.
type simulateConfig struct {
	email    string
	password string
	notices  bool
	timeout  time.Duration
}

func newSimulateCmd(g *globalFlags) *cobra.Command {
	cfg := &simulateConfig{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scripted session walkthrough against the in-memory provider",
		Long: `Run sign-up, code verification, profile update, access checks, sign-out,
failed sign-ins, one-time-code cooldown and a security report against an
in-memory identity provider and profile store, printing each result.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engineCfg, err := g.config()
			if err != nil {
				return err
			}
			logger := logging.Discard()
			if g.logLevel == "debug" {
				logger = g.logger(cmd.ErrOrStderr())
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
			defer cancel()
			return runSimulate(ctx, cmd.OutOrStdout(), engineCfg, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&cfg.email, "email", "grace@example.com", "account email")
	cmd.Flags().StringVar(&cfg.password, "password", "Compiler1952", "account password")
	cmd.Flags().BoolVar(&cfg.notices, "notices", false, "print notices as JSON lines")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 30*time.Second, "overall deadline")

	return cmd
}

func runSimulate(ctx context.Context, out io.Writer, engineCfg goSession.Config, cfg *simulateConfig, logger *slog.Logger) error {
	fake := providertest.New()
	store := memstore.New()

	notifier := goSession.NewLogNotifier(logger)
	if cfg.notices {
		notifier = goSession.NewJSONNotifier(out)
	}

	engine, err := goSession.New().
		WithConfig(engineCfg).
		WithProvider(fake).
		WithProfileStore(store).
		WithLogger(logger).
		WithNotifier(notifier).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.WaitReady(ctx); err != nil {
		return fmt.Errorf("engine not ready: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tOPERATION\tOK\tDETAIL")
	step := 0
	report := func(res goSession.Result) {
		step++
		fmt.Fprintf(tw, "%d\t%s\t%t\t%s\n", step, res.Operation, res.Success, describe(res))
	}
	check := func(label string, d access.Decision) {
		step++
		fmt.Fprintf(tw, "%d\t%s\t%t\t%s %s\n", step, label, d.Outcome == access.Allow, d.Outcome, d.Location)
	}

	report(engine.SignUp(ctx, cfg.email, cfg.password, goSession.SignUpMetadata{
		FullName:     "Grace Hopper",
		BusinessName: "Cobol Co",
		Industry:     "software",
	}))
	report(engine.VerifyOTP(ctx, cfg.email, providertest.DefaultOTPCode, goSession.PurposeSignup))

	bio := "Rear admiral, <b>compiler</b> pioneer"
	report(engine.UpdateProfile(ctx, profile.Patch{Bio: &bio}))

	check("authorize /dashboard", engine.Authorize("/dashboard", access.Requirement{Feature: "dashboard"}))
	check("authorize /analytics", engine.Authorize("/analytics", access.Requirement{Feature: "analytics"}))
	check("authorize /admin", engine.Authorize("/admin", access.Requirement{Role: "admin"}))

	report(engine.SignOut(ctx))
	check("authorize /dashboard", engine.Authorize("/dashboard", access.Requirement{}))

	for range 4 {
		report(engine.SignIn(ctx, cfg.email, "Wrong"+cfg.password))
	}
	report(engine.SignIn(ctx, cfg.email, cfg.password))
	report(engine.SignOut(ctx))

	report(engine.SignInWithOTP(ctx, cfg.email))
	report(engine.ResendOTP(ctx, cfg.email))
	report(engine.VerifyOTP(ctx, cfg.email, providertest.DefaultOTPCode, goSession.PurposeEmail))

	if err := tw.Flush(); err != nil {
		return err
	}

	sec := engine.SecurityReport()
	fmt.Fprintf(out, "\nsecurity score %d, %d attempts, %d failures, suspicious=%t\n",
		sec.Score, sec.Attempts, sec.Failures, sec.Suspicious)
	for _, a := range sec.Alerts {
		fmt.Fprintf(out, "  alert: %s\n", a.Message)
	}

	snap := engine.MetricsSnapshot()
	fmt.Fprintf(out, "sign-ins ok=%d failed=%d rate-limited=%d suspicious=%d\n",
		snap.Counters[goSession.MetricSignInSuccess],
		snap.Counters[goSession.MetricSignInFailure],
		snap.Counters[goSession.MetricRateLimited],
		snap.Counters[goSession.MetricSuspiciousActivity])
	return nil
}

func describe(res goSession.Result) string {
	var parts []string
	switch {
	case !res.Success:
		parts = append(parts, res.Error)
	case res.Profile != nil:
		parts = append(parts, fmt.Sprintf("%s (%s/%s)", res.Profile.Email, res.Profile.Role, res.Profile.SubscriptionTier))
	case res.Identity != nil:
		parts = append(parts, res.Identity.Email)
	}
	if res.VerificationRequired {
		parts = append(parts, "verification required")
	}
	if res.RetryAfter > 0 {
		parts = append(parts, "retry after "+res.RetryAfter.Round(time.Second).String())
	}
	if res.Suspicious {
		parts = append(parts, "suspicious")
	}
	if res.Partial != nil {
		parts = append(parts, "partial: "+res.Partial.Error())
	}
	return strings.Join(parts, "; ")
}
