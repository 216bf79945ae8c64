package fetcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ChallengeKind identifies the anti-bot wall a page is showing.
type ChallengeKind string

const (
	ChallengeDataDome     ChallengeKind = "datadome"
	ChallengeAccessDenied ChallengeKind = "access_denied"
	ChallengeReCaptcha    ChallengeKind = "recaptcha"
	ChallengeHCaptcha     ChallengeKind = "hcaptcha"
	ChallengeTurnstile    ChallengeKind = "turnstile"
)

// DetectChallenge checks page markup for anti-bot challenge indicators.
// Result pages load the DataDome tag script too, so a bare "datadome"
// mention only counts on a page without any ad card.
func DetectChallenge(html string) (ChallengeKind, bool) {
	htmlLower := strings.ToLower(html)
	hasCards := strings.Contains(htmlLower, "adcard_")

	switch {
	case strings.Contains(htmlLower, "captcha-delivery.com"):
		return ChallengeDataDome, true
	case !hasCards && strings.Contains(htmlLower, "datadome"):
		return ChallengeDataDome, true
	case strings.Contains(htmlLower, "access denied"), strings.Contains(htmlLower, "accès refusé"):
		return ChallengeAccessDenied, true
	case strings.Contains(htmlLower, "g-recaptcha"):
		return ChallengeReCaptcha, true
	case strings.Contains(htmlLower, "h-captcha"):
		return ChallengeHCaptcha, true
	case strings.Contains(htmlLower, "cf-turnstile"):
		return ChallengeTurnstile, true
	}
	return "", false
}

// ConsoleOperator asks the person at the terminal to solve the challenge
// in the browser window and waits for Enter. There is no timeout.
type ConsoleOperator struct {
	in     *bufio.Reader
	out    io.Writer
	logger *slog.Logger
}

// NewConsoleOperator creates an Operator reading from in and prompting
// on out. A *bufio.Reader is used as is, so it can be shared with other
// prompts.
func NewConsoleOperator(in io.Reader, out io.Writer, logger *slog.Logger) *ConsoleOperator {
	return &ConsoleOperator{
		in:     bufio.NewReader(in),
		out:    out,
		logger: logger.With("component", "operator"),
	}
}

// AwaitIntervention implements Operator.
func (o *ConsoleOperator) AwaitIntervention(ctx context.Context, pageURL string, kind ChallengeKind) error {
	o.logger.Warn("anti-bot challenge detected, waiting for operator", "url", pageURL, "kind", kind)
	fmt.Fprintf(o.out, "\nAnti-bot challenge (%s) on %s\n", kind, pageURL)
	fmt.Fprint(o.out, "Solve it in the browser window, then press Enter to continue... ")

	done := make(chan error, 1)
	go func() {
		_, err := o.in.ReadString('\n')
		if err == io.EOF {
			err = nil
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("read operator input: %w", err)
		}
		o.logger.Info("operator resumed", "url", pageURL)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
