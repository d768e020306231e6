// Package classify decides whether an organization is an insurance company
// by asking an LLM about its website content.
package classify

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/meridian-group/orgclassify/internal/resilience"
	"github.com/meridian-group/orgclassify/pkg/anthropic"
)

// ClassifyError wraps a classification failure after retries; Answer holds
// the last raw model reply when the failure was an unparseable verdict.
type ClassifyError struct {
	Organization string
	Answer       string
	Err          error
}

func (e *ClassifyError) Error() string {
	if e.Answer != "" {
		return fmt.Sprintf("classify %q: unparseable answer %q", e.Organization, e.Answer)
	}
	return fmt.Sprintf("classify %q: %v", e.Organization, e.Err)
}

func (e *ClassifyError) Unwrap() error { return e.Err }

// Config controls classifier behavior.
type Config struct {
	Model           string
	MaxTokens       int64
	Temperature     float64
	MinContentRunes int
	RateInterval    time.Duration
	Retry           resilience.RetryConfig
}

// Classifier is the LLM-backed sector classifier. All API traffic flows
// through one rate limiter regardless of worker count.
type Classifier struct {
	client  anthropic.Client
	cfg     Config
	limiter *rate.Limiter
}

// New creates a Classifier.
func New(client anthropic.Client, cfg Config) *Classifier {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 10
	}
	if cfg.MinContentRunes <= 0 {
		cfg.MinContentRunes = 20
	}
	if cfg.RateInterval <= 0 {
		cfg.RateInterval = time.Second
	}
	return &Classifier{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.RateInterval), 1),
	}
}

// IsInsurance classifies an organization from its content excerpt. An
// ambiguous first answer gets exactly one strict re-ask; a second ambiguous
// answer is a ClassifyError.
func (c *Classifier) IsInsurance(ctx context.Context, orgName, excerpt string) (bool, error) {
	if utf8.RuneCountInString(excerpt) < c.cfg.MinContentRunes {
		return false, &ClassifyError{
			Organization: orgName,
			Err: eris.Errorf("excerpt too short to classify (%d runes)",
				utf8.RuneCountInString(excerpt)),
		}
	}

	messages := []anthropic.Message{
		{Role: "user", Content: buildPrompt(orgName, excerpt)},
	}

	raw, err := c.ask(ctx, messages)
	if err != nil {
		return false, &ClassifyError{Organization: orgName, Err: err}
	}

	verdict := ParseAnswer(raw)
	if verdict == nil {
		zap.L().Warn("classify: ambiguous answer, re-asking",
			zap.String("organization", orgName),
			zap.String("answer", raw),
		)
		messages = append(messages,
			anthropic.Message{Role: "assistant", Content: raw},
			anthropic.Message{Role: "user", Content: strictReask},
		)
		raw, err = c.ask(ctx, messages)
		if err != nil {
			return false, &ClassifyError{Organization: orgName, Err: err}
		}
		verdict = ParseAnswer(raw)
	}

	if verdict == nil {
		return false, &ClassifyError{Organization: orgName, Answer: raw}
	}

	if KeywordHit(excerpt) != *verdict {
		zap.L().Debug("classify: verdict disagrees with keyword signal",
			zap.String("organization", orgName),
			zap.Bool("verdict", *verdict),
		)
	}

	return *verdict, nil
}

// ask sends one message exchange through the rate limiter and retry loop.
func (c *Classifier) ask(ctx context.Context, messages []anthropic.Message) (string, error) {
	temp := c.cfg.Temperature
	req := anthropic.MessageRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		System:      systemPrompt,
		Messages:    messages,
		Temperature: &temp,
	}

	retryCfg := c.cfg.Retry
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "create_message")

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return "", err
	}

	resp.Usage.LogCost(c.cfg.Model, "classify")
	return resp.Text(), nil
}
