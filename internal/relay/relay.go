// Package relay drives the two-stage image-to-prompt pipeline: an analysis
// chat describes the uploaded image, then a style chat turns that description
// into a generation prompt. Both stages stream, and every delta is forwarded
// to the caller as it arrives.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"formu/internal/domain"
	"formu/internal/infra"
	"formu/internal/providers/coze"
)

// Stage labels which half of the pipeline a delta belongs to.
type Stage string

const (
	StageAnalysis Stage = "analysis"
	StagePrompt   Stage = "prompt"
)

// Event is one streamed text fragment.
type Event struct {
	Stage Stage
	Delta string
}

// ChatStream is the finite delta sequence produced by one chat call.
type ChatStream interface {
	Recv() (coze.Delta, error)
	Close() error
}

// Chatter is the chat capability the relay needs. *coze.Client satisfies it
// through NewChatter.
type Chatter interface {
	UploadFile(ctx context.Context, data []byte, filename string) (string, error)
	Stream(ctx context.Context, botID string, parts []coze.MessagePart) (ChatStream, error)
}

type cozeChatter struct {
	client *coze.Client
}

func (c cozeChatter) UploadFile(ctx context.Context, data []byte, filename string) (string, error) {
	return c.client.UploadFile(ctx, data, filename)
}

func (c cozeChatter) Stream(ctx context.Context, botID string, parts []coze.MessagePart) (ChatStream, error) {
	return c.client.Stream(ctx, botID, parts)
}

// NewChatter adapts a coze client to the Chatter interface.
func NewChatter(client *coze.Client) Chatter {
	return cozeChatter{client: client}
}

// Bots maps pipeline roles to chat bot ids. Styles is keyed by style name.
type Bots struct {
	Analysis string
	Styles   map[string]string
}

// Input is one relay request. Exactly one of ImageData and ImageURL supplies
// the source image.
type Input struct {
	ImageData []byte
	Filename  string
	ImageURL  string
	Style     domain.Style
}

// Outcome carries the fully accumulated text of both stages.
type Outcome struct {
	Analysis string
	Prompt   string
}

// Relay orchestrates the two chat stages over one Chatter.
type Relay struct {
	chatter Chatter
	bots    Bots
	logger  *infra.Logger
}

// New builds a relay. A nil logger discards.
func New(chatter Chatter, bots Bots, logger *infra.Logger) *Relay {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Relay{chatter: chatter, bots: bots, logger: logger}
}

// Run executes both stages, calling emit for every delta in arrival order.
// All analysis events precede all prompt events. Validation happens before
// any provider call: an unknown style or missing bot never costs an upload.
// If emit returns an error the pipeline stops and that error is returned.
func (r *Relay) Run(ctx context.Context, in Input, emit func(Event) error) (Outcome, error) {
	styleBot, err := r.resolveBots(in.Style)
	if err != nil {
		return Outcome{}, err
	}
	imagePart, err := r.sourcePart(ctx, in)
	if err != nil {
		return Outcome{}, err
	}

	analysis, err := r.runStage(ctx, StageAnalysis, r.bots.Analysis, []coze.MessagePart{imagePart}, emit)
	if err != nil {
		return Outcome{}, err
	}
	// Empty analysis text still feeds stage 2; what to do with an empty
	// description is the prompt bot's call.
	r.logger.Debug().Int("analysis_len", len(analysis)).Str("style", string(in.Style)).Msg("analysis stage complete")

	prompt, err := r.runStage(ctx, StagePrompt, styleBot, []coze.MessagePart{coze.TextPart(analysis)}, emit)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Analysis: analysis, Prompt: prompt}, nil
}

func (r *Relay) resolveBots(style domain.Style) (string, error) {
	if _, err := domain.ParseStyle(string(style)); err != nil {
		return "", err
	}
	if r.bots.Analysis == "" {
		return "", errors.New("relay: analysis bot is not configured")
	}
	styleBot := r.bots.Styles[string(style)]
	if styleBot == "" {
		return "", fmt.Errorf("relay: no bot configured for style %q: %w", style, domain.ErrInvalidStyle)
	}
	return styleBot, nil
}

func (r *Relay) sourcePart(ctx context.Context, in Input) (coze.MessagePart, error) {
	switch {
	case len(in.ImageData) > 0:
		fileID, err := r.chatter.UploadFile(ctx, in.ImageData, in.Filename)
		if err != nil {
			return coze.MessagePart{}, fmt.Errorf("relay: upload image: %w", err)
		}
		return coze.ImageFilePart(fileID), nil
	case strings.TrimSpace(in.ImageURL) != "":
		return coze.ImageURLPart(strings.TrimSpace(in.ImageURL)), nil
	default:
		return coze.MessagePart{}, errors.New("relay: no image source provided")
	}
}

func (r *Relay) runStage(ctx context.Context, stage Stage, botID string, parts []coze.MessagePart, emit func(Event) error) (string, error) {
	stream, err := r.chatter.Stream(ctx, botID, parts)
	if err != nil {
		return "", fmt.Errorf("relay: open %s stream: %w", stage, err)
	}
	defer stream.Close()

	var acc strings.Builder
	for {
		delta, err := stream.Recv()
		if err == io.EOF {
			return acc.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("relay: %s stream: %w", stage, err)
		}
		if delta.Type == coze.DeltaCompleted {
			return acc.String(), nil
		}
		if delta.Content == "" {
			continue
		}
		acc.WriteString(delta.Content)
		if err := emit(Event{Stage: stage, Delta: delta.Content}); err != nil {
			return "", err
		}
	}
}
