package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/PoyBoy96/Whisper-Watch/internal/domain"
)

const defaultOpenAIModel = openai.Whisper1

// transcriptionClient isolates the OpenAI audio API for testability.
type transcriptionClient interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// OpenAIEngine is a remote Engine backed by the OpenAI audio API.
// It needs no local model files; PrepareModel only validates credentials.
type OpenAIEngine struct {
	client transcriptionClient
	model  string
	hasKey bool
	stat   func(name string) (os.FileInfo, error)
}

// NewOpenAIEngine builds the remote engine from an API key.
func NewOpenAIEngine(apiKey, model string) *OpenAIEngine {
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}

	return &OpenAIEngine{
		client: openai.NewClient(apiKey),
		model:  model,
		hasKey: strings.TrimSpace(apiKey) != "",
		stat:   os.Stat,
	}
}

// PrepareModel validates that API credentials are configured.
func (e *OpenAIEngine) PrepareModel(ctx context.Context, opts Options, onProgress func(LoadProgress)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !e.hasKey {
		return &PipelineError{
			Stage:   StageLoading,
			Message: "OpenAI API key is not configured (set OPENAI_API_KEY)",
		}
	}

	emitProgress(onProgress, LoadProgress{Fraction: 1, Detail: "Remote model ready: " + e.model})
	return nil
}

// Transcribe uploads the media file and emits the returned segments.
// The API responds in one shot, so the whole response is one checkpoint.
func (e *OpenAIEngine) Transcribe(ctx context.Context, sourcePath string, opts Options, onSegment func(domain.Segment) error) error {
	if _, err := e.stat(sourcePath); err != nil {
		return &PipelineError{
			Stage:   StageDecode,
			Message: fmt.Sprintf("cannot access input media: %s", sourcePath),
			Err:     err,
		}
	}

	req := openai.AudioRequest{
		Model:    e.model,
		FilePath: sourcePath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: normalizeLanguage(opts.Language),
	}

	resp, err := e.client.CreateTranscription(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &PipelineError{
			Stage:   StageTranscribe,
			Message: "OpenAI transcription request failed",
			Err:     err,
		}
	}

	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		segment := domain.Segment{
			Start: time.Duration(seg.Start * float64(time.Second)),
			End:   time.Duration(seg.End * float64(time.Second)),
			Text:  text,
		}
		if err := onSegment(segment); err != nil {
			return err
		}
	}

	return nil
}

// NewOpenAIEngineForTests builds the engine with an injected client.
func NewOpenAIEngineForTests(client transcriptionClient, model string, stat func(string) (os.FileInfo, error)) *OpenAIEngine {
	return &OpenAIEngine{
		client: client,
		model:  model,
		hasKey: true,
		stat:   stat,
	}
}
