package transcribe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PoyBoy96/Whisper-Watch/internal/domain"
)

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
// Stream invokes onLine for each stdout line as it arrives; a non-nil
// error from onLine terminates the process and is returned unchanged.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
	Stream(ctx context.Context, onLine func(string) error, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode(err),
	}
	if err != nil {
		return result, err
	}

	return result, nil
}

// Stream executes one command and forwards stdout lines incrementally.
func (r *execRunner) Stream(ctx context.Context, onLine func(string) error, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return commandResult{ExitCode: -1}, err
	}
	if err := cmd.Start(); err != nil {
		return commandResult{ExitCode: -1, Stderr: stderr.String()}, err
	}

	var lineErr error
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if lineErr = onLine(scanner.Text()); lineErr != nil {
			_ = cmd.Process.Kill()
			break
		}
	}

	waitErr := cmd.Wait()
	result := commandResult{
		Stderr:   stderr.String(),
		ExitCode: exitCode(waitErr),
	}
	if lineErr != nil {
		return result, lineErr
	}
	if waitErr != nil {
		return result, waitErr
	}
	return result, nil
}

// exitCode extracts the process exit code, -1 when unavailable.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Pipeline is the local Engine backed by ffmpeg preprocessing and a
// whisper.cpp binary whose timestamped stdout is parsed incrementally.
type Pipeline struct {
	ffmpegPath  string
	whisperPath string
	runner      commandRunner
	lookPath    func(string) (string, error)
	mkdirTemp   func(dir, pattern string) (string, error)
	removeAll   func(path string) error
	stat        func(name string) (os.FileInfo, error)
	readDir     func(name string) ([]os.DirEntry, error)
}

// NewPipeline constructs the production pipeline with OS dependencies.
func NewPipeline() *Pipeline {
	return &Pipeline{
		ffmpegPath:  "ffmpeg",
		whisperPath: "whisper-cli",
		runner:      &execRunner{},
		lookPath:    exec.LookPath,
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		stat:        os.Stat,
		readDir:     os.ReadDir,
	}
}

// PrepareModel verifies required tools and resolves the model file.
func (p *Pipeline) PrepareModel(ctx context.Context, opts Options, onProgress func(LoadProgress)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	emitProgress(onProgress, LoadProgress{Fraction: 0, Detail: "Checking external tools"})
	for _, tool := range []string{p.ffmpegPath, p.whisperPath} {
		if _, err := p.lookPath(tool); err != nil {
			return &PipelineError{
				Stage:   StageLoading,
				Message: fmt.Sprintf("required tool not found in PATH: %s", tool),
				Err:     err,
			}
		}
	}

	emitProgress(onProgress, LoadProgress{Fraction: 0.5, Detail: "Resolving whisper model"})
	modelPath, err := p.resolveModelPath(opts.ModelPath)
	if err != nil {
		return &PipelineError{
			Stage:   StageLoading,
			Message: err.Error(),
			Err:     err,
		}
	}

	emitProgress(onProgress, LoadProgress{Fraction: 1, Detail: "Model ready: " + modelPath})
	return nil
}

// Transcribe converts the source to mono 16k WAV and streams whisper.cpp
// output as segments until exhaustion, error, or cancellation.
func (p *Pipeline) Transcribe(ctx context.Context, sourcePath string, opts Options, onSegment func(domain.Segment) error) error {
	if strings.TrimSpace(sourcePath) == "" {
		return &PipelineError{
			Stage:   StageDecode,
			Message: "input media path is required",
		}
	}
	if _, err := p.stat(sourcePath); err != nil {
		return &PipelineError{
			Stage:   StageDecode,
			Message: fmt.Sprintf("cannot access input media: %s", sourcePath),
			Err:     err,
		}
	}

	modelPath, err := p.resolveModelPath(opts.ModelPath)
	if err != nil {
		return &PipelineError{
			Stage:   StageLoading,
			Message: err.Error(),
			Err:     err,
		}
	}

	tempDir, err := p.mkdirTemp("", "whisper-watch-*")
	if err != nil {
		return &PipelineError{
			Stage:   StageDecode,
			Message: "failed to create temporary workspace",
			Err:     err,
		}
	}
	defer func() { _ = p.removeAll(tempDir) }()

	wavPath := filepath.Join(tempDir, "preprocessed-16k-mono.wav")
	args := buildFFmpegArgs(sourcePath, wavPath)
	cmdResult, runErr := p.runner.Run(ctx, p.ffmpegPath, args...)
	if runErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &PipelineError{
			Stage:   StageDecode,
			Message: "ffmpeg audio conversion failed",
			CommandLog: CommandLog{
				Command:  p.ffmpegPath,
				Args:     args,
				ExitCode: cmdResult.ExitCode,
				Stdout:   cmdResult.Stdout,
				Stderr:   cmdResult.Stderr,
			},
			Err: runErr,
		}
	}
	if _, err := p.stat(wavPath); err != nil {
		return &PipelineError{
			Stage:   StageDecode,
			Message: "ffmpeg completed but output file is missing",
			Err:     err,
		}
	}

	whisperArgs := buildWhisperArgs(modelPath, wavPath, opts.Language)
	streamResult, streamErr := p.runner.Stream(ctx, func(line string) error {
		seg, ok := parseTimedLine(line)
		if !ok {
			return nil
		}
		return onSegment(seg)
	}, p.whisperPath, whisperArgs...)
	if streamErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(streamErr, context.Canceled) {
			return streamErr
		}
		return &PipelineError{
			Stage:   StageTranscribe,
			Message: "whisper.cpp transcription failed",
			CommandLog: CommandLog{
				Command:  p.whisperPath,
				Args:     whisperArgs,
				ExitCode: streamResult.ExitCode,
				Stderr:   streamResult.Stderr,
			},
			Err: streamErr,
		}
	}

	return nil
}

// resolveModelPath returns model file path from file or directory input.
func (p *Pipeline) resolveModelPath(rawPath string) (string, error) {
	modelPath := strings.TrimSpace(rawPath)
	if modelPath == "" {
		return "", fmt.Errorf("model path is required")
	}

	info, err := p.stat(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot access model path: %s", modelPath)
	}
	if !info.IsDir() {
		return modelPath, nil
	}

	entries, err := p.readDir(modelPath)
	if err != nil {
		return "", fmt.Errorf("cannot read model directory: %s", modelPath)
	}

	modelNames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			modelNames = append(modelNames, entry.Name())
		}
	}
	if len(modelNames) == 0 {
		return "", fmt.Errorf("no .bin or .gguf model files found in: %s", modelPath)
	}

	sort.Strings(modelNames)
	return filepath.Join(modelPath, modelNames[0]), nil
}

// normalizeLanguage maps "auto" and empty language to no CLI override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

// buildFFmpegArgs builds preprocessing CLI args for mono 16k PCM WAV output.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// buildWhisperArgs builds whisper.cpp args for timestamped stdout output.
func buildWhisperArgs(modelPath, audioPath, language string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"--no-prints",
	}

	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}

	return args
}

// NewPipelineForTests constructs a pipeline with injectable dependencies.
func NewPipelineForTests(
	ffmpegPath string,
	whisperPath string,
	runner commandRunner,
	lookPath func(string) (string, error),
	mkdirTemp func(dir, pattern string) (string, error),
	removeAll func(path string) error,
	stat func(name string) (os.FileInfo, error),
) *Pipeline {
	return &Pipeline{
		ffmpegPath:  ffmpegPath,
		whisperPath: whisperPath,
		runner:      runner,
		lookPath:    lookPath,
		mkdirTemp:   mkdirTemp,
		removeAll:   removeAll,
		stat:        stat,
		readDir:     os.ReadDir,
	}
}
