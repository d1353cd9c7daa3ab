package transcription

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"sync"
)

// Whisper runs the bundled transcribe script (a thin wrapper around OpenAI
// Whisper) as a subprocess. The script emits newline-delimited JSON on stdout:
// {"progress": N} lines while segments are decoded, then a final
// {"text": "..."} object; {"error": "..."} on failure.
type Whisper struct {
	python string
	script string
	model  string
	mu     sync.Mutex // one transcription at a time; the model is memory-hungry
}

func NewWhisper(python, script, model string) *Whisper {
	if python == "" {
		python = "python"
	}
	if model == "" {
		model = "base"
	}
	log.Printf("Whisper transcriber ready (model: %s, script: %s)", model, script)
	return &Whisper{
		python: python,
		script: script,
		model:  model,
	}
}

type scriptLine struct {
	Progress *int    `json:"progress"`
	Text     *string `json:"text"`
	Error    string  `json:"error"`
}

// Transcribe processes an audio file and returns the transcript text.
func (w *Whisper) Transcribe(audioPath string, onProgress func(int)) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	log.Printf("Transcribing: %s", audioPath)

	cmd := exec.Command(w.python, w.script, audioPath, "--model", w.model)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("whisper pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("whisper start: %v", err)
	}

	text, scriptErr, scanErr := scanScriptOutput(stdout, onProgress)
	if scanErr != nil {
		// The child may be blocked writing into the full pipe; kill it
		// so Wait cannot hang.
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return "", fmt.Errorf("whisper output: %v", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		msg := scriptErr
		if msg == "" {
			msg = strings.TrimSpace(stderr.String())
		}
		if msg == "" {
			msg = err.Error()
		}
		return "", errors.New(msg)
	}

	if text == nil || strings.TrimSpace(*text) == "" {
		return "", errors.New("no transcript generated")
	}

	log.Printf("Transcription completed (%d chars)", len(*text))
	return strings.TrimSpace(*text), nil
}

// scanScriptOutput consumes the script's newline-delimited JSON protocol. It
// returns the final transcript and error lines, plus any scan failure (reader
// error or an over-long line) so the caller can tear the process down.
func scanScriptOutput(r io.Reader, onProgress func(int)) (text *string, scriptErr string, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var line scriptLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue // not a protocol line, ignore
		}
		switch {
		case line.Error != "":
			scriptErr = line.Error
		case line.Text != nil:
			text = line.Text
		case line.Progress != nil:
			if onProgress != nil {
				onProgress(*line.Progress)
			}
		}
	}
	return text, scriptErr, scanner.Err()
}
