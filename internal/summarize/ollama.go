package summarize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const maxChunkChars = 3000

// Client summarizes transcripts with a local Ollama instance. Long
// transcripts are split into sentence-aligned chunks and summarized chunk by
// chunk, with progress reported after each one.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
}

func NewClient(baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "gemma3:270m"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// Summarize condenses the transcript and returns the combined summary.
func (c *Client) Summarize(transcript string, onProgress func(int)) (string, error) {
	chunks := chunkText(transcript, maxChunkChars)
	if len(chunks) == 0 {
		return "", errors.New("nothing to summarize")
	}

	log.Printf("Summarizing %d chunk(s) with %s", len(chunks), c.model)

	summaries := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		summary, err := c.generate(chunk)
		if err != nil {
			return "", err
		}
		summaries = append(summaries, summary)
		if onProgress != nil {
			onProgress((i + 1) * 100 / len(chunks))
		}
	}

	return strings.Join(summaries, "\n\n"), nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

func (c *Client) generate(chunk string) (string, error) {
	prompt := "Summarize the following transcript clearly and concisely:\n\n" + chunk

	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal request: %v", err)
	}

	resp, err := c.http.Post(c.baseURL+"/api/generate", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama request: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama response: %v", err)
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("ollama response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return "", fmt.Errorf("ollama: %s", out.Error)
		}
		return "", fmt.Errorf("ollama: unexpected status %d", resp.StatusCode)
	}

	return strings.TrimSpace(out.Response), nil
}

// chunkText splits text into chunks of at most maxChars, keeping sentences
// together where possible. A single oversized sentence is hard-split.
func chunkText(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	var current strings.Builder

	for _, sentence := range splitSentences(text) {
		if current.Len()+len(sentence) > maxChars {
			if current.Len() > 0 {
				chunks = append(chunks, strings.TrimSpace(current.String()))
				current.Reset()
			}
			if len(sentence) > maxChars {
				for i := 0; i < len(sentence); {
					end := i + maxChars
					if end >= len(sentence) {
						end = len(sentence)
					} else {
						// Back off to a rune boundary so the cut
						// never produces invalid UTF-8.
						for end > i && !utf8.RuneStart(sentence[end]) {
							end--
						}
						if end == i {
							end = i + maxChars
						}
					}
					chunks = append(chunks, strings.TrimSpace(sentence[i:end]))
					i = end
				}
				continue
			}
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

// splitSentences cuts text after ., ! or ?, keeping the terminator with the
// sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			sentences = append(sentences, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}
