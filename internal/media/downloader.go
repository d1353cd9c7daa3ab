package media

import (
	"bufio"
	"bytes"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Downloader extracts the audio track of a media URL into a job's working
// directory using yt-dlp.
type Downloader struct {
	binary string
}

func NewDownloader(binary string) *Downloader {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Downloader{binary: binary}
}

// Download runs yt-dlp and reports its per-line download percentage through
// onProgress. Returns the path of the extracted wav file.
func (d *Downloader) Download(jobDir, sourceURL string, onProgress func(int)) (string, error) {
	audioPath := filepath.Join(jobDir, "audio.wav")
	args := []string{
		"-f", "bestaudio",
		"--extract-audio",
		"--audio-format", "wav",
		"--no-playlist",
		"--newline",
		"-o", audioPath,
		sourceURL,
	}

	log.Printf("Downloading audio: %s -> %s", sourceURL, audioPath)

	cmd := exec.Command(d.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("yt-dlp pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("yt-dlp start: %v", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if percent, ok := parseDownloadPercent(scanner.Text()); ok && onProgress != nil {
			onProgress(percent)
		}
	}

	if err := cmd.Wait(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("yt-dlp failed: %s", msg)
	}

	log.Printf("Download complete: %s", audioPath)
	return audioPath, nil
}

// yt-dlp with --newline prints lines like "[download]  42.3% of 10.00MiB ...".
var downloadPercentRe = regexp.MustCompile(`\[download\]\s+(\d+(?:\.\d+)?)%`)

func parseDownloadPercent(line string) (int, bool) {
	m := downloadPercentRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}
