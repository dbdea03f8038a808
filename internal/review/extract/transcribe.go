package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AICC2024/video-review/internal/platform/gcp"
	"github.com/AICC2024/video-review/internal/platform/localmedia"
)

// ErrTranscriptUnavailable means a transcriber cannot handle this input.
var ErrTranscriptUnavailable = errors.New("transcript unavailable")

// TranscriptInput describes a materialized video.
type TranscriptInput struct {
	LocalPath string
	// GCSURI is set when the source lives in the bucket.
	GCSURI  string
	WorkDir string
}

// Transcriber returns the narration of a video, with timed segments when
// the provider reports them.
type Transcriber interface {
	Transcribe(ctx context.Context, in TranscriptInput) (*gcp.Transcript, error)
}

// SpeechTranscriber extracts the audio track and runs it through Cloud Speech.
type SpeechTranscriber struct {
	Tools    localmedia.Tools
	Speech   gcp.Speech
	Language string
}

func (t *SpeechTranscriber) Transcribe(ctx context.Context, in TranscriptInput) (*gcp.Transcript, error) {
	if t == nil || t.Speech == nil || t.Tools == nil || in.LocalPath == "" {
		return nil, ErrTranscriptUnavailable
	}
	dir := in.WorkDir
	if dir == "" {
		dir = filepath.Dir(in.LocalPath)
	}
	audioPath := filepath.Join(dir, "narration.flac")
	if _, err := t.Tools.ExtractAudioFromVideo(ctx, in.LocalPath, audioPath, localmedia.AudioExtractOptions{
		SampleRateHz: 16000,
		Channels:     1,
		Format:       "flac",
	}); err != nil {
		return nil, fmt.Errorf("extract audio: %w", err)
	}
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, err
	}
	return t.Speech.TranscribeAudioBytes(ctx, audio, "audio/flac", gcp.SpeechConfig{
		LanguageCode:               languageOr(t.Language),
		EnableAutomaticPunctuation: true,
		SampleRateHertz:            16000,
		AudioChannelCount:          1,
	})
}

// VideoTranscriber uses Video Intelligence speech transcription; it only
// handles sources already stored in GCS.
type VideoTranscriber struct {
	Video    gcp.Video
	Language string
}

func (t *VideoTranscriber) Transcribe(ctx context.Context, in TranscriptInput) (*gcp.Transcript, error) {
	if t == nil || t.Video == nil || strings.TrimSpace(in.GCSURI) == "" {
		return nil, ErrTranscriptUnavailable
	}
	return t.Video.TranscribeVideoGCS(ctx, in.GCSURI, languageOr(t.Language))
}

// ChainTranscriber returns the first non-empty transcript.
type ChainTranscriber []Transcriber

func (c ChainTranscriber) Transcribe(ctx context.Context, in TranscriptInput) (*gcp.Transcript, error) {
	var errs []error
	for _, t := range c {
		if t == nil {
			continue
		}
		tr, err := t.Transcribe(ctx, in)
		if err == nil && tr != nil && strings.TrimSpace(tr.Text) != "" {
			return tr, nil
		}
		if err != nil && !errors.Is(err, ErrTranscriptUnavailable) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, ErrTranscriptUnavailable
}

func languageOr(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return "en-US"
	}
	return lang
}
