package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	vipb "cloud.google.com/go/videointelligence/apiv1/videointelligencepb"

	"github.com/AICC2024/video-review/internal/platform/ctxutil"
	"github.com/AICC2024/video-review/internal/platform/logger"
)

// Video transcribes narration of videos already stored in GCS.
type Video interface {
	TranscribeVideoGCS(ctx context.Context, gcsURI string, languageCode string) (*Transcript, error)
	Close() error
}

type videoService struct {
	log        *logger.Logger
	client     *videointelligence.Client
	maxRetries int
}

func NewVideo(log *logger.Logger) (Video, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	c, err := videointelligence.NewClient(context.Background(), ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("videointelligence client: %w", err)
	}
	return &videoService{log: log.With("service", "gcp.Video"), client: c, maxRetries: 4}, nil
}

func (s *videoService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *videoService) TranscribeVideoGCS(ctx context.Context, gcsURI string, languageCode string) (*Transcript, error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return nil, fmt.Errorf("gcsURI must be gs://... got %q", gcsURI)
	}
	if languageCode == "" {
		languageCode = "en-US"
	}
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), 30*time.Minute)
	defer cancel()

	req := &vipb.AnnotateVideoRequest{
		InputUri: gcsURI,
		Features: []vipb.Feature{vipb.Feature_SPEECH_TRANSCRIPTION},
		VideoContext: &vipb.VideoContext{
			SpeechTranscriptionConfig: &vipb.SpeechTranscriptionConfig{
				LanguageCode:               languageCode,
				EnableAutomaticPunctuation: true,
			},
		},
	}
	resp, err := retryGRPC(ctx, s.maxRetries, func() (*vipb.AnnotateVideoResponse, error) {
		op, err := s.client.AnnotateVideo(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("videointelligence AnnotateVideo: %w", err)
	}

	out := &Transcript{Provider: "gcp_videointelligence", Source: gcsURI}
	if len(resp.GetAnnotationResults()) == 0 {
		s.log.Warn("no annotation results", "source", gcsURI)
		return out, nil
	}
	out.Segments = parseVideoSpeech(resp.AnnotationResults[0].GetSpeechTranscriptions())
	out.Text = joinSegments(out.Segments)
	return out, nil
}

// parseVideoSpeech splits each transcription into segments at speaker changes.
func parseVideoSpeech(st []*vipb.SpeechTranscription) []Segment {
	var out []Segment
	for _, tr := range st {
		if len(tr.GetAlternatives()) == 0 {
			continue
		}
		alt := tr.Alternatives[0]
		if strings.TrimSpace(alt.GetTranscript()) == "" {
			continue
		}
		if len(alt.Words) == 0 {
			out = append(out, Segment{Text: strings.TrimSpace(alt.Transcript)})
			continue
		}

		var cur Segment
		var words []string
		flush := func() {
			if len(words) == 0 {
				return
			}
			cur.Text = strings.Join(words, " ")
			out = append(out, cur)
			words = nil
		}
		for _, w := range alt.Words {
			if w == nil {
				continue
			}
			spk := int(w.SpeakerTag)
			if len(words) > 0 && spk != 0 && spk != cur.Speaker {
				flush()
			}
			if len(words) == 0 {
				cur = Segment{StartSec: durToSec(w.StartTime), Speaker: spk}
			}
			words = append(words, w.Word)
			cur.EndSec = max(cur.EndSec, durToSec(w.EndTime))
		}
		flush()
	}
	return out
}
