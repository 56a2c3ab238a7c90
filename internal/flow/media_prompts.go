package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/playcat/catconsult/internal/models"
)

const videoDurationSeconds = 5.0

const (
	videoSkippedMessage  = "고양이 사진 또는 기대하는 활동 정보가 없습니다."
	videoDisabledMessage = "비디오 생성 기능이 비활성화되어 있습니다."
	videoFailedFormat    = "비디오 생성 실패: %s"
)

// productColorDescriptions maps the form's color choices onto the English
// phrases the image model responds to.
var productColorDescriptions = map[string]string{
	"wood":              "natural wooden",
	"wood_transparent":  "natural wooden with transparent",
	"white":             "white painted",
	"white_transparent": "white with transparent",
}

// activityDescriptor pairs Korean activity keywords with a prompt phrase.
type activityDescriptor struct {
	keywords []string
	phrase   string
}

// motionDescriptors and soundDescriptors are scanned in order; every
// matching entry contributes its phrase. The sound table keys off a
// narrower keyword set than the motion table.
var motionDescriptors = []activityDescriptor{
	{keywords: []string{"오르내리", "올라"}, phrase: "climbing motion"},
	{keywords: []string{"점프", "뛰어"}, phrase: "playful jumping"},
	{keywords: []string{"쉬", "휴식"}, phrase: "relaxed resting"},
	{keywords: []string{"구경", "보"}, phrase: "observing curiously"},
}

var soundDescriptors = []activityDescriptor{
	{keywords: []string{"오르내리", "올라"}, phrase: "soft paw tapping on wood"},
	{keywords: []string{"점프"}, phrase: "light landing sounds"},
	{keywords: []string{"구경"}, phrase: "gentle ambient sounds"},
}

const (
	videoPositiveSuffix = ", natural cat motion, smooth animation"
	videoNegativePrompt = "static, no movement, blurry, distorted, choppy motion, glitchy, artificial"
	audioNegativePrompt = "harsh noise, distortion, static, crackling, robotic sounds, loud bangs"
)

// generateCatVideo finds the first cat with both a photo and an expected
// activity, builds the generation prompts, and runs the media pipeline.
// It never fails the surrounding form submission; failures come back as an
// error-status result.
func (e *Engine) generateCatVideo(ctx context.Context, collected map[string]interface{}) *models.VideoGenerationResult {
	cats, _ := collected["cats"].([]interface{})
	for idx, entry := range cats {
		cat, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		photo := stringField(cat, "cat_photo")
		activity := stringField(cat, "expected_activity")
		if photo == "" || activity == "" {
			continue
		}

		if e.media == nil {
			return &models.VideoGenerationResult{
				Status:  models.VideoStatusSkipped,
				Message: videoDisabledMessage,
			}
		}

		videoPositive, videoNegative := buildVideoPrompt(activity)
		audioPositive, audioNegative := buildAudioPrompt(activity)
		req := VideoRequest{
			ImagePrompt:   buildImagePrompt(cat, collected),
			VideoPositive: videoPositive,
			VideoNegative: videoNegative,
			AudioPositive: audioPositive,
			AudioNegative: audioNegative,
			Duration:      videoDurationSeconds,
		}

		genCtx, cancel := context.WithTimeout(ctx, e.videoTimeout)
		job, err := e.media.GenerateCatVideo(genCtx, req)
		cancel()
		if err != nil {
			slog.Error("Engine.generateCatVideo: media generation failed", "catIndex", idx, "error", err)
			return &models.VideoGenerationResult{
				Status:  models.VideoStatusError,
				Message: fmt.Sprintf(videoFailedFormat, err),
			}
		}

		return &models.VideoGenerationResult{
			Status:   models.VideoStatusSuccess,
			CatIndex: idx,
			ImageURL: job.ImageURL,
			VideoURL: job.VideoURL,
			JobID:    job.JobID,
		}
	}

	return &models.VideoGenerationResult{
		Status:  models.VideoStatusSkipped,
		Message: videoSkippedMessage,
	}
}

// buildImagePrompt composes the scene description from the cat's profile and
// the chosen product color.
func buildImagePrompt(cat, space map[string]interface{}) string {
	breed := stringFieldOr(cat, "breed", "cat")
	personality := stringFieldOr(cat, "personality", "playful")

	colorDesc, ok := productColorDescriptions[stringField(space, "product_color")]
	if !ok {
		colorDesc = "wooden"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A beautiful %s cat playing energetically with a modern %s cat tower. ", breed, colorDesc)
	fmt.Fprintf(&b, "The cat has a %s personality. ", personality)
	b.WriteString("Natural afternoon sunlight streams through a window, creating warm highlights. ")
	b.WriteString("Modern minimalist interior with plants in the background. ")
	b.WriteString("High quality product photography, professional lighting, 8k resolution, sharp focus.")
	return b.String()
}

// buildVideoPrompt derives motion phrases from the expected-activity text.
func buildVideoPrompt(activity string) (positive, negative string) {
	var motions []string
	for _, desc := range motionDescriptors {
		if desc.matches(activity) {
			motions = append(motions, desc.phrase)
		}
	}
	if len(motions) == 0 {
		motions = []string{"smooth cat movements", "playful behavior"}
	}
	return strings.Join(motions, ", ") + videoPositiveSuffix, videoNegativePrompt
}

// buildAudioPrompt derives ambient-sound phrases from the expected-activity
// text. The purr and meow phrases are always present.
func buildAudioPrompt(activity string) (positive, negative string) {
	var sounds []string
	for _, desc := range soundDescriptors {
		if desc.matches(activity) {
			sounds = append(sounds, desc.phrase)
		}
	}
	sounds = append(sounds, "occasional satisfied purr", "playful meowing sounds")
	return strings.Join(sounds, ", "), audioNegativePrompt
}

func (d activityDescriptor) matches(activity string) bool {
	for _, kw := range d.keywords {
		if strings.Contains(activity, kw) {
			return true
		}
	}
	return false
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func stringFieldOr(m map[string]interface{}, key, fallback string) string {
	if s := stringField(m, key); s != "" {
		return s
	}
	return fallback
}
