package flow

import (
	"strings"
	"testing"
)

func TestBuildImagePrompt(t *testing.T) {
	cat := map[string]interface{}{"breed": "러시안블루", "personality": "활발한"}
	space := map[string]interface{}{"product_color": "white_transparent"}

	prompt := buildImagePrompt(cat, space)
	if !strings.HasPrefix(prompt, "A beautiful 러시안블루 cat playing energetically with a modern white with transparent cat tower. ") {
		t.Errorf("unexpected prompt opening: %q", prompt)
	}
	if !strings.Contains(prompt, "The cat has a 활발한 personality. ") {
		t.Errorf("prompt missing personality clause: %q", prompt)
	}
	if !strings.HasSuffix(prompt, "8k resolution, sharp focus.") {
		t.Errorf("prompt missing quality suffix: %q", prompt)
	}
}

func TestBuildImagePrompt_Defaults(t *testing.T) {
	prompt := buildImagePrompt(map[string]interface{}{}, map[string]interface{}{"product_color": "neon"})
	if !strings.Contains(prompt, "A beautiful cat cat playing") {
		t.Errorf("expected breed fallback, got %q", prompt)
	}
	if !strings.Contains(prompt, "modern wooden cat tower") {
		t.Errorf("expected color fallback for unknown color, got %q", prompt)
	}
	if !strings.Contains(prompt, "a playful personality") {
		t.Errorf("expected personality fallback, got %q", prompt)
	}
}

func TestBuildVideoPrompt(t *testing.T) {
	positive, negative := buildVideoPrompt("높은 곳을 오르내리고 점프하는 걸 좋아해요")
	if positive != "climbing motion, playful jumping, natural cat motion, smooth animation" {
		t.Errorf("unexpected positive prompt %q", positive)
	}
	if negative != "static, no movement, blurry, distorted, choppy motion, glitchy, artificial" {
		t.Errorf("unexpected negative prompt %q", negative)
	}
}

func TestBuildVideoPrompt_Fallback(t *testing.T) {
	positive, _ := buildVideoPrompt("기타")
	if positive != "smooth cat movements, playful behavior, natural cat motion, smooth animation" {
		t.Errorf("unexpected fallback prompt %q", positive)
	}
}

func TestBuildAudioPrompt(t *testing.T) {
	positive, negative := buildAudioPrompt("캣타워를 올라가서 구경해요")
	if positive != "soft paw tapping on wood, gentle ambient sounds, occasional satisfied purr, playful meowing sounds" {
		t.Errorf("unexpected audio prompt %q", positive)
	}
	if negative != "harsh noise, distortion, static, crackling, robotic sounds, loud bangs" {
		t.Errorf("unexpected audio negative prompt %q", negative)
	}
}

func TestBuildAudioPrompt_NarrowerKeywordSet(t *testing.T) {
	// "뛰어" contributes jumping motion but no landing sound.
	motion, _ := buildVideoPrompt("뛰어다녀요")
	if !strings.Contains(motion, "playful jumping") {
		t.Errorf("expected jumping motion for 뛰어, got %q", motion)
	}
	sound, _ := buildAudioPrompt("뛰어다녀요")
	if strings.Contains(sound, "light landing sounds") {
		t.Errorf("landing sounds require the 점프 keyword, got %q", sound)
	}
	if sound != "occasional satisfied purr, playful meowing sounds" {
		t.Errorf("expected only the constant phrases, got %q", sound)
	}
}
