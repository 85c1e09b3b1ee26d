package media

import "fmt"

// QualityPolicy names a stream selection rule.
type QualityPolicy string

// HighestAudio picks the best-sounding audio stream. It is the only policy.
const HighestAudio QualityPolicy = "highestaudio"

// SelectFormat picks exactly one audio-bearing format according to policy.
// Audio-only streams win over muxed ones; within a class the greatest bitrate
// wins and ties keep the first format encountered.
func SelectFormat(formats []Format, policy QualityPolicy) (Format, error) {
	if policy != HighestAudio {
		return Format{}, fmt.Errorf("unsupported quality policy %q", policy)
	}
	var (
		best  Format
		found bool
	)
	for _, f := range formats {
		if f.AudioChannels <= 0 {
			continue
		}
		if !found || betterAudio(f, best) {
			best = f
			found = true
		}
	}
	if !found {
		return Format{}, fmt.Errorf("%w: %d candidate formats", ErrNoFormatAvailable, len(formats))
	}
	return best, nil
}

func betterAudio(candidate, current Format) bool {
	if candidate.AudioOnly() != current.AudioOnly() {
		return candidate.AudioOnly()
	}
	return candidate.EffectiveBitrate() > current.EffectiveBitrate()
}

// Bitrate bounds accepted by the MP3 encoder, in kbps.
const (
	MinBitrateKbps = 32
	MaxBitrateKbps = 320
)

// TargetBitrateKbps converts a format's bitrate into an encoder target,
// clamped to the MP3 range. fallback is used when the format declares none.
func TargetBitrateKbps(f Format, fallback int) int {
	kbps := f.EffectiveBitrate() / 1000
	if kbps <= 0 {
		kbps = fallback
	}
	switch {
	case kbps < MinBitrateKbps:
		return MinBitrateKbps
	case kbps > MaxBitrateKbps:
		return MaxBitrateKbps
	default:
		return kbps
	}
}

// LargestThumbnail returns the widest candidate. Ties go to the last one seen.
func LargestThumbnail(candidates []Thumbnail) (Thumbnail, bool) {
	var (
		best  Thumbnail
		found bool
	)
	for _, c := range candidates {
		if c.URL == "" {
			continue
		}
		if !found || c.Width >= best.Width {
			best = c
			found = true
		}
	}
	return best, found
}
