package term

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

const soundSampleRate = beep.SampleRate(44100)

// Sound plays a cue when an impact lands.
type Sound interface {
	Impact(energyMt float64)
}

// NoSound is the silent Sound.
type NoSound struct{}

// Impact implements Sound.
func (NoSound) Impact(float64) {}

// BeepSound plays a decaying low rumble through the system speaker.
type BeepSound struct {
	mu          sync.Mutex
	initialized bool
}

// NewBeepSound initialises the speaker. Callers fall back to NoSound when it
// fails, typically on hosts without an audio device.
func NewBeepSound() (*BeepSound, error) {
	if err := speaker.Init(soundSampleRate, soundSampleRate.N(time.Second/10)); err != nil {
		return nil, err
	}
	return &BeepSound{initialized: true}, nil
}

// Impact implements Sound. Larger impacts sound lower and longer.
func (b *BeepSound) Impact(energyMt float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return
	}
	d := impactDuration(energyMt)
	speaker.Play(beep.Take(soundSampleRate.N(d), newRumble(soundSampleRate, impactTone(energyMt), d)))
}

// Close stops playback and releases the device.
func (b *BeepSound) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return
	}
	speaker.Clear()
	speaker.Close()
	b.initialized = false
}

// impactTone maps energy to a base frequency in Hz: 440 for negligible
// impacts falling 60 Hz per decade of megatons, floored at 60.
func impactTone(energyMt float64) float64 {
	f := 440 - 60*math.Log10(math.Max(energyMt, 0)+1)
	return math.Max(60, math.Min(f, 440))
}

// impactDuration grows 50ms per decade of megatons from 200ms, capped at 800ms.
func impactDuration(energyMt float64) time.Duration {
	d := 200*time.Millisecond + time.Duration(50*math.Log10(math.Max(energyMt, 0)+1)*float64(time.Millisecond))
	if d > 800*time.Millisecond {
		return 800 * time.Millisecond
	}
	return d
}

// rumble is a sine with a sub-octave, shaped by a short attack and an
// exponential decay over its length.
type rumble struct {
	sr     beep.SampleRate
	freq   float64
	length int
	pos    int
}

func newRumble(sr beep.SampleRate, freq float64, d time.Duration) *rumble {
	return &rumble{sr: sr, freq: freq, length: sr.N(d)}
}

func (r *rumble) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		t := float64(r.pos) / float64(r.sr)
		s := 0.6*math.Sin(2*math.Pi*r.freq*t) + 0.4*math.Sin(math.Pi*r.freq*t)

		attack := math.Min(t/0.01, 1)
		decay := math.Exp(-4 * float64(r.pos) / float64(max(r.length, 1)))
		s *= attack * decay * 0.3

		samples[i][0] = s
		samples[i][1] = s
		r.pos++
	}
	return len(samples), true
}

func (r *rumble) Err() error {
	return nil
}
