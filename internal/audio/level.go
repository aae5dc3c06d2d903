package audio

import (
	"math"
	"sync"
)

// Quality grades a recording by its levels.
type Quality string

const (
	QualitySilent    Quality = "silent"
	QualityPoor      Quality = "poor"
	QualityFair      Quality = "fair"
	QualityOK        Quality = "ok"
	QualityGood      Quality = "good"
	QualityExcellent Quality = "excellent"
	QualityClipped   Quality = "clipped"
)

// LevelReport summarises the loudness of a recording.
type LevelReport struct {
	PeakDB  float64
	RMSDB   float64
	Clipped int
	Samples int
	Quality Quality
}

// Assess grades peak/rms levels in dBFS.
func Assess(peakDB, rmsDB float64, clipped int) Quality {
	switch {
	case math.IsInf(rmsDB, -1):
		return QualitySilent
	case clipped > 0 || peakDB >= -0.1:
		return QualityClipped
	case rmsDB < -30:
		return QualityPoor
	case rmsDB < -25:
		return QualityFair
	case rmsDB < -20:
		return QualityOK
	case rmsDB < -10:
		return QualityGood
	}
	return QualityExcellent
}

// LevelMonitor accumulates levels as frames are captured.
type LevelMonitor struct {
	mu      sync.Mutex
	sumSq   float64
	peak    float64
	clipped int
	n       int
}

// Add folds samples into the running totals.
func (m *LevelMonitor) Add(samples []int16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range samples {
		v := float64(s) / fullScale
		m.sumSq += v * v
		a := math.Abs(v)
		if a > m.peak {
			m.peak = a
		}
		if s == math.MaxInt16 || s == math.MinInt16 {
			m.clipped++
		}
	}
	m.n += len(samples)
}

// Report returns the levels seen so far.
func (m *LevelMonitor) Report() LevelReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	rms := 0.0
	if m.n > 0 {
		rms = math.Sqrt(m.sumSq / float64(m.n))
	}
	r := LevelReport{
		PeakDB:  DB(m.peak),
		RMSDB:   DB(rms),
		Clipped: m.clipped,
		Samples: m.n,
	}
	r.Quality = Assess(r.PeakDB, r.RMSDB, r.Clipped)
	return r
}

// Reset clears the totals.
func (m *LevelMonitor) Reset() {
	m.mu.Lock()
	m.sumSq, m.peak, m.clipped, m.n = 0, 0, 0, 0
	m.mu.Unlock()
}

// Analyze computes a LevelReport for a complete buffer.
func Analyze(samples []int16) LevelReport {
	var m LevelMonitor
	m.Add(samples)
	return m.Report()
}
